package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrQueueClosed = errors.New("command queue closed")
	ErrQueueFull   = errors.New("command queue full")
)

// Command действие, которое должно выполниться в горутине симуляции
type Command func() error

type pendingCommand struct {
	fn     Command
	result chan error
}

// CommandQueue передает запросы из сетевых горутин в цикл симуляции.
// Submit можно вызывать из любой горутины; Drain вызывает только тикер.
type CommandQueue struct {
	mu       sync.Mutex
	pending  []pendingCommand
	capacity int
	closed   bool
}

// NewCommandQueue создает очередь; capacity <= 0 означает без ограничения
func NewCommandQueue(capacity int) *CommandQueue {
	return &CommandQueue{capacity: capacity}
}

// Submit ставит команду в очередь. Канал получит ровно одно значение:
// результат команды или ошибку очереди.
func (q *CommandQueue) Submit(fn Command) <-chan error {
	result := make(chan error, 1)

	q.mu.Lock()
	defer q.mu.Unlock()

	switch {
	case q.closed:
		result <- ErrQueueClosed
	case q.capacity > 0 && len(q.pending) >= q.capacity:
		result <- ErrQueueFull
	default:
		q.pending = append(q.pending, pendingCommand{fn: fn, result: result})
	}
	return result
}

// Do ставит команду в очередь и ждет ее выполнения или отмены контекста
func (q *CommandQueue) Do(ctx context.Context, fn Command) error {
	select {
	case err := <-q.Submit(fn):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain выполняет все накопленные команды в порядке поступления
// и возвращает их число
func (q *CommandQueue) Drain() int {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, cmd := range batch {
		cmd.result <- runCommand(cmd.fn)
	}
	return len(batch)
}

// runCommand превращает панику команды в ошибку, чтобы одна
// неверная команда не остановила цикл
func runCommand(fn Command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command panicked: %v", r)
		}
	}()
	return fn()
}

// Close закрывает очередь и отклоняет ожидающие команды.
// Возвращает число отклоненных.
func (q *CommandQueue) Close() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	for _, cmd := range q.pending {
		cmd.result <- ErrQueueClosed
	}
	n := len(q.pending)
	q.pending = nil
	return n
}

// Len число ожидающих команд
func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
