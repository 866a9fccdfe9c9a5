package game

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestCommandQueue_DrainInOrder(t *testing.T) {
	q := NewCommandQueue(0)
	var order []int

	results := make([]<-chan error, 0, 3)
	for i := 0; i < 3; i++ {
		i := i
		results = append(results, q.Submit(func() error {
			order = append(order, i)
			return nil
		}))
	}
	if q.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", q.Len())
	}

	if n := q.Drain(); n != 3 {
		t.Errorf("Drain() = %d, want 3", n)
	}
	for i, r := range results {
		if err := <-r; err != nil {
			t.Errorf("команда %d: %v", i, err)
		}
	}
	if len(order) != 3 || order[0] != 0 || order[2] != 2 {
		t.Errorf("порядок выполнения %v", order)
	}
	if q.Drain() != 0 {
		t.Error("повторный Drain выполнил команды")
	}
}

func TestCommandQueue_ErrorsAndPanics(t *testing.T) {
	q := NewCommandQueue(0)
	boom := errors.New("boom")

	failed := q.Submit(func() error { return boom })
	panicked := q.Submit(func() error { panic("physics: invariant") })
	ok := q.Submit(func() error { return nil })
	q.Drain()

	if err := <-failed; !errors.Is(err, boom) {
		t.Errorf("ошибка команды: %v", err)
	}
	if err := <-panicked; err == nil || !strings.Contains(err.Error(), "physics: invariant") {
		t.Errorf("паника команды: %v", err)
	}
	if err := <-ok; err != nil {
		t.Errorf("команда после паники: %v", err)
	}
}

func TestCommandQueue_Capacity(t *testing.T) {
	q := NewCommandQueue(1)
	q.Submit(func() error { return nil })

	if err := <-q.Submit(func() error { return nil }); !errors.Is(err, ErrQueueFull) {
		t.Errorf("переполнение: %v", err)
	}
}

func TestCommandQueue_Close(t *testing.T) {
	q := NewCommandQueue(0)
	pending := q.Submit(func() error { return nil })

	if n := q.Close(); n != 1 {
		t.Errorf("Close() = %d, want 1", n)
	}
	if err := <-pending; !errors.Is(err, ErrQueueClosed) {
		t.Errorf("ожидающая команда: %v", err)
	}
	if err := <-q.Submit(func() error { return nil }); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("команда после Close: %v", err)
	}
}

func TestCommandQueue_DoConcurrent(t *testing.T) {
	q := NewCommandQueue(0)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				q.Drain()
				time.Sleep(time.Millisecond)
			}
		}
	}()
	defer close(stop)

	counter := 0 // меняется только в горутине Drain
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := q.Do(ctx, func() error { counter++; return nil }); err != nil {
				t.Errorf("Do: %v", err)
			}
		}()
	}
	wg.Wait()

	var got int
	if err := q.Do(ctx, func() error { got = counter; return nil }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != 20 {
		t.Errorf("выполнено %d команд, ожидали 20", got)
	}
}

func TestCommandQueue_DoCancelled(t *testing.T) {
	q := NewCommandQueue(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := q.Do(ctx, func() error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("Do с отмененным контекстом: %v", err)
	}
}
