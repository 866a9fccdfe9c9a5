package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"x-voxels/backend/internal/adapter/in/ws"
)

// Bot подключается к серверу и нагружает его командами управления миром
type Bot struct {
	ID          string
	ServerURL   string
	Pattern     string
	Duration    time.Duration
	CommandRate time.Duration

	conn    *websocket.Conn
	running atomic.Bool
	writeMu sync.Mutex // Мьютекс для синхронизации записи в WebSocket

	stats    BotStats
	spawned  []string
	voxels   []ws.VoxelRequest
	sequence int
}

// BotStats содержит статистику работы бота
type BotStats struct {
	CommandsSent atomic.Int64
	AcksOK       atomic.Int64
	AcksFailed   atomic.Int64
	Errors       atomic.Int64
	StartTime    time.Time
}

// NewBot создает нового бота
func NewBot(id, serverURL, pattern string, duration, commandRate time.Duration) *Bot {
	b := &Bot{
		ID:          id,
		ServerURL:   serverURL,
		Pattern:     pattern,
		Duration:    duration,
		CommandRate: commandRate,
	}
	b.stats.StartTime = time.Now()
	return b
}

// Connect подключается к серверу
func (b *Bot) Connect() error {
	u, err := url.Parse(b.ServerURL)
	if err != nil {
		return fmt.Errorf("неверный URL: %v", err)
	}

	log.Printf("[Bot %s] Подключение к %s", b.ID, u.String())

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("ошибка подключения: %v", err)
	}

	b.conn = conn
	b.running.Store(true)
	log.Printf("[Bot %s] Успешно подключен", b.ID)
	return nil
}

// Disconnect отключается от сервера
func (b *Bot) Disconnect() {
	if b.running.CompareAndSwap(true, false) {
		b.conn.Close()
		log.Printf("[Bot %s] Отключен", b.ID)
	}
}

func (b *Bot) send(msg interface{}) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return b.conn.WriteJSON(msg)
}

// sendCommand отправляет команду с данными data
func (b *Bot) sendCommand(cmd string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	msg := ws.Message{
		Type:       ws.MessageTypeCommand,
		Cmd:        cmd,
		Data:       raw,
		ClientTime: float64(time.Now().UnixMilli()),
	}
	if err := b.send(msg); err != nil {
		return fmt.Errorf("ошибка отправки команды %s: %v", cmd, err)
	}
	b.stats.CommandsSent.Add(1)
	return nil
}

// nextCommand выбирает следующую команду в зависимости от паттерна
func (b *Bot) nextCommand() (string, interface{}) {
	pattern := b.Pattern
	if pattern == "mixed" {
		pattern = []string{"voxels", "spawn", "update"}[rand.Intn(3)]
	}

	switch pattern {
	case "spawn":
		if len(b.spawned) > 20 {
			id := b.spawned[0]
			b.spawned = b.spawned[1:]
			return ws.CommandDespawn, ws.DespawnRequest{ID: id}
		}
		b.sequence++
		id := fmt.Sprintf("%s_ball_%d", b.ID, b.sequence)
		b.spawned = append(b.spawned, id)
		return ws.CommandSpawn, ws.SpawnRequest{
			ID:       id,
			Shape:    ws.ShapeRequest{Type: "sphere", X: 0.25 + rand.Float32()*0.5},
			Motion:   "dynamic",
			Position: ws.Vec3{X: rand.Float32() * 32, Y: 10 + rand.Float32()*10, Z: rand.Float32() * 32},
		}

	case "update":
		if len(b.spawned) == 0 {
			return ws.CommandStats, nil
		}
		id := b.spawned[rand.Intn(len(b.spawned))]
		velocity := ws.Vec3{X: rand.Float32()*4 - 2, Y: rand.Float32() * 6, Z: rand.Float32()*4 - 2}
		return ws.CommandUpdate, ws.UpdateRequest{ID: id, Velocity: &velocity}

	default: // "voxels"
		if len(b.voxels) > 50 {
			v := b.voxels[0]
			b.voxels = b.voxels[1:]
			return ws.CommandRemoveVoxel, v
		}
		v := ws.VoxelRequest{
			X: float32(rand.Intn(32)),
			Y: float32(5 + rand.Intn(5)),
			Z: float32(rand.Intn(32)),
		}
		b.voxels = append(b.voxels, v)
		return ws.CommandAddVoxel, v
	}
}

// handleMessage обрабатывает входящие сообщения
func (b *Bot) handleMessage(data []byte) {
	var msg ws.AckMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("[Bot %s] Ошибка разбора сообщения: %v", b.ID, err)
		return
	}

	switch msg.Type {
	case ws.MessageTypeAck:
		if msg.OK {
			b.stats.AcksOK.Add(1)
			if msg.Cmd == ws.CommandStats {
				log.Printf("[Bot %s] Статистика сервера: %v", b.ID, msg.Result)
			}
		} else {
			b.stats.AcksFailed.Add(1)
			log.Printf("[Bot %s] Команда %s отклонена: %s", b.ID, msg.Cmd, msg.Error)
		}
	case ws.MessageTypePong:
		log.Printf("[Bot %s] Получен pong, задержка %d мс", b.ID, time.Now().UnixMilli()-int64(msg.ClientTime))
	case ws.MessageTypeUpdate:
		// Снимки объектов - обрабатываем молча
	default:
		log.Printf("[Bot %s] Сообщение типа %s", b.ID, msg.Type)
	}
}

// Run запускает бота
func (b *Bot) Run() error {
	if err := b.Connect(); err != nil {
		return err
	}
	defer b.Disconnect()

	// Горутина чтения сообщений
	go func() {
		for b.running.Load() {
			_, data, err := b.conn.ReadMessage()
			if err != nil {
				if b.running.Load() {
					log.Printf("[Bot %s] Ошибка чтения сообщения: %v", b.ID, err)
					b.stats.Errors.Add(1)
				}
				return
			}
			b.handleMessage(data)
		}
	}()

	pingTicker := time.NewTicker(5 * time.Second)
	defer pingTicker.Stop()
	commandTicker := time.NewTicker(b.CommandRate)
	defer commandTicker.Stop()

	endTime := time.Now().Add(b.Duration)
	for b.running.Load() && time.Now().Before(endTime) {
		select {
		case <-pingTicker.C:
			ping := ws.Message{Type: ws.MessageTypePing, ClientTime: float64(time.Now().UnixMilli())}
			if err := b.send(ping); err != nil {
				log.Printf("[Bot %s] Ошибка отправки ping: %v", b.ID, err)
			}
		case <-commandTicker.C:
			cmd, data := b.nextCommand()
			if err := b.sendCommand(cmd, data); err != nil {
				log.Printf("[Bot %s] %v", b.ID, err)
				b.stats.Errors.Add(1)
			}
		}
	}

	log.Printf("[Bot %s] Завершение работы", b.ID)
	return nil
}

// PrintStats выводит статистику бота
func (b *Bot) PrintStats() {
	duration := time.Since(b.stats.StartTime)
	sent := b.stats.CommandsSent.Load()
	log.Printf("[Bot %s] Статистика:", b.ID)
	log.Printf("  Время работы: %v", duration)
	log.Printf("  Команд отправлено: %d", sent)
	log.Printf("  Подтверждено: %d, отклонено: %d", b.stats.AcksOK.Load(), b.stats.AcksFailed.Load())
	log.Printf("  Ошибок: %d", b.stats.Errors.Load())
	if sent > 0 {
		log.Printf("  Частота команд: %.2f команд/сек", float64(sent)/duration.Seconds())
	}
}

func main() {
	// Флаги командной строки
	var (
		serverURL   = flag.String("url", "ws://localhost:8080/ws", "URL WebSocket сервера")
		botID       = flag.String("id", "bot1", "ID бота")
		pattern     = flag.String("pattern", "mixed", "Паттерн нагрузки (voxels, spawn, update, mixed)")
		duration    = flag.Duration("duration", 30*time.Second, "Длительность работы бота")
		commandRate = flag.Duration("rate", 100*time.Millisecond, "Частота отправки команд")
	)
	flag.Parse()

	bot := NewBot(*botID, *serverURL, *pattern, *duration, *commandRate)

	// Обработка сигналов для корректного завершения
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	go func() {
		<-c
		log.Printf("[Bot %s] Получен сигнал прерывания, завершение работы...", bot.ID)
		bot.Disconnect()
		bot.PrintStats()
		os.Exit(0)
	}()

	if err := bot.Run(); err != nil {
		log.Printf("[Bot %s] Ошибка: %v", bot.ID, err)
		os.Exit(1)
	}

	bot.PrintStats()
}
