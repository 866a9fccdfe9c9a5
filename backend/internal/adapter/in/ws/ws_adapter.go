package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorilla/websocket"

	"x-voxels/backend/internal/core/domain/entity"
	"x-voxels/backend/internal/game"
	"x-voxels/backend/internal/telemetry"
	"x-voxels/backend/internal/world"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadRequest     = errors.New("bad request")
)

// CommandHandler разбирает данные команды и выполняет ее.
// Разбор идет в горутине соединения, изменения мира только через очередь.
type CommandHandler func(ctx context.Context, data json.RawMessage) (interface{}, error)

// StatsSource источник сводки телеметрии
type StatsSource interface {
	Summary() telemetry.Summary
}

// SystemsSource источник метрик систем игрового цикла
type SystemsSource interface {
	GetSystemsStats() map[string]interface{}
}

// WSAdapter адаптер для WebSocket соединений
type WSAdapter struct {
	upgrader  websocket.Upgrader
	handlers  map[string]CommandHandler
	queue     *game.CommandQueue
	factory   *world.Factory
	stats     StatsSource
	systems   SystemsSource
	logger    *log.Logger
	clients   map[*SafeWriter]bool // Для хранения активных клиентов
	clientsMu sync.Mutex           // Мьютекс для безопасного доступа к списку клиентов

	commandTimeout time.Duration
}

// NewWSAdapter создает новый экземпляр WSAdapter; stats может быть nil
func NewWSAdapter(queue *game.CommandQueue, factory *world.Factory, stats StatsSource, logger *log.Logger) *WSAdapter {
	if logger == nil {
		logger = log.Default()
	}
	a := &WSAdapter{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		handlers:       make(map[string]CommandHandler),
		queue:          queue,
		factory:        factory,
		stats:          stats,
		logger:         logger,
		clients:        make(map[*SafeWriter]bool),
		commandTimeout: 5 * time.Second,
	}
	a.RegisterHandlers()
	return a
}

// SetSystemsSource подключает метрики систем к ответу на stats
func (a *WSAdapter) SetSystemsSource(systems SystemsSource) {
	a.systems = systems
}

// SafeWriter обеспечивает потокобезопасную запись в WebSocket
type SafeWriter struct {
	conn  *websocket.Conn
	mutex sync.Mutex
}

// NewSafeWriter создает новый экземпляр SafeWriter
func NewSafeWriter(conn *websocket.Conn) *SafeWriter {
	return &SafeWriter{
		conn: conn,
	}
}

// WriteJSON потокобезопасно отправляет JSON данные через WebSocket
func (w *SafeWriter) WriteJSON(v interface{}) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	jsonData, err := json.Marshal(v)
	if err != nil {
		// NaN не сериализуется: для map заменяем на 0 и пробуем снова
		mapData, ok := v.(map[string]interface{})
		if !ok {
			return err
		}
		sanitizeMapValues(mapData)
		if jsonData, err = json.Marshal(mapData); err != nil {
			return err
		}
	}

	w.conn.SetWriteDeadline(time.Now().Add(time.Second))
	return w.conn.WriteMessage(websocket.TextMessage, jsonData)
}

// sanitizeMapValues рекурсивно обходит map и заменяет NaN значения на 0
func sanitizeMapValues(data map[string]interface{}) {
	for k, v := range data {
		switch val := v.(type) {
		case float64:
			if math.IsNaN(val) {
				data[k] = 0.0
			}
		case float32:
			if math.IsNaN(float64(val)) {
				data[k] = float32(0.0)
			}
		case map[string]interface{}:
			sanitizeMapValues(val)
		case []ObjectState:
			for i := range val {
				val[i].Position = sanitizeVec(val[i].Position)
				val[i].Velocity = sanitizeVec(val[i].Velocity)
			}
		}
	}
}

func sanitizeVec(v Vec3) Vec3 {
	clean := func(f float32) float32 {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return 0
		}
		return f
	}
	return Vec3{X: clean(v.X), Y: clean(v.Y), Z: clean(v.Z)}
}

// Close закрывает соединение WebSocket
func (w *SafeWriter) Close() error {
	return w.conn.Close()
}

// RegisterHandlers регистрирует обработчики команд
func (a *WSAdapter) RegisterHandlers() {
	a.handlers[CommandAddVoxel] = func(ctx context.Context, data json.RawMessage) (interface{}, error) {
		req, err := decode[VoxelRequest](data)
		if err != nil {
			return nil, err
		}
		position, scale := mgl32.Vec3{req.X, req.Y, req.Z}, voxelScale(req.Scale)
		if scale <= 0 {
			return nil, fmt.Errorf("%w: scale %v", ErrBadRequest, scale)
		}
		var added bool
		err = a.queue.Do(ctx, func() error {
			added = a.factory.Engine().AddVoxel(position, scale)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"added": added}, nil
	}

	a.handlers[CommandRemoveVoxel] = func(ctx context.Context, data json.RawMessage) (interface{}, error) {
		req, err := decode[VoxelRequest](data)
		if err != nil {
			return nil, err
		}
		position, scale := mgl32.Vec3{req.X, req.Y, req.Z}, voxelScale(req.Scale)
		var removed bool
		err = a.queue.Do(ctx, func() error {
			removed = a.factory.Engine().RemoveVoxel(position, scale)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"removed": removed}, nil
	}

	a.handlers[CommandSpawn] = func(ctx context.Context, data json.RawMessage) (interface{}, error) {
		req, err := decode[SpawnRequest](data)
		if err != nil {
			return nil, err
		}
		obj, err := buildObject(req)
		if err != nil {
			return nil, err
		}
		err = a.queue.Do(ctx, func() error {
			return a.factory.Spawn(obj)
		})
		return map[string]interface{}{"id": req.ID}, err
	}

	a.handlers[CommandDespawn] = func(ctx context.Context, data json.RawMessage) (interface{}, error) {
		req, err := decode[DespawnRequest](data)
		if err != nil {
			return nil, err
		}
		err = a.queue.Do(ctx, func() error {
			return a.factory.Despawn(req.ID)
		})
		return map[string]interface{}{"id": req.ID}, err
	}

	a.handlers[CommandUpdate] = func(ctx context.Context, data json.RawMessage) (interface{}, error) {
		req, err := decode[UpdateRequest](data)
		if err != nil {
			return nil, err
		}
		var (
			shape  *entity.ShapeDescriptor
			motion *entity.MotionType
		)
		if req.Shape != nil {
			s, err := parseShape(*req.Shape)
			if err != nil {
				return nil, err
			}
			shape = &s
		}
		if req.Motion != nil {
			m, err := entity.ParseMotionType(*req.Motion)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
			}
			motion = &m
		}

		var flags entity.UpdateFlags
		err = a.queue.Do(ctx, func() error {
			obj, ok := a.factory.Manager().GetObject(req.ID)
			if !ok {
				return fmt.Errorf("update %s: %w", req.ID, world.ErrObjectNotFound)
			}
			applyUpdate(obj, req, shape, motion)
			var err error
			flags, err = a.factory.ApplyChanges(req.ID)
			return err
		})
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"id": req.ID, "flags": flags.String()}, nil
	}

	a.handlers[CommandStats] = func(ctx context.Context, data json.RawMessage) (interface{}, error) {
		result := map[string]interface{}{}
		err := a.queue.Do(ctx, func() error {
			result["engine"] = a.factory.Engine().Stats()
			result["objects"] = a.factory.Manager().Count()
			return nil
		})
		if err != nil {
			return nil, err
		}
		if a.stats != nil {
			result["telemetry"] = a.stats.Summary()
		}
		if a.systems != nil {
			result["systems"] = a.systems.GetSystemsStats()
		}
		return result, nil
	}
}

// HandleWS обрабатывает WebSocket соединения
func (a *WSAdapter) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Printf("[WSAdapter] Ошибка при установке WebSocket соединения: %v", err)
		return
	}

	safeWriter := NewSafeWriter(conn)

	a.clientsMu.Lock()
	a.clients[safeWriter] = true
	a.clientsMu.Unlock()

	defer func() {
		a.clientsMu.Lock()
		delete(a.clients, safeWriter)
		a.clientsMu.Unlock()
		conn.Close()
	}()

	a.logger.Printf("[WSAdapter] Клиент подключен: %s", r.RemoteAddr)

	for {
		var message Message
		if err := conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				a.logger.Printf("[WSAdapter] Ошибка при чтении сообщения: %v", err)
			}
			break
		}

		var reply interface{}
		switch message.Type {
		case MessageTypePing:
			reply = NewPongMessage(message.ClientTime)
		case MessageTypeCommand:
			result, err := a.Execute(r.Context(), message.Cmd, message.Data)
			if err != nil {
				a.logger.Printf("[WSAdapter] Команда %s отклонена: %v", message.Cmd, err)
			}
			reply = NewAckMessage(message.Cmd, message.ClientTime, result, err)
		default:
			reply = NewInfoMessage(fmt.Sprintf("неизвестный тип сообщения: %q", message.Type))
		}

		if err := safeWriter.WriteJSON(reply); err != nil {
			a.logger.Printf("[WSAdapter] Ошибка отправки ответа: %v", err)
			break
		}
	}
}

// Execute выполняет команду по имени и ждет ее завершения в цикле симуляции
func (a *WSAdapter) Execute(ctx context.Context, cmd string, data json.RawMessage) (interface{}, error) {
	handler, ok := a.handlers[cmd]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}
	ctx, cancel := context.WithTimeout(ctx, a.commandTimeout)
	defer cancel()
	return handler(ctx, data)
}

// Broadcast отправляет сообщение всем подключенным клиентам
func (a *WSAdapter) Broadcast(msg interface{}) int {
	a.clientsMu.Lock()
	clients := make([]*SafeWriter, 0, len(a.clients))
	for client := range a.clients {
		clients = append(clients, client)
	}
	a.clientsMu.Unlock()

	sent := 0
	for _, client := range clients {
		if err := client.WriteJSON(msg); err != nil {
			a.logger.Printf("[WSAdapter] Ошибка при отправке обновления клиенту: %v", err)
			continue
		}
		sent++
	}
	return sent
}

// ClientCount число подключенных клиентов
func (a *WSAdapter) ClientCount() int {
	a.clientsMu.Lock()
	defer a.clientsMu.Unlock()
	return len(a.clients)
}

func decode[T any](data json.RawMessage) (T, error) {
	var req T
	if len(data) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return req, nil
}

func voxelScale(scale *float32) float32 {
	if scale == nil {
		return 1
	}
	return *scale
}

func parseShape(req ShapeRequest) (entity.ShapeDescriptor, error) {
	shapeType, err := entity.ParseShapeType(req.Type)
	if err != nil {
		return entity.ShapeDescriptor{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	var shape entity.ShapeDescriptor
	switch shapeType {
	case entity.BOX:
		shape = entity.NewBoxShape(Vec3{X: req.X, Y: req.Y, Z: req.Z}.Vec())
	case entity.SPHERE:
		shape = entity.NewSphereShape(req.X)
	case entity.CAPSULE:
		shape = entity.NewCapsuleShape(req.X, req.Y)
	}
	if !shape.Valid() {
		return shape, fmt.Errorf("%w: некорректная форма %s", ErrBadRequest, shape)
	}
	return shape, nil
}

func buildObject(req SpawnRequest) (*world.Object, error) {
	if req.ID == "" {
		return nil, fmt.Errorf("%w: пустой id", ErrBadRequest)
	}
	shape, err := parseShape(req.Shape)
	if err != nil {
		return nil, err
	}
	motion, err := entity.ParseMotionType(req.Motion)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	config := world.GetObjectConfig()
	mass := config.DefaultMass
	if req.Mass != nil {
		mass = *req.Mass
	}
	if motion != entity.MotionDynamic {
		mass = 0
	}

	obj := world.NewObject(req.ID, shape, motion, req.Position.Vec(), mass)
	friction, restitution := config.Friction, config.Restitution
	if req.Friction != nil {
		friction = *req.Friction
	}
	if req.Restitution != nil {
		restitution = *req.Restitution
	}
	obj.SetMaterial(friction, restitution)
	obj.SetVelocity(req.Velocity.Vec(), obj.AngularVelocity())
	return obj, nil
}

func applyUpdate(obj *world.Object, req UpdateRequest, shape *entity.ShapeDescriptor, motion *entity.MotionType) {
	if req.Position != nil {
		obj.SetPosition(req.Position.Vec())
	}
	if req.Velocity != nil || req.Angular != nil {
		linear, angular := obj.Velocity(), obj.AngularVelocity()
		if req.Velocity != nil {
			linear = req.Velocity.Vec()
		}
		if req.Angular != nil {
			angular = req.Angular.Vec()
		}
		obj.SetVelocity(linear, angular)
	}
	if req.Gravity != nil {
		obj.SetGravity(req.Gravity.Vec())
	}
	if req.Friction != nil || req.Restitution != nil {
		friction, restitution := obj.Friction(), obj.Restitution()
		if req.Friction != nil {
			friction = *req.Friction
		}
		if req.Restitution != nil {
			restitution = *req.Restitution
		}
		obj.SetMaterial(friction, restitution)
	}
	if motion != nil {
		obj.SetMotionType(*motion)
	}
	if shape != nil {
		obj.SetShape(*shape)
	}
	if req.Mass != nil {
		obj.SetMass(*req.Mass)
	} else if motion != nil && *motion == entity.MotionDynamic && obj.Mass() <= 0 {
		obj.SetMass(world.GetObjectConfig().DefaultMass)
	}
}
