package ws

import (
	"encoding/json"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// Константы для WebSocket сообщений
const (
	// Типы сообщений
	MessageTypeUpdate  = "update"  // Снимок объектов
	MessageTypePing    = "ping"    // Пинг для измерения задержки
	MessageTypePong    = "pong"    // Ответ на пинг
	MessageTypeCommand = "cmd"     // Команда от клиента
	MessageTypeAck     = "cmd_ack" // Подтверждение команды
	MessageTypeInfo    = "info"    // Информационное сообщение
)

// Команды
const (
	CommandAddVoxel    = "add_voxel"
	CommandRemoveVoxel = "remove_voxel"
	CommandSpawn       = "spawn"
	CommandDespawn     = "despawn"
	CommandUpdate      = "update"
	CommandStats       = "stats"
)

// Message входящее сообщение клиента
type Message struct {
	Type       string          `json:"type"`
	Cmd        string          `json:"cmd,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	ClientTime float64         `json:"client_time,omitempty"`
}

// AckMessage ответ на команду
type AckMessage struct {
	Type       string      `json:"type"`
	Cmd        string      `json:"cmd"`
	OK         bool        `json:"ok"`
	Error      string      `json:"error,omitempty"`
	Result     interface{} `json:"result,omitempty"`
	ClientTime float64     `json:"client_time,omitempty"`
	ServerTime int64       `json:"server_time"`
}

// Vec3 вектор в сообщениях
type Vec3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

func (v Vec3) Vec() mgl32.Vec3 { return mgl32.Vec3{v.X, v.Y, v.Z} }

func fromVec(v mgl32.Vec3) Vec3 { return Vec3{X: v.X(), Y: v.Y(), Z: v.Z()} }

// VoxelRequest данные add_voxel / remove_voxel
type VoxelRequest struct {
	X     float32  `json:"x"`
	Y     float32  `json:"y"`
	Z     float32  `json:"z"`
	Scale *float32 `json:"scale,omitempty"` // по умолчанию 1
}

// ShapeRequest геометрия: для box x,y,z - половины размеров,
// для sphere x - радиус, для capsule x - радиус, y - половина высоты
type ShapeRequest struct {
	Type string  `json:"type"`
	X    float32 `json:"x"`
	Y    float32 `json:"y"`
	Z    float32 `json:"z"`
}

// SpawnRequest данные spawn
type SpawnRequest struct {
	ID          string       `json:"id"`
	Shape       ShapeRequest `json:"shape"`
	Motion      string       `json:"motion"`
	Mass        *float32     `json:"mass,omitempty"`
	Friction    *float32     `json:"friction,omitempty"`
	Restitution *float32     `json:"restitution,omitempty"`
	Position    Vec3         `json:"position"`
	Velocity    Vec3         `json:"velocity"`
}

// UpdateRequest данные update; отсутствующие поля не меняются
type UpdateRequest struct {
	ID          string        `json:"id"`
	Position    *Vec3         `json:"position,omitempty"`
	Velocity    *Vec3         `json:"velocity,omitempty"`
	Angular     *Vec3         `json:"angular,omitempty"`
	Gravity     *Vec3         `json:"gravity,omitempty"`
	Mass        *float32      `json:"mass,omitempty"`
	Friction    *float32      `json:"friction,omitempty"`
	Restitution *float32      `json:"restitution,omitempty"`
	Shape       *ShapeRequest `json:"shape,omitempty"`
	Motion      *string       `json:"motion,omitempty"`
}

// DespawnRequest данные despawn
type DespawnRequest struct {
	ID string `json:"id"`
}

// ObjectState состояние объекта в снимке
type ObjectState struct {
	ID       string `json:"id"`
	Motion   string `json:"motion"`
	Position Vec3   `json:"position"`
	Velocity Vec3   `json:"velocity"`
}

// GetCurrentServerTime возвращает текущее серверное время в миллисекундах
func GetCurrentServerTime() int64 {
	return time.Now().UnixMilli()
}

// NewPongMessage создает новое сообщение-ответ на пинг
func NewPongMessage(clientTime float64) map[string]interface{} {
	return map[string]interface{}{
		"type":        MessageTypePong,
		"client_time": clientTime,
		"server_time": GetCurrentServerTime(),
	}
}

// NewAckMessage создает подтверждение команды
func NewAckMessage(cmd string, clientTime float64, result interface{}, err error) AckMessage {
	ack := AckMessage{
		Type:       MessageTypeAck,
		Cmd:        cmd,
		OK:         err == nil,
		Result:     result,
		ClientTime: clientTime,
		ServerTime: GetCurrentServerTime(),
	}
	if err != nil {
		ack.Error = err.Error()
		ack.Result = nil
	}
	return ack
}

// NewInfoMessage создает новое информационное сообщение
func NewInfoMessage(message string) map[string]interface{} {
	return map[string]interface{}{
		"type":    MessageTypeInfo,
		"message": message,
	}
}

// NewUpdateMessage создает снимок состояния объектов
func NewUpdateMessage(objects []ObjectState) map[string]interface{} {
	return map[string]interface{}{
		"type":        MessageTypeUpdate,
		"objects":     objects,
		"server_time": GetCurrentServerTime(),
	}
}
