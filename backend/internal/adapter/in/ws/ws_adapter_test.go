package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorilla/websocket"

	sim "x-voxels/backend/internal/adapter/out/physics"
	"x-voxels/backend/internal/core/domain/entity"
	port "x-voxels/backend/internal/core/port/out/physics"
	"x-voxels/backend/internal/game"
	"x-voxels/backend/internal/physics"
	"x-voxels/backend/internal/world"
)

type testAck struct {
	Type       string                 `json:"type"`
	Cmd        string                 `json:"cmd"`
	OK         bool                   `json:"ok"`
	Error      string                 `json:"error"`
	Result     map[string]interface{} `json:"result"`
	ClientTime float64                `json:"client_time"`
}

// newTestAdapter поднимает адаптер с очередью, которую разбирает отдельная горутина
func newTestAdapter(t *testing.T) (*WSAdapter, *world.Factory) {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	engine, err := physics.NewEngine(sim.NewSimWorld(mgl32.Vec3{0, -9.81, 0}), physics.DefaultConfig(), logger)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	factory := world.NewFactory(world.NewManager(), engine, logger)
	queue := game.NewCommandQueue(0)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				queue.Drain()
				time.Sleep(time.Millisecond)
			}
		}
	}()
	t.Cleanup(func() {
		close(stop)
		<-done
		queue.Close()
	})

	return NewWSAdapter(queue, factory, nil, logger), factory
}

func dial(t *testing.T, adapter *WSAdapter) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(adapter.HandleWS))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendCommand(t *testing.T, conn *websocket.Conn, cmd string, data interface{}) testAck {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := conn.WriteJSON(Message{Type: MessageTypeCommand, Cmd: cmd, Data: raw, ClientTime: 42}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ack testAck
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if ack.Type != MessageTypeAck || ack.Cmd != cmd || ack.ClientTime != 42 {
		t.Fatalf("неожиданный ответ на %s: %+v", cmd, ack)
	}
	return ack
}

func TestWSAdapter_Ping(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	conn := dial(t, adapter)

	if err := conn.WriteJSON(map[string]interface{}{"type": MessageTypePing, "client_time": 123.5}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var pong map[string]interface{}
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if pong["type"] != MessageTypePong || pong["client_time"] != 123.5 {
		t.Errorf("pong = %v", pong)
	}
}

func TestWSAdapter_UnknownMessageType(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	conn := dial(t, adapter)

	conn.WriteJSON(map[string]interface{}{"type": "teleport"})
	var info map[string]interface{}
	if err := conn.ReadJSON(&info); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if info["type"] != MessageTypeInfo || !strings.Contains(info["message"].(string), "teleport") {
		t.Errorf("info = %v", info)
	}
}

func TestWSAdapter_Voxels(t *testing.T) {
	adapter, factory := newTestAdapter(t)
	conn := dial(t, adapter)

	voxel := map[string]interface{}{"x": 1, "y": 0, "z": 2}
	steps := []struct {
		cmd  string
		key  string
		want bool
	}{
		{CommandAddVoxel, "added", true},
		{CommandAddVoxel, "added", false},
		{CommandRemoveVoxel, "removed", true},
		{CommandRemoveVoxel, "removed", false},
		{CommandAddVoxel, "added", true},
	}
	for i, step := range steps {
		ack := sendCommand(t, conn, step.cmd, voxel)
		if !ack.OK || ack.Result[step.key] != step.want {
			t.Errorf("шаг %d (%s): %+v", i, step.cmd, ack)
		}
	}

	ack := sendCommand(t, conn, CommandStats, nil)
	if !ack.OK {
		t.Fatalf("stats: %s", ack.Error)
	}
	engineStats := ack.Result["engine"].(map[string]interface{})
	if engineStats["voxels"] != float64(1) || engineStats["shapes"] != float64(1) {
		t.Errorf("engine stats = %v", engineStats)
	}

	var contains bool
	adapter.queue.Do(context.Background(), func() error {
		contains = factory.Engine().Voxels().Contains(mgl32.Vec3{1, 0, 2}, 1)
		return nil
	})
	if !contains {
		t.Error("воксель не найден в реестре")
	}
}

func TestWSAdapter_BadVoxelScale(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	conn := dial(t, adapter)

	ack := sendCommand(t, conn, CommandAddVoxel, map[string]interface{}{"x": 0, "y": 0, "z": 0, "scale": -1})
	if ack.OK || !strings.Contains(ack.Error, "bad request") {
		t.Errorf("отрицательный масштаб принят: %+v", ack)
	}
}

func TestWSAdapter_ObjectLifecycle(t *testing.T) {
	adapter, factory := newTestAdapter(t)
	conn := dial(t, adapter)

	spawn := map[string]interface{}{
		"id":       "ball",
		"shape":    map[string]interface{}{"type": "sphere", "x": 0.5},
		"motion":   "dynamic",
		"mass":     2,
		"position": map[string]interface{}{"x": 0, "y": 10, "z": 0},
	}
	if ack := sendCommand(t, conn, CommandSpawn, spawn); !ack.OK {
		t.Fatalf("spawn: %s", ack.Error)
	}
	if ack := sendCommand(t, conn, CommandSpawn, spawn); ack.OK || !strings.Contains(ack.Error, "already exists") {
		t.Errorf("повторный spawn: %+v", ack)
	}

	ack := sendCommand(t, conn, CommandUpdate, map[string]interface{}{
		"id":       "ball",
		"position": map[string]interface{}{"x": 1, "y": 5, "z": 1},
	})
	if !ack.OK || ack.Result["flags"] != "position|easy" {
		t.Errorf("update position: %+v", ack)
	}

	ack = sendCommand(t, conn, CommandUpdate, map[string]interface{}{"id": "ball", "motion": "static"})
	if !ack.OK || ack.Result["flags"] != "hard" {
		t.Errorf("update motion: %+v", ack)
	}

	var (
		origin mgl32.Vec3
		static bool
	)
	adapter.queue.Do(context.Background(), func() error {
		obj, _ := factory.Manager().GetObject("ball")
		origin = obj.Body().WorldTransform().Origin
		static = obj.Body().IsStaticObject()
		return nil
	})
	if !origin.ApproxEqual(mgl32.Vec3{1, 5, 1}) || !static {
		t.Errorf("тело: origin %v, static %v", origin, static)
	}

	if ack := sendCommand(t, conn, CommandUpdate, map[string]interface{}{"id": "ghost"}); ack.OK {
		t.Error("update несуществующего объекта принят")
	}
	if ack := sendCommand(t, conn, CommandDespawn, map[string]interface{}{"id": "ball"}); !ack.OK {
		t.Errorf("despawn: %s", ack.Error)
	}
	if ack := sendCommand(t, conn, CommandDespawn, map[string]interface{}{"id": "ball"}); ack.OK || !strings.Contains(ack.Error, "not found") {
		t.Errorf("повторный despawn: %+v", ack)
	}
}

func TestWSAdapter_StaticThenDynamicUnfreezes(t *testing.T) {
	adapter, factory := newTestAdapter(t)
	conn := dial(t, adapter)

	spawn := map[string]interface{}{
		"id":       "crate",
		"shape":    map[string]interface{}{"type": "box", "x": 0.5, "y": 0.5, "z": 0.5},
		"motion":   "dynamic",
		"mass":     2,
		"position": map[string]interface{}{"x": 0, "y": 10, "z": 0},
	}
	if ack := sendCommand(t, conn, CommandSpawn, spawn); !ack.OK {
		t.Fatalf("spawn: %s", ack.Error)
	}
	for _, motion := range []string{"static", "dynamic"} {
		ack := sendCommand(t, conn, CommandUpdate, map[string]interface{}{"id": "crate", "motion": motion})
		if !ack.OK || ack.Result["flags"] != "hard" {
			t.Fatalf("update %s: %+v", motion, ack)
		}
	}

	var (
		state   port.ActivationState
		static  bool
		invMass float32
	)
	adapter.queue.Do(context.Background(), func() error {
		obj, _ := factory.Manager().GetObject("crate")
		state = obj.Body().ActivationState()
		static = obj.Body().IsStaticObject()
		invMass = obj.Body().InvMass()
		return nil
	})
	if state != port.ACTIVE_TAG || static || invMass == 0 {
		t.Errorf("тело заморожено: активация %s, static %v, обратная масса %v", state, static, invMass)
	}
}

func TestWSAdapter_StatsIncludeSystems(t *testing.T) {
	adapter, factory := newTestAdapter(t)
	ticker := game.NewGameTicker(60, adapter.queue, log.New(io.Discard, "", 0))
	ticker.RegisterSystem(NewSnapshotSystem(adapter, factory.Manager(), 0))
	adapter.SetSystemsSource(ticker)
	conn := dial(t, adapter)

	ack := sendCommand(t, conn, CommandStats, nil)
	if !ack.OK {
		t.Fatalf("stats: %s", ack.Error)
	}
	systems, ok := ack.Result["systems"].(map[string]interface{})
	if !ok {
		t.Fatalf("нет метрик систем: %v", ack.Result)
	}
	snapshot, ok := systems["SnapshotSystem"].(map[string]interface{})
	if !ok {
		t.Fatalf("нет метрик SnapshotSystem: %v", systems)
	}
	if snapshot["total_executions"] != float64(0) || snapshot["errors"] != float64(0) {
		t.Errorf("метрики SnapshotSystem = %v", snapshot)
	}
}

func TestWSAdapter_RejectedCommands(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	conn := dial(t, adapter)

	tests := []struct {
		name string
		cmd  string
		data interface{}
		want string
	}{
		{"unknown command", "fly", nil, "unknown command"},
		{"bad payload", CommandSpawn, "not an object", "bad request"},
		{"empty id", CommandSpawn, map[string]interface{}{"shape": map[string]interface{}{"type": "box", "x": 1, "y": 1, "z": 1}}, "пустой id"},
		{"bad shape", CommandSpawn, map[string]interface{}{"id": "a", "shape": map[string]interface{}{"type": "cone"}}, "bad request"},
		{"bad motion", CommandUpdate, map[string]interface{}{"id": "a", "motion": "floating"}, "bad request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := sendCommand(t, conn, tt.cmd, tt.data)
			if ack.OK || !strings.Contains(ack.Error, tt.want) {
				t.Errorf("ответ %+v, ожидали ошибку с %q", ack, tt.want)
			}
		})
	}
}

func TestWSAdapter_ExecuteTimesOut(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	engine, err := physics.NewEngine(sim.NewSimWorld(mgl32.Vec3{}), physics.DefaultConfig(), logger)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	// очередь никто не разбирает
	adapter := NewWSAdapter(game.NewCommandQueue(0), world.NewFactory(world.NewManager(), engine, logger), nil, logger)
	adapter.commandTimeout = 10 * time.Millisecond

	_, err = adapter.Execute(context.Background(), CommandStats, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Execute без цикла симуляции: %v", err)
	}
}

func TestParseShape(t *testing.T) {
	tests := []struct {
		req     ShapeRequest
		want    entity.ShapeDescriptor
		wantErr bool
	}{
		{ShapeRequest{Type: "box", X: 1, Y: 2, Z: 3}, entity.NewBoxShape(mgl32.Vec3{1, 2, 3}), false},
		{ShapeRequest{Type: "sphere", X: 0.5}, entity.NewSphereShape(0.5), false},
		{ShapeRequest{Type: "capsule", X: 0.5, Y: 1}, entity.NewCapsuleShape(0.5, 1), false},
		{ShapeRequest{Type: "sphere"}, entity.ShapeDescriptor{}, true},
		{ShapeRequest{Type: "pyramid", X: 1}, entity.ShapeDescriptor{}, true},
	}

	for _, tt := range tests {
		got, err := parseShape(tt.req)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseShape(%+v) ошибка %v", tt.req, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseShape(%+v) = %v, want %v", tt.req, got, tt.want)
		}
	}
}

func TestBuildObject_Defaults(t *testing.T) {
	config := world.GetObjectConfig()
	friction := float32(0.9)

	obj, err := buildObject(SpawnRequest{
		ID:       "crate",
		Shape:    ShapeRequest{Type: "box", X: 0.5, Y: 0.5, Z: 0.5},
		Motion:   "dynamic",
		Friction: &friction,
		Velocity: Vec3{X: 1},
	})
	if err != nil {
		t.Fatalf("buildObject: %v", err)
	}
	if obj.Mass() != config.DefaultMass || obj.Friction() != 0.9 || obj.Restitution() != config.Restitution {
		t.Errorf("масса %v, трение %v, упругость %v", obj.Mass(), obj.Friction(), obj.Restitution())
	}
	if obj.Velocity() != (mgl32.Vec3{1, 0, 0}) {
		t.Errorf("скорость %v", obj.Velocity())
	}

	mass := float32(5)
	static, err := buildObject(SpawnRequest{ID: "wall", Shape: ShapeRequest{Type: "box", X: 1, Y: 1, Z: 1}, Mass: &mass})
	if err != nil {
		t.Fatalf("buildObject: %v", err)
	}
	if static.MotionType() != entity.MotionStatic || static.Mass() != 0 {
		t.Errorf("статический объект: %s, масса %v", static.MotionType(), static.Mass())
	}
}

func TestSnapshot(t *testing.T) {
	manager := world.NewManager()
	manager.AddObject(world.NewSphere("b", mgl32.Vec3{0, 1, 0}, 0.5, 1, entity.MotionDynamic))
	manager.AddObject(world.NewBox("a", mgl32.Vec3{2, 0, 0}, mgl32.Vec3{1, 1, 1}, 0, entity.MotionStatic))

	states := Snapshot(manager)
	if len(states) != 2 || states[0].ID != "a" || states[1].Motion != "dynamic" {
		t.Fatalf("снимок %+v", states)
	}
	if states[0].Position != (Vec3{X: 2}) {
		t.Errorf("позиция %+v", states[0].Position)
	}
}
