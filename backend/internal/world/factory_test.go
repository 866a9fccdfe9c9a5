package world

import (
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	sim "x-voxels/backend/internal/adapter/out/physics"
	"x-voxels/backend/internal/core/domain/entity"
	"x-voxels/backend/internal/physics"
)

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time { return c.now }

func newTestFactory(t *testing.T, offset mgl32.Vec3) (*Factory, *sim.SimWorld, *stepClock) {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	world := sim.NewSimWorld(mgl32.Vec3{0, -9.81, 0})
	config := physics.DefaultConfig()
	config.OriginOffset = offset
	engine, err := physics.NewEngine(world, config, logger)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	clock := &stepClock{now: time.Unix(0, 0)}
	engine.SetClock(clock)
	return NewFactory(NewManager(), engine, logger), world, clock
}

func TestObject_DirtyFlags(t *testing.T) {
	tests := []struct {
		name   string
		change func(o *Object)
		want   entity.UpdateFlags
	}{
		{"position", func(o *Object) { o.SetPosition(mgl32.Vec3{1, 2, 3}) }, entity.UpdateEasy | entity.UpdatePosition},
		{"rotation", func(o *Object) { o.SetRotation(mgl32.QuatRotate(1, mgl32.Vec3{0, 1, 0})) }, entity.UpdateEasy | entity.UpdatePosition},
		{"velocity", func(o *Object) { o.SetVelocity(mgl32.Vec3{1, 0, 0}, mgl32.Vec3{}) }, entity.UpdateEasy | entity.UpdateVelocity},
		{"gravity", func(o *Object) { o.SetGravity(mgl32.Vec3{0, -1, 0}) }, entity.UpdateEasy | entity.UpdateVelocity},
		{"mass", func(o *Object) { o.SetMass(3) }, entity.UpdateEasy | entity.UpdateMass},
		{"material", func(o *Object) { o.SetMaterial(0.1, 0.9) }, entity.UpdateEasy},
		{"shape", func(o *Object) { o.SetShape(entity.NewSphereShape(1)) }, entity.UpdateShape | entity.UpdateMass | entity.UpdateHard},
		{"same shape", func(o *Object) { o.SetShape(entity.NewBoxShape(mgl32.Vec3{0.5, 0.5, 0.5})) }, entity.UpdateNone},
		{"motion type", func(o *Object) { o.SetMotionType(entity.MotionStatic) }, entity.UpdateHard},
		{"same motion type", func(o *Object) { o.SetMotionType(entity.MotionDynamic) }, entity.UpdateNone},
		{
			"mass and shape",
			func(o *Object) { o.SetMass(2); o.SetShape(entity.NewSphereShape(1)) },
			entity.UpdateEasy | entity.UpdateMass | entity.UpdateShape | entity.UpdateHard,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj := NewBox("b", mgl32.Vec3{}, mgl32.Vec3{0.5, 0.5, 0.5}, 1, entity.MotionDynamic)
			tt.change(obj)
			if got := obj.TakeDirtyFlags(); got != tt.want {
				t.Errorf("флаги %s, ожидали %s", got, tt.want)
			}
			if obj.DirtyFlags() != entity.UpdateNone {
				t.Error("TakeDirtyFlags не сбросил флаги")
			}
		})
	}
}

func TestFactory_SpawnDespawn(t *testing.T) {
	factory, world, _ := newTestFactory(t, mgl32.Vec3{})
	obj := NewBox("box", mgl32.Vec3{0, 5, 0}, mgl32.Vec3{0.5, 0.5, 0.5}, 2, entity.MotionDynamic)
	obj.SetMass(3) // до создания тела

	if err := factory.Spawn(obj); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if obj.Body() == nil || obj.DirtyFlags() != entity.UpdateNone {
		t.Fatalf("тело %v, флаги %s", obj.Body(), obj.DirtyFlags())
	}
	if obj.Body().Mass() != 3 {
		t.Errorf("масса тела %v, ожидали 3", obj.Body().Mass())
	}

	if err := factory.Spawn(NewSphere("box", mgl32.Vec3{}, 1, 1, entity.MotionDynamic)); !errors.Is(err, ErrObjectExists) {
		t.Errorf("повторный Spawn: %v", err)
	}

	if err := factory.Despawn("box"); err != nil {
		t.Fatalf("Despawn: %v", err)
	}
	if obj.Body() != nil || world.LiveBodies() != 0 || world.LiveShapes() != 0 {
		t.Errorf("после Despawn: тел %d, форм %d", world.LiveBodies(), world.LiveShapes())
	}
	if err := factory.Despawn("box"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("повторный Despawn: %v", err)
	}
}

func TestFactory_SpawnRejectedShape(t *testing.T) {
	factory, _, _ := newTestFactory(t, mgl32.Vec3{})
	obj := NewSphere("huge", mgl32.Vec3{}, 1000, 1, entity.MotionDynamic)

	if err := factory.Spawn(obj); !errors.Is(err, ErrShapeRejected) {
		t.Fatalf("Spawn: %v, ожидали ErrShapeRejected", err)
	}
	if factory.Manager().Count() != 0 {
		t.Error("отклоненный объект попал в менеджер")
	}
}

func TestFactory_ApplyChanges(t *testing.T) {
	factory, world, _ := newTestFactory(t, mgl32.Vec3{})
	obj := NewBox("box", mgl32.Vec3{}, mgl32.Vec3{0.5, 0.5, 0.5}, 1, entity.MotionStatic)
	if err := factory.Spawn(obj); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	body := obj.Body()

	obj.SetMotionType(entity.MotionDynamic)
	obj.SetShape(entity.NewBoxShape(mgl32.Vec3{1, 1, 1}))
	obj.SetMass(3)
	obj.SetPosition(mgl32.Vec3{0, 10, 0})

	flags, err := factory.ApplyChanges("box")
	if err != nil {
		t.Fatalf("ApplyChanges: %v", err)
	}
	if !flags.Has(entity.UpdateHard | entity.UpdateEasy | entity.UpdateShape) {
		t.Errorf("примененные флаги %s", flags)
	}
	if body.IsStaticObject() || body.Mass() != 3 {
		t.Errorf("static=%v, масса %v", body.IsStaticObject(), body.Mass())
	}
	if !mgl32.FloatEqualThreshold(body.LocalInertia().X(), 2, 1e-5) {
		t.Errorf("инерция %v, ожидали 2 по осям", body.LocalInertia())
	}
	if !body.WorldTransform().Origin.ApproxEqual(mgl32.Vec3{0, 10, 0}) {
		t.Errorf("позиция тела %v", body.WorldTransform().Origin)
	}
	if world.BodyMembership(body) != 1 || world.LiveShapes() != 1 {
		t.Errorf("членство %d, живых форм %d", world.BodyMembership(body), world.LiveShapes())
	}

	if flags, _ := factory.ApplyChanges("box"); flags != entity.UpdateNone {
		t.Errorf("повторный ApplyChanges применил %s", flags)
	}
	if _, err := factory.ApplyChanges("missing"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("ApplyChanges(missing): %v", err)
	}
}

func TestFactory_ApplyAll(t *testing.T) {
	factory, _, _ := newTestFactory(t, mgl32.Vec3{})
	for _, id := range []string{"a", "b", "c"} {
		if err := factory.Spawn(NewSphere(id, mgl32.Vec3{}, 0.5, 1, entity.MotionDynamic)); err != nil {
			t.Fatalf("Spawn(%s): %v", id, err)
		}
	}

	a, _ := factory.Manager().GetObject("a")
	c, _ := factory.Manager().GetObject("c")
	a.SetVelocity(mgl32.Vec3{1, 0, 0}, mgl32.Vec3{})
	c.SetMaterial(0.2, 0.7)

	if n := factory.ApplyAll(); n != 2 {
		t.Errorf("ApplyAll() = %d, want 2", n)
	}
	if !a.Body().LinearVelocity().ApproxEqual(mgl32.Vec3{1, 0, 0}) {
		t.Errorf("скорость a %v", a.Body().LinearVelocity())
	}
	if c.Body().Restitution() != 0.7 || c.Body().Friction() != 0.2 {
		t.Errorf("материал c: %v, %v", c.Body().Friction(), c.Body().Restitution())
	}
}

func TestFactory_SyncFromBodies(t *testing.T) {
	offset := mgl32.Vec3{500, 0, 500}
	factory, _, clock := newTestFactory(t, offset)

	falling := NewBox("falling", mgl32.Vec3{510, 20, 510}, mgl32.Vec3{0.5, 0.5, 0.5}, 1, entity.MotionDynamic)
	fixed := NewBox("fixed", mgl32.Vec3{505, 1, 505}, mgl32.Vec3{0.5, 0.5, 0.5}, 0, entity.MotionStatic)
	for _, obj := range []*Object{falling, fixed} {
		if err := factory.Spawn(obj); err != nil {
			t.Fatalf("Spawn: %v", err)
		}
	}
	// тело живет в сдвинутых координатах
	if !falling.Body().WorldTransform().Origin.ApproxEqual(mgl32.Vec3{10, 20, 10}) {
		t.Fatalf("начало тела %v", falling.Body().WorldTransform().Origin)
	}

	for i := 0; i < 5; i++ {
		clock.now = clock.now.Add(30 * time.Millisecond)
		factory.Engine().StepSimulation()
	}
	factory.SyncFromBodies()

	pos := falling.Position()
	if pos.Y() >= 20 || pos.X() != 510 || pos.Z() != 510 {
		t.Errorf("позиция после шагов %v", pos)
	}
	if falling.Velocity().Y() >= 0 {
		t.Errorf("скорость %v", falling.Velocity())
	}
	if falling.DirtyFlags() != entity.UpdateNone {
		t.Errorf("синхронизация выставила флаги %s", falling.DirtyFlags())
	}
	if !fixed.Position().ApproxEqual(mgl32.Vec3{505, 1, 505}) {
		t.Errorf("статический объект сдвинулся: %v", fixed.Position())
	}
}

func TestManager_Objects(t *testing.T) {
	m := NewManager()
	for _, id := range []string{"c", "a", "b"} {
		if !m.AddObject(&Object{ID: id}) {
			t.Fatalf("AddObject(%s) вернул false", id)
		}
	}
	if m.AddObject(&Object{ID: "a"}) {
		t.Error("повторный AddObject должен вернуть false")
	}

	all := m.GetAllObjects()
	if len(all) != 3 || all[0].ID != "a" || all[2].ID != "c" {
		t.Errorf("GetAllObjects() вернул неупорядоченный список")
	}
	if _, ok := m.RemoveObject("b"); !ok || m.Count() != 2 {
		t.Errorf("RemoveObject: ok=%v, count=%d", ok, m.Count())
	}
	if _, ok := m.GetObject("b"); ok {
		t.Error("удаленный объект найден")
	}
}
