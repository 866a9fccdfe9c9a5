package physics

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	sim "x-voxels/backend/internal/adapter/out/physics"
	"x-voxels/backend/internal/core/domain/entity"
	port "x-voxels/backend/internal/core/port/out/physics"
)

// testEntity минимальная сущность для тестов
type testEntity struct {
	shape       entity.ShapeDescriptor
	motion      entity.MotionType
	mass        float32
	friction    float32
	restitution float32
	transform   entity.Transform
	velocity    mgl32.Vec3
	angular     mgl32.Vec3
	gravity     mgl32.Vec3
	body        port.RigidBody
}

func newTestEntity(shape entity.ShapeDescriptor, motion entity.MotionType, mass float32) *testEntity {
	return &testEntity{
		shape:       shape,
		motion:      motion,
		mass:        mass,
		friction:    0.5,
		restitution: 0.25,
		transform:   entity.IdentityTransform(),
		gravity:     mgl32.Vec3{0, -9.8, 0},
	}
}

func (t *testEntity) ComputeShapeInfo() entity.ShapeDescriptor { return t.shape }
func (t *testEntity) MotionType() entity.MotionType          { return t.motion }
func (t *testEntity) Mass() float32                          { return t.mass }
func (t *testEntity) Friction() float32                      { return t.friction }
func (t *testEntity) Restitution() float32                   { return t.restitution }
func (t *testEntity) WorldTransform() entity.Transform       { return t.transform }
func (t *testEntity) Body() port.RigidBody                   { return t.body }
func (t *testEntity) SetBody(body port.RigidBody)            { t.body = body }

func (t *testEntity) ApplyVelocities() {
	t.body.SetLinearVelocity(t.velocity)
	t.body.SetAngularVelocity(t.angular)
}

func (t *testEntity) ApplyGravity() {
	t.body.SetGravity(t.gravity)
}

// manualClock часы, которые двигаются только вручную
type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// recordingWorld запоминает аргументы Advance
type recordingWorld struct {
	*sim.SimWorld
	timeSteps []float32
	substeps  []int
	fixed     []float32
	onAdvance func()
}

func (w *recordingWorld) Advance(timeStep float32, maxSubsteps int, fixedSubstep float32) int {
	w.timeSteps = append(w.timeSteps, timeStep)
	w.substeps = append(w.substeps, maxSubsteps)
	w.fixed = append(w.fixed, fixedSubstep)
	if w.onAdvance != nil {
		w.onAdvance()
	}
	return w.SimWorld.Advance(timeStep, maxSubsteps, fixedSubstep)
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestEngine(t *testing.T) (*Engine, *sim.SimWorld) {
	t.Helper()
	world := sim.NewSimWorld(mgl32.Vec3{0, -9.8, 0})
	engine, err := NewEngine(world, DefaultConfig(), quietLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine, world
}

func simBody(t *testing.T, body port.RigidBody) *sim.SimBody {
	t.Helper()
	b, ok := body.(*sim.SimBody)
	if !ok {
		t.Fatalf("ожидали *sim.SimBody, получили %T", body)
	}
	return b
}

func expectPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("%s: ожидали панику", name)
		}
	}()
	fn()
}

func approx(a, b float32) bool {
	return mgl32.FloatEqualThreshold(a, b, 1e-5)
}
