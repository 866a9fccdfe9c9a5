package physics

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"x-voxels/backend/internal/core/domain/entity"
	port "x-voxels/backend/internal/core/port/out/physics"
)

// SimWorld упрощенный решатель в памяти процесса, реализующий порт World.
// Повторяет учет Bullet (флаги, активация, массы, фиксированные подшаги),
// но не ищет столкновений: узкая фаза и связи находятся за пределами слоя.
//
// Не потокобезопасен: все вызовы идут из одной горутины симуляции.
type SimWorld struct {
	gravity mgl32.Vec3

	shapes          map[port.ShapeHandle]entity.ShapeDescriptor
	nextShape       port.ShapeHandle
	destroyedShapes int

	colliders    map[port.ColliderHandle]*simCollider
	nextCollider port.ColliderHandle

	// тела в мире в порядке вставки, чтобы шаг был детерминированным
	bodies     []*SimBody
	liveBodies int
	nextBody   int

	localTime float32
	steps     uint64

	journal []string
}

type simCollider struct {
	shape     port.ShapeHandle
	transform entity.Transform
	flags     port.CollisionFlags
	inWorld   bool
}

// NewSimWorld создает пустой мир с заданной мировой гравитацией
func NewSimWorld(gravity mgl32.Vec3) *SimWorld {
	return &SimWorld{
		gravity:   gravity,
		shapes:    make(map[port.ShapeHandle]entity.ShapeDescriptor),
		colliders: make(map[port.ColliderHandle]*simCollider),
	}
}

// SetGravity меняет мировую гравитацию и раздает ее телам без BT_DISABLE_WORLD_GRAVITY
func (w *SimWorld) SetGravity(g mgl32.Vec3) {
	w.gravity = g
	for _, b := range w.bodies {
		if b.flags&port.BT_DISABLE_WORLD_GRAVITY == 0 {
			b.gravity = g
		}
	}
}

func (w *SimWorld) record(format string, args ...interface{}) {
	w.journal = append(w.journal, fmt.Sprintf(format, args...))
}

// --- формы ---

func (w *SimWorld) CreateShape(desc entity.ShapeDescriptor) (port.ShapeHandle, error) {
	if !desc.Valid() {
		return 0, fmt.Errorf("sim world: неподдерживаемая геометрия %s", desc)
	}
	w.nextShape++
	w.shapes[w.nextShape] = desc
	w.record("create_shape#%d", w.nextShape)
	return w.nextShape, nil
}

func (w *SimWorld) DestroyShape(shape port.ShapeHandle) {
	if _, ok := w.shapes[shape]; !ok {
		panic(fmt.Sprintf("sim world: повторное удаление формы %d", shape))
	}
	delete(w.shapes, shape)
	w.destroyedShapes++
	w.record("destroy_shape#%d", shape)
}

func (w *SimWorld) ShapeDescriptor(shape port.ShapeHandle) (entity.ShapeDescriptor, bool) {
	desc, ok := w.shapes[shape]
	return desc, ok
}

// CalculateLocalInertia повторяет формулы Bullet: коробка, сфера,
// капсула через ограничивающую коробку
func (w *SimWorld) CalculateLocalInertia(shape port.ShapeHandle, mass float32) mgl32.Vec3 {
	desc, ok := w.shapes[shape]
	if !ok {
		panic(fmt.Sprintf("sim world: инерция неизвестной формы %d", shape))
	}
	if desc.Type == entity.SPHERE {
		r := desc.HalfExtents.X()
		i := 0.4 * mass * r * r
		return mgl32.Vec3{i, i, i}
	}
	size := desc.BoundingHalfExtents().Mul(2)
	lx2, ly2, lz2 := size.X()*size.X(), size.Y()*size.Y(), size.Z()*size.Z()
	return mgl32.Vec3{
		mass / 12 * (ly2 + lz2),
		mass / 12 * (lx2 + lz2),
		mass / 12 * (lx2 + ly2),
	}
}

// --- коллайдеры ---

func (w *SimWorld) NewCollider(shape port.ShapeHandle, transform entity.Transform, flags port.CollisionFlags) port.ColliderHandle {
	if _, ok := w.shapes[shape]; !ok {
		panic(fmt.Sprintf("sim world: коллайдер на неизвестной форме %d", shape))
	}
	w.nextCollider++
	w.colliders[w.nextCollider] = &simCollider{shape: shape, transform: transform, flags: flags}
	return w.nextCollider
}

func (w *SimWorld) DestroyCollider(collider port.ColliderHandle) {
	c, ok := w.colliders[collider]
	if !ok {
		panic(fmt.Sprintf("sim world: повторное удаление коллайдера %d", collider))
	}
	if c.inWorld {
		panic(fmt.Sprintf("sim world: удаление коллайдера %d, который еще в мире", collider))
	}
	delete(w.colliders, collider)
}

func (w *SimWorld) AddCollider(collider port.ColliderHandle) {
	c := w.mustCollider(collider)
	if c.inWorld {
		panic(fmt.Sprintf("sim world: коллайдер %d уже в мире", collider))
	}
	c.inWorld = true
	w.record("add_collider#%d", collider)
}

func (w *SimWorld) RemoveCollider(collider port.ColliderHandle) {
	c := w.mustCollider(collider)
	if !c.inWorld {
		return
	}
	c.inWorld = false
	w.record("remove_collider#%d", collider)
}

func (w *SimWorld) mustCollider(collider port.ColliderHandle) *simCollider {
	c, ok := w.colliders[collider]
	if !ok {
		panic(fmt.Sprintf("sim world: неизвестный коллайдер %d", collider))
	}
	return c
}

// ColliderTransform возвращает трансформ коллайдера
func (w *SimWorld) ColliderTransform(collider port.ColliderHandle) (entity.Transform, bool) {
	c, ok := w.colliders[collider]
	if !ok {
		return entity.Transform{}, false
	}
	return c.transform, true
}

// ColliderShape возвращает форму коллайдера
func (w *SimWorld) ColliderShape(collider port.ColliderHandle) (port.ShapeHandle, bool) {
	c, ok := w.colliders[collider]
	if !ok {
		return 0, false
	}
	return c.shape, true
}

// --- тела ---

func (w *SimWorld) NewRigidBody(mass float32, shape port.ShapeHandle, inertia mgl32.Vec3) port.RigidBody {
	if _, ok := w.shapes[shape]; !ok {
		panic(fmt.Sprintf("sim world: тело на неизвестной форме %d", shape))
	}
	w.nextBody++
	w.liveBodies++
	b := &SimBody{
		id:              w.nextBody,
		shape:           shape,
		transform:       entity.IdentityTransform(),
		activationState: port.ACTIVE_TAG,
		friction:        0.5,
		gravity:         w.gravity,
	}
	b.SetMassProps(mass, inertia)
	b.UpdateInertiaTensor()
	b.inertiaUpdates = 0
	return b
}

func (w *SimWorld) DestroyRigidBody(body port.RigidBody) {
	b := asSimBody(body)
	if b.destroyed {
		panic(fmt.Sprintf("sim world: повторное удаление тела %d", b.id))
	}
	if w.indexOf(b) >= 0 {
		panic(fmt.Sprintf("sim world: удаление тела %d, которое еще в мире", b.id))
	}
	b.destroyed = true
	w.liveBodies--
	w.record("destroy_body#%d", b.id)
}

func (w *SimWorld) AddRigidBody(body port.RigidBody) {
	b := asSimBody(body)
	if w.indexOf(b) >= 0 {
		panic(fmt.Sprintf("sim world: тело %d уже в мире", b.id))
	}
	if !b.IsStaticObject() && !b.IsKinematicObject() && b.flags&port.BT_DISABLE_WORLD_GRAVITY == 0 {
		b.gravity = w.gravity
	}
	w.bodies = append(w.bodies, b)
	w.record("add_body#%d", b.id)
}

func (w *SimWorld) RemoveRigidBody(body port.RigidBody) {
	b := asSimBody(body)
	i := w.indexOf(b)
	if i < 0 {
		return
	}
	w.bodies = append(w.bodies[:i], w.bodies[i+1:]...)
	w.record("remove_body#%d", b.id)
}

func (w *SimWorld) indexOf(b *SimBody) int {
	for i, other := range w.bodies {
		if other == b {
			return i
		}
	}
	return -1
}

func asSimBody(body port.RigidBody) *SimBody {
	b, ok := body.(*SimBody)
	if !ok {
		panic(fmt.Sprintf("sim world: чужое тело %T", body))
	}
	return b
}

// --- шаг ---

// Advance повторяет схему stepSimulation из Bullet: накопитель времени,
// фиксированный подшаг и ограничение числа подшагов
func (w *SimWorld) Advance(timeStep float32, maxSubsteps int, fixedSubstep float32) int {
	numSteps := 0
	if maxSubsteps > 0 {
		w.localTime += timeStep
		if w.localTime >= fixedSubstep {
			numSteps = int(w.localTime / fixedSubstep)
			w.localTime -= float32(numSteps) * fixedSubstep
		}
	} else {
		// переменный шаг
		fixedSubstep = timeStep
		w.localTime = 0
		if timeStep > 0 {
			numSteps = 1
			maxSubsteps = 1
		}
	}

	if numSteps > maxSubsteps {
		numSteps = maxSubsteps
	}
	for i := 0; i < numSteps; i++ {
		w.singleStep(fixedSubstep)
	}
	return numSteps
}

func (w *SimWorld) singleStep(dt float32) {
	w.steps++
	for _, b := range w.bodies {
		if !b.simulated() {
			continue
		}
		b.linearVelocity = b.linearVelocity.Add(b.gravity.Mul(dt))
		b.transform.Origin = b.transform.Origin.Add(b.linearVelocity.Mul(dt))

		if b.angularVelocity.LenSqr() > 0 {
			spin := mgl32.Quat{W: 0, V: b.angularVelocity.Mul(0.5 * dt)}.Mul(b.transform.Rotation)
			b.transform.Rotation = b.transform.Rotation.Add(spin).Normalize()
			b.UpdateInertiaTensor()
		}
	}
}

// --- инспекция ---

// ContainsBody сообщает, находится ли тело в мире
func (w *SimWorld) ContainsBody(body port.RigidBody) bool {
	b, ok := body.(*SimBody)
	return ok && w.indexOf(b) >= 0
}

// BodyMembership сколько раз тело встречается среди тел мира
func (w *SimWorld) BodyMembership(body port.RigidBody) int {
	n := 0
	for _, b := range w.bodies {
		if port.RigidBody(b) == body {
			n++
		}
	}
	return n
}

// BodyCount число тел в мире
func (w *SimWorld) BodyCount() int {
	return len(w.bodies)
}

// LiveBodies число созданных и еще не удаленных тел
func (w *SimWorld) LiveBodies() int {
	return w.liveBodies
}

// ColliderCount число коллайдеров в мире
func (w *SimWorld) ColliderCount() int {
	n := 0
	for _, c := range w.colliders {
		if c.inWorld {
			n++
		}
	}
	return n
}

// LiveShapes число живых форм
func (w *SimWorld) LiveShapes() int {
	return len(w.shapes)
}

// DestroyedShapes сколько форм было удалено за все время
func (w *SimWorld) DestroyedShapes() int {
	return w.destroyedShapes
}

// Steps число выполненных внутренних шагов
func (w *SimWorld) Steps() uint64 {
	return w.steps
}

// Journal возвращает копию журнала операций с членством в мире
func (w *SimWorld) Journal() []string {
	out := make([]string, len(w.journal))
	copy(out, w.journal)
	return out
}

// ResetJournal очищает журнал операций
func (w *SimWorld) ResetJournal() {
	w.journal = w.journal[:0]
}
