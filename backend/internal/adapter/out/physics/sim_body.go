package physics

import (
	"github.com/go-gl/mathgl/mgl32"

	"x-voxels/backend/internal/core/domain/entity"
	port "x-voxels/backend/internal/core/port/out/physics"
)

// SimBody твердое тело SimWorld
type SimBody struct {
	id    int
	shape port.ShapeHandle

	collisionFlags  port.CollisionFlags
	flags           port.BodyFlags
	activationState port.ActivationState

	mass             float32
	invMass          float32
	localInertia     mgl32.Vec3
	invInertiaLocal  mgl32.Vec3
	invInertiaWorld  mgl32.Mat3
	transform        entity.Transform
	linearVelocity   mgl32.Vec3
	angularVelocity  mgl32.Vec3
	gravity          mgl32.Vec3
	friction         float32
	restitution      float32
	deactivationTime float32

	destroyed bool

	// счетчики для тестов
	activateCalls  int
	inertiaUpdates int
}

// ID порядковый номер тела в мире
func (b *SimBody) ID() int { return b.id }

func (b *SimBody) CollisionShape() port.ShapeHandle { return b.shape }

func (b *SimBody) SetCollisionShape(shape port.ShapeHandle) { b.shape = shape }

func (b *SimBody) CollisionFlags() port.CollisionFlags { return b.collisionFlags }

func (b *SimBody) SetCollisionFlags(flags port.CollisionFlags) { b.collisionFlags = flags }

func (b *SimBody) IsStaticObject() bool {
	return b.collisionFlags&port.CF_STATIC_OBJECT != 0
}

func (b *SimBody) IsKinematicObject() bool {
	return b.collisionFlags&port.CF_KINEMATIC_OBJECT != 0
}

func (b *SimBody) Flags() port.BodyFlags { return b.flags }

func (b *SimBody) SetFlags(flags port.BodyFlags) { b.flags = flags }

func (b *SimBody) ActivationState() port.ActivationState { return b.activationState }

func (b *SimBody) SetActivationState(state port.ActivationState) {
	if b.activationState != port.DISABLE_DEACTIVATION && b.activationState != port.DISABLE_SIMULATION {
		b.activationState = state
	}
}

func (b *SimBody) ForceActivationState(state port.ActivationState) {
	b.activationState = state
}

func (b *SimBody) Activate(force bool) {
	b.activateCalls++
	if force || b.collisionFlags&(port.CF_STATIC_OBJECT|port.CF_KINEMATIC_OBJECT) == 0 {
		b.SetActivationState(port.ACTIVE_TAG)
		b.deactivationTime = 0
	}
}

// ActivateCalls сколько раз тело будили
func (b *SimBody) ActivateCalls() int { return b.activateCalls }

func (b *SimBody) Mass() float32 { return b.mass }

func (b *SimBody) InvMass() float32 { return b.invMass }

func (b *SimBody) LocalInertia() mgl32.Vec3 { return b.localInertia }

// SetMassProps задает массу и локальную инерцию. В отличие от Bullet флаги
// коллизий здесь не трогаются: тип движения задает только слой учета.
func (b *SimBody) SetMassProps(mass float32, inertia mgl32.Vec3) {
	b.mass = mass
	b.localInertia = inertia
	if mass == 0 {
		b.invMass = 0
	} else {
		b.invMass = 1 / mass
	}
	for i := 0; i < 3; i++ {
		if inertia[i] != 0 {
			b.invInertiaLocal[i] = 1 / inertia[i]
		} else {
			b.invInertiaLocal[i] = 0
		}
	}
}

func (b *SimBody) UpdateInertiaTensor() {
	rot := b.transform.Rotation.Mat4().Mat3()
	b.invInertiaWorld = rot.Mul3(mgl32.Diag3(b.invInertiaLocal)).Mul3(rot.Transpose())
	b.inertiaUpdates++
}

// InvInertiaTensorWorld обратный тензор инерции в мировых осях
func (b *SimBody) InvInertiaTensorWorld() mgl32.Mat3 { return b.invInertiaWorld }

// InertiaUpdates сколько раз пересчитывался тензор инерции
func (b *SimBody) InertiaUpdates() int { return b.inertiaUpdates }

func (b *SimBody) WorldTransform() entity.Transform { return b.transform }

func (b *SimBody) SetWorldTransform(transform entity.Transform) { b.transform = transform }

func (b *SimBody) LinearVelocity() mgl32.Vec3 { return b.linearVelocity }

func (b *SimBody) SetLinearVelocity(v mgl32.Vec3) { b.linearVelocity = v }

func (b *SimBody) AngularVelocity() mgl32.Vec3 { return b.angularVelocity }

func (b *SimBody) SetAngularVelocity(v mgl32.Vec3) { b.angularVelocity = v }

func (b *SimBody) Gravity() mgl32.Vec3 { return b.gravity }

func (b *SimBody) SetGravity(g mgl32.Vec3) { b.gravity = g }

func (b *SimBody) Friction() float32 { return b.friction }

func (b *SimBody) SetFriction(friction float32) { b.friction = friction }

func (b *SimBody) Restitution() float32 { return b.restitution }

func (b *SimBody) SetRestitution(restitution float32) { b.restitution = restitution }

// simulated сообщает, интегрирует ли шаг это тело
func (b *SimBody) simulated() bool {
	if b.IsStaticObject() || b.IsKinematicObject() || b.invMass == 0 {
		return false
	}
	return b.activationState != port.ISLAND_SLEEPING && b.activationState != port.DISABLE_SIMULATION
}
