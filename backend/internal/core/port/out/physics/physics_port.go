package physics

import (
	"github.com/go-gl/mathgl/mgl32"

	"x-voxels/backend/internal/core/domain/entity"
)

// ShapeHandle непрозрачная ссылка на геометрию, принадлежащую решателю.
// Нулевое значение не ссылается ни на что.
type ShapeHandle uint32

// ColliderHandle непрозрачная ссылка на статический коллайдер (без тела)
type ColliderHandle uint32

// CollisionFlags флаги коллизий объекта (значения совпадают с Bullet)
type CollisionFlags int

const (
	CF_STATIC_OBJECT         CollisionFlags = 1
	CF_KINEMATIC_OBJECT      CollisionFlags = 2
	CF_NO_CONTACT_RESPONSE   CollisionFlags = 4
	CF_CUSTOM_MATERIAL       CollisionFlags = 8
	CF_CHARACTER_OBJECT      CollisionFlags = 16
	CF_DISABLE_VISUALIZE     CollisionFlags = 32
	CF_DISABLE_SPU_COLLISION CollisionFlags = 64
)

// BodyFlags флаги твердого тела
type BodyFlags int

const (
	// BT_DISABLE_WORLD_GRAVITY мир не перезаписывает гравитацию тела своей
	BT_DISABLE_WORLD_GRAVITY BodyFlags = 1
)

// ActivationState состояние сна/бодрствования тела
type ActivationState int

const (
	ACTIVE_TAG           ActivationState = 1
	ISLAND_SLEEPING      ActivationState = 2
	WANTS_DEACTIVATION   ActivationState = 3
	DISABLE_DEACTIVATION ActivationState = 4
	DISABLE_SIMULATION   ActivationState = 5
)

func (s ActivationState) String() string {
	switch s {
	case ACTIVE_TAG:
		return "active"
	case ISLAND_SLEEPING:
		return "sleeping"
	case WANTS_DEACTIVATION:
		return "wants_deactivation"
	case DISABLE_DEACTIVATION:
		return "disable_deactivation"
	case DISABLE_SIMULATION:
		return "disable_simulation"
	default:
		return "unknown"
	}
}

// RigidBody твердое тело, принадлежащее решателю.
// Слой учета владеет им от AddEntity до RemoveEntity.
type RigidBody interface {
	CollisionShape() ShapeHandle
	SetCollisionShape(shape ShapeHandle)

	CollisionFlags() CollisionFlags
	SetCollisionFlags(flags CollisionFlags)
	IsStaticObject() bool
	IsKinematicObject() bool

	Flags() BodyFlags
	SetFlags(flags BodyFlags)

	ActivationState() ActivationState
	// SetActivationState не выводит тело из DISABLE_DEACTIVATION и DISABLE_SIMULATION
	SetActivationState(state ActivationState)
	ForceActivationState(state ActivationState)
	// Activate будит тело; без force статические и кинематические тела не трогаются
	Activate(force bool)

	Mass() float32
	InvMass() float32
	LocalInertia() mgl32.Vec3
	SetMassProps(mass float32, inertia mgl32.Vec3)
	UpdateInertiaTensor()

	WorldTransform() entity.Transform
	SetWorldTransform(transform entity.Transform)

	LinearVelocity() mgl32.Vec3
	SetLinearVelocity(v mgl32.Vec3)
	AngularVelocity() mgl32.Vec3
	SetAngularVelocity(v mgl32.Vec3)
	Gravity() mgl32.Vec3
	SetGravity(g mgl32.Vec3)

	Friction() float32
	SetFriction(friction float32)
	Restitution() float32
	SetRestitution(restitution float32)
}

// ShapeFactory примитивы построения геометрии
type ShapeFactory interface {
	// CreateShape строит форму по дескриптору; ошибка означает неподдерживаемую геометрию
	CreateShape(desc entity.ShapeDescriptor) (ShapeHandle, error)
	DestroyShape(shape ShapeHandle)
	// ShapeDescriptor восстанавливает дескриптор по живой форме
	ShapeDescriptor(shape ShapeHandle) (entity.ShapeDescriptor, bool)
	CalculateLocalInertia(shape ShapeHandle, mass float32) mgl32.Vec3
}

// ColliderWorld операции со статическими коллайдерами
type ColliderWorld interface {
	NewCollider(shape ShapeHandle, transform entity.Transform, flags CollisionFlags) ColliderHandle
	DestroyCollider(collider ColliderHandle)
	AddCollider(collider ColliderHandle)
	RemoveCollider(collider ColliderHandle)
}

// World узкий интерфейс внешнего решателя, которым пользуется слой учета
type World interface {
	ShapeFactory
	ColliderWorld

	// NewRigidBody создает тело вне мира; начальный трансформ задается отдельно
	NewRigidBody(mass float32, shape ShapeHandle, inertia mgl32.Vec3) RigidBody
	DestroyRigidBody(body RigidBody)
	AddRigidBody(body RigidBody)
	RemoveRigidBody(body RigidBody)

	// Advance продвигает мир на timeStep секунд шагами fixedSubstep,
	// не более maxSubsteps шагов. Возвращает число выполненных шагов.
	Advance(timeStep float32, maxSubsteps int, fixedSubstep float32) int
}
