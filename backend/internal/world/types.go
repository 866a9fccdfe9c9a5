package world

import (
	"github.com/go-gl/mathgl/mgl32"

	"x-voxels/backend/internal/core/domain/entity"
	port "x-voxels/backend/internal/core/port/out/physics"
)

// Object сущность мира, от имени которой физика создает тело.
// Сеттеры не трогают тело напрямую: они копят флаги изменений,
// которые Factory.ApplyChanges передает в Engine.UpdateEntity.
//
// Объект читается и меняется только из горутины симуляции.
type Object struct {
	ID string

	shape       entity.ShapeDescriptor
	motion      entity.MotionType
	mass        float32
	friction    float32
	restitution float32

	transform entity.Transform
	velocity  mgl32.Vec3
	angular   mgl32.Vec3
	gravity   mgl32.Vec3

	body  port.RigidBody
	dirty entity.UpdateFlags
}

// NewObject создает объект с материалом и гравитацией из ObjectConfig
func NewObject(id string, shape entity.ShapeDescriptor, motion entity.MotionType, position mgl32.Vec3, mass float32) *Object {
	cfg := GetObjectConfig()
	return &Object{
		ID:          id,
		shape:       shape,
		motion:      motion,
		mass:        mass,
		friction:    cfg.Friction,
		restitution: cfg.Restitution,
		transform:   entity.Transform{Origin: position, Rotation: mgl32.QuatIdent()},
		gravity:     cfg.Gravity,
	}
}

// --- MotionState ---

func (o *Object) ComputeShapeInfo() entity.ShapeDescriptor { return o.shape }

func (o *Object) MotionType() entity.MotionType { return o.motion }

func (o *Object) Mass() float32 { return o.mass }

func (o *Object) Friction() float32 { return o.friction }

func (o *Object) Restitution() float32 { return o.restitution }

func (o *Object) WorldTransform() entity.Transform { return o.transform }

func (o *Object) ApplyVelocities() {
	o.body.SetLinearVelocity(o.velocity)
	o.body.SetAngularVelocity(o.angular)
}

func (o *Object) ApplyGravity() {
	o.body.SetGravity(o.gravity)
}

func (o *Object) Body() port.RigidBody { return o.body }

func (o *Object) SetBody(body port.RigidBody) { o.body = body }

// --- чтение ---

func (o *Object) Position() mgl32.Vec3 { return o.transform.Origin }

func (o *Object) Rotation() mgl32.Quat { return o.transform.Rotation }

func (o *Object) Velocity() mgl32.Vec3 { return o.velocity }

func (o *Object) AngularVelocity() mgl32.Vec3 { return o.angular }

func (o *Object) Gravity() mgl32.Vec3 { return o.gravity }

// DirtyFlags возвращает накопленные и еще не примененные изменения
func (o *Object) DirtyFlags() entity.UpdateFlags { return o.dirty }

// TakeDirtyFlags возвращает накопленные изменения и сбрасывает их
func (o *Object) TakeDirtyFlags() entity.UpdateFlags {
	flags := o.dirty
	o.dirty = entity.UpdateNone
	return flags
}

// --- изменения ---

func (o *Object) SetPosition(position mgl32.Vec3) {
	o.transform.Origin = position
	o.dirty |= entity.UpdateEasy | entity.UpdatePosition
}

func (o *Object) SetRotation(rotation mgl32.Quat) {
	o.transform.Rotation = rotation.Normalize()
	o.dirty |= entity.UpdateEasy | entity.UpdatePosition
}

func (o *Object) SetVelocity(linear, angular mgl32.Vec3) {
	o.velocity = linear
	o.angular = angular
	o.dirty |= entity.UpdateEasy | entity.UpdateVelocity
}

// SetGravity задает собственную гравитацию объекта; мировая на него не действует
func (o *Object) SetGravity(gravity mgl32.Vec3) {
	o.gravity = gravity
	o.dirty |= entity.UpdateEasy | entity.UpdateVelocity
}

func (o *Object) SetMass(mass float32) {
	o.mass = mass
	o.dirty |= entity.UpdateEasy | entity.UpdateMass
}

// SetMaterial меняет трение и упругость; они обновляются при любом легком обновлении
func (o *Object) SetMaterial(friction, restitution float32) {
	o.friction = friction
	o.restitution = restitution
	o.dirty |= entity.UpdateEasy
}

// SetShape меняет геометрию. Инерция зависит от формы, поэтому вместе
// с формой всегда пересчитывается масса.
func (o *Object) SetShape(shape entity.ShapeDescriptor) {
	if shape == o.shape {
		return
	}
	o.shape = shape
	o.dirty |= entity.UpdateShape | entity.UpdateMass | entity.UpdateHard
}

func (o *Object) SetMotionType(motion entity.MotionType) {
	if motion == o.motion {
		return
	}
	o.motion = motion
	o.dirty |= entity.UpdateHard
}

// syncFromBody переносит результат шага обратно в объект без флагов изменений
func (o *Object) syncFromBody(transform entity.Transform, linear, angular mgl32.Vec3) {
	o.transform = transform
	o.velocity = linear
	o.angular = angular
}
