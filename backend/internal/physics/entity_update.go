package physics

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"x-voxels/backend/internal/core/domain/entity"
	port "x-voxels/backend/internal/core/port/out/physics"
)

// AddEntity создает тело для сущности и вставляет его в мир.
// Возвращает false без побочных эффектов, если форма сущности недопустима.
func (e *Engine) AddEntity(state MotionState) bool {
	if state.Body() != nil {
		panic("physics: entity already has a body")
	}

	desc := state.ComputeShapeInfo()
	shape, err := e.shapes.Acquire(desc)
	if err != nil {
		e.logger.Printf("[PhysicsEngine] Сущность не добавлена: %v", err)
		return false
	}

	newBody := func(mass float32, inertia mgl32.Vec3) port.RigidBody {
		body := e.world.NewRigidBody(mass, shape, inertia)
		body.SetWorldTransform(e.ToSimulationFrame(state.WorldTransform()))
		state.SetBody(body)
		return body
	}

	var body port.RigidBody
	switch state.MotionType() {
	case entity.MotionKinematic:
		body = newBody(0, mgl32.Vec3{})
		body.SetCollisionFlags(port.CF_KINEMATIC_OBJECT)
		// кинематическое тело движется извне и не должно засыпать
		body.SetActivationState(port.DISABLE_DEACTIVATION)
		body.UpdateInertiaTensor()
	case entity.MotionDynamic:
		mass := state.Mass()
		inertia := e.world.CalculateLocalInertia(shape, mass)
		body = newBody(mass, inertia)
		body.UpdateInertiaTensor()
		state.ApplyVelocities()
		state.ApplyGravity()
	default:
		body = newBody(0, mgl32.Vec3{})
		body.SetCollisionFlags(port.CF_STATIC_OBJECT)
		body.UpdateInertiaTensor()
	}

	// гравитацию задает сама сущность (зоны гравитации)
	body.SetFlags(body.Flags() | port.BT_DISABLE_WORLD_GRAVITY)
	body.SetRestitution(state.Restitution())
	body.SetFriction(state.Friction())
	e.world.AddRigidBody(body)
	e.bodies[body] = state
	return true
}

// RemoveEntity вынимает тело сущности из мира и удаляет его.
// Возвращает false, если у сущности нет тела.
func (e *Engine) RemoveEntity(state MotionState) bool {
	body := state.Body()
	if body == nil {
		return false
	}

	// ссылка снимается с живой формы тела, а не с сущности:
	// логическая форма сущности могла уже измениться
	e.world.RemoveRigidBody(body)
	e.shapes.ReleaseHandle(body.CollisionShape())
	e.world.DestroyRigidBody(body)
	state.SetBody(nil)
	delete(e.bodies, body)
	return true
}

// UpdateEntity применяет изменения сущности к ее телу, выбирая дешевый путь
// (на месте) или дорогой (вынуть, перенастроить, вставить обратно).
// Возвращает false, если у сущности нет тела.
func (e *Engine) UpdateEntity(state MotionState, flags entity.UpdateFlags) bool {
	body := state.Body()
	if body == nil {
		return false
	}

	flags = flags.Normalize()
	if flags.Has(entity.UpdateShape) && !flags.Has(entity.UpdateMass) {
		panic(fmt.Sprintf("physics: shape update without mass update (flags %s)", flags))
	}

	if flags.Has(entity.UpdateHard) {
		e.updateEntityHard(body, state, flags)
	} else if flags.Has(entity.UpdateEasy) {
		e.updateEntityEasy(body, state, flags)
	}
	return true
}

func motionTypeOf(body port.RigidBody) entity.MotionType {
	if body.IsStaticObject() {
		return entity.MotionStatic
	}
	if body.IsKinematicObject() {
		return entity.MotionKinematic
	}
	return entity.MotionDynamic
}

func (e *Engine) updateEntityHard(body port.RigidBody, state MotionState, flags entity.UpdateFlags) {
	newType := state.MotionType()
	oldType := motionTypeOf(body)

	// тело нельзя перенастраивать, пока на него ссылаются широкая фаза и острова
	e.world.RemoveRigidBody(body)

	if flags.Has(entity.UpdateShape) {
		oldShape := body.CollisionShape()
		desc := state.ComputeShapeInfo()
		newShape, err := e.shapes.Acquire(desc)
		switch {
		case err != nil:
			e.logger.Printf("[PhysicsEngine] Новая форма отклонена, тело сохраняет прежнюю: %v", err)
		case newShape != oldShape:
			body.SetCollisionShape(newShape)
			e.shapes.ReleaseHandle(oldShape)
		default:
			// форма не изменилась: лишнюю ссылку сразу отдаем обратно
			e.shapes.ReleaseHandle(newShape)
		}
	}

	massApplied := false
	if flags.Has(entity.UpdateEasy) {
		e.updateEntityEasy(body, state, flags)
		massApplied = flags.Has(entity.UpdateMass)
	}

	zero := mgl32.Vec3{}
	switch newType {
	case entity.MotionKinematic:
		collisionFlags := body.CollisionFlags() | port.CF_KINEMATIC_OBJECT
		collisionFlags &^= port.CF_STATIC_OBJECT
		body.SetCollisionFlags(collisionFlags)
		body.ForceActivationState(port.DISABLE_DEACTIVATION)

		body.SetMassProps(0, zero)
		body.UpdateInertiaTensor()
	case entity.MotionDynamic:
		collisionFlags := body.CollisionFlags() &^ (port.CF_KINEMATIC_OBJECT | port.CF_STATIC_OBJECT)
		body.SetCollisionFlags(collisionFlags)
		if !massApplied {
			mass := state.Mass()
			inertia := e.world.CalculateLocalInertia(body.CollisionShape(), mass)
			body.SetMassProps(mass, inertia)
			body.UpdateInertiaTensor()
		}
		// тело, ставшее динамическим, не должно остаться спящим; состояния
		// DISABLE_SIMULATION и DISABLE_DEACTIVATION обычной активацией не снять
		body.ForceActivationState(port.ACTIVE_TAG)
		body.Activate(true)
	default:
		collisionFlags := body.CollisionFlags() | port.CF_STATIC_OBJECT
		collisionFlags &^= port.CF_KINEMATIC_OBJECT
		body.SetCollisionFlags(collisionFlags)
		body.ForceActivationState(port.DISABLE_SIMULATION)

		body.SetMassProps(0, zero)
		body.UpdateInertiaTensor()

		body.SetLinearVelocity(zero)
		body.SetAngularVelocity(zero)
	}

	e.world.AddRigidBody(body)

	// вызывается и после перевода в static, для статического тела без force ничего не меняет
	body.Activate(false)

	if oldType != newType {
		e.logger.Printf("[PhysicsEngine] Тип движения тела изменен: %s -> %s", oldType, newType)
	}
}

func (e *Engine) updateEntityEasy(body port.RigidBody, state MotionState, flags entity.UpdateFlags) {
	if flags.Has(entity.UpdatePosition) {
		body.SetWorldTransform(e.ToSimulationFrame(state.WorldTransform()))
	}
	if flags.Has(entity.UpdateVelocity) {
		state.ApplyVelocities()
		state.ApplyGravity()
	}
	body.SetRestitution(state.Restitution())
	body.SetFriction(state.Friction())

	if flags.Has(entity.UpdateMass) {
		mass := state.Mass()
		inertia := e.world.CalculateLocalInertia(body.CollisionShape(), mass)
		body.SetMassProps(mass, inertia)
		body.UpdateInertiaTensor()
	}
	body.Activate(false)
}
