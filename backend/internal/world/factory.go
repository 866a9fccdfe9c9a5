package world

import (
	"errors"
	"fmt"
	"log"

	"github.com/go-gl/mathgl/mgl32"

	"x-voxels/backend/internal/core/domain/entity"
	"x-voxels/backend/internal/physics"
)

var (
	ErrObjectExists   = errors.New("object already exists")
	ErrObjectNotFound = errors.New("object not found")
	ErrShapeRejected  = errors.New("shape rejected by physics")
)

// Factory создает и удаляет объекты мира вместе с их телами.
// Все методы вызываются из горутины симуляции.
type Factory struct {
	manager *Manager
	engine  *physics.Engine
	logger  *log.Logger
}

// NewFactory создает новый экземпляр Factory
func NewFactory(manager *Manager, engine *physics.Engine, logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Default()
	}
	return &Factory{
		manager: manager,
		engine:  engine,
		logger:  logger,
	}
}

// Manager менеджер объектов фабрики
func (f *Factory) Manager() *Manager {
	return f.manager
}

// Engine физический движок фабрики
func (f *Factory) Engine() *physics.Engine {
	return f.engine
}

// Spawn регистрирует объект и создает для него тело
func (f *Factory) Spawn(obj *Object) error {
	if _, exists := f.manager.GetObject(obj.ID); exists {
		return fmt.Errorf("spawn %s: %w", obj.ID, ErrObjectExists)
	}
	if !f.engine.AddEntity(obj) {
		return fmt.Errorf("spawn %s (%s): %w", obj.ID, obj.shape, ErrShapeRejected)
	}
	// все, что накоплено до создания тела, уже в нем
	obj.TakeDirtyFlags()
	f.manager.AddObject(obj)

	f.logger.Printf("[World] Создан объект %s (%s, %s) в координатах (%.2f, %.2f, %.2f)",
		obj.ID, obj.motion, obj.shape, obj.Position().X(), obj.Position().Y(), obj.Position().Z())
	return nil
}

// Despawn удаляет объект и его тело
func (f *Factory) Despawn(id string) error {
	obj, exists := f.manager.RemoveObject(id)
	if !exists {
		return fmt.Errorf("despawn %s: %w", id, ErrObjectNotFound)
	}
	f.engine.RemoveEntity(obj)
	f.logger.Printf("[World] Удален объект %s", id)
	return nil
}

// ApplyChanges передает накопленные изменения объекта в физику
// и возвращает примененные флаги
func (f *Factory) ApplyChanges(id string) (entity.UpdateFlags, error) {
	obj, exists := f.manager.GetObject(id)
	if !exists {
		return entity.UpdateNone, fmt.Errorf("apply changes %s: %w", id, ErrObjectNotFound)
	}
	flags := obj.TakeDirtyFlags()
	if flags == entity.UpdateNone {
		return flags, nil
	}
	f.engine.UpdateEntity(obj, flags)
	return flags, nil
}

// ApplyAll применяет изменения всех объектов; возвращает число обновленных
func (f *Factory) ApplyAll() int {
	updated := 0
	for _, obj := range f.manager.GetAllObjects() {
		flags := obj.TakeDirtyFlags()
		if flags == entity.UpdateNone {
			continue
		}
		f.engine.UpdateEntity(obj, flags)
		updated++
	}
	return updated
}

// SyncFromBodies переносит положения и скорости тел в объекты
func (f *Factory) SyncFromBodies() {
	for _, obj := range f.manager.GetAllObjects() {
		body := obj.Body()
		if body == nil || body.IsStaticObject() {
			continue
		}
		transform := f.engine.ToWorldFrame(body.WorldTransform())
		obj.syncFromBody(transform, body.LinearVelocity(), body.AngularVelocity())
	}
}

// NewBox создает коробку по половинам размеров
func NewBox(id string, position, halfExtents mgl32.Vec3, mass float32, motion entity.MotionType) *Object {
	return NewObject(id, entity.NewBoxShape(halfExtents), motion, position, mass)
}

// NewSphere создает сферу
func NewSphere(id string, position mgl32.Vec3, radius, mass float32, motion entity.MotionType) *Object {
	return NewObject(id, entity.NewSphereShape(radius), motion, position, mass)
}

// NewCapsule создает капсулу, ориентированную по оси Y
func NewCapsule(id string, position mgl32.Vec3, radius, halfHeight, mass float32, motion entity.MotionType) *Object {
	return NewObject(id, entity.NewCapsuleShape(radius, halfHeight), motion, position, mass)
}

// NewBouncySphere создает прыгучую сферу с высоким restitution
func NewBouncySphere(id string, position mgl32.Vec3, radius, mass float32) *Object {
	obj := NewSphere(id, position, radius, mass, entity.MotionDynamic)
	obj.friction, obj.restitution = 0.5, 0.8
	return obj
}
