package physics

import (
	"fmt"
	"log"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"x-voxels/backend/internal/core/domain/entity"
	port "x-voxels/backend/internal/core/port/out/physics"
)

// MotionState сущность приложения, от имени которой создается тело.
// Слой учета ей не владеет: он только читает ее поля и хранит в ней
// невладеющую обратную ссылку на тело.
type MotionState interface {
	ComputeShapeInfo() entity.ShapeDescriptor
	MotionType() entity.MotionType
	Mass() float32
	Friction() float32
	Restitution() float32
	// WorldTransform трансформ в координатах приложения
	WorldTransform() entity.Transform

	// ApplyVelocities переносит скорости сущности на ее тело
	ApplyVelocities()
	// ApplyGravity переносит гравитацию сущности на ее тело
	ApplyGravity()

	Body() port.RigidBody
	SetBody(body port.RigidBody)
}

// Stats сводка состояния движка
type Stats struct {
	Shapes       int     `json:"shapes"`
	ShapeRefs    int     `json:"shape_refs"`
	Voxels       int     `json:"voxels"`
	Bodies       int     `json:"bodies"`
	Steps        uint64  `json:"steps"`
	LastSubsteps int     `json:"last_substeps"`
	LastTimestep float32 `json:"last_timestep"`
}

// Engine владеет кэшем форм, реестром вокселей и телами сущностей поверх
// внешнего мира. Все методы вызываются из одной горутины симуляции.
type Engine struct {
	config *Config
	world  port.World
	shapes *ShapeCache
	voxels *VoxelRegistry
	clock  Clock
	logger *log.Logger

	bodies map[port.RigidBody]MotionState

	initialized bool
	closed      bool
	groundShape port.ShapeHandle
	ground      port.ColliderHandle

	lastStep     time.Time
	steps        uint64
	lastSubsteps int
	lastTimestep float32
}

// NewEngine создает движок поверх мира решателя
func NewEngine(world port.World, config *Config, logger *log.Logger) (*Engine, error) {
	if world == nil {
		return nil, fmt.Errorf("physics engine: world is nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("physics engine: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}

	shapes := NewShapeCache(world, config.MinShapeSize, config.MaxShapeSize, logger)
	e := &Engine{
		config: config,
		world:  world,
		shapes: shapes,
		voxels: NewVoxelRegistry(world, shapes, config.OriginOffset, config.PositionQuantum, logger),
		clock:  SystemClock{},
		logger: logger,
		bodies: make(map[port.RigidBody]MotionState),
	}
	e.lastStep = e.clock.Now()
	return e, nil
}

// SetClock подменяет часы и сбрасывает точку отсчета шага
func (e *Engine) SetClock(clock Clock) {
	e.clock = clock
	e.lastStep = clock.Now()
}

// Config возвращает конфигурацию движка
func (e *Engine) Config() Config {
	return *e.config
}

// Shapes кэш форм движка
func (e *Engine) Shapes() *ShapeCache {
	return e.shapes
}

// Voxels реестр вокселей движка
func (e *Engine) Voxels() *VoxelRegistry {
	return e.voxels
}

// Init добавляет страховочный пол. Повторные вызовы ничего не делают.
func (e *Engine) Init() {
	if e.initialized {
		return
	}
	e.initialized = true

	// пол не проходит через кэш форм: он больше MaxShapeSize
	// и живет до закрытия движка
	halfSide := e.config.GroundHalfSide
	halfHeight := e.config.GroundHalfHeight
	shape, err := e.world.CreateShape(entity.NewBoxShape(mgl32.Vec3{halfSide, halfHeight, halfSide}))
	if err != nil {
		panic(fmt.Sprintf("physics: ground shape: %v", err))
	}
	transform := entity.Transform{
		Origin:   mgl32.Vec3{halfSide, -halfHeight, halfSide},
		Rotation: mgl32.QuatIdent(),
	}
	e.groundShape = shape
	e.ground = e.world.NewCollider(shape, transform, port.CF_STATIC_OBJECT)
	e.world.AddCollider(e.ground)

	e.logger.Printf("[PhysicsEngine] Инициализирован: пол %.0fx%.0f, шаг %.4f с (подшаг %.4f с, до %d подшагов)",
		2*halfSide, 2*halfSide, e.config.MaxTimestep, e.config.FixedSubstep, e.config.MaxSubsteps)
}

// Close удаляет пол, оставшиеся воксели и тела и сообщает об утечках форм.
// Повторные вызовы ничего не делают.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.closed = true

	if n := len(e.bodies); n > 0 {
		e.logger.Printf("[PhysicsEngine] ПРЕДУПРЕЖДЕНИЕ: при закрытии осталось тел: %d", n)
		for _, state := range e.bodies {
			e.RemoveEntity(state)
		}
	}
	if n := e.voxels.Clear(); n > 0 {
		e.logger.Printf("[PhysicsEngine] При закрытии удалено вокселей: %d", n)
	}
	if e.initialized {
		e.world.RemoveCollider(e.ground)
		e.world.DestroyCollider(e.ground)
		e.world.DestroyShape(e.groundShape)
	}
	if leaked := e.shapes.reportLeaks(); leaked > 0 {
		e.logger.Printf("[PhysicsEngine] ПРЕДУПРЕЖДЕНИЕ: утечка форм: %d", leaked)
	}
	e.logger.Printf("[PhysicsEngine] Закрыт (выполнено шагов: %d)", e.steps)
}

// AddVoxel добавляет статический воксель с минимальным углом position и ребром scale
func (e *Engine) AddVoxel(position mgl32.Vec3, scale float32) bool {
	return e.voxels.Add(position, scale)
}

// RemoveVoxel удаляет воксель, добавленный с теми же аргументами
func (e *Engine) RemoveVoxel(position mgl32.Vec3, scale float32) bool {
	return e.voxels.Remove(position, scale)
}

// StepSimulation продвигает мир на время, прошедшее с прошлого вызова,
// но не более MaxTimestep. Возвращает число выполненных подшагов.
func (e *Engine) StepSimulation() int {
	now := e.clock.Now()
	dt := float32(now.Sub(e.lastStep).Seconds())
	// точка отсчета сбрасывается до шага: время работы решателя
	// войдет в следующий интервал
	e.lastStep = now

	timeStep := min(max(dt, 0), e.config.MaxTimestep)
	substeps := e.world.Advance(timeStep, e.config.MaxSubsteps, e.config.FixedSubstep)

	e.steps++
	e.lastSubsteps = substeps
	e.lastTimestep = timeStep
	return substeps
}

// Stats возвращает сводку состояния
func (e *Engine) Stats() Stats {
	return Stats{
		Shapes:       e.shapes.Len(),
		ShapeRefs:    e.shapes.TotalRefs(),
		Voxels:       e.voxels.Len(),
		Bodies:       len(e.bodies),
		Steps:        e.steps,
		LastSubsteps: e.lastSubsteps,
		LastTimestep: e.lastTimestep,
	}
}

// ToSimulationFrame переводит трансформ приложения в координаты решателя
func (e *Engine) ToSimulationFrame(t entity.Transform) entity.Transform {
	return t.Translated(e.config.OriginOffset.Mul(-1))
}

// ToWorldFrame переводит трансформ решателя в координаты приложения
func (e *Engine) ToWorldFrame(t entity.Transform) entity.Transform {
	return t.Translated(e.config.OriginOffset)
}
