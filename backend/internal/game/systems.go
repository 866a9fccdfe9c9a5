package game

import (
	"log"
	"time"

	"x-voxels/backend/internal/physics"
	"x-voxels/backend/internal/world"
)

// StepRecorder получает результат каждого шага физики
type StepRecorder interface {
	RecordStep(stats physics.Stats, stepTime time.Duration)
}

// PhysicsSystem применяет изменения объектов, продвигает физику
// и возвращает результат шага в объекты мира
type PhysicsSystem struct {
	name     string
	priority int
	factory  *world.Factory
	recorder StepRecorder
	logger   *log.Logger
}

// NewPhysicsSystem создает систему физики; recorder может быть nil
func NewPhysicsSystem(factory *world.Factory, recorder StepRecorder, logger *log.Logger) *PhysicsSystem {
	if logger == nil {
		logger = log.Default()
	}
	return &PhysicsSystem{
		name:     "PhysicsSystem",
		priority: 10,
		factory:  factory,
		recorder: recorder,
		logger:   logger,
	}
}

// Update выполняет один шаг физики
func (ps *PhysicsSystem) Update(deltaTime time.Duration) error {
	ps.factory.ApplyAll()

	engine := ps.factory.Engine()
	stepStart := time.Now()
	engine.StepSimulation()
	stepTime := time.Since(stepStart)

	ps.factory.SyncFromBodies()

	if ps.recorder != nil {
		ps.recorder.RecordStep(engine.Stats(), stepTime)
	}
	return nil
}

// GetName возвращает имя системы
func (ps *PhysicsSystem) GetName() string {
	return ps.name
}

// GetPriority возвращает приоритет системы
func (ps *PhysicsSystem) GetPriority() int {
	return ps.priority
}

// SummaryPrinter выводит периодическую сводку
type SummaryPrinter interface {
	PrintSummary() bool
}

// MetricsSystem периодически логирует метрики цикла и сводку телеметрии
type MetricsSystem struct {
	name       string
	priority   int
	gameTicker *GameTicker
	summary    SummaryPrinter
	logger     *log.Logger

	lastMetricsLog  time.Time
	metricsInterval time.Duration
}

// NewMetricsSystem создает новую систему сбора метрик
func NewMetricsSystem(gameTicker *GameTicker, summary SummaryPrinter, logger *log.Logger) *MetricsSystem {
	if logger == nil {
		logger = log.Default()
	}
	return &MetricsSystem{
		name:            "MetricsSystem",
		priority:        200, // Метрики в самом конце тика
		gameTicker:      gameTicker,
		summary:         summary,
		logger:          logger,
		lastMetricsLog:  time.Now(),
		metricsInterval: 30 * time.Second, // Логируем метрики каждые 30 секунд
	}
}

// Update собирает и логирует метрики
func (ms *MetricsSystem) Update(deltaTime time.Duration) error {
	if ms.summary != nil {
		ms.summary.PrintSummary()
	}

	now := time.Now()
	if now.Sub(ms.lastMetricsLog) < ms.metricsInterval {
		return nil
	}
	ms.lastMetricsLog = now

	stats := ms.gameTicker.GetStats()
	ms.logger.Printf("[Metrics] TPS: %.1f/%d, Тиков: %d, Время тика: %v, Команд: %d",
		stats["actual_tps"], stats["target_tps"], stats["tick_count"],
		stats["average_tick_time"], stats["commands_processed"])

	if actualTPS := stats["actual_tps"].(float64); actualTPS < float64(stats["target_tps"].(int))*0.9 {
		ms.logger.Printf("[Metrics] ПРЕДУПРЕЖДЕНИЕ: TPS снижен до %.1f", actualTPS)
	}

	return nil
}

// GetName возвращает имя системы
func (ms *MetricsSystem) GetName() string {
	return ms.name
}

// GetPriority возвращает приоритет системы
func (ms *MetricsSystem) GetPriority() int {
	return ms.priority
}
