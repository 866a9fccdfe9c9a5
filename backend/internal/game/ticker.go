package game

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// GameTicker цикл симуляции с фиксированной частотой тиков.
// Все системы и команды очереди выполняются в его горутине,
// поэтому физика вызывается только из одного потока.
type GameTicker struct {
	// Конфигурация
	targetTPS    int           // Целевая частота тиков в секунду
	tickDuration time.Duration // Длительность одного тика
	maxTickTime  time.Duration // Максимальное время на один тик

	// Состояние
	isRunning    atomic.Bool
	isPaused     atomic.Bool
	tickCount    atomic.Uint64
	startTime    time.Time
	lastTickTime time.Time

	// Очередь команд из других горутин
	commands *CommandQueue

	// Системы
	systems      []TickSystem
	systemsMutex sync.RWMutex

	// Мониторинг производительности
	perfMonitor *PerformanceMonitor

	// Управление
	ctx       context.Context
	cancel    context.CancelFunc
	pauseChan chan bool
	done      chan struct{}

	// Метрики
	metricsMutex      sync.Mutex
	averageTickTime   time.Duration
	maxObservedTick   time.Duration
	skippedTicks      uint64
	commandsProcessed uint64

	// Логирование
	logger           *log.Logger
	warningThreshold time.Duration
}

// TickSystem интерфейс для всех систем цикла
type TickSystem interface {
	Update(deltaTime time.Duration) error
	GetName() string
	GetPriority() int // Приоритет выполнения (меньше = раньше)
}

// PerformanceMonitor отслеживает производительность каждой системы
type PerformanceMonitor struct {
	systemMetrics map[string]*SystemMetrics
	mutex         sync.RWMutex

	// Настройки мониторинга
	metricsWindow     int           // Количество последних тиков для усреднения
	warningThreshold  time.Duration // Порог предупреждения для системы
	criticalThreshold time.Duration // Критический порог
}

// SystemMetrics метрики производительности системы
type SystemMetrics struct {
	Name              string
	LastExecutionTime time.Duration
	AverageTime       time.Duration
	MaxTime           time.Duration
	TotalExecutions   uint64
	Errors            uint64

	// Скользящее окно для вычисления среднего
	recentTimes  []time.Duration
	recentIndex  int
	windowFilled bool
}

// NewGameTicker создает новый тикер
func NewGameTicker(targetTPS int, commands *CommandQueue, logger *log.Logger) *GameTicker {
	if targetTPS <= 0 {
		targetTPS = 60
	}

	if logger == nil {
		logger = log.Default()
	}

	if commands == nil {
		commands = NewCommandQueue(0)
	}

	tickDuration := time.Second / time.Duration(targetTPS)
	maxTickTime := tickDuration * 2 // Максимум в 2 раза больше целевого времени

	ctx, cancel := context.WithCancel(context.Background())

	return &GameTicker{
		targetTPS:        targetTPS,
		tickDuration:     tickDuration,
		maxTickTime:      maxTickTime,
		commands:         commands,
		systems:          make([]TickSystem, 0),
		perfMonitor:      NewPerformanceMonitor(50, tickDuration/4), // Предупреждение при 25% от тика
		ctx:              ctx,
		cancel:           cancel,
		pauseChan:        make(chan bool, 1),
		done:             make(chan struct{}),
		logger:           logger,
		warningThreshold: tickDuration / 2, // Предупреждение при 50% от времени тика
	}
}

// NewPerformanceMonitor создает новый монитор производительности
func NewPerformanceMonitor(windowSize int, warningThreshold time.Duration) *PerformanceMonitor {
	return &PerformanceMonitor{
		systemMetrics:     make(map[string]*SystemMetrics),
		metricsWindow:     windowSize,
		warningThreshold:  warningThreshold,
		criticalThreshold: warningThreshold * 2,
	}
}

// Commands очередь команд тикера
func (gt *GameTicker) Commands() *CommandQueue {
	return gt.commands
}

// Start запускает цикл
func (gt *GameTicker) Start() error {
	if !gt.isRunning.CompareAndSwap(false, true) {
		return nil // Уже запущен
	}

	gt.startTime = time.Now()
	gt.lastTickTime = gt.startTime

	gt.logger.Printf("[GameTicker] Запуск цикла симуляции: %d TPS (тик каждые %v)",
		gt.targetTPS, gt.tickDuration)

	go gt.gameLoop()

	return nil
}

// Stop останавливает цикл и ждет завершения текущего тика.
// Команды, оставшиеся в очереди, отклоняются.
func (gt *GameTicker) Stop() {
	if !gt.isRunning.CompareAndSwap(true, false) {
		return
	}

	gt.cancel()
	<-gt.done
	if n := gt.commands.Close(); n > 0 {
		gt.logger.Printf("[GameTicker] Отклонено команд при остановке: %d", n)
	}

	gt.logger.Printf("[GameTicker] Остановка цикла симуляции (выполнено тиков: %d)", gt.tickCount.Load())
}

// Pause приостанавливает выполнение тиков
func (gt *GameTicker) Pause() {
	if gt.isPaused.CompareAndSwap(false, true) {
		select {
		case gt.pauseChan <- true:
		case <-gt.ctx.Done():
		}
	}
}

// Resume возобновляет выполнение тиков
func (gt *GameTicker) Resume() {
	if gt.isPaused.CompareAndSwap(true, false) {
		select {
		case gt.pauseChan <- false:
		case <-gt.ctx.Done():
		}
	}
}

// RegisterSystem добавляет систему в цикл
func (gt *GameTicker) RegisterSystem(system TickSystem) {
	gt.systemsMutex.Lock()
	defer gt.systemsMutex.Unlock()

	gt.systems = append(gt.systems, system)

	// Сортируем по приоритету (меньше = выше приоритет)
	for i := len(gt.systems) - 1; i > 0; i-- {
		if gt.systems[i].GetPriority() < gt.systems[i-1].GetPriority() {
			gt.systems[i], gt.systems[i-1] = gt.systems[i-1], gt.systems[i]
		} else {
			break
		}
	}

	gt.perfMonitor.initSystemMetrics(system.GetName())

	gt.logger.Printf("[GameTicker] Зарегистрирована система: %s (приоритет: %d)",
		system.GetName(), system.GetPriority())
}

// gameLoop основной цикл
func (gt *GameTicker) gameLoop() {
	defer close(gt.done)

	ticker := time.NewTicker(gt.tickDuration)
	defer ticker.Stop()

	for {
		select {
		case <-gt.ctx.Done():
			return

		case pause := <-gt.pauseChan:
			// Ждем команды возобновления
			for pause {
				select {
				case <-gt.ctx.Done():
					return
				case pause = <-gt.pauseChan:
				}
			}

		case tickTime := <-ticker.C:
			gt.executeTick(tickTime)
		}
	}
}

// executeTick выполняет один тик: сначала команды, затем системы
func (gt *GameTicker) executeTick(tickTime time.Time) {
	tickStart := time.Now()
	deltaTime := tickTime.Sub(gt.lastTickTime)

	// Проверяем, не слишком ли большая задержка между тиками
	if deltaTime > gt.tickDuration*2 {
		gt.logger.Printf("[GameTicker] ПРЕДУПРЕЖДЕНИЕ: Большая задержка между тиками: %v (ожидалось: %v)",
			deltaTime, gt.tickDuration)
		gt.metricsMutex.Lock()
		gt.skippedTicks++
		gt.metricsMutex.Unlock()
	}

	gt.tickCount.Add(1)
	gt.lastTickTime = tickTime

	processed := gt.commands.Drain()

	gt.executeAllSystems(deltaTime)

	totalTickTime := time.Since(tickStart)
	gt.updateTickMetrics(totalTickTime, processed)

	gt.checkPerformance(totalTickTime)
}

// executeAllSystems выполняет все зарегистрированные системы
func (gt *GameTicker) executeAllSystems(deltaTime time.Duration) {
	gt.systemsMutex.RLock()
	systems := make([]TickSystem, len(gt.systems))
	copy(systems, gt.systems)
	gt.systemsMutex.RUnlock()

	for _, system := range systems {
		gt.executeSystem(system, deltaTime)
	}
}

// executeSystem выполняет одну систему с замером времени.
// Паника системы не останавливает цикл.
func (gt *GameTicker) executeSystem(system TickSystem, deltaTime time.Duration) {
	systemStart := time.Now()
	systemName := system.GetName()

	defer func() {
		if r := recover(); r != nil {
			gt.logger.Printf("[GameTicker] КРИТИЧЕСКАЯ ОШИБКА в системе %s: %v", systemName, r)
			gt.perfMonitor.recordError(systemName)
		}
	}()

	err := system.Update(deltaTime)

	executionTime := time.Since(systemStart)
	gt.perfMonitor.recordExecution(systemName, executionTime)

	if err != nil {
		gt.logger.Printf("[GameTicker] Ошибка в системе %s: %v", systemName, err)
		gt.perfMonitor.recordError(systemName)
	}
}

// GetStats возвращает статистику цикла
func (gt *GameTicker) GetStats() map[string]interface{} {
	gt.metricsMutex.Lock()
	defer gt.metricsMutex.Unlock()

	gt.systemsMutex.RLock()
	systemsCount := len(gt.systems)
	gt.systemsMutex.RUnlock()

	tickCount := gt.tickCount.Load()
	actualTPS := 0.0
	uptime := time.Duration(0)
	if !gt.startTime.IsZero() {
		uptime = time.Since(gt.startTime)
		actualTPS = float64(tickCount) / uptime.Seconds()
	}

	return map[string]interface{}{
		"target_tps":         gt.targetTPS,
		"actual_tps":         actualTPS,
		"tick_count":         tickCount,
		"uptime_seconds":     uptime.Seconds(),
		"average_tick_time":  gt.averageTickTime,
		"max_observed_tick":  gt.maxObservedTick,
		"skipped_ticks":      gt.skippedTicks,
		"commands_processed": gt.commandsProcessed,
		"pending_commands":   gt.commands.Len(),
		"is_running":         gt.isRunning.Load(),
		"is_paused":          gt.isPaused.Load(),
		"systems_count":      systemsCount,
	}
}

// GetTickCount возвращает текущее количество тиков
func (gt *GameTicker) GetTickCount() uint64 {
	return gt.tickCount.Load()
}

// GetSystemsStats возвращает метрики систем
func (gt *GameTicker) GetSystemsStats() map[string]interface{} {
	return gt.perfMonitor.GetSystemsStats()
}

// Вспомогательные методы для мониторинга производительности
func (pm *PerformanceMonitor) initSystemMetrics(systemName string) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	pm.systemMetrics[systemName] = &SystemMetrics{
		Name:        systemName,
		recentTimes: make([]time.Duration, pm.metricsWindow),
	}
}

func (pm *PerformanceMonitor) recordExecution(systemName string, executionTime time.Duration) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	metrics, exists := pm.systemMetrics[systemName]
	if !exists {
		return
	}

	metrics.LastExecutionTime = executionTime
	metrics.TotalExecutions++

	if executionTime > metrics.MaxTime {
		metrics.MaxTime = executionTime
	}

	// Добавляем в скользящее окно
	metrics.recentTimes[metrics.recentIndex] = executionTime
	metrics.recentIndex = (metrics.recentIndex + 1) % pm.metricsWindow

	if !metrics.windowFilled && metrics.recentIndex == 0 {
		metrics.windowFilled = true
	}

	pm.recalculateAverage(metrics)
}

func (pm *PerformanceMonitor) recordError(systemName string) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if metrics, exists := pm.systemMetrics[systemName]; exists {
		metrics.Errors++
	}
}

func (pm *PerformanceMonitor) recalculateAverage(metrics *SystemMetrics) {
	var total time.Duration

	limit := pm.metricsWindow
	if !metrics.windowFilled {
		limit = metrics.recentIndex
	}

	for i := 0; i < limit; i++ {
		total += metrics.recentTimes[i]
	}

	if limit > 0 {
		metrics.AverageTime = total / time.Duration(limit)
	}
}

// SystemMetrics возвращает копию метрик системы
func (pm *PerformanceMonitor) SystemMetrics(systemName string) (SystemMetrics, bool) {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	metrics, exists := pm.systemMetrics[systemName]
	if !exists {
		return SystemMetrics{}, false
	}
	out := *metrics
	out.recentTimes = nil
	return out, true
}

func (pm *PerformanceMonitor) GetSystemsStats() map[string]interface{} {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	systemsStats := make(map[string]interface{})

	for name, metrics := range pm.systemMetrics {
		systemsStats[name] = map[string]interface{}{
			"last_execution_time": metrics.LastExecutionTime,
			"average_time":        metrics.AverageTime,
			"max_time":            metrics.MaxTime,
			"total_executions":    metrics.TotalExecutions,
			"errors":              metrics.Errors,
		}
	}

	return systemsStats
}

func (gt *GameTicker) updateTickMetrics(tickTime time.Duration, commands int) {
	gt.metricsMutex.Lock()
	defer gt.metricsMutex.Unlock()

	gt.commandsProcessed += uint64(commands)

	if tickTime > gt.maxObservedTick {
		gt.maxObservedTick = tickTime
	}

	// Простое скользящее среднее
	if gt.averageTickTime == 0 {
		gt.averageTickTime = tickTime
	} else {
		gt.averageTickTime = (gt.averageTickTime*9 + tickTime) / 10
	}
}

func (gt *GameTicker) checkPerformance(tickTime time.Duration) {
	if tickTime > gt.maxTickTime {
		gt.logger.Printf("[GameTicker] КРИТИЧЕСКОЕ ПРЕДУПРЕЖДЕНИЕ: Тик превысил максимальное время! %v > %v (цель: %v)",
			tickTime, gt.maxTickTime, gt.tickDuration)
	} else if tickTime > gt.warningThreshold {
		gt.logger.Printf("[GameTicker] ПРЕДУПРЕЖДЕНИЕ: Медленный тик: %v (цель: %v)",
			tickTime, gt.tickDuration)
	}
}
