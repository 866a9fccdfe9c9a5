package telemetry

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"x-voxels/backend/internal/physics"
)

// StepSample состояние движка после одного шага
type StepSample struct {
	Timestamp int64   `json:"timestamp"`  // Время в миллисекундах
	Substeps  int     `json:"substeps"`   // Выполнено подшагов
	Timestep  float32 `json:"timestep"`   // Продвинутое время, секунды
	StepTime  float64 `json:"step_ms"`    // Время работы решателя, миллисекунды
	Shapes    int     `json:"shapes"`     // Уникальных форм
	ShapeRefs int     `json:"shape_refs"` // Ссылок на формы
	Voxels    int     `json:"voxels"`
	Bodies    int     `json:"bodies"`
}

// Summary агрегаты по буферу
type Summary struct {
	Samples       int         `json:"samples"`
	TotalSubsteps int         `json:"total_substeps"`
	IdleSteps     int         `json:"idle_steps"` // шаги без единого подшага
	AvgStepMs     float64     `json:"avg_step_ms"`
	MaxStepMs     float64     `json:"max_step_ms"`
	Last          *StepSample `json:"last,omitempty"`
}

// TelemetryManager хранит последние шаги движка и периодически выводит сводку
type TelemetryManager struct {
	enabled    bool
	data       []StepSample
	mutex      sync.RWMutex
	maxEntries int

	lastPrint     time.Time
	printInterval time.Duration
	logger        *log.Logger

	now func() time.Time
}

// NewTelemetryManager создает новый менеджер телеметрии
func NewTelemetryManager(maxEntries int, logger *log.Logger) *TelemetryManager {
	if maxEntries <= 0 {
		maxEntries = 200 // Храним последние 200 записей
	}
	if logger == nil {
		logger = log.Default()
	}
	return &TelemetryManager{
		enabled:       true,
		data:          make([]StepSample, 0, maxEntries),
		maxEntries:    maxEntries,
		lastPrint:     time.Now(),
		printInterval: 2 * time.Second, // Выводим сводку каждые 2 секунды
		logger:        logger,
		now:           time.Now,
	}
}

// RecordStep записывает результат шага
func (tm *TelemetryManager) RecordStep(stats physics.Stats, stepTime time.Duration) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	if !tm.enabled {
		return
	}

	tm.data = append(tm.data, StepSample{
		Timestamp: tm.now().UnixMilli(),
		Substeps:  stats.LastSubsteps,
		Timestep:  stats.LastTimestep,
		StepTime:  float64(stepTime) / float64(time.Millisecond),
		Shapes:    stats.Shapes,
		ShapeRefs: stats.ShapeRefs,
		Voxels:    stats.Voxels,
		Bodies:    stats.Bodies,
	})

	// Ограничиваем размер буфера
	if len(tm.data) > tm.maxEntries {
		tm.data = tm.data[len(tm.data)-tm.maxEntries:]
	}
}

// Summary считает агрегаты по текущему буферу
func (tm *TelemetryManager) Summary() Summary {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()
	return tm.summaryLocked()
}

func (tm *TelemetryManager) summaryLocked() Summary {
	s := Summary{Samples: len(tm.data)}
	if len(tm.data) == 0 {
		return s
	}

	var totalMs float64
	for _, sample := range tm.data {
		s.TotalSubsteps += sample.Substeps
		if sample.Substeps == 0 {
			s.IdleSteps++
		}
		totalMs += sample.StepTime
		s.MaxStepMs = max(s.MaxStepMs, sample.StepTime)
	}
	s.AvgStepMs = totalMs / float64(len(tm.data))
	last := tm.data[len(tm.data)-1]
	s.Last = &last
	return s
}

// PrintSummary выводит сводку, если с прошлого вывода прошло printInterval.
// Возвращает true, если сводка выведена.
func (tm *TelemetryManager) PrintSummary() bool {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	if !tm.enabled {
		return false
	}
	now := tm.now()
	if now.Sub(tm.lastPrint) < tm.printInterval {
		return false
	}
	tm.lastPrint = now

	s := tm.summaryLocked()
	tm.logger.Printf("🔬 [Telemetry] Шагов: %d, подшагов: %d, пустых: %d, шаг %.3f мс (макс %.3f мс)",
		s.Samples, s.TotalSubsteps, s.IdleSteps, s.AvgStepMs, s.MaxStepMs)
	if s.Last != nil {
		tm.logger.Printf("📊 [Telemetry] Форм: %d (ссылок %d), вокселей: %d, тел: %d",
			s.Last.Shapes, s.Last.ShapeRefs, s.Last.Voxels, s.Last.Bodies)
	}
	return true
}

// GetTelemetryJSON возвращает сводку и последние записи в JSON формате
func (tm *TelemetryManager) GetTelemetryJSON() (string, error) {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	payload := struct {
		Summary Summary      `json:"summary"`
		Samples []StepSample `json:"samples"`
	}{
		Summary: tm.summaryLocked(),
		Samples: tm.data,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

// SetEnabled включает/выключает телеметрию
func (tm *TelemetryManager) SetEnabled(enabled bool) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	tm.enabled = enabled
	tm.logger.Printf("🔬 [Telemetry] Телеметрия %s", map[bool]string{true: "включена", false: "выключена"}[enabled])
}

// SetPrintInterval меняет период вывода сводки
func (tm *TelemetryManager) SetPrintInterval(interval time.Duration) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()
	tm.printInterval = interval
}

// Len число записей в буфере
func (tm *TelemetryManager) Len() int {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()
	return len(tm.data)
}

// Clear очищает все данные телеметрии
func (tm *TelemetryManager) Clear() {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()
	tm.data = tm.data[:0]
}
