package physics

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Config настройки слоя учета физики
type Config struct {
	// MaxTimestep - максимальный шаг за один вызов StepSimulation, секунды
	MaxTimestep float32

	// MaxSubsteps - максимальное число внутренних подшагов за вызов
	MaxSubsteps int

	// FixedSubstep - длительность внутреннего подшага, секунды
	FixedSubstep float32

	// OriginOffset - сдвиг начала координат симуляции относительно мира приложения,
	// чтобы координаты в решателе оставались малыми
	OriginOffset mgl32.Vec3

	// MinShapeSize / MaxShapeSize - допустимый размер формы (ребро эквивалентного куба), метры
	MinShapeSize float32
	MaxShapeSize float32

	// GroundHalfSide / GroundHalfHeight - размеры страховочного пола
	GroundHalfSide   float32
	GroundHalfHeight float32

	// PositionQuantum - шаг квантования позиции вокселя для ключа реестра, метры
	PositionQuantum float32
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		MaxTimestep:      1.0 / 30.0,
		MaxSubsteps:      2,
		FixedSubstep:     1.0 / 60.0,
		MinShapeSize:     0.01,  // 1 см
		MaxShapeSize:     100.0, // 100 м
		GroundHalfSide:   200.0,
		GroundHalfHeight: 1.0,
		PositionQuantum:  0.001, // 1 мм
	}
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	var errs []error
	if c.MaxTimestep <= 0 {
		errs = append(errs, fmt.Errorf("MaxTimestep должен быть > 0, получено %v", c.MaxTimestep))
	}
	if c.FixedSubstep <= 0 {
		errs = append(errs, fmt.Errorf("FixedSubstep должен быть > 0, получено %v", c.FixedSubstep))
	}
	if c.MaxSubsteps < 1 {
		errs = append(errs, fmt.Errorf("MaxSubsteps должен быть >= 1, получено %d", c.MaxSubsteps))
	}
	if c.MinShapeSize <= 0 || c.MaxShapeSize <= c.MinShapeSize {
		errs = append(errs, fmt.Errorf("неверный диапазон размеров формы [%v, %v]", c.MinShapeSize, c.MaxShapeSize))
	}
	if c.GroundHalfSide <= 0 || c.GroundHalfHeight <= 0 {
		errs = append(errs, fmt.Errorf("неверные размеры пола %v x %v", c.GroundHalfSide, c.GroundHalfHeight))
	}
	if c.PositionQuantum <= 0 {
		errs = append(errs, fmt.Errorf("PositionQuantum должен быть > 0, получено %v", c.PositionQuantum))
	}
	return errors.Join(errs...)
}
