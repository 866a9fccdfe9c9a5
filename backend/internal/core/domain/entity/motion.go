package entity

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// MotionType способ движения тела в симуляции
type MotionType int

const (
	// MotionStatic неподвижное тело с бесконечной массой
	MotionStatic MotionType = iota
	// MotionKinematic тело, движимое извне; не интегрируется и никогда не засыпает
	MotionKinematic
	// MotionDynamic тело с конечной массой, движимое силами и импульсами
	MotionDynamic
)

func (m MotionType) String() string {
	switch m {
	case MotionKinematic:
		return "kinematic"
	case MotionDynamic:
		return "dynamic"
	default:
		return "static"
	}
}

// ParseMotionType разбирает имя типа движения; пустая строка означает static
func ParseMotionType(name string) (MotionType, error) {
	switch name {
	case "", "static":
		return MotionStatic, nil
	case "kinematic":
		return MotionKinematic, nil
	case "dynamic":
		return MotionDynamic, nil
	default:
		return MotionStatic, fmt.Errorf("неизвестный тип движения: %q", name)
	}
}

// UpdateFlags набор флагов изменений сущности.
//
// Правила совместного появления:
//   - UpdateShape всегда идет вместе с UpdateMass (инерция зависит от геометрии)
//   - UpdateShape подразумевает UpdateHard (тело нужно вынуть из мира и вставить заново)
//   - UpdateHard выполняет и поля Easy, если UpdateEasy тоже выставлен
type UpdateFlags uint32

const (
	UpdatePosition UpdateFlags = 1 << iota
	UpdateVelocity
	UpdateMass
	UpdateShape
	UpdateEasy
	UpdateHard

	UpdateNone UpdateFlags = 0
)

// Has проверяет, что выставлены все биты mask
func (f UpdateFlags) Has(mask UpdateFlags) bool {
	return f&mask == mask
}

// Any проверяет, что выставлен хотя бы один бит mask
func (f UpdateFlags) Any(mask UpdateFlags) bool {
	return f&mask != 0
}

// Normalize добавляет подразумеваемые флаги: Shape влечет Hard.
// Shape без Mass не исправляется здесь: это ошибка вызывающего кода.
func (f UpdateFlags) Normalize() UpdateFlags {
	if f.Has(UpdateShape) {
		f |= UpdateHard
	}
	return f
}

var updateFlagNames = []struct {
	flag UpdateFlags
	name string
}{
	{UpdatePosition, "position"},
	{UpdateVelocity, "velocity"},
	{UpdateMass, "mass"},
	{UpdateShape, "shape"},
	{UpdateEasy, "easy"},
	{UpdateHard, "hard"},
}

func (f UpdateFlags) String() string {
	if f == UpdateNone {
		return "none"
	}
	parts := make([]string, 0, len(updateFlagNames))
	for _, n := range updateFlagNames {
		if f.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Transform положение и ориентация в пространстве
type Transform struct {
	Origin   mgl32.Vec3
	Rotation mgl32.Quat
}

// IdentityTransform трансформ в начале координат без поворота
func IdentityTransform() Transform {
	return Transform{Rotation: mgl32.QuatIdent()}
}

// Translated возвращает трансформ, смещенный на offset
func (t Transform) Translated(offset mgl32.Vec3) Transform {
	return Transform{Origin: t.Origin.Add(offset), Rotation: t.Rotation}
}
