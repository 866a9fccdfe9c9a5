package entity

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// ShapeType вид геометрического примитива
type ShapeType int

const (
	SHAPE_INVALID ShapeType = iota
	BOX
	SPHERE
	CAPSULE
)

func (t ShapeType) String() string {
	switch t {
	case BOX:
		return "box"
	case SPHERE:
		return "sphere"
	case CAPSULE:
		return "capsule"
	default:
		return "invalid"
	}
}

// ParseShapeType разбирает имя формы из сетевых сообщений
func ParseShapeType(name string) (ShapeType, error) {
	switch name {
	case "box":
		return BOX, nil
	case "sphere":
		return SPHERE, nil
	case "capsule":
		return CAPSULE, nil
	default:
		return SHAPE_INVALID, fmt.Errorf("неизвестный тип формы: %q", name)
	}
}

// ShapeDescriptor описывает геометрию формы. Это значение без собственной
// идентичности: два дескриптора с одинаковой геометрией взаимозаменяемы,
// поэтому структура сравнима и годится как ключ map.
//
// Значение HalfExtents зависит от типа:
//   - BOX: половины размеров по осям
//   - SPHERE: X = радиус
//   - CAPSULE: X = радиус, Y = половина высоты цилиндрической части
type ShapeDescriptor struct {
	Type        ShapeType
	HalfExtents mgl32.Vec3
}

// NewBoxShape создает дескриптор коробки по половинам размеров
func NewBoxShape(halfExtents mgl32.Vec3) ShapeDescriptor {
	return ShapeDescriptor{Type: BOX, HalfExtents: halfExtents}
}

// NewSphereShape создает дескриптор сферы
func NewSphereShape(radius float32) ShapeDescriptor {
	return ShapeDescriptor{Type: SPHERE, HalfExtents: mgl32.Vec3{radius, 0, 0}}
}

// NewCapsuleShape создает дескриптор капсулы, ориентированной по оси Y
func NewCapsuleShape(radius, halfHeight float32) ShapeDescriptor {
	return ShapeDescriptor{Type: CAPSULE, HalfExtents: mgl32.Vec3{radius, halfHeight, 0}}
}

// BoundingHalfExtents возвращает половины размеров ограничивающей коробки
func (d ShapeDescriptor) BoundingHalfExtents() mgl32.Vec3 {
	switch d.Type {
	case BOX:
		return d.HalfExtents
	case SPHERE:
		r := d.HalfExtents.X()
		return mgl32.Vec3{r, r, r}
	case CAPSULE:
		r := d.HalfExtents.X()
		return mgl32.Vec3{r, r + d.HalfExtents.Y(), r}
	default:
		return mgl32.Vec3{}
	}
}

// BoundingDiagonalSquared квадрат диагонали полной ограничивающей коробки
func (d ShapeDescriptor) BoundingDiagonalSquared() float32 {
	return d.BoundingHalfExtents().Mul(2).LenSqr()
}

// Valid сообщает, описывает ли дескриптор реальную геометрию
func (d ShapeDescriptor) Valid() bool {
	switch d.Type {
	case BOX:
		return d.HalfExtents.X() > 0 && d.HalfExtents.Y() > 0 && d.HalfExtents.Z() > 0
	case SPHERE:
		return d.HalfExtents.X() > 0
	case CAPSULE:
		return d.HalfExtents.X() > 0 && d.HalfExtents.Y() >= 0
	default:
		return false
	}
}

func (d ShapeDescriptor) String() string {
	return fmt.Sprintf("%s(%.3f, %.3f, %.3f)", d.Type,
		d.HalfExtents.X(), d.HalfExtents.Y(), d.HalfExtents.Z())
}
