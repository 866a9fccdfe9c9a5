package physics

import (
	"errors"
	"fmt"
	"log"

	"x-voxels/backend/internal/core/domain/entity"
	port "x-voxels/backend/internal/core/port/out/physics"
)

// ErrShapeOutOfRange форма вне поддерживаемого диапазона размеров
var ErrShapeOutOfRange = errors.New("shape size out of range")

// shapeReference запись кэша: одна на каждый различный дескриптор
type shapeReference struct {
	desc     entity.ShapeDescriptor
	handle   port.ShapeHandle
	refCount int
}

// ShapeCache дедуплицирует формы по структурному равенству дескрипторов
// и считает ссылки. Форма решателя удаляется ровно тогда, когда счетчик
// доходит до нуля.
type ShapeCache struct {
	factory  port.ShapeFactory
	logger   *log.Logger
	minDiag2 float32
	maxDiag2 float32

	byDesc   map[entity.ShapeDescriptor]*shapeReference
	byHandle map[port.ShapeHandle]*shapeReference
}

// NewShapeCache создает кэш форм с диапазоном размеров [minSize, maxSize]
func NewShapeCache(factory port.ShapeFactory, minSize, maxSize float32, logger *log.Logger) *ShapeCache {
	if logger == nil {
		logger = log.Default()
	}
	return &ShapeCache{
		factory: factory,
		logger:  logger,
		// размер сравнивается по диагонали ограничивающей коробки эквивалентного куба
		minDiag2: 3 * minSize * minSize,
		maxDiag2: 3 * maxSize * maxSize,
		byDesc:   make(map[entity.ShapeDescriptor]*shapeReference),
		byHandle: make(map[port.ShapeHandle]*shapeReference),
	}
}

// Acquire возвращает форму для дескриптора и увеличивает счетчик ссылок.
// Первая выдача строит форму в решателе.
func (c *ShapeCache) Acquire(desc entity.ShapeDescriptor) (port.ShapeHandle, error) {
	if ref, ok := c.byDesc[desc]; ok {
		ref.refCount++
		return ref.handle, nil
	}

	diag2 := desc.BoundingDiagonalSquared()
	if !desc.Valid() || diag2 < c.minDiag2 || diag2 > c.maxDiag2 {
		return 0, fmt.Errorf("acquire %s: %w", desc, ErrShapeOutOfRange)
	}

	handle, err := c.factory.CreateShape(desc)
	if err != nil {
		return 0, fmt.Errorf("acquire %s: %w: %v", desc, ErrShapeOutOfRange, err)
	}

	ref := &shapeReference{desc: desc, handle: handle, refCount: 1}
	c.byDesc[desc] = ref
	c.byHandle[handle] = ref
	return handle, nil
}

// Release уменьшает счетчик ссылок дескриптора. Возвращает true, если это
// была последняя ссылка и форма удалена. Освобождение формы, которую никто
// не получал, является ошибкой программы и вызывает панику.
func (c *ShapeCache) Release(desc entity.ShapeDescriptor) bool {
	ref, ok := c.byDesc[desc]
	if !ok {
		panic(fmt.Sprintf("physics: release of unknown shape %s", desc))
	}
	return c.release(ref)
}

// ReleaseHandle то же, что Release, но по ссылке на форму
func (c *ShapeCache) ReleaseHandle(handle port.ShapeHandle) bool {
	ref, ok := c.byHandle[handle]
	if !ok {
		panic(fmt.Sprintf("physics: release of unknown shape handle %d", handle))
	}
	return c.release(ref)
}

func (c *ShapeCache) release(ref *shapeReference) bool {
	ref.refCount--
	if ref.refCount > 0 {
		return false
	}
	delete(c.byDesc, ref.desc)
	delete(c.byHandle, ref.handle)
	c.factory.DestroyShape(ref.handle)
	return true
}

// RefCount число ссылок на дескриптор; 0 если записи нет
func (c *ShapeCache) RefCount(desc entity.ShapeDescriptor) int {
	if ref, ok := c.byDesc[desc]; ok {
		return ref.refCount
	}
	return 0
}

// Descriptor возвращает дескриптор, под которым закэширована форма
func (c *ShapeCache) Descriptor(handle port.ShapeHandle) (entity.ShapeDescriptor, bool) {
	if ref, ok := c.byHandle[handle]; ok {
		return ref.desc, true
	}
	return entity.ShapeDescriptor{}, false
}

// Len число различных форм в кэше
func (c *ShapeCache) Len() int {
	return len(c.byDesc)
}

// TotalRefs суммарное число ссылок
func (c *ShapeCache) TotalRefs() int {
	n := 0
	for _, ref := range c.byDesc {
		n += ref.refCount
	}
	return n
}

// reportLeaks пишет в лог формы, на которые остались ссылки
func (c *ShapeCache) reportLeaks() int {
	for _, ref := range c.byDesc {
		c.logger.Printf("[ShapeCache] ПРЕДУПРЕЖДЕНИЕ: форма %s осталась с %d ссылками", ref.desc, ref.refCount)
	}
	return len(c.byDesc)
}
