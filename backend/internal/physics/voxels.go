package physics

import (
	"log"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"x-voxels/backend/internal/core/domain/entity"
	port "x-voxels/backend/internal/core/port/out/physics"
)

// PositionKey квантованная позиция центра вокселя
type PositionKey [3]int64

// NewPositionKey квантует точку с шагом quantum
func NewPositionKey(p mgl32.Vec3, quantum float32) PositionKey {
	q := float64(quantum)
	return PositionKey{
		int64(math.Round(float64(p[0]) / q)),
		int64(math.Round(float64(p[1]) / q)),
		int64(math.Round(float64(p[2]) / q)),
	}
}

// maxQuantizedCoord предел квантованной координаты: до него float64
// представляет целые точно и преобразование в int64 определено
const maxQuantizedCoord = 1 << 53

// quantizable сообщает, можно ли построить ключ для точки с шагом quantum
func quantizable(p mgl32.Vec3, quantum float32) bool {
	q := float64(quantum)
	for _, v := range p {
		c := float64(v) / q
		if math.IsNaN(c) || math.IsInf(c, 0) || math.Abs(c) > maxQuantizedCoord {
			return false
		}
	}
	return true
}

// voxelProxy статический коллайдер вокселя
type voxelProxy struct {
	center   mgl32.Vec3
	collider port.ColliderHandle
	shape    entity.ShapeDescriptor
}

// VoxelRegistry хранит коллайдеры вокселей по позиции центра,
// не допуская двух коллайдеров в одной точке
type VoxelRegistry struct {
	world        port.ColliderWorld
	shapes       *ShapeCache
	originOffset mgl32.Vec3
	quantum      float32
	logger       *log.Logger

	voxels map[PositionKey]*voxelProxy
}

// NewVoxelRegistry создает реестр вокселей
func NewVoxelRegistry(world port.ColliderWorld, shapes *ShapeCache, originOffset mgl32.Vec3, quantum float32, logger *log.Logger) *VoxelRegistry {
	if logger == nil {
		logger = log.Default()
	}
	return &VoxelRegistry{
		world:        world,
		shapes:       shapes,
		originOffset: originOffset,
		quantum:      quantum,
		logger:       logger,
		voxels:       make(map[PositionKey]*voxelProxy),
	}
}

// voxelGeometry возвращает половины размеров и истинный центр вокселя,
// заданного минимальным углом и длиной ребра
func voxelGeometry(position mgl32.Vec3, scale float32) (halfExtents, center mgl32.Vec3) {
	h := 0.5 * scale
	halfExtents = mgl32.Vec3{h, h, h}
	return halfExtents, position.Add(halfExtents)
}

// geometry как voxelGeometry, но отвергает нечисловые и слишком большие
// значения, для которых ключ позиции не определен
func (r *VoxelRegistry) geometry(position mgl32.Vec3, scale float32) (halfExtents, center mgl32.Vec3, ok bool) {
	s := float64(scale)
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return halfExtents, center, false
	}
	halfExtents, center = voxelGeometry(position, scale)
	if !quantizable(center, r.quantum) {
		return halfExtents, center, false
	}
	return halfExtents, center, true
}

// Add добавляет воксель. Возвращает false, если воксель в этой точке уже
// есть или его размер вне допустимого диапазона.
func (r *VoxelRegistry) Add(position mgl32.Vec3, scale float32) bool {
	halfExtents, center, ok := r.geometry(position, scale)
	if !ok {
		r.logger.Printf("[VoxelRegistry] Воксель отклонен: позиция %v, размер %v", position, scale)
		return false
	}
	key := NewPositionKey(center, r.quantum)
	if _, exists := r.voxels[key]; exists {
		return false
	}

	desc := entity.NewBoxShape(halfExtents)
	shape, err := r.shapes.Acquire(desc)
	if err != nil {
		r.logger.Printf("[VoxelRegistry] Воксель в (%.2f, %.2f, %.2f) не добавлен: %v",
			position.X(), position.Y(), position.Z(), err)
		return false
	}

	// центр переносится в систему координат симуляции
	shifted := position.Sub(r.originOffset).Add(halfExtents)
	transform := entity.Transform{Origin: shifted, Rotation: mgl32.QuatIdent()}
	collider := r.world.NewCollider(shape, transform, port.CF_STATIC_OBJECT)

	r.voxels[key] = &voxelProxy{center: center, collider: collider, shape: desc}
	r.world.AddCollider(collider)
	return true
}

// Remove удаляет воксель. Возвращает false, если вокселя в этой точке нет.
func (r *VoxelRegistry) Remove(position mgl32.Vec3, scale float32) bool {
	_, center, ok := r.geometry(position, scale)
	if !ok {
		return false
	}
	key := NewPositionKey(center, r.quantum)
	proxy, exists := r.voxels[key]
	if !exists {
		return false
	}

	r.world.RemoveCollider(proxy.collider)
	// паникует, если кэш и реестр разошлись во владении формой
	r.shapes.Release(proxy.shape)
	r.world.DestroyCollider(proxy.collider)
	delete(r.voxels, key)
	return true
}

// Contains сообщает, есть ли воксель с такими координатами и размером
func (r *VoxelRegistry) Contains(position mgl32.Vec3, scale float32) bool {
	_, center, ok := r.geometry(position, scale)
	if !ok {
		return false
	}
	_, exists := r.voxels[NewPositionKey(center, r.quantum)]
	return exists
}

// Len число вокселей в реестре
func (r *VoxelRegistry) Len() int {
	return len(r.voxels)
}

// Clear удаляет все воксели; используется при закрытии движка
func (r *VoxelRegistry) Clear() int {
	n := 0
	for key, proxy := range r.voxels {
		r.world.RemoveCollider(proxy.collider)
		r.shapes.Release(proxy.shape)
		r.world.DestroyCollider(proxy.collider)
		delete(r.voxels, key)
		n++
	}
	return n
}
