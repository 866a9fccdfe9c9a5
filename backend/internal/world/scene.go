package world

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"x-voxels/backend/internal/core/domain/entity"
)

// SceneConfig параметры демонстрационной сцены
type SceneConfig struct {
	// Origin - минимальный угол террейна в координатах мира
	Origin mgl32.Vec3

	// Размер карты высот в столбцах и максимальная высота столбца
	TerrainSize int
	MaxHeight   int

	// VoxelScale - ребро вокселя, метры
	VoxelScale float32

	// Boxes - число динамических коробок, падающих на террейн
	Boxes int
}

// DefaultSceneConfig возвращает сцену по умолчанию
func DefaultSceneConfig() SceneConfig {
	return SceneConfig{
		TerrainSize: 32,
		MaxHeight:   4,
		VoxelScale:  1.0,
		Boxes:       8,
	}
}

// SceneCreator заполняет мир тестовыми вокселями и объектами
type SceneCreator struct {
	factory *Factory
	config  SceneConfig
}

// NewSceneCreator создает новый экземпляр SceneCreator
func NewSceneCreator(factory *Factory, config SceneConfig) *SceneCreator {
	return &SceneCreator{
		factory: factory,
		config:  config,
	}
}

// CreateAll строит террейн и бросает на него коробки
func (s *SceneCreator) CreateAll() (voxels, objects int) {
	field := GenerateHeightField(s.config.TerrainSize, s.config.TerrainSize, s.config.MaxHeight, 0.37)
	voxels = s.CreateTerrain(field)
	objects = s.CreateBoxes(field)
	s.factory.logger.Printf("[World] Сцена создана: вокселей %d, объектов %d", voxels, objects)
	return voxels, objects
}

// CreateTerrain добавляет столбцы вокселей по карте высот.
// Возвращает число добавленных вокселей.
func (s *SceneCreator) CreateTerrain(field HeightField) int {
	engine := s.factory.Engine()
	scale := s.config.VoxelScale

	added := 0
	for z := 0; z < field.Depth; z++ {
		for x := 0; x < field.Width; x++ {
			for y := 0; y <= field.At(x, z); y++ {
				position := s.config.Origin.Add(mgl32.Vec3{float32(x), float32(y), float32(z)}.Mul(scale))
				if engine.AddVoxel(position, scale) {
					added++
				}
			}
		}
	}
	return added
}

// CreateBoxes создает динамические коробки над террейном по диагонали карты
func (s *SceneCreator) CreateBoxes(field HeightField) int {
	if field.Width == 0 || field.Depth == 0 {
		return 0
	}
	scale := s.config.VoxelScale
	half := 0.4 * scale
	mass := GetObjectConfig().DefaultMass

	created := 0
	for i := 0; i < s.config.Boxes; i++ {
		x := (i * 7) % field.Width
		z := (i * 5) % field.Depth
		top := float32(field.At(x, z)+1) * scale
		position := s.config.Origin.Add(mgl32.Vec3{
			(float32(x) + 0.5) * scale,
			top + 4*scale + float32(i)*scale,
			(float32(z) + 0.5) * scale,
		})

		obj := NewBox(fmt.Sprintf("box_%d", i), position, mgl32.Vec3{half, half, half}, mass, entity.MotionDynamic)
		if err := s.factory.Spawn(obj); err != nil {
			s.factory.logger.Printf("[World] Ошибка при создании коробки: %v", err)
			continue
		}
		created++
	}
	return created
}
