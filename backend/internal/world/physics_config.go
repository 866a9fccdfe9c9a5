package world

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// ObjectConfig значения по умолчанию для новых объектов мира
type ObjectConfig struct {
	// Гравитация объекта; мировая гравитация решателя на объекты не действует
	Gravity mgl32.Vec3

	// Материал
	Friction    float32
	Restitution float32

	// Масса динамических объектов, если не задана явно
	DefaultMass float32
}

var (
	objectConfig ObjectConfig
	configMutex  sync.RWMutex
)

// Инициализация конфигурации по умолчанию
func init() {
	objectConfig = ObjectConfig{
		Gravity:     mgl32.Vec3{0, -9.81, 0},
		Friction:    0.5,
		Restitution: 0.1, // низкая прыгучесть
		DefaultMass: 1.0,
	}
}

// GetObjectConfig возвращает текущие значения по умолчанию
func GetObjectConfig() ObjectConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return objectConfig
}

// SetObjectConfig устанавливает новые значения по умолчанию.
// На уже созданные объекты не влияет.
func SetObjectConfig(config ObjectConfig) {
	configMutex.Lock()
	defer configMutex.Unlock()
	objectConfig = config
}
