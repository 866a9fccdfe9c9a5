package world

import (
	"sort"
	"sync"
)

// Manager хранит объекты мира по идентификатору
type Manager struct {
	objects map[string]*Object
	mu      sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		objects: make(map[string]*Object),
	}
}

// AddObject добавляет объект; возвращает false, если id уже занят
func (m *Manager) AddObject(obj *Object) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.objects[obj.ID]; exists {
		return false
	}
	m.objects[obj.ID] = obj
	return true
}

func (m *Manager) GetObject(id string) (*Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, exists := m.objects[id]
	return obj, exists
}

// RemoveObject удаляет объект и возвращает его
func (m *Manager) RemoveObject(id string) (*Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, exists := m.objects[id]
	if exists {
		delete(m.objects, id)
	}
	return obj, exists
}

// GetAllObjects возвращает все объекты, упорядоченные по id
func (m *Manager) GetAllObjects() []*Object {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Object, 0, len(m.objects))
	for _, obj := range m.objects {
		result = append(result, obj)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Count число объектов
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
