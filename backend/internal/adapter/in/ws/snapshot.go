package ws

import (
	"time"

	"x-voxels/backend/internal/world"
)

// SnapshotSystem рассылает клиентам снимок объектов мира.
// Снимок собирается в горутине симуляции, отправка идет отдельно.
type SnapshotSystem struct {
	adapter  *WSAdapter
	manager  *world.Manager
	interval time.Duration
	lastSent time.Time
}

// NewSnapshotSystem создает систему рассылки снимков
func NewSnapshotSystem(adapter *WSAdapter, manager *world.Manager, interval time.Duration) *SnapshotSystem {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &SnapshotSystem{
		adapter:  adapter,
		manager:  manager,
		interval: interval,
	}
}

// Snapshot собирает состояние всех объектов
func Snapshot(manager *world.Manager) []ObjectState {
	objects := manager.GetAllObjects()
	states := make([]ObjectState, 0, len(objects))
	for _, obj := range objects {
		states = append(states, ObjectState{
			ID:       obj.ID,
			Motion:   obj.MotionType().String(),
			Position: sanitizeVec(fromVec(obj.Position())),
			Velocity: sanitizeVec(fromVec(obj.Velocity())),
		})
	}
	return states
}

// Update рассылает снимок не чаще заданного интервала
func (s *SnapshotSystem) Update(deltaTime time.Duration) error {
	now := time.Now()
	if now.Sub(s.lastSent) < s.interval || s.adapter.ClientCount() == 0 {
		return nil
	}
	s.lastSent = now

	msg := NewUpdateMessage(Snapshot(s.manager))
	go s.adapter.Broadcast(msg)
	return nil
}

// GetName возвращает имя системы
func (s *SnapshotSystem) GetName() string {
	return "SnapshotSystem"
}

// GetPriority возвращает приоритет системы
func (s *SnapshotSystem) GetPriority() int {
	return 150 // после физики, до метрик
}
