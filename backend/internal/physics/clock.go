package physics

import "time"

// Clock источник времени для шага симуляции
type Clock interface {
	Now() time.Time
}

// SystemClock настенные часы процесса
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
