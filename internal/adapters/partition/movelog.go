package partition

import (
	"context"
	"sync"

	"github.com/momenta/cohortd/internal/domain/cohort"
)

// MemoryMovementLog implements MovementLog with an in-memory slice.
type MemoryMovementLog struct {
	mu      sync.RWMutex
	records []cohort.Movement
}

// NewMemoryMovementLog creates an empty in-memory movement log.
func NewMemoryMovementLog() *MemoryMovementLog {
	return &MemoryMovementLog{}
}

// Append records one movement.
func (l *MemoryMovementLog) Append(_ context.Context, mv cohort.Movement) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, mv)
	return nil
}

// Movements returns all recorded movements for a user, oldest first.
func (l *MemoryMovementLog) Movements(_ context.Context, userID string) ([]cohort.Movement, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []cohort.Movement
	for _, mv := range l.records {
		if mv.UserID == userID {
			out = append(out, mv)
		}
	}
	return out, nil
}

// Len returns the total number of recorded movements.
func (l *MemoryMovementLog) Len(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records), nil
}
