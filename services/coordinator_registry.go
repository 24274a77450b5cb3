package services

import (
	"sync"
	"time"

	"lifeline/models"

	"github.com/sirupsen/logrus"
)

// CoordinatorFactory builds the coordinator for a principal.
type CoordinatorFactory func(principal models.Principal) *EmergencyCoordinator

// CoordinatorRegistry keeps one coordinator per user.
type CoordinatorRegistry struct {
	factory CoordinatorFactory
	now     func() time.Time

	mu           sync.RWMutex
	coordinators map[string]*EmergencyCoordinator
}

func NewCoordinatorRegistry(factory CoordinatorFactory) *CoordinatorRegistry {
	return &CoordinatorRegistry{
		factory:      factory,
		now:          time.Now,
		coordinators: make(map[string]*EmergencyCoordinator),
	}
}

// Get returns the principal's coordinator, creating it on first use. The
// coordinator is marked active while the registry lock is held, so EvictIdle
// cannot drop an instance a caller has just been handed.
func (r *CoordinatorRegistry) Get(principal models.Principal) *EmergencyCoordinator {
	r.mu.RLock()
	ec, ok := r.coordinators[principal.UserID]
	if ok {
		ec.touch()
	}
	r.mu.RUnlock()
	if ok {
		return ec
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ec, ok := r.coordinators[principal.UserID]; ok {
		ec.touch()
		return ec
	}
	ec = r.factory(principal)
	r.coordinators[principal.UserID] = ec
	return ec
}

// Lookup returns an existing coordinator without creating one.
func (r *CoordinatorRegistry) Lookup(userID string) (*EmergencyCoordinator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ec, ok := r.coordinators[userID]
	return ec, ok
}

func (r *CoordinatorRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.coordinators)
}

// CountByState is used by the health endpoint.
func (r *CoordinatorRegistry) CountByState() map[models.EmergencyState]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[models.EmergencyState]int)
	for _, ec := range r.coordinators {
		counts[ec.State()]++
	}
	return counts
}

// EvictIdle drops coordinators that have sat in Idle for longer than ttl.
func (r *CoordinatorRegistry) EvictIdle(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for userID, ec := range r.coordinators {
		since, idle := ec.IdleSince()
		if !idle || since.After(cutoff) {
			continue
		}
		ec.Close()
		delete(r.coordinators, userID)
		evicted++
	}

	if evicted > 0 {
		logrus.Infof("Evicted %d idle emergency coordinators", evicted)
	}
	return evicted
}

// Shutdown releases every coordinator's timers.
func (r *CoordinatorRegistry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ec := range r.coordinators {
		ec.Close()
	}
}
