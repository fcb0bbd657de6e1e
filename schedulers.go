package streambox

import (
	"sort"
	"sync"
)

// SchedulerRegistry indexes schedulers by box name.
type SchedulerRegistry struct {
	mu         sync.RWMutex
	schedulers map[string]*Scheduler
}

// NewSchedulerRegistry returns an empty registry.
func NewSchedulerRegistry() *SchedulerRegistry {
	return &SchedulerRegistry{schedulers: make(map[string]*Scheduler)}
}

// Register stores scheduler under name, replacing any previous entry.
func (r *SchedulerRegistry) Register(name string, scheduler *Scheduler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.schedulers[name] = scheduler
}

// Get returns the scheduler registered under name.
func (r *SchedulerRegistry) Get(name string) (*Scheduler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	scheduler, ok := r.schedulers[name]

	return scheduler, ok
}

// All returns a copy of the registry contents.
func (r *SchedulerRegistry) All() map[string]*Scheduler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make(map[string]*Scheduler, len(r.schedulers))
	for name, scheduler := range r.schedulers {
		all[name] = scheduler
	}

	return all
}

// Names returns the registered names in sorted order.
func (r *SchedulerRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.schedulers))
	for name := range r.schedulers {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
