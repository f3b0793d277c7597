package job

import (
	"sync"
)

// Factory produces a fresh, zero-valued instance of a registered job type.
type Factory func() Job

// Registry maps a stable class name to a factory producing a fresh job
// instance. The same name must be used by every process that may pop jobs
// of that type.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register associates name with a factory that builds a fresh *T each call.
// Registering the same name twice is an error.
func Register[T Job](r *Registry, name string, newT func() T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return &ErrAlreadyRegistered{ClassName: name}
	}

	r.factories[name] = func() Job { return newT() }
	return nil
}

// IsRegistered reports whether name has a registered factory.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.factories[name]
	return exists
}

// Instance builds a fresh job instance for name. Fails with ErrUnknownJob if
// name has no registered factory.
func (r *Registry) Instance(name string) (Job, error) {
	r.mu.RLock()
	factory, exists := r.factories[name]
	r.mu.RUnlock()

	if !exists {
		return nil, &ErrUnknownJob{ClassName: name}
	}

	return factory(), nil
}

// Recode re-encodes an existing job's data sub-object without minting a new
// uuid, useful when a job mutates its own retry-relevant state mid-attempt.
// It decodes data into a fresh instance of name's type and re-encodes that
// instance, so no caller-held job object is touched.
func (r *Registry) Recode(name string, data []byte) ([]byte, error) {
	j, err := r.Instance(name)
	if err != nil {
		return nil, err
	}

	if err := j.Decode(data); err != nil {
		return nil, &ErrMalformedPayload{Reason: err.Error()}
	}

	return j.Encode()
}
