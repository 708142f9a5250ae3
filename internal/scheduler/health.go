package scheduler

import (
	"sync"
	"time"
)

// HealthStatus is the recorded health of one component.
type HealthStatus struct {
	Healthy     bool
	LastCheck   time.Time
	LastSuccess time.Time
	LastError   error
	Message     string
}

// Health tracks component health across scheduler jobs.
type Health struct {
	mu         sync.RWMutex
	components map[string]HealthStatus
}

// NewHealth creates a new health tracker.
func NewHealth() *Health {
	return &Health{
		components: make(map[string]HealthStatus),
	}
}

// SetHealthy marks a component as healthy.
func (h *Health) SetHealthy(component, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	status := h.components[component]
	now := time.Now()

	status.Healthy = true
	status.LastCheck = now
	status.LastSuccess = now
	status.LastError = nil
	status.Message = message

	h.components[component] = status
}

// SetUnhealthy marks a component as unhealthy.
func (h *Health) SetUnhealthy(component string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	status := h.components[component]

	status.Healthy = false
	status.LastCheck = time.Now()
	status.LastError = err
	status.Message = err.Error()

	h.components[component] = status
}

// Status returns the recorded status of a component.
func (h *Health) Status(component string) (HealthStatus, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status, exists := h.components[component]
	return status, exists
}

// All returns a snapshot of every component status.
func (h *Health) All() map[string]HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]HealthStatus, len(h.components))
	for name, status := range h.components {
		out[name] = status
	}
	return out
}

// Healthy reports whether every tracked component is healthy.
func (h *Health) Healthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, status := range h.components {
		if !status.Healthy {
			return false
		}
	}
	return true
}

// Summary counts healthy and unhealthy components.
func (h *Health) Summary() (healthy, unhealthy int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, status := range h.components {
		if status.Healthy {
			healthy++
		} else {
			unhealthy++
		}
	}
	return healthy, unhealthy
}
