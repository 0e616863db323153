package handler

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// HealthHandler serves GET /health. Every registered check runs in parallel
// with a shared deadline; any failure answers 503.
type HealthHandler struct {
	checks  map[string]HealthCheck
	timeout time.Duration
}

// NewHealthHandler creates a health handler with the given per-request timeout.
func NewHealthHandler(timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthHandler{checks: make(map[string]HealthCheck), timeout: timeout}
}

// Register adds a named check. Nil checks are ignored so optional
// dependencies can be registered unconditionally.
func (h *HealthHandler) Register(name string, check HealthCheck) {
	if check != nil {
		h.checks[name] = check
	}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]string, len(names))
		healthy = true
	)
	for _, name := range names {
		wg.Add(1)
		go func(name string, check HealthCheck) {
			defer wg.Done()
			result := "ok"
			if err := check(ctx); err != nil {
				result = err.Error()
			}
			mu.Lock()
			results[name] = result
			if result != "ok" {
				healthy = false
			}
			mu.Unlock()
		}(name, h.checks[name])
	}
	wg.Wait()

	resp := healthResponse{Status: "ok", Checks: results}
	status := http.StatusOK
	if !healthy {
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	WriteJSON(w, status, resp)
}
