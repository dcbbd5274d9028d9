// Package stage describes collaborator readiness for the health endpoint and
// the doctor command.
package stage

import (
	"context"
	"sort"
)

// Health summarizes the readiness of one pipeline collaborator.
type Health struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// Checker reports the readiness of a collaborator.
type Checker interface {
	HealthCheck(ctx context.Context) Health
}

// CheckFunc adapts a function to Checker.
type CheckFunc func(ctx context.Context) Health

// HealthCheck implements Checker.
func (f CheckFunc) HealthCheck(ctx context.Context) Health {
	return f(ctx)
}

// Collect runs every checker and returns results sorted by name.
func Collect(ctx context.Context, checkers ...Checker) []Health {
	out := make([]Health, 0, len(checkers))
	for _, checker := range checkers {
		if checker == nil {
			continue
		}
		out = append(out, checker.HealthCheck(ctx))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AllReady reports whether every record is ready.
func AllReady(results []Health) bool {
	for _, h := range results {
		if !h.Ready {
			return false
		}
	}
	return true
}
