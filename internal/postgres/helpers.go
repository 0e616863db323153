package postgres

import (
	"strings"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/google/uuid"
)

// jsonSlice keeps NOT NULL JSONB columns as '[]' instead of 'null'.
func jsonSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func textArray(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// newID fills an empty id.
func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// attributesKey is the stable inventory key for a set of custom attributes.
func attributesKey(attrs []domain.CustomAttribute) string {
	if len(attrs) == 0 {
		return ""
	}
	parts := make([]string, len(attrs))
	for i, a := range attrs {
		parts[i] = a.Key + "=" + a.Value
	}
	return strings.Join(parts, ";")
}
