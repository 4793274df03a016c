package enums

import (
	"fmt"
	"slices"
)

func parseEnum[T ~string](raw string, valid []T, what string) (T, error) {
	if v := T(raw); slices.Contains(valid, v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", what, raw)
}
