package validators

import (
	"fmt"
	"strings"
	"unicode/utf8"

	pkgerrors "github.com/angelmondragon/walletcore/pkg/errors"
)

// MaxReferenceLength bounds client supplied references, in characters.
const MaxReferenceLength = 128

// Reference trims a client supplied tip, escrow or gateway reference. It
// never shortens one, because two long references sharing a prefix would
// collapse into the same idempotency key.
func Reference(input, field string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if !utf8.ValidString(trimmed) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{field: "must be valid UTF-8"})
	}
	if utf8.RuneCountInString(trimmed) > MaxReferenceLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{field: fmt.Sprintf("must be at most %d characters", MaxReferenceLength)})
	}
	return trimmed, nil
}

// Text trims free text and cuts it to maxRunes characters.
func Text(input string, maxRunes int) string {
	trimmed := strings.TrimSpace(input)
	if maxRunes <= 0 || utf8.RuneCountInString(trimmed) <= maxRunes {
		return trimmed
	}
	return strings.TrimSpace(string([]rune(trimmed)[:maxRunes]))
}
