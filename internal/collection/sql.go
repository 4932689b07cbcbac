package collection

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/altaidevorg/letsearch/internal/apperr"
)

// isValidIdentifier reports whether name is safe to interpolate directly
// into a CREATE TABLE/SELECT statement: table and column names come from
// JSONL keys and caller-supplied collection names, never from a fixed
// allowlist, so they're validated rather than parameterized (SQL does not
// allow parameter placeholders for identifiers).
func isValidIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// quoteIdent double-quotes a validated SQL identifier, escaping embedded
// double quotes per the SQLite/standard SQL convention.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func validateIdentifiers(names ...string) error {
	for _, n := range names {
		if !isValidIdentifier(n) {
			return fmt.Errorf("collection: %q is not a valid identifier: %w", n, apperr.ErrInvalidArgument)
		}
	}
	return nil
}

// stringifyValue normalizes a JSON-decoded value into the string stored in
// a TEXT column, so every imported column has a single, predictable type
// regardless of how a row's value was typed in the source JSON.
func stringifyValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
