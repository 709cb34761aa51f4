package search

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// toStrings converts a JSON decoded value into its string forms.
// Numbers without a fractional part are rendered as integers.
func toStrings(v any) (values []string, isArray bool, err error) {
	switch val := v.(type) {
	case nil:
		return nil, false, nil
	case []string:
		return trimAll(val), true, nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, err := scalarString(item)
			if err != nil {
				return nil, true, err
			}
			out = append(out, s)
		}
		return trimAll(out), true, nil
	default:
		s, err := scalarString(val)
		if err != nil {
			return nil, false, err
		}
		if s == "" {
			return nil, false, nil
		}
		return []string{s}, false, nil
	}
}

func scalarString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		if val == math.Trunc(val) {
			return strconv.FormatInt(int64(val), 10), nil
		}
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

func trimAll(in []string) []string {
	out := in[:0:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stringParam(params Params, key string) (string, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", newValidationError(key, "must be a string, got %T", raw)
	}
	return strings.TrimSpace(s), nil
}

func stringsParam(params Params, key string) ([]string, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return nil, nil
	}
	values, _, err := toStrings(raw)
	if err != nil {
		return nil, newValidationError(key, "%v", err)
	}
	return values, nil
}

func intParam(params Params, key string) (int, bool, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch val := raw.(type) {
	case int:
		return val, true, nil
	case int64:
		return int(val), true, nil
	case float64:
		if val != math.Trunc(val) {
			return 0, true, newValidationError(key, "must be a whole number, got %v", val)
		}
		return int(val), true, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, true, newValidationError(key, "must be a number, got %q", val)
		}
		return n, true, nil
	default:
		return 0, true, newValidationError(key, "must be a number, got %T", raw)
	}
}

// qualifierValue quotes values containing whitespace
func qualifierValue(v string) string {
	if strings.ContainsAny(v, " \t") && !strings.HasPrefix(v, `"`) {
		return `"` + v + `"`
	}
	return v
}
