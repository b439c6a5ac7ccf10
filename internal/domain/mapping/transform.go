package mapping

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TransformFunc converts one field value during mapping. Transforms are
// named, opaque functions; the mapping layer does not interpret them beyond
// looking the name up at save time and applying it at sync time.
type TransformFunc func(v any) (any, error)

var titleCaser = cases.Title(language.English)

// transforms is the registry of named field transforms
var transforms = map[string]TransformFunc{
	"lowercase":       transformLowercase,
	"uppercase":       transformUppercase,
	"trim":            transformTrim,
	"title_case":      transformTitleCase,
	"to_string":       transformToString,
	"to_int":          transformToInt,
	"to_decimal":      transformToDecimal,
	"round_2":         transformRound2,
	"unix_to_rfc3339": transformUnixToRFC3339,
	"date_only":       transformDateOnly,
	"bool_to_int":     transformBoolToInt,
}

// TransformRegistered reports whether a transform name is known
func TransformRegistered(name string) bool {
	_, ok := transforms[name]
	return ok
}

// TransformNames returns all registered transform names
func TransformNames() []string {
	names := make([]string, 0, len(transforms))
	for name := range transforms {
		names = append(names, name)
	}
	return names
}

// ApplyTransform applies a named transform to a value.
// A nil value passes through untouched so defaults and required-field
// handling stay with the caller.
func ApplyTransform(name string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	fn, ok := transforms[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransform, name)
	}
	out, err := fn(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTransformFailed, name, err)
	}
	return out, nil
}

func transformLowercase(v any) (any, error) {
	s, err := asString(v)
	if err != nil {
		return nil, err
	}
	return strings.ToLower(s), nil
}

func transformUppercase(v any) (any, error) {
	s, err := asString(v)
	if err != nil {
		return nil, err
	}
	return strings.ToUpper(s), nil
}

func transformTrim(v any) (any, error) {
	s, err := asString(v)
	if err != nil {
		return nil, err
	}
	return strings.TrimSpace(s), nil
}

func transformTitleCase(v any) (any, error) {
	s, err := asString(v)
	if err != nil {
		return nil, err
	}
	return titleCaser.String(s), nil
}

func transformToString(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case bool:
		return strconv.FormatBool(val), nil
	default:
		return fmt.Sprintf("%v", val), nil
	}
}

func transformToInt(v any) (any, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		return int(val), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return nil, err
		}
		return n, nil
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to int", v)
	}
}

// transformToDecimal parses monetary values into an exact decimal string so
// amounts survive the round trip without float drift
func transformToDecimal(v any) (any, error) {
	d, err := asDecimal(v)
	if err != nil {
		return nil, err
	}
	return d.String(), nil
}

func transformRound2(v any) (any, error) {
	d, err := asDecimal(v)
	if err != nil {
		return nil, err
	}
	return d.Round(2).String(), nil
}

func transformUnixToRFC3339(v any) (any, error) {
	var sec int64
	switch val := v.(type) {
	case int64:
		sec = val
	case int:
		sec = int64(val)
	case float64:
		sec = int64(val)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return nil, err
		}
		sec = n
	default:
		return nil, fmt.Errorf("cannot convert %T to unix timestamp", v)
	}
	return time.Unix(sec, 0).UTC().Format(time.RFC3339), nil
}

func transformDateOnly(v any) (any, error) {
	s, err := asString(v)
	if err != nil {
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		// Already date-only input passes through
		if _, derr := time.Parse("2006-01-02", s); derr == nil {
			return s, nil
		}
		return nil, err
	}
	return ts.Format("2006-01-02"), nil
}

func transformBoolToInt(v any) (any, error) {
	switch val := v.(type) {
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return nil, err
		}
		if b {
			return 1, nil
		}
		return 0, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to bool", v)
	}
}

func asString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", v)
	}
	return s, nil
}

func asDecimal(v any) (decimal.Decimal, error) {
	switch val := v.(type) {
	case string:
		return decimal.NewFromString(strings.TrimSpace(val))
	case float64:
		return decimal.NewFromFloat(val), nil
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case int64:
		return decimal.NewFromInt(val), nil
	default:
		return decimal.Zero, fmt.Errorf("cannot convert %T to decimal", v)
	}
}
