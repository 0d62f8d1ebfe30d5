// Package cast applies a schema's field specs to a raw string key/value
// block, producing a typed mapping of Go values.
package cast

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joaquim-mph/optostage/internal/schema"
	"github.com/joaquim-mph/optostage/internal/xerrors"
)

// Mode controls what happens to observed fields absent from the schema.
type Mode int

const (
	// ModeDefault keeps fields not listed in the schema, as strings.
	ModeDefault Mode = iota
	// ModeOnlyYAMLData drops fields not listed in the schema.
	ModeOnlyYAMLData
)

// leadingNumber matches the numeric prefix of a value that may carry a
// trailing unit token, e.g. "120s" or "3.3 V".
var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

var datetimeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var truthy = map[string]bool{"true": true, "yes": true, "1": true}
var falsy = map[string]bool{"false": true, "no": true, "0": true}

// Values casts raw against fields, returning a typed map. Unknown keys are
// kept as strings (ModeDefault) or dropped (ModeOnlyYAMLData). Empty or
// whitespace-only values become nil regardless of type.
func Values(path, op string, raw map[string]string, fields map[string]schema.FieldSpec, mode Mode, strict bool) (map[string]any, error) {
	out := make(map[string]any, len(raw))

	for key, rawValue := range raw {
		spec, known := fields[key]
		if !known {
			if mode == ModeOnlyYAMLData {
				continue
			}
			out[key] = rawValue
			continue
		}

		if strings.TrimSpace(rawValue) == "" {
			out[key] = nil
			continue
		}

		val, err := castOne(spec.Type, rawValue)
		if err != nil {
			if strict && spec.Required {
				return nil, xerrors.New(xerrors.CastError, op, path, err)
			}
			out[key] = nil
			continue
		}
		out[key] = val
	}

	return out, nil
}

func castOne(t schema.FieldType, raw string) (any, error) {
	trimmed := strings.TrimSpace(raw)

	switch t {
	case schema.TypeString:
		return trimmed, nil

	case schema.TypeInt:
		numStr := leadingNumber.FindString(trimmed)
		if numStr == "" {
			return nil, strconvErr("int", trimmed)
		}
		f, err := strconv.ParseFloat(numStr, 64)
		if err != nil {
			return nil, err
		}
		return int64(f), nil

	case schema.TypeFloat:
		numStr := leadingNumber.FindString(trimmed)
		if numStr == "" {
			return nil, strconvErr("float", trimmed)
		}
		return strconv.ParseFloat(numStr, 64)

	case schema.TypeBool:
		lower := strings.ToLower(trimmed)
		switch {
		case truthy[lower]:
			return true, nil
		case falsy[lower]:
			return false, nil
		default:
			return nil, strconvErr("bool", trimmed)
		}

	case schema.TypeDatetime:
		for _, layout := range datetimeLayouts {
			if ts, err := time.Parse(layout, trimmed); err == nil {
				return ts, nil
			}
		}
		return nil, strconvErr("datetime", trimmed)

	default:
		return trimmed, nil
	}
}

type castErr struct {
	kind, value string
}

func (e *castErr) Error() string {
	return "cannot parse " + strconv.Quote(e.value) + " as " + e.kind
}

func strconvErr(kind, value string) error {
	return &castErr{kind: kind, value: value}
}

// UnitOf returns the leading numeric portion of a value and the trailing
// unit token, if any. The Run Enricher uses the numeric portion to read
// values such as "450 nm"; it does not consult the unit token.
func UnitOf(raw string) (numeric string, unit string) {
	trimmed := strings.TrimSpace(raw)
	numeric = leadingNumber.FindString(trimmed)
	unit = strings.TrimSpace(strings.TrimPrefix(trimmed, numeric))
	return numeric, unit
}
