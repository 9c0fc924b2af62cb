package schema

import (
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Canonical text layouts for temporal kinds.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

var (
	timeLayouts      = []string{TimeLayout, "15:04:05.999999999", "15:04", time.RFC3339Nano}
	timestampLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05",
	}
)

// Coerce checks a caller-supplied value against the field and returns its
// canonical Go form: int64, decimal.Decimal, bool, string, time.Time or nil.
// Values decoded with json.Decoder.UseNumber are expected.
func (f Field) Coerce(v any) (any, error) {
	if v == nil {
		if !f.Nullable {
			return nil, fieldErrorf(f.Name, "may not be null")
		}
		return nil, nil
	}

	switch f.Kind {
	case KindInteger:
		n, ok := toInt64(v)
		if !ok {
			return nil, fieldErrorf(f.Name, "must be an integer")
		}
		return n, nil

	case KindDecimal:
		d, ok := toDecimal(v)
		if !ok {
			return nil, fieldErrorf(f.Name, "must be a decimal number")
		}
		if f.Scale > 0 && d.Exponent() < -int32(f.Scale) && !d.Equal(d.Truncate(int32(f.Scale))) {
			return nil, fieldErrorf(f.Name, "allows at most %d decimal places", f.Scale)
		}
		if f.Precision > 0 {
			limit := decimal.New(1, int32(f.Precision-f.Scale))
			if d.Abs().GreaterThanOrEqual(limit) {
				return nil, fieldErrorf(f.Name, "must be smaller than %s", limit.String())
			}
		}
		if f.Scale > 0 {
			d = d.Round(int32(f.Scale))
		}
		return d, nil

	case KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fieldErrorf(f.Name, "must be a boolean")
		}
		return b, nil

	case KindText, KindSecret:
		s, ok := v.(string)
		if !ok {
			return nil, fieldErrorf(f.Name, "must be a string")
		}
		if f.Kind == KindSecret && s == "" {
			return nil, fieldErrorf(f.Name, "may not be empty")
		}
		if f.MaxLength > 0 && utf8.RuneCountInString(s) > f.MaxLength {
			return nil, fieldErrorf(f.Name, "must be at most %d characters", f.MaxLength)
		}
		if len(f.Choices) > 0 && !slices.Contains(f.Choices, s) {
			return nil, fieldErrorf(f.Name, "must be one of %s", strings.Join(f.Choices, ", "))
		}
		return s, nil

	case KindDate:
		if t, ok := v.(time.Time); ok {
			return dateOf(t), nil
		}
		s, ok := v.(string)
		if !ok {
			return nil, fieldErrorf(f.Name, "must be a date (YYYY-MM-DD)")
		}
		t, err := time.Parse(DateLayout, s)
		if err != nil {
			return nil, fieldErrorf(f.Name, "must be a date (YYYY-MM-DD)")
		}
		return t, nil

	case KindTime:
		if t, ok := v.(time.Time); ok {
			return clockOf(t), nil
		}
		s, ok := v.(string)
		if !ok {
			return nil, fieldErrorf(f.Name, "must be a time of day (HH:MM:SS)")
		}
		t, ok := parseAny(timeLayouts, s)
		if !ok {
			return nil, fieldErrorf(f.Name, "must be a time of day (HH:MM:SS)")
		}
		return clockOf(t), nil

	case KindTimestamp:
		if t, ok := v.(time.Time); ok {
			return t.UTC(), nil
		}
		s, ok := v.(string)
		if !ok {
			return nil, fieldErrorf(f.Name, "must be an RFC 3339 timestamp")
		}
		t, ok := parseAny(timestampLayouts, s)
		if !ok {
			return nil, fieldErrorf(f.Name, "must be an RFC 3339 timestamp")
		}
		return t.UTC(), nil
	}
	return nil, fieldErrorf(f.Name, "has unsupported kind %s", f.Kind)
}

// FromStorage converts a value scanned from a database driver into the
// field's canonical Go form. Drivers disagree on representations (lib/pq
// returns NUMERIC as []byte, sqlite returns booleans as int64), so every
// plausible shape is accepted.
func (f Field) FromStorage(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}

	switch f.Kind {
	case KindInteger:
		switch x := v.(type) {
		case string:
			n, err := strconv.ParseInt(x, 10, 64)
			if err != nil {
				return nil, fieldErrorf(f.Name, "stored value %q is not an integer", x)
			}
			return n, nil
		default:
			if n, ok := toInt64(x); ok {
				return n, nil
			}
		}

	case KindDecimal:
		if d, ok := toDecimal(v); ok {
			if f.Scale > 0 {
				d = d.Round(int32(f.Scale))
			}
			return d, nil
		}

	case KindBoolean:
		switch x := v.(type) {
		case bool:
			return x, nil
		case int64:
			return x != 0, nil
		case string:
			b, err := strconv.ParseBool(x)
			if err == nil {
				return b, nil
			}
		}

	case KindText, KindSecret:
		if s, ok := v.(string); ok {
			return s, nil
		}

	case KindDate:
		switch x := v.(type) {
		case time.Time:
			return dateOf(x), nil
		case string:
			if t, err := time.Parse(DateLayout, x); err == nil {
				return t, nil
			}
			if t, ok := parseAny(timestampLayouts, x); ok {
				return dateOf(t), nil
			}
		}

	case KindTime:
		switch x := v.(type) {
		case time.Time:
			return clockOf(x), nil
		case string:
			if t, ok := parseAny(timeLayouts, x); ok {
				return clockOf(t), nil
			}
		}

	case KindTimestamp:
		switch x := v.(type) {
		case time.Time:
			return x.UTC(), nil
		case string:
			if t, ok := parseAny(timestampLayouts, x); ok {
				return t.UTC(), nil
			}
		}
	}
	return nil, fieldErrorf(f.Name, "cannot read stored %T as %s", v, f.Kind)
}

// ToStorage converts a canonical value into a driver argument that Postgres
// and SQLite both accept.
func (f Field) ToStorage(v any) any {
	if v == nil {
		return nil
	}
	switch f.Kind {
	case KindDecimal:
		if d, ok := v.(decimal.Decimal); ok {
			return d.String()
		}
	case KindDate:
		if t, ok := v.(time.Time); ok {
			return t.Format(DateLayout)
		}
	case KindTime:
		if t, ok := v.(time.Time); ok {
			return t.Format(TimeLayout)
		}
	case KindTimestamp:
		if t, ok := v.(time.Time); ok {
			return t.UTC()
		}
	}
	return v
}

// Format renders a canonical value the way representations show it.
func (f Field) Format(v any) any {
	if v == nil {
		return nil
	}
	switch x := v.(type) {
	case decimal.Decimal:
		if f.Scale > 0 {
			return x.StringFixed(int32(f.Scale))
		}
		return x.String()
	case time.Time:
		switch f.Kind {
		case KindDate:
			return x.Format(DateLayout)
		case KindTime:
			return x.Format(TimeLayout)
		default:
			return x.UTC().Format(time.RFC3339)
		}
	}
	return v
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || x > math.MaxInt64 || x < math.MinInt64 {
			return 0, false
		}
		return int64(x), true
	}
	return 0, false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		return d, err == nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(x), true
	case int64:
		return decimal.NewFromInt(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	}
	return decimal.Decimal{}, false
}

func parseAny(layouts []string, s string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func clockOf(t time.Time) time.Time {
	return time.Date(0, 1, 1, t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}
