package features

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidInput is returned when an intake field cannot be coerced to its
// expected type.
var ErrInvalidInput = errors.New("invalid feature input")

// Payload keys accepted by Decode.
const (
	KeySymptomsText = "symptoms_text"
	KeySymptoms     = "symptoms"
)

// Decode builds a Record from a loosely typed, JSON-decoded payload.
//
// Numeric fields accept numbers and numeric strings; absent or null fields
// keep their defaults. symptoms_text wins over symptoms when it is a
// non-empty string.
func Decode(payload map[string]any) (Record, error) {
	var r Record

	fields := []struct {
		key string
		dst **float64
	}{
		{ColAge, &r.Age},
		{ColPainLevel, &r.PainLevel},
		{ColHeartRate, &r.HeartRate},
		{ColSystolicBP, &r.SystolicBP},
		{ColRespiratoryRate, &r.RespiratoryRate},
		{ColTemperature, &r.Temperature},
	}
	for _, f := range fields {
		raw, ok := payload[f.key]
		if !ok || raw == nil {
			continue
		}
		v, err := toFloat(raw)
		if err != nil {
			return Record{}, fmt.Errorf("%w: %s %v", ErrInvalidInput, f.key, err)
		}
		*f.dst = &v
	}

	text, err := symptomsText(payload)
	if err != nil {
		return Record{}, err
	}
	r.SymptomsText = text

	return r, nil
}

func symptomsText(payload map[string]any) (string, error) {
	for _, key := range []string{KeySymptomsText, KeySymptoms} {
		raw, ok := payload[key]
		if !ok || raw == nil {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			return "", fmt.Errorf("%w: %s must be a string, got %s", ErrInvalidInput, key, typeName(raw))
		}
		if s != "" {
			return s, nil
		}
	}
	return "", nil
}

func toFloat(raw any) (float64, error) {
	var v float64
	switch x := raw.(type) {
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int64:
		v = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("is not a number: %q", x.String())
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("is not a number: %q", x)
		}
		v = f
	default:
		return 0, fmt.Errorf("must be a number, got %s", typeName(raw))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("must be finite, got %v", v)
	}
	return v, nil
}

func typeName(raw any) string {
	switch raw.(type) {
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	default:
		return fmt.Sprintf("%T", raw)
	}
}
