package model

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Scalar holds a loosely-typed JSON scalar as produced by the structuring
// collaborator: a string, a number, an explicit null, or absent entirely.
// The four states are kept distinct so that validation rules can tell
// "field missing" apart from "field present but zero".
type Scalar struct {
	set   bool
	null  bool
	str   string
	num   float64
	isNum bool
}

// String returns a Scalar holding a string value.
func String(s string) Scalar {
	return Scalar{set: true, str: s}
}

// Number returns a Scalar holding a numeric value.
func Number(f float64) Scalar {
	return Scalar{set: true, num: f, isNum: true}
}

// Null returns a Scalar holding an explicit JSON null.
func Null() Scalar {
	return Scalar{set: true, null: true}
}

// IsSet reports whether the field appeared in the source document at all,
// including as an explicit null.
func (s Scalar) IsSet() bool {
	return s.set
}

// Missing reports whether the value should be treated as absent by the
// mandatory-field check: never present, explicit null, or an empty string.
// A numeric zero is present, not missing.
func (s Scalar) Missing() bool {
	if !s.set || s.null {
		return true
	}
	if !s.isNum && s.str == "" {
		return true
	}
	return false
}

// Float converts the value to a float64. An absent field converts to zero;
// an explicit null or a non-numeric string is a parse error.
func (s Scalar) Float() (float64, error) {
	if !s.set {
		return 0, nil
	}
	if s.null {
		return 0, eris.New("scalar: null is not a number")
	}
	if s.isNum {
		return s.num, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s.str), 64)
	if err != nil {
		return 0, eris.Wrapf(err, "scalar: parse %q", s.str)
	}
	return f, nil
}

// Text returns a display form of the value: the string itself, the shortest
// decimal rendering for numbers, and "" for null or absent values.
func (s Scalar) Text() string {
	switch {
	case !s.set || s.null:
		return ""
	case s.isNum:
		return strconv.FormatFloat(s.num, 'f', -1, 64)
	default:
		return s.str
	}
}

// UnmarshalJSON accepts a JSON string, number, or null. Any other shape is
// an error so malformed structuring output surfaces early.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*s = Null()
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return eris.Wrap(err, "scalar: unmarshal string")
		}
		*s = String(str)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return eris.Wrapf(err, "scalar: unexpected JSON value %s", trimmed)
	}
	*s = Number(f)
	return nil
}

// MarshalJSON renders the value back in its original shape. Absent fields
// marshal as null.
func (s Scalar) MarshalJSON() ([]byte, error) {
	switch {
	case !s.set || s.null:
		return []byte("null"), nil
	case s.isNum:
		return json.Marshal(s.num)
	default:
		return json.Marshal(s.str)
	}
}
