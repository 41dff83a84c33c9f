// Package camera contains the camera models and their resolution codes.
package camera

import (
	"fmt"
	"strings"
)

// Model is a camera sensor model.
type Model int

// models.
const (
	ModelOV2640 Model = iota
	ModelOV5642
)

var modelLabels = map[Model]string{
	ModelOV2640: "OV2640",
	ModelOV5642: "OV5642",
}

// resolutions, indexed by resolution code.
var modelResolutions = map[Model][]string{
	ModelOV2640: {
		"160x120",
		"176x144",
		"320x240",
		"352x288",
		"640x480",
		"800x600",
		"1024x768",
		"1280x1024",
		"1600x1200",
	},
	ModelOV5642: {
		"320x240",
		"640x480",
		"1024x768",
		"1280x960",
		"1600x1200",
		"2048x1536",
		"2592x1944",
	},
}

// Models returns all models.
func Models() []Model {
	return []Model{ModelOV2640, ModelOV5642}
}

// ParseModel parses a Model. Case is ignored.
func ParseModel(s string) (Model, error) {
	for m, l := range modelLabels {
		if strings.EqualFold(l, s) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("invalid camera model '%s'", s)
}

// String implements fmt.Stringer.
func (m Model) String() string {
	if l, ok := modelLabels[m]; ok {
		return l
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (m Model) MarshalText() ([]byte, error) {
	if _, ok := modelLabels[m]; !ok {
		return nil, fmt.Errorf("invalid camera model: %d", m)
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Model) UnmarshalText(b []byte) error {
	v, err := ParseModel(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Resolutions returns the resolution labels of the model,
// indexed by resolution code.
func (m Model) Resolutions() []string {
	return append([]string(nil), modelResolutions[m]...)
}

// Label returns the resolution label of a resolution code.
func (m Model) Label(code uint8) (string, bool) {
	res := modelResolutions[m]
	if int(code) >= len(res) {
		return "", false
	}
	return res[code], true
}

// CodeOf returns the resolution code of a resolution label.
func (m Model) CodeOf(label string) (uint8, bool) {
	for i, l := range modelResolutions[m] {
		if l == label {
			return uint8(i), true
		}
	}
	return 0, false
}

// LabelOrCode returns the resolution label of a code, or the code itself
// when it is unknown to the model.
func (m Model) LabelOrCode(code uint8) string {
	if l, ok := m.Label(code); ok {
		return l
	}
	return fmt.Sprintf("mode%d", code)
}
