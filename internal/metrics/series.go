package metrics

import (
	"bytes"
	"encoding/json"
)

// Series keys produced by Compute.
const (
	KeyLeftAbduction       = "left_abduction"
	KeyRightAbduction      = "right_abduction"
	KeyLeftFlexion         = "left_flexion"
	KeyRightFlexion        = "right_flexion"
	KeyLeftElbow           = "left_elbow"
	KeyRightElbow          = "right_elbow"
	KeyShoulderToNoseLeft  = "shoulder_to_nose_left"
	KeyShoulderToNoseRight = "shoulder_to_nose_right"
	KeyTrunkAngle          = "trunk_angle"
	KeyShoulderSymmetry    = "shoulder_symmetry"
)

// AngleSeries maps a metric key to its per-frame values.
// Keys keep their first-insertion order; values keep frame order.
type AngleSeries struct {
	keys   []string
	values map[string][]float64
}

// NewAngleSeries returns an empty series set.
func NewAngleSeries() *AngleSeries {
	return &AngleSeries{values: make(map[string][]float64)}
}

// Append adds a value to the series for key.
func (s *AngleSeries) Append(key string, v float64) {
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = append(s.values[key], v)
}

// Get returns the values for key.
func (s *AngleSeries) Get(key string) ([]float64, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Keys returns the series keys in insertion order.
func (s *AngleSeries) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// MarshalJSON encodes the series as an object whose keys keep insertion order.
func (s *AngleSeries) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(s.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a series object, preserving the key order of the input.
func (s *AngleSeries) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}

	s.keys = nil
	s.values = make(map[string][]float64)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)

		var vals []float64
		if err := dec.Decode(&vals); err != nil {
			return err
		}
		s.keys = append(s.keys, key)
		s.values[key] = vals
	}
	_, err := dec.Token()
	return err
}
