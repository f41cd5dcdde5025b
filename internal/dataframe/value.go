package dataframe

import (
	"encoding/json"
	"math"
	"strconv"
)

// Value is a metric reading that may be missing. The zero Value is missing,
// which is never the same as a present zero.
type Value struct {
	v     float64
	valid bool
}

func Of(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{}
	}
	return Value{v: v, valid: true}
}

func Missing() Value { return Value{} }

// OfPtr maps nil to Missing.
func OfPtr(v *float64) Value {
	if v == nil {
		return Value{}
	}
	return Of(*v)
}

func (v Value) Present() bool { return v.valid }

func (v Value) Get() (float64, bool) { return v.v, v.valid }

// Or returns the value, or def when missing.
func (v Value) Or(def float64) float64 {
	if !v.valid {
		return def
	}
	return v.v
}

func (v Value) Ptr() *float64 {
	if !v.valid {
		return nil
	}
	f := v.v
	return &f
}

func (v Value) Equal(o Value) bool {
	if v.valid != o.valid {
		return false
	}
	return !v.valid || v.v == o.v
}

func (v Value) String() string {
	if !v.valid {
		return ""
	}
	return strconv.FormatFloat(v.v, 'f', -1, 64)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.v)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Value{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = Of(f)
	return nil
}
