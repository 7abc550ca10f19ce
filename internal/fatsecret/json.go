package fatsecret

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// FatSecret encodes most numbers as strings and collapses one-element lists
// into a bare object. These types accept either form.

// Float decodes from a JSON number, a quoted number, "" or null.
type Float float64

func (f *Float) UnmarshalJSON(b []byte) error {
	s, ok, err := numberText(b)
	if err != nil || !ok {
		*f = 0
		return err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Int decodes from a JSON number, a quoted number, "" or null.
type Int int64

func (n *Int) UnmarshalJSON(b []byte) error {
	s, ok, err := numberText(b)
	if err != nil || !ok {
		*n = 0
		return err
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return err
		}
		v = int64(f)
	}
	*n = Int(v)
	return nil
}

func numberText(b []byte) (string, bool, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return "", false, nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", false, err
		}
		if s == "" {
			return "", false, nil
		}
		return s, true, nil
	}
	return string(b), true, nil
}

// List decodes from a JSON array, a single element or null.
type List[T any] []T

func (l *List[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}
	if b[0] == '[' {
		var items []T
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var one T
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*l = List[T]{one}
	return nil
}

// valueField is the {"value":"..."} wrapper used by create and delete responses.
type valueField struct {
	Value string `json:"value"`
}
