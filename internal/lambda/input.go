package lambda

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidInput wraps malformed or incomplete lambda input.
var ErrInvalidInput = errors.New("invalid input")

// DefaultMaxInput bounds stdin when Env.MaxInput is unset.
const DefaultMaxInput = 1 << 20

const maxInput = DefaultMaxInput

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// ReadInput returns the raw JSON document: the first positional argument when
// present, otherwise all of stdin. Blank input reads as "{}".
func ReadInput(args []string, stdin io.Reader) ([]byte, error) {
	return ReadInputLimit(args, stdin, maxInput)
}

// ReadInputLimit is ReadInput with an explicit stdin size limit in bytes.
func ReadInputLimit(args []string, stdin io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxInput
	}
	var raw []byte
	switch {
	case len(args) > 0:
		raw = []byte(args[0])
	case stdin != nil:
		b, err := io.ReadAll(io.LimitReader(stdin, limit+1))
		if err != nil {
			return nil, fmt.Errorf("%w: read stdin: %v", ErrInvalidInput, err)
		}
		if int64(len(b)) > limit {
			return nil, fmt.Errorf("%w: input exceeds %d bytes", ErrInvalidInput, limit)
		}
		raw = b
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return []byte("{}"), nil
	}
	return raw, nil
}

// Decode unmarshals raw into v and runs struct validation. Unknown fields
// are ignored so that callers may pass shared resource blocks.
func Decode(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, jsonErrorText(err))
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON object", ErrInvalidInput)
	}
	return Validate(v)
}

// Validate runs struct tags on v.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required", "required_without":
		return name + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", name, fe.Param())
	case "gt", "gte", "min":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "numeric":
		return name + " must be numeric"
	case "datetime":
		return fmt.Sprintf("%s must be a date formatted %s", name, fe.Param())
	}
	return fmt.Sprintf("%s failed %q validation", name, fe.Tag())
}

func jsonErrorText(err error) string {
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) && te.Field != "" {
		return fmt.Sprintf("%s must be %s", te.Field, te.Type.String())
	}
	if errors.Is(err, io.EOF) {
		return "empty document"
	}
	return err.Error()
}

// StringOrNumber accepts either a JSON string or a JSON number and keeps its
// text. FatSecret ids are numeric strings that callers send both ways.
type StringOrNumber string

func (s *StringOrNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = StringOrNumber(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*s = StringOrNumber(n.String())
	return nil
}
