package config

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// StringToLogLevel is a DecodeHookFunc that converts "debug", "INFO",
// "warn+2" and friends to slog.Level.
func StringToLogLevel() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(slog.Level(0)) {
			return data, nil
		}
		s := strings.TrimSpace(data.(string))
		if s == "" {
			return nil, fmt.Errorf("empty log level string")
		}
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(s)); err != nil {
			return nil, err
		}
		return lvl, nil
	}
}

// StringToByteSize is a DecodeHookFunc that converts size strings to ByteSize.
func StringToByteSize() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(ByteSize(0)) {
			return data, nil
		}
		n, err := ParseSize(data.(string))
		if err != nil {
			return nil, err
		}
		return ByteSize(n), nil
	}
}
