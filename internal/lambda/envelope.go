// Package lambda is the runtime shared by every command: it reads one JSON
// document, runs a handler and prints one JSON envelope.
//
//	{"success":true, ...fields}
//	{"success":false,"error":"...","code":"..."}
package lambda

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/itchyny/gojq"
)

// ErrFailed is returned after a failure envelope has been written. The
// caller only needs to exit non-zero.
var ErrFailed = errors.New("lambda failed")

// Fields are the top-level output members next to "success".
type Fields map[string]any

// Env carries the process I/O for one invocation.
type Env struct {
	Args   []string
	Stdin  io.Reader
	Stdout io.Writer
	// JQ, when set, filters the envelope before it is printed.
	JQ     string
	Logger *slog.Logger
	// MaxInput limits stdin in bytes. Zero means DefaultMaxInput.
	MaxInput int64
	// Observe receives the outcome of every invocation. Optional.
	Observe func(command string, ok bool, d time.Duration)
}

// Run decodes the input into a fresh T, calls fn and writes the envelope.
func Run[T any](ctx context.Context, env Env, command string, fn func(context.Context, T) (Fields, error)) error {
	start := time.Now()
	log := env.logger().With("command", command)

	fields, err := func() (Fields, error) {
		raw, err := ReadInputLimit(env.Args, env.Stdin, env.MaxInput)
		if err != nil {
			return nil, err
		}
		var in T
		if err := Decode(raw, &in); err != nil {
			return nil, err
		}
		return fn(ctx, in)
	}()

	if env.Observe != nil {
		env.Observe(command, err == nil, time.Since(start))
	}
	if err != nil {
		code := Classify(err)
		log.Error("invocation failed", "code", code, "err", err, "ms", time.Since(start).Milliseconds())
		if werr := WriteError(ctx, env.Stdout, env.JQ, err); werr != nil {
			log.Warn("jq filter failed on error envelope", "err", werr)
			_ = WriteError(ctx, env.Stdout, "", err)
		}
		return ErrFailed
	}
	log.Debug("invocation succeeded", "ms", time.Since(start).Milliseconds())
	if err := WriteSuccess(ctx, env.Stdout, env.JQ, fields); err != nil {
		log.Error("write envelope", "err", err)
		_ = WriteError(ctx, env.Stdout, "", err)
		return ErrFailed
	}
	return nil
}

func (e Env) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// WriteSuccess prints {"success":true} merged with fields.
func WriteSuccess(ctx context.Context, w io.Writer, jq string, fields Fields) error {
	env := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		env[k] = v
	}
	env["success"] = true
	return write(ctx, w, jq, env)
}

// WriteError prints the failure envelope for err.
func WriteError(ctx context.Context, w io.Writer, jq string, err error) error {
	return write(ctx, w, jq, map[string]any{
		"success": false,
		"error":   err.Error(),
		"code":    Classify(err),
	})
}

func write(ctx context.Context, w io.Writer, jq string, v map[string]any) error {
	if jq == "" {
		return encode(w, v)
	}
	return filter(ctx, w, jq, v)
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// filter runs a jq program over the envelope and prints each result on its
// own line. String results print raw.
func filter(ctx context.Context, w io.Writer, expr string, v map[string]any) error {
	q, err := gojq.Parse(expr)
	if err != nil {
		return fmt.Errorf("%w: jq: %v", ErrInvalidInput, err)
	}
	code, err := gojq.Compile(q)
	if err != nil {
		return fmt.Errorf("%w: jq: %v", ErrInvalidInput, err)
	}
	generic, err := normalize(v)
	if err != nil {
		return err
	}
	// Buffer so a late jq error leaves nothing on w.
	var buf bytes.Buffer
	iter := code.RunWithContext(ctx, generic)
	for {
		out, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := out.(error); isErr {
			return fmt.Errorf("%w: jq: %v", ErrInvalidInput, err)
		}
		if s, isStr := out.(string); isStr {
			buf.WriteString(s)
			buf.WriteByte('\n')
			continue
		}
		if err := encode(&buf, out); err != nil {
			return err
		}
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// normalize converts typed results into the plain maps and slices gojq
// operates on.
func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
