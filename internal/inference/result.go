package inference

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// Result is the outcome of one prediction. It is either a success carrying
// Payload or a failure carrying an error, never both.
type Result[T any] struct {
	Payload T
	err     error
}

// Success wraps a payload
func Success[T any](payload T) Result[T] {
	return Result[T]{Payload: payload}
}

// Failure wraps an error
func Failure[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// OK reports whether the prediction succeeded
func (r Result[T]) OK() bool {
	return r.err == nil
}

// Err returns the failure cause, or nil
func (r Result[T]) Err() error {
	return r.err
}

type failureBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// MarshalJSON writes {"success":true, <payload fields>} or
// {"success":false,"error":"..."}.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.err != nil {
		return json.Marshal(failureBody{Success: false, Error: r.err.Error()})
	}

	payload, err := json.Marshal(r.Payload)
	if err != nil {
		return nil, err
	}
	payload = bytes.TrimSpace(payload)
	if len(payload) < 2 || payload[0] != '{' {
		return nil, fmt.Errorf("payload of type %T is not a JSON object", r.Payload)
	}

	var buf bytes.Buffer
	buf.Grow(len(payload) + 16)
	buf.WriteString(`{"success":true`)
	if inner := bytes.TrimSpace(payload[1 : len(payload)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
