package receipt

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrRecovery is matched by every *RecoveryError
var ErrRecovery = errors.New("no JSON object in response")

// RecoveryError carries the model output that could not be parsed
type RecoveryError struct {
	Raw string
	Err error
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("recovering JSON: %v", e.Err)
}

func (e *RecoveryError) Unwrap() error {
	return e.Err
}

func (e *RecoveryError) Is(target error) bool {
	return target == ErrRecovery
}

// RecoverJSON parses raw as a JSON object, falling back to the text between
// the first '{' and the last '}'. Numbers are kept as json.Number.
func RecoverJSON(raw string) (map[string]any, error) {
	if obj, err := decodeObject(raw); err == nil {
		return obj, nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end < start {
		return nil, &RecoveryError{Raw: raw, Err: errors.New("no JSON object found in response")}
	}

	obj, err := decodeObject(raw[start : end+1])
	if err != nil {
		return nil, &RecoveryError{Raw: raw, Err: fmt.Errorf("unmarshaling json: %w", err)}
	}
	return obj, nil
}

// decodeObject decodes s as exactly one JSON object
func decodeObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("JSON value is not an object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON object")
	}
	return obj, nil
}
