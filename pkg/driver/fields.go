package driver

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/andrej220/shotgun/pkg/spec"
)

var validate = validator.New()

func validateFields(kind string, v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidTask, kind, err)
	}
	return nil
}

func stringField(obj spec.Object, key string) (string, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidTask, key, v)
	}
	return s, nil
}

func stringFieldOr(obj spec.Object, key, def string) (string, error) {
	s, err := stringField(obj, key)
	if err != nil || s != "" {
		return s, err
	}
	return def, nil
}

// stringList accepts a scalar or a list; a scalar becomes a one element list.
func stringList(obj spec.Object, key string) ([]string, error) {
	switch v := obj[key].(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s[%d] must be a string, got %T", ErrInvalidTask, key, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a string or a list, got %T", ErrInvalidTask, key, v)
	}
}

// durationField reads a number of seconds.
func durationField(obj spec.Object, key string) (time.Duration, bool, error) {
	var secs float64
	switch v := obj[key].(type) {
	case nil:
		return 0, false, nil
	case int:
		secs = float64(v)
	case int32:
		secs = float64(v)
	case int64:
		secs = float64(v)
	case float64:
		secs = v
	default:
		return 0, false, fmt.Errorf("%w: %s must be a number of seconds, got %T", ErrInvalidTask, key, v)
	}
	return time.Duration(secs * float64(time.Second)), true, nil
}
