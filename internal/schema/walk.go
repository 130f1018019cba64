// Package schema validates payloads crossing the boundary with the activity service and
// converts them into domain values.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/sia/internal/domain"
)

// ValidationError reports the first field that did not match the expected shape.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed at %s: %s", e.Path, e.Reason)
}

func fail(path, format string, args ...any) error {
	return &ValidationError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

func parse(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fail("", "malformed JSON: %v", err)
	}
	if dec.More() {
		return nil, fail("", "trailing data after JSON value")
	}
	return v, nil
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func index(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}

func kind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

// object walks a decoded JSON object while tracking the path of every field it reads.
type object struct {
	path   string
	fields map[string]any
}

func asObject(v any, path string) (object, error) {
	fields, ok := v.(map[string]any)
	if !ok {
		return object{}, fail(path, "expected object, got %s", kind(v))
	}
	return object{path: path, fields: fields}, nil
}

func (o object) at(name string) string { return join(o.path, name) }

func (o object) lookup(name string) (any, bool) {
	v, ok := o.fields[name]
	return v, ok
}

func (o object) required(name string) (any, error) {
	v, ok := o.fields[name]
	if !ok {
		return nil, fail(o.at(name), "required field missing")
	}
	return v, nil
}

func (o object) str(name string) (string, error) {
	v, err := o.required(name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fail(o.at(name), "expected string, got %s", kind(v))
	}
	return s, nil
}

// nullableStr requires the key to be present; an explicit null maps to nil.
func (o object) nullableStr(name string) (*string, error) {
	v, err := o.required(name)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fail(o.at(name), "expected string or null, got %s", kind(v))
	}
	return &s, nil
}

func (o object) boolean(name string) (bool, error) {
	v, err := o.required(name)
	if err != nil {
		return false, err
	}
	return toBool(v, o.at(name))
}

func (o object) booleanOr(name string, fallback bool) (bool, error) {
	v, ok := o.lookup(name)
	if !ok {
		return fallback, nil
	}
	return toBool(v, o.at(name))
}

func toBool(v any, path string) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fail(path, "expected boolean, got %s", kind(v))
	}
	return b, nil
}

func (o object) integer(name string) (int, error) {
	v, err := o.required(name)
	if err != nil {
		return 0, err
	}
	return toInt(v, o.at(name))
}

func (o object) integerOr(name string, fallback int) (int, error) {
	v, ok := o.lookup(name)
	if !ok {
		return fallback, nil
	}
	return toInt(v, o.at(name))
}

func toInt(v any, path string) (int, error) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, fail(path, "expected number, got %s", kind(v))
	}
	i, err := n.Int64()
	if err != nil {
		return 0, fail(path, "expected integer, got %s", n.String())
	}
	return int(i), nil
}

func (o object) id(name string) (string, error) {
	s, err := o.str(name)
	if err != nil {
		return "", err
	}
	return toUUID(s, o.at(name))
}

func toUUID(s, path string) (string, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return "", fail(path, "expected uuid, got %q", s)
	}
	return parsed.String(), nil
}

// Layouts accepted for datetimes. The service emits ISO 8601 with or without an offset;
// values without one are UTC.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

func (o object) datetime(name string) (time.Time, error) {
	s, err := o.str(name)
	if err != nil {
		return time.Time{}, err
	}
	for _, layout := range datetimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fail(o.at(name), "expected ISO 8601 datetime, got %q", s)
}

func (o object) child(name string) (object, error) {
	v, err := o.required(name)
	if err != nil {
		return object{}, err
	}
	return asObject(v, o.at(name))
}

// array returns the elements of an array field. A missing field yields nil when optional.
func (o object) array(name string, optional bool) ([]any, error) {
	v, ok := o.lookup(name)
	if !ok {
		if optional {
			return nil, nil
		}
		return nil, fail(o.at(name), "required field missing")
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fail(o.at(name), "expected array, got %s", kind(v))
	}
	return items, nil
}

// tag reads the activity_type discriminant. It is never defaulted.
func (o object) tag() (domain.ItemType, error) {
	const name = "activity_type"
	v, ok := o.lookup(name)
	if !ok {
		return "", fail(o.at(name), "discriminant missing")
	}
	s, ok := v.(string)
	if !ok {
		return "", fail(o.at(name), "discriminant must be a string, got %s", kind(v))
	}
	t := domain.ItemType(s)
	if !t.Valid() {
		return "", fail(o.at(name), "unknown discriminant %q", strings.TrimSpace(s))
	}
	return t, nil
}
