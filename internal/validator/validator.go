// Package validator checks submitted log entries against the fixed log schema.
package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/logbook/backend/internal/models"
	"github.com/valyala/fastjson"
)

// Kind classifies a validation failure.
type Kind int

const (
	KindMissingField Kind = iota + 1
	KindInvalidLevel
	KindInvalidTimestamp
	KindInvalidMetadata
	KindInvalidField
)

func (k Kind) String() string {
	switch k {
	case KindMissingField:
		return "MissingField"
	case KindInvalidLevel:
		return "InvalidLevel"
	case KindInvalidTimestamp:
		return "InvalidTimestamp"
	case KindInvalidMetadata:
		return "InvalidMetadata"
	case KindInvalidField:
		return "InvalidField"
	default:
		return "Unknown"
	}
}

// ValidationError reports the first schema violation found in an entry.
type ValidationError struct {
	Kind  Kind
	Field string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case KindMissingField:
		return "Missing required field: " + e.Field
	case KindInvalidLevel:
		return "Invalid level. Must be one of: " + levelList
	case KindInvalidTimestamp:
		return "Invalid timestamp format. Must be ISO 8601 format."
	case KindInvalidMetadata:
		return "Metadata must be a valid JSON object"
	case KindInvalidField:
		return fmt.Sprintf("Field %s must be a string", e.Field)
	default:
		return "invalid log entry"
	}
}

// ErrMalformedRequest is returned when the body is not a JSON object.
var ErrMalformedRequest = errors.New("malformed request body")

// RequiredFields lists the schema keys in the order they are checked.
var RequiredFields = []string{
	"level", "message", "resourceId", "timestamp",
	"traceId", "spanId", "commit", "metadata",
}

var textFields = []string{"message", "resourceId", "traceId", "spanId", "commit"}

var timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d{3})?Z?$`)

var levelList = func() string {
	names := make([]string, len(models.Levels))
	for i, l := range models.Levels {
		names[i] = string(l)
	}
	return strings.Join(names, ", ")
}()

var parserPool fastjson.ParserPool

// Validate checks raw against the schema. A body repeating a top-level key is
// malformed. Otherwise the first violation is returned: required fields, then
// level, timestamp, metadata and finally the types of the free-text fields.
func Validate(raw []byte) error {
	p := parserPool.Get()
	defer parserPool.Put(p)

	v, err := p.ParseBytes(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	obj, err := v.Object()
	if err != nil {
		return fmt.Errorf("%w: expected a JSON object", ErrMalformedRequest)
	}
	if key := duplicateKey(obj); key != "" {
		return fmt.Errorf("%w: duplicate key %q", ErrMalformedRequest, key)
	}
	return validateObject(obj)
}

// duplicateKey returns the first top-level key that appears more than once.
// The checked value and the decoded value must be the same one.
func duplicateKey(obj *fastjson.Object) string {
	seen := make(map[string]struct{}, obj.Len())
	var dup string
	obj.Visit(func(key []byte, _ *fastjson.Value) {
		if dup != "" {
			return
		}
		k := string(key)
		if _, ok := seen[k]; ok {
			dup = k
			return
		}
		seen[k] = struct{}{}
	})
	return dup
}

func validateObject(obj *fastjson.Object) error {
	for _, field := range RequiredFields {
		if obj.Get(field) == nil {
			return &ValidationError{Kind: KindMissingField, Field: field}
		}
	}

	if level, ok := stringValue(obj.Get("level")); !ok || !models.Level(level).Valid() {
		return &ValidationError{Kind: KindInvalidLevel, Field: "level"}
	}

	if ts, ok := stringValue(obj.Get("timestamp")); !ok || !timestampPattern.MatchString(ts) {
		return &ValidationError{Kind: KindInvalidTimestamp, Field: "timestamp"}
	}

	if obj.Get("metadata").Type() != fastjson.TypeObject {
		return &ValidationError{Kind: KindInvalidMetadata, Field: "metadata"}
	}

	for _, field := range textFields {
		if obj.Get(field).Type() != fastjson.TypeString {
			return &ValidationError{Kind: KindInvalidField, Field: field}
		}
	}
	return nil
}

func stringValue(v *fastjson.Value) (string, bool) {
	if v.Type() != fastjson.TypeString {
		return "", false
	}
	b, err := v.StringBytes()
	if err != nil {
		return "", false
	}
	return string(b), true
}

// Parse validates raw and decodes it into a LogEntry. Keys outside the schema are dropped.
func Parse(raw []byte) (models.LogEntry, error) {
	var entry models.LogEntry
	if err := Validate(raw); err != nil {
		return entry, err
	}
	if err := json.Unmarshal(raw, &entry); err != nil {
		return entry, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	return entry, nil
}

// IsValidationError reports whether err is a schema violation and returns it.
func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
