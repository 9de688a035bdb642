package toolbridge

import (
	"bytes"
	"encoding/json"
	"maps"
	"reflect"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// Validatable is implemented by argument structs that need custom business
// validation. Called after schema validation and unmarshaling.
type Validatable interface {
	Validate() error
}

// Extractor provides JSON Schema generation and two-layer validation (schema
// + Validatable) for type T without binding to the Tool interface. Use it in
// custom orchestrators that need schema export and validated parsing but not
// the registry pipeline.
type Extractor[T any] struct {
	schemaMap map[string]any
	compiled  *jsonschema.Schema
}

// NewExtractor creates an Extractor for type T. When strict is true, the
// generated schema has additionalProperties: false for all objects and all
// properties required (OpenAI Structured Outputs).
func NewExtractor[T any](strict bool) (*Extractor[T], error) {
	schemaMap, compiled, err := generateSchema[T](strict)
	if err != nil {
		return nil, err
	}
	return &Extractor[T]{
		schemaMap: schemaMap,
		compiled:  compiled,
	}, nil
}

// Schema returns a shallow copy of the JSON Schema (top-level keys only).
// Nested maps are shared; callers must not mutate them.
func (e *Extractor[T]) Schema() map[string]any {
	return maps.Clone(e.schemaMap)
}

// ParseAndValidate deserializes argsJSON into T, runs schema validation and
// then Validatable.Validate() if T implements it. Returns ClientError for
// invalid JSON or validation failures so the caller can pass the message to
// the LLM for self-correction.
func (e *Extractor[T]) ParseAndValidate(argsJSON []byte) (T, error) {
	var zero T
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(argsJSON))
	if err != nil {
		return zero, wrapJSONParseError(err)
	}
	if err := e.compiled.Validate(inst); err != nil {
		return zero, &ClientError{Reason: err.Error(), Err: ErrValidation}
	}
	var args T
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return zero, wrapJSONParseError(err)
	}
	if err := runCustomValidation(args); err != nil {
		if IsClientError(err) {
			return zero, err
		}
		return zero, &ClientError{Reason: err.Error(), Err: ErrValidation}
	}
	return args, nil
}

// runCustomValidation runs Validatable.Validate() on args; if args does not
// implement Validatable, it tries &args for value types (pointer receiver).
// Never calls Validate twice for the same receiver.
func runCustomValidation[T any](args T) error {
	if v, ok := any(args).(Validatable); ok {
		return v.Validate()
	}
	typ := reflect.TypeOf(args)
	if typ == nil || typ.Kind() == reflect.Pointer {
		return nil
	}
	if v, ok := any(&args).(Validatable); ok {
		return v.Validate()
	}
	return nil
}
