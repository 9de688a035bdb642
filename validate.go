package toolbridge

import (
	"bytes"
	"encoding/json"
	"slices"
	"strconv"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// Validate checks a normalized call against the registered tool's parameter
// schema. It is pure: no handler runs, no state changes. On success it returns
// the call with arguments possibly rewritten by the coercion pass; on failure
// the error is a ClientError whose message names the offending parameter so
// the model can self-correct.
//
// Checks, in order: tool exists; no undeclared arguments when the tool is
// strict; every required parameter present; one coercion pass (string→number,
// string→boolean, top-level scalars only) followed by a type check; finally
// full validation against the compiled JSON Schema for nested constraints.
func (r *Registry) Validate(call Call) (Call, error) {
	tool, ok := r.Lookup(call.ToolName)
	if !ok {
		return call, &ClientError{Reason: "unknown tool: " + call.ToolName, Err: ErrToolNotFound}
	}
	props, required, strict := schemaParams(tool.Parameters())
	if tm, ok := tool.(ToolMetadata); ok && tm.IsStrict() {
		strict = true
	}

	args := call.Args
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.UseNumber()
	var argsMap map[string]any
	if err := dec.Decode(&argsMap); err != nil {
		return call, wrapJSONParseError(err)
	}

	// recompute undeclared arguments here rather than trusting the
	// normalizer's flag: calls may enter validation directly
	var unknown []string
	for name := range argsMap {
		if _, declared := props[name]; !declared && len(props) > 0 {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		unknown = slices.Compact(unknown)
		if strict {
			return call, &ClientError{Reason: "unexpected parameter: " + unknown[0], Err: ErrValidation}
		}
		call.Unknown = unknown
	}

	for _, name := range required {
		if _, present := argsMap[name]; !present {
			return call, &ClientError{Reason: "missing parameter: " + name, Err: ErrValidation}
		}
	}

	changed := false
	for name, val := range argsMap {
		typ, declared := props[name]
		if !declared || typ == "" {
			continue
		}
		coerced, okType, didChange := coerceValue(val, typ)
		if !okType {
			return call, &ClientError{Reason: "invalid parameter type: " + name, Err: ErrValidation}
		}
		if didChange {
			argsMap[name] = coerced
			changed = true
		}
	}
	if changed {
		out, err := json.Marshal(argsMap)
		if err != nil {
			return call, &SystemError{Err: err}
		}
		call.Args = out
	} else {
		call.Args = args
	}

	if sch := r.compiledSchema(call.ToolName); sch != nil {
		inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(call.Args))
		if err == nil {
			if err := sch.Validate(inst); err != nil {
				return call, &ClientError{Reason: err.Error(), Err: ErrValidation}
			}
		}
	}
	return call, nil
}

// coerceValue attempts the single permitted coercion pass for a declared
// primitive type and then type-checks. Structured and nested values are never
// coerced: permissive coercion hides real model mistakes.
func coerceValue(val any, typ string) (out any, ok, changed bool) {
	switch typ {
	case "string":
		_, isStr := val.(string)
		return val, isStr, false
	case "integer":
		switch v := val.(type) {
		case json.Number:
			_, err := strconv.ParseInt(v.String(), 10, 64)
			return val, err == nil, false
		case string:
			if _, err := strconv.ParseInt(v, 10, 64); err == nil {
				return json.Number(v), true, true
			}
			return val, false, false
		}
		return val, false, false
	case "number":
		switch v := val.(type) {
		case json.Number:
			return val, true, false
		case string:
			if _, err := strconv.ParseFloat(v, 64); err == nil {
				return json.Number(v), true, true
			}
			return val, false, false
		}
		return val, false, false
	case "boolean":
		switch v := val.(type) {
		case bool:
			return val, true, false
		case string:
			if v == "true" {
				return true, true, true
			}
			if v == "false" {
				return false, true, true
			}
			return val, false, false
		}
		return val, false, false
	case "object":
		_, isMap := val.(map[string]any)
		return val, isMap, false
	case "array":
		_, isSlice := val.([]any)
		return val, isSlice, false
	default:
		return val, true, false
	}
}

// schemaParams extracts the top-level parameter view from a JSON Schema map:
// name→type for declared properties, the required list, and whether the
// schema itself forbids additional properties.
func schemaParams(schema map[string]any) (props map[string]string, required []string, strict bool) {
	obj := objectNode(schema)
	if obj == nil {
		return nil, nil, false
	}
	if ap, ok := obj["additionalProperties"].(bool); ok && !ap {
		strict = true
	}
	if rawProps, ok := obj["properties"].(map[string]any); ok {
		props = make(map[string]string, len(rawProps))
		for name, v := range rawProps {
			typ := ""
			if prop, ok := v.(map[string]any); ok {
				typ, _ = prop["type"].(string)
			}
			props[name] = typ
		}
	}
	if rawReq, ok := obj["required"].([]any); ok {
		for _, v := range rawReq {
			if name, ok := v.(string); ok {
				required = append(required, name)
			}
		}
	} else if rawReq, ok := obj["required"].([]string); ok {
		required = rawReq
	}
	return props, required, strict
}

// objectNode finds the object node of a schema: the root when it has
// properties, otherwise the first $defs entry that does (reflected schemas
// may keep the struct definition referenced rather than inlined).
func objectNode(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}
	if _, ok := schema["properties"]; ok {
		return schema
	}
	if defs, ok := schema["$defs"].(map[string]any); ok {
		for _, v := range defs {
			if o, ok := v.(map[string]any); ok {
				if _, ok := o["properties"]; ok {
					return o
				}
			}
		}
	}
	return nil
}
