package toolbridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// nativeCall covers both structured wire shapes: the wrapped form
// {id, type:"function", function:{name, arguments}} and the direct form
// {id, name, arguments}. Arguments may be a JSON object or a JSON string
// containing a serialized object.
type nativeCall struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Function  *nativeFunction `json:"function"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type nativeFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// NormalizeNative converts a structured payload (one call object or an array
// of them) into canonical calls. A call whose argument string does not parse
// becomes a failure Result for that call only; the remaining calls are still
// returned. The returned error is non-nil only when raw itself is not valid
// JSON of a supported shape.
//
// reg may be nil; when set, argument names missing from the registered tool's
// schema are flagged on Call.Unknown.
func NormalizeNative(raw json.RawMessage, reg *Registry) ([]Call, []Result, error) {
	var list []json.RawMessage
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, nil, wrapJSONParseError(err)
		}
	case len(trimmed) > 0 && trimmed[0] == '{':
		list = []json.RawMessage{raw}
	default:
		return nil, nil, &ClientError{Reason: "unsupported native call payload"}
	}

	var calls []Call
	var failures []Result
	for _, item := range list {
		call, err := normalizeOneNative(item, reg)
		if err != nil {
			failures = append(failures, Result{
				CallID:   call.ID,
				ToolName: call.ToolName,
				Source:   FormatNative,
				Err:      err,
			})
			continue
		}
		calls = append(calls, call)
	}
	return calls, failures, nil
}

func normalizeOneNative(raw json.RawMessage, reg *Registry) (Call, error) {
	var nc nativeCall
	if err := json.Unmarshal(raw, &nc); err != nil {
		return Call{ID: newCallID()}, wrapJSONParseError(err)
	}
	name := nc.Name
	args := nc.Arguments
	if nc.Function != nil {
		name = nc.Function.Name
		args = nc.Function.Arguments
	}
	call := Call{
		ID:       nc.ID,
		ToolName: name,
		Source:   FormatNative,
		Raw:      string(raw),
	}
	if call.ID == "" {
		call.ID = newCallID()
	}
	if name == "" {
		return call, &ClientError{Reason: "native call has no tool name"}
	}
	obj, err := argumentsObject(args)
	if err != nil {
		return call, err
	}
	call.Args = obj
	call.Unknown = undeclaredArguments(reg, name, obj)
	return call, nil
}

// argumentsObject resolves the arguments field into a JSON object. A string
// value gets exactly one extra parse step; a malformed string is an error,
// never silently treated as empty.
func argumentsObject(args json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return json.RawMessage("{}"), nil
	}
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, &ClientError{Reason: "invalid arguments: " + err.Error(), Err: ErrValidation}
		}
		inner = strings.TrimSpace(inner)
		if inner == "" || inner == "null" {
			return json.RawMessage("{}"), nil
		}
		trimmed = []byte(inner)
	}
	var obj map[string]any
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, &ClientError{Reason: "invalid arguments: " + err.Error(), Err: ErrValidation}
	}
	return json.RawMessage(append([]byte(nil), trimmed...)), nil
}

// ParseTagged parses a complete text through the tagged-text grammar and
// returns the resulting segments: prose, normalized calls (document order,
// generated ids), and failure results for blocks that are present but not
// usable (unterminated or missing a name attribute).
func ParseTagged(g Grammar, text string, reg *Registry) []Segment {
	sc := newScanner(g)
	events := sc.feed(text)
	events = append(events, sc.finish()...)
	segs := make([]Segment, 0, len(events))
	for _, ev := range events {
		segs = append(segs, promoteEvent(ev, reg))
	}
	return segs
}

// promoteEvent converts one scanner event into a Segment. Broken blocks
// become failure results so the model learns the call never executed.
func promoteEvent(ev scanEvent, reg *Registry) Segment {
	if ev.call == nil {
		return Segment{Text: ev.text}
	}
	tc := ev.call
	if tc.broken != "" {
		err := &ClientError{Reason: tc.broken, Retryable: true, Err: ErrIncompleteCall}
		return Segment{Failure: &Result{
			CallID:   newCallID(),
			ToolName: tc.name,
			Source:   FormatTagged,
			Err:      err,
		}}
	}
	call := promoteTagged(tc, reg)
	return Segment{Call: &call}
}

// promoteTagged builds the canonical Call for a well-terminated invoke block.
func promoteTagged(tc *taggedCall, reg *Registry) Call {
	call := Call{
		ID:       newCallID(),
		ToolName: tc.name,
		Args:     encodeTaggedArgs(tc.params),
		Source:   FormatTagged,
		Raw:      tc.raw,
	}
	call.Unknown = undeclaredArguments(reg, tc.name, call.Args)
	return call
}

// encodeTaggedArgs serializes params into a JSON object whose keys keep the
// document order of the param blocks. Values that are themselves JSON
// structures (objects or arrays) are carried as such; scalar values stay
// literal strings and rely on the validator's coercion pass.
func encodeTaggedArgs(params []taggedParam) json.RawMessage {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, p := range params {
		if i > 0 {
			b.WriteByte(',')
		}
		key, _ := json.Marshal(p.name)
		b.Write(key)
		b.WriteByte(':')
		b.Write(encodeParamValue(p.value))
	}
	b.WriteByte('}')
	return b.Bytes()
}

func encodeParamValue(value string) []byte {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid([]byte(trimmed)) {
		return []byte(trimmed)
	}
	out, err := json.Marshal(value)
	if err != nil {
		// strings always marshal; kept for completeness
		return []byte(`""`)
	}
	return out
}

// undeclaredArguments returns argument names absent from the registered
// tool's schema. The arguments themselves stay on the call; validation
// decides whether they are fatal.
func undeclaredArguments(reg *Registry, toolName string, args json.RawMessage) []string {
	if reg == nil {
		return nil
	}
	tool, ok := reg.Lookup(toolName)
	if !ok {
		return nil
	}
	props, _, _ := schemaParams(tool.Parameters())
	if props == nil {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(args, &obj); err != nil {
		return nil
	}
	var unknown []string
	for name := range obj {
		if _, declared := props[name]; !declared {
			unknown = append(unknown, name)
		}
	}
	slices.Sort(unknown)
	return unknown
}

func newCallID() string {
	return fmt.Sprintf("call_%s", uuid.NewString())
}
