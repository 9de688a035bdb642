package toolbridge

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Encoder serializes results and calls back into a wire encoding, so a model
// that called in one convention sees its results delivered in the same
// convention. One Result always maps to exactly one encoded block, failures
// included: the model must be able to see that a call failed and why.
type Encoder struct {
	g Grammar
}

// NewEncoder creates an Encoder for the given tagged-text grammar. The
// grammar only matters for tagged output; native output is plain JSON.
func NewEncoder(g Grammar) *Encoder {
	return &Encoder{g: g}
}

// nativeResultMessage is the tool-role transcript message native-format
// models expect their results in.
type nativeResultMessage struct {
	Role       string          `json:"role"`
	ToolCallID string          `json:"tool_call_id"`
	Name       string          `json:"name,omitempty"`
	Content    json.RawMessage `json:"content"`
}

type nativeFailureContent struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// EncodeResult serializes one Result in the source format recorded on its
// originating call.
func (e *Encoder) EncodeResult(r Result) (string, error) {
	switch r.Source {
	case FormatTagged:
		return e.encodeTaggedResult(r), nil
	default:
		return e.encodeNativeResult(r)
	}
}

func (e *Encoder) encodeNativeResult(r Result) (string, error) {
	content := r.Data
	if r.Failed() {
		var err error
		content, err = json.Marshal(nativeFailureContent{
			Error:   FailureKind(r.Err),
			Message: FailureMessage(r.Err),
		})
		if err != nil {
			return "", &SystemError{Err: err}
		}
	}
	if len(content) == 0 {
		content = json.RawMessage("null")
	}
	msg, err := json.Marshal(nativeResultMessage{
		Role:       "tool",
		ToolCallID: r.CallID,
		Name:       r.ToolName,
		Content:    content,
	})
	if err != nil {
		return "", &SystemError{Err: err}
	}
	return string(msg), nil
}

// encodeTaggedResult writes one result block in the grammar. All payload and
// attribute content goes through the grammar's escaper, so no result can ever
// contain the opening delimiter sequence and be re-detected as a new call.
func (e *Encoder) encodeTaggedResult(r Result) string {
	var b strings.Builder
	b.WriteString("<" + e.g.Result)
	b.WriteString(` name="` + escapeText(r.ToolName) + `"`)
	b.WriteString(` id="` + escapeText(r.CallID) + `"`)
	if r.Failed() {
		b.WriteString(` error="` + escapeText(FailureKind(r.Err)) + `"`)
		b.WriteString(">")
		b.WriteString(escapeText(FailureMessage(r.Err)))
	} else {
		b.WriteString(">")
		b.WriteString(escapeText(string(r.Data)))
	}
	b.WriteString("</" + e.g.Result + ">")
	return b.String()
}

// EncodeCalls re-serializes normalized calls into the convention a model
// needs in its transcript: native JSON (an array of function call objects)
// or tagged text. Used when replaying or adapting a transcript for a model
// whose capability differs from the one that produced the calls.
func (e *Encoder) EncodeCalls(target SourceFormat, calls []Call) (string, error) {
	if target == FormatTagged {
		return e.encodeTaggedCalls(calls), nil
	}
	out := make([]nativeCall, 0, len(calls))
	for _, c := range calls {
		args := c.Args
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		quoted, err := json.Marshal(string(args))
		if err != nil {
			return "", &SystemError{Err: err}
		}
		out = append(out, nativeCall{
			ID:   c.ID,
			Type: "function",
			Function: &nativeFunction{
				Name:      c.ToolName,
				Arguments: quoted,
			},
		})
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", &SystemError{Err: err}
	}
	return string(data), nil
}

func (e *Encoder) encodeTaggedCalls(calls []Call) string {
	if len(calls) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.g.openBlock())
	b.WriteString("\n")
	for _, c := range calls {
		b.WriteString("<" + e.g.Invoke + ` name="` + escapeText(c.ToolName) + `">`)
		b.WriteString("\n")
		for _, p := range decodeArgsOrdered(c.Args) {
			b.WriteString("<" + e.g.Param + ` name="` + escapeText(p.name) + `">`)
			b.WriteString(escapeText(p.value))
			b.WriteString(e.g.closeParam())
			b.WriteString("\n")
		}
		b.WriteString(e.g.closeInvoke())
		b.WriteString("\n")
	}
	b.WriteString(e.g.closeBlock())
	return b.String()
}

// decodeArgsOrdered walks the argument object in its serialized key order.
// Structured values are re-serialized as JSON text; scalars become their
// literal form.
func decodeArgsOrdered(args json.RawMessage) []taggedParam {
	if len(args) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil
	}
	var params []taggedParam
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return params
		}
		key, _ := keyTok.(string)
		var val any
		if err := dec.Decode(&val); err != nil {
			return params
		}
		params = append(params, taggedParam{name: key, value: paramLiteral(val)})
	}
	return params
}

func paramLiteral(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	case nil:
		return ""
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
