package toolbridge

import (
	"encoding/json"
	"strings"
)

// Detection is the closed verdict set of format detection. Adding a new
// encoding means adding one verdict and one detector, not touching existing
// branches.
type Detection int

const (
	// DetectNone means no call syntax is present; the input is plain prose.
	DetectNone Detection = iota
	// DetectNative means the input is a structured call object (or array).
	DetectNative
	// DetectTagged means a complete tagged-text call block is present.
	DetectTagged
	// DetectTaggedPartial means the opening delimiter has been seen but the
	// block is not closed yet. This is the normal case mid-stream, not an
	// error: the caller should keep feeding fragments.
	DetectTaggedPartial
)

func (d Detection) String() string {
	switch d {
	case DetectNative:
		return "native"
	case DetectTagged:
		return "tagged"
	case DetectTaggedPartial:
		return "tagged-partial"
	default:
		return "none"
	}
}

// Detect classifies a text fragment against the grammar. Prose before, after,
// or between call blocks never affects the verdict; only the presence and
// completeness of the block delimiters do. A trailing prefix of the opening
// delimiter (e.g. the text ends in "<cal") also yields DetectTaggedPartial,
// since the next fragment may complete it.
func (g Grammar) Detect(text string) Detection {
	open := strings.Index(text, g.openBlock())
	if open < 0 {
		if partialOpenAt(text, g.openBlock()) >= 0 {
			return DetectTaggedPartial
		}
		return DetectNone
	}
	if strings.Contains(text[open:], g.closeBlock()) {
		return DetectTagged
	}
	return DetectTaggedPartial
}

// DetectRaw classifies a structured payload as a native call. Both the
// OpenAI wrapper shape ({id, type:"function", function:{...}}) and the direct
// shape ({name, arguments}) count, as does an array of either.
func DetectRaw(raw json.RawMessage) Detection {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return DetectNone
	}
	switch val := v.(type) {
	case []any:
		if len(val) == 0 {
			return DetectNone
		}
		if m, ok := val[0].(map[string]any); ok && isNativeShape(m) {
			return DetectNative
		}
	case map[string]any:
		if isNativeShape(val) {
			return DetectNative
		}
	}
	return DetectNone
}

func isNativeShape(m map[string]any) bool {
	if _, ok := m["function"]; ok {
		return true
	}
	_, ok := m["name"]
	return ok
}

// partialOpenAt returns the index where a strict prefix of the opening
// delimiter starts at the very end of text, or -1. Used to hold back text
// that may turn into a call block once more fragments arrive.
func partialOpenAt(text, open string) int {
	max := len(open) - 1
	if max > len(text) {
		max = len(text)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(text, open[:n]) {
			return len(text) - n
		}
	}
	return -1
}
