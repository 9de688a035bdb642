package toolbridge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectScan(events []scanEvent) (text string, calls []*taggedCall) {
	var b strings.Builder
	for _, ev := range events {
		if ev.call != nil {
			calls = append(calls, ev.call)
			continue
		}
		b.WriteString(ev.text)
	}
	return b.String(), calls
}

func TestScanner_SingleInvoke(t *testing.T) {
	t.Parallel()
	sc := newScanner(DefaultGrammar)
	events := sc.feed(`<calls><invoke name="lookup"><param name="key">alpha</param></invoke></calls>`)
	events = append(events, sc.finish()...)
	text, calls := collectScan(events)
	assert.Empty(t, text)
	require.Len(t, calls, 1)
	assert.Equal(t, "lookup", calls[0].name)
	assert.Empty(t, calls[0].broken)
	require.Len(t, calls[0].params, 1)
	assert.Equal(t, "key", calls[0].params[0].name)
	assert.Equal(t, "alpha", calls[0].params[0].value)
}

func TestScanner_ProseAroundBlock(t *testing.T) {
	t.Parallel()
	sc := newScanner(DefaultGrammar)
	input := `before <calls><invoke name="a"></invoke></calls> after`
	events := sc.feed(input)
	events = append(events, sc.finish()...)
	text, calls := collectScan(events)
	assert.Equal(t, "before  after", text)
	require.Len(t, calls, 1)
	assert.Equal(t, "a", calls[0].name)
}

func TestScanner_AngleBracketInProse(t *testing.T) {
	t.Parallel()
	sc := newScanner(DefaultGrammar)
	events := sc.feed("x < y and 2 <calzone> z")
	events = append(events, sc.finish()...)
	text, calls := collectScan(events)
	assert.Equal(t, "x < y and 2 <calzone> z", text)
	assert.Empty(t, calls)
}

func TestScanner_MultipleInvokes_DocumentOrder(t *testing.T) {
	t.Parallel()
	sc := newScanner(DefaultGrammar)
	events := sc.feed(`<calls>` +
		`<invoke name="first"><param name="p">1</param></invoke>` +
		`<invoke name="second"><param name="p">2</param></invoke>` +
		`</calls>`)
	events = append(events, sc.finish()...)
	_, calls := collectScan(events)
	require.Len(t, calls, 2)
	assert.Equal(t, "first", calls[0].name)
	assert.Equal(t, "second", calls[1].name)
}

func TestScanner_FragmentedAtEveryBoundary(t *testing.T) {
	t.Parallel()
	input := `prose <calls>
<invoke name="nav"><param name="url">https://example.com?a=1&amp;b=2</param>
<param name="depth">3</param></invoke>
</calls> tail`
	whole := newScanner(DefaultGrammar)
	events := whole.feed(input)
	events = append(events, whole.finish()...)
	wantText, wantCalls := collectScan(events)
	require.Len(t, wantCalls, 1)

	for split := 1; split < len(input); split++ {
		sc := newScanner(DefaultGrammar)
		var evs []scanEvent
		evs = append(evs, sc.feed(input[:split])...)
		evs = append(evs, sc.feed(input[split:])...)
		evs = append(evs, sc.finish()...)
		text, calls := collectScan(evs)
		require.Lenf(t, calls, 1, "split at %d", split)
		assert.Equalf(t, wantText, text, "split at %d", split)
		assert.Equalf(t, wantCalls[0].name, calls[0].name, "split at %d", split)
		assert.Equalf(t, wantCalls[0].params, calls[0].params, "split at %d", split)
	}
}

func TestScanner_ByteByByte(t *testing.T) {
	t.Parallel()
	input := `<calls><invoke name="x"><param name="y">1</param></invoke></calls>`
	sc := newScanner(DefaultGrammar)
	var evs []scanEvent
	for i := range input {
		evs = append(evs, sc.feed(input[i:i+1])...)
	}
	evs = append(evs, sc.finish()...)
	text, calls := collectScan(evs)
	assert.Empty(t, text)
	require.Len(t, calls, 1)
	assert.Equal(t, "x", calls[0].name)
	require.Len(t, calls[0].params, 1)
	assert.Equal(t, "1", calls[0].params[0].value)
}

func TestScanner_UnterminatedInvoke(t *testing.T) {
	t.Parallel()
	sc := newScanner(DefaultGrammar)
	events := sc.feed(`<calls><invoke name="x"><param name="y">par`)
	text, calls := collectScan(events)
	assert.Empty(t, text)
	assert.Empty(t, calls)
	events = sc.finish()
	_, calls = collectScan(events)
	require.Len(t, calls, 1)
	assert.Equal(t, "unterminated call block", calls[0].broken)
	assert.Equal(t, "x", calls[0].name)
}

func TestScanner_MissingNameAttr(t *testing.T) {
	t.Parallel()
	sc := newScanner(DefaultGrammar)
	events := sc.feed(`<calls><invoke></invoke></calls>`)
	events = append(events, sc.finish()...)
	_, calls := collectScan(events)
	require.Len(t, calls, 1)
	assert.Equal(t, "invoke block missing name attribute", calls[0].broken)
}

func TestScanner_ValueIsLiteralText(t *testing.T) {
	t.Parallel()
	sc := newScanner(DefaultGrammar)
	// markup-looking content inside a param is literal text, not nested tags
	events := sc.feed(`<calls><invoke name="x"><param name="v">&lt;b&gt;bold&lt;/b&gt; &amp; more</param></invoke></calls>`)
	events = append(events, sc.finish()...)
	_, calls := collectScan(events)
	require.Len(t, calls, 1)
	assert.Equal(t, "<b>bold</b> & more", calls[0].params[0].value)
}

func TestScanner_SingleQuotedAttr(t *testing.T) {
	t.Parallel()
	sc := newScanner(DefaultGrammar)
	events := sc.feed(`<calls><invoke name='tool'><param name='p'>v</param></invoke></calls>`)
	events = append(events, sc.finish()...)
	_, calls := collectScan(events)
	require.Len(t, calls, 1)
	assert.Equal(t, "tool", calls[0].name)
	assert.Equal(t, "p", calls[0].params[0].name)
}

func TestScanner_LegacyGrammar(t *testing.T) {
	t.Parallel()
	sc := newScanner(LegacyGrammar)
	events := sc.feed(`<function_calls><invoke name="shell"><parameter name="command">ls</parameter></invoke></function_calls>`)
	events = append(events, sc.finish()...)
	_, calls := collectScan(events)
	require.Len(t, calls, 1)
	assert.Equal(t, "shell", calls[0].name)
	assert.Equal(t, "command", calls[0].params[0].name)
	assert.Equal(t, "ls", calls[0].params[0].value)
}

func TestScanner_RawSourceCaptured(t *testing.T) {
	t.Parallel()
	sc := newScanner(DefaultGrammar)
	events := sc.feed(`<calls><invoke name="x"><param name="y">1</param></invoke></calls>`)
	events = append(events, sc.finish()...)
	_, calls := collectScan(events)
	require.Len(t, calls, 1)
	assert.Equal(t, `<invoke name="x"><param name="y">1</param></invoke>`, calls[0].raw)
}

func TestNameAttr(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{` name="x"`, "x"},
		{` name='x'`, "x"},
		{` name = "spaced"`, "spaced"},
		{` other="y"`, ""},
		{` name=`, ""},
		{` name="unclosed`, ""},
		{``, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nameAttr(tt.in), "attrs=%q", tt.in)
	}
}
