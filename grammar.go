package toolbridge

import "strings"

// Grammar holds the tag names of the tagged-text call convention. The names
// are a contract with the prompt template that teaches the model the syntax:
// parsing with the wrong grammar is a silent failure mode, so the grammar is
// configuration, not a constant.
//
// The wire shape is:
//
//	<calls>
//	  <invoke name="tool_name">
//	    <param name="arg_name">literal value</param>
//	  </invoke>
//	</calls>
//
// Param values are literal text between the delimiters, never re-interpreted
// as markup; only &lt;, &gt; and &amp; are unescaped.
type Grammar struct {
	// Block is the outer tag enclosing one or more invocations.
	Block string
	// Invoke is the per-invocation tag; its name attribute is the tool name.
	Invoke string
	// Param is the per-argument tag; its name attribute is the argument name.
	Param string
	// Result is the tag used when encoding results back into tagged text.
	Result string
}

// DefaultGrammar is the convention current prompt templates use.
var DefaultGrammar = Grammar{Block: "calls", Invoke: "invoke", Param: "param", Result: "result"}

// LegacyGrammar matches the older prompt convention some deployed templates
// still carry.
var LegacyGrammar = Grammar{Block: "function_calls", Invoke: "invoke", Param: "parameter", Result: "tool_result"}

func (g Grammar) openBlock() string  { return "<" + g.Block + ">" }
func (g Grammar) closeBlock() string { return "</" + g.Block + ">" }
func (g Grammar) openInvoke() string { return "<" + g.Invoke }
func (g Grammar) closeInvoke() string { return "</" + g.Invoke + ">" }
func (g Grammar) openParam() string  { return "<" + g.Param }
func (g Grammar) closeParam() string { return "</" + g.Param + ">" }

// escaper/unescaper cover the minimal entity set of the grammar. Result
// payloads are escaped with the same table so encoded results can never be
// re-detected as new calls.
var (
	taggedEscaper   = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	taggedUnescaper = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&")
)

func escapeText(s string) string   { return taggedEscaper.Replace(s) }
func unescapeText(s string) string { return taggedUnescaper.Replace(s) }
