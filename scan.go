package toolbridge

import (
	"strings"
)

// The tagged-text grammar is parsed by an explicit resumable state machine
// rather than regular expressions: partial input is the normal case, since
// model output arrives token by token. The same scanner backs both one-shot
// normalization and streaming assembly, so the two cannot disagree.

type scanState int

const (
	scanProse scanState = iota // outside any block, passing text through
	scanBlock                  // inside the outer block, between invokes
	scanInvokeTag              // reading the invoke tag attributes up to '>'
	scanInvokeBody             // inside an invoke, between params
	scanParamTag               // reading the param tag attributes up to '>'
	scanParamValue             // literal value text up to the param close tag
)

// taggedParam is one parsed argument; document order is the slice order.
type taggedParam struct {
	name  string
	value string
}

// taggedCall is one terminated invocation block.
type taggedCall struct {
	name   string
	params []taggedParam
	raw    string
	broken string // non-empty when the block is not usable
}

// scanEvent is one output unit of the scanner: prose text or a terminated
// call (possibly broken). Exactly one of the fields is set.
type scanEvent struct {
	text string
	call *taggedCall
}

// scanner consumes arbitrary contiguous fragments of model text and emits
// prose segments and terminated invocation blocks. State is resumable at any
// byte boundary; text that could still become a delimiter is held back until
// the next fragment (or finish) decides it.
type scanner struct {
	g       Grammar
	state   scanState
	pending string
	cur     *taggedCall
	curName string          // name of the param currently open
	value   strings.Builder // param value accumulator
	raw     strings.Builder // raw source of the invoke in progress
}

func newScanner(g Grammar) *scanner {
	return &scanner{g: g}
}

// feed appends one fragment and consumes as much as can be decided.
func (s *scanner) feed(fragment string) []scanEvent {
	s.pending += fragment
	return s.consume(false)
}

// finish signals end of turn. Held-back prose is flushed as text; anything
// still inside a block never terminated and comes back as a broken call.
func (s *scanner) finish() []scanEvent {
	events := s.consume(true)
	if s.state == scanProse {
		if s.pending != "" {
			events = append(events, scanEvent{text: s.pending})
			s.pending = ""
		}
		return events
	}
	call := s.cur
	if call == nil {
		call = &taggedCall{}
	}
	call.raw = s.raw.String() + s.pending
	call.broken = "unterminated call block"
	events = append(events, scanEvent{call: call})
	s.pending = ""
	s.cur = nil
	s.raw.Reset()
	s.state = scanProse
	return events
}

func (s *scanner) consume(eof bool) []scanEvent {
	var events []scanEvent
	for {
		before := len(s.pending)
		switch s.state {
		case scanProse:
			events = s.consumeProse(events, eof)
		case scanBlock:
			events = s.consumeBlock(events, eof)
		case scanInvokeTag:
			s.consumeInvokeTag()
		case scanInvokeBody:
			events = s.consumeInvokeBody(events, eof)
		case scanParamTag:
			s.consumeParamTag()
		case scanParamValue:
			s.consumeValue()
		}
		if len(s.pending) == before {
			return events
		}
	}
}

// consumeProse emits text up to a block opening delimiter. A '<' that cannot
// yet be ruled out as the start of the delimiter is held back.
func (s *scanner) consumeProse(events []scanEvent, eof bool) []scanEvent {
	open := s.g.openBlock()
	i := strings.Index(s.pending, "<")
	if i < 0 {
		if s.pending != "" {
			events = append(events, scanEvent{text: s.pending})
			s.pending = ""
		}
		return events
	}
	if i > 0 {
		events = append(events, scanEvent{text: s.pending[:i]})
		s.pending = s.pending[i:]
	}
	matched, needMore := matchToken(s.pending, open)
	switch {
	case matched:
		s.pending = s.pending[len(open):]
		s.state = scanBlock
	case needMore && !eof:
		// hold back, the next fragment decides
	default:
		events = append(events, scanEvent{text: "<"})
		s.pending = s.pending[1:]
	}
	return events
}

// consumeBlock sits between invokes: whitespace is skipped, the close tag
// returns to prose, an invoke open tag starts a new invocation. Anything else
// is junk and skipped a byte at a time.
func (s *scanner) consumeBlock(events []scanEvent, eof bool) []scanEvent {
	s.skipSpace()
	if s.pending == "" {
		return events
	}
	if matched, needMore := matchToken(s.pending, s.g.closeBlock()); matched {
		s.take(len(s.g.closeBlock()))
		s.state = scanProse
		return events
	} else if needMore && !eof {
		return events
	}
	matched, needMore := s.matchTag(s.g.openInvoke())
	switch {
	case matched:
		s.cur = &taggedCall{}
		s.raw.Reset()
		s.take(len(s.g.openInvoke()))
		s.state = scanInvokeTag
	case needMore && !eof:
	default:
		s.take(1)
	}
	return events
}

// consumeInvokeBody sits between params inside an invoke. The close tag
// terminates the invocation; a param open tag starts an argument.
func (s *scanner) consumeInvokeBody(events []scanEvent, eof bool) []scanEvent {
	s.skipSpace()
	if s.pending == "" {
		return events
	}
	if matched, needMore := matchToken(s.pending, s.g.closeInvoke()); matched {
		s.take(len(s.g.closeInvoke()))
		events = append(events, scanEvent{call: s.finishInvoke()})
		s.state = scanBlock
		return events
	} else if needMore && !eof {
		return events
	}
	matched, needMore := s.matchTag(s.g.openParam())
	switch {
	case matched:
		s.take(len(s.g.openParam()))
		s.state = scanParamTag
	case needMore && !eof:
	default:
		s.take(1)
	}
	return events
}

// consumeInvokeTag reads the invoke attribute list up to '>' and records the
// tool name.
func (s *scanner) consumeInvokeTag() {
	i := strings.Index(s.pending, ">")
	if i < 0 {
		return
	}
	attrs := s.pending[:i]
	s.take(i + 1)
	s.cur.name = nameAttr(attrs)
	s.state = scanInvokeBody
}

// consumeParamTag reads the param attribute list up to '>' and records the
// argument name.
func (s *scanner) consumeParamTag() {
	i := strings.Index(s.pending, ">")
	if i < 0 {
		return
	}
	attrs := s.pending[:i]
	s.take(i + 1)
	s.curName = nameAttr(attrs)
	s.value.Reset()
	s.state = scanParamValue
}

// consumeValue accumulates literal text until the param close tag. Bytes that
// could still be a prefix of the close tag are held back.
func (s *scanner) consumeValue() {
	closeTok := s.g.closeParam()
	i := strings.Index(s.pending, closeTok)
	if i >= 0 {
		s.value.WriteString(s.pending[:i])
		s.take(i + len(closeTok))
		s.endParam()
		return
	}
	hold := partialOpenAt(s.pending, closeTok)
	if hold < 0 {
		hold = len(s.pending)
	}
	if hold > 0 {
		s.value.WriteString(s.pending[:hold])
		s.take(hold)
	}
}

func (s *scanner) endParam() {
	if s.curName == "" && s.cur.broken == "" {
		s.cur.broken = "param block missing name attribute"
	}
	s.cur.params = append(s.cur.params, taggedParam{
		name:  s.curName,
		value: unescapeText(s.value.String()),
	})
	s.curName = ""
	s.state = scanInvokeBody
}

func (s *scanner) finishInvoke() *taggedCall {
	call := s.cur
	call.raw = s.raw.String()
	if call.name == "" && call.broken == "" {
		call.broken = "invoke block missing name attribute"
	}
	s.cur = nil
	s.raw.Reset()
	return call
}

// matchTag matches an opening tag token and checks the byte after it is an
// attribute-list boundary, so "<invoke" never matches "<invoker".
func (s *scanner) matchTag(tok string) (matched, needMore bool) {
	matched, needMore = matchToken(s.pending, tok)
	if !matched {
		return false, needMore
	}
	rest := s.pending[len(tok):]
	if rest == "" {
		return false, true
	}
	if rest[0] != '>' && rest[0] != '/' && !isSpace(rest[0]) {
		return false, false
	}
	return true, false
}

// take consumes n bytes of pending, recording them as raw source when an
// invoke is in progress.
func (s *scanner) take(n int) {
	if s.cur != nil {
		s.raw.WriteString(s.pending[:n])
	}
	s.pending = s.pending[n:]
}

func (s *scanner) skipSpace() {
	for len(s.pending) > 0 && isSpace(s.pending[0]) {
		s.take(1)
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// matchToken reports whether pending starts with tok; needMore is true when
// pending is a strict prefix of tok, so the decision must wait for input.
func matchToken(pending, tok string) (matched, needMore bool) {
	if len(pending) < len(tok) {
		return false, strings.HasPrefix(tok, pending)
	}
	return strings.HasPrefix(pending, tok), false
}

// nameAttr extracts the name attribute value from an attribute list,
// accepting single or double quotes and whitespace around '='.
func nameAttr(attrs string) string {
	i := strings.Index(attrs, "name")
	if i < 0 {
		return ""
	}
	rest := attrs[i+len("name"):]
	rest = strings.TrimLeft(rest, " \t")
	if !strings.HasPrefix(rest, "=") {
		return ""
	}
	rest = strings.TrimLeft(rest[1:], " \t")
	if rest == "" {
		return ""
	}
	quote := rest[0]
	if quote != '"' && quote != '\'' {
		return ""
	}
	rest = rest[1:]
	end := strings.IndexByte(rest, quote)
	if end < 0 {
		return ""
	}
	return rest[:end]
}
