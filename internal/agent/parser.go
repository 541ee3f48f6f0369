// Package agent implements the reasoning engine: a worker pool that
// drives Thought/Action/Observation loops over the router, publishing
// progress on the session event bus.
package agent

import "strings"

// Tag pairs the parser recognizes in model output.
const (
	tagThoughtOpen  = "<THOUGHT>"
	tagThoughtClose = "</THOUGHT>"
	tagActionOpen   = "<ACTION>"
	tagActionClose  = "</ACTION>"
	tagFinalOpen    = "<FINAL_ANSWER>"
	tagFinalClose   = "</FINAL_ANSWER>"
)

// maxTagLen bounds how much text the parser holds back while a tag may
// still be arriving split across chunks.
const maxTagLen = len(tagFinalClose)

type parseState int

const (
	stateScan parseState = iota
	stateThought
	stateAction
	stateFinal
)

// StepResult is what one model response parsed down to.
type StepResult struct {
	Thought   string
	Action    string
	HasAction bool
	Final     string
	HasFinal  bool
}

// Callbacks receive streamed segments as they are recognized. Action
// content is never streamed: it is delivered whole on close because it
// must parse as JSON before anything acts on it.
type Callbacks struct {
	OnThoughtDelta func(text string)
	OnThoughtEnd   func()
	OnFinalDelta   func(text string)
}

// StreamParser incrementally parses tagged model output. Feed it chunks
// as they arrive, then call Finish.
type StreamParser struct {
	state    parseState
	buf      strings.Builder
	thought  strings.Builder
	action   strings.Builder
	final    strings.Builder
	sawAct   bool
	sawFinal bool
	cb       Callbacks
}

// NewStreamParser creates a parser with the given callbacks. Nil
// callbacks are skipped.
func NewStreamParser(cb Callbacks) *StreamParser {
	return &StreamParser{cb: cb}
}

// Feed consumes one chunk of model output.
func (p *StreamParser) Feed(chunk string) {
	p.buf.WriteString(chunk)
	p.drain(false)
}

// Finish flushes held-back text and returns the parsed result. An
// unterminated FINAL_ANSWER or THOUGHT still counts: models routinely
// stop before emitting the closing tag.
func (p *StreamParser) Finish() StepResult {
	p.drain(true)

	if p.state == stateThought && p.cb.OnThoughtEnd != nil {
		p.cb.OnThoughtEnd()
	}

	return StepResult{
		Thought:   strings.TrimSpace(p.thought.String()),
		Action:    strings.TrimSpace(p.action.String()),
		HasAction: p.sawAct,
		Final:     strings.TrimSpace(p.final.String()),
		HasFinal:  p.sawFinal,
	}
}

// drain processes the buffer. With flush=false, up to maxTagLen-1
// trailing bytes stay buffered in case they are the head of a tag.
func (p *StreamParser) drain(flush bool) {
	for {
		text := p.buf.String()
		if text == "" {
			return
		}

		switch p.state {
		case stateScan:
			idx, tag := firstTag(text)
			if idx < 0 {
				p.holdTail(text, flush)
				return
			}
			p.consume(idx + len(tag))
			switch tag {
			case tagThoughtOpen:
				p.state = stateThought
			case tagActionOpen:
				p.state = stateAction
				p.sawAct = true
			case tagFinalOpen:
				p.state = stateFinal
				p.sawFinal = true
			}

		case stateThought:
			if !p.emitUntil(text, tagThoughtClose, &p.thought, p.cb.OnThoughtDelta, flush) {
				return
			}
			if p.cb.OnThoughtEnd != nil {
				p.cb.OnThoughtEnd()
			}
			p.state = stateScan

		case stateAction:
			if !p.emitUntil(text, tagActionClose, &p.action, nil, flush) {
				return
			}
			p.state = stateScan

		case stateFinal:
			if !p.emitUntil(text, tagFinalClose, &p.final, p.cb.OnFinalDelta, flush) {
				return
			}
			p.state = stateScan
		}
	}
}

// emitUntil moves text into sink (and deltaCb) up to the closing tag.
// Returns true when the closing tag was consumed.
func (p *StreamParser) emitUntil(text, closeTag string, sink *strings.Builder, deltaCb func(string), flush bool) bool {
	idx := strings.Index(text, closeTag)
	if idx < 0 {
		safe := len(text)
		if !flush {
			safe -= partialSuffixLen(text, closeTag)
			if safe < 0 {
				safe = 0
			}
		}
		if safe > 0 {
			segment := text[:safe]
			sink.WriteString(segment)
			if deltaCb != nil {
				deltaCb(segment)
			}
			p.consume(safe)
		}
		if flush {
			p.consume(len(p.buf.String()))
		}
		return false
	}

	if idx > 0 {
		segment := text[:idx]
		sink.WriteString(segment)
		if deltaCb != nil {
			deltaCb(segment)
		}
	}
	p.consume(idx + len(closeTag))
	return true
}

// holdTail discards scanned text but keeps a possible partial tag head.
func (p *StreamParser) holdTail(text string, flush bool) {
	if flush {
		p.consume(len(text))
		return
	}
	keep := 0
	for _, open := range []string{tagThoughtOpen, tagActionOpen, tagFinalOpen} {
		if n := partialSuffixLen(text, open); n > keep {
			keep = n
		}
	}
	p.consume(len(text) - keep)
}

func (p *StreamParser) consume(n int) {
	if n <= 0 {
		return
	}
	rest := p.buf.String()[n:]
	p.buf.Reset()
	p.buf.WriteString(rest)
}

// firstTag finds the earliest opening tag in text.
func firstTag(text string) (int, string) {
	best := -1
	var bestTag string
	for _, tag := range []string{tagThoughtOpen, tagActionOpen, tagFinalOpen} {
		if idx := strings.Index(text, tag); idx >= 0 && (best < 0 || idx < best) {
			best = idx
			bestTag = tag
		}
	}
	return best, bestTag
}

// partialSuffixLen returns the length of the longest suffix of text
// that is a proper prefix of tag.
func partialSuffixLen(text, tag string) int {
	max := len(tag) - 1
	if max > len(text) {
		max = len(text)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(text, tag[:n]) {
			return n
		}
	}
	return 0
}
