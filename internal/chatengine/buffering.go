package chatengine

import (
	"strings"

	"github.com/chriscow/voicecore/internal/config"
)

// sentenceBoundary is the punctuation set that flushes at MEDIUM/HIGH
// buffering levels (§4.6).
const sentenceBoundary = ".!?;:"

// buffer accumulates streamed LLM tokens and decides when to flush a
// fragment downstream to TTSStream, per the configured BufferingLevel.
type buffer struct {
	level config.BufferingLevel
	pend  strings.Builder
	words int
}

func newBuffer(level config.BufferingLevel) *buffer {
	return &buffer{level: level}
}

// Push appends one streamed token and returns any fragment(s) ready to
// flush. Most tokens return nothing; a flush returns the accumulated text
// and resets the buffer.
func (b *buffer) Push(token string) (fragment string, flush bool) {
	b.pend.WriteString(token)

	switch b.level {
	case config.BufferingNone:
		return b.drain(), true

	case config.BufferingLow:
		if strings.ContainsAny(token, " \t\n") {
			return b.drain(), true
		}
		return "", false

	case config.BufferingMedium:
		if strings.ContainsAny(token, sentenceBoundary) {
			return b.drain(), true
		}
		if strings.ContainsAny(token, " \t\n") {
			b.words++
			if b.words >= 4 {
				return b.drain(), true
			}
		}
		return "", false

	case config.BufferingHigh:
		if strings.ContainsAny(token, sentenceBoundary) {
			return b.drain(), true
		}
		return "", false
	}

	return "", false
}

// Flush drains any residual text at turn end (§4.6: "At turn end, any
// residual buffer is flushed").
func (b *buffer) Flush() (fragment string, ok bool) {
	if b.pend.Len() == 0 {
		return "", false
	}
	return b.drain(), true
}

func (b *buffer) drain() string {
	s := b.pend.String()
	b.pend.Reset()
	b.words = 0
	return s
}
