package chatengine

import (
	"testing"

	"github.com/chriscow/voicecore/internal/config"
	"github.com/matryer/is"
)

func TestBuffer_NoneFlushesEveryToken(t *testing.T) {
	is := is.New(t)

	b := newBuffer(config.BufferingNone)
	frag, flush := b.Push("hello")
	is.True(flush)
	is.Equal(frag, "hello")
}

func TestBuffer_LowFlushesOnWhitespace(t *testing.T) {
	is := is.New(t)

	b := newBuffer(config.BufferingLow)
	_, flush := b.Push("hel")
	is.True(!flush)
	_, flush = b.Push("lo")
	is.True(!flush)
	frag, flush := b.Push(" ")
	is.True(flush)
	is.Equal(frag, "hello ")
}

func TestBuffer_MediumFlushesOnPunctuation(t *testing.T) {
	is := is.New(t)

	b := newBuffer(config.BufferingMedium)
	b.Push("Hello")
	frag, flush := b.Push(".")
	is.True(flush)
	is.Equal(frag, "Hello.")
}

func TestBuffer_MediumFlushesOnFourWords(t *testing.T) {
	is := is.New(t)

	b := newBuffer(config.BufferingMedium)
	b.Push("one ")
	b.Push("two ")
	b.Push("three ")
	frag, flush := b.Push("four ")
	is.True(flush)
	is.Equal(frag, "one two three four ")
}

func TestBuffer_HighOnlyFlushesOnSentenceEnd(t *testing.T) {
	is := is.New(t)

	b := newBuffer(config.BufferingHigh)
	_, flush := b.Push("one ")
	is.True(!flush)
	_, flush = b.Push("two ")
	is.True(!flush)
	frag, flush := b.Push(".")
	is.True(flush)
	is.Equal(frag, "one two .")
}

func TestBuffer_FlushDrainsResidual(t *testing.T) {
	is := is.New(t)

	b := newBuffer(config.BufferingHigh)
	b.Push("residual")
	frag, ok := b.Flush()
	is.True(ok)
	is.Equal(frag, "residual")

	_, ok = b.Flush()
	is.True(!ok)
}
