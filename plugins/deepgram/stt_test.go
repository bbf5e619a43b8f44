package deepgram

import (
	"testing"

	"github.com/matryer/is"
)

func TestParseMessage_InterimResult(t *testing.T) {
	is := is.New(t)

	raw := []byte(`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"hello there","confidence":0.87}]}}`)
	evt, ok := parseMessage(raw)
	is.True(ok)
	is.Equal(evt.Text, "hello there")
	is.True(!evt.IsFinal)
	is.Equal(evt.Confidence, 0.87)
}

func TestParseMessage_IgnoresNonResultsMessages(t *testing.T) {
	is := is.New(t)

	_, ok := parseMessage([]byte(`{"type":"Metadata"}`))
	is.True(!ok)
}

func TestParseMessage_IgnoresEmptyInterimTranscript(t *testing.T) {
	is := is.New(t)

	raw := []byte(`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"","confidence":0}]}}`)
	_, ok := parseMessage(raw)
	is.True(!ok)
}

func TestParseMessage_EmptyFinalTranscriptStillEmitted(t *testing.T) {
	is := is.New(t)

	raw := []byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"","confidence":0}]}}`)
	evt, ok := parseMessage(raw)
	is.True(ok)
	is.True(evt.IsFinal)
}
