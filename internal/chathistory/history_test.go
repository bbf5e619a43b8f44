package chathistory

import (
	"strings"
	"testing"

	"github.com/chriscow/voicecore/pkg/provider"
	"github.com/matryer/is"
)

type wordCounter struct{}

func (wordCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(strings.Fields(text))
}

func TestHistory_SystemNeverEvicted(t *testing.T) {
	is := is.New(t)

	h := New("you are a helpful agent", wordCounter{}, 2, 1000)
	h.Append(provider.RoleUser, "one")
	h.Append(provider.RoleAssistant, "two")
	h.Append(provider.RoleUser, "three")
	h.Append(provider.RoleAssistant, "four")

	msgs := h.Messages()
	is.Equal(msgs[0].Role, provider.RoleSystem)
	is.Equal(msgs[0].Text, "you are a helpful agent")
	// maxTurns=2 evicts down to the most recent two turns
	is.Equal(h.Len(), 2)
	is.Equal(msgs[len(msgs)-1].Text, "four")
}

func TestHistory_TokenBoundEviction(t *testing.T) {
	is := is.New(t)

	h := New("sys", wordCounter{}, 100, 3)
	h.Append(provider.RoleUser, "aaa bbb")
	h.Append(provider.RoleAssistant, "ccc")

	// sys(1) + "aaa bbb"(2) + "ccc"(1) = 4 > maxToks(3), so oldest evicted
	is.Equal(h.Len(), 1)
	is.Equal(h.Messages()[1].Text, "ccc")
}

func TestHistory_EmptyHasOnlySystem(t *testing.T) {
	is := is.New(t)

	h := New("sys", wordCounter{}, 16, 4096)
	is.Equal(h.Len(), 0)
	is.Equal(len(h.Messages()), 1)
}
