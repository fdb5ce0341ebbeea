package trip

import (
	"errors"
	"slices"
	"strings"

	"github.com/maruel/ksid"
)

// ChatView edits the "chat" document.
type ChatView struct {
	doc[ChatLog]
}

// OpenChat binds the chat log.
func OpenChat(env *Env) *ChatView {
	return &ChatView{bind(env, KindChat, ChatLog{})}
}

// Tab implements View.
func (v *ChatView) Tab() Tab { return TabChat }

// Messages returns the log, oldest first.
func (v *ChatView) Messages() ChatLog {
	return v.b.Value()
}

// Send appends text as the device user.
func (v *ChatView) Send(text string) (ksid.ID, error) {
	author := v.env.Username().Value()
	if author == "" {
		return 0, ErrNoUsername
	}
	if strings.TrimSpace(text) == "" {
		return 0, errors.New("message is empty")
	}
	m := ChatMessage{ID: ksid.NewID(), Author: author, Text: text, SentAt: v.env.now()}
	v.update(func(l ChatLog) (ChatLog, bool) {
		return append(slices.Clone(l), m), true
	})
	return m.ID, nil
}

// Delete removes a message.
func (v *ChatView) Delete(id ksid.ID) {
	v.update(func(l ChatLog) (ChatLog, bool) {
		i := findByID(l, id, chatID)
		if i < 0 {
			return l, false
		}
		return slices.Delete(slices.Clone(l), i, i+1), true
	})
}

func chatID(m *ChatMessage) ksid.ID { return m.ID }
