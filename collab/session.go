package collab

import (
	"canvas-editor/core"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MaxMessages is the transcript length kept per session. Older messages are
// evicted first.
const MaxMessages = 50

// View is a snapshot of a Session.
type View struct {
	Connected bool                  `json:"connected"`
	Cursors   []core.CursorPosition `json:"cursors"`
	Messages  []core.ChatMessage    `json:"messages"`
	Error     *string               `json:"error"`
}

// Session is the per-user collaboration state: connection flag, cursors of
// other participants, a bounded chat transcript and the last error. It never
// touches the document.
type Session struct {
	mu        sync.Mutex
	now       func() time.Time
	connected bool
	cursors   []core.CursorPosition
	messages  []core.ChatMessage
	err       string

	subMu       sync.Mutex
	subscribers map[int]func(View)
	nextSub     int
}

func NewSession() *Session {
	return &Session{
		now:         func() time.Time { return time.Now().UTC() },
		cursors:     []core.CursorPosition{},
		messages:    []core.ChatMessage{},
		subscribers: make(map[int]func(View)),
	}
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Subscribe registers fn for every change. The returned function removes it.
func (s *Session) Subscribe(fn func(View)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

func (s *Session) SetConnected(connected bool) {
	s.update(func() { s.connected = connected })
}

// UpdateCursor replaces the cursor of the same user or appends a new one.
func (s *Session) UpdateCursor(pos core.CursorPosition) {
	s.update(func() {
		for i := range s.cursors {
			if s.cursors[i].UserID == pos.UserID {
				s.cursors[i] = pos
				return
			}
		}
		s.cursors = append(s.cursors, pos)
	})
}

func (s *Session) RemoveCursor(userID string) {
	s.update(func() {
		kept := s.cursors[:0]
		for _, c := range s.cursors {
			if c.UserID != userID {
				kept = append(kept, c)
			}
		}
		s.cursors = kept
	})
}

// AddMessage appends a message stamped with a fresh id and the current time
// and returns it.
func (s *Session) AddMessage(userID, userName, text string) core.ChatMessage {
	msg := core.ChatMessage{
		ID:        ulid.Make().String(),
		UserID:    userID,
		UserName:  userName,
		Text:      text,
		Timestamp: s.now(),
	}
	s.append(msg)
	return msg
}

// append adds an already stamped message, such as one fetched from the feed.
func (s *Session) append(msg core.ChatMessage) {
	s.update(func() {
		s.messages = append(s.messages, msg)
		if over := len(s.messages) - MaxMessages; over > 0 {
			s.messages = append([]core.ChatMessage{}, s.messages[over:]...)
		}
	})
}

func (s *Session) ClearMessages() {
	s.update(func() { s.messages = []core.ChatMessage{} })
}

// SetError records msg as the current error; an empty msg clears it.
func (s *Session) SetError(msg string) {
	s.update(func() { s.err = msg })
}

func (s *Session) update(fn func()) {
	s.mu.Lock()
	fn()
	v := s.viewLocked()
	s.mu.Unlock()

	s.subMu.Lock()
	fns := make([]func(View), 0, len(s.subscribers))
	for _, f := range s.subscribers {
		fns = append(fns, f)
	}
	s.subMu.Unlock()
	for _, f := range fns {
		f(v)
	}
}

func (s *Session) viewLocked() View {
	v := View{
		Connected: s.connected,
		Cursors:   append([]core.CursorPosition{}, s.cursors...),
		Messages:  append([]core.ChatMessage{}, s.messages...),
	}
	if s.err != "" {
		e := s.err
		v.Error = &e
	}
	return v
}
