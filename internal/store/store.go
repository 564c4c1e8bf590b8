// Package store owns the durable collection of chat sessions and the
// "current session" pointer. It is the only writer to its repository, and its
// operations are atomic critical sections: a read-modify-persist sequence is
// never interleaved with another mutation of the same session.
package store

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"chatbank/internal/logger"
	"chatbank/internal/testutils"
	"chatbank/pkg/banktypes"
)

// maxTitleRunes bounds the derived session title length.
const maxTitleRunes = 48

// defaultSessionTitle names a session that has no user message yet.
const defaultSessionTitle = "Main Chat"

// Store manages the session collection, most-recent-first. All exported
// methods are safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	repo      banktypes.Repository
	sessions  []*banktypes.Session
	currentID string
	// open tracks the one streaming placeholder per session: session id to
	// message id. MergeStreamChunk mutates nothing else.
	open map[string]string
}

// Open creates a Store backed by repo and loads the persisted collection.
// Corrupt or missing state degrades to an empty collection; it is never fatal.
func Open(repo banktypes.Repository) *Store {
	s := &Store{
		repo: repo,
		open: make(map[string]string),
	}
	s.load()
	return s
}

func (s *Store) load() {
	sessions, err := s.repo.Load()
	if err != nil {
		logger.Warn("session storage unreadable, starting empty", "error", err)
		sessions = nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = sessions
	if len(s.sessions) > 0 {
		s.currentID = s.sessions[0].ID
	} else {
		s.currentID = ""
	}
}

// Sessions returns a snapshot of the collection, most-recent-first.
func (s *Store) Sessions() []*banktypes.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*banktypes.Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// Current returns the current session, or false when none exists. Callers
// check the second value instead of testing a nullable id.
func (s *Store) Current() (*banktypes.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.findLocked(s.currentID)
	return sess, sess != nil
}

// SetCurrent makes an existing session current and moves it to the head of
// the collection. The head position is what survives a reload, since load
// always repoints current at the head.
func (s *Store) SetCurrent(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.findLocked(sessionID)
	if sess == nil {
		return fmt.Errorf("session %q not found", sessionID)
	}
	if s.sessions[0] != sess {
		rest := make([]*banktypes.Session, 0, len(s.sessions)-1)
		for _, other := range s.sessions {
			if other != sess {
				rest = append(rest, other)
			}
		}
		s.sessions = append([]*banktypes.Session{sess}, rest...)
		s.persistLocked()
	}
	s.currentID = sessionID
	return nil
}

// CreateSession allocates a new session at the head of the collection and
// makes it current. If the head session is already empty it is reused instead
// of stacking up throwaway sessions.
func (s *Store) CreateSession(seedTitle string) *banktypes.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sessions) > 0 && len(s.sessions[0].Messages) == 0 {
		head := s.sessions[0]
		if seedTitle != "" {
			head.Title = deriveTitle(seedTitle)
			s.persistLocked()
		}
		s.currentID = head.ID
		return head
	}

	sess := &banktypes.Session{
		ID:          testutils.GenerateUUID(),
		Title:       defaultSessionTitle,
		Messages:    make([]banktypes.Message, 0),
		LastUpdated: testutils.GetCurrentTime(),
	}
	if seedTitle != "" {
		sess.Title = deriveTitle(seedTitle)
	}

	s.sessions = append([]*banktypes.Session{sess}, s.sessions...)
	s.currentID = sess.ID
	s.persistLocked()
	return sess
}

// AppendUserMessage appends a user message to the target session, re-derives
// the session title from it, and persists. The session must already exist;
// callers create one first when none is current.
func (s *Store) AppendUserMessage(sessionID string, parts []banktypes.MessagePart) (*banktypes.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.findLocked(sessionID)
	if sess == nil {
		return nil, fmt.Errorf("session %q not found", sessionID)
	}

	msg := banktypes.Message{
		ID:        testutils.GenerateUUID(),
		Role:      "user",
		Content:   parts,
		Timestamp: testutils.GetCurrentTime(),
	}
	sess.Messages = append(sess.Messages, msg)
	if text := msg.Text(); strings.TrimSpace(text) != "" {
		sess.Title = deriveTitle(text)
	}
	sess.LastUpdated = msg.Timestamp
	s.persistLocked()
	return &sess.Messages[len(sess.Messages)-1], nil
}

// BeginModelResponse appends an empty model placeholder with the given mode.
// The placeholder is the sole mutation target for the streaming phase that
// follows.
func (s *Store) BeginModelResponse(sessionID string, mode banktypes.EngineMode) (*banktypes.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.findLocked(sessionID)
	if sess == nil {
		return nil, fmt.Errorf("session %q not found", sessionID)
	}

	msg := banktypes.Message{
		ID:        testutils.GenerateUUID(),
		Role:      "model",
		Content:   []banktypes.MessagePart{{Text: ""}},
		Mode:      mode,
		ModelName: string(mode),
		Timestamp: testutils.GetCurrentTime(),
	}
	sess.Messages = append(sess.Messages, msg)
	sess.LastUpdated = msg.Timestamp
	s.open[sessionID] = msg.ID
	s.persistLocked()
	return &sess.Messages[len(sess.Messages)-1], nil
}

// MergeStreamChunk replaces the streaming placeholder's content with the
// chunk's cumulative values. Merges are idempotent under re-delivery of the
// same cumulative text; a chunk whose text is shorter than what is already
// displayed is dropped so displayed text never regresses. A Finished chunk
// closes the placeholder; later merges for it are ignored.
func (s *Store) MergeStreamChunk(sessionID, messageID string, chunk banktypes.StreamChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.findLocked(sessionID)
	if sess == nil {
		return fmt.Errorf("session %q not found", sessionID)
	}
	openID, ok := s.open[sessionID]
	if !ok || openID != messageID {
		logger.Debug("merge for closed or unknown placeholder ignored",
			"session", sessionID, "message", messageID)
		return nil
	}

	msg := lastMessageLocked(sess, messageID)
	if msg == nil {
		delete(s.open, sessionID)
		return fmt.Errorf("message %q not found in session %q", messageID, sessionID)
	}

	// Interim chunks never shrink the displayed text; the final chunk
	// carries the definitive text and may replace a longer partial, which is
	// how a mid-stream failure surfaces its inline error message.
	if !chunk.Finished && utf8.RuneCountInString(chunk.Text) < utf8.RuneCountInString(msg.Text()) {
		logger.Warn("stream chunk shorter than displayed text, dropped",
			"session", sessionID, "message", messageID)
		return nil
	}

	if chunk.Text != "" || !chunk.Finished {
		msg.Content = []banktypes.MessagePart{{Text: chunk.Text}}
	}
	if chunk.ImageURI != "" {
		msg.Content = append(msg.Content, banktypes.ImagePart(chunk.ImageURI))
	}
	if len(chunk.Sources) > 0 {
		msg.Sources = chunk.Sources
	}
	if chunk.ModelName != "" {
		msg.ModelName = chunk.ModelName
	}
	if chunk.Mode != "" {
		msg.Mode = chunk.Mode
	}
	if chunk.LatencyMs > 0 {
		msg.LatencyMs = chunk.LatencyMs
	}
	sess.LastUpdated = testutils.GetCurrentTime()

	if chunk.Finished {
		delete(s.open, sessionID)
	}
	s.persistLocked()
	return nil
}

// DeleteSession removes a session. When the deleted session was current, the
// head of the remaining collection becomes current, or none when the
// collection is empty — never a dangling id.
func (s *Store) DeleteSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, sess := range s.sessions {
		if sess.ID == sessionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("session %q not found", sessionID)
	}

	s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)
	delete(s.open, sessionID)
	if s.currentID == sessionID {
		if len(s.sessions) > 0 {
			s.currentID = s.sessions[0].ID
		} else {
			s.currentID = ""
		}
	}
	s.persistLocked()
	return nil
}

// Persist serializes the whole collection to the repository. Write failures
// are logged and swallowed: the experience degrades to "no persisted history"
// rather than crashing.
func (s *Store) Persist() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistLocked()
}

func (s *Store) persistLocked() {
	if err := s.repo.Save(s.sessions); err != nil {
		logger.Error("failed to persist sessions", "error", err)
	}
}

func (s *Store) findLocked(sessionID string) *banktypes.Session {
	if sessionID == "" {
		return nil
	}
	for _, sess := range s.sessions {
		if sess.ID == sessionID {
			return sess
		}
	}
	return nil
}

// lastMessageLocked returns the message only if it is the session's most
// recent entry; earlier messages are append-only and never mutated.
func lastMessageLocked(sess *banktypes.Session, messageID string) *banktypes.Message {
	if len(sess.Messages) == 0 {
		return nil
	}
	last := &sess.Messages[len(sess.Messages)-1]
	if last.ID != messageID {
		return nil
	}
	return last
}

// deriveTitle collapses whitespace and truncates to the title bound.
func deriveTitle(text string) string {
	title := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(title) <= maxTitleRunes {
		return title
	}
	runes := []rune(title)
	return string(runes[:maxTitleRunes]) + "…"
}
