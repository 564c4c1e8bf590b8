package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatbank/internal/testutils"
	"chatbank/pkg/banktypes"
)

func newTestStore(t *testing.T) (*Store, *MemoryRepository) {
	t.Helper()
	testutils.SetTestMode(true)
	t.Cleanup(func() { testutils.SetTestMode(false) })
	repo := NewMemoryRepository()
	return Open(repo), repo
}

func TestOpenWithCorruptStorageStartsEmpty(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Corrupt = true

	s := Open(repo)

	assert.Empty(t, s.Sessions())
	_, ok := s.Current()
	assert.False(t, ok)
}

func TestOpenSetsCurrentToHead(t *testing.T) {
	repo := NewMemoryRepository()
	require.NoError(t, repo.Save([]*banktypes.Session{
		{ID: "a", Title: "first"},
		{ID: "b", Title: "second"},
	}))

	s := Open(repo)

	current, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "a", current.ID)
}

func TestCreateSessionReusesEmptyHead(t *testing.T) {
	s, _ := newTestStore(t)

	first := s.CreateSession("")
	second := s.CreateSession("")

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, s.Sessions(), 1)
}

func TestCreateSessionInsertsAtHead(t *testing.T) {
	s, _ := newTestStore(t)

	first := s.CreateSession("")
	_, err := s.AppendUserMessage(first.ID, []banktypes.MessagePart{banktypes.TextPart("hello")})
	require.NoError(t, err)

	second := s.CreateSession("")

	sessions := s.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, second.ID, sessions[0].ID)
	current, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, second.ID, current.ID)
}

func TestTitleDerivedFromLatestUserMessage(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.CreateSession("")

	_, err := s.AppendUserMessage(sess.ID, []banktypes.MessagePart{banktypes.TextPart("Build me a login page")})
	require.NoError(t, err)
	assert.Equal(t, "Build me a login page", sess.Title)

	_, err = s.AppendUserMessage(sess.ID, []banktypes.MessagePart{banktypes.TextPart("Now add dark mode")})
	require.NoError(t, err)
	assert.Equal(t, "Now add dark mode", sess.Title)
}

func TestTitleTruncation(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.CreateSession("")

	long := strings.Repeat("عنوان ", 30)
	_, err := s.AppendUserMessage(sess.ID, []banktypes.MessagePart{banktypes.TextPart(long)})
	require.NoError(t, err)

	runes := []rune(sess.Title)
	assert.LessOrEqual(t, len(runes), maxTitleRunes+1)
	assert.Equal(t, '…', runes[len(runes)-1])
}

func TestAppendUserMessageUnknownSession(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.AppendUserMessage("nope", []banktypes.MessagePart{banktypes.TextPart("x")})
	assert.Error(t, err)
	assert.Empty(t, s.Sessions())
}

func TestLastUpdatedAdvancesOnAppend(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.CreateSession("")
	before := sess.LastUpdated

	_, err := s.AppendUserMessage(sess.ID, []banktypes.MessagePart{banktypes.TextPart("hi")})
	require.NoError(t, err)

	assert.True(t, sess.LastUpdated.After(before))
}

func TestMergeStreamChunkMonotonicGrowth(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.CreateSession("")
	_, err := s.AppendUserMessage(sess.ID, []banktypes.MessagePart{banktypes.TextPart("go")})
	require.NoError(t, err)
	placeholder, err := s.BeginModelResponse(sess.ID, banktypes.EngineModeFlash)
	require.NoError(t, err)

	chunks := []string{"one", "one two", "one two three"}
	for _, text := range chunks {
		require.NoError(t, s.MergeStreamChunk(sess.ID, placeholder.ID, banktypes.StreamChunk{Text: text}))
		last := sess.Messages[len(sess.Messages)-1]
		assert.Equal(t, text, last.Text())
	}

	require.NoError(t, s.MergeStreamChunk(sess.ID, placeholder.ID, banktypes.StreamChunk{
		Text:     "one two three four",
		Finished: true,
	}))
	assert.Equal(t, "one two three four", sess.Messages[len(sess.Messages)-1].Text())
}

func TestMergeStreamChunkDropsRegression(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.CreateSession("")
	placeholder, err := s.BeginModelResponse(sess.ID, banktypes.EngineModeFlash)
	require.NoError(t, err)

	require.NoError(t, s.MergeStreamChunk(sess.ID, placeholder.ID, banktypes.StreamChunk{Text: "long text"}))
	require.NoError(t, s.MergeStreamChunk(sess.ID, placeholder.ID, banktypes.StreamChunk{Text: "short"}))

	assert.Equal(t, "long text", sess.Messages[len(sess.Messages)-1].Text())
}

func TestMergeAfterFinishedIsIgnored(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.CreateSession("")
	placeholder, err := s.BeginModelResponse(sess.ID, banktypes.EngineModeFlash)
	require.NoError(t, err)

	require.NoError(t, s.MergeStreamChunk(sess.ID, placeholder.ID, banktypes.StreamChunk{
		Text:     "final",
		Finished: true,
	}))
	require.NoError(t, s.MergeStreamChunk(sess.ID, placeholder.ID, banktypes.StreamChunk{
		Text: "final plus stale tail",
	}))

	assert.Equal(t, "final", sess.Messages[len(sess.Messages)-1].Text())
}

func TestFinishedChunkReplacesLongerPartialText(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.CreateSession("")
	placeholder, err := s.BeginModelResponse(sess.ID, banktypes.EngineModeFlash)
	require.NoError(t, err)

	require.NoError(t, s.MergeStreamChunk(sess.ID, placeholder.ID, banktypes.StreamChunk{
		Text: "هذه بداية إجابة طويلة انقطع بثها في منتصف الطريق قبل الاكتمال",
	}))
	require.NoError(t, s.MergeStreamChunk(sess.ID, placeholder.ID, banktypes.StreamChunk{
		Text:     "تعذر الاتصال.",
		Finished: true,
	}))

	last := sess.Messages[len(sess.Messages)-1]
	assert.Equal(t, "تعذر الاتصال.", last.Text())

	// The placeholder closed, so stale stream chunks no longer land.
	require.NoError(t, s.MergeStreamChunk(sess.ID, placeholder.ID, banktypes.StreamChunk{
		Text: "هذه بداية إجابة طويلة انقطع بثها في منتصف الطريق قبل الاكتمال وزيادة",
	}))
	assert.Equal(t, "تعذر الاتصال.", sess.Messages[len(sess.Messages)-1].Text())
}

func TestSetCurrentMovesSessionToHeadAndSurvivesReload(t *testing.T) {
	s, repo := newTestStore(t)
	older := s.CreateSession("older")
	_, err := s.AppendUserMessage(older.ID, []banktypes.MessagePart{banktypes.TextPart("first topic")})
	require.NoError(t, err)
	newer := s.CreateSession("newer")
	_, err = s.AppendUserMessage(newer.ID, []banktypes.MessagePart{banktypes.TextPart("second topic")})
	require.NoError(t, err)

	require.NoError(t, s.SetCurrent(older.ID))

	assert.Equal(t, older.ID, s.Sessions()[0].ID)

	reopened := Open(repo)
	current, ok := reopened.Current()
	require.True(t, ok)
	assert.Equal(t, older.ID, current.ID)
}

func TestSetCurrentUnknownSession(t *testing.T) {
	s, _ := newTestStore(t)
	s.CreateSession("")

	assert.Error(t, s.SetCurrent("no-such-id"))
}

func TestReusedHeadTitleSurvivesReload(t *testing.T) {
	s, repo := newTestStore(t)
	s.CreateSession("")
	s.CreateSession("عنوان جديد")

	reopened := Open(repo)
	sessions := reopened.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "عنوان جديد", sessions[0].Title)
}

func TestMergeAppliesSourcesModeAndModel(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.CreateSession("")
	placeholder, err := s.BeginModelResponse(sess.ID, banktypes.EngineModeLocalX1)
	require.NoError(t, err)

	sources := []banktypes.GroundingSource{{Title: "src", URI: "https://example.com"}}
	require.NoError(t, s.MergeStreamChunk(sess.ID, placeholder.ID, banktypes.StreamChunk{
		Text:      "answer",
		Sources:   sources,
		ModelName: "gemini-3-flash-preview",
		Mode:      banktypes.EngineModeFlash,
		LatencyMs: 42,
		Finished:  true,
	}))

	last := sess.Messages[len(sess.Messages)-1]
	assert.Equal(t, sources, last.Sources)
	assert.Equal(t, "gemini-3-flash-preview", last.ModelName)
	assert.Equal(t, banktypes.EngineModeFlash, last.Mode)
	assert.Equal(t, int64(42), last.LatencyMs)
}

func TestDeleteSessionRepointsCurrent(t *testing.T) {
	s, _ := newTestStore(t)

	// Build sessions [C, B, A] head-first; make B current.
	a := s.CreateSession("")
	_, err := s.AppendUserMessage(a.ID, []banktypes.MessagePart{banktypes.TextPart("a")})
	require.NoError(t, err)
	b := s.CreateSession("")
	_, err = s.AppendUserMessage(b.ID, []banktypes.MessagePart{banktypes.TextPart("b")})
	require.NoError(t, err)
	c := s.CreateSession("")
	_, err = s.AppendUserMessage(c.ID, []banktypes.MessagePart{banktypes.TextPart("c")})
	require.NoError(t, err)
	require.NoError(t, s.SetCurrent(b.ID))

	require.NoError(t, s.DeleteSession(b.ID))

	current, ok := s.Current()
	require.True(t, ok)
	assert.NotEqual(t, b.ID, current.ID)
	assert.Len(t, s.Sessions(), 2)
}

func TestDeleteLastSessionClearsCurrent(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.CreateSession("")
	_, err := s.AppendUserMessage(sess.ID, []banktypes.MessagePart{banktypes.TextPart("x")})
	require.NoError(t, err)

	require.NoError(t, s.DeleteSession(sess.ID))

	_, ok := s.Current()
	assert.False(t, ok)
	assert.Empty(t, s.Sessions())
}

func TestPersistFailureIsSwallowed(t *testing.T) {
	s, repo := newTestStore(t)
	repo.FailSave = errors.New("disk full")

	sess := s.CreateSession("")
	_, err := s.AppendUserMessage(sess.ID, []banktypes.MessagePart{banktypes.TextPart("still works")})

	require.NoError(t, err)
	assert.Len(t, s.Sessions(), 1)
}

func TestFileRepositoryRoundTrip(t *testing.T) {
	testutils.SetTestMode(true)
	t.Cleanup(func() { testutils.SetTestMode(false) })

	path := filepath.Join(t.TempDir(), "sessions.json")
	repo := NewFileRepository(path)

	s := Open(repo)
	sess := s.CreateSession("")
	_, err := s.AppendUserMessage(sess.ID, []banktypes.MessagePart{banktypes.TextPart("persist me")})
	require.NoError(t, err)

	reopened := Open(NewFileRepository(path))
	sessions := reopened.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "persist me", sessions[0].Title)
	require.Len(t, sessions[0].Messages, 1)
}

func TestFileRepositoryCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0600))

	s := Open(NewFileRepository(path))

	assert.Empty(t, s.Sessions())
}

func TestSQLiteRepositoryRoundTrip(t *testing.T) {
	testutils.SetTestMode(true)
	t.Cleanup(func() { testutils.SetTestMode(false) })

	path := filepath.Join(t.TempDir(), "sessions.db")
	repo, err := OpenSQLiteRepository(path)
	require.NoError(t, err)
	defer repo.Close()

	s := Open(repo)
	sess := s.CreateSession("")
	_, err = s.AppendUserMessage(sess.ID, []banktypes.MessagePart{banktypes.TextPart("sqlite row")})
	require.NoError(t, err)

	reopened := Open(repo)
	sessions := reopened.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "sqlite row", sessions[0].Title)
}

func TestExportFormats(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.CreateSession("")
	_, err := s.AppendUserMessage(sess.ID, []banktypes.MessagePart{banktypes.TextPart("export me")})
	require.NoError(t, err)

	var jsonBuf bytes.Buffer
	require.NoError(t, s.Export(&jsonBuf, "json"))
	assert.Contains(t, jsonBuf.String(), "export me")

	var yamlBuf bytes.Buffer
	require.NoError(t, s.Export(&yamlBuf, "yaml"))
	assert.Contains(t, yamlBuf.String(), "export me")

	assert.Error(t, s.Export(&bytes.Buffer{}, "xml"))
}
