package decision_test

import (
	"testing"

	"github.com/blocksweep/blocksweep/internal/decision"
	"github.com/blocksweep/blocksweep/internal/moderation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(author, rkey string, supportive bool) (moderation.PostID, moderation.Record) {
	intent := moderation.IntentCritical
	if supportive {
		intent = moderation.IntentSupportive
	}
	uri := "at://" + author + "/app.bsky.feed.post/" + rkey
	return moderation.PostID{AuthorDID: author, RecordKey: rkey}, moderation.Record{
		Keyword:      "Foo",
		Intent:       intent,
		IsSupportive: supportive,
		Reasoning:    "model says so",
		Source:       moderation.SourceText,
		PostURI:      uri,
		AuthorDID:    author,
	}
}

func TestStore_PartitionsInInsertionOrder(t *testing.T) {
	s := decision.NewStore()
	s.BeginSession()

	for _, r := range []struct {
		author, rkey string
		supportive   bool
	}{
		{"did:plc:a", "1", true},
		{"did:plc:b", "2", false},
		{"did:plc:c", "3", true},
		{"did:plc:d", "4", false},
	} {
		s.Record(rec(r.author, r.rkey, r.supportive))
	}

	supportive := s.ListSupportive()
	require.Len(t, supportive, 2)
	assert.Equal(t, "did:plc:a", supportive[0].AuthorDID)
	assert.Equal(t, "did:plc:c", supportive[1].AuthorDID)

	opposing := s.ListOpposing()
	require.Len(t, opposing, 2)
	assert.Equal(t, "did:plc:b", opposing[0].AuthorDID)
	assert.Equal(t, "did:plc:d", opposing[1].AuthorDID)
}

func TestStore_RecordUpsertLastWriteWins(t *testing.T) {
	s := decision.NewStore()
	s.BeginSession()

	s.Record(rec("did:plc:a", "1", false))
	s.Record(rec("did:plc:b", "2", false))
	id, r := rec("did:plc:a", "1", true)
	r.Keyword = "Bar"
	s.Record(id, r)

	assert.Equal(t, 2, s.Len())
	got, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, "Bar", got.Keyword)
	assert.True(t, got.IsSupportive)
}

func TestStore_BeginSessionClearsRecords(t *testing.T) {
	s := decision.NewStore()
	first := s.BeginSession()
	s.Record(rec("did:plc:a", "1", true))

	second := s.BeginSession()

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.ListSupportive())
	assert.Empty(t, s.ListOpposing())
}

func TestStore_Override(t *testing.T) {
	s := decision.NewStore()
	s.BeginSession()
	id, r := rec("did:plc:a", "1", false)
	s.Record(id, r)

	got, err := s.Override(r.PostURI, true)
	require.NoError(t, err)

	assert.True(t, got.IsSupportive)
	assert.True(t, got.Overridden)
	assert.Equal(t, decision.OverrideReasoning, got.Reasoning)
	assert.Equal(t, moderation.IntentCritical, got.Intent)
	assert.Equal(t, "Foo", got.Keyword)
	assert.Equal(t, []string{"did:plc:a"}, s.SupportiveAuthors())
}

func TestStore_OverrideIsIdempotent(t *testing.T) {
	s := decision.NewStore()
	s.BeginSession()
	id, r := rec("did:plc:a", "1", true)
	s.Record(id, r)

	first, err := s.Override(r.PostURI, false)
	require.NoError(t, err)
	second, err := s.Override(r.PostURI, false)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	stored, _ := s.Get(id)
	assert.Equal(t, first, stored)
}

func TestStore_OverrideErrors(t *testing.T) {
	s := decision.NewStore()
	s.BeginSession()
	s.Record(rec("did:plc:a", "1", true))

	_, err := s.Override("at://did:plc:zzz/app.bsky.feed.post/9", false)
	assert.ErrorIs(t, err, decision.ErrNotFound)

	_, err = s.Override("https://bsky.app/profile/a/post/1", false)
	assert.ErrorIs(t, err, decision.ErrInvalidPostURI)
}

func TestStore_SupportiveAuthorsDeduplicates(t *testing.T) {
	s := decision.NewStore()
	s.BeginSession()
	s.Record(rec("did:plc:a", "1", true))
	s.Record(rec("did:plc:b", "2", true))
	s.Record(rec("did:plc:a", "3", true))
	s.Record(rec("did:plc:c", "4", false))

	assert.Equal(t, []string{"did:plc:a", "did:plc:b"}, s.SupportiveAuthors())
}
