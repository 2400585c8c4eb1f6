package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxd/inboxd/internal/models"
	"github.com/inboxd/inboxd/internal/utils"
)

func newTestReconciler() (*Reconciler, *fakeMessageRepo, *fakeThreadRepo) {
	messages := newFakeMessageRepo()
	threads := newFakeThreadRepo()
	return NewReconciler(messages, threads, newFakeLabelRepo(), getLogger()), messages, threads
}

func TestApplyMessages_IdempotentUpsert(t *testing.T) {
	r, messages, _ := newTestReconciler()
	msg := testMessage("m1", utils.Now())

	inserted, updated, err := r.ApplyMessages(context.Background(), "acct_1", []*models.Message{msg})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.Equal(t, 0, updated)

	inserted, updated, err = r.ApplyMessages(context.Background(), "acct_1", []*models.Message{msg})
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
	assert.Equal(t, 1, updated)

	count, _ := messages.CountByAccount(context.Background(), "acct_1")
	assert.Equal(t, int64(1), count)
}

func TestApplyMessages_LastWriteWins(t *testing.T) {
	r, messages, _ := newTestReconciler()

	for i, subject := range []string{"first", "second", "third"} {
		msg := testMessage("m1", utils.Now().Add(time.Duration(i)*time.Minute))
		msg.Subject = subject
		_, _, err := r.ApplyMessages(context.Background(), "acct_1", []*models.Message{msg})
		require.NoError(t, err)
	}

	count, _ := messages.CountByAccount(context.Background(), "acct_1")
	assert.Equal(t, int64(1), count)

	stored, _ := messages.GetByID(context.Background(), "acct_1", "m1")
	assert.Equal(t, "third", stored.Subject)
}

func TestApplyMessages_RebuildsThreadAggregates(t *testing.T) {
	r, _, threads := newTestReconciler()
	now := utils.Now()

	m1 := testMessage("m1", now.Add(-time.Hour))
	m1.ThreadID = "t1"
	m1.IsRead = true
	m2 := testMessage("m2", now)
	m2.ThreadID = "t1"
	m2.FromAddress = "other@example.com"

	_, _, err := r.ApplyMessages(context.Background(), "acct_1", []*models.Message{m1, m2})
	require.NoError(t, err)

	thread, err := threads.GetByID(context.Background(), "acct_1", "t1")
	require.NoError(t, err)
	require.NotNil(t, thread)

	assert.Equal(t, 2, thread.MessageCount)
	assert.Equal(t, 1, thread.UnreadCount)
	assert.Len(t, thread.MessageIDs, 2)
	assert.Contains(t, thread.Participants, "sender@example.com")
	assert.Contains(t, thread.Participants, "other@example.com")
	require.NotNil(t, thread.FirstMessageAt)
	require.NotNil(t, thread.LastMessageAt)
	assert.True(t, thread.FirstMessageAt.Before(*thread.LastMessageAt))
	assert.NoError(t, thread.Validate())
}

func TestApplyDeletions_UpdatesThread(t *testing.T) {
	r, messages, threads := newTestReconciler()
	now := utils.Now()

	m1 := testMessage("m1", now.Add(-time.Hour))
	m1.ThreadID = "t1"
	m2 := testMessage("m2", now)
	m2.ThreadID = "t1"
	_, _, err := r.ApplyMessages(context.Background(), "acct_1", []*models.Message{m1, m2})
	require.NoError(t, err)

	deleted, err := r.ApplyDeletions(context.Background(), "acct_1", []string{"m2", "unknown"})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	m2After, _ := messages.GetByID(context.Background(), "acct_1", "m2")
	assert.True(t, m2After.IsDeleted)

	thread, _ := threads.GetByID(context.Background(), "acct_1", "t1")
	require.NotNil(t, thread)
	assert.Equal(t, 1, thread.MessageCount)
}

// unfilteredMessageRepo returns thread listings that still include
// soft-deleted rows, the way a read path without a deletion predicate
// would.
type unfilteredMessageRepo struct {
	*fakeMessageRepo
}

func (r *unfilteredMessageRepo) ListByThread(ctx context.Context, accountID, threadID string) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Message
	for _, m := range r.rows {
		if m.AccountID == accountID && m.ThreadID == threadID {
			out = append(out, copyMessage(m))
		}
	}
	return out, nil
}

func TestRebuildThread_IgnoresSoftDeletedRows(t *testing.T) {
	messages := &unfilteredMessageRepo{fakeMessageRepo: newFakeMessageRepo()}
	threads := newFakeThreadRepo()
	r := NewReconciler(messages, threads, newFakeLabelRepo(), getLogger())
	now := utils.Now()

	m1 := testMessage("m1", now.Add(-time.Hour))
	m1.ThreadID = "t1"
	m1.IsRead = true
	m2 := testMessage("m2", now)
	m2.ThreadID = "t1"
	_, _, err := r.ApplyMessages(context.Background(), "acct_1", []*models.Message{m1, m2})
	require.NoError(t, err)

	deleted, err := r.ApplyDeletions(context.Background(), "acct_1", []string{"m2"})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	thread, _ := threads.GetByID(context.Background(), "acct_1", "t1")
	require.NotNil(t, thread)
	assert.Equal(t, 1, thread.MessageCount)
	assert.Equal(t, 0, thread.UnreadCount)
	assert.Equal(t, []string(thread.MessageIDs), []string{"m1"})
}

func TestDeriveThreadID_Stable(t *testing.T) {
	a := &models.Message{
		Subject:     "Re: Quarterly report",
		FromAddress: "Alice@Example.com",
		ToAddresses: []string{"bob@example.com"},
	}
	b := &models.Message{
		Subject:     "RE: RE: Quarterly report",
		FromAddress: "bob@example.com",
		ToAddresses: []string{"alice@example.com"},
	}
	c := &models.Message{
		Subject:     "Quarterly report",
		FromAddress: "carol@example.com",
		ToAddresses: []string{"bob@example.com"},
	}

	assert.Equal(t, deriveThreadID(a), deriveThreadID(b))
	assert.NotEqual(t, deriveThreadID(a), deriveThreadID(c))
}
