package interfaces

import (
	"context"

	"github.com/inboxd/inboxd/internal/enum"
	"github.com/inboxd/inboxd/internal/models"
)

// SyncResult summarizes one finished sync run.
type SyncResult struct {
	AccountID       string        `json:"accountId"`
	Mode            enum.SyncMode `json:"mode"`
	NewMessages     int           `json:"newMessages"`
	UpdatedMessages int           `json:"updatedMessages"`
	DeletedMessages int           `json:"deletedMessages"`
	Cursor          string        `json:"cursor,omitempty"`
}

// SyncEngine drives one provider adapter per account. At most one sync
// run per account is in flight; a second start request is rejected with
// ErrSyncAlreadyRunning rather than queued.
type SyncEngine interface {
	SyncNow(ctx context.Context, accountID string) (*SyncResult, error)
	SyncState(ctx context.Context, accountID string) (*models.SyncState, error)
	ConnectionState(accountID string) enum.ConnectionState
	Connect(ctx context.Context, accountID string) error
	Disconnect(ctx context.Context, accountID string) error
}

// MailCommander is the command surface the UI layer calls. Each
// operation goes to the backend first, then mirrors the effect into
// the local cache so the change is visible before the next sync.
type MailCommander interface {
	SendDraft(ctx context.Context, accountID, draftID string) (string, error)
	MarkAsRead(ctx context.Context, accountID string, messageIDs []string, read bool) error
	DeleteMessages(ctx context.Context, accountID string, messageIDs []string) error
	ArchiveMessages(ctx context.Context, accountID string, messageIDs []string) error
	SearchRemote(ctx context.Context, accountID, query string, limit int) ([]*models.Message, error)
}

// MailService is the full engine surface: sync control plus commands.
type MailService interface {
	SyncEngine
	MailCommander
}
