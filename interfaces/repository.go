package interfaces

import (
	"context"
	"time"

	"github.com/inboxd/inboxd/internal/models"
)

// UpsertResult reports whether a keyed upsert inserted a new row or
// revised an existing one.
type UpsertResult string

const (
	UpsertInserted UpsertResult = "inserted"
	UpsertUpdated  UpsertResult = "updated"
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	List(ctx context.Context) ([]*models.Account, error)
	ListSyncEnabled(ctx context.Context) ([]*models.Account, error)
	// Delete cascades to messages, threads, labels, drafts and sync
	// state for the account.
	Delete(ctx context.Context, id string) error
}

type MessageRepository interface {
	Upsert(ctx context.Context, message *models.Message) (UpsertResult, error)
	GetByID(ctx context.Context, accountID, id string) (*models.Message, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.Message, error)
	ListByThread(ctx context.Context, accountID, threadID string) ([]*models.Message, error)
	ListIDsByAccount(ctx context.Context, accountID string) ([]string, error)
	Search(ctx context.Context, accountID, query string, limit, offset int) ([]*models.Message, error)
	MarkDeleted(ctx context.Context, accountID string, ids []string) error
	CountByAccount(ctx context.Context, accountID string) (int64, error)
}

type ThreadRepository interface {
	Upsert(ctx context.Context, thread *models.Thread) (UpsertResult, error)
	GetByID(ctx context.Context, accountID, id string) (*models.Thread, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.Thread, error)
}

type LabelRepository interface {
	Upsert(ctx context.Context, label *models.Label) (UpsertResult, error)
	GetByID(ctx context.Context, id string) (*models.Label, error)
	ListByAccount(ctx context.Context, accountID string) ([]*models.Label, error)
}

type SyncStateRepository interface {
	Get(ctx context.Context, accountID string) (*models.SyncState, error)
	Save(ctx context.Context, state *models.SyncState) error
	// TryBeginSync atomically flips is_syncing false -> true; the
	// second caller for an account loses and gets ok=false. The row
	// is created on first use.
	TryBeginSync(ctx context.Context, accountID string) (*models.SyncState, bool, error)
	// ReleaseStuck clears is_syncing flags left behind by crashed runs.
	ReleaseStuck(ctx context.Context, olderThan time.Duration) (int64, error)
	Delete(ctx context.Context, accountID string) error
}

type DraftRepository interface {
	Save(ctx context.Context, draft *models.Draft) error
	GetByID(ctx context.Context, id string) (*models.Draft, error)
	ListByAccount(ctx context.Context, accountID string) ([]*models.Draft, error)
	Delete(ctx context.Context, id string) error
}
