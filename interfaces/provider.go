package interfaces

import (
	"context"

	"github.com/inboxd/inboxd/internal/enum"
	"github.com/inboxd/inboxd/internal/models"
)

// MailProvider is the capability set every backend adapter implements.
// The sync engine depends on this interface only, never on a concrete
// backend type. Adapters are bound to a single account and are not
// shared across accounts.
type MailProvider interface {
	Kind() enum.ProviderKind
	State() enum.ConnectionState

	// Connect establishes the backend session, driving the state
	// machine disconnected -> connecting -> {connected | error}.
	// A concurrent Connect on an already connecting or connected
	// adapter fails with ErrAlreadyConnecting / ErrAlreadyConnected.
	Connect(ctx context.Context, account *models.Account) error

	// Disconnect always succeeds locally, even if the remote teardown
	// fails; afterwards State() is disconnected.
	Disconnect(ctx context.Context) error

	// SyncEmails produces a stream of sync events. The channel is
	// closed after a completed or error event.
	SyncEmails(ctx context.Context, options SyncOptions) (<-chan SyncEvent, error)

	SendEmail(ctx context.Context, draft *models.Draft) (string, error)
	MarkAsRead(ctx context.Context, messageIDs []string, read bool) error
	DeleteMessages(ctx context.Context, messageIDs []string) error
	ArchiveMessages(ctx context.Context, messageIDs []string) error
	FetchMessageDetails(ctx context.Context, messageID string) (*models.Message, error)
	SearchMessages(ctx context.Context, query string, limit int) ([]*models.Message, error)

	// FetchLabels returns an empty set for flat-folder backends.
	FetchLabels(ctx context.Context) ([]*models.Label, error)

	// UpdateLabels fails with an unsupported_operation error on
	// backends without hierarchical labels.
	UpdateLabels(ctx context.Context, label *models.Label) error
}

type SyncOptions struct {
	Mode     enum.SyncMode
	Cursor   string
	PageSize int
}

type SyncEventType string

const (
	SyncEventStarted         SyncEventType = "started"
	SyncEventProgress        SyncEventType = "progress"
	SyncEventNewMessages     SyncEventType = "new_messages"
	SyncEventUpdatedMessages SyncEventType = "updated_messages"
	SyncEventDeletedMessages SyncEventType = "deleted_messages"
	SyncEventCompleted       SyncEventType = "completed"
	SyncEventError           SyncEventType = "error"
)

// SyncEvent is one element of the adapter's sync stream.
type SyncEvent struct {
	Type SyncEventType

	// progress
	Current int
	Total   int

	// new_messages / updated_messages
	Messages []*models.Message

	// deleted_messages
	DeletedIDs []string

	// completed: the cursor to store for the next incremental run
	Cursor string

	// error
	Err error
}

// CredentialProvider supplies and refreshes opaque bearer tokens. The
// core never inspects the token beyond placing it in an Authorization
// header.
type CredentialProvider interface {
	Token(ctx context.Context, account *models.Account) (string, error)
	Refresh(ctx context.Context, account *models.Account) (string, error)
}
