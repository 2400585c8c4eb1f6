package models

import (
	"time"

	"github.com/inboxd/inboxd/internal/enum"
)

// SyncState is the per-account synchronization bookkeeping row. The
// cursor is backend-defined and opaque (Gmail historyId, IMAP UID,
// Graph delta link); it only advances after a run completes.
type SyncState struct {
	AccountID string `gorm:"column:account_id;type:varchar(50);primaryKey" json:"accountId"`

	LastFullSync        *time.Time `gorm:"column:last_full_sync;type:timestamp" json:"lastFullSync,omitempty"`
	LastIncrementalSync *time.Time `gorm:"column:last_incremental_sync;type:timestamp" json:"lastIncrementalSync,omitempty"`

	Cursor        string `gorm:"column:cursor;type:varchar(500)" json:"cursor,omitempty"`
	LastMessageID string `gorm:"column:last_message_id;type:varchar(255)" json:"lastMessageId,omitempty"`

	MessagesSynced    int `gorm:"column:messages_synced;default:0" json:"messagesSynced"`
	ErrorsCount       int `gorm:"column:errors_count;default:0" json:"errorsCount"`
	ConsecutiveErrors int `gorm:"column:consecutive_errors;default:0" json:"consecutiveErrors"`

	IsSyncing bool            `gorm:"column:is_syncing;default:false" json:"isSyncing"`
	Status    enum.SyncStatus `gorm:"column:status;type:varchar(20);default:'idle'" json:"status"`

	LastErrorAt   *time.Time `gorm:"column:last_error_at;type:timestamp" json:"lastErrorAt,omitempty"`
	NextAttemptAt *time.Time `gorm:"column:next_attempt_at;type:timestamp" json:"nextAttemptAt,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp" json:"updatedAt"`
}

func (SyncState) TableName() string {
	return "sync_states"
}
