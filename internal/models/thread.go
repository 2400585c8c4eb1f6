package models

import (
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/inboxd/inboxd/internal/utils"
)

// Thread groups messages by foreign key only; message rows are never
// embedded in the thread row.
type Thread struct {
	ID        string `gorm:"column:id;type:varchar(255);primaryKey" json:"id"`
	AccountID string `gorm:"column:account_id;type:varchar(50);primaryKey;index" json:"accountId"`

	Subject      string         `gorm:"column:subject;type:varchar(1000)" json:"subject"`
	Participants pq.StringArray `gorm:"column:participants;type:text[]" json:"participants"`
	MessageIDs   pq.StringArray `gorm:"column:message_ids;type:text[]" json:"messageIds"`
	LabelIDs     pq.StringArray `gorm:"column:label_ids;type:text[]" json:"labelIds"`

	MessageCount int `gorm:"column:message_count;default:0" json:"messageCount"`
	UnreadCount  int `gorm:"column:unread_count;default:0" json:"unreadCount"`

	FirstMessageAt *time.Time `gorm:"column:first_message_at;type:timestamp" json:"firstMessageAt"`
	LastMessageAt  *time.Time `gorm:"column:last_message_at;type:timestamp;index" json:"lastMessageAt"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp" json:"updatedAt"`
}

func (Thread) TableName() string {
	return "threads"
}

func (t *Thread) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = utils.GenerateNanoIDWithPrefix("thread", 16)
	}
	t.CreatedAt = utils.Now()
	return nil
}

// Validate enforces unreadCount <= messageCount <= len(messageIds).
func (t *Thread) Validate() error {
	if t.UnreadCount > t.MessageCount {
		return fmt.Errorf("thread %s: unread count %d exceeds message count %d", t.ID, t.UnreadCount, t.MessageCount)
	}
	if t.MessageCount > len(t.MessageIDs) {
		return fmt.Errorf("thread %s: message count %d exceeds member list size %d", t.ID, t.MessageCount, len(t.MessageIDs))
	}
	return nil
}
