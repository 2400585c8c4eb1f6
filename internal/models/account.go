package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/inboxd/inboxd/internal/enum"
	"github.com/inboxd/inboxd/internal/utils"
)

// Account is one authenticated mailbox identity bound to a single
// backend kind. Immutable after creation except for credential refresh.
type Account struct {
	ID          string            `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	Email       string            `gorm:"column:email;type:varchar(255);uniqueIndex;not null" json:"email"`
	Provider    enum.ProviderKind `gorm:"column:provider;type:varchar(50);index;not null" json:"provider"`
	DisplayName string            `gorm:"column:display_name;type:varchar(255)" json:"displayName"`

	// CredentialRef is an opaque handle resolved by the credential
	// provider. Token material is never stored here.
	CredentialRef string `gorm:"column:credential_ref;type:varchar(255)" json:"-"`

	// Store-and-forward connection settings, unused for REST backends.
	ImapServer   string `gorm:"column:imap_server;type:varchar(255)" json:"imapServer,omitempty"`
	ImapPort     int    `gorm:"column:imap_port" json:"imapPort,omitempty"`
	ImapTLS      bool   `gorm:"column:imap_tls;default:true" json:"imapTls,omitempty"`
	ImapUsername string `gorm:"column:imap_username;type:varchar(255)" json:"imapUsername,omitempty"`
	SmtpServer   string `gorm:"column:smtp_server;type:varchar(255)" json:"smtpServer,omitempty"`
	SmtpPort     int    `gorm:"column:smtp_port" json:"smtpPort,omitempty"`

	SyncEnabled bool `gorm:"column:sync_enabled;default:true" json:"syncEnabled"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp" json:"updatedAt"`
}

func (Account) TableName() string {
	return "accounts"
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIDWithPrefix("acct", 16)
	}
	a.CreatedAt = utils.Now()
	return nil
}
