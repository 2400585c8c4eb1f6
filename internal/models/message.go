package models

import (
	"time"

	"github.com/lib/pq"

	"github.com/inboxd/inboxd/internal/enum"
)

// Message is the canonical, backend-independent form of a mail message.
// The (id, account_id) pair is globally unique in the cache; a message
// arriving again under the same key is a revision of the stored row,
// never a second insert.
type Message struct {
	ID        string            `gorm:"column:id;type:varchar(255);primaryKey" json:"id"`
	AccountID string            `gorm:"column:account_id;type:varchar(50);primaryKey;index" json:"accountId"`
	Provider  enum.ProviderKind `gorm:"column:provider;type:varchar(50);index;not null" json:"provider"`
	ThreadID  string            `gorm:"column:thread_id;type:varchar(255);index" json:"threadId,omitempty"`

	// InternetMessageID is the RFC 5322 Message-Id header. It is kept
	// apart from ID, which stays the backend-native identifier the
	// adapter can map back to the remote message.
	InternetMessageID string `gorm:"column:internet_message_id;type:varchar(998);index" json:"internetMessageId,omitempty"`

	Subject  string `gorm:"column:subject;type:varchar(1000)" json:"subject"`
	BodyText string `gorm:"column:body_text;type:text" json:"bodyText"`
	BodyHTML string `gorm:"column:body_html;type:text" json:"bodyHtml,omitempty"`
	Snippet  string `gorm:"column:snippet;type:varchar(500)" json:"snippet"`

	FromAddress  string         `gorm:"column:from_address;type:varchar(255);index" json:"fromAddress"`
	FromName     string         `gorm:"column:from_name;type:varchar(255)" json:"fromName,omitempty"`
	ToAddresses  pq.StringArray `gorm:"column:to_addresses;type:text[]" json:"toAddresses"`
	CcAddresses  pq.StringArray `gorm:"column:cc_addresses;type:text[]" json:"ccAddresses,omitempty"`
	BccAddresses pq.StringArray `gorm:"column:bcc_addresses;type:text[]" json:"bccAddresses,omitempty"`

	SentAt time.Time `gorm:"column:sent_at;type:timestamp;index" json:"sentAt"`

	LabelIDs pq.StringArray `gorm:"column:label_ids;type:text[]" json:"labelIds"`

	IsRead      bool `gorm:"column:is_read;default:false" json:"isRead"`
	IsStarred   bool `gorm:"column:is_starred;default:false" json:"isStarred"`
	IsDeleted   bool `gorm:"column:is_deleted;default:false;index" json:"isDeleted"`
	IsDraft     bool `gorm:"column:is_draft;default:false" json:"isDraft"`
	IsAnswered  bool `gorm:"column:is_answered;default:false" json:"isAnswered"`
	IsForwarded bool `gorm:"column:is_forwarded;default:false" json:"isForwarded"`

	Size int64 `gorm:"column:size" json:"size"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp" json:"updatedAt"`
}

func (Message) TableName() string {
	return "messages"
}

// UnknownSender is the sentinel used when a backend payload carries no
// usable From header.
const UnknownSender = "unknown@unknown.invalid"
