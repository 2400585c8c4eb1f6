package models

import (
	"time"

	"github.com/inboxd/inboxd/internal/enum"
	apperrors "github.com/inboxd/inboxd/internal/errors"
)

// Label is a folder or tag. Backends with flat folders leave ParentID
// empty; hierarchical backends form a tree through ParentID.
type Label struct {
	ID        string `gorm:"column:id;type:varchar(255);primaryKey" json:"id"`
	AccountID string `gorm:"column:account_id;type:varchar(50);index;not null" json:"accountId"`

	Name     string         `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Type     enum.LabelType `gorm:"column:type;type:varchar(50);index" json:"type"`
	Color    string         `gorm:"column:color;type:varchar(20)" json:"color,omitempty"`
	ParentID string         `gorm:"column:parent_id;type:varchar(255);index" json:"parentId,omitempty"`

	// ProviderIDs maps backend kind to the backend-native identifier
	// for this label.
	ProviderIDs JSONMap `gorm:"column:provider_ids;type:jsonb" json:"providerIds,omitempty"`

	Visible      bool `gorm:"column:visible;default:true" json:"visible"`
	MessageCount int  `gorm:"column:message_count;default:0" json:"messageCount"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp" json:"updatedAt"`
}

func (Label) TableName() string {
	return "labels"
}

// ValidateLabelParentChain rejects a label whose parent chain, within
// the given set, loops back on itself. Must run before storage.
func ValidateLabelParentChain(label *Label, existing map[string]*Label) error {
	seen := map[string]bool{label.ID: true}
	parentID := label.ParentID
	for parentID != "" {
		if seen[parentID] {
			return apperrors.ErrLabelCycle
		}
		seen[parentID] = true
		parent, ok := existing[parentID]
		if !ok {
			// dangling parent is allowed; backends may list children first
			return nil
		}
		parentID = parent.ParentID
	}
	return nil
}
