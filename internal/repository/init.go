package repository

import (
	"gorm.io/gorm"

	"github.com/inboxd/inboxd/interfaces"
	"github.com/inboxd/inboxd/internal/models"
)

type Repositories struct {
	AccountRepository   interfaces.AccountRepository
	MessageRepository   interfaces.MessageRepository
	ThreadRepository    interfaces.ThreadRepository
	LabelRepository     interfaces.LabelRepository
	SyncStateRepository interfaces.SyncStateRepository
	DraftRepository     interfaces.DraftRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		AccountRepository:   NewAccountRepository(db),
		MessageRepository:   NewMessageRepository(db),
		ThreadRepository:    NewThreadRepository(db),
		LabelRepository:     NewLabelRepository(db),
		SyncStateRepository: NewSyncStateRepository(db),
		DraftRepository:     NewDraftRepository(db),
	}
}

func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Account{},
		&models.Message{},
		&models.Thread{},
		&models.Label{},
		&models.SyncState{},
		&models.Draft{},
	)
}
