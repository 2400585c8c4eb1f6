package services

import (
	"fmt"

	"github.com/inboxd/inboxd/interfaces"
	"github.com/inboxd/inboxd/internal/enum"
	"github.com/inboxd/inboxd/internal/logger"
	"github.com/inboxd/inboxd/internal/models"
	"github.com/inboxd/inboxd/internal/repository"
	"github.com/inboxd/inboxd/services/credentials"
	"github.com/inboxd/inboxd/services/events"
	"github.com/inboxd/inboxd/services/provider/gmail"
	"github.com/inboxd/inboxd/services/provider/imapmail"
	"github.com/inboxd/inboxd/services/sync"
)

type Services struct {
	Repositories *repository.Repositories
	Dispatcher   interfaces.EventDispatcher
	Credentials  interfaces.CredentialProvider
	SyncEngine   interfaces.MailService
}

func InitServices(rabbitmqURL string, log logger.Logger, repos *repository.Repositories, syncCfg sync.Config) (*Services, error) {
	inMemory := events.NewInMemoryDispatcher(log)

	var dispatcher interfaces.EventDispatcher = inMemory
	if rabbitmqURL != "" {
		publisher, err := events.NewRabbitMQPublisher(rabbitmqURL, log, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize broker publisher: %w", err)
		}
		dispatcher = events.NewMirroringDispatcher(inMemory, publisher, log)
	}

	creds := credentials.NewEnvProvider()

	engine := sync.NewEngine(
		sync.Deps{
			Accounts:   repos.AccountRepository,
			Messages:   repos.MessageRepository,
			Threads:    repos.ThreadRepository,
			Labels:     repos.LabelRepository,
			SyncStates: repos.SyncStateRepository,
			Drafts:     repos.DraftRepository,
		},
		creds,
		dispatcher,
		NewProviderFactory(log),
		log,
		syncCfg,
	)

	return &Services{
		Repositories: repos,
		Dispatcher:   dispatcher,
		Credentials:  creds,
		SyncEngine:   engine,
	}, nil
}

// NewProviderFactory maps an account's backend kind to its adapter.
func NewProviderFactory(log logger.Logger) sync.ProviderFactory {
	return func(account *models.Account, creds interfaces.CredentialProvider) (interfaces.MailProvider, error) {
		switch account.Provider {
		case enum.ProviderGmail:
			return gmail.NewGmailService(account, creds, log, gmail.Config{}), nil
		case enum.ProviderIMAP:
			return imapmail.NewIMAPMailService(account, creds, log, imapmail.Config{}), nil
		default:
			return nil, fmt.Errorf("no adapter for provider kind %s", account.Provider)
		}
	}
}
