package credentials

import (
	"context"
	"fmt"
	"os"

	"github.com/inboxd/inboxd/interfaces"
	apperrors "github.com/inboxd/inboxd/internal/errors"
	"github.com/inboxd/inboxd/internal/models"
)

// EnvProvider resolves an account's credential reference to a secret
// read from the process environment. The reference is the variable
// name; the secret value itself is never persisted.
type EnvProvider struct{}

func NewEnvProvider() interfaces.CredentialProvider {
	return &EnvProvider{}
}

func (p *EnvProvider) Token(ctx context.Context, account *models.Account) (string, error) {
	if account.CredentialRef == "" {
		return "", apperrors.New(apperrors.KindAuthentication, fmt.Sprintf("account %s has no credential reference", account.ID))
	}
	secret := os.Getenv(account.CredentialRef)
	if secret == "" {
		return "", apperrors.New(apperrors.KindAuthentication, fmt.Sprintf("credential %s is not set", account.CredentialRef))
	}
	return secret, nil
}

// Refresh re-reads the secret. Rotation happens out of band by
// replacing the environment value, so a refresh is just a re-fetch.
func (p *EnvProvider) Refresh(ctx context.Context, account *models.Account) (string, error) {
	return p.Token(ctx, account)
}
