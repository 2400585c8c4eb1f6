package errors

import (
	"time"

	"github.com/pkg/errors"
)

var (
	// common errors
	ErrAccountNotFound   = errors.New("account not found")
	ErrConnectionTimeout = errors.New("connection timeout")

	// adapter state machine errors
	ErrAlreadyConnecting = errors.New("adapter is already connecting")
	ErrAlreadyConnected  = errors.New("adapter is already connected")

	// sync errors
	ErrSyncAlreadyRunning = errors.New("sync already running for account")
	ErrSyncDeferred       = errors.New("sync deferred by backoff window")

	// label errors
	ErrLabelCycle = errors.New("label parent chain contains a cycle")
)

// Kind classifies a provider failure for retry decisions.
type Kind string

const (
	KindNetwork              Kind = "network"
	KindAuthentication       Kind = "authentication"
	KindPermissionDenied     Kind = "permission_denied"
	KindRateLimitExceeded    Kind = "rate_limit_exceeded"
	KindServerError          Kind = "server_error"
	KindInvalidRequest       Kind = "invalid_request"
	KindNotConnected         Kind = "not_connected"
	KindTokenExpired         Kind = "token_expired"
	KindUnsupportedOperation Kind = "unsupported_operation"
)

// MailError is a typed provider/sync failure. RetryAfter carries the
// server's retry hint for rate-limit responses, zero otherwise.
type MailError struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration
	Cause      error
}

func (e *MailError) Error() string {
	if e.Message != "" {
		return string(e.Kind) + ": " + e.Message
	}
	return string(e.Kind)
}

func (e *MailError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether a later sync attempt may succeed without
// caller intervention.
func (e *MailError) IsRetryable() bool {
	switch e.Kind {
	case KindNetwork, KindRateLimitExceeded, KindServerError:
		return true
	default:
		return false
	}
}

func New(kind Kind, message string) *MailError {
	return &MailError{Kind: kind, Message: message}
}

func Wrap(kind Kind, err error, message string) *MailError {
	return &MailError{Kind: kind, Message: message, Cause: err}
}

func RateLimited(retryAfter time.Duration) *MailError {
	return &MailError{Kind: KindRateLimitExceeded, Message: "rate limit exceeded", RetryAfter: retryAfter}
}

// KindOf extracts the error kind, defaulting to server_error for
// untyped failures so they remain retryable.
func KindOf(err error) Kind {
	var me *MailError
	if errors.As(err, &me) {
		return me.Kind
	}
	return KindServerError
}

// RetryAfterOf returns the retry hint attached to err, if any.
func RetryAfterOf(err error) time.Duration {
	var me *MailError
	if errors.As(err, &me) {
		return me.RetryAfter
	}
	return 0
}

// IsRetryable reports whether err warrants another sync attempt.
func IsRetryable(err error) bool {
	var me *MailError
	if errors.As(err, &me) {
		return me.IsRetryable()
	}
	// transient by default: unknown failures get the backoff path
	return true
}
