package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/inboxd/inboxd/interfaces"
	"github.com/inboxd/inboxd/internal/enum"
	apperrors "github.com/inboxd/inboxd/internal/errors"
	"github.com/inboxd/inboxd/internal/logger"
	"github.com/inboxd/inboxd/internal/models"
	"github.com/inboxd/inboxd/internal/tracing"
	"github.com/inboxd/inboxd/services/provider"
)

const (
	defaultPageSize    = 100
	defaultPageRetries = 3
	pageRetryDelay     = 500 * time.Millisecond
)

type Config struct {
	APIBase        string
	RequestTimeout time.Duration
	PageSize       int
	PageRetries    int
}

// GmailService is the REST-style adapter reference implementation.
// One instance serves exactly one account.
type GmailService struct {
	account *models.Account
	client  *apiClient
	sm      *provider.StateMachine
	log     logger.Logger
	cfg     Config
}

func NewGmailService(account *models.Account, creds interfaces.CredentialProvider, log logger.Logger, cfg Config) *GmailService {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.PageRetries == 0 {
		cfg.PageRetries = defaultPageRetries
	}
	return &GmailService{
		account: account,
		client:  newAPIClient(cfg.APIBase, cfg.RequestTimeout, creds, account),
		sm:      provider.NewStateMachine(),
		log:     log,
		cfg:     cfg,
	}
}

func (s *GmailService) Kind() enum.ProviderKind {
	return enum.ProviderGmail
}

func (s *GmailService) State() enum.ConnectionState {
	return s.sm.State()
}

// Connect validates the credential by fetching the profile.
func (s *GmailService) Connect(ctx context.Context, account *models.Account) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailService.Connect")
	defer span.Finish()
	tracing.TagComponentProvider(span)
	tracing.TagAccount(span, account.ID)

	if err := s.sm.BeginConnect(); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	var profile profileResponse
	if err := s.client.doJSON(ctx, "GET", "/profile", nil, nil, &profile); err != nil {
		s.sm.ConnectFailed()
		tracing.TraceErr(span, err)
		return err
	}

	s.sm.ConnectSucceeded()
	s.log.Infof("[%s] connected to gmail backend as %s", account.ID, profile.EmailAddress)
	return nil
}

// Disconnect has no remote session to tear down on a REST backend;
// local state always reaches disconnected.
func (s *GmailService) Disconnect(ctx context.Context) error {
	s.sm.Disconnected()
	return nil
}

func (s *GmailService) SyncEmails(ctx context.Context, options interfaces.SyncOptions) (<-chan interfaces.SyncEvent, error) {
	if err := s.sm.RequireConnected(); err != nil {
		return nil, err
	}

	if options.PageSize <= 0 {
		options.PageSize = s.cfg.PageSize
	}

	events := make(chan interfaces.SyncEvent, 16)
	go func() {
		defer close(events)
		events <- interfaces.SyncEvent{Type: interfaces.SyncEventStarted}

		var err error
		var cursor string
		if options.Mode == enum.SyncModeIncremental && options.Cursor != "" {
			cursor, err = s.runIncrementalSync(ctx, options, events)
		} else {
			cursor, err = s.runFullSync(ctx, options, events)
		}
		if err != nil {
			events <- interfaces.SyncEvent{Type: interfaces.SyncEventError, Err: err}
			return
		}
		events <- interfaces.SyncEvent{Type: interfaces.SyncEventCompleted, Cursor: cursor}
	}()
	return events, nil
}

// runFullSync re-lists the whole mailbox. The new cursor is the
// profile's current change id, captured before listing so changes that
// land mid-run are picked up by the next incremental sync.
func (s *GmailService) runFullSync(ctx context.Context, options interfaces.SyncOptions, events chan<- interfaces.SyncEvent) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailService.runFullSync")
	defer span.Finish()
	tracing.TagComponentProvider(span)
	tracing.TagAccount(span, s.account.ID)

	var profile profileResponse
	if err := s.withPageRetry(ctx, func() error {
		return s.client.doJSON(ctx, "GET", "/profile", nil, nil, &profile)
	}); err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}

	seen := make(map[string]bool)
	pageToken := ""
	processed := 0
	total := profile.MessagesTotal

	for {
		if ctx.Err() != nil {
			return "", apperrors.Wrap(apperrors.KindNetwork, ctx.Err(), "sync cancelled")
		}

		query := url.Values{}
		query.Set("maxResults", strconv.Itoa(options.PageSize))
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}

		var page listResponse
		if err := s.withPageRetry(ctx, func() error {
			return s.client.doJSON(ctx, "GET", "/messages", query, nil, &page)
		}); err != nil {
			tracing.TraceErr(span, err)
			return "", err
		}

		batch := make([]*models.Message, 0, len(page.Messages))
		for _, ref := range page.Messages {
			if seen[ref.ID] {
				continue
			}
			msg, err := s.fetchFullMessage(ctx, ref.ID)
			if err != nil {
				tracing.TraceErr(span, err)
				return "", err
			}
			seen[ref.ID] = true
			batch = append(batch, msg)
		}

		processed += len(batch)
		if len(batch) > 0 {
			events <- interfaces.SyncEvent{Type: interfaces.SyncEventNewMessages, Messages: batch}
		}
		events <- interfaces.SyncEvent{Type: interfaces.SyncEventProgress, Current: processed, Total: total}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	span.SetTag("messages.processed", processed)
	return profile.HistoryID, nil
}

// runIncrementalSync replays the change log since the stored cursor.
func (s *GmailService) runIncrementalSync(ctx context.Context, options interfaces.SyncOptions, events chan<- interfaces.SyncEvent) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailService.runIncrementalSync")
	defer span.Finish()
	tracing.TagComponentProvider(span)
	tracing.TagAccount(span, s.account.ID)
	span.SetTag("cursor", options.Cursor)

	seen := make(map[string]bool)
	cursor := options.Cursor
	pageToken := ""

	for {
		if ctx.Err() != nil {
			return "", apperrors.Wrap(apperrors.KindNetwork, ctx.Err(), "sync cancelled")
		}

		query := url.Values{}
		query.Set("startHistoryId", options.Cursor)
		query.Set("maxResults", strconv.Itoa(options.PageSize))
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}

		var page historyResponse
		if err := s.withPageRetry(ctx, func() error {
			return s.client.doJSON(ctx, "GET", "/history", query, nil, &page)
		}); err != nil {
			tracing.TraceErr(span, err)
			return "", err
		}
		if page.HistoryID != "" {
			cursor = page.HistoryID
		}

		var added, updated []*models.Message
		var deleted []string

		for _, record := range page.History {
			for _, m := range record.MessagesDeleted {
				deleted = append(deleted, m.Message.ID)
			}
			for _, m := range record.MessagesAdded {
				if seen[m.Message.ID] {
					continue
				}
				msg, err := s.fetchFullMessage(ctx, m.Message.ID)
				if err != nil {
					if apperrors.KindOf(err) == apperrors.KindInvalidRequest {
						// already purged remotely between listing and fetch
						continue
					}
					tracing.TraceErr(span, err)
					return "", err
				}
				seen[m.Message.ID] = true
				added = append(added, msg)
			}
			for _, change := range append(record.LabelsAdded, record.LabelsRemoved...) {
				if seen[change.Message.ID] {
					continue
				}
				msg, err := s.fetchFullMessage(ctx, change.Message.ID)
				if err != nil {
					if apperrors.KindOf(err) == apperrors.KindInvalidRequest {
						continue
					}
					tracing.TraceErr(span, err)
					return "", err
				}
				seen[change.Message.ID] = true
				updated = append(updated, msg)
			}
		}

		if len(added) > 0 {
			events <- interfaces.SyncEvent{Type: interfaces.SyncEventNewMessages, Messages: added}
		}
		if len(updated) > 0 {
			events <- interfaces.SyncEvent{Type: interfaces.SyncEventUpdatedMessages, Messages: updated}
		}
		if len(deleted) > 0 {
			events <- interfaces.SyncEvent{Type: interfaces.SyncEventDeletedMessages, DeletedIDs: deleted}
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	return cursor, nil
}

// withPageRetry retries a transiently failing page fetch a bounded
// number of times so one network blip does not abort a whole run.
func (s *GmailService) withPageRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < s.cfg.PageRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !apperrors.IsRetryable(err) || apperrors.KindOf(err) == apperrors.KindRateLimitExceeded {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(pageRetryDelay * time.Duration(attempt+1)):
		}
	}
	return err
}

func (s *GmailService) fetchFullMessage(ctx context.Context, id string) (*models.Message, error) {
	query := url.Values{}
	query.Set("format", "full")

	var wire wireMessage
	if err := s.withPageRetry(ctx, func() error {
		return s.client.doJSON(ctx, "GET", "/messages/"+id, query, nil, &wire)
	}); err != nil {
		return nil, err
	}
	return toCanonicalMessage(s.account.ID, &wire), nil
}

func (s *GmailService) SendEmail(ctx context.Context, draft *models.Draft) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailService.SendEmail")
	defer span.Finish()
	tracing.TagComponentProvider(span)
	tracing.TagAccount(span, s.account.ID)

	if err := s.sm.RequireConnected(); err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}

	raw := buildRFC822(s.account.Email, draft)
	req := sendRequest{Raw: base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(raw))}

	var sent wireRef
	if err := s.client.doJSON(ctx, "POST", "/messages/send", nil, req, &sent); err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}

	tracing.TagEntity(span, sent.ID)
	return sent.ID, nil
}

func (s *GmailService) MarkAsRead(ctx context.Context, messageIDs []string, read bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailService.MarkAsRead")
	defer span.Finish()
	tracing.TagComponentProvider(span)
	span.SetTag("count", len(messageIDs))

	if err := s.sm.RequireConnected(); err != nil {
		return err
	}
	if len(messageIDs) == 0 {
		return nil
	}

	req := batchModifyRequest{IDs: messageIDs}
	if read {
		req.RemoveLabelIDs = []string{labelUnread}
	} else {
		req.AddLabelIDs = []string{labelUnread}
	}

	if err := s.client.doJSON(ctx, "POST", "/messages/batchModify", nil, req, nil); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

// DeleteMessages moves messages to trash. Deleting an already trashed
// or purged message is treated as success.
func (s *GmailService) DeleteMessages(ctx context.Context, messageIDs []string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailService.DeleteMessages")
	defer span.Finish()
	tracing.TagComponentProvider(span)
	span.SetTag("count", len(messageIDs))

	if err := s.sm.RequireConnected(); err != nil {
		return err
	}

	for _, id := range messageIDs {
		err := s.client.doJSON(ctx, "POST", "/messages/"+id+"/trash", nil, nil, nil)
		if err != nil && apperrors.KindOf(err) != apperrors.KindInvalidRequest {
			tracing.TraceErr(span, err)
			return err
		}
	}
	return nil
}

func (s *GmailService) ArchiveMessages(ctx context.Context, messageIDs []string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailService.ArchiveMessages")
	defer span.Finish()
	tracing.TagComponentProvider(span)
	span.SetTag("count", len(messageIDs))

	if err := s.sm.RequireConnected(); err != nil {
		return err
	}
	if len(messageIDs) == 0 {
		return nil
	}

	req := batchModifyRequest{IDs: messageIDs, RemoveLabelIDs: []string{labelInbox}}
	if err := s.client.doJSON(ctx, "POST", "/messages/batchModify", nil, req, nil); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (s *GmailService) FetchMessageDetails(ctx context.Context, messageID string) (*models.Message, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailService.FetchMessageDetails")
	defer span.Finish()
	tracing.TagComponentProvider(span)
	tracing.TagEntity(span, messageID)

	if err := s.sm.RequireConnected(); err != nil {
		return nil, err
	}
	return s.fetchFullMessage(ctx, messageID)
}

func (s *GmailService) SearchMessages(ctx context.Context, query string, limit int) ([]*models.Message, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailService.SearchMessages")
	defer span.Finish()
	tracing.TagComponentProvider(span)

	if err := s.sm.RequireConnected(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.cfg.PageSize
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(limit))

	var page listResponse
	if err := s.client.doJSON(ctx, "GET", "/messages", params, nil, &page); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	results := make([]*models.Message, 0, len(page.Messages))
	for _, ref := range page.Messages {
		msg, err := s.fetchFullMessage(ctx, ref.ID)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
		results = append(results, msg)
	}
	return results, nil
}

func (s *GmailService) FetchLabels(ctx context.Context) ([]*models.Label, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailService.FetchLabels")
	defer span.Finish()
	tracing.TagComponentProvider(span)

	if err := s.sm.RequireConnected(); err != nil {
		return nil, err
	}

	var resp labelsResponse
	if err := s.client.doJSON(ctx, "GET", "/labels", nil, nil, &resp); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	return toCanonicalLabels(s.account.ID, resp.Labels), nil
}

func (s *GmailService) UpdateLabels(ctx context.Context, label *models.Label) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailService.UpdateLabels")
	defer span.Finish()
	tracing.TagComponentProvider(span)
	tracing.TagEntity(span, label.ID)

	if err := s.sm.RequireConnected(); err != nil {
		return err
	}

	visibility := "labelShow"
	if !label.Visible {
		visibility = "labelHide"
	}
	backendID := label.ProviderIDs.StringValue(enum.ProviderGmail.String())
	if backendID == "" {
		backendID = label.ID
	}
	req := patchLabelRequest{Name: label.Name, LabelListVisibility: visibility}
	if err := s.client.doJSON(ctx, "PATCH", "/labels/"+backendID, nil, req, nil); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

// buildRFC822 assembles a minimal outgoing message from a draft.
func buildRFC822(from string, draft *models.Draft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(draft.ToAddresses, ", "))
	if len(draft.CcAddresses) > 0 {
		fmt.Fprintf(&b, "Cc: %s\r\n", strings.Join(draft.CcAddresses, ", "))
	}
	if len(draft.BccAddresses) > 0 {
		fmt.Fprintf(&b, "Bcc: %s\r\n", strings.Join(draft.BccAddresses, ", "))
	}
	if draft.InReplyTo != "" {
		fmt.Fprintf(&b, "In-Reply-To: <%s>\r\n", draft.InReplyTo)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", draft.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(draft.BodyText)
	return b.String()
}
