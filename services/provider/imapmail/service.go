package imapmail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"sort"
	"strconv"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
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
	defaultFolder    = "INBOX"
	defaultBatchSize = 50
	dialTimeout      = 30 * time.Second
	logoutTimeout    = 5 * time.Second
)

type Config struct {
	Folder    string
	BatchSize int
}

// IMAPMailService is the store-and-forward adapter. Listing, fetching
// and flag operations run over the IMAP session; outbound mail goes
// through the account's submission server.
type IMAPMailService struct {
	account *models.Account
	creds   interfaces.CredentialProvider
	sm      *provider.StateMachine
	log     logger.Logger
	cfg     Config

	client *client.Client
}

func NewIMAPMailService(account *models.Account, creds interfaces.CredentialProvider, log logger.Logger, cfg Config) *IMAPMailService {
	if cfg.Folder == "" {
		cfg.Folder = defaultFolder
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &IMAPMailService{
		account: account,
		creds:   creds,
		sm:      provider.NewStateMachine(),
		log:     log,
		cfg:     cfg,
	}
}

func (s *IMAPMailService) Kind() enum.ProviderKind {
	return enum.ProviderIMAP
}

func (s *IMAPMailService) State() enum.ConnectionState {
	return s.sm.State()
}

func (s *IMAPMailService) Connect(ctx context.Context, account *models.Account) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPMailService.Connect")
	defer span.Finish()
	tracing.TagComponentProvider(span)
	tracing.TagAccount(span, account.ID)
	span.SetTag("server", account.ImapServer)

	if err := s.sm.BeginConnect(); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	password, err := s.creds.Token(ctx, account)
	if err != nil {
		s.sm.ConnectFailed()
		tracing.TraceErr(span, err)
		return apperrors.Wrap(apperrors.KindAuthentication, err, "no credentials for account")
	}

	serverAddr := fmt.Sprintf("%s:%d", account.ImapServer, account.ImapPort)
	dialer := &net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}

	var c *client.Client
	if account.ImapTLS {
		c, err = client.DialWithDialerTLS(dialer, serverAddr, &tls.Config{ServerName: account.ImapServer})
	} else {
		c, err = client.DialWithDialer(dialer, serverAddr)
	}
	if err != nil {
		s.sm.ConnectFailed()
		tracing.TraceErr(span, err)
		return apperrors.Wrap(apperrors.KindNetwork, err, fmt.Sprintf("failed to connect to %s", serverAddr))
	}

	c.Timeout = dialTimeout
	if err := c.Login(account.ImapUsername, password); err != nil {
		c.Logout()
		s.sm.ConnectFailed()
		tracing.TraceErr(span, err)
		return apperrors.Wrap(apperrors.KindAuthentication, err, fmt.Sprintf("failed to login as %s", account.ImapUsername))
	}
	c.Timeout = 0 // no timeout for normal operations

	s.client = c
	s.sm.ConnectSucceeded()
	s.log.Infof("[%s] connected and logged in to %s", account.ID, serverAddr)
	return nil
}

// Disconnect logs out best-effort with a bounded wait; local state
// reaches disconnected even when the remote teardown hangs or fails.
func (s *IMAPMailService) Disconnect(ctx context.Context) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "IMAPMailService.Disconnect")
	defer span.Finish()
	tracing.TagComponentProvider(span)

	defer s.sm.Disconnected()

	c := s.client
	s.client = nil
	if c == nil {
		return nil
	}

	c.Timeout = logoutTimeout
	done := make(chan error, 1)
	go func() {
		done <- c.Logout()
		close(done)
	}()

	select {
	case err := <-done:
		if err != nil {
			s.log.Warnf("[%s] error during logout: %v", s.account.ID, err)
			tracing.TraceErr(span, err)
		}
	case <-time.After(logoutTimeout):
		s.log.Warnf("[%s] logout timed out", s.account.ID)
		span.SetTag("timeout", true)
	}
	return nil
}

func (s *IMAPMailService) SyncEmails(ctx context.Context, options interfaces.SyncOptions) (<-chan interfaces.SyncEvent, error) {
	if err := s.sm.RequireConnected(); err != nil {
		return nil, err
	}
	if options.PageSize <= 0 {
		options.PageSize = s.cfg.BatchSize
	}

	events := make(chan interfaces.SyncEvent, 16)
	go func() {
		defer close(events)
		events <- interfaces.SyncEvent{Type: interfaces.SyncEventStarted}

		cursor, err := s.runSync(ctx, options, events)
		if err != nil {
			events <- interfaces.SyncEvent{Type: interfaces.SyncEventError, Err: err}
			return
		}
		events <- interfaces.SyncEvent{Type: interfaces.SyncEventCompleted, Cursor: cursor}
	}()
	return events, nil
}

// runSync lists UIDs past the cursor (or everything on a full run) and
// fetches them newest-first in bounded batches.
func (s *IMAPMailService) runSync(ctx context.Context, options interfaces.SyncOptions, events chan<- interfaces.SyncEvent) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPMailService.runSync")
	defer span.Finish()
	tracing.TagComponentProvider(span)
	tracing.TagAccount(span, s.account.ID)
	span.SetTag("folder", s.cfg.Folder)
	span.SetTag("mode", options.Mode.String())

	if _, err := s.client.Select(s.cfg.Folder, false); err != nil {
		tracing.TraceErr(span, err)
		return "", apperrors.Wrap(apperrors.KindNetwork, err, fmt.Sprintf("error selecting folder %s", s.cfg.Folder))
	}

	criteria := imap.NewSearchCriteria()
	lastUID := parseCursor(options.Cursor)
	if options.Mode == enum.SyncModeIncremental && lastUID > 0 {
		uidRange := new(imap.SeqSet)
		uidRange.AddRange(lastUID+1, 0)
		criteria.Uid = uidRange
	}

	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", apperrors.Wrap(apperrors.KindNetwork, err, "error searching messages")
	}
	if len(uids) == 0 {
		return options.Cursor, nil
	}

	// Newest first, matching the order REST backends return pages in
	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })

	highestUID := lastUID
	for _, uid := range uids {
		if uid > highestUID {
			highestUID = uid
		}
	}

	processed := 0
	seen := make(map[uint32]bool)

	for start := 0; start < len(uids); start += options.PageSize {
		if ctx.Err() != nil {
			return "", apperrors.Wrap(apperrors.KindNetwork, ctx.Err(), "sync cancelled")
		}

		end := start + options.PageSize
		if end > len(uids) {
			end = len(uids)
		}

		seqSet := new(imap.SeqSet)
		for _, uid := range uids[start:end] {
			if !seen[uid] {
				seqSet.AddNum(uid)
			}
		}

		batch, err := s.fetchBatch(seqSet)
		if err != nil {
			tracing.TraceErr(span, err)
			return "", err
		}
		for _, uid := range uids[start:end] {
			seen[uid] = true
		}

		processed += len(batch)
		if len(batch) > 0 {
			events <- interfaces.SyncEvent{Type: interfaces.SyncEventNewMessages, Messages: batch}
		}
		events <- interfaces.SyncEvent{Type: interfaces.SyncEventProgress, Current: processed, Total: len(uids)}
	}

	span.SetTag("messages.processed", processed)
	return formatUID(highestUID), nil
}

func (s *IMAPMailService) fetchBatch(seqSet *imap.SeqSet) ([]*models.Message, error) {
	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchUid,
		imap.FetchRFC822Size,
		imap.FetchRFC822,
	}

	messages := make(chan *imap.Message, s.cfg.BatchSize)
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqSet, items, messages)
	}()

	var out []*models.Message
	for msg := range messages {
		var raw []byte
		for section, literal := range msg.Body {
			if section.Specifier == imap.EntireSpecifier && literal != nil {
				buf := new(bytes.Buffer)
				if _, err := buf.ReadFrom(literal); err == nil {
					raw = buf.Bytes()
				}
				break
			}
		}
		out = append(out, toCanonicalMessage(s.account.ID, s.cfg.Folder, msg, raw))
	}

	if err := <-done; err != nil {
		return nil, apperrors.Wrap(apperrors.KindNetwork, err, "error fetching messages")
	}
	return out, nil
}

// SendEmail relays the draft through the account's SMTP submission
// server, then returns the draft id as the provisional message id.
func (s *IMAPMailService) SendEmail(ctx context.Context, draft *models.Draft) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPMailService.SendEmail")
	defer span.Finish()
	tracing.TagComponentProvider(span)
	tracing.TagAccount(span, s.account.ID)

	if err := s.sm.RequireConnected(); err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}

	password, err := s.creds.Token(ctx, s.account)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", apperrors.Wrap(apperrors.KindAuthentication, err, "no credentials for account")
	}

	recipients := make([]string, 0, len(draft.ToAddresses)+len(draft.CcAddresses)+len(draft.BccAddresses))
	recipients = append(recipients, draft.ToAddresses...)
	recipients = append(recipients, draft.CcAddresses...)
	recipients = append(recipients, draft.BccAddresses...)

	message := buildOutgoing(s.account.Email, draft)
	addr := fmt.Sprintf("%s:%d", s.account.SmtpServer, s.account.SmtpPort)
	auth := smtp.PlainAuth("", s.account.ImapUsername, password, s.account.SmtpServer)

	if err := smtp.SendMail(addr, auth, s.account.Email, recipients, message); err != nil {
		tracing.TraceErr(span, err)
		return "", apperrors.Wrap(apperrors.KindNetwork, err, "smtp send failed")
	}

	return draft.ID, nil
}

func (s *IMAPMailService) MarkAsRead(ctx context.Context, messageIDs []string, read bool) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "IMAPMailService.MarkAsRead")
	defer span.Finish()
	tracing.TagComponentProvider(span)
	span.SetTag("count", len(messageIDs))

	seqSet, err := s.uidSet(messageIDs)
	if err != nil {
		return err
	}
	if seqSet == nil {
		return nil
	}

	op := imap.FormatFlagsOp(imap.AddFlags, true)
	if !read {
		op = imap.FormatFlagsOp(imap.RemoveFlags, true)
	}
	if err := s.storeFlags(seqSet, op, []interface{}{imap.SeenFlag}); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (s *IMAPMailService) DeleteMessages(ctx context.Context, messageIDs []string) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "IMAPMailService.DeleteMessages")
	defer span.Finish()
	tracing.TagComponentProvider(span)
	span.SetTag("count", len(messageIDs))

	seqSet, err := s.uidSet(messageIDs)
	if err != nil {
		return err
	}
	if seqSet == nil {
		return nil
	}

	op := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := s.storeFlags(seqSet, op, []interface{}{imap.DeletedFlag}); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if err := s.client.Expunge(nil); err != nil {
		tracing.TraceErr(span, err)
		return apperrors.Wrap(apperrors.KindNetwork, err, "expunge failed")
	}
	return nil
}

// ArchiveMessages copies to the archive folder and removes from the
// source folder. Running it again on the same ids is a no-op because
// the UIDs no longer resolve.
func (s *IMAPMailService) ArchiveMessages(ctx context.Context, messageIDs []string) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "IMAPMailService.ArchiveMessages")
	defer span.Finish()
	tracing.TagComponentProvider(span)
	span.SetTag("count", len(messageIDs))

	seqSet, err := s.uidSet(messageIDs)
	if err != nil {
		return err
	}
	if seqSet == nil {
		return nil
	}

	if err := s.client.UidCopy(seqSet, "Archive"); err != nil {
		tracing.TraceErr(span, err)
		return apperrors.Wrap(apperrors.KindNetwork, err, "copy to archive failed")
	}

	op := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := s.storeFlags(seqSet, op, []interface{}{imap.DeletedFlag}); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if err := s.client.Expunge(nil); err != nil {
		tracing.TraceErr(span, err)
		return apperrors.Wrap(apperrors.KindNetwork, err, "expunge failed")
	}
	return nil
}

func (s *IMAPMailService) FetchMessageDetails(ctx context.Context, messageID string) (*models.Message, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "IMAPMailService.FetchMessageDetails")
	defer span.Finish()
	tracing.TagComponentProvider(span)
	tracing.TagEntity(span, messageID)

	seqSet, err := s.uidSet([]string{messageID})
	if err != nil {
		return nil, err
	}
	if seqSet == nil {
		return nil, apperrors.New(apperrors.KindInvalidRequest, "message id is not a uid")
	}

	batch, err := s.fetchBatch(seqSet)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if len(batch) == 0 {
		return nil, apperrors.New(apperrors.KindInvalidRequest, fmt.Sprintf("message %s not found", messageID))
	}
	return batch[0], nil
}

func (s *IMAPMailService) SearchMessages(ctx context.Context, query string, limit int) ([]*models.Message, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "IMAPMailService.SearchMessages")
	defer span.Finish()
	tracing.TagComponentProvider(span)

	if err := s.sm.RequireConnected(); err != nil {
		return nil, err
	}

	criteria := imap.NewSearchCriteria()
	criteria.Text = []string{query}

	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, apperrors.Wrap(apperrors.KindNetwork, err, "search failed")
	}
	if len(uids) == 0 {
		return nil, nil
	}

	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	if limit > 0 && len(uids) > limit {
		uids = uids[:limit]
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)
	return s.fetchBatch(seqSet)
}

// FetchLabels reports an empty set: this backend has flat folders, not
// a label hierarchy.
func (s *IMAPMailService) FetchLabels(ctx context.Context) ([]*models.Label, error) {
	if err := s.sm.RequireConnected(); err != nil {
		return nil, err
	}
	return []*models.Label{}, nil
}

func (s *IMAPMailService) UpdateLabels(ctx context.Context, label *models.Label) error {
	return apperrors.New(apperrors.KindUnsupportedOperation, "backend does not support label updates")
}

func (s *IMAPMailService) storeFlags(seqSet *imap.SeqSet, op imap.StoreItem, flags []interface{}) error {
	if err := s.sm.RequireConnected(); err != nil {
		return err
	}
	if err := s.client.UidStore(seqSet, op, flags, nil); err != nil {
		return apperrors.Wrap(apperrors.KindNetwork, err, "flag store failed")
	}
	return nil
}

// uidSet converts canonical message ids back to a UID set. Canonical
// ids for this backend are UID strings; anything else is skipped
// rather than failing the whole call.
func (s *IMAPMailService) uidSet(messageIDs []string) (*imap.SeqSet, error) {
	if err := s.sm.RequireConnected(); err != nil {
		return nil, err
	}
	seqSet := new(imap.SeqSet)
	added := false
	for _, id := range messageIDs {
		if uid := parseCursor(id); uid > 0 {
			seqSet.AddNum(uid)
			added = true
		}
	}
	if !added {
		return nil, nil
	}
	return seqSet, nil
}

func parseCursor(cursor string) uint32 {
	if cursor == "" {
		return 0
	}
	uid, err := strconv.ParseUint(cursor, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(uid)
}

func formatUID(uid uint32) string {
	return strconv.FormatUint(uint64(uid), 10)
}

func buildOutgoing(from string, draft *models.Draft) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", joinAddresses(draft.ToAddresses))
	if len(draft.CcAddresses) > 0 {
		fmt.Fprintf(&b, "Cc: %s\r\n", joinAddresses(draft.CcAddresses))
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
	return b.Bytes()
}

func joinAddresses(addresses []string) string {
	out := ""
	for i, a := range addresses {
		if i > 0 {
			out += ", "
		}
		out += a
	}
	return out
}
