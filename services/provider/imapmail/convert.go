package imapmail

import (
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/jhillyerd/enmime"

	"github.com/inboxd/inboxd/internal/enum"
	"github.com/inboxd/inboxd/internal/models"
	"github.com/inboxd/inboxd/internal/utils"
)

// toCanonicalMessage builds the canonical model from a fetched IMAP
// message. The canonical id is the backend UID, so flag and delete
// commands can map it back to the remote message; the Message-Id
// header goes into InternetMessageID. The raw body, when fetched, is
// parsed with enmime, which already walks multipart trees depth-first
// and keeps the first matching part per content type.
func toCanonicalMessage(accountID, folder string, msg *imap.Message, raw []byte) *models.Message {
	out := &models.Message{
		AccountID: accountID,
		Provider:  enum.ProviderIMAP,
		LabelIDs:  []string{folder},
		Size:      int64(msg.Size),
		SentAt:    time.Now().UTC(),
	}

	if msg.Uid > 0 {
		out.ID = formatUID(msg.Uid)
	}

	if env := msg.Envelope; env != nil {
		out.Subject = env.Subject
		if !env.Date.IsZero() {
			out.SentAt = env.Date.UTC()
		}
		out.FromAddress, out.FromName = firstAddress(env.From)
		out.ToAddresses = addressList(env.To)
		out.CcAddresses = addressList(env.Cc)
		out.BccAddresses = addressList(env.Bcc)
	}
	if out.FromAddress == "" {
		out.FromAddress = models.UnknownSender
	}

	for _, flag := range msg.Flags {
		switch flag {
		case imap.SeenFlag:
			out.IsRead = true
		case imap.FlaggedFlag:
			out.IsStarred = true
		case imap.DeletedFlag:
			out.IsDeleted = true
		case imap.DraftFlag:
			out.IsDraft = true
		case imap.AnsweredFlag:
			out.IsAnswered = true
		}
	}

	if len(raw) > 0 {
		if envelope, err := enmime.ReadEnvelope(strings.NewReader(string(raw))); err == nil {
			out.BodyText = envelope.Text
			out.BodyHTML = envelope.HTML
			if id := envelope.GetHeader("Message-Id"); id != "" {
				out.InternetMessageID = utils.NormalizeMessageID(id)
			}
		}
	}

	// only when the server returned no UID at all
	if out.ID == "" {
		out.ID = out.InternetMessageID
	}

	out.Snippet = utils.DeriveSnippet(out.BodyText, out.BodyHTML)
	return out
}

func firstAddress(addresses []*imap.Address) (address, name string) {
	for _, a := range addresses {
		if a == nil {
			continue
		}
		return a.Address(), a.PersonalName
	}
	return "", ""
}

func addressList(addresses []*imap.Address) []string {
	out := make([]string, 0, len(addresses))
	for _, a := range addresses {
		if a == nil {
			continue
		}
		out = append(out, a.Address())
	}
	return out
}
