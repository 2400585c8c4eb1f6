package imapmail

import (
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxd/inboxd/internal/models"
)

func TestParseCursor(t *testing.T) {
	assert.Equal(t, uint32(0), parseCursor(""))
	assert.Equal(t, uint32(0), parseCursor("not-a-uid"))
	assert.Equal(t, uint32(0), parseCursor("<abc@host>"))
	assert.Equal(t, uint32(42), parseCursor("42"))
	assert.Equal(t, uint32(4294967295), parseCursor("4294967295"))
	assert.Equal(t, uint32(0), parseCursor("4294967296"), "values past uint32 are rejected")
}

func TestFormatUID_RoundTrips(t *testing.T) {
	for _, uid := range []uint32{1, 42, 4294967295} {
		assert.Equal(t, uid, parseCursor(formatUID(uid)))
	}
}

func TestBuildOutgoing(t *testing.T) {
	draft := &models.Draft{
		ToAddresses: pq.StringArray{"bob@example.com", "carol@example.com"},
		CcAddresses: pq.StringArray{"dave@example.com"},
		InReplyTo:   "orig@example.com",
		Subject:     "Status update",
		BodyText:    "All green.",
	}

	raw := string(buildOutgoing("alice@example.com", draft))

	assert.Contains(t, raw, "From: alice@example.com\r\n")
	assert.Contains(t, raw, "To: bob@example.com, carol@example.com\r\n")
	assert.Contains(t, raw, "Cc: dave@example.com\r\n")
	assert.Contains(t, raw, "In-Reply-To: <orig@example.com>\r\n")
	assert.Contains(t, raw, "Subject: Status update\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nAll green."), "body follows the blank line")

	headerEnd := strings.Index(raw, "\r\n\r\n")
	assert.Greater(t, headerEnd, 0)
	assert.NotContains(t, raw[headerEnd:], "Cc: dave", "addresses stay in the header block")
}

func TestBuildOutgoing_OmitsEmptyOptionalHeaders(t *testing.T) {
	draft := &models.Draft{
		ToAddresses: pq.StringArray{"bob@example.com"},
		Subject:     "Hello",
		BodyText:    "hi",
	}

	raw := string(buildOutgoing("alice@example.com", draft))

	assert.NotContains(t, raw, "Cc:")
	assert.NotContains(t, raw, "In-Reply-To:")
}

func TestToCanonicalMessage_KeepsUIDAsID(t *testing.T) {
	raw := "Message-Id: <abc123@mail.example.com>\r\n" +
		"From: alice@example.com\r\n" +
		"Subject: Hello\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" +
		"body text"
	fetched := &imap.Message{
		Uid:   77,
		Flags: []string{imap.SeenFlag},
		Envelope: &imap.Envelope{
			Subject: "Hello",
			Date:    time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
			From:    []*imap.Address{{MailboxName: "alice", HostName: "example.com"}},
			To:      []*imap.Address{{MailboxName: "bob", HostName: "example.com"}},
		},
	}

	out := toCanonicalMessage("acct_1", "INBOX", fetched, []byte(raw))
	require.NotNil(t, out)

	assert.Equal(t, "77", out.ID, "id stays mappable back to the backend UID")
	assert.Equal(t, uint32(77), parseCursor(out.ID))
	assert.Equal(t, "abc123@mail.example.com", out.InternetMessageID)
	assert.Equal(t, "body text", out.BodyText)
	assert.True(t, out.IsRead)
}

func TestToCanonicalMessage_MessageIDFallbackWithoutUID(t *testing.T) {
	raw := "Message-Id: <abc123@mail.example.com>\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" +
		"body"
	fetched := &imap.Message{}

	out := toCanonicalMessage("acct_1", "INBOX", fetched, []byte(raw))
	assert.Equal(t, "abc123@mail.example.com", out.ID)
	assert.Equal(t, models.UnknownSender, out.FromAddress)
}

func TestJoinAddresses(t *testing.T) {
	assert.Equal(t, "", joinAddresses(nil))
	assert.Equal(t, "a@x.com", joinAddresses([]string{"a@x.com"}))
	assert.Equal(t, "a@x.com, b@y.com", joinAddresses([]string{"a@x.com", "b@y.com"}))
}
