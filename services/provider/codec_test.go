package provider

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBase64URLBody(t *testing.T) {
	payload := []byte("hello, world?>")

	// base64url with padding stripped
	stripped := base64.RawURLEncoding.EncodeToString(payload)
	decoded, err := DecodeBase64URLBody(stripped)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)

	// base64url with padding kept
	padded := base64.URLEncoding.EncodeToString(payload)
	decoded, err = DecodeBase64URLBody(padded)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)

	// plain standard base64
	std := base64.StdEncoding.EncodeToString(payload)
	decoded, err = DecodeBase64URLBody(std)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestParseAddress(t *testing.T) {
	address, name := ParseAddress(`"Alice Smith" <alice@example.com>`)
	assert.Equal(t, "alice@example.com", address)
	assert.Equal(t, "Alice Smith", name)

	address, name = ParseAddress("bob@example.com")
	assert.Equal(t, "bob@example.com", address)
	assert.Empty(t, name)

	// malformed input keeps the raw string
	address, name = ParseAddress("not an address")
	assert.Equal(t, "not an address", address)
	assert.Empty(t, name)

	address, _ = ParseAddress("")
	assert.Empty(t, address)
}

func TestParseAddressList(t *testing.T) {
	out := ParseAddressList("alice@example.com, Bob <bob@example.com>")
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, out)

	// malformed list falls back to comma splitting
	out = ParseAddressList("broken <<>, carol@example.com")
	assert.Equal(t, []string{"broken <<>", "carol@example.com"}, out)

	assert.Nil(t, ParseAddressList(""))
}

func TestParseDate(t *testing.T) {
	parsed := ParseDate("Mon, 02 Jan 2006 15:04:05 -0700")
	assert.Equal(t, 2006, parsed.Year())
	assert.Equal(t, time.UTC, parsed.Location())

	// malformed date falls back to now, never zero
	before := time.Now().UTC()
	fallback := ParseDate("not a date")
	assert.False(t, fallback.IsZero())
	assert.False(t, fallback.Before(before.Add(-time.Minute)))

	empty := ParseDate("")
	assert.False(t, empty.IsZero())
}
