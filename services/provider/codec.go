package provider

import (
	"encoding/base64"
	"net/mail"
	"strings"
	"time"
)

// NormalizeBase64URL converts base64url input, padded or not, into
// standard padded base64 so it decodes with the stdlib decoder.
func NormalizeBase64URL(data string) string {
	data = strings.ReplaceAll(data, "-", "+")
	data = strings.ReplaceAll(data, "_", "/")
	switch len(data) % 4 {
	case 2:
		data += "=="
	case 3:
		data += "="
	}
	return data
}

// DecodeBase64URLBody decodes a backend body in either base64url or
// standard base64 form.
func DecodeBase64URLBody(data string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(NormalizeBase64URL(data))
}

// ParseAddress splits an RFC 5322 address into address and display
// name. A malformed input keeps the raw string as the address.
func ParseAddress(raw string) (address, name string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}
	parsed, err := mail.ParseAddress(raw)
	if err != nil {
		return raw, ""
	}
	return parsed.Address, parsed.Name
}

// ParseAddressList tolerantly splits a header value carrying multiple
// addresses. Malformed members are kept verbatim rather than dropped.
func ParseAddressList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parsed, err := mail.ParseAddressList(raw)
	if err != nil {
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	out := make([]string, 0, len(parsed))
	for _, a := range parsed {
		out = append(out, a.Address)
	}
	return out
}

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC3339,
}

// ParseDate parses the common mail date formats. A missing or
// malformed date falls back to now, never a zero time.
func ParseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now().UTC()
	}
	if t, err := mail.ParseDate(raw); err == nil {
		return t.UTC()
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
