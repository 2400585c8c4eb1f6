package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmailSubject(t *testing.T) {
	assert.Equal(t, "Quarterly report", NormalizeEmailSubject("Quarterly report"))
	assert.Equal(t, "Quarterly report", NormalizeEmailSubject("Re: Quarterly report"))
	assert.Equal(t, "Quarterly report", NormalizeEmailSubject("RE: re: Quarterly report"))
	assert.Equal(t, "Quarterly report", NormalizeEmailSubject("Fwd: Re: Quarterly report"))
	assert.Equal(t, "Quarterly report", NormalizeEmailSubject("Re[2]: Quarterly report"))
	assert.Equal(t, "Quarterly report", NormalizeEmailSubject("  Quarterly report  "))
	assert.Equal(t, "", NormalizeEmailSubject("Re:"))
	assert.Equal(t, "Rewrite the parser", NormalizeEmailSubject("Rewrite the parser"), "Re prefix requires a colon")
}

func TestNormalizeMessageID(t *testing.T) {
	assert.Equal(t, "abc@host", NormalizeMessageID("<abc@host>"))
	assert.Equal(t, "abc@host", NormalizeMessageID(" abc@host "))
	assert.Equal(t, "abc@host", NormalizeMessageID("abc@host"))
	assert.Equal(t, "", NormalizeMessageID(""))
}
