package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveSnippet(t *testing.T) {
	assert.Equal(t, "plain wins", DeriveSnippet("plain wins", "<p>html loses</p>"))
	assert.Equal(t, "from html", DeriveSnippet("", "<p>from html</p>"))
	assert.Equal(t, "", DeriveSnippet("", ""))
	assert.Equal(t, "one two three", DeriveSnippet("one \n\t two\n\nthree", ""))
}

func TestDeriveSnippet_TruncatesLongBodies(t *testing.T) {
	long := strings.Repeat("x", 500)
	snippet := DeriveSnippet(long, "")
	assert.Len(t, []rune(snippet), snippetMaxRunes)
}

func TestHTMLToText_StripsScriptAndStyle(t *testing.T) {
	html := `<html><head><style>body{color:red}</style></head>` +
		`<body><script>alert(1)</script><p>visible text</p></body></html>`
	assert.Equal(t, "visible text", HTMLToText(html))
}

func TestTruncateAtRune(t *testing.T) {
	assert.Equal(t, "short", TruncateAtRune("short", 10))
	assert.Equal(t, "abc", TruncateAtRune("abcdef", 3))
	assert.Equal(t, "hél", TruncateAtRune("héllo", 3), "multibyte runes stay intact")
	assert.Equal(t, "", TruncateAtRune("", 5))
}
