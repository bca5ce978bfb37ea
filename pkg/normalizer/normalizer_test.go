package normalizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeControlChars(t *testing.T) {
	in := "hello\x00world\x01\x02 again\uFEFF"
	out := Normalize(in, 0)
	assert.Equal(t, "helloworld again", out)
}

func TestNormalizeKeepsTabAndNewline(t *testing.T) {
	in := "a\tb\nc"
	assert.Equal(t, in, Normalize(in, 0))
}

func TestNormalizeCRLF(t *testing.T) {
	out := Normalize("line1\r\nline2\rline3", 0)
	assert.Equal(t, "line1\nline2\nline3", out)
}

func TestNormalizeCollapseNewlines(t *testing.T) {
	out := Normalize("a\n\n\n\n\n\nb", 0)
	assert.Equal(t, "a\n\n\nb", out)

	// 3个换行不压缩
	out = Normalize("a\n\n\nb", 0)
	assert.Equal(t, "a\n\n\nb", out)
}

func TestNormalizeClamp(t *testing.T) {
	in := strings.Repeat("x", 500)
	out := Normalize(in, 100)
	assert.Equal(t, 100, len([]rune(out)))
}

func TestNormalizeIdempotent(t *testing.T) {
	in := "  title\r\n\r\n\r\n\r\nbody\x00 text\t\n  "
	once := Normalize(in, 0)
	twice := Normalize(once, 0)
	assert.Equal(t, once, twice)
}
