package xpost

import (
	"strings"
	"testing"

	"github.com/rivo/uniseg"
	"github.com/stretchr/testify/assert"
)

func TestCompose(t *testing.T) {
	link := "https://extraviados.mx/jane-doe/"

	assert.Equal(t, "hola\n\n"+link, Compose("hola ", link, 300))
	assert.Equal(t, "hola", Compose("hola", "", 300))
	assert.Equal(t, link, Compose("", link, 300))

	long := strings.Repeat("¡Ayúdanos a encontrarla! 🇲🇽 ", 40)
	out := Compose(long, link, 300)
	assert.Equal(t, 300, uniseg.GraphemeClusterCount(out))
	assert.True(t, strings.HasSuffix(out, "…\n\n"+link))

	assert.Equal(t, strings.TrimSpace(long)+"\n\n"+link, Compose(long, link, 0))
	assert.Equal(t, "hola\n\n"+link, Compose("\n hola \t", link, 0))
}

func TestCompose_LinkLongerThanLimit(t *testing.T) {
	assert.Equal(t, "https://extraviados.mx/jane-doe/", Compose("message", "https://extraviados.mx/jane-doe/", 10))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "🇲🇽🇲🇽", Truncate("🇲🇽🇲🇽🇲🇽", 2))
	assert.Equal(t, "abc", Truncate("abc   def", 5))
}
