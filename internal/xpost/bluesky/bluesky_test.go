package bluesky

import (
	"strings"
	"testing"
	"time"

	"github.com/extraviadosmx/fbpublisher/internal/xpost"
	"github.com/rivo/uniseg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPost_LinkFacet(t *testing.T) {
	link := "https://extraviados.mx/jane-doe/"
	req := xpost.Request{
		Message: strings.Repeat("Ayúdanos a encontrar a Jane Doe. ", 20),
		Link:    link,
	}
	now := time.Date(2024, 1, 15, 16, 30, 0, 0, time.UTC)

	post := buildPost(req, now)

	assert.Equal(t, "2024-01-15T16:30:00Z", post.CreatedAt)
	assert.LessOrEqual(t, uniseg.GraphemeClusterCount(post.Text), postLimit)
	require.Len(t, post.Facets, 1)

	facet := post.Facets[0]
	assert.Equal(t, link, post.Text[facet.Index.ByteStart:facet.Index.ByteEnd])
	require.Len(t, facet.Features, 1)
	require.NotNil(t, facet.Features[0].RichtextFacet_Link)
	assert.Equal(t, link, facet.Features[0].RichtextFacet_Link.Uri)
}

func TestBuildPost_NoLink(t *testing.T) {
	post := buildPost(xpost.Request{Message: "hola"}, time.Now())

	assert.Equal(t, "hola", post.Text)
	assert.Empty(t, post.Facets)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv(envHandle, "extraviados.bsky.social")
	t.Setenv(envAppPassword, "app-pass")
	t.Setenv(envPDSURL, "")

	cfg, err := loadConfig(Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPDSURL, cfg.PDSURL)

	cfg, err = loadConfig(Config{PDSURL: "https://pds.example.org"})
	require.NoError(t, err)
	assert.Equal(t, "https://pds.example.org", cfg.PDSURL)
}

func TestLoadConfig_Missing(t *testing.T) {
	t.Setenv(envHandle, "")
	t.Setenv(envAppPassword, "")

	_, err := loadConfig(Config{})

	var missing xpost.MissingEnvError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{envHandle, envAppPassword}, missing.Variables)
}
