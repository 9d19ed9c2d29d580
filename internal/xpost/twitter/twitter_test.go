package twitter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/extraviadosmx/fbpublisher/internal/xpost"
	"github.com/michimani/gotwi"
	uploadtypes "github.com/michimani/gotwi/media/upload/types"
	"github.com/michimani/gotwi/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnv_Missing(t *testing.T) {
	t.Setenv(envAPIKey, "key")
	t.Setenv(envAPISecret, "")
	t.Setenv(envAccessToken, "token")
	t.Setenv(envAccessSecret, " ")

	_, err := loadConfigFromEnv()

	var missing xpost.MissingEnvError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, providerName, missing.Provider)
	assert.Equal(t, []string{envAPISecret, envAccessSecret}, missing.Variables)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv(envAPIKey, "key")
	t.Setenv(envAPISecret, "secret")
	t.Setenv(envAccessToken, "token")
	t.Setenv(envAccessSecret, "token-secret")

	cfg, err := loadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, Config{APIKey: "key", APISecret: "secret", AccessToken: "token", AccessSecret: "token-secret"}, cfg)
}

func TestSniffMediaType(t *testing.T) {
	mediaType, err := sniffMediaType([]byte("\x89PNG\x0d\x0a\x1a\x0a\x00\x00\x00\x0dIHDR"))
	require.NoError(t, err)
	assert.Equal(t, uploadtypes.MediaTypePNG, mediaType)

	_, err = sniffMediaType([]byte("%PDF-1.7"))
	var validation xpost.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func fastPolling(t *testing.T) {
	t.Helper()
	orig := minPollInterval
	minPollInterval = time.Millisecond
	t.Cleanup(func() { minPollInterval = orig })
}

// statusSequence answers status polls with states in order, repeating the last.
func statusSequence(calls *int, states ...resources.ProcessingInfoState) func(context.Context, string) (resources.ProcessingInfo, error) {
	return func(_ context.Context, mediaID string) (resources.ProcessingInfo, error) {
		i := *calls
		*calls++
		if i >= len(states) {
			i = len(states) - 1
		}
		return resources.ProcessingInfo{State: states[i]}, nil
	}
}

func TestAwaitProcessing_PollsUntilSucceeded(t *testing.T) {
	fastPolling(t)
	var calls int
	c := &Client{status: statusSequence(&calls,
		resources.ProcessingInfoStateInProgress,
		resources.ProcessingInfoStateSucceeded,
	)}

	err := c.awaitProcessing(context.Background(), "123", resources.ProcessingInfo{State: resources.ProcessingInfoStatePending})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestAwaitProcessing_NoPollWhenReady(t *testing.T) {
	var calls int
	c := &Client{status: statusSequence(&calls, resources.ProcessingInfoStateSucceeded)}

	require.NoError(t, c.awaitProcessing(context.Background(), "123", resources.ProcessingInfo{}))
	require.NoError(t, c.awaitProcessing(context.Background(), "123", resources.ProcessingInfo{State: resources.ProcessingInfoStateSucceeded}))
	assert.Zero(t, calls)
}

func TestAwaitProcessing_Failed(t *testing.T) {
	fastPolling(t)
	var calls int
	c := &Client{status: statusSequence(&calls, resources.ProcessingInfoStateFailed)}

	err := c.awaitProcessing(context.Background(), "123", resources.ProcessingInfo{State: resources.ProcessingInfoStatePending})

	assert.ErrorContains(t, err, "state=failed")
	assert.Equal(t, 1, calls)
}

func TestAwaitProcessing_StopsWithContext(t *testing.T) {
	fastPolling(t)
	var calls int
	c := &Client{status: statusSequence(&calls, resources.ProcessingInfoStateInProgress)}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.awaitProcessing(ctx, "123", resources.ProcessingInfo{State: resources.ProcessingInfoStateInProgress})

	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Positive(t, calls)
}

func TestMediaStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/2/media/upload" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("command"); got != "STATUS" {
			t.Errorf("command = %q", got)
		}
		if got := r.URL.Query().Get("media_id"); got != "1880028106020515840" {
			t.Errorf("media_id = %q", got)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "OAuth ") {
			t.Errorf("request is not OAuth 1.0a signed")
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data":{"id":"1880028106020515840","processing_info":{"state":"in_progress","check_after_secs":3,"progress_percent":40}}}`)
	}))
	defer server.Close()

	orig := statusEndpoint
	statusEndpoint = server.URL + "/2/media/upload"
	t.Cleanup(func() { statusEndpoint = orig })

	api, err := gotwi.NewClient(&gotwi.NewClientInput{
		HTTPClient:           server.Client(),
		AuthenticationMethod: gotwi.AuthenMethodOAuth1UserContext,
		OAuthToken:           "token",
		OAuthTokenSecret:     "token-secret",
		APIKey:               "key",
		APIKeySecret:         "secret",
	})
	require.NoError(t, err)

	info, err := (&Client{api: api}).mediaStatus(context.Background(), "1880028106020515840")
	require.NoError(t, err)
	assert.Equal(t, resources.ProcessingInfoStateInProgress, info.State)
	assert.Equal(t, 3, info.CheckAfterSecs)
	assert.Equal(t, 40, info.ProgressPercent)
}
