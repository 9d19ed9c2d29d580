package twitter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/extraviadosmx/fbpublisher/internal/logutil"
	"github.com/extraviadosmx/fbpublisher/internal/xpost"
	"github.com/michimani/gotwi"
	"github.com/michimani/gotwi/media/upload"
	uploadtypes "github.com/michimani/gotwi/media/upload/types"
	"github.com/michimani/gotwi/resources"
	"github.com/michimani/gotwi/tweet/managetweet"
	managetweettypes "github.com/michimani/gotwi/tweet/managetweet/types"
)

const (
	envAPIKey       = "FBPUBLISHER_TWITTER_CONSUMER_KEY"
	envAPISecret    = "FBPUBLISHER_TWITTER_CONSUMER_SECRET"
	envAccessToken  = "FBPUBLISHER_TWITTER_ACCESS_TOKEN"
	envAccessSecret = "FBPUBLISHER_TWITTER_ACCESS_TOKEN_SECRET"

	providerName = "twitter"
	httpTimeout  = 30 * time.Second

	// processingTimeout bounds how long an uploaded poster may stay in
	// processing before the mirror gives up.
	processingTimeout = 2 * time.Minute

	// tweetLimit is applied to graphemes; X weighs links as 23 characters,
	// so counting the full link keeps us under the real limit.
	tweetLimit = 280
)

var (
	statusEndpoint  = "https://api.x.com/2/media/upload"
	minPollInterval = time.Second
)

// Config captures the credentials required for OAuth 1.0a user-context requests.
type Config struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
}

// Client mirrors posters to an X (Twitter) account.
type Client struct {
	api    *gotwi.Client
	status func(ctx context.Context, mediaID string) (resources.ProcessingInfo, error)
}

// New constructs an X poster from FBPUBLISHER_TWITTER_* credentials.
func New(ctx context.Context) (xpost.Poster, error) {
	cfg, err := loadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	client, err := gotwi.NewClient(&gotwi.NewClientInput{
		HTTPClient:           &http.Client{Timeout: httpTimeout},
		AuthenticationMethod: gotwi.AuthenMethodOAuth1UserContext,
		OAuthToken:           cfg.AccessToken,
		OAuthTokenSecret:     cfg.AccessSecret,
		APIKey:               cfg.APIKey,
		APIKeySecret:         cfg.APISecret,
		Debug:                logutil.Verbose(),
	})
	if err != nil {
		return nil, fmt.Errorf("create X client: %w", err)
	}
	if !client.IsReady() {
		return nil, errors.New("twitter client not ready")
	}

	c := &Client{api: client}
	c.status = c.mediaStatus
	return c, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string { return providerName }

// Post tweets the shortened message with the record link and the poster.
func (c *Client) Post(ctx context.Context, req xpost.Request) error {
	input := &managetweettypes.CreateInput{
		Text: gotwi.String(xpost.Compose(req.Message, req.Link, tweetLimit)),
	}

	if req.HasImage() {
		mediaID, err := c.uploadImage(ctx, req.Image)
		if err != nil {
			return err
		}
		input.Media = &managetweettypes.CreateInputMedia{MediaIDs: []string{mediaID}}
	}

	if _, err := managetweet.Create(ctx, c.api, input); err != nil {
		return fmt.Errorf("post tweet: %w", describe(err))
	}
	logutil.Debugf("tweet posted")
	return nil
}

// uploadImage runs the chunked upload in a single segment; posters are far
// below the 5MB image limit.
func (c *Client) uploadImage(ctx context.Context, data []byte) (string, error) {
	mediaType, err := sniffMediaType(data)
	if err != nil {
		return "", err
	}

	initRes, err := upload.Initialize(ctx, c.api, &uploadtypes.InitializeInput{
		MediaType:     mediaType,
		TotalBytes:    len(data),
		MediaCategory: uploadtypes.MediaCategoryTweetImage,
	})
	if err != nil {
		return "", fmt.Errorf("initialize upload: %w", describe(err))
	}
	if err := partialError("initialize upload", initRes.Errors); err != nil {
		return "", err
	}
	mediaID := initRes.Data.MediaID

	appendIn := &uploadtypes.AppendInput{
		MediaID:      mediaID,
		Media:        bytes.NewReader(data),
		SegmentIndex: 0,
	}
	appendIn.GenerateBoundary()
	appendRes, err := upload.Append(ctx, c.api, appendIn)
	if err != nil {
		return "", fmt.Errorf("append upload: %w", describe(err))
	}
	if err := partialError("append upload", appendRes.Errors); err != nil {
		return "", err
	}

	finalizeRes, err := upload.Finalize(ctx, c.api, &uploadtypes.FinalizeInput{MediaID: mediaID})
	if err != nil {
		return "", fmt.Errorf("finalize upload: %w", describe(err))
	}
	if err := partialError("finalize upload", finalizeRes.Errors); err != nil {
		return "", err
	}

	if err := c.awaitProcessing(ctx, mediaID, finalizeRes.Data.ProcessingInfo); err != nil {
		return "", err
	}
	return mediaID, nil
}

// awaitProcessing polls the media status until X reports the upload usable,
// waiting check_after_secs between polls.
func (c *Client) awaitProcessing(ctx context.Context, mediaID string, info resources.ProcessingInfo) error {
	ctx, cancel := context.WithTimeout(ctx, processingTimeout)
	defer cancel()

	for {
		logutil.Debugf("media %s processing state=%q progress=%d%%", mediaID, info.State, info.ProgressPercent)
		switch info.State {
		case "", resources.ProcessingInfoStateSucceeded:
			return nil
		case resources.ProcessingInfoStateInProgress, resources.ProcessingInfoStatePending:
		default:
			return fmt.Errorf("media processing failed: state=%s", info.State)
		}

		wait := time.Duration(info.CheckAfterSecs) * time.Second
		if wait < minPollInterval {
			wait = minPollInterval
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("media %s still %s: %w", mediaID, info.State, ctx.Err())
		case <-timer.C:
		}

		var err error
		if info, err = c.status(ctx, mediaID); err != nil {
			return fmt.Errorf("media status: %w", describe(err))
		}
	}
}

// mediaStatus asks X for the processing state of an uploaded media.
func (c *Client) mediaStatus(ctx context.Context, mediaID string) (resources.ProcessingInfo, error) {
	res := &statusOutput{}
	if err := c.api.CallAPI(ctx, statusEndpoint, http.MethodGet, &statusInput{MediaID: mediaID}, res); err != nil {
		return resources.ProcessingInfo{}, err
	}
	if err := partialError("media status", res.Errors); err != nil {
		return resources.ProcessingInfo{}, err
	}
	return res.Data.ProcessingInfo, nil
}

// statusInput is the query of GET /2/media/upload?command=STATUS, which the
// gotwi upload package does not wrap.
type statusInput struct {
	accessToken string
	MediaID     string
}

func (p *statusInput) SetAccessToken(token string) { p.accessToken = token }
func (p *statusInput) AccessToken() string         { return p.accessToken }
func (p *statusInput) Body() (io.Reader, error)    { return nil, nil }

func (p *statusInput) ResolveEndpoint(endpointBase string) string {
	q := url.Values{}
	for k, v := range p.ParameterMap() {
		q.Set(k, v)
	}
	return endpointBase + "?" + q.Encode()
}

func (p *statusInput) ParameterMap() map[string]string {
	return map[string]string{"command": "STATUS", "media_id": p.MediaID}
}

type statusOutput struct {
	Data   resources.UploadedMedia  `json:"data"`
	Errors []resources.PartialError `json:"errors"`
}

func (r *statusOutput) HasPartialError() bool { return len(r.Errors) > 0 }

func partialError(step string, partials []resources.PartialError) error {
	var msgs []string
	for _, pe := range partials {
		switch {
		case pe.Detail != nil && *pe.Detail != "":
			msgs = append(msgs, *pe.Detail)
		case pe.Title != nil && *pe.Title != "":
			msgs = append(msgs, *pe.Title)
		}
	}
	if len(partials) > 0 && len(msgs) == 0 {
		msgs = append(msgs, "unknown error")
	}
	if len(msgs) > 0 {
		return fmt.Errorf("%s: %s", step, strings.Join(msgs, "; "))
	}
	return nil
}

func sniffMediaType(data []byte) (uploadtypes.MediaType, error) {
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return uploadtypes.MediaTypeJPEG, nil
	case "image/png":
		return uploadtypes.MediaTypePNG, nil
	case "image/gif":
		return uploadtypes.MediaTypeGIF, nil
	case "image/webp":
		return uploadtypes.MediaTypeWebP, nil
	}
	return "", xpost.ValidationError{Provider: providerName, Reason: "poster is not a supported image type"}
}

// describe flattens a gotwi API error into its titles and messages.
func describe(err error) error {
	var gwErr *gotwi.GotwiError
	if !errors.As(err, &gwErr) || gwErr == nil {
		return err
	}

	var parts []string
	if gwErr.Title != "" {
		parts = append(parts, gwErr.Title)
	}
	if gwErr.Detail != "" {
		parts = append(parts, gwErr.Detail)
	}
	for _, apiErr := range gwErr.APIErrors {
		if apiErr.Message != "" {
			parts = append(parts, apiErr.Message)
		}
	}
	if len(parts) == 0 {
		return err
	}
	return errors.New(strings.Join(parts, "; "))
}

func loadConfigFromEnv() (Config, error) {
	values, err := xpost.RequireEnv(providerName, envAPIKey, envAPISecret, envAccessToken, envAccessSecret)
	if err != nil {
		return Config{}, err
	}
	return Config{
		APIKey:       values[envAPIKey],
		APISecret:    values[envAPISecret],
		AccessToken:  values[envAccessToken],
		AccessSecret: values[envAccessSecret],
	}, nil
}
