package bluesky

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"
	"github.com/extraviadosmx/fbpublisher/internal/xpost"
)

const (
	envHandle      = "FBPUBLISHER_BLUESKY_HANDLE"
	envAppPassword = "FBPUBLISHER_BLUESKY_APP_PASSWORD"
	envPDSURL      = "FBPUBLISHER_BLUESKY_PDS_URL"

	providerName   = "bluesky"
	requestTimeout = 30 * time.Second

	// DefaultPDSURL is used when neither Config nor the environment name a PDS.
	DefaultPDSURL = "https://bsky.social"

	// postLimit is the grapheme limit of app.bsky.feed.post text.
	postLimit = 300
)

// Config allows the caller to supply defaults prior to reading environment variables.
type Config struct {
	PDSURL string
}

// Client mirrors posters to a Bluesky account.
type Client struct {
	client *xrpc.Client
}

// New logs in with an app password and constructs a Bluesky poster.
func New(ctx context.Context, base Config) (xpost.Poster, error) {
	cfg, err := loadConfig(base)
	if err != nil {
		return nil, err
	}

	userAgent := "fbpublisher/1"
	xrpcClient := &xrpc.Client{
		Client:    &http.Client{Timeout: requestTimeout},
		Host:      cfg.PDSURL,
		UserAgent: &userAgent,
	}

	session, err := atproto.ServerCreateSession(ctx, xrpcClient, &atproto.ServerCreateSession_Input{
		Identifier: cfg.Handle,
		Password:   cfg.AppPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	xrpcClient.Auth = &xrpc.AuthInfo{
		AccessJwt:  session.AccessJwt,
		RefreshJwt: session.RefreshJwt,
		Handle:     session.Handle,
		Did:        session.Did,
	}

	return &Client{client: xrpcClient}, nil
}

// Name identifies the provider.
func (c *Client) Name() string { return providerName }

// Post creates a Bluesky post with the poster embedded and the record link
// turned into a link facet.
func (c *Client) Post(ctx context.Context, req xpost.Request) error {
	post := buildPost(req, time.Now())

	if req.HasImage() {
		resp, err := atproto.RepoUploadBlob(ctx, c.client, bytes.NewReader(req.Image))
		if err != nil {
			return fmt.Errorf("upload blob: %w", err)
		}
		if resp.Blob == nil {
			return errors.New("upload blob: empty response")
		}
		post.Embed = &bsky.FeedPost_Embed{
			EmbedImages: &bsky.EmbedImages{
				Images: []*bsky.EmbedImages_Image{{Alt: req.ImageAlt, Image: resp.Blob}},
			},
		}
	}

	_, err := atproto.RepoCreateRecord(ctx, c.client, &atproto.RepoCreateRecord_Input{
		Collection: "app.bsky.feed.post",
		Repo:       c.client.Auth.Did,
		Record:     &util.LexiconTypeDecoder{Val: post},
	})
	if err != nil {
		return fmt.Errorf("create record: %w", err)
	}

	return nil
}

// buildPost fits the text into the post limit and adds a link facet that
// covers the trailing link. Facet offsets are UTF-8 byte offsets.
func buildPost(req xpost.Request, now time.Time) *bsky.FeedPost {
	text := xpost.Compose(req.Message, req.Link, postLimit)
	post := &bsky.FeedPost{
		CreatedAt: now.UTC().Format(time.RFC3339),
		Text:      text,
		Langs:     []string{"es"},
	}
	if req.Link != "" && strings.HasSuffix(text, req.Link) {
		end := len(text)
		start := end - len(req.Link)
		post.Facets = []*bsky.RichtextFacet{{
			Index: &bsky.RichtextFacet_ByteSlice{ByteStart: int64(start), ByteEnd: int64(end)},
			Features: []*bsky.RichtextFacet_Features_Elem{{
				RichtextFacet_Link: &bsky.RichtextFacet_Link{
					LexiconTypeID: "app.bsky.richtext.facet#link",
					Uri:           req.Link,
				},
			}},
		}}
	}
	return post
}

// ProviderConfig merges defaults with environment-defined values.
type ProviderConfig struct {
	Handle      string
	AppPassword string
	PDSURL      string
}

func loadConfig(base Config) (ProviderConfig, error) {
	values, err := xpost.RequireEnv(providerName, envHandle, envAppPassword)
	if err != nil {
		return ProviderConfig{}, err
	}

	cfg := ProviderConfig{
		Handle:      values[envHandle],
		AppPassword: values[envAppPassword],
		PDSURL:      strings.TrimSpace(os.Getenv(envPDSURL)),
	}
	if cfg.PDSURL == "" {
		cfg.PDSURL = strings.TrimSpace(base.PDSURL)
	}
	if cfg.PDSURL == "" {
		cfg.PDSURL = DefaultPDSURL
	}
	return cfg, nil
}
