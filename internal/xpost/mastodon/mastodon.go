// Package mastodon mirrors published posters to a Mastodon account.
package mastodon

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/extraviadosmx/fbpublisher/internal/xpost"
	mastodonapi "github.com/mattn/go-mastodon"
)

const (
	envServer       = "FBPUBLISHER_MASTODON_SERVER"
	envAccessToken  = "FBPUBLISHER_MASTODON_ACCESS_TOKEN"
	envClientID     = "FBPUBLISHER_MASTODON_CLIENT_ID"
	envClientSecret = "FBPUBLISHER_MASTODON_CLIENT_SECRET"
	envVisibility   = "FBPUBLISHER_MASTODON_VISIBILITY"

	providerName   = "mastodon"
	requestTimeout = 30 * time.Second

	// statusLimit is the default character limit of a Mastodon instance.
	statusLimit = 500
)

// Config contains the settings needed to reach a Mastodon server.
type Config struct {
	Server       string
	AccessToken  string
	ClientID     string
	ClientSecret string
	// Visibility is public, unlisted, private or direct. Empty means public.
	Visibility string
}

// Client mirrors posters to a Mastodon account.
type Client struct {
	client     *mastodonapi.Client
	visibility string
}

// New constructs a Mastodon poster from FBPUBLISHER_MASTODON_* variables.
func New(ctx context.Context) (xpost.Poster, error) {
	cfg, err := loadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	api := mastodonapi.NewClient(&mastodonapi.Config{
		Server:       cfg.Server,
		AccessToken:  cfg.AccessToken,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	})
	api.Timeout = requestTimeout

	return &Client{client: api, visibility: cfg.Visibility}, nil
}

// Name identifies the provider.
func (c *Client) Name() string { return providerName }

// Post publishes a toot with the poster attached. The message is shortened
// to fit the instance limit and the record link is always kept.
func (c *Client) Post(ctx context.Context, req xpost.Request) error {
	toot := &mastodonapi.Toot{
		Status:     xpost.Compose(req.Message, req.Link, statusLimit),
		Visibility: c.visibility,
		Language:   "es",
	}

	if req.HasImage() {
		attachment, err := c.client.UploadMediaFromMedia(ctx, &mastodonapi.Media{
			File:        bytes.NewReader(req.Image),
			Description: req.ImageAlt,
		})
		if err != nil {
			return fmt.Errorf("upload poster: %w", err)
		}
		toot.MediaIDs = []mastodonapi.ID{attachment.ID}
	}

	if _, err := c.client.PostStatus(ctx, toot); err != nil {
		return fmt.Errorf("post status: %w", err)
	}
	return nil
}

func loadConfigFromEnv() (Config, error) {
	values, err := xpost.RequireEnv(providerName, envServer, envAccessToken)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server:       values[envServer],
		AccessToken:  values[envAccessToken],
		ClientID:     strings.TrimSpace(os.Getenv(envClientID)),
		ClientSecret: strings.TrimSpace(os.Getenv(envClientSecret)),
		Visibility:   strings.ToLower(strings.TrimSpace(os.Getenv(envVisibility))),
	}

	switch cfg.Visibility {
	case "":
		cfg.Visibility = "public"
	case "public", "unlisted", "private", "direct":
	default:
		return Config{}, xpost.ValidationError{Provider: providerName, Reason: fmt.Sprintf("unknown visibility %q", cfg.Visibility)}
	}

	return cfg, nil
}
