// Package facebook publishes missing person posters on a Facebook page
// through the Graph API: a photo post first and a link post when the photo
// post cannot be made.
package facebook

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/extraviadosmx/fbpublisher/internal/logutil"
	"github.com/extraviadosmx/fbpublisher/internal/mpp"
	"github.com/extraviadosmx/fbpublisher/internal/registry"
	"github.com/extraviadosmx/fbpublisher/internal/xpost"
)

const (
	providerName = "facebook"

	// DefaultGraphURL is the Graph API origin.
	DefaultGraphURL = "https://graph.facebook.com"

	contentTimeout         = 10 * time.Second
	imageTimeout           = 10 * time.Second
	fallbackContentTimeout = 30 * time.Second
	postTimeout            = 60 * time.Second

	maxImageBytes = 10 << 20
)

// Outcome tags how a record ended up published.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomePhoto
	OutcomeLink
)

func (o Outcome) String() string {
	switch o {
	case OutcomePhoto:
		return "photo"
	case OutcomeLink:
		return "link"
	default:
		return "failed"
	}
}

// Result describes one Publish call.
type Result struct {
	Outcome Outcome
	// Response is the decoded Graph API answer of the post that was created.
	Response map[string]any
	// Message is the post body served by the registry.
	Message string
	// Image and ImageName are set when the poster image was downloaded.
	Image     []byte
	ImageName string
	// PhotoErr explains why the photo post was not made, if it wasn't.
	PhotoErr error
}

// Config holds the page credentials and endpoints.
type Config struct {
	PageID      string
	AccessToken string
	// GraphURL defaults to DefaultGraphURL.
	GraphURL string
	// SiteURL is the registry origin records are linked to.
	SiteURL string
	// HTTPClient is used for registry content and Graph API calls.
	HTTPClient *http.Client
	// ImageClient downloads poster images. The default one skips TLS
	// verification because the image host serves an invalid certificate.
	ImageClient *http.Client
}

// Publisher creates Facebook page posts for poster records.
type Publisher struct {
	pageID      string
	accessToken string
	graphURL    string
	siteURL     string
	httpClient  *http.Client
	imageClient *http.Client
}

// New validates cfg and constructs a Publisher.
func New(cfg Config) (*Publisher, error) {
	pageID := strings.TrimSpace(cfg.PageID)
	token := strings.TrimSpace(cfg.AccessToken)
	if pageID == "" || token == "" {
		return nil, xpost.ValidationError{Provider: providerName, Reason: "page id and access token are required"}
	}

	p := &Publisher{
		pageID:      pageID,
		accessToken: token,
		graphURL:    strings.TrimRight(strings.TrimSpace(cfg.GraphURL), "/"),
		siteURL:     strings.TrimSpace(cfg.SiteURL),
		httpClient:  cfg.HTTPClient,
		imageClient: cfg.ImageClient,
	}
	if p.graphURL == "" {
		p.graphURL = DefaultGraphURL
	}
	if p.siteURL == "" {
		p.siteURL = mpp.DefaultSiteURL
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{}
	}
	if p.imageClient == nil {
		p.imageClient = insecureClient()
	}
	return p, nil
}

func insecureClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // poster host certificate is known to be invalid
	return &http.Client{Transport: transport}
}

// Name returns the provider identifier.
func (p *Publisher) Name() string { return providerName }

// SiteURL returns the registry origin used to build record links.
func (p *Publisher) SiteURL() string { return p.siteURL }

// Publish posts rec as a photo and falls back to a link post when the photo
// post fails for any reason. The returned error is a PublishError when both
// attempts failed.
func (p *Publisher) Publish(ctx context.Context, rec mpp.Record) (Result, error) {
	res, err := p.PostPhoto(ctx, rec)
	if err == nil {
		return res, nil
	}
	photoErr := err
	logutil.Errorf("unable to create FB photo post for %s: %v", rec.DisplayName(), photoErr)

	res, err = p.PostLink(ctx, rec)
	res.PhotoErr = photoErr
	if err != nil {
		return res, PublishError{Name: rec.Name, PhotoErr: photoErr, Err: err}
	}
	return res, nil
}

// PostPhoto publishes the poster image with the registry's post body.
func (p *Publisher) PostPhoto(ctx context.Context, rec mpp.Record) (Result, error) {
	message, err := p.postContent(ctx, rec, contentTimeout)
	if err != nil {
		return Result{}, err
	}

	image, err := p.downloadImage(ctx, rec.PosterURL)
	if err != nil {
		return Result{Message: message}, err
	}
	name := imageName(rec)

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	if err := form.WriteField("message", message); err != nil {
		return Result{}, fmt.Errorf("build photo form: %w", err)
	}
	if err := form.WriteField("access_token", p.accessToken); err != nil {
		return Result{}, fmt.Errorf("build photo form: %w", err)
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="data"; filename=%q`, name))
	header.Set("Content-Type", http.DetectContentType(image))
	part, err := form.CreatePart(header)
	if err != nil {
		return Result{}, fmt.Errorf("build photo form: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return Result{}, fmt.Errorf("build photo form: %w", err)
	}
	if err := form.Close(); err != nil {
		return Result{}, fmt.Errorf("build photo form: %w", err)
	}

	logutil.Debugf("posting photo: record=%s bytes=%d", rec.Slug, len(image))
	response, err := p.graphPost(ctx, "photos", form.FormDataContentType(), body)
	if err != nil {
		return Result{Message: message, Image: image, ImageName: name}, fmt.Errorf("post photo: %w", err)
	}

	return Result{
		Outcome:   OutcomePhoto,
		Response:  response,
		Message:   message,
		Image:     image,
		ImageName: name,
	}, nil
}

// PostLink publishes the registry's post body with a link to the record's
// public page.
func (p *Publisher) PostLink(ctx context.Context, rec mpp.Record) (Result, error) {
	message, err := p.postContent(ctx, rec, fallbackContentTimeout)
	if err != nil {
		return Result{}, err
	}

	form := url.Values{}
	form.Set("message", message)
	form.Set("link", rec.AbsoluteURL(p.siteURL))
	form.Set("access_token", p.accessToken)

	logutil.Debugf("posting link: record=%s", rec.Slug)
	response, err := p.graphPost(ctx, "feed", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return Result{Message: message}, fmt.Errorf("post link: %w", err)
	}

	return Result{Outcome: OutcomeLink, Response: response, Message: message}, nil
}

func (p *Publisher) postContent(ctx context.Context, rec mpp.Record, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	contentURL := rec.PostContentURL(p.siteURL)
	data, err := get(ctx, p.httpClient, contentURL, 0)
	if err != nil {
		return "", fmt.Errorf("fetch post content: %w", err)
	}
	return string(data), nil
}

func (p *Publisher) downloadImage(ctx context.Context, imageURL string) ([]byte, error) {
	if strings.TrimSpace(imageURL) == "" {
		return nil, xpost.ValidationError{Provider: providerName, Reason: "record has no poster image"}
	}

	ctx, cancel := context.WithTimeout(ctx, imageTimeout)
	defer cancel()

	data, err := get(ctx, p.imageClient, imageURL, maxImageBytes)
	if err != nil {
		return nil, fmt.Errorf("download poster: %w", err)
	}
	return data, nil
}

// get reads the body of a 2xx answer. A positive limit rejects larger bodies.
func get(ctx context.Context, client *http.Client, rawURL string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, registry.TransportError{URL: rawURL, Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, registry.TransportError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, registry.TransportError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	var reader io.Reader = resp.Body
	if limit > 0 {
		reader = io.LimitReader(resp.Body, limit+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, registry.TransportError{URL: rawURL, StatusCode: resp.StatusCode, Err: err}
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, xpost.ValidationError{Provider: providerName, Reason: fmt.Sprintf("%s exceeds %d bytes", rawURL, limit)}
	}
	return data, nil
}

func (p *Publisher) graphPost(ctx context.Context, edge, contentType string, body io.Reader) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, postTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/%s/%s", p.graphURL, url.PathEscape(p.pageID), edge)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeGraphError(resp.StatusCode, respBody)
	}

	var result map[string]any
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return result, nil
}

func decodeGraphError(status int, body []byte) GraphError {
	var envelope struct {
		Error struct {
			Message   string `json:"message"`
			Type      string `json:"type"`
			Code      int    `json:"code"`
			Subcode   int    `json:"error_subcode"`
			FBTraceID string `json:"fbtrace_id"`
		} `json:"error"`
	}
	gerr := GraphError{StatusCode: status}
	if err := json.Unmarshal(body, &envelope); err != nil {
		gerr.Message = strings.TrimSpace(string(body))
		return gerr
	}
	gerr.Message = envelope.Error.Message
	gerr.Type = envelope.Error.Type
	gerr.Code = envelope.Error.Code
	gerr.Subcode = envelope.Error.Subcode
	gerr.TraceID = envelope.Error.FBTraceID
	return gerr
}

func imageName(rec mpp.Record) string {
	if u, err := url.Parse(rec.PosterURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "." && base != "/" {
			return base
		}
	}
	return rec.Slug + ".jpg"
}
