// Package runner drives one publishing run: fetch the records updated in a
// time window, then publish them one after another.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/extraviadosmx/fbpublisher/internal/logutil"
	"github.com/extraviadosmx/fbpublisher/internal/mpp"
	"github.com/extraviadosmx/fbpublisher/internal/registry"
	"github.com/extraviadosmx/fbpublisher/internal/xpost"
	"github.com/extraviadosmx/fbpublisher/internal/xpost/facebook"
)

// Fetcher lists the records matching a filter.
type Fetcher interface {
	FetchRecords(ctx context.Context, f registry.Filter) ([]mpp.Record, error)
}

// Publisher publishes a single record.
type Publisher interface {
	Publish(ctx context.Context, rec mpp.Record) (facebook.Result, error)
}

// Options tune a Runner.
type Options struct {
	// KeepGoing publishes the remaining records after a record fails and
	// reports every failure at the end. By default the first failure stops
	// the run.
	KeepGoing bool
	// DryRun fetches records and reports what would be posted to Out.
	DryRun bool
	Out    io.Writer
	// SiteURL is the registry origin used for record links.
	SiteURL string
	// Mirrors receive a copy of every post published on Facebook. Their
	// failures are logged and never stop the run.
	Mirrors []xpost.Poster
}

// Summary counts what a run did.
type Summary struct {
	Records  int
	Photo    int
	Link     int
	Failed   int
	Mirrored int
}

func (s Summary) String() string {
	return fmt.Sprintf("records=%d photo=%d link=%d failed=%d mirrored=%d", s.Records, s.Photo, s.Link, s.Failed, s.Mirrored)
}

// Runner ties the registry and the publisher together.
type Runner struct {
	fetcher   Fetcher
	publisher Publisher
	opts      Options
}

// New constructs a Runner.
func New(fetcher Fetcher, publisher Publisher, opts Options) *Runner {
	if opts.SiteURL == "" {
		opts.SiteURL = mpp.DefaultSiteURL
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &Runner{fetcher: fetcher, publisher: publisher, opts: opts}
}

// Window returns a filter for records updated during the span ending at now.
func Window(now time.Time, span time.Duration, state string) registry.Filter {
	return registry.Filter{
		UpdatedAfter:  now.Add(-span),
		UpdatedBefore: now,
		State:         state,
	}
}

// Run fetches the records selected by f and publishes them.
func (r *Runner) Run(ctx context.Context, f registry.Filter) (Summary, error) {
	records, err := r.fetcher.FetchRecords(ctx, f)
	if err != nil {
		return Summary{}, fmt.Errorf("retrieve missing person posters: %w", err)
	}

	logutil.Infof("creating FB post for %d missing person posters updated after %s and before %s",
		len(records), f.UpdatedAfter.Format(time.RFC3339), f.UpdatedBefore.Format(time.RFC3339))

	return r.PublishAll(ctx, records)
}

// PublishAll publishes records in order, each one finished before the next
// starts.
func (r *Runner) PublishAll(ctx context.Context, records []mpp.Record) (Summary, error) {
	summary := Summary{Records: len(records)}
	var errs []error

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		logutil.Infof("processing %s", rec.DisplayName())
		if r.opts.DryRun {
			fmt.Fprintf(r.opts.Out, "[dry-run] would post %s: %s\n", rec.DisplayName(), rec.AbsoluteURL(r.opts.SiteURL))
			continue
		}

		res, err := r.publisher.Publish(ctx, rec)
		if err != nil {
			summary.Failed++
			logutil.Errorf("unable to create FB link post for %s: %v", rec.DisplayName(), err)
			if !r.opts.KeepGoing {
				return summary, err
			}
			errs = append(errs, err)
			continue
		}

		switch res.Outcome {
		case facebook.OutcomePhoto:
			summary.Photo++
			logutil.Infof("photo post created, response: %v", res.Response)
		case facebook.OutcomeLink:
			summary.Link++
			logutil.Infof("link post created, response: %v", res.Response)
		}

		summary.Mirrored += r.mirror(ctx, rec, res)
	}

	return summary, errors.Join(errs...)
}

// mirror forwards a published record to every mirror and returns how many
// accepted it.
func (r *Runner) mirror(ctx context.Context, rec mpp.Record, res facebook.Result) int {
	if len(r.opts.Mirrors) == 0 {
		return 0
	}

	req := xpost.Request{
		Message:   res.Message,
		Link:      rec.AbsoluteURL(r.opts.SiteURL),
		Image:     res.Image,
		ImageName: res.ImageName,
		ImageAlt:  "Ficha de búsqueda de " + strings.TrimSpace(rec.Name),
	}

	posted := 0
	for _, poster := range r.opts.Mirrors {
		if err := poster.Post(ctx, req); err != nil {
			logutil.Warnf("unable to mirror %s to %s: %v", rec.DisplayName(), poster.Name(), err)
			continue
		}
		posted++
		logutil.Infof("mirrored %s to %s", rec.DisplayName(), poster.Name())
	}
	return posted
}
