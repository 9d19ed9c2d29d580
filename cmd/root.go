/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/extraviadosmx/fbpublisher/internal/config"
	"github.com/extraviadosmx/fbpublisher/internal/logutil"
	"github.com/extraviadosmx/fbpublisher/internal/registry"
	"github.com/extraviadosmx/fbpublisher/internal/runner"
	"github.com/extraviadosmx/fbpublisher/internal/xpost"
	"github.com/extraviadosmx/fbpublisher/internal/xpost/bluesky"
	"github.com/extraviadosmx/fbpublisher/internal/xpost/facebook"
	"github.com/extraviadosmx/fbpublisher/internal/xpost/mastodon"
	"github.com/extraviadosmx/fbpublisher/internal/xpost/twitter"
	"github.com/spf13/cobra"
)

var (
	baseURLFlag string
	stateFlag   string
	windowFlag  time.Duration
	afterFlag   string
	beforeFlag  string
	maxPages    int
	keepGoing   bool
	dryRun      bool
	mirrorsFlag []string
	verboseFlag bool
	logFileFlag string
)

var supportedMirrors = map[string]struct{}{
	"bluesky":  {},
	"mastodon": {},
	"twitter":  {},
}

const defaultWindow = 15 * time.Minute

// Execute runs the root command.
func Execute() error {
	return newRootCommand().Execute()
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fbpublisher",
		Short: "Publish recently updated missing person posters to Facebook",
		Long: "fbpublisher lists the posters updated on extraviados.mx during the last window " +
			"and publishes each one on the Facebook page, as a photo post when possible " +
			"and as a link post otherwise.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRoot,
		Example: `  fbpublisher
  fbpublisher --window 1h --state JAL
  fbpublisher --after 2024-01-01 --before 2024-01-02 --keep-going
  fbpublisher --dry-run --verbose
  fbpublisher --mirror mastodon --mirror bluesky`,
	}

	cmd.Flags().StringVar(&baseURLFlag, "base-url", "", "Registry origin (overrides "+config.EnvRegistryURL+")")
	cmd.Flags().StringVar(&stateFlag, "state", "", "Only publish posters of this po_state code")
	cmd.Flags().DurationVar(&windowFlag, "window", defaultWindow, "Publish posters updated during this span before now")
	cmd.Flags().StringVar(&afterFlag, "after", "", "Publish posters updated after this date (YYYY-MM-DD), requires --before")
	cmd.Flags().StringVar(&beforeFlag, "before", "", "Publish posters updated before this date (YYYY-MM-DD), requires --after")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "Stop with an error after this many listing pages (0 means no limit)")
	cmd.Flags().BoolVar(&keepGoing, "keep-going", false, "Keep publishing after a poster fails and report all failures at the end")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the posters that would be published without posting")
	cmd.Flags().StringSliceVar(&mirrorsFlag, "mirror", nil, "Also post to these networks (twitter, mastodon, bluesky, or all)")
	cmd.Flags().BoolVarP(&verboseFlag, "verbose", "V", false, "Enable debug logging")
	cmd.Flags().StringVar(&logFileFlag, "log-file", "", "Append logs to this file instead of stderr")
	cmd.MarkFlagsRequiredTogether("after", "before")
	cmd.MarkFlagsMutuallyExclusive("after", "window")
	cmd.Flags().SortFlags = false

	cmd.AddCommand(newCompletionCommand())

	return cmd
}

func runRoot(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logutil.SetVerbose(verboseFlag)
	if logFileFlag != "" {
		if err := logutil.SetLogFile(logFileFlag); err != nil {
			return err
		}
		defer logutil.Close()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	siteURL := cfg.RegistryURL
	if strings.TrimSpace(baseURLFlag) != "" {
		siteURL = strings.TrimSpace(baseURLFlag)
	}

	filter, err := resolveFilter(time.Now().In(cfg.Location), cfg.Location)
	if err != nil {
		return err
	}

	publisher, err := facebook.New(facebook.Config{
		PageID:      cfg.PageID,
		AccessToken: cfg.AccessToken,
		GraphURL:    cfg.GraphURL,
		SiteURL:     siteURL,
	})
	if err != nil {
		return err
	}

	var mirrors []xpost.Poster
	if len(mirrorsFlag) > 0 && !dryRun {
		targets, err := normalizeTargets(mirrorsFlag)
		if err != nil {
			return err
		}
		if mirrors, err = buildPosters(ctx, targets); err != nil {
			return err
		}
	}

	run := runner.New(
		registry.New(registry.Config{BaseURL: siteURL, MaxPages: maxPages}),
		publisher,
		runner.Options{
			KeepGoing: keepGoing,
			DryRun:    dryRun,
			Out:       cmd.OutOrStdout(),
			SiteURL:   siteURL,
			Mirrors:   mirrors,
		},
	)

	summary, err := run.Run(ctx, filter)
	logutil.Infof("done: %s", summary)
	return err
}

// resolveFilter turns the window flags into a registry filter. Explicit
// dates are interpreted in loc and sent as dates.
func resolveFilter(now time.Time, loc *time.Location) (registry.Filter, error) {
	if afterFlag == "" && beforeFlag == "" {
		if windowFlag <= 0 {
			return registry.Filter{}, fmt.Errorf("--window must be positive, got %s", windowFlag)
		}
		return runner.Window(now, windowFlag, stateFlag), nil
	}

	after, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(afterFlag), loc)
	if err != nil {
		return registry.Filter{}, fmt.Errorf("invalid --after %q: expected YYYY-MM-DD", afterFlag)
	}
	before, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(beforeFlag), loc)
	if err != nil {
		return registry.Filter{}, fmt.Errorf("invalid --before %q: expected YYYY-MM-DD", beforeFlag)
	}
	if before.Before(after) {
		return registry.Filter{}, fmt.Errorf("--before %s is earlier than --after %s", beforeFlag, afterFlag)
	}

	return registry.Filter{
		UpdatedAfter:  after,
		UpdatedBefore: before,
		DateOnly:      true,
		State:         stateFlag,
	}, nil
}

func normalizeTargets(values []string) ([]string, error) {
	result := make([]string, 0, len(values))
	seen := map[string]struct{}{}
	for _, raw := range values {
		raw = strings.TrimSpace(strings.ToLower(raw))
		if raw == "" {
			continue
		}
		if raw == "all" {
			return sortedTargets([]string{"twitter", "mastodon", "bluesky"}), nil
		}
		if _, ok := supportedMirrors[raw]; !ok {
			return nil, fmt.Errorf("unsupported mirror %q", raw)
		}
		if _, ok := seen[raw]; ok {
			continue
		}
		seen[raw] = struct{}{}
		result = append(result, raw)
	}

	if len(result) == 0 {
		return nil, errors.New("no mirrors selected")
	}

	return sortedTargets(result), nil
}

func sortedTargets(targets []string) []string {
	out := append([]string(nil), targets...)
	sort.Strings(out)
	return out
}

func buildPosters(ctx context.Context, targets []string) ([]xpost.Poster, error) {
	constructors := map[string]func(context.Context) (xpost.Poster, error){
		"bluesky": func(ctx context.Context) (xpost.Poster, error) {
			return bluesky.New(ctx, bluesky.Config{PDSURL: bluesky.DefaultPDSURL})
		},
		"mastodon": func(ctx context.Context) (xpost.Poster, error) {
			return mastodon.New(ctx)
		},
		"twitter": func(ctx context.Context) (xpost.Poster, error) {
			return twitter.New(ctx)
		},
	}

	posters := make([]xpost.Poster, 0, len(targets))
	var errs []error
	for _, target := range targets {
		constructor, ok := constructors[target]
		if !ok {
			errs = append(errs, fmt.Errorf("mirror %q is not implemented", target))
			continue
		}
		poster, err := constructor(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", target, err))
			continue
		}
		posters = append(posters, poster)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return posters, nil
}

func newCompletionCommand() *cobra.Command {
	return &cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 "Generate the shell completion script",
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeCompletion(cmd.Root(), args[0], cmd.OutOrStdout())
		},
	}
}

func writeCompletion(root *cobra.Command, shell string, out io.Writer) error {
	switch shell {
	case "bash":
		return root.GenBashCompletionV2(out, true)
	case "zsh":
		return root.GenZshCompletion(out)
	case "fish":
		return root.GenFishCompletion(out, true)
	case "powershell":
		return root.GenPowerShellCompletionWithDesc(out)
	}
	return fmt.Errorf("unsupported shell %q", shell)
}
