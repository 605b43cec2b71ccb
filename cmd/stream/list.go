package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oliverames/ames-consulting/config"
	"github.com/oliverames/ames-consulting/filter"
	"github.com/oliverames/ames-consulting/post"
	"github.com/oliverames/ames-consulting/source"
)

type listOptions struct {
	view   string
	query  string
	tag    string
	tagSet bool
	format string
}

var listOpts listOptions

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the filtered post listing",
	Long: `Runs the ingestion pipeline once and prints the posts a view would show.

Examples:
  stream list --view work
  stream list -q estimates --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		listOpts.tagSet = cmd.Flags().Changed("tag")
		return runList(cmd.Context(), cmd.OutOrStdout(), cfg, logger, listOpts, time.Now())
	},
}

func init() {
	listCmd.Flags().StringVar(&listOpts.view, "view", string(filter.ViewBlog), "view to render: home, blog or work")
	listCmd.Flags().StringVarP(&listOpts.query, "query", "q", "", "free-text filter")
	listCmd.Flags().StringVarP(&listOpts.tag, "tag", "t", "", "tag filter; an empty value clears the work view's default tag")
	listCmd.Flags().StringVarP(&listOpts.format, "format", "f", "text", "output format: text or json")
}

// params maps the flags onto the query parameters the codec reads. A tag
// flag that was given, even empty, is passed through as present.
func (o listOptions) params() url.Values {
	v := url.Values{}
	if o.query != "" {
		v.Set(filter.ParamQuery, o.query)
	}
	if o.tagSet || o.tag != "" {
		v.Set(filter.ParamTag, o.tag)
	}
	return v
}

type listOutput struct {
	Status filter.Status `json:"status"`
	Posts  []post.Post   `json:"posts"`
}

func runList(ctx context.Context, w io.Writer, c config.Config, logger *zap.Logger, opts listOptions, now time.Time) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format %q: must be text or json", opts.format)
	}

	view := filter.ParseView(opts.view)
	codec := filter.Codec{View: view, DefaultTag: c.PortfolioTag}
	state := codec.Decode(opts.params())

	listing, err := newSelector(c, source.LogDiagnostics{Logger: logger}, logger).List(ctx)
	if err != nil && !errors.Is(err, source.ErrSourcesExhausted) {
		return err
	}

	posts := filter.Apply(listing.Posts, state, view, c.HomePreviewLimit)
	status := filter.NewStatus(len(posts), state, listing.Provider, listing.Degraded)

	if opts.format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(listOutput{Status: status, Posts: posts})
	}
	return renderText(w, posts, status, now)
}

func renderText(w io.Writer, posts []post.Post, status filter.Status, now time.Time) error {
	var b strings.Builder
	b.WriteString(status.String())
	if status.Degraded {
		b.WriteString(" (degraded)")
	}
	b.WriteString("\n")

	if len(posts) == 0 {
		b.WriteString("\nNo posts matched the current filters.\n")
	}
	for _, p := range posts {
		meta := []string{publishedAgo(p, now), readTime(p.ReadTimeMinutes)}
		if len(p.Tags) > 0 {
			meta = append(meta, "#"+strings.Join(p.Tags, " #"))
		}
		fmt.Fprintf(&b, "\n%s\n  %s\n", p.Title, strings.Join(meta, " · "))
		if p.URL != "" {
			fmt.Fprintf(&b, "  %s\n", p.URL)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func publishedAgo(p post.Post, now time.Time) string {
	at, err := p.PublishedTime()
	if err != nil {
		return p.PublishedAt
	}
	return humanize.RelTime(at, now, "ago", "from now")
}

func readTime(minutes int) string {
	return fmt.Sprintf("%d min read", max(1, minutes))
}
