// Package catalog builds the list of downloadable encodings presented to
// the user for one source URL.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vidfetch/vidfetch/internal/resolver"
)

// ErrCatalogUnavailable indicates the resolution engine could not enumerate
// formats for the URL. Bad URLs, network failures, and empty format lists
// all collapse into this error.
var ErrCatalogUnavailable = errors.New("could not fetch formats")

// Candidate is one selectable encoding. Immutable once produced.
type Candidate struct {
	ID    string
	Label string
	Ext   string
	Size  int64
}

// ButtonLabel renders the candidate as an interactive control label.
func (c Candidate) ButtonLabel() string {
	return fmt.Sprintf("%s - %s", c.Label, c.Ext)
}

// Catalog is the ordered list of candidates for one URL. The last entry is
// always the synthetic best-audio candidate.
type Catalog struct {
	URL        string
	Candidates []Candidate
}

// Builder filters resolver formats against the transport payload ceiling.
type Builder struct {
	logger           *slog.Logger
	resolver         resolver.Resolver
	ceiling          int64
	admitUnknownSize bool
	timeout          time.Duration
}

// NewBuilder creates a Builder. ceiling is the transport payload ceiling in
// bytes; timeout bounds one enumeration, zero meaning no bound. When
// admitUnknownSize is false, formats without a reported size are dropped
// rather than assumed to fit.
func NewBuilder(log *slog.Logger, r resolver.Resolver, ceiling int64, admitUnknownSize bool, timeout time.Duration) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{
		logger:           log.With(slog.String("component", "catalog")),
		resolver:         r,
		ceiling:          ceiling,
		admitUnknownSize: admitUnknownSize,
		timeout:          timeout,
	}
}

// Build enumerates formats for url and returns the filtered catalog.
func (b *Builder) Build(ctx context.Context, url string) (Catalog, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	formats, err := b.resolver.ListFormats(ctx, url)
	if err != nil {
		return Catalog{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	if len(formats) == 0 {
		return Catalog{}, fmt.Errorf("%w: no formats", ErrCatalogUnavailable)
	}

	candidates := make([]Candidate, 0, len(formats)+1)
	for _, f := range formats {
		if f.Size > b.ceiling {
			continue
		}
		if f.Size <= 0 && !b.admitUnknownSize {
			b.logger.Debug("dropping candidate without reported size",
				slog.String("url", url),
				slog.String("format", f.ID),
			)
			continue
		}
		label := "Audio"
		if f.Height > 0 {
			label = fmt.Sprintf("%dp", f.Height)
		}
		candidates = append(candidates, Candidate{
			ID:    f.ID,
			Label: label,
			Ext:   f.Ext,
			Size:  f.Size,
		})
	}
	candidates = append(candidates, Candidate{
		ID:    resolver.BestAudio,
		Label: "Audio",
		Ext:   "best",
	})

	return Catalog{URL: url, Candidates: candidates}, nil
}
