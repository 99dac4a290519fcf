// Package download materializes one chosen encoding of one URL as a local
// working file.
package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	neturl "net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidfetch/vidfetch/internal/resolver"
)

// ErrRetrievalFailed indicates the encoding could not be materialized. No
// partial file remains when this error is returned.
var ErrRetrievalFailed = errors.New("retrieval failed")

// Artifact is the local file produced for one selection. It is owned by the
// delivery engine from the moment Fetch returns and must not outlive one
// delivery attempt.
type Artifact struct {
	Path string
	Size int64
}

// Fetcher runs retrievals against a resolver, managing the working-file
// lifecycle.
type Fetcher struct {
	logger   *slog.Logger
	resolver resolver.Resolver
	workDir  string
	timeout  time.Duration
}

// NewFetcher creates a Fetcher writing into workDir. timeout bounds a single
// retrieval; zero means no bound.
func NewFetcher(log *slog.Logger, r resolver.Resolver, workDir string, timeout time.Duration) *Fetcher {
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{
		logger:   log.With(slog.String("component", "download")),
		resolver: r,
		workDir:  workDir,
		timeout:  timeout,
	}
}

// Fetch materializes the encoding identified by formatID for url. The
// working filename is derived from the URL's trailing component and the
// format identifier, plus a per-call unique suffix so concurrent sessions
// requesting the same URL and format never share a file.
func (f *Fetcher) Fetch(ctx context.Context, url, formatID string) (Artifact, error) {
	if err := os.MkdirAll(f.workDir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("%w: create work dir: %v", ErrRetrievalFailed, err)
	}
	dest := filepath.Join(f.workDir, workFileName(url, formatID))

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := f.resolver.Download(ctx, url, formatID, dest); err != nil {
		removeIfExists(f.logger, dest)
		return Artifact{}, fmt.Errorf("%w: %v", ErrRetrievalFailed, err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		removeIfExists(f.logger, dest)
		return Artifact{}, fmt.Errorf("%w: stat artifact: %v", ErrRetrievalFailed, err)
	}
	f.logger.Info("retrieved",
		slog.String("format", formatID),
		slog.Int64("bytes", info.Size()),
		slog.Duration("elapsed", time.Since(start)),
	)
	return Artifact{Path: dest, Size: info.Size()}, nil
}

// workFileName builds a filesystem-safe name from the URL's trailing
// path/query component and the format identifier. A uuid suffix keys the
// name to this call.
func workFileName(url, formatID string) string {
	base := ""
	if u, err := neturl.Parse(url); err == nil {
		base = path.Base(u.Path)
		if base == "." || base == "/" || base == "" {
			base = u.RawQuery
		}
		if base == "" {
			base = u.Host
		}
	}
	if base == "" {
		base = "media"
	}
	return fmt.Sprintf("%s-%s-%s", sanitize(base), sanitize(formatID), uuid.NewString())
}

// sanitize keeps alphanumerics, '.', '_' and '-'; everything else becomes '_'.
func sanitize(s string) string {
	const maxLen = 64
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= maxLen {
			break
		}
	}
	if b.Len() == 0 {
		return "media"
	}
	return b.String()
}

func removeIfExists(log *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("remove partial artifact failed", slog.String("path", path), slog.Any("error", err))
	}
}
