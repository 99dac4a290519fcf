package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// YTDLP resolves media through the yt-dlp command line tool.
type YTDLP struct {
	logger *slog.Logger
	binary string
}

// NewYTDLP creates a yt-dlp backed Resolver. binary may be empty, in which
// case "yt-dlp" is looked up on PATH.
func NewYTDLP(log *slog.Logger, binary string) *YTDLP {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(binary) == "" {
		binary = "yt-dlp"
	}
	return &YTDLP{
		logger: log.With(slog.String("component", "resolver")),
		binary: binary,
	}
}

type ytdlpFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	Height         int     `json:"height"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox float64 `json:"filesize_approx"`
}

type ytdlpProbe struct {
	Formats []ytdlpFormat `json:"formats"`
}

// ListFormats runs `yt-dlp --dump-json` and maps the reported formats.
func (r *YTDLP) ListFormats(ctx context.Context, url string) ([]Format, error) {
	cmd := exec.CommandContext(ctx, r.binary, "--dump-json", "--no-playlist", url)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		r.logger.Error("list formats failed",
			slog.String("url", url),
			slog.String("stderr", firstLine(stderr.String())),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("yt-dlp probe: %w", err)
	}
	return parseProbe(stdout.Bytes())
}

func parseProbe(data []byte) ([]Format, error) {
	var probe ytdlpProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode yt-dlp probe: %w", err)
	}
	formats := make([]Format, 0, len(probe.Formats))
	for _, f := range probe.Formats {
		if strings.TrimSpace(f.FormatID) == "" {
			continue
		}
		size := f.Filesize
		if size <= 0 && f.FilesizeApprox > 0 {
			size = int64(f.FilesizeApprox)
		}
		formats = append(formats, Format{
			ID:     f.FormatID,
			Ext:    f.Ext,
			Height: f.Height,
			Size:   size,
		})
	}
	return formats, nil
}

// Download runs `yt-dlp -f <formatID> -o <dest>`.
func (r *YTDLP) Download(ctx context.Context, url, formatID, dest string) error {
	args := []string{"--no-playlist", "--no-part", "-f", formatID, "-o", dest, url}
	cmd := exec.CommandContext(ctx, r.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		r.logger.Error("download failed",
			slog.String("url", url),
			slog.String("format", formatID),
			slog.String("stderr", firstLine(stderr.String())),
			slog.Any("error", err),
		)
		return fmt.Errorf("yt-dlp download: %w", err)
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
