// Package delivery sends a retrieved artifact back through the chat
// transport, splitting it into ordered parts when it exceeds the per-message
// payload ceiling.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/vidfetch/vidfetch/internal/channel"
	"github.com/vidfetch/vidfetch/internal/download"
)

// ErrDeliveryFailed indicates an I/O or transport error while sending. All
// local files created for the attempt are removed before it is returned;
// parts already delivered stay delivered.
var ErrDeliveryFailed = errors.New("delivery failed")

// Engine delivers artifacts, splitting oversized ones into ceiling-sized
// parts.
type Engine struct {
	logger  *slog.Logger
	sender  channel.Sender
	ceiling int64
}

// NewEngine creates an Engine. ceiling is the transport payload ceiling in
// bytes; production callers pass channel.MaxAttachmentBytes.
func NewEngine(log *slog.Logger, sender channel.Sender, ceiling int64) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		logger:  log.With(slog.String("component", "delivery")),
		sender:  sender,
		ceiling: ceiling,
	}
}

// Deliver sends art to the session and removes it. When art fits under the
// ceiling it goes out as a single media message; otherwise it is read
// sequentially into numbered part files, each sent as a document and
// removed before the next is written, so at most one part file exists at
// any instant. The artifact itself is removed on every exit path.
func (e *Engine) Deliver(ctx context.Context, s channel.Session, art download.Artifact) error {
	defer e.remove(art.Path)

	info, err := os.Stat(art.Path)
	if err != nil {
		return fmt.Errorf("%w: stat artifact: %v", ErrDeliveryFailed, err)
	}
	size := info.Size()

	if size <= e.ceiling {
		if err := e.sender.SendMedia(ctx, s, art.Path, ""); err != nil {
			return fmt.Errorf("%w: send media: %v", ErrDeliveryFailed, err)
		}
		e.logger.Info("delivered", slog.Int64("bytes", size), slog.Int64("chat_id", s.ChatID))
		return nil
	}

	parts := int((size + e.ceiling - 1) / e.ceiling)
	notice := fmt.Sprintf("The video is %s, which is over the %s message limit. Sending it in %d parts.",
		humanize.IBytes(uint64(size)), humanize.IBytes(uint64(e.ceiling)), parts)
	if err := e.sender.SendText(ctx, s, notice); err != nil {
		return fmt.Errorf("%w: send notice: %v", ErrDeliveryFailed, err)
	}

	src, err := os.Open(art.Path)
	if err != nil {
		return fmt.Errorf("%w: open artifact: %v", ErrDeliveryFailed, err)
	}
	defer func() {
		_ = src.Close()
	}()

	for n := 1; n <= parts; n++ {
		partPath := fmt.Sprintf("%s.part%d", art.Path, n)
		if err := writePart(src, partPath, e.ceiling); err != nil {
			e.remove(partPath)
			return fmt.Errorf("%w: write part %d: %v", ErrDeliveryFailed, n, err)
		}
		caption := fmt.Sprintf("Part %d of the video", n)
		sendErr := e.sender.SendDocument(ctx, s, partPath, caption)
		e.remove(partPath)
		if sendErr != nil {
			return fmt.Errorf("%w: send part %d: %v", ErrDeliveryFailed, n, sendErr)
		}
		e.logger.Info("part delivered",
			slog.Int("part", n),
			slog.Int("parts", parts),
			slog.Int64("chat_id", s.ChatID),
		)
	}
	return nil
}

// writePart copies up to limit bytes from src into a new file at path.
func writePart(src io.Reader, path string, limit int64) error {
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	_, copyErr := io.CopyN(dst, src, limit)
	closeErr := dst.Close()
	if copyErr != nil && !errors.Is(copyErr, io.EOF) {
		return copyErr
	}
	return closeErr
}

func (e *Engine) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		e.logger.Warn("remove failed", slog.String("path", path), slog.Any("error", err))
	}
}
