// Package pipeline ties the catalog, selection, retrieval, and delivery
// stages to the inbound chat events that drive them.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vidfetch/vidfetch/internal/catalog"
	"github.com/vidfetch/vidfetch/internal/channel"
	"github.com/vidfetch/vidfetch/internal/download"
	"github.com/vidfetch/vidfetch/internal/selection"
)

// CatalogBuilder enumerates downloadable encodings for a URL.
type CatalogBuilder interface {
	Build(ctx context.Context, url string) (catalog.Catalog, error)
}

// Fetcher materializes one encoding as a local artifact.
type Fetcher interface {
	Fetch(ctx context.Context, url, formatID string) (download.Artifact, error)
}

// Deliverer sends an artifact to a session, splitting when oversized.
type Deliverer interface {
	Deliver(ctx context.Context, s channel.Session, art download.Artifact) error
}

// Pipeline implements channel.Handler. Each inbound event is one
// independent unit of work; the only state shared between units is the
// injected collaborators, all safe for concurrent use.
type Pipeline struct {
	logger  *slog.Logger
	sender  channel.Sender
	builder CatalogBuilder
	fetcher Fetcher
	engine  Deliverer
}

func New(log *slog.Logger, sender channel.Sender, builder CatalogBuilder, fetcher Fetcher, engine Deliverer) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		logger:  log.With(slog.String("component", "pipeline")),
		sender:  sender,
		builder: builder,
		fetcher: fetcher,
		engine:  engine,
	}
}

// HandleCommand answers /start and /help.
func (p *Pipeline) HandleCommand(ctx context.Context, s channel.Session, name, _ string) error {
	switch name {
	case "start":
		who := s.DisplayName
		if who == "" {
			who = "there"
		}
		return p.sender.SendText(ctx, s,
			fmt.Sprintf("Hi %s! Send me a video link and I'll fetch it for you.", who))
	case "help":
		return p.sender.SendText(ctx, s,
			"Send a video URL. Pick a format from the list and I'll send the file back, split into parts if it's too large.")
	default:
		return p.sender.SendText(ctx, s, "Unknown command. Try /help.")
	}
}

// HandleText treats the message body as a media URL: it builds the format
// catalog and presents the choice. The unit of work then suspends until the
// transport delivers the matching callback.
func (p *Pipeline) HandleText(ctx context.Context, s channel.Session, body string) error {
	url := strings.TrimSpace(body)
	if url == "" {
		return nil
	}
	if err := p.sender.SendText(ctx, s, "Processing the URL: "+url+" ..."); err != nil {
		return err
	}

	cat, err := p.builder.Build(ctx, url)
	if err != nil {
		p.logger.Warn("catalog build failed", slog.String("url", url), slog.Any("error", err))
		if sendErr := p.sender.SendText(ctx, s, "Could not fetch formats for that link."); sendErr != nil {
			return sendErr
		}
		return err
	}

	choices := make([]channel.Choice, 0, len(cat.Candidates))
	for _, c := range cat.Candidates {
		token, err := selection.Encode(url, c.ID)
		if err != nil {
			p.logger.Warn("skipping unencodable candidate", slog.String("format", c.ID), slog.Any("error", err))
			continue
		}
		choices = append(choices, channel.Choice{Label: c.ButtonLabel(), Token: token})
	}
	return p.sender.SendChoice(ctx, s, "Choose a format:", choices)
}

// HandleCallback resumes a suspended unit of work from the echoed selection
// token: decode, retrieve, deliver.
func (p *Pipeline) HandleCallback(ctx context.Context, s channel.Session, payload []byte) error {
	url, formatID, err := selection.Decode(payload)
	if err != nil {
		p.logger.Warn("malformed selection", slog.Any("error", err))
		if sendErr := p.sender.SendText(ctx, s, "That selection didn't decode, please send the link again."); sendErr != nil {
			return sendErr
		}
		return err
	}

	if err := p.sender.SendText(ctx, s, "Downloading your video ..."); err != nil {
		return err
	}

	art, err := p.fetcher.Fetch(ctx, url, formatID)
	if err != nil {
		p.logger.Error("retrieval failed",
			slog.String("url", url),
			slog.String("format", formatID),
			slog.Any("error", err),
		)
		if sendErr := p.sender.SendText(ctx, s, "Downloading the video failed, please try again later."); sendErr != nil {
			return sendErr
		}
		return err
	}

	if err := p.sender.EditLastMessage(ctx, s, "Sending your video ..."); err != nil {
		p.logger.Warn("edit status failed", slog.Any("error", err))
	}

	if err := p.engine.Deliver(ctx, s, art); err != nil {
		p.logger.Error("delivery failed", slog.String("url", url), slog.Any("error", err))
		if sendErr := p.sender.SendText(ctx, s, "Sending the video failed."); sendErr != nil {
			return sendErr
		}
		return err
	}

	return p.sender.EditLastMessage(ctx, s, "Done, enjoy!")
}
