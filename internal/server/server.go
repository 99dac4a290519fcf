// Package server exposes the webhook HTTP surface: a health endpoint and
// the Telegram update webhook.
package server

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Dispatch feeds one decoded update into the bot's event handling.
type Dispatch func(ctx context.Context, update tgbotapi.Update)

type Server struct {
	logger *slog.Logger
	echo   *echo.Echo
	addr   string
}

// NewServer builds the echo server. secret guards the webhook path; dispatch
// is invoked in its own goroutine per update so a slow pipeline never stalls
// the webhook response.
func NewServer(log *slog.Logger, addr, secret string, dispatch Dispatch) *Server {
	if log == nil {
		log = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	e.GET("/ping", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	logger := log.With(slog.String("component", "server"))
	e.POST("/telegram/webhook/:secret", func(c echo.Context) error {
		if subtle.ConstantTimeCompare([]byte(c.Param("secret")), []byte(secret)) != 1 {
			return echo.NewHTTPError(http.StatusNotFound)
		}
		var update tgbotapi.Update
		if err := c.Bind(&update); err != nil {
			logger.Warn("decode update failed", slog.Any("error", err))
			return echo.NewHTTPError(http.StatusBadRequest)
		}
		go dispatch(context.Background(), update)
		return c.NoContent(http.StatusOK)
	})

	return &Server{
		logger: logger,
		echo:   e,
		addr:   addr,
	}
}

func (s *Server) Start() error {
	s.logger.Info("listening", slog.String("addr", s.addr))
	return s.echo.Start(s.addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying http.Handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
