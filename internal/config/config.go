package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath          = "config.toml"
	DefaultHTTPAddr            = ":8080"
	DefaultMode                = "polling"
	DefaultPollTimeoutSeconds  = 30
	DefaultWorkDir             = "downloads"
	DefaultYTDLPBinary         = "yt-dlp"
	DefaultResolveTimeoutSecs  = 60
	DefaultDownloadTimeoutSecs = 600
	DefaultSweepIntervalMins   = 30
	DefaultMaxFileAgeMins      = 120

	// EnvBotToken overrides telegram.bot_token when set.
	EnvBotToken = "VIDFETCH_BOT_TOKEN"
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Telegram TelegramConfig `toml:"telegram"`
	Server   ServerConfig   `toml:"server"`
	Download DownloadConfig `toml:"download"`
	Janitor  JanitorConfig  `toml:"janitor"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type TelegramConfig struct {
	BotToken           string `toml:"bot_token" validate:"required"`
	Mode               string `toml:"mode" validate:"oneof=polling webhook"`
	WebhookURL         string `toml:"webhook_url" validate:"required_if=Mode webhook,omitempty,url"`
	WebhookSecret      string `toml:"webhook_secret" validate:"required_if=Mode webhook"`
	PollTimeoutSeconds int    `toml:"poll_timeout_seconds" validate:"gt=0"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type DownloadConfig struct {
	WorkDir                string `toml:"work_dir" validate:"required"`
	YTDLPBinary            string `toml:"ytdlp_binary"`
	ResolveTimeoutSeconds  int    `toml:"resolve_timeout_seconds" validate:"gt=0"`
	DownloadTimeoutSeconds int    `toml:"download_timeout_seconds" validate:"gt=0"`
	// AdmitUnknownSize lets format candidates without a reported size into
	// the catalog. Off by default: an unreported size may hide a file far
	// over the transport limit.
	AdmitUnknownSize bool `toml:"admit_unknown_size"`
}

type JanitorConfig struct {
	SweepIntervalMinutes int `toml:"sweep_interval_minutes" validate:"gt=0"`
	MaxFileAgeMinutes    int `toml:"max_file_age_minutes" validate:"gt=0"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telegram: TelegramConfig{
			Mode:               DefaultMode,
			PollTimeoutSeconds: DefaultPollTimeoutSeconds,
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Download: DownloadConfig{
			WorkDir:                DefaultWorkDir,
			YTDLPBinary:            DefaultYTDLPBinary,
			ResolveTimeoutSeconds:  DefaultResolveTimeoutSecs,
			DownloadTimeoutSeconds: DefaultDownloadTimeoutSecs,
		},
		Janitor: JanitorConfig{
			SweepIntervalMinutes: DefaultSweepIntervalMins,
			MaxFileAgeMinutes:    DefaultMaxFileAgeMins,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	if token := os.Getenv(EnvBotToken); token != "" {
		cfg.Telegram.BotToken = token
	}

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}
