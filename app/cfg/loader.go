package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./streamwatch.db" description:"Path to the SQLite database file"`

	// Application configuration
	ChannelsDir       string `long:"channels-dir" env:"CHANNELS_DIR" default:"./channels" description:"Directory containing channel configuration files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	DownloadDir       string `long:"download-dir" env:"DOWNLOAD_DIR" default:"./downloads" description:"Base directory for downloaded media"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for polling and downloads"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"10" description:"Scheduler tick interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// External sources
	YouTubeAPIKey string `long:"youtube-api-key" env:"YOUTUBE_API_KEY" description:"YouTube Data API key (optional, quota-limited primary source)"`
	FeedTimeout   int    `long:"feed-timeout" env:"FEED_TIMEOUT" default:"10" description:"Channel RSS feed request timeout in seconds"`
	ProbeTimeout  int    `long:"probe-timeout" env:"PROBE_TIMEOUT" default:"15" description:"Live status probe timeout in seconds"`
	MaxHeight     int    `long:"max-height" env:"MAX_HEIGHT" default:"2160" description:"Resolution cap for high quality downloads"`

	// Notifications
	TelegramBotToken string `long:"telegram-bot-token" env:"TELEGRAM_BOT_TOKEN" description:"Telegram bot token for notifications (optional)"`
	TelegramChatID   string `long:"telegram-chat-id" env:"TELEGRAM_CHAT_ID" description:"Telegram chat ID for notifications (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Streamwatch/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Asia/Seoul)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		ChannelsDir:       raw.ChannelsDir,
		Port:              raw.Port,
		DownloadDir:       raw.DownloadDir,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		APIAccessKey:      raw.APIAccessKey,
		YouTubeAPIKey:     raw.YouTubeAPIKey,
		FeedTimeout:       raw.FeedTimeout,
		ProbeTimeout:      raw.ProbeTimeout,
		MaxHeight:         raw.MaxHeight,
		TelegramBotToken:  raw.TelegramBotToken,
		TelegramChatID:    raw.TelegramChatID,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// SetForTesting replaces the global configuration. Test helper only.
func SetForTesting(c *Cfg) {
	globalCfg = c
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
