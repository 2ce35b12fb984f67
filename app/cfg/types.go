package cfg

type Cfg struct {
	// Database configuration
	DBPath string

	// Application configuration
	ChannelsDir       string
	Port              string
	DownloadDir       string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// External sources
	YouTubeAPIKey string
	FeedTimeout   int
	ProbeTimeout  int
	MaxHeight     int

	// Notifications
	TelegramBotToken string
	TelegramChatID   string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
