package config

// ChannelConfig represents a complete channel configuration
type ChannelConfig struct {
	Channel  ChannelInfo     `yaml:"channel"`
	Settings ChannelSettings `yaml:"settings"`
}

// ChannelInfo contains basic channel information
type ChannelInfo struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// ChannelSettings contains channel monitoring settings
type ChannelSettings struct {
	Enabled       bool `yaml:"enabled"`
	CheckInterval int  `yaml:"check_interval"` // minutes
}
