package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Downloads DownloadsConfig
	Subtitles SubtitlesConfig
	Engine    EngineConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DownloadsConfig struct {
	Dir                 string
	MaxConcurrent       int
	DefaultVideoQuality string
	DefaultAudioFormat  string
	DefaultAudioQuality string
	// PollIntervalMS bounds how quickly a worker notices a
	// cancellation request while waiting for a slot.
	PollIntervalMS int
}

type SubtitlesConfig struct {
	Dir      string
	Format   string
	MaxChars int
}

type EngineConfig struct {
	// BinPath is the yt-dlp executable used for metadata and
	// subtitle probes.
	BinPath string
	// ProbeTimeoutSeconds bounds metadata/support probes.
	ProbeTimeoutSeconds int
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("downloads.dir", "./downloads")
	viper.SetDefault("downloads.max_concurrent", 3)
	viper.SetDefault("downloads.default_video_quality", "best")
	viper.SetDefault("downloads.default_audio_format", "mp3")
	viper.SetDefault("downloads.default_audio_quality", "192")
	viper.SetDefault("downloads.poll_interval_ms", 100)
	viper.SetDefault("subtitles.dir", "./downloads/subtitles")
	viper.SetDefault("subtitles.format", "vtt")
	viper.SetDefault("subtitles.max_chars", 50000)
	viper.SetDefault("engine.bin_path", "yt-dlp")
	viper.SetDefault("engine.probe_timeout_seconds", 60)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		Downloads: DownloadsConfig{
			Dir:                 viper.GetString("downloads.dir"),
			MaxConcurrent:       viper.GetInt("downloads.max_concurrent"),
			DefaultVideoQuality: viper.GetString("downloads.default_video_quality"),
			DefaultAudioFormat:  viper.GetString("downloads.default_audio_format"),
			DefaultAudioQuality: viper.GetString("downloads.default_audio_quality"),
			PollIntervalMS:      viper.GetInt("downloads.poll_interval_ms"),
		},
		Subtitles: SubtitlesConfig{
			Dir:      viper.GetString("subtitles.dir"),
			Format:   viper.GetString("subtitles.format"),
			MaxChars: viper.GetInt("subtitles.max_chars"),
		},
		Engine: EngineConfig{
			BinPath:             viper.GetString("engine.bin_path"),
			ProbeTimeoutSeconds: viper.GetInt("engine.probe_timeout_seconds"),
		},
	}

	return cfg, nil
}
