package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type RateConfig struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

type PresenceConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type Config struct {
	Mode         string         `mapstructure:"mode"`
	Port         int            `mapstructure:"port"`
	StaticPath   string         `mapstructure:"static_path"`
	ReadLimit    int64          `mapstructure:"read_limit"`
	PingPeriod   time.Duration  `mapstructure:"ping_period"`
	WriteTimeout time.Duration  `mapstructure:"write_timeout"`
	SendBuffer   int            `mapstructure:"send_buffer"`
	Secret       string         `mapstructure:"secret"`
	LogLevel     string         `mapstructure:"log_level"`
	GroupMax     int            `mapstructure:"group_max"`
	Backpressure string         `mapstructure:"backpressure"`
	DMRate       RateConfig     `mapstructure:"dm_rate"`
	Presence     PresenceConfig `mapstructure:"presence"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("write_timeout", "5s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("secret", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("group_max", 4)
	v.SetDefault("backpressure", "drop")
	v.SetDefault("dm_rate.limit", 10)
	v.SetDefault("dm_rate.interval", "10s")
	v.SetDefault("presence.driver", "memory")
	v.SetDefault("presence.dsn", "convo.db")
}

// Load reads config/config.<CONFIG_ENV>.yaml over the defaults. Env
// vars CONVO_<KEY> override both; PORT is honored for the listen port.
// When the file exists it is watched and log_level changes apply live.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	setDefaults(v)
	v.SetEnvPrefix("convo")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("port", "CONVO_PORT", "PORT")

	fileLoaded := false
	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		fileLoaded = true
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyLogLevel(); err != nil {
		log.Warn().Err(err).Str("module", "config").Msg("keeping current log level")
	}

	if fileLoaded {
		v.OnConfigChange(func(e fsnotify.Event) {
			next, err := decode(v)
			if err != nil {
				log.Error().Err(err).Str("module", "config").Msg("reload")
				return
			}
			if err := next.ApplyLogLevel(); err != nil {
				log.Warn().Err(err).Str("module", "config").Msg("reload log level")
				return
			}
			log.Info().Str("module", "config").Str("file", e.Name).Str("log_level", next.LogLevel).Msg("config reloaded")
		})
		v.WatchConfig()
	}

	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("config ready")
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// ApplyLogLevel sets the zerolog global level from LogLevel.
func (c *Config) ApplyLogLevel() error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}
