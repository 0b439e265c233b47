package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Analysis    AnalysisConfig    `yaml:"analysis" mapstructure:"analysis"`
	Geolocation GeolocationConfig `yaml:"geolocation" mapstructure:"geolocation"`
	Weather     WeatherConfig     `yaml:"weather" mapstructure:"weather"`
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// AnalysisConfig points at the remote risk-scoring service.
type AnalysisConfig struct {
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
}

// GeolocationConfig points at the IP geolocation service.
type GeolocationConfig struct {
	Endpoint      string `yaml:"endpoint" mapstructure:"endpoint"`
	RatePerMinute int    `yaml:"rate_per_minute" mapstructure:"rate_per_minute"`
}

// WeatherConfig holds the OpenWeatherMap settings.
type WeatherConfig struct {
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey   string `yaml:"api_key" mapstructure:"api_key"`
}

// HTTPConfig configures the outbound HTTP clients.
type HTTPConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout returns the client timeout. Zero means no timeout.
func (c HTTPConfig) Timeout() time.Duration {
	if c.TimeoutSecs <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSecs) * time.Second
}

// ServerConfig configures the local API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MAILCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("analysis.endpoint", "https://security-cheaker-backend.onrender.com/api/analyze")
	v.SetDefault("geolocation.endpoint", "http://ip-api.com/json")
	v.SetDefault("geolocation.rate_per_minute", 45)
	v.SetDefault("weather.endpoint", "https://api.openweathermap.org/data/2.5/weather")
	v.SetDefault("weather.api_key", "")
	v.SetDefault("http.timeout_secs", 30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the values every command depends on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Analysis.Endpoint) == "" {
		return eris.New("config: analysis.endpoint is required")
	}
	if strings.TrimSpace(c.Geolocation.Endpoint) == "" {
		return eris.New("config: geolocation.endpoint is required")
	}
	if strings.TrimSpace(c.Weather.Endpoint) == "" {
		return eris.New("config: weather.endpoint is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return eris.Errorf("config: invalid server.port %d", c.Server.Port)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
