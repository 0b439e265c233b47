package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://security-cheaker-backend.onrender.com/api/analyze", cfg.Analysis.Endpoint)
	assert.Equal(t, "http://ip-api.com/json", cfg.Geolocation.Endpoint)
	assert.Equal(t, 45, cfg.Geolocation.RatePerMinute)
	assert.Equal(t, "https://api.openweathermap.org/data/2.5/weather", cfg.Weather.Endpoint)
	assert.Empty(t, cfg.Weather.APIKey)
	assert.Equal(t, 30, cfg.HTTP.TimeoutSecs)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
analysis:
  endpoint: http://localhost:5000/api/analyze
weather:
  api_key: owm-key
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000/api/analyze", cfg.Analysis.Endpoint)
	assert.Equal(t, "owm-key", cfg.Weather.APIKey)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, "https://api.openweathermap.org/data/2.5/weather", cfg.Weather.Endpoint)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
weather:
  api_key: from-file
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("MAILCHECK_WEATHER_API_KEY", "from-env")
	t.Setenv("MAILCHECK_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Weather.APIKey)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("MAILCHECK_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadInvalidPort(t *testing.T) {
	chdirTemp(t)

	t.Setenv("MAILCHECK_SERVER_PORT", "-1")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unterminated"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func validDefaults() *Config {
	return &Config{
		Analysis:    AnalysisConfig{Endpoint: "http://analysis"},
		Geolocation: GeolocationConfig{Endpoint: "http://geo"},
		Weather:     WeatherConfig{Endpoint: "http://weather"},
		Server:      ServerConfig{Port: 8080},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing analysis", mutate: func(c *Config) { c.Analysis.Endpoint = " " }, wantErr: "analysis.endpoint"},
		{name: "missing geolocation", mutate: func(c *Config) { c.Geolocation.Endpoint = "" }, wantErr: "geolocation.endpoint"},
		{name: "missing weather", mutate: func(c *Config) { c.Weather.Endpoint = "" }, wantErr: "weather.endpoint"},
		{name: "zero port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port"},
		{name: "port too large", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "server.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHTTPTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, HTTPConfig{TimeoutSecs: 30}.Timeout())
	assert.Equal(t, time.Duration(0), HTTPConfig{TimeoutSecs: 0}.Timeout())
	assert.Equal(t, time.Duration(0), HTTPConfig{TimeoutSecs: -5}.Timeout())
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
