package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"facility-reports/internal/aggregate"
	"facility-reports/internal/report"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	API      APIConfig      `mapstructure:"api"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Assets   AssetsConfig   `mapstructure:"assets"`
	Charts   ChartsConfig   `mapstructure:"charts"`
	Report   ReportConfig   `mapstructure:"report"`
	Company  CompanyConfig  `mapstructure:"company"`
	Log      LogConfig      `mapstructure:"log"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type APIConfig struct {
	Port    int  `mapstructure:"port"`
	Enabled bool `mapstructure:"enabled"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
}

// AssetsConfig tunes the photo and logo downloader.
type AssetsConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	Retries        int           `mapstructure:"retries"`
	RetryWait      time.Duration `mapstructure:"retry_wait"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	MaxBytes       int64         `mapstructure:"max_bytes"`
}

type ChartsConfig struct {
	Width          int           `mapstructure:"width"`
	Height         int           `mapstructure:"height"`
	Kind           string        `mapstructure:"kind"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type ReportConfig struct {
	Locale            string `mapstructure:"locale"`
	TemplatePath      string `mapstructure:"template_path"`
	DefaultPointLimit int    `mapstructure:"default_point_limit"`
}

// CompanyConfig identifies the provider issuing the reports.
type CompanyConfig struct {
	Name     string `mapstructure:"name"`
	Document string `mapstructure:"document"`
	Address  string `mapstructure:"address"`
	Phone    string `mapstructure:"phone"`
	Email    string `mapstructure:"email"`
	LogoURL  string `mapstructure:"logo_url"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configPath, or config.yaml from the working directory or
// /etc/facility-reports when configPath is empty. A missing file is not an
// error. FACILITY_* environment variables override file values, e.g.
// FACILITY_API_PORT.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/facility-reports")
	}

	v.SetEnvPrefix("FACILITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("database.path", "./facility-reports.db")
	v.SetDefault("api.port", 8045)
	v.SetDefault("api.enabled", true)
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic_prefix", "facility")
	v.SetDefault("mqtt.client_id", "facility-reports")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("assets.timeout", "10s")
	v.SetDefault("assets.retries", 2)
	v.SetDefault("assets.retry_wait", "200ms")
	v.SetDefault("assets.max_concurrency", 4)
	v.SetDefault("assets.max_bytes", 10<<20)
	v.SetDefault("charts.width", 800)
	v.SetDefault("charts.height", 400)
	v.SetDefault("charts.kind", string(report.ChartLine))
	v.SetDefault("charts.max_concurrency", 4)
	v.SetDefault("charts.timeout", "10s")
	v.SetDefault("report.locale", string(aggregate.DefaultLocale))
	v.SetDefault("report.template_path", "")
	v.SetDefault("report.default_point_limit", 5)
	v.SetDefault("company.name", "")
	v.SetDefault("company.document", "")
	v.SetDefault("company.address", "")
	v.SetDefault("company.phone", "")
	v.SetDefault("company.email", "")
	v.SetDefault("company.logo_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Database.Path != "", "database.path is required")
	check(!c.API.Enabled || (c.API.Port > 0 && c.API.Port <= 65535), "api.port %d out of range", c.API.Port)
	check(!c.MQTT.Enabled || c.MQTT.Broker != "", "mqtt.broker is required when mqtt is enabled")
	check(c.Assets.Timeout > 0, "assets.timeout must be positive")
	check(c.Assets.Retries >= 0, "assets.retries must not be negative")
	check(c.Assets.MaxConcurrency > 0, "assets.max_concurrency must be positive")
	check(c.Assets.MaxBytes > 0, "assets.max_bytes must be positive")
	check(c.Charts.Width > 0 && c.Charts.Height > 0, "charts.width and charts.height must be positive")
	_, kindOK := report.ValidChartKinds[report.ChartKind(c.Charts.Kind)]
	check(kindOK, "charts.kind %q is not one of bar, line, area", c.Charts.Kind)
	check(c.Charts.MaxConcurrency > 0, "charts.max_concurrency must be positive")
	check(c.Charts.Timeout > 0, "charts.timeout must be positive")
	check(aggregate.ValidLocale(aggregate.Locale(c.Report.Locale)), "report.locale %q is not supported", c.Report.Locale)
	check(c.Report.DefaultPointLimit > 0, "report.default_point_limit must be positive")
	check(c.Log.Format == "json" || c.Log.Format == "console", "log.format %q is not one of json, console", c.Log.Format)

	return errors.Join(errs...)
}

// Company converts the configured provider into report data.
func (c CompanyConfig) Company() report.CompanyInfo {
	return report.CompanyInfo{
		Name:     c.Name,
		Document: c.Document,
		Address:  c.Address,
		Phone:    c.Phone,
		Email:    c.Email,
		LogoURL:  c.LogoURL,
	}
}
