package config

import (
	"fmt"
	"strconv"

	"github.com/spf13/viper"
)

// Config is the root configuration, loaded once at startup and passed
// explicitly to every component.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Discord     DiscordConfig     `mapstructure:"discord"`
	Roles       RolesConfig       `mapstructure:"roles"`
	Submissions SubmissionsConfig `mapstructure:"submissions"`
	IPCheck     IPCheckConfig     `mapstructure:"ipcheck"`
	Logger      LoggerConfig      `mapstructure:"logger"`
}

type ServerConfig struct {
	ListenAddr    string `mapstructure:"listen_addr"`
	BaseURL       string `mapstructure:"base_url"`
	SessionSecret string `mapstructure:"session_secret"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds the PostgreSQL connection string for gorm.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		d.Host, d.User, d.Password, d.DBName, d.Port, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Discord application and bot credentials.
type DiscordConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
	BotToken     string `mapstructure:"bot_token"`
	GuildID      string `mapstructure:"guild_id"`
}

// RolesConfig holds the staff and admin allow-lists. Staff may review and
// decide appeals; admins additionally see the admin panel.
type RolesConfig struct {
	Staff  []string `mapstructure:"staff"`
	Admins []string `mapstructure:"admins"`
}

// StaffSet returns the staff allow-list as a Discord-id lookup set.
// Admins are implicitly staff.
func (r RolesConfig) StaffSet() map[int64]struct{} {
	set := parseIDSet(r.Staff)
	for id := range parseIDSet(r.Admins) {
		set[id] = struct{}{}
	}
	return set
}

// AdminSet returns the admin allow-list as a Discord-id lookup set.
func (r RolesConfig) AdminSet() map[int64]struct{} {
	return parseIDSet(r.Admins)
}

func parseIDSet(raw []string) map[int64]struct{} {
	out := make(map[int64]struct{})
	for _, entry := range raw {
		id, err := strconv.ParseInt(entry, 10, 64)
		if err != nil {
			continue
		}
		out[id] = struct{}{}
	}
	return out
}

type SubmissionsConfig struct {
	Open          bool   `mapstructure:"open"`
	ClosedMessage string `mapstructure:"closed_message"`
	RatePerMinute int    `mapstructure:"rate_per_minute"`
}

type IPCheckConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

type LoggerConfig struct {
	Directory string            `mapstructure:"directory"`
	Rotation  LogRotationConfig `mapstructure:"rotation"`
}

type LogRotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// Load reads the YAML config file, applies defaults, and lets environment
// variables override individual keys.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("BANAPPEALS")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if cfg.Server.SessionSecret == "" {
		return nil, fmt.Errorf("server.session_secret is required")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.base_url", "http://localhost:8080")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("submissions.open", true)
	v.SetDefault("submissions.closed_message", "Appeals are currently closed.")
	v.SetDefault("submissions.rate_per_minute", 3)

	v.SetDefault("ipcheck.enabled", false)

	v.SetDefault("logger.directory", "logs")
	v.SetDefault("logger.rotation.max_size", 10)
	v.SetDefault("logger.rotation.max_backups", 30)
	v.SetDefault("logger.rotation.max_age", 90)
	v.SetDefault("logger.rotation.compress", true)
}
