package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix は環境変数による上書きの接頭辞です。例: GP_DATABASE_PASSWORD
const EnvPrefix = "GP"

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"server"`
	Database DatabaseConfig `yaml:"database" envconfig:"database"`
	Auth     AuthConfig     `yaml:"auth" envconfig:"auth"`
	Redis    RedisConfig    `yaml:"redis" envconfig:"redis"`
	Log      LogConfig      `yaml:"log" envconfig:"log"`
	Authz    AuthzConfig    `yaml:"authz" envconfig:"authz"`
}

// ServerConfig は HTTP API と gRPC ヘルスチェックのサーバー設定です。
type ServerConfig struct {
	HTTPAddr           string         `yaml:"http_addr" envconfig:"http_addr"`
	GRPCAddr           string         `yaml:"grpc_addr" envconfig:"grpc_addr"`
	Timezone           string         `yaml:"timezone" envconfig:"timezone"`
	RateLimitPerMinute int            `yaml:"rate_limit_per_minute" envconfig:"rate_limit_per_minute"`
	ReadTimeoutRaw     string         `yaml:"read_timeout" envconfig:"read_timeout"`
	WriteTimeoutRaw    string         `yaml:"write_timeout" envconfig:"write_timeout"`
	ShutdownTimeoutRaw string         `yaml:"shutdown_timeout" envconfig:"shutdown_timeout"`
	ReadTimeout        time.Duration  `yaml:"-" ignored:"true"`
	WriteTimeout       time.Duration  `yaml:"-" ignored:"true"`
	ShutdownTimeout    time.Duration  `yaml:"-" ignored:"true"`
	Location           *time.Location `yaml:"-" ignored:"true"`
}

// DatabaseConfig は PostgreSQL 接続に関する設定です。
type DatabaseConfig struct {
	Host               string        `yaml:"host" envconfig:"host"`
	Port               int           `yaml:"port" envconfig:"port"`
	User               string        `yaml:"user" envconfig:"user"`
	Password           string        `yaml:"password" envconfig:"password"`
	Name               string        `yaml:"name" envconfig:"name"`
	SSLMode            string        `yaml:"ssl_mode" envconfig:"ssl_mode"`
	MaxOpenConns       int           `yaml:"max_open_conns" envconfig:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns" envconfig:"max_idle_conns"`
	IsolationLevel     string        `yaml:"isolation_level" envconfig:"isolation_level"`
	ConnMaxLifetime    time.Duration `yaml:"-" ignored:"true"`
	ConnMaxIdleTime    time.Duration `yaml:"-" ignored:"true"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime" envconfig:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time" envconfig:"conn_max_idle_time"`
}

// AuthConfig はアクセストークン検証の設定です。
type AuthConfig struct {
	Secret string `yaml:"secret" envconfig:"secret"`
	Issuer string `yaml:"issuer" envconfig:"issuer"`
}

// RedisConfig は Actor キャッシュの設定です。Addr が空ならキャッシュを使いません。
type RedisConfig struct {
	Addr             string        `yaml:"addr" envconfig:"addr"`
	Password         string        `yaml:"password" envconfig:"password"`
	DB               int           `yaml:"db" envconfig:"db"`
	ActorCacheTTLRaw string        `yaml:"actor_cache_ttl" envconfig:"actor_cache_ttl"`
	ActorCacheTTL    time.Duration `yaml:"-" ignored:"true"`
}

// Enabled はキャッシュが有効かを返します。
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// LogConfig はロガーの設定です。
type LogConfig struct {
	Level  string `yaml:"level" envconfig:"level"`
	Format string `yaml:"format" envconfig:"format"`
}

// AuthzConfig はロール定義ファイルの設定です。PolicyPath が空なら組み込みの定義を使います。
type AuthzConfig struct {
	PolicyPath string `yaml:"policy_path" envconfig:"policy_path"`
}

// Load は指定されたパスから設定ファイルを読み込み、環境変数で上書きします。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: apply env: %w", err)
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validateAndNormalize() error {
	if err := c.Server.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Database.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Auth.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Redis.validateAndNormalize(); err != nil {
		return err
	}
	c.Log.normalize()
	c.Authz.PolicyPath = strings.TrimSpace(c.Authz.PolicyPath)
	return nil
}

func (s *ServerConfig) validateAndNormalize() error {
	if s.HTTPAddr == "" {
		return fmt.Errorf("config: server.http_addr must be set")
	}
	if s.GRPCAddr == "" {
		return fmt.Errorf("config: server.grpc_addr must be set")
	}
	if s.RateLimitPerMinute < 0 {
		return fmt.Errorf("config: server.rate_limit_per_minute must not be negative")
	}

	var err error
	if s.ReadTimeout, err = parseDurationOr(s.ReadTimeoutRaw, 15*time.Second); err != nil {
		return fmt.Errorf("config: server.read_timeout: %w", err)
	}
	if s.WriteTimeout, err = parseDurationOr(s.WriteTimeoutRaw, 15*time.Second); err != nil {
		return fmt.Errorf("config: server.write_timeout: %w", err)
	}
	if s.ShutdownTimeout, err = parseDurationOr(s.ShutdownTimeoutRaw, 10*time.Second); err != nil {
		return fmt.Errorf("config: server.shutdown_timeout: %w", err)
	}

	if s.Timezone == "" {
		s.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return fmt.Errorf("config: server.timezone: %w", err)
	}
	s.Location = loc

	return nil
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: database.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	d.IsolationLevel = strings.ToLower(strings.TrimSpace(d.IsolationLevel))
	switch d.IsolationLevel {
	case "":
		d.IsolationLevel = "read_committed"
	case "read_committed", "repeatable_read", "serializable":
	default:
		return fmt.Errorf("config: database.isolation_level must be one of read_committed, repeatable_read, serializable")
	}

	lifetime, err := parseDurationOr(d.ConnMaxLifetimeRaw, 0)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationOr(d.ConnMaxIdleTimeRaw, 0)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	return nil
}

func (a *AuthConfig) validateAndNormalize() error {
	if a.Secret == "" {
		return fmt.Errorf("config: auth.secret must be set")
	}
	if len(a.Secret) < 32 {
		return fmt.Errorf("config: auth.secret must be at least 32 bytes")
	}
	if a.Issuer == "" {
		a.Issuer = "gestion-presence"
	}
	return nil
}

func (r *RedisConfig) validateAndNormalize() error {
	ttl, err := parseDurationOr(r.ActorCacheTTLRaw, time.Minute)
	if err != nil {
		return fmt.Errorf("config: redis.actor_cache_ttl: %w", err)
	}
	if ttl <= 0 {
		return fmt.Errorf("config: redis.actor_cache_ttl must be positive")
	}
	r.ActorCacheTTL = ttl
	return nil
}

func (l *LogConfig) normalize() {
	l.Level = strings.ToLower(strings.TrimSpace(l.Level))
	if l.Level == "" {
		l.Level = "info"
	}
	l.Format = strings.ToLower(strings.TrimSpace(l.Format))
	if l.Format == "" {
		l.Format = "json"
	}
}

func parseDurationOr(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d, nil
}

// DSN は pgx 用の接続文字列を返します。認証情報はエスケープされます。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}
