package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ==================== 配置结构 ====================

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Remote  RemoteConfig  `mapstructure:"remote"`
	Local   LocalConfig   `mapstructure:"local"`
	Feed    FeedConfig    `mapstructure:"feed"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Console ConsoleConfig `mapstructure:"console"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Storage StorageConfig `mapstructure:"storage"`
	Upload  UploadConfig  `mapstructure:"upload"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// RemoteConfig 远端数据库
type RemoteConfig struct {
	DSN string `mapstructure:"dsn"`
}

// LocalConfig 设备本地 SQLite
type LocalConfig struct {
	Path string `mapstructure:"path"`
}

// FeedConfig 订单变更订阅
type FeedConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Channel           string        `mapstructure:"channel"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval"`
	SubscribeTimeout  time.Duration `mapstructure:"subscribe_timeout"`
}

// SyncConfig 全量同步
type SyncConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Schedule        string        `mapstructure:"schedule"`
	OrderLimit      int           `mapstructure:"order_limit"`
	RefreshCooldown time.Duration `mapstructure:"refresh_cooldown"`
}

type NotifyConfig struct {
	PushURL      string        `mapstructure:"push_url"`
	PushToken    string        `mapstructure:"push_token"`
	ToastTTL     time.Duration `mapstructure:"toast_ttl"`
	DefaultSound string        `mapstructure:"default_sound"`
}

type ConsoleConfig struct {
	RootURL        string `mapstructure:"root_url"`
	PassphraseHash string `mapstructure:"passphrase_hash"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// StorageConfig 对象存储，provider 为 s3 或 local
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	CDNDomain string `mapstructure:"cdn_domain"`
	BasePath  string `mapstructure:"base_path"`
	Endpoint  string `mapstructure:"endpoint"`
}

type UploadConfig struct {
	InlineWarnBytes int `mapstructure:"inline_warn_bytes"`
}

type LogConfig struct {
	Level        string `mapstructure:"level"`
	ActivitySize int    `mapstructure:"activity_size"`
}

// ==================== 加载 ====================

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("remote.dsn", "host=localhost user=postgres password=postgres dbname=shopfront port=5432 sslmode=disable TimeZone=UTC")
	v.SetDefault("local.path", "shopfront_local.db")

	v.SetDefault("feed.enabled", true)
	v.SetDefault("feed.channel", "orders_inserted")
	v.SetDefault("feed.reconnect_interval", 10*time.Second)
	v.SetDefault("feed.subscribe_timeout", 15*time.Second)

	v.SetDefault("sync.enabled", true)
	v.SetDefault("sync.schedule", "@every 30s")
	v.SetDefault("sync.order_limit", 100)
	v.SetDefault("sync.refresh_cooldown", 5*time.Second)

	// 空默认值也要登记，否则环境变量覆盖不会进入 Unmarshal
	v.SetDefault("notify.push_url", "")
	v.SetDefault("notify.push_token", "")
	v.SetDefault("notify.toast_ttl", 10*time.Second)
	v.SetDefault("notify.default_sound", "/static/sounds/new-order.mp3")

	v.SetDefault("console.root_url", "/console")
	v.SetDefault("console.passphrase_hash", "")

	v.SetDefault("auth.jwt_secret", "change-me")
	v.SetDefault("auth.token_ttl", 12*time.Hour)

	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.base_path", "./uploads")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.cdn_domain", "")
	v.SetDefault("storage.endpoint", "")

	v.SetDefault("upload.inline_warn_bytes", 512*1024)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.activity_size", 200)
}

// Load 读取配置：默认值 < 配置文件 < SHOPFRONT_ 环境变量
// path 为空时只用默认值和环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SHOPFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	return &cfg, nil
}
