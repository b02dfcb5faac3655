package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type ServiceConfig struct {
	Name   string `mapstructure:"name"`
	NodeID string `mapstructure:"node_id"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// RealtimeConfig drives the connection lifecycle: heartbeat staleness, the
// typing deadline, and the per-connection send buffer.
type RealtimeConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	StaleAfter        time.Duration `mapstructure:"stale_after"`
	CloseAfter        time.Duration `mapstructure:"close_after"`
	TypingTTL         time.Duration `mapstructure:"typing_ttl"`
	SendBuffer        int           `mapstructure:"send_buffer"`
}

type RegistryConfig struct {
	MailboxSize      int           `mapstructure:"mailbox_size"`
	DeliveryTimeout  time.Duration `mapstructure:"delivery_timeout"`
	EvictionInterval time.Duration `mapstructure:"eviction_interval"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
}

type BrokerConfig struct {
	AMQPURL string `mapstructure:"amqp_url"`
}

// SMSConfig and EmailConfig hold provider credentials. A channel whose
// credentials are empty is "not configured" and is skipped, not failed.
type SMSConfig struct {
	APIURL string `mapstructure:"api_url"`
	APIKey string `mapstructure:"api_key"`
	Sender string `mapstructure:"sender"`
}

type EmailConfig struct {
	APIURL string `mapstructure:"api_url"`
	APIKey string `mapstructure:"api_key"`
	From   string `mapstructure:"from"`
}

type NotifyConfig struct {
	SMS          SMSConfig   `mapstructure:"sms"`
	Email        EmailConfig `mapstructure:"email"`
	DirectoryURL string      `mapstructure:"directory_url"`
}

type AuthConfig struct {
	// Tokens maps a bearer token to a principal id. Stands in for the
	// platform auth service in standalone deployments.
	Tokens map[string]string `mapstructure:"tokens"`
}

type Config struct {
	Service  ServiceConfig  `mapstructure:"service"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Registry RegistryConfig `mapstructure:"registry"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Auth     AuthConfig     `mapstructure:"auth"`

	mu sync.RWMutex
}

// CurrentNotify returns the notification credentials as of the last reload.
// Provider credentials are the one section operators change at runtime, so
// reads go through here instead of the plain struct field.
func (c *Config) CurrentNotify() NotifyConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Notify
}

// CurrentAuth returns the token table as of the last reload.
func (c *Config) CurrentAuth() AuthConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Auth
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "shop-sync-service")
	v.SetDefault("http.addr", ":8090")
	v.SetDefault("realtime.heartbeat_interval", 25*time.Second)
	v.SetDefault("realtime.stale_after", 40*time.Second)
	v.SetDefault("realtime.close_after", 60*time.Second)
	v.SetDefault("realtime.typing_ttl", 2*time.Second)
	v.SetDefault("realtime.send_buffer", 256)
	v.SetDefault("registry.mailbox_size", 1024)
	v.SetDefault("registry.delivery_timeout", 500*time.Millisecond)
	v.SetDefault("registry.eviction_interval", 15*time.Minute)
	v.SetDefault("registry.idle_timeout", 30*time.Minute)
}

// LoadConfig builds the configuration from defaults, an optional YAML file,
// environment (SHOP_SYNC_*) and command-line flags, then watches the file
// for credential changes.
func LoadConfig() (*Config, error) {
	fs := pflag.NewFlagSet("shop-sync-service", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.String("config_file", "", "path to the configuration file")
	fs.String("http.addr", "", "HTTP listen address override")
	fs.String("service.node_id", "", "node identifier override")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("config: parse flags: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SHOP_SYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("config: bind flags: %w", err)
	}

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	// Every instance needs a stable-for-its-lifetime identity: bus consumers
	// name their queues after it and exported events carry it as origin.
	if cfg.Service.NodeID == "" {
		cfg.Service.NodeID = uuid.NewString()[:8]
	}

	if v.ConfigFileUsed() != "" {
		v.OnConfigChange(func(e fsnotify.Event) {
			fresh := Config{}
			if err := v.Unmarshal(&fresh); err != nil {
				slog.Warn("config reload failed", "file", e.Name, "error", err)
				return
			}
			cfg.mu.Lock()
			cfg.Notify = fresh.Notify
			cfg.Auth = fresh.Auth
			cfg.mu.Unlock()
			slog.Info("config reloaded", "file", e.Name)
		})
		v.WatchConfig()
	}

	return cfg, nil
}
