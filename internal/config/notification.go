package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// NotificationConfig drives reminder scheduling and message rendering.
type NotificationConfig struct {
	Offsets   NotificationOffsets `mapstructure:"offsets"`
	SendHour  int                 `mapstructure:"sendHour"`
	Timezone  string              `mapstructure:"timezone"`
	Templates map[string]string   `mapstructure:"templates"`
	RateLimit NotificationLimit   `mapstructure:"rateLimit"`
}

// NotificationOffsets are day offsets relative to the charge due date.
type NotificationOffsets struct {
	PreDue  int `mapstructure:"preDue"`
	OnDue   int `mapstructure:"onDue"`
	PostDue int `mapstructure:"postDue"`
}

// NotificationLimit caps outbound messages per company.
type NotificationLimit struct {
	PerSecond float64 `mapstructure:"perSecond"`
	Burst     int     `mapstructure:"burst"`
}

func DefaultNotificationConfig() NotificationConfig {
	return NotificationConfig{
		Offsets:  NotificationOffsets{PreDue: -3, OnDue: 0, PostDue: 3},
		SendHour: 9,
		Timezone: "America/Sao_Paulo",
		Templates: map[string]string{
			"pre_due":  "Olá {{.ClientName}}, sua mensalidade de {{.Amount}} vence em {{.DueDate}}. Pague em: {{.CheckoutURL}}",
			"on_due":   "Olá {{.ClientName}}, sua mensalidade de {{.Amount}} vence hoje ({{.DueDate}}). Pague em: {{.CheckoutURL}}",
			"post_due": "Olá {{.ClientName}}, identificamos que a mensalidade de {{.Amount}} vencida em {{.DueDate}} está em aberto. Regularize em: {{.CheckoutURL}}",
			"paid":     "Olá {{.ClientName}}, recebemos seu pagamento de {{.Amount}}. Obrigado!",
			"manual":   "{{.Message}}",
		},
		RateLimit: NotificationLimit{PerSecond: 1, Burst: 5},
	}
}

type NotificationConfigHolder struct {
	current atomic.Value // holds NotificationConfig
}

func NewNotificationConfigHolder() (*NotificationConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("notifications")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/vehicleguard")
	v.AddConfigPath(".")

	v.SetEnvPrefix("VEHICLEGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultNotificationConfig()
	v.SetDefault("notifications.offsets.preDue", defaults.Offsets.PreDue)
	v.SetDefault("notifications.offsets.onDue", defaults.Offsets.OnDue)
	v.SetDefault("notifications.offsets.postDue", defaults.Offsets.PostDue)
	v.SetDefault("notifications.sendHour", defaults.SendHour)
	v.SetDefault("notifications.timezone", defaults.Timezone)
	v.SetDefault("notifications.templates", defaults.Templates)
	v.SetDefault("notifications.rateLimit.perSecond", defaults.RateLimit.PerSecond)
	v.SetDefault("notifications.rateLimit.burst", defaults.RateLimit.Burst)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg NotificationConfig
	if err := v.UnmarshalKey("notifications", &cfg); err != nil {
		return nil, err
	}
	cfg = mergeTemplateDefaults(cfg, defaults)
	if err := validateNotificationConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticNotificationConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated NotificationConfig
		if err := v.UnmarshalKey("notifications", &updated); err != nil {
			log.Printf("[notification-config] reload failed: %v", err)
			return
		}
		updated = mergeTemplateDefaults(updated, defaults)
		if err := validateNotificationConfig(updated); err != nil {
			log.Printf("[notification-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[notification-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticNotificationConfigHolder wraps a fixed config without file watching.
func NewStaticNotificationConfigHolder(cfg NotificationConfig) *NotificationConfigHolder {
	holder := &NotificationConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *NotificationConfigHolder) Get() NotificationConfig {
	if h == nil {
		return DefaultNotificationConfig()
	}
	return h.current.Load().(NotificationConfig)
}

func mergeTemplateDefaults(cfg NotificationConfig, defaults NotificationConfig) NotificationConfig {
	merged := make(map[string]string, len(defaults.Templates))
	for key, value := range defaults.Templates {
		merged[key] = value
	}
	for key, value := range cfg.Templates {
		key = strings.ToLower(strings.TrimSpace(key))
		if strings.TrimSpace(value) == "" {
			continue
		}
		merged[key] = value
	}
	cfg.Templates = merged
	return cfg
}

func validateNotificationConfig(cfg NotificationConfig) error {
	if cfg.Offsets.PreDue > 0 {
		return errors.New("notifications.offsets.preDue must be zero or negative")
	}
	if cfg.Offsets.PostDue < 0 {
		return errors.New("notifications.offsets.postDue must be zero or positive")
	}
	if cfg.SendHour < 0 || cfg.SendHour > 23 {
		return fmt.Errorf("notifications.sendHour out of range: %d", cfg.SendHour)
	}
	if cfg.RateLimit.PerSecond < 0 || cfg.RateLimit.Burst < 0 {
		return errors.New("notifications.rateLimit cannot be negative")
	}
	return nil
}
