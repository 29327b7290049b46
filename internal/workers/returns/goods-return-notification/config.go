package goodsreturnnotification

import (
	"time"

	"returns-notifier/internal/common/config"
	"returns-notifier/internal/models"
)

type Config struct {
	Timeout         time.Duration
	PermitEvent     string
	DefaultLanguage string
}

// LoadConfig derives the worker settings from the application config.
func LoadConfig(cfg *config.Config) *Config {
	c := &Config{
		Timeout:         30 * time.Second,
		PermitEvent:     models.PermitGoodsReturn,
		DefaultLanguage: "en",
	}
	if cfg == nil {
		return c
	}

	if wcfg := config.GetWorkerConfig(cfg, TaskType); wcfg.Timeout > 0 {
		c.Timeout = config.GetDuration(wcfg.Timeout)
	}
	if cfg.Notifications.PermitEvent != "" {
		c.PermitEvent = cfg.Notifications.PermitEvent
	}
	if cfg.Notifications.DefaultLanguage != "" {
		c.DefaultLanguage = cfg.Notifications.DefaultLanguage
	}
	return c
}
