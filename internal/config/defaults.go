package config

import (
	"time"

	"github.com/spf13/viper"
)

// SetDefaults 设置所有配置项的默认值
func SetDefaults(v *viper.Viper) {
	// Gateway 配置
	v.SetDefault("gateway.port", 9502)
	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("gateway.allowed_origins", []string{})
	v.SetDefault("gateway.rate_limit.enabled", true)
	v.SetDefault("gateway.rate_limit.requests_per_minute", 120)
	v.SetDefault("gateway.rate_limit.burst", 20)
	v.SetDefault("gateway.rate_limit.idle_ttl", 10*time.Minute)

	// Realtime 配置
	v.SetDefault("realtime.connect_timeout", 2*time.Second)
	v.SetDefault("realtime.page_size", 500)
	v.SetDefault("realtime.atomic_claim", true)
	v.SetDefault("realtime.max_inflight", 8)
	v.SetDefault("realtime.frames_per_second", 10.0)
	v.SetDefault("realtime.burst", 20)

	// Storage 配置
	v.SetDefault("storage.path", "~/.mixchat/data.db")

	// Log 配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")

	// I18n 配置
	v.SetDefault("i18n.lang", "ru")
	v.SetDefault("i18n.override_file", "")
	v.SetDefault("i18n.watch", false)

	// Mail 配置
	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 25)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "noreply@mixchat.ru")
	v.SetDefault("mail.cc", "noreply@mixchat.ru")

	// Retention 配置
	v.SetDefault("retention.enabled", true)
	v.SetDefault("retention.schedule", "0 3 * * *")
	v.SetDefault("retention.max_age", 30*24*time.Hour)
}
