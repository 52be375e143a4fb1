// internal/engine/submission/config.go
package submission

import "time"

type Config struct {
	ProfileCacheTTL time.Duration
}

func LoadConfig() *Config {
	return &Config{
		ProfileCacheTTL: 10 * time.Minute,
	}
}
