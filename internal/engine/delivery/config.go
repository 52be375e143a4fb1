// internal/engine/delivery/config.go
package delivery

import (
	"fmt"
	"time"
)

// Digest cadence intervals. A digest is due only when both the hour gate
// and the elapsed interval allow it.
const (
	dailyInterval  = 24 * time.Hour
	weeklyInterval = 7 * 24 * time.Hour
)

type Config struct {
	Location      *time.Location // digest hour gate is evaluated in this zone
	ProviderRPS   float64
	ProviderBurst int
}

func LoadConfig(timezone string, providerRPS float64, providerBurst int) (*Config, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	if providerRPS <= 0 {
		providerRPS = 10
	}
	if providerBurst <= 0 {
		providerBurst = 5
	}
	return &Config{
		Location:      loc,
		ProviderRPS:   providerRPS,
		ProviderBurst: providerBurst,
	}, nil
}
