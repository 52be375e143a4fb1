// internal/engine/pipeline/config.go
package pipeline

import "time"

type Config struct {
	// Age thresholds for stage rules.
	InterviewAfter   time.Duration // Applied -> Interview when fit is decent
	RejectAfter      time.Duration // Applied -> Rejected when fit is poor
	OfferAfter       time.Duration // Interview -> Offer when fit is strong
	StaleRejectAfter time.Duration // Interview -> Rejected when fit is weak
}

func LoadConfig() *Config {
	return &Config{
		InterviewAfter:   4 * 24 * time.Hour,
		RejectAfter:      12 * 24 * time.Hour,
		OfferAfter:       10 * 24 * time.Hour,
		StaleRejectAfter: 21 * 24 * time.Hour,
	}
}
