// internal/models/alert.go
package models

import "time"

// Channel identifies one of the closed set of delivery channels.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelInApp Channel = "inapp"
	ChannelPush  Channel = "push"
)

// Channels lists every channel in delivery order. Runs iterate this slice so
// audit-log ordering stays deterministic.
var Channels = []Channel{ChannelEmail, ChannelInApp, ChannelPush}

// DigestCadence controls how often a saved search's matches are batched.
type DigestCadence string

const (
	CadenceInstant DigestCadence = "instant"
	CadenceDaily   DigestCadence = "daily"
	CadenceWeekly  DigestCadence = "weekly"
)

// SavedSearch is a per-user standing query with per-channel delivery flags.
type SavedSearch struct {
	ID           string        `json:"id"`
	UserID       string        `json:"userId"`
	Query        string        `json:"query"`
	EmailEnabled bool          `json:"emailEnabled"`
	InAppEnabled bool          `json:"inAppEnabled"`
	PushEnabled  bool          `json:"pushEnabled"`
	PushDeferred bool          `json:"pushDeferred"`
	Cadence      DigestCadence `json:"cadence"`
	DigestHour   int           `json:"digestHour"` // 0-23, local
	LastDigestAt *time.Time    `json:"lastDigestAt"`
}

// ChannelEnabled reports whether the given channel is switched on.
func (s *SavedSearch) ChannelEnabled(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return s.EmailEnabled
	case ChannelInApp:
		return s.InAppEnabled
	case ChannelPush:
		return s.PushEnabled
	}
	return false
}

// AnyChannelEnabled reports whether the search participates in delivery at all.
func (s *SavedSearch) AnyChannelEnabled() bool {
	return s.EmailEnabled || s.InAppEnabled || s.PushEnabled
}

// JobAlert is one record per unique (user, saved search, job) triple, produced
// by the external matching collaborator. The per-channel sent timestamps are
// the only mutable delivery state: they transition nil -> set, never back.
type JobAlert struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	SearchID    string     `json:"searchId"`
	JobID       string     `json:"jobId"`
	JobTitle    string     `json:"jobTitle"`
	EmailSentAt *time.Time `json:"emailSentAt"`
	InAppSentAt *time.Time `json:"inAppSentAt"`
	PushSentAt  *time.Time `json:"pushSentAt"`
	ReadAt      *time.Time `json:"readAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// SentAt returns the sent timestamp for the given channel.
func (a *JobAlert) SentAt(ch Channel) *time.Time {
	switch ch {
	case ChannelEmail:
		return a.EmailSentAt
	case ChannelInApp:
		return a.InAppSentAt
	case ChannelPush:
		return a.PushSentAt
	}
	return nil
}

// PendingOn reports whether the alert is still undelivered on ch for the
// owning search: the channel must be enabled and the sent timestamp nil.
func (a *JobAlert) PendingOn(s *SavedSearch, ch Channel) bool {
	return s.ChannelEnabled(ch) && a.SentAt(ch) == nil
}

// DeliveryKind distinguishes per-alert sends from batched digest sends.
type DeliveryKind string

const (
	KindInstant DeliveryKind = "instant"
	KindDigest  DeliveryKind = "digest"
)

// DeliveryLog is an append-only audit record, one row per delivery attempt.
type DeliveryLog struct {
	ID         string       `json:"id"`
	SearchID   string       `json:"searchId"`
	Channel    Channel      `json:"channel"`
	Kind       DeliveryKind `json:"kind"`
	Provider   string       `json:"provider"`
	Accepted   bool         `json:"accepted"`
	Recipient  string       `json:"recipient"`
	Payload    string       `json:"payload"` // message snapshot
	AlertCount int          `json:"alertCount"`
	Error      string       `json:"error,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
}
