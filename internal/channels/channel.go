// internal/channels/channel.go
package channels

import (
	"context"
	"fmt"
	"strings"

	"merithire-engine/internal/models"
)

// Message is one outbound delivery unit: a single alert for instant sends,
// or a batch of alerts for digest and deferred-push sends.
type Message struct {
	Recipient  string
	Subject    string
	Body       string
	Kind       models.DeliveryKind
	AlertCount int
}

// Channel is one concrete delivery transport. Send returns nil only when
// the provider accepted the message; any non-nil error means not delivered.
type Channel interface {
	Name() models.Channel
	Provider() string
	Send(ctx context.Context, msg *Message) error
}

// ==========================
// Message templates
// ==========================

var templateMap = map[string]map[string]string{
	"instant": {
		"subject": "New job match: {{jobTitle}}",
		"body":    "A new job matching your saved search \"{{query}}\" was posted: {{jobTitle}}.",
	},
	"digest": {
		"subject": "{{count}} new job matches for \"{{query}}\"",
		"body":    "Your saved search \"{{query}}\" has {{count}} new matches since your last digest:\n{{items}}",
	},
}

// BuildInstant renders the single-alert message for a saved search.
func BuildInstant(search *models.SavedSearch, alert *models.JobAlert, recipient string) *Message {
	data := map[string]interface{}{
		"jobTitle": alert.JobTitle,
		"query":    search.Query,
	}
	tmpl := templateMap["instant"]
	return &Message{
		Recipient:  recipient,
		Subject:    renderTemplate(tmpl["subject"], data),
		Body:       renderTemplate(tmpl["body"], data),
		Kind:       models.KindInstant,
		AlertCount: 1,
	}
}

// BuildDigest renders one batched message for every pending alert of a
// saved search. Alerts keep their creation order in the item list.
func BuildDigest(search *models.SavedSearch, alerts []*models.JobAlert, recipient string) *Message {
	return BuildBatch(search, alerts, recipient, models.KindDigest)
}

// BuildBatch is the digest template with an explicit kind, for instant
// batches (in-app, deferred push) that share the batched shape.
func BuildBatch(search *models.SavedSearch, alerts []*models.JobAlert, recipient string, kind models.DeliveryKind) *Message {
	var items strings.Builder
	for _, a := range alerts {
		items.WriteString("- ")
		items.WriteString(a.JobTitle)
		items.WriteString("\n")
	}
	data := map[string]interface{}{
		"count": len(alerts),
		"query": search.Query,
		"items": strings.TrimRight(items.String(), "\n"),
	}
	tmpl := templateMap["digest"]
	return &Message{
		Recipient:  recipient,
		Subject:    renderTemplate(tmpl["subject"], data),
		Body:       renderTemplate(tmpl["body"], data),
		Kind:       kind,
		AlertCount: len(alerts),
	}
}

// Simplified template rendering with placeholder removal for missing values
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl

	// First, replace all known placeholders
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if i, ok := v.(int); ok {
			value = fmt.Sprintf("%d", i)
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, placeholder, value)
	}

	// Remove any remaining placeholders (missing values)
	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}

	return result
}
