// Package channel contains the dispatch adapters: one per delivery
// channel, each translating a rendered message into a provider call and
// normalizing the result to a provider message ID or an error. Adapters
// never touch persistence.
package channel

import (
	"context"
	"net/http"
	"time"

	"github.com/outflowhq/outflow-backend/internal/models"
)

// Adapter sends one rendered message to one address using a tenant's
// provider credential.
type Adapter interface {
	Channel() string
	Send(ctx context.Context, cred *models.Credential, address, content string) (providerMessageID string, err error)
}

// Registry holds the adapters keyed by channel, so adding a channel means
// registering an adapter rather than widening a switch.
type Registry map[string]Adapter

// NewRegistry builds the default adapter set sharing one HTTP client.
func NewRegistry() Registry {
	client := &http.Client{Timeout: 30 * time.Second}

	registry := Registry{}
	for _, adapter := range []Adapter{
		NewWhatsAppAdapter(client),
		NewEmailAdapter(),
		NewSMSAdapter(client),
		NewTelegramAdapter(),
	} {
		registry[adapter.Channel()] = adapter
	}
	return registry
}

// Get returns the adapter for a channel
func (r Registry) Get(channel string) (Adapter, bool) {
	adapter, ok := r[channel]
	return adapter, ok
}
