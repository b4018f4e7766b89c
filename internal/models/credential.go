package models

import "encoding/json"

// Credential is a tenant's provider configuration for one channel.
// Issuance and encryption are handled outside the engine; the dispatch
// adapters receive the config blob opaquely and decode their own shape.
type Credential struct {
	ID      int64           `json:"id"`
	OwnerID int64           `json:"owner_id"`
	Channel string          `json:"channel"`
	Config  json.RawMessage `json:"config"`
	Active  bool            `json:"active"`
}
