package models

// Contact is an audience member. Contact storage and search live outside
// this engine; the dispatch core only reads contacts and flips the
// subscription flag on opt-out.
type Contact struct {
	ID             int64    `json:"id"`
	OwnerID        int64    `json:"owner_id"`
	Name           string   `json:"name"`
	Phone          string   `json:"phone"`
	Email          string   `json:"email"`
	TelegramChatID string   `json:"telegram_chat_id"`
	Tags           []string `json:"tags"`
	Subscribed     bool     `json:"subscribed"`
}

// AddressFor returns the channel-specific delivery address. A contact
// lacking the address for a channel is ineligible for campaigns on it.
func (c *Contact) AddressFor(channel string) (string, bool) {
	var addr string
	switch channel {
	case ChannelWhatsApp, ChannelSMS:
		addr = c.Phone
	case ChannelEmail:
		addr = c.Email
	case ChannelTelegram:
		addr = c.TelegramChatID
	}
	return addr, addr != ""
}
