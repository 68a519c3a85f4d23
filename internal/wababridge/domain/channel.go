package domain

// Channel is one provisioned WhatsApp number bound to the Gupshup BSP.
// Channels are administered elsewhere; the bridge only reads them, keyed
// by the (tenant, webhook token) pair carried in webhook URLs.
type Channel struct {
	ID           int64
	Name         string
	Number       string // source phone number, international format without "+"
	APIKey       string
	AppName      string
	WebhookToken string
	TenantID     int64
	Status       string
	IsDefault    bool
}

// ChannelTag identifies messages bridged through this BSP when resolving
// tickets shared with other transport kinds.
const ChannelTag = "waba_gupshup"
