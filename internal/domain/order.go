package domain

// OrderSide is the side of a market order.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// Presence is the counterparty's presence state on the marketplace.
type Presence string

const (
	PresenceInGame  Presence = "ingame"
	PresenceOnline  Presence = "online"
	PresenceOffline Presence = "offline"
)

// Order is one marketplace order for a single item. Orders are ephemeral:
// they exist only for the duration of one fetch cycle's processing and are
// never persisted.
type Order struct {
	Side     OrderSide
	Platform string
	Visible  bool
	Price    int // integer platinum
	Presence Presence
	Seller   string // counterparty display name
}

// Usable reports whether the order should participate in pricing for the
// given platform and side: visible, platform match, and an in-game
// counterparty (quotes from offline traders are stale in practice).
func (o Order) Usable(platform string, side OrderSide) bool {
	return o.Visible &&
		o.Side == side &&
		o.Platform == platform &&
		o.Presence == PresenceInGame
}
