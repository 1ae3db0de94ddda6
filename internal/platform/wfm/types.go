package wfm

import "github.com/davrix/relicflip/internal/domain"

// ordersResponse is the upstream /items/{slug}/orders payload envelope.
type ordersResponse struct {
	Payload struct {
		Orders []apiOrder `json:"orders"`
	} `json:"payload"`
}

// apiOrder is one raw order as returned by the marketplace API.
type apiOrder struct {
	OrderType string  `json:"order_type"` // "sell" | "buy"
	Platform  string  `json:"platform"`
	Visible   bool    `json:"visible"`
	Platinum  float64 `json:"platinum"`
	User      apiUser `json:"user"`
}

// apiUser is the counterparty block attached to each order.
type apiUser struct {
	IngameName string `json:"ingame_name"`
	Status     string `json:"status"` // "ingame" | "online" | "offline"
	Platform   string `json:"platform"`
}

// toDomain converts a raw order into the domain representation. The second
// return is false for orders that should be discarded outright (not visible
// or unknown side).
func (o apiOrder) toDomain() (domain.Order, bool) {
	if !o.Visible {
		return domain.Order{}, false
	}

	var side domain.OrderSide
	switch o.OrderType {
	case "sell":
		side = domain.SideSell
	case "buy":
		side = domain.SideBuy
	default:
		return domain.Order{}, false
	}

	platform := o.Platform
	if platform == "" {
		platform = o.User.Platform
	}

	return domain.Order{
		Side:     side,
		Platform: platform,
		Visible:  true,
		Price:    int(o.Platinum),
		Presence: domain.Presence(o.User.Status),
		Seller:   o.User.IngameName,
	}, true
}
