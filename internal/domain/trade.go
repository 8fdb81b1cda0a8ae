package domain

import "strings"

// Trade is the contractor's line of work.
type Trade string

const (
	TradeHVAC       Trade = "hvac"
	TradePlumbing   Trade = "plumbing"
	TradeElectrical Trade = "electrical"
	TradeRoofing    Trade = "roofing"
)

// Trades lists every supported trade in display order.
var Trades = []Trade{TradeHVAC, TradePlumbing, TradeElectrical, TradeRoofing}

// ParseTrade normalizes s and checks it against the supported trades.
func ParseTrade(s string) (Trade, error) {
	t := Trade(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Trades {
		if t == known {
			return t, nil
		}
	}
	return "", &ErrValidation{Field: "trade", Message: "must be one of hvac, plumbing, electrical, roofing"}
}

// User is the authenticated principal behind a request.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}
