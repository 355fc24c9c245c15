package reservation

import "github.com/shopspring/decimal"

var (
	tokenRate      = decimal.RequireFromString("0.001")
	finalRate      = decimal.RequireFromString("0.009")
	agentShareRate = decimal.RequireFromString("0.8")
	hundred        = decimal.NewFromInt(100)
)

// TokenAmount is the 0.1% deposit, rounded half away from zero to whole units.
func TokenAmount(price int64) int64 {
	return decimal.NewFromInt(price).Mul(tokenRate).Round(0).IntPart()
}

// FinalPaymentAmount is the remaining 0.9% due at registration.
func FinalPaymentAmount(price int64) int64 {
	return decimal.NewFromInt(price).Mul(finalRate).Round(0).IntPart()
}

// Commission is the split of the platform fee between the agent and the platform.
type Commission struct {
	Total         int64 `json:"total"`
	AgentShare    int64 `json:"agentShare"`
	PlatformShare int64 `json:"platformShare"`
}

// SplitCommission totals the token and final payments and gives the agent 80%.
// The platform receives the remainder so the shares always add up to the total.
func SplitCommission(token, final int64) Commission {
	total := token + final
	agent := decimal.NewFromInt(total).Mul(agentShareRate).Round(0).IntPart()
	return Commission{Total: total, AgentShare: agent, PlatformShare: total - agent}
}

// PctVsAsking is the signed percentage difference between an amount and the
// asking price, at two decimal places.
func PctVsAsking(amount, price int64) float64 {
	if price <= 0 {
		return 0
	}
	pct, _ := decimal.NewFromInt(amount - price).Mul(hundred).Div(decimal.NewFromInt(price)).Round(2).Float64()
	return pct
}
