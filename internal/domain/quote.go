package domain

// Quote is an ephemeral price estimate produced by the DEX or bridge
// client. It is never persisted.
type Quote struct {
	InputAmount  float64
	InputAsset   string
	OutputAmount float64
	OutputAsset  string
	FeeEstimate  float64
}

// Payout returns the potential payout of a stake at the given outcome
// price (stake divided by probability). A non-positive price yields zero.
func Payout(stake, price float64) float64 {
	if price <= 0 {
		return 0
	}
	return stake / price
}
