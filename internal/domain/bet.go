package domain

import "time"

// WorkflowState is a step of the bridge-and-bet workflow. The sequence is
// strictly linear; any state may fall to StateFailed, and
// StateAwaitingNetworkSwitch marks the point where the wallet runtime may
// be torn down and the workflow resumed from its checkpoint.
type WorkflowState string

const (
	StateStart                 WorkflowState = "start"
	StateQuoted                WorkflowState = "quoted"
	StateSourceSwapped         WorkflowState = "source_swapped"
	StateSourceBridged         WorkflowState = "source_bridged"
	StateAwaitingNetworkSwitch WorkflowState = "awaiting_network_switch"
	StateAwaitingSettlement    WorkflowState = "awaiting_settlement"
	StateSettled               WorkflowState = "settled"
	StateOrderSigned           WorkflowState = "order_signed"
	StateOrderSubmitted        WorkflowState = "order_submitted"
	StateFailed                WorkflowState = "failed"
)

// Terminal reports whether the workflow cannot progress past this state.
func (s WorkflowState) Terminal() bool {
	return s == StateOrderSubmitted || s == StateFailed
}

// BetRequest is what the user asks for: a stake in the source chain's
// native asset on one outcome token of one market.
type BetRequest struct {
	MarketSlug     string
	MarketQuestion string
	TokenID        string
	OutcomeLabel   string
	OutcomePrice   float64 // reference outcome probability at selection time
	AmountBNB      float64
	Side           OrderSide
}

// PendingBet is the sole durable entity: the checkpoint written immediately
// before the destination-chain switch and consumed exactly once when the
// order is submitted. It carries everything needed to resume the workflow
// in a fresh process.
type PendingBet struct {
	MarketSlug           string        `json:"marketSlug"`
	MarketQuestion       string        `json:"marketQuestion"`
	TokenID              string        `json:"tokenId"`
	OutcomeLabel         string        `json:"outcome"`
	ReferencePrice       float64       `json:"price"`
	ExpectedStableAmount float64       `json:"usdcAmount"`
	DestinationProxy     string        `json:"proxyAddress"`
	BridgeTxHash         string        `json:"bridgeTxHash,omitempty"`
	State                WorkflowState `json:"state"`
	CreatedAt            int64         `json:"timestamp"` // epoch millis
}

// Age returns how long ago the checkpoint was written.
func (p PendingBet) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(p.CreatedAt))
}

// Stale reports whether the checkpoint is older than the given window and
// must be discarded rather than resumed.
func (p PendingBet) Stale(now time.Time, window time.Duration) bool {
	return p.Age(now) > window
}
