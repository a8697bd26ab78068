package notify

import "strings"

// Event kinds emitted by the bridge-and-bet workflow. The configured event
// filter selects which of these reach operators.
const (
	EventBridgeInitiated     = "bridge_initiated"
	EventBetPlaced           = "bet_placed"
	EventWorkflowFailed      = "workflow_failed"
	EventCheckpointDiscarded = "checkpoint_discarded"
)

// Event is one workflow milestone worth telling an operator about. Once the
// bridge leg has been submitted BridgeTxHash is always set, so a failure can
// be traced on-chain even when the message gets cut short.
type Event struct {
	Kind         string
	Market       string
	Detail       string
	BridgeTxHash string
	Resumable    bool
}

// Title returns the headline for the event kind.
func (e Event) Title() string {
	switch e.Kind {
	case EventBridgeInitiated:
		return "Bridge initiated"
	case EventBetPlaced:
		return "Bet placed"
	case EventWorkflowFailed:
		return "Workflow failed"
	case EventCheckpointDiscarded:
		return "Pending bet discarded"
	}
	return e.Kind
}

// Body renders the event fields as plain text lines, one fact per line.
func (e Event) Body() string {
	var lines []string
	if e.Market != "" {
		lines = append(lines, e.Market)
	}
	if e.Detail != "" {
		lines = append(lines, e.Detail)
	}
	if e.BridgeTxHash != "" {
		lines = append(lines, "bridge tx "+e.BridgeTxHash)
	}
	if e.Resumable {
		lines = append(lines, "the bet is still resumable")
	}
	return strings.Join(lines, "\n")
}
