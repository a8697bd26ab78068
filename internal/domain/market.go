// Package domain defines the core types and interfaces shared by every
// subsystem: markets, quotes, orders, the durable pending-bet checkpoint,
// and the store contracts their implementations satisfy.
package domain

import "time"

// Token is one tradable outcome token of a binary market.
type Token struct {
	TokenID string
	Outcome string // "Yes" / "No"
	Price   float64
	Winner  bool
}

// Market is a single prediction market as served by the markets API.
type Market struct {
	ID          string
	ConditionID string
	Slug        string
	Question    string
	Description string
	Category    string
	Image       string
	EndDate     time.Time
	Volume      float64
	Volume24h   float64
	Active      bool
	Closed      bool
	Tokens      []Token
}

// EventOutcome is one market folded into a multi-outcome event, reduced to
// the fields the betting UI needs.
type EventOutcome struct {
	MarketID    string
	ConditionID string
	Question    string
	Slug        string
	Price       float64
	TokenID     string
	NoTokenID   string
}

// Event groups the markets that share one listing event. Binary markets that
// belong to no event are represented as single-outcome events with
// MultiOutcome false.
type Event struct {
	ID           string
	Slug         string
	Question     string
	Description  string
	Image        string
	Category     string
	EndDate      time.Time
	Volume       float64
	Volume24h    float64
	Active       bool
	Closed       bool
	MultiOutcome bool
	Outcomes     []EventOutcome
	Tokens       []Token // populated for binary markets only
}
