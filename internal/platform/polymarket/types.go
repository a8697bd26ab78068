package polymarket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/parivision/bridgebet/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat unmarshals from JSON number or numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIEventRef is the embedded event reference on a Gamma market. Markets
// belonging to the same real-world event share the first ref's slug.
type APIEventRef struct {
	ID    string `json:"id"`
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

// APIMarket represents a market as returned by the Polymarket Gamma API.
// Outcomes, OutcomePrices and ClobTokenIDs arrive as JSON-encoded strings
// ("[\"Yes\",\"No\"]") and have to be decoded a second time.
type APIMarket struct {
	ID            string        `json:"id"`
	Question      string        `json:"question"`
	ConditionID   string        `json:"conditionId"`
	Slug          string        `json:"slug"`
	Description   string        `json:"description"`
	Category      string        `json:"category"`
	Image         string        `json:"image"`
	EndDate       string        `json:"endDate"`
	Active        flexBool      `json:"active"`
	Closed        flexBool      `json:"closed"`
	Volume        flexFloat     `json:"volumeNum"`
	VolumeStr     flexFloat     `json:"volume"`
	Volume24h     flexFloat     `json:"volume24hr"`
	Outcomes      string        `json:"outcomes"`
	OutcomePrices string        `json:"outcomePrices"`
	ClobTokenIDs  string        `json:"clobTokenIds"`
	Events        []APIEventRef `json:"events"`
}

// decodeStringArray parses a JSON-encoded string array field like
// "[\"Yes\",\"No\"]". Empty input yields nil.
func decodeStringArray(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

// volume returns the best available volume figure.
func (m *APIMarket) volume() float64 {
	if m.Volume > 0 {
		return float64(m.Volume)
	}
	return float64(m.VolumeStr)
}

// ToDomainMarket converts a Gamma APIMarket to a domain.Market, pairing up
// the decoded outcome labels, prices and token ids.
func (m *APIMarket) ToDomainMarket() domain.Market {
	dm := domain.Market{
		ID:          m.ID,
		ConditionID: m.ConditionID,
		Slug:        m.Slug,
		Question:    m.Question,
		Description: m.Description,
		Category:    m.Category,
		Image:       m.Image,
		Volume:      m.volume(),
		Volume24h:   float64(m.Volume24h),
		Active:      bool(m.Active),
		Closed:      bool(m.Closed),
	}
	if t, err := time.Parse(time.RFC3339, m.EndDate); err == nil {
		dm.EndDate = t
	}

	outcomes := decodeStringArray(m.Outcomes)
	prices := decodeStringArray(m.OutcomePrices)
	tokenIDs := decodeStringArray(m.ClobTokenIDs)

	for i, outcome := range outcomes {
		tok := domain.Token{Outcome: outcome}
		if i < len(prices) {
			tok.Price, _ = strconv.ParseFloat(prices[i], 64)
		}
		if i < len(tokenIDs) {
			tok.TokenID = tokenIDs[i]
		}
		dm.Tokens = append(dm.Tokens, tok)
	}

	return dm
}

// GroupIntoEvents folds active markets into UI-level events keyed by the
// market's first event slug (falling back to the market's own slug). Each
// member market contributes one outcome priced at its primary (first)
// outcome. Zero-volume events are dropped, outcomes are sorted by price
// descending, and events by volume descending.
func GroupIntoEvents(markets []APIMarket) []domain.Event {
	byslug := make(map[string]*domain.Event)
	var order []string

	for i := range markets {
		m := &markets[i]
		if !bool(m.Active) || bool(m.Closed) {
			continue
		}

		slug, title := m.Slug, m.Question
		if len(m.Events) > 0 {
			if m.Events[0].Slug != "" {
				slug = m.Events[0].Slug
			}
			if m.Events[0].Title != "" {
				title = m.Events[0].Title
			}
		}

		dm := m.ToDomainMarket()

		ev, ok := byslug[slug]
		if !ok {
			ev = &domain.Event{
				ID:          slug,
				Slug:        slug,
				Question:    title,
				Description: dm.Description,
				Image:       dm.Image,
				Category:    dm.Category,
				EndDate:     dm.EndDate,
				Active:      true,
			}
			byslug[slug] = ev
			order = append(order, slug)
		}
		outcome := domain.EventOutcome{
			MarketID:    dm.ID,
			ConditionID: dm.ConditionID,
			Question:    dm.Question,
			Slug:        dm.Slug,
		}
		if len(dm.Tokens) > 0 {
			outcome.Price = dm.Tokens[0].Price
			outcome.TokenID = dm.Tokens[0].TokenID
		}
		if len(dm.Tokens) > 1 {
			outcome.NoTokenID = dm.Tokens[1].TokenID
		}

		ev.Outcomes = append(ev.Outcomes, outcome)
		ev.Tokens = append(ev.Tokens, dm.Tokens...)
		ev.Volume += dm.Volume
		ev.Volume24h += dm.Volume24h
	}

	events := make([]domain.Event, 0, len(order))
	for _, slug := range order {
		ev := byslug[slug]
		if ev.Volume <= 0 {
			continue
		}
		ev.MultiOutcome = len(ev.Outcomes) > 1
		if ev.MultiOutcome {
			ev.Tokens = nil
		}
		sort.SliceStable(ev.Outcomes, func(i, j int) bool {
			return ev.Outcomes[i].Price > ev.Outcomes[j].Price
		})
		events = append(events, *ev)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Volume > events[j].Volume
	})
	return events
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIBook is the CLOB order book response for one token.
type APIBook struct {
	Market  string         `json:"market"`
	AssetID string         `json:"asset_id"`
	Bids    []APIBookLevel `json:"bids"`
	Asks    []APIBookLevel `json:"asks"`
}

// APIBookLevel is one price level of the book.
type APIBookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// ToDomainOrderBook converts the book, keeping CLOB level ordering: asks
// ascending from the best, bids descending from the best.
func (b *APIBook) ToDomainOrderBook() domain.OrderBook {
	book := domain.OrderBook{TokenID: b.AssetID}
	for _, lvl := range b.Bids {
		p, _ := strconv.ParseFloat(lvl.Price, 64)
		s, _ := strconv.ParseFloat(lvl.Size, 64)
		book.Bids = append(book.Bids, domain.BookLevel{Price: p, Size: s})
	}
	for _, lvl := range b.Asks {
		p, _ := strconv.ParseFloat(lvl.Price, 64)
		s, _ := strconv.ParseFloat(lvl.Size, 64)
		book.Asks = append(book.Asks, domain.BookLevel{Price: p, Size: s})
	}
	// The CLOB serves bids ascending and asks descending; normalize so the
	// best price sits first on both sides.
	sort.SliceStable(book.Bids, func(i, j int) bool { return book.Bids[i].Price > book.Bids[j].Price })
	sort.SliceStable(book.Asks, func(i, j int) bool { return book.Asks[i].Price < book.Asks[j].Price })
	return book
}

// APIOrderResult is the response from placing an order via the CLOB API.
type APIOrderResult struct {
	Success    bool   `json:"success"`
	ErrorMsg   string `json:"errorMsg,omitempty"`
	Error      string `json:"error,omitempty"`
	OrderID    string `json:"orderID,omitempty"`
	Status     string `json:"status,omitempty"`
	TransactID string `json:"transactID,omitempty"`
}

// reason returns whichever rejection field the API populated.
func (r *APIOrderResult) reason() string {
	if r.ErrorMsg != "" {
		return r.ErrorMsg
	}
	return r.Error
}

// --------------------------------------------------------------------------
// Shared helpers
// --------------------------------------------------------------------------

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
