package domain

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Uint8 returns the numeric side value used inside the signed payload
// (0 = BUY, 1 = SELL).
func (s OrderSide) Uint8() int {
	if s == OrderSideSell {
		return 1
	}
	return 0
}

// Signature types accepted by the CTF exchange.
const (
	SignatureTypeEOA       = 0
	SignatureTypePolyProxy = 1
	SignatureTypeSafe      = 2
)

// ZeroAddress is the open-taker sentinel: anyone may fill the order.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Order is the 12-field exchange order struct that gets hashed and signed
// via EIP-712. String types are used for addresses and uint256 values to
// preserve precision across JSON boundaries; Side and SignatureType are the
// uint8 enums the exchange expects.
type Order struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    int64  `json:"expiration"`
	Nonce         int64  `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          int    `json:"side"`
	SignatureType int    `json:"signatureType"`
}

// SignedOrder pairs an Order with its wallet signature and the owner the
// exchange should attribute it to.
type SignedOrder struct {
	Order     Order
	Signature string // 65-byte hex signature from eth_signTypedData_v4
	Owner     string
	OrderType string // time-in-force; "FOK" for market-style bets
}

// OrderResult wraps the exchange response after order submission.
type OrderResult struct {
	Success bool
	OrderID string
	Status  string
	Message string
}

// BookLevel is one price level of the exchange order book.
type BookLevel struct {
	Price float64
	Size  float64
}

// OrderBook is the normalized two-sided book for a single outcome token.
// API responses arrive in several inconsistent shapes; the CLOB client
// converts them into this form at the boundary.
type OrderBook struct {
	TokenID string
	Bids    []BookLevel
	Asks    []BookLevel
}

// BestPrice returns the best opposite-side price for the given order side:
// the lowest ask for a BUY, the highest bid for a SELL. An empty side
// defaults to 0.5, the midpoint of a binary market.
func (b OrderBook) BestPrice(side OrderSide) float64 {
	if side == OrderSideBuy {
		if len(b.Asks) > 0 {
			return b.Asks[0].Price
		}
		return 0.5
	}
	if len(b.Bids) > 0 {
		return b.Bids[0].Price
	}
	return 0.5
}
