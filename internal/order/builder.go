// Package order assembles, signs, and verifies CTF exchange orders. Amounts
// arrive as display-level USDC floats and leave as 6-decimal integer
// strings; the signature comes from the user's wallet via
// eth_signTypedData_v4.
package order

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/parivision/bridgebet/internal/domain"
)

// orderTTL is how long a signed order stays valid.
const orderTTL = 24 * time.Hour

// Builder produces exchange orders for one maker configuration.
type Builder struct {
	now func() time.Time
}

// NewBuilder returns a Builder using wall-clock time.
func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// Build creates a marketable order spending usdcAmount at the given price.
// maker is the funded proxy wallet, signer the user's EOA. For a BUY the
// maker amount is the USDC spent and the taker amount the outcome tokens
// received (usdc / price); a SELL flips the two.
func (b *Builder) Build(tokenID string, side domain.OrderSide, price, usdcAmount float64, maker, signer string) (domain.Order, error) {
	if price <= 0 || price >= 1 {
		return domain.Order{}, fmt.Errorf("order: price %f outside (0,1): %w", price, domain.ErrInvalidAmount)
	}
	if usdcAmount <= 0 {
		return domain.Order{}, fmt.Errorf("order: amount must be positive: %w", domain.ErrInvalidAmount)
	}
	if maker == "" {
		return domain.Order{}, fmt.Errorf("order: missing maker: %w", domain.ErrProxyNotConfigured)
	}

	now := b.now().Unix()
	usdcUnits := toUnits(usdcAmount)
	tokenUnits := toUnits(usdcAmount / price)

	// The exchange verifies an EOA signature by requiring maker == signer.
	// When the funds sit on the proxy wallet the maker differs from the
	// signing EOA, and the order must say so.
	sigType := domain.SignatureTypeEOA
	if !strings.EqualFold(maker, signer) {
		sigType = domain.SignatureTypePolyProxy
	}

	o := domain.Order{
		Salt:          now,
		Maker:         maker,
		Signer:        signer,
		Taker:         domain.ZeroAddress,
		TokenID:       tokenID,
		Expiration:    now + int64(orderTTL.Seconds()),
		Nonce:         now,
		FeeRateBps:    "0",
		Side:          side.Uint8(),
		SignatureType: sigType,
	}

	if side == domain.OrderSideSell {
		o.MakerAmount = tokenUnits
		o.TakerAmount = usdcUnits
	} else {
		o.MakerAmount = usdcUnits
		o.TakerAmount = tokenUnits
	}
	return o, nil
}

// toUnits converts a display amount to a 6-decimal integer string, rounding
// down.
func toUnits(amount float64) string {
	units := new(big.Float).Mul(big.NewFloat(amount), big.NewFloat(1e6))
	n, _ := units.Int(nil)
	return n.String()
}
