package order

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/parivision/bridgebet/internal/crypto"
	"github.com/parivision/bridgebet/internal/domain"
	"github.com/parivision/bridgebet/internal/wallet"
)

// Signer obtains EIP-712 order signatures from the user's wallet and
// verifies them locally before anything is submitted. eth_signTypedData_v4
// embeds the chain id in the document, so signing works even while the
// wallet still sits on the source chain.
type Signer struct {
	domain crypto.ExchangeDomain
	logger *slog.Logger
}

// NewSigner builds a Signer for the given exchange domain.
func NewSigner(d crypto.ExchangeDomain, logger *slog.Logger) *Signer {
	return &Signer{
		domain: d,
		logger: logger.With(slog.String("component", "order_signer")),
	}
}

// Sign asks provider for a signature over o and returns the signed order
// ready for submission. The recovered signer must match o.Signer or the
// signature is discarded.
func (s *Signer) Sign(ctx context.Context, provider wallet.Provider, o domain.Order) (domain.SignedOrder, error) {
	doc, err := s.typedData(o)
	if err != nil {
		return domain.SignedOrder{}, err
	}

	sig, err := provider.SignTypedData(ctx, common.HexToAddress(o.Signer), doc)
	if err != nil {
		return domain.SignedOrder{}, fmt.Errorf("order: sign: %w", err)
	}

	if err := crypto.VerifyOrderSignature(s.domain, o, sig); err != nil {
		return domain.SignedOrder{}, fmt.Errorf("order: verify: %w", err)
	}

	s.logger.Info("order signed",
		slog.String("token_id", o.TokenID),
		slog.Int("side", o.Side))

	return domain.SignedOrder{
		Order:     o,
		Signature: sig,
		Owner:     o.Signer,
		OrderType: "FOK",
	}, nil
}

// typedData builds the eth_signTypedData_v4 document for an order. All
// uint256 fields travel as decimal strings.
func (s *Signer) typedData(o domain.Order) (json.RawMessage, error) {
	doc := map[string]any{
		"types": map[string]any{
			"EIP712Domain": []map[string]string{
				{"name": "name", "type": "string"},
				{"name": "version", "type": "string"},
				{"name": "chainId", "type": "uint256"},
				{"name": "verifyingContract", "type": "address"},
			},
			"Order": []map[string]string{
				{"name": "salt", "type": "uint256"},
				{"name": "maker", "type": "address"},
				{"name": "signer", "type": "address"},
				{"name": "taker", "type": "address"},
				{"name": "tokenId", "type": "uint256"},
				{"name": "makerAmount", "type": "uint256"},
				{"name": "takerAmount", "type": "uint256"},
				{"name": "expiration", "type": "uint256"},
				{"name": "nonce", "type": "uint256"},
				{"name": "feeRateBps", "type": "uint256"},
				{"name": "side", "type": "uint8"},
				{"name": "signatureType", "type": "uint8"},
			},
		},
		"primaryType": "Order",
		"domain": map[string]any{
			"name":              s.domain.Name,
			"version":           s.domain.Version,
			"chainId":           s.domain.ChainID,
			"verifyingContract": s.domain.VerifyingContract,
		},
		"message": map[string]any{
			"salt":          strconv.FormatInt(o.Salt, 10),
			"maker":         o.Maker,
			"signer":        o.Signer,
			"taker":         o.Taker,
			"tokenId":       o.TokenID,
			"makerAmount":   o.MakerAmount,
			"takerAmount":   o.TakerAmount,
			"expiration":    strconv.FormatInt(o.Expiration, 10),
			"nonce":         strconv.FormatInt(o.Nonce, 10),
			"feeRateBps":    o.FeeRateBps,
			"side":          o.Side,
			"signatureType": o.SignatureType,
		},
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("order: marshal typed data: %w", err)
	}
	return raw, nil
}
