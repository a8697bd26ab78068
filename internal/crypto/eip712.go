// Package crypto implements the EIP-712 hashing scheme for Polymarket CTF
// Exchange orders and HMAC authentication for the CLOB API. The service never
// holds private keys; signatures come back from the user's wallet, so this
// package only computes digests and recovers signer addresses for
// verification.
package crypto

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/parivision/bridgebet/internal/domain"
)

// --------------------------------------------------------------------------
// EIP-712 type hashes (pre-computed keccak256 of the canonical type strings).
// --------------------------------------------------------------------------

var (
	// EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)
	eip712DomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"),
	)

	// Order(uint256 salt,address maker,address signer,address taker,uint256 tokenId,uint256 makerAmount,uint256 takerAmount,uint256 expiration,uint256 nonce,uint256 feeRateBps,uint8 side,uint8 signatureType)
	orderTypeHash = ethcrypto.Keccak256(
		[]byte("Order(uint256 salt,address maker,address signer,address taker,uint256 tokenId,uint256 makerAmount,uint256 takerAmount,uint256 expiration,uint256 nonce,uint256 feeRateBps,uint8 side,uint8 signatureType)"),
	)
)

// ExchangeDomain identifies the verifying contract for order signatures.
type ExchangeDomain struct {
	Name              string
	Version           string
	ChainID           int64
	VerifyingContract string
}

// DefaultExchangeDomain returns the Polymarket CTF Exchange domain for the
// given chain and contract address.
func DefaultExchangeDomain(chainID int64, exchange string) ExchangeDomain {
	return ExchangeDomain{
		Name:              "Polymarket CTF Exchange",
		Version:           "1",
		ChainID:           chainID,
		VerifyingContract: exchange,
	}
}

// Separator returns keccak256(abi.encode(typeHash, nameHash, versionHash,
// chainId, verifyingContract)).
func (d ExchangeDomain) Separator() []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			eip712DomainTypeHash,
			ethcrypto.Keccak256([]byte(d.Name)),
			ethcrypto.Keccak256([]byte(d.Version)),
			bigIntTo32Bytes(big.NewInt(d.ChainID)),
			common.LeftPadBytes(common.HexToAddress(d.VerifyingContract).Bytes(), 32),
		),
	)
}

// OrderDigest computes the EIP-712 digest a wallet must sign for the given
// order:
//
//	keccak256("\x19\x01" || domainSeparator || structHash)
func OrderDigest(d ExchangeDomain, o domain.Order) ([]byte, error) {
	structHash, err := orderStructHash(o)
	if err != nil {
		return nil, err
	}
	return ethcrypto.Keccak256(
		concatBytes(
			[]byte{0x19, 0x01},
			d.Separator(),
			structHash,
		),
	), nil
}

// RecoverSigner returns the address that produced the hex-encoded 65-byte
// signature over digest. The recovery byte is accepted in both {0,1} and
// {27,28} form.
func RecoverSigner(digest []byte, signature string) (common.Address, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto: decode signature: %w", err)
	}
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("crypto: signature must be 65 bytes, got %d", len(sig))
	}
	if sig[64] >= 27 {
		sig = append(append([]byte{}, sig[:64]...), sig[64]-27)
	}
	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto: recover: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// VerifyOrderSignature checks that signature over o was produced by signer.
// It returns domain.ErrSigningFailed when the recovered address mismatches.
func VerifyOrderSignature(d ExchangeDomain, o domain.Order, signature string) error {
	digest, err := OrderDigest(d, o)
	if err != nil {
		return err
	}
	recovered, err := RecoverSigner(digest, signature)
	if err != nil {
		return err
	}
	if recovered != common.HexToAddress(o.Signer) {
		return fmt.Errorf("crypto: recovered %s, want %s: %w",
			recovered.Hex(), o.Signer, domain.ErrSigningFailed)
	}
	return nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// orderStructHash encodes and hashes an order according to EIP-712.
func orderStructHash(o domain.Order) ([]byte, error) {
	tokenID, ok := new(big.Int).SetString(o.TokenID, 10)
	if !ok {
		return nil, fmt.Errorf("crypto: invalid tokenId %q", o.TokenID)
	}
	makerAmt, ok := new(big.Int).SetString(o.MakerAmount, 10)
	if !ok {
		return nil, fmt.Errorf("crypto: invalid makerAmount %q", o.MakerAmount)
	}
	takerAmt, ok := new(big.Int).SetString(o.TakerAmount, 10)
	if !ok {
		return nil, fmt.Errorf("crypto: invalid takerAmount %q", o.TakerAmount)
	}
	feeRate, ok := new(big.Int).SetString(o.FeeRateBps, 10)
	if !ok {
		return nil, fmt.Errorf("crypto: invalid feeRateBps %q", o.FeeRateBps)
	}

	maker := common.HexToAddress(o.Maker)
	signer := common.HexToAddress(o.Signer)
	taker := common.HexToAddress(o.Taker)

	return ethcrypto.Keccak256(
		concatBytes(
			orderTypeHash,
			bigIntTo32Bytes(big.NewInt(o.Salt)),
			common.LeftPadBytes(maker.Bytes(), 32),
			common.LeftPadBytes(signer.Bytes(), 32),
			common.LeftPadBytes(taker.Bytes(), 32),
			bigIntTo32Bytes(tokenID),
			bigIntTo32Bytes(makerAmt),
			bigIntTo32Bytes(takerAmt),
			bigIntTo32Bytes(big.NewInt(o.Expiration)),
			bigIntTo32Bytes(big.NewInt(o.Nonce)),
			bigIntTo32Bytes(feeRate),
			bigIntTo32Bytes(big.NewInt(int64(o.Side))),
			bigIntTo32Bytes(big.NewInt(int64(o.SignatureType))),
		),
	), nil
}

// bigIntTo32Bytes returns a 32-byte big-endian representation of n.
func bigIntTo32Bytes(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) >= 32 {
		return b[:32]
	}
	padded := make([]byte, 32)
	copy(padded[32-len(b):], b)
	return padded
}

// concatBytes concatenates multiple byte slices into one.
func concatBytes(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}
