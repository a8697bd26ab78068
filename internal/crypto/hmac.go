package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/parivision/bridgebet/internal/domain"
)

// L2Headers returns the HMAC-authenticated headers for a CLOB API request
// made on behalf of address. The signature is
// HMAC-SHA256(secret, timestamp+method+path+body) where the secret is the
// base64url-decoded API secret, and the result is base64url-encoded.
//
// Returned header keys:
//   - POLY_ADDRESS
//   - POLY_API_KEY
//   - POLY_PASSPHRASE
//   - POLY_TIMESTAMP
//   - POLY_SIGNATURE
func L2Headers(creds domain.APICredentials, address, method, path, body string) (map[string]string, error) {
	secret, err := base64.URLEncoding.DecodeString(creds.Secret)
	if err != nil {
		return nil, fmt.Errorf("crypto: decode api secret: %w", err)
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	message := ts + method + path + body

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(message))
	sig := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"POLY_ADDRESS":    address,
		"POLY_API_KEY":    creds.APIKey,
		"POLY_PASSPHRASE": creds.Passphrase,
		"POLY_TIMESTAMP":  ts,
		"POLY_SIGNATURE":  sig,
	}, nil
}
