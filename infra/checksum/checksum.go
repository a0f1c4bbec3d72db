// Package checksum holds the digest, HMAC and encoding helpers every vendor
// signature protocol is built from.
package checksum

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Toolkit is a stateless signing helper. The zero value is ready to use.
type Toolkit struct{}

// New returns a Toolkit
func New() *Toolkit {
	return &Toolkit{}
}

// SHA256Hex returns the lowercase hex SHA-256 digest of data
func (Toolkit) SHA256Hex(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// SHA512Hex returns the lowercase hex SHA-512 digest of data
func (Toolkit) SHA512Hex(data string) string {
	sum := sha512.Sum512([]byte(data))
	return hex.EncodeToString(sum[:])
}

// HMACSHA256Hex returns the lowercase hex HMAC-SHA256 of data keyed by secret
func (Toolkit) HMACSHA256Hex(data, secret string) string {
	return hex.EncodeToString(hmacSHA256([]byte(data), secret))
}

// HMACSHA256Base64 returns the standard base64 HMAC-SHA256 of data keyed by secret
func (Toolkit) HMACSHA256Base64(data, secret string) string {
	return base64.StdEncoding.EncodeToString(hmacSHA256([]byte(data), secret))
}

// HMACSHA512Hex returns the lowercase hex HMAC-SHA512 of data keyed by secret
func (Toolkit) HMACSHA512Hex(data, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

func hmacSHA256(data []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return mac.Sum(nil)
}

// Equal compares two signatures in time independent of where they differ.
// Inputs of different length are padded so the comparison still runs over
// the longer one before returning false.
func (Toolkit) Equal(expected, supplied string) bool {
	a, b := []byte(expected), []byte(supplied)
	if len(a) == 0 || len(b) == 0 {
		return false
	}

	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	pa := make([]byte, n)
	pb := make([]byte, n)
	copy(pa, a)
	copy(pb, b)

	same := subtle.ConstantTimeCompare(pa, pb)
	sameLen := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	return same&sameLen == 1
}

// Base64Encode encodes s with standard padding
func (Toolkit) Base64Encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// Base64Decode decodes standard base64, failing on malformed input
func (Toolkit) Base64Decode(s string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("checksum: invalid base64: %w", err)
	}
	return string(data), nil
}

// TransactionID returns PREFIX_<unix millis>_<8 hex chars>. The prefix is
// upper-cased; an empty prefix yields TXN.
func (Toolkit) TransactionID(prefix string) string {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = "TXN"
	}
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), strings.ToUpper(random))
}
