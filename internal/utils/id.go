package utils

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"
)

const (
	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// UserIDLength is the length of generated anonymous user ids.
	UserIDLength = 12
)

// NewID returns a random alphanumeric identifier of the given length.
func NewID(length int) string {
	if length <= 0 {
		length = UserIDLength
	}

	buf := make([]byte, length)
	max := big.NewInt(int64(len(alphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// Fallback to timestamp if crypto/rand is unavailable.
			return fallbackID(length)
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf)
}

// IsValidID reports whether id is a non-empty alphanumeric token.
func IsValidID(id string) bool {
	if id == "" {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		isDigit := c >= '0' && c <= '9'
		isLetter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if !isDigit && !isLetter {
			return false
		}
	}
	return true
}

func fallbackID(length int) string {
	id := strconv.FormatInt(time.Now().UnixNano(), 36)
	for len(id) < length {
		id += id
	}
	return id[len(id)-length:]
}
