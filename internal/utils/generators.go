package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const inviteAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateInviteCode returns a short human-shareable code for group orders.
// The alphabet skips easily confused glyphs (0/O, 1/I).
func GenerateInviteCode() string {
	code := make([]byte, 6)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(inviteAlphabet))))
		if err != nil {
			// crypto/rand should never fail; fall back to a time-derived index
			code[i] = inviteAlphabet[time.Now().UnixNano()%int64(len(inviteAlphabet))]
			continue
		}
		code[i] = inviteAlphabet[n.Int64()]
	}
	return string(code)
}

// GenerateReference builds a prefixed unique-ish reference for ledger rows.
func GenerateReference(prefix string) string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999999))
	return fmt.Sprintf("%s_%d_%09d", prefix, timestamp, randomNum.Int64())
}
