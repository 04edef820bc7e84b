package checkout

import (
	"crypto/rand"
	"fmt"
	"time"
)

// Alphabet excludes 0/O, 1/I and L so order numbers survive being read aloud
// over the phone.
const orderNumberAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// newOrderNumber builds a human-readable order number such as
// MH-20260829-K7Q2XN. Uniqueness is enforced by the database index; callers
// retry on collision.
func newOrderNumber(now time.Time) string {
	suffix := make([]byte, 6)
	if _, err := rand.Read(suffix); err != nil {
		// crypto/rand never fails on supported platforms; fall back to a
		// timestamp so checkout keeps working if it somehow does.
		return fmt.Sprintf("MH-%s-%d", now.Format("20060102"), now.UnixNano()%1_000_000)
	}
	for i, b := range suffix {
		suffix[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
	}
	return fmt.Sprintf("MH-%s-%s", now.Format("20060102"), suffix)
}
