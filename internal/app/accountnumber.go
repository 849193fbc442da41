/**
 * @description
 * Account number generation. Numbers embed a UTC timestamp followed by a
 * random suffix, which keeps them human-scannable while making collisions
 * negligible. The generator consults no external state; the ledger's unique
 * constraint on account_number is the actual safety net, and a collision
 * there is treated upstream as a transient insert failure and retried with a
 * fresh number.
 */
package app

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"
)

// GenerateAccountNumber returns a new candidate account number. It is a pure
// function of the current time and randomness. The microsecond component
// keeps bursts of provisioning calls within the same second apart.
func GenerateAccountNumber() string {
	now := time.Now().UTC()
	return fmt.Sprintf("22%s%06d%06d", now.Format("060102150405"), now.Nanosecond()/1000, randomSuffix())
}

func randomSuffix() uint32 {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failing is effectively a broken platform; fall back to
		// the clock so provisioning can still proceed.
		return uint32(time.Now().UnixNano() % 1_000_000)
	}
	return binary.BigEndian.Uint32(buf[:]) % 1_000_000
}
