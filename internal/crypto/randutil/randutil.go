// Package randutil draws random numbers from crypto/rand so that sampling
// decisions cannot be predicted by an observer.
package randutil

import (
	"crypto/rand"
	"encoding/binary"
)

const float64RandomBits = 53

// Float64 returns a uniformly distributed float64 in [0.0, 1.0).
//
// If the system source fails, Float64 returns 0, which admits the event
// under any positive sample rate.
func Float64() float64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	n := binary.BigEndian.Uint64(b[:]) >> (64 - float64RandomBits)
	return float64(n) / (1 << float64RandomBits)
}
