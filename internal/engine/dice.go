package engine

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// Dice is the single source of randomness for battles.
// It is safe for concurrent use; a fixed seed makes every roll reproducible.
type Dice struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewDice seeds a PCG generator. A zero seed draws one from crypto/rand.
func NewDice(seed uint64) *Dice {
	hi, lo := seed, seed^0x9e3779b97f4a7c15
	if seed == 0 {
		var b [16]byte
		if _, err := crand.Read(b[:]); err == nil {
			hi = binary.LittleEndian.Uint64(b[:8])
			lo = binary.LittleEndian.Uint64(b[8:])
		}
	}
	return &Dice{rng: rand.New(rand.NewPCG(hi, lo))}
}

// Float64 returns a value in [0, 1).
func (d *Dice) Float64() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rng.Float64()
}

// IntN returns a value in [0, n). It panics if n <= 0.
func (d *Dice) IntN(n int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rng.IntN(n)
}
