package simulation

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Rand wraps math/rand with the helpers shared by sensors and actuators. The
// mutex makes it safe for the actuator dispatch workers, which draw values
// concurrently with each other.
type Rand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRand returns a generator for the given seed. The same seed reproduces the
// same sequence of readings, intervals and delays. Seed 0 falls back to the
// current time, one stream per call.
func NewRand(seed int64) *Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Rand{rng: rand.New(rand.NewSource(seed))}
}

// Between returns a uniform value in [lo, hi] rounded to two decimal places.
func (r *Rand) Between(lo, hi float64) float64 {
	r.mu.Lock()
	v := lo + r.rng.Float64()*(hi-lo)
	r.mu.Unlock()
	return math.Round(v*100) / 100
}

// OneIn returns true with probability 1/n.
func (r *Rand) OneIn(n int) bool {
	r.mu.Lock()
	v := r.rng.Intn(n)
	r.mu.Unlock()
	return v == 0
}

// Duration returns a uniform duration in [lo, hi].
func (r *Rand) Duration(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	r.mu.Lock()
	d := lo + time.Duration(r.rng.Int63n(int64(hi-lo)+1))
	r.mu.Unlock()
	return d
}
