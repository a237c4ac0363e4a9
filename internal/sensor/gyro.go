package sensor

import "math"

// BiasEstimator averages the first N gyroscope samples to estimate a
// constant sensor bias. The device is assumed to be at rest while sampling.
type BiasEstimator struct {
	samples int
	count   int
	sum     [3]float64
}

func NewBiasEstimator(samples int) *BiasEstimator {
	return &BiasEstimator{samples: samples}
}

// Add feeds a raw reading and reports whether the estimate is complete.
// Readings after completion are ignored.
func (b *BiasEstimator) Add(v [3]float64) bool {
	if b.Done() {
		return true
	}
	for i := range v {
		b.sum[i] += v[i]
	}
	b.count++
	return b.Done()
}

// Done reports whether enough samples were collected.
func (b *BiasEstimator) Done() bool { return b.count >= b.samples }

// Bias returns the running mean of the collected samples.
func (b *BiasEstimator) Bias() [3]float64 {
	var out [3]float64
	if b.count == 0 {
		return out
	}
	for i := range out {
		out[i] = b.sum[i] / float64(b.count)
	}
	return out
}

// Integrator turns angular velocity samples into orientation deltas.
type Integrator struct {
	// Sensitivity zeroes bias-corrected rates with a smaller magnitude.
	Sensitivity float64

	// Bias is subtracted from every sample. Nil means no correction.
	Bias *BiasEstimator

	last int64
	seen bool
}

// Delta integrates one sample taken at ts (nanoseconds) and returns the
// rotation in radians since the previous sample. The first sample only
// establishes the time base and yields zero.
func (g *Integrator) Delta(ts int64, rate [3]float64) [3]float64 {
	var delta [3]float64
	if !g.seen {
		g.seen = true
		g.last = ts
		return delta
	}

	dt := float64(ts-g.last) * 1e-9
	g.last = ts
	if dt <= 0 {
		return delta
	}

	var bias [3]float64
	if g.Bias != nil {
		bias = g.Bias.Bias()
	}
	for i := range rate {
		v := rate[i] - bias[i]
		if math.Abs(v) <= g.Sensitivity {
			v = 0
		}
		delta[i] = v * dt
	}
	return delta
}

// Reset forgets the time base.
func (g *Integrator) Reset() {
	g.seen = false
	g.last = 0
}
