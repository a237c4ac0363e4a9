package sensor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"nayancam/internal/drive"
	"nayancam/internal/geo"
)

// Config tunes the fusion.
type Config struct {
	// UpdateInterval is the minimum spacing between orientation updates,
	// measured on event timestamps.
	UpdateInterval time.Duration

	// ValueDrift snaps pitch and roll with a smaller magnitude to zero.
	ValueDrift float64

	// GyroSensitivity zeroes small bias-corrected rates of the raw gyroscope.
	GyroSensitivity float64

	// BiasSamples is the number of raw gyroscope samples averaged into the
	// bias estimate.
	BiasSamples int
}

func DefaultConfig() Config {
	return Config{
		UpdateInterval:  200 * time.Millisecond,
		ValueDrift:      0.05,
		GyroSensitivity: 0.0025,
		BiasSamples:     300,
	}
}

// Fusion consumes sensor events and publishes Meta to subscribers.
// It is idle until the first subscriber arrives; events seen while idle are
// dropped. Becoming active again starts from a clean state.
type Fusion struct {
	cfg      Config
	reporter drive.CrashReporter

	mu   sync.Mutex
	subs map[int]chan Meta
	next int

	meta        Meta
	accel       [3]float64
	mag         [3]float64
	gravity     [3]float64
	haveAccel   bool
	haveMag     bool
	haveGravity bool
	ticked      bool
	lastTick    int64
	gyroHeading float64
	rawHeading  float64
	calibrated  Integrator
	raw         Integrator
	bias        *BiasEstimator
}

// NewFusion creates an idle Fusion. reporter may be nil.
func NewFusion(cfg Config, reporter drive.CrashReporter) *Fusion {
	if reporter == nil {
		reporter = drive.NopReporter{}
	}
	f := &Fusion{
		cfg:      cfg,
		reporter: reporter,
		subs:     make(map[int]chan Meta),
	}
	f.reset()
	return f
}

func (f *Fusion) reset() {
	f.meta = Meta{}
	f.accel, f.mag, f.gravity = [3]float64{}, [3]float64{}, [3]float64{}
	f.haveAccel, f.haveMag, f.haveGravity = false, false, false
	f.ticked = false
	f.lastTick = 0
	f.gyroHeading = 0
	f.rawHeading = 0
	f.bias = NewBiasEstimator(f.cfg.BiasSamples)
	f.calibrated = Integrator{}
	f.raw = Integrator{Sensitivity: f.cfg.GyroSensitivity, Bias: f.bias}
}

// Active reports whether anyone is subscribed.
func (f *Fusion) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs) > 0
}

// Subscribe registers a listener. Updates are dropped for a subscriber whose
// buffer is full. The returned function unsubscribes and closes the channel.
func (f *Fusion) Subscribe(buffer int) (<-chan Meta, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.subs) == 0 {
		f.reset()
	}
	id := f.next
	f.next++
	ch := make(chan Meta, buffer)
	f.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if c, ok := f.subs[id]; ok {
				delete(f.subs, id)
				close(c)
			}
		})
	}
}

// Run consumes events until ctx is cancelled or events is closed.
func (f *Fusion) Run(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			f.mu.Lock()
			if len(f.subs) > 0 {
				if meta, emit := f.handle(ev); emit {
					f.publish(meta)
				}
			}
			f.mu.Unlock()
		}
	}
}

// Handle applies one event regardless of subscribers and returns the updated
// Meta when an orientation tick was emitted.
func (f *Fusion) Handle(ev Event) (Meta, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handle(ev)
}

func (f *Fusion) publish(meta Meta) {
	for _, ch := range f.subs {
		select {
		case ch <- meta:
		default:
		}
	}
}

func (f *Fusion) handle(ev Event) (Meta, bool) {
	switch ev.Kind {
	case Accelerometer:
		f.accel = ev.Values
		f.haveAccel = true
		f.meta.Accelerometer = ev.Values
	case LinearAcceleration:
		f.meta.LinearAcceleration = ev.Values
	case MagneticField:
		f.mag = ev.Values
		f.haveMag = true
		f.meta.MagneticField = ev.Values
		if h := MagneticHeading(f.gravityVector(), ev.Values, [3]float64{}); !math.IsNaN(h) {
			f.meta.MagHeading = h
		}
	case Gravity:
		f.gravity = ev.Values
		f.haveGravity = true
	case Gyroscope:
		delta := f.calibrated.Delta(ev.Timestamp, ev.Values)
		f.meta.GyroscopeCalibrated = ev.Values
		f.meta.AngularVelocity = delta
		f.gyroHeading += delta[2]
		f.meta.GyroHeadingDegrees = degrees(f.gyroHeading)
	case GyroscopeUncalibrated:
		f.bias.Add(ev.Values)
		delta := f.raw.Delta(ev.Timestamp, ev.Values)
		f.rawHeading += delta[2]
		f.meta.UncalibratedHeading = degrees(f.rawHeading)
	default:
		f.reporter.Log(fmt.Sprintf("ignoring %s event", ev.Kind))
		return Meta{}, false
	}

	return f.tick(ev.Timestamp)
}

func (f *Fusion) gravityVector() [3]float64 {
	if f.haveGravity {
		return f.gravity
	}
	return f.accel
}

func (f *Fusion) tick(ts int64) (Meta, bool) {
	if f.ticked && time.Duration(ts-f.lastTick) < f.cfg.UpdateInterval {
		return Meta{}, false
	}
	f.ticked = true
	f.lastTick = ts

	if !f.haveAccel || !f.haveMag {
		return Meta{}, false
	}
	r, ok := RotationMatrix(f.accel, f.mag)
	if !ok {
		f.reporter.Log("rotation matrix unavailable, skipping orientation update")
		return Meta{}, false
	}

	azimuth, pitch, roll := Orientation(r)
	pitch = snapDrift(pitch, f.cfg.ValueDrift)
	roll = snapDrift(roll, f.cfg.ValueDrift)

	f.meta.Azimuth = azimuth
	f.meta.Pitch = pitch
	f.meta.Roll = roll
	f.meta.AngleWithDirection = geo.AngleWithDirection(azimuth)
	f.meta.RotationMatrix = flatten(r)
	f.meta.Timestamp = ts
	return f.meta, true
}

func degrees(rad float64) float64 { return rad * 180 / math.Pi }

// snapDrift zeroes v when it lies strictly inside (-drift, drift).
func snapDrift(v, drift float64) float64 {
	if math.Abs(v) < drift {
		return 0
	}
	return v
}
