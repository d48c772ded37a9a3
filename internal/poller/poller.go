// Package poller implements the adaptive telemetry loop. Each cycle captures
// an image and a temperature reading, submits them as one record, applies
// any refresh-time directive from the endpoint, and waits for the current
// interval. Failures are contained to the cycle they happen in.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kiwiot/faceometer/agent/internal/models"
	"github.com/kiwiot/faceometer/agent/internal/source"
)

const (
	defaultAcquireTimeout = 20 * time.Second
	defaultSubmitTimeout  = 15 * time.Second
)

// Sink submits a record and returns the endpoint's directive.
type Sink interface {
	Submit(ctx context.Context, rec models.Telemetry) (models.Directive, error)
}

// WaitFunc suspends for d or until ctx is done, returning ctx.Err() in the
// latter case.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Options wires the loop's collaborators.
type Options struct {
	Camera      source.ImageSource
	Thermometer source.TemperatureSource
	Sink        Sink
	DeviceID    string

	// Optional.
	Clock          *models.Clock
	AcquireTimeout time.Duration
	SubmitTimeout  time.Duration
	Observer       Observer
	Status         *Status
	Wait           WaitFunc
}

// Poller runs the telemetry loop for one device.
type Poller struct {
	camera         source.ImageSource
	thermometer    source.TemperatureSource
	sink           Sink
	deviceID       string
	clock          *models.Clock
	acquireTimeout time.Duration
	submitTimeout  time.Duration
	observer       Observer
	status         *Status
	wait           WaitFunc
	logger         *zap.Logger

	cycle uint64
}

// New creates a Poller. Camera, Thermometer, Sink and DeviceID are required.
func New(opts Options, logger *zap.Logger) (*Poller, error) {
	if opts.Camera == nil || opts.Thermometer == nil {
		return nil, errors.New("poller: camera and thermometer are required")
	}
	if opts.Sink == nil {
		return nil, errors.New("poller: sink is required")
	}
	if opts.DeviceID == "" {
		return nil, errors.New("poller: device id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Poller{
		camera:         opts.Camera,
		thermometer:    opts.Thermometer,
		sink:           opts.Sink,
		deviceID:       opts.DeviceID,
		clock:          opts.Clock,
		acquireTimeout: opts.AcquireTimeout,
		submitTimeout:  opts.SubmitTimeout,
		observer:       opts.Observer,
		status:         opts.Status,
		wait:           opts.Wait,
		logger:         logger,
	}
	if p.clock == nil {
		p.clock = models.NewClock()
	}
	if p.acquireTimeout <= 0 {
		p.acquireTimeout = defaultAcquireTimeout
	}
	if p.submitTimeout <= 0 {
		p.submitTimeout = defaultSubmitTimeout
	}
	if p.observer == nil {
		p.observer = nopObserver{}
	}
	if p.wait == nil {
		p.wait = sleep
	}
	return p, nil
}

// Run executes cycles until ctx is cancelled and returns the final state.
//
// Cancellation is only observed between cycles: a cycle that has started
// runs to completion (bounded by the acquire and submit timeouts) before
// Run returns.
func (p *Poller) Run(ctx context.Context, state PollState) PollState {
	p.logger.Info("Polling loop started",
		zap.String("device", p.deviceID),
		zap.Int("interval_seconds", state.IntervalSeconds))

	for ctx.Err() == nil {
		state, _ = p.Cycle(ctx, state)

		p.logger.Info("Waiting", zap.Int("seconds", state.IntervalSeconds))
		p.observer.Waiting(state.IntervalSeconds)
		if err := p.wait(ctx, state.Interval()); err != nil {
			break
		}
	}

	p.logger.Info("Polling loop stopped", zap.Int("interval_seconds", state.IntervalSeconds))
	return state
}

// Cycle runs one acquire-submit-interpret pass and returns the next state.
//
// The returned error is informational: the state returned alongside an
// error is always the state passed in.
func (p *Poller) Cycle(ctx context.Context, state PollState) (next PollState, err error) {
	p.cycle++
	start := time.Now()
	log := p.logger.With(zap.Uint64("cycle", p.cycle))

	log.Info("Cycle started", zap.Int("interval_seconds", state.IntervalSeconds))
	p.observer.CycleStarted()

	defer func() {
		if r := recover(); r != nil {
			next, err = state, fmt.Errorf("cycle panicked: %v", r)
			log.Error("Cycle panicked", zap.Any("panic", r), zap.Stack("stack"))
			p.observer.CycleFailed(StagePanic)
		}
		if p.status != nil {
			p.status.record(start, next, err)
		}
	}()

	// Shutdown is honored between cycles, not inside them.
	callCtx := context.WithoutCancel(ctx)

	image, temperature, err := p.acquire(callCtx)
	if err != nil {
		log.Warn("Acquisition failed", zap.Error(err))
		p.observer.CycleFailed(StageAcquire)
		return state, err
	}

	rec := models.NewTelemetry(p.clock, p.deviceID, temperature, image)

	directive, err := p.submit(callCtx, rec)
	if err != nil {
		log.Warn("Submission failed", zap.Error(err))
		p.observer.CycleFailed(StageSubmit)
		return state, err
	}

	next, changed := state.Apply(directive)
	if changed {
		log.Info("Updating refresh time",
			zap.Int("from_seconds", state.IntervalSeconds),
			zap.Int("to_seconds", next.IntervalSeconds))
		p.observer.IntervalChanged(next.IntervalSeconds)
	}

	took := time.Since(start)
	log.Debug("Cycle completed",
		zap.String("timestamp", rec.Timestamp),
		zap.Float64("temperature", temperature),
		zap.Int("image_bytes", len(image)),
		zap.Duration("took", took))
	p.observer.CycleSucceeded(took)
	return next, nil
}

// acquire captures the image and the temperature concurrently and waits for
// both. Either failure fails the whole acquisition.
func (p *Poller) acquire(ctx context.Context) ([]byte, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()

	var (
		image       []byte
		temperature float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		defer recoverAcquisition(p.camera.Name(), &err)
		b, err := p.camera.Acquire(gctx)
		if err != nil {
			return asAcquisitionError(p.camera.Name(), err)
		}
		image = b
		return nil
	})
	g.Go(func() (err error) {
		defer recoverAcquisition(p.thermometer.Name(), &err)
		t, err := p.thermometer.Acquire(gctx)
		if err != nil {
			return asAcquisitionError(p.thermometer.Name(), err)
		}
		temperature = t
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return image, temperature, nil
}

// submit hands the record to the sink under the submit timeout.
func (p *Poller) submit(ctx context.Context, rec models.Telemetry) (models.Directive, error) {
	ctx, cancel := context.WithTimeout(ctx, p.submitTimeout)
	defer cancel()
	return p.sink.Submit(ctx, rec)
}

// asAcquisitionError makes sure a source failure is reported as an
// *source.AcquisitionError.
func asAcquisitionError(name string, err error) error {
	var acqErr *source.AcquisitionError
	if errors.As(err, &acqErr) {
		return err
	}
	return &source.AcquisitionError{Source: name, Err: err}
}

// recoverAcquisition turns a driver panic into an acquisition failure.
func recoverAcquisition(name string, err *error) {
	if r := recover(); r != nil {
		*err = &source.AcquisitionError{Source: name, Err: fmt.Errorf("panic: %v", r)}
	}
}

// sleep is the default WaitFunc.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
