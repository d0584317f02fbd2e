package graph

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/calcflow/calcflow/errs"
	"github.com/calcflow/calcflow/internal/observability"
)

// State names a scheduler lifecycle stage.
type State string

const (
	// StateUnconnected covers construction and calculator registration.
	StateUnconnected State = "unconnected"
	// StateConnected means the pipeline ports are wired and the graph is runnable.
	StateConnected State = "connected"
	// StateRunning covers the span between the first Run and Stop.
	StateRunning State = "running"
	// StateStopped is terminal.
	StateStopped State = "stopped"
)

// DefaultFrameRate paces the scheduler when no explicit rate is configured.
const DefaultFrameRate = 60

// InputCallback produces the next packet to enqueue on the external input
// port. It receives the opaque user context registered alongside it and is
// invoked once per inner-loop iteration; returning the invalid packet feeds
// nothing (the port drops it).
type InputCallback func(userCtx any) Packet

// OutputCallback receives whatever the external output port yields each
// inner-loop iteration, valid or not. The callback inspects validity.
type OutputCallback func(Packet)

// Scheduler owns a linear sequence of calculators and their contexts, wires
// adjacent calculators by output tag, and drives the frame loop. It is
// single-threaded and cooperative: Run executes one frame and yields once the
// frame budget is consumed.
type Scheduler struct {
	id            string
	frameRate     int
	frameDuration time.Duration
	portCapacity  int
	now           func() time.Time

	calculators []Calculator
	contexts    map[string]*Context
	inputPort   *Port
	outputPort  *Port

	state          State
	cursor         int
	startWall      time.Time
	lastFrameStart time.Time

	inputCallback  InputCallback
	inputCtx       any
	outputCallback OutputCallback
}

// Option configures a Scheduler at construction.
type Option func(*Scheduler)

// WithFrameRate sets the target frames per second; the frame budget is its
// reciprocal. Non-positive values are ignored.
func WithFrameRate(rate int) Option {
	return func(s *Scheduler) {
		if rate > 0 {
			s.frameRate = rate
		}
	}
}

// WithPortCapacity sets the queue bound used for the external ports.
func WithPortCapacity(capacity int) Option {
	return func(s *Scheduler) {
		if capacity > 0 {
			s.portCapacity = capacity
		}
	}
}

// WithClock overrides the wall clock, primarily for testing.
func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewScheduler constructs an unconnected scheduler with the default frame
// rate and port capacity unless overridden.
func NewScheduler(opts ...Option) *Scheduler {
	s := new(Scheduler)
	s.id = uuid.NewString()
	s.frameRate = DefaultFrameRate
	s.portCapacity = DefaultPortCapacity
	s.now = time.Now
	s.contexts = make(map[string]*Context)
	s.state = StateUnconnected
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.frameDuration = time.Second / time.Duration(s.frameRate)
	s.inputPort = NewPort(s.portCapacity)
	s.outputPort = NewPort(s.portCapacity)
	return s
}

// ID returns the scheduler's instance identifier, used to correlate logs and
// metrics.
func (s *Scheduler) ID() string { return s.id }

// CurrentState returns the current lifecycle stage.
func (s *Scheduler) CurrentState() State { return s.state }

// FrameDuration returns the per-frame time budget.
func (s *Scheduler) FrameDuration() time.Duration { return s.frameDuration }

// RegisterCalculator appends calc to the pipeline and stores the context it
// builds around the shared side parameters. Registration is only legal before
// the pipeline is connected.
func (s *Scheduler) RegisterCalculator(calc Calculator, side SideParameters) error {
	if s.state != StateUnconnected {
		return errs.New("graph/scheduler", errs.CodeInvalidState,
			errs.WithMessage("cannot register calculators once the pipeline is connected"))
	}
	name := calc.Name()
	if _, ok := s.contexts[name]; ok {
		return errs.New("graph/scheduler", errs.CodeInvalidConfig, errs.WithTag(name),
			errs.WithMessage("calculator name already registered"))
	}
	s.calculators = append(s.calculators, calc)
	s.contexts[name] = calc.RegisterContext(side)
	return nil
}

// ConnectCalculators wires the pipeline: every output port of calculator i is
// bound, under the same tag, as an input port of calculator i+1; the external
// input port becomes the first context's TagInput and the external output port
// the last context's TagOutput.
func (s *Scheduler) ConnectCalculators() error {
	if s.state != StateUnconnected {
		return errs.New("graph/scheduler", errs.CodeInvalidState,
			errs.WithMessage("pipeline already connected"))
	}
	if len(s.calculators) == 0 {
		return errs.New("graph/scheduler", errs.CodeEmptyPipeline,
			errs.WithMessage("no calculators registered to connect"))
	}

	for i := 0; i < len(s.calculators)-1; i++ {
		current, err := s.ContextOf(s.calculators[i].Name())
		if err != nil {
			return err
		}
		next, err := s.ContextOf(s.calculators[i+1].Name())
		if err != nil {
			return err
		}
		for _, tag := range current.OutputTags() {
			port, err := current.OutputPort(tag)
			if err != nil {
				return err
			}
			next.BindInputPort(tag, port)
		}
	}

	first, err := s.ContextOf(s.calculators[0].Name())
	if err != nil {
		return err
	}
	first.BindInputPort(TagInput, s.inputPort)

	last, err := s.ContextOf(s.calculators[len(s.calculators)-1].Name())
	if err != nil {
		return err
	}
	last.BindOutputPort(TagOutput, s.outputPort)

	s.state = StateConnected
	observability.Log().Info("pipeline connected",
		observability.Field{Key: "scheduler", Value: s.id},
		observability.Field{Key: "calculators", Value: len(s.calculators)})
	return nil
}

// ContextOf returns the context registered for the named calculator.
func (s *Scheduler) ContextOf(name string) (*Context, error) {
	cc, ok := s.contexts[name]
	if !ok {
		return nil, errs.New("graph/scheduler", errs.CodeInvalidConfig, errs.WithTag(name),
			errs.WithMessage("no context found for calculator"))
	}
	return cc, nil
}

// WriteToInputPort enqueues packet on the external input port; monotonic
// admission applies.
func (s *Scheduler) WriteToInputPort(packet Packet) {
	s.inputPort.Write(packet)
}

// ReadFromOutputPort dequeues from the external output port, returning the
// invalid packet when it is empty.
func (s *Scheduler) ReadFromOutputPort() Packet {
	return s.outputPort.Read()
}

// RegisterInputCallback installs the bridging callback invoked once per
// inner-loop iteration to feed the external input port. userCtx is handed back
// to the callback opaquely.
func (s *Scheduler) RegisterInputCallback(fn InputCallback, userCtx any) {
	s.inputCallback = fn
	s.inputCtx = userCtx
}

// RegisterOutputCallback installs the bridging callback draining the external
// output port once per inner-loop iteration.
func (s *Scheduler) RegisterOutputCallback(fn OutputCallback) {
	s.outputCallback = fn
}

// Run executes one frame: calculators are visited cyclically from the
// preserved cursor until the frame budget is consumed. The scheduler does not
// sleep on underrun and does not swallow calculator errors; on error the
// cursor stays on the failing calculator.
func (s *Scheduler) Run() error {
	switch s.state {
	case StateConnected, StateRunning:
	case StateStopped:
		return errs.New("graph/scheduler", errs.CodeInvalidState,
			errs.WithMessage("scheduler is stopped"))
	default:
		if len(s.calculators) == 0 {
			return errs.New("graph/scheduler", errs.CodeEmptyPipeline,
				errs.WithMessage("no calculators registered to run"))
		}
		return errs.New("graph/scheduler", errs.CodeInvalidState,
			errs.WithMessage("pipeline not connected"))
	}

	if s.state == StateConnected {
		s.state = StateRunning
		s.startWall = s.now()
	}

	frameStart := s.now()
	var delta float64
	if !s.lastFrameStart.IsZero() {
		delta = frameStart.Sub(s.lastFrameStart).Seconds()
	}
	s.lastFrameStart = frameStart

	for {
		if s.state != StateRunning {
			return nil
		}

		if s.inputCallback != nil {
			s.inputPort.Write(s.inputCallback(s.inputCtx))
		}

		calc := s.calculators[s.cursor]
		cc := s.contexts[calc.Name()]

		if err := calc.Enter(cc, delta); err != nil {
			return fmt.Errorf("calculator %s enter: %w", calc.Name(), err)
		}
		if err := calc.Process(cc, delta); err != nil {
			return fmt.Errorf("calculator %s process: %w", calc.Name(), err)
		}
		if err := calc.Close(cc, delta); err != nil {
			return fmt.Errorf("calculator %s close: %w", calc.Name(), err)
		}

		if s.outputCallback != nil {
			s.outputCallback(s.outputPort.Read())
		}

		s.cursor = (s.cursor + 1) % len(s.calculators)

		if elapsed := s.now().Sub(s.lastFrameStart); elapsed >= s.frameDuration {
			s.recordFrame(elapsed)
			return nil
		}
	}
}

// Stop halts the scheduler: the calculator currently executing completes and
// the in-flight Run returns at the next iteration. Stopped is terminal.
func (s *Scheduler) Stop() {
	s.state = StateStopped
}

// Elapsed returns the seconds since the first Run entry, or zero before it.
func (s *Scheduler) Elapsed() float64 {
	if s.startWall.IsZero() {
		return 0
	}
	return s.now().Sub(s.startWall).Seconds()
}

func (s *Scheduler) recordFrame(elapsed time.Duration) {
	labels := map[string]string{"scheduler": s.id}
	metrics := observability.Telemetry()
	metrics.IncCounter("scheduler_frames_total", 1, labels)
	if elapsed >= 2*s.frameDuration {
		metrics.IncCounter("scheduler_overruns_total", 1, labels)
	}
	metrics.ObserveHistogram("scheduler_frame_seconds", elapsed.Seconds(), labels)
	metrics.SetGauge("scheduler_output_port_depth", float64(s.outputPort.Size()), labels)
	metrics.SetGauge("scheduler_input_port_dropped_total", float64(s.inputPort.Dropped()), labels)
}
