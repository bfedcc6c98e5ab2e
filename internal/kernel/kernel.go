// Package kernel implements the control core of the climate unit: the pure
// thermal state machine and the actor that fuses sensor samples, actuator
// events, and operator commands into one serialised state.
package kernel

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/smartbuilding/climatectl/internal/config"
	"github.com/smartbuilding/climatectl/internal/telemetry"
)

// positionEpsilon suppresses servo chatter: window commands whose change
// from the last commanded position does not exceed it are not re-sent.
const positionEpsilon = 0.001

// Kernel owns the mutable control state. All inputs funnel through one
// command channel drained by a single goroutine, so at most one command
// mutates state at any time and producers observe FIFO ordering.
type Kernel struct {
	params   Params
	actuator ActuatorPort
	sensor   SensorPort
	rec      Recorder

	cmds chan func()
	quit chan struct{}
	done chan struct{}

	// now is the clock used for the too-hot timer; tests substitute it.
	now func() time.Time

	// State below is touched only by the run loop, and read directly only
	// after the loop has exited.
	mode          Mode
	state         State
	window        float64
	tooHotSince   time.Time
	current       float64
	hasSample     bool
	history       *telemetry.Window
	health        string
	healthDetail  map[string]any
	lastPeriod    time.Duration
	lastCommanded float64
}

// New creates a kernel wired to the given ports. A nil recorder disables
// observability updates. Call Start before submitting commands.
func New(cfg config.ControlConfig, actuator ActuatorPort, sensor SensorPort, rec Recorder) *Kernel {
	if rec == nil {
		rec = noopRecorder{}
	}
	return &Kernel{
		params: Params{
			T1:             cfg.T1,
			T2:             cfg.T2,
			AlarmAfter:     cfg.AlarmAfter.Std(),
			SamplingNormal: cfg.SamplingNormal.Std(),
			SamplingFast:   cfg.SamplingFast.Std(),
		},
		actuator: actuator,
		sensor:   sensor,
		rec:      rec,
		cmds:     make(chan func(), 32),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		now:      time.Now,
		mode:     ModeAutomatic,
		state:    StateNormal,
		window:   windowClosed,
		history:  telemetry.NewWindow(cfg.WindowSize),
		health:   SensorUnknown,
	}
}

// Start launches the command executor.
func (k *Kernel) Start() {
	go k.run()
	log.Info().
		Str("mode", k.mode.String()).
		Str("state", k.state.String()).
		Msg("control kernel started")
}

// Shutdown stops the executor. Pending commands are discarded; producers
// blocked on submission are released with a failure result.
func (k *Kernel) Shutdown() {
	select {
	case <-k.quit:
	default:
		close(k.quit)
	}
	<-k.done
	log.Info().Msg("control kernel stopped")
}

func (k *Kernel) run() {
	defer close(k.done)
	for {
		select {
		case <-k.quit:
			return
		case fn := <-k.cmds:
			fn()
		}
	}
}

// call enqueues fn on the serial lane and waits for it to complete. It
// returns false when the kernel is shutting down and fn did not run.
func (k *Kernel) call(fn func()) bool {
	ran := make(chan struct{})
	select {
	case k.cmds <- func() { fn(); close(ran) }:
	case <-k.quit:
		return false
	}
	select {
	case <-ran:
		return true
	case <-k.done:
		return false
	}
}

// PublishInitialState pushes the kernel's starting configuration to the
// devices once both links are up: the normal sampling period, the current
// mode, and the initial window position. Commands issued before the links
// are ready would be lost, so the composition root calls this last.
func (k *Kernel) PublishInitialState() {
	k.call(func() {
		k.publishPeriod(k.params.SamplingNormal)
		k.actuator.AnnounceMode(k.mode)
		if k.mode == ModeManual && k.hasSample {
			k.actuator.DisplayTemperature(k.current)
		}
		k.actuator.SetPosition(k.window)
		k.lastCommanded = k.window
		k.rec.KernelState(k.state, k.window, k.lastPeriod)
	})
}

// OnSample processes a temperature reading from the sensor adapter.
// Non-finite values are discarded before they reach the telemetry window.
func (k *Kernel) OnSample(celsius float64) {
	if math.IsNaN(celsius) || math.IsInf(celsius, 0) {
		log.Warn().Float64("value", celsius).Msg("discarding non-finite temperature sample")
		k.rec.SampleRejected()
		return
	}
	k.call(func() {
		k.history.Record(celsius)
		k.current = celsius
		k.hasSample = true
		k.rec.SampleAccepted(celsius)
		log.Debug().
			Float64("celsius", celsius).
			Str("mode", k.mode.String()).
			Msg("temperature sample accepted")

		k.evaluateAndEmit()
	})
}

// OnSensorHealth records a status report from the sensor. The status string
// is forwarded to the dashboard verbatim; no state evaluation happens here.
func (k *Kernel) OnSensorHealth(status string, detail map[string]any) {
	k.call(func() {
		k.health = status
		if detail != nil {
			k.healthDetail = detail
		}
		log.Info().Str("status", status).Msg("sensor health updated")
	})
}

// SetMode switches between automatic and manual control. It fails while the
// alarm is latched and for invalid modes; switching to the current mode is a
// successful no-op that emits nothing.
func (k *Kernel) SetMode(m Mode) bool {
	if !m.valid() {
		log.Warn().Int("mode", int(m)).Msg("rejecting invalid mode")
		return false
	}
	accepted := false
	ok := k.call(func() {
		if k.state == StateAlarm {
			log.Warn().Str("requested", m.String()).Msg("mode change rejected while alarm is latched")
			return
		}
		accepted = true
		if k.mode == m {
			return
		}
		k.mode = m
		log.Info().Str("mode", m.String()).Msg("mode changed")

		if m == ModeAutomatic {
			k.evaluateAndEmit()
			k.actuator.AnnounceMode(m)
		} else {
			k.publishPeriod(k.params.SamplingNormal)
			k.actuator.AnnounceMode(m)
			if k.hasSample {
				k.actuator.DisplayTemperature(k.current)
			}
		}
		k.rec.KernelState(k.state, k.window, k.lastPeriod)
	})
	return ok && accepted
}

// SetManualWindow applies a window position requested by the operator or
// reported by the local knob. The percentage must be within [0,100] and the
// kernel must be in manual mode. Knob-originated values are recorded without
// echoing a position command: the hardware has already moved.
func (k *Kernel) SetManualWindow(percentage float64, origin Origin) bool {
	if math.IsNaN(percentage) || percentage < 0 || percentage > 100 {
		log.Warn().Float64("percentage", percentage).Msg("rejecting out-of-range window percentage")
		return false
	}
	accepted := false
	ok := k.call(func() {
		if k.mode != ModeManual {
			log.Warn().
				Str("origin", origin.String()).
				Msg("manual window command rejected: not in manual mode")
			return
		}
		accepted = true

		opening := clamp(percentage/100, windowClosed, windowFullyOpen)
		if math.Abs(opening-k.window) > positionEpsilon {
			k.window = opening
			log.Info().
				Float64("opening", opening).
				Str("origin", origin.String()).
				Msg("manual window opening set")
			if origin == OriginOperator {
				k.actuator.SetPosition(opening)
			}
			k.lastCommanded = opening
		}
		if k.hasSample {
			k.actuator.DisplayTemperature(k.current)
		}
		k.rec.KernelState(k.state, k.window, k.lastPeriod)
	})
	return ok && accepted
}

// ResetAlarm releases the latched alarm. In automatic mode the state machine
// re-evaluates with the latest sample; in manual mode the manual window
// position is retained and the state falls back to normal.
func (k *Kernel) ResetAlarm() bool {
	accepted := false
	ok := k.call(func() {
		if k.state != StateAlarm {
			log.Info().Msg("alarm reset requested but alarm is not latched")
			return
		}
		accepted = true
		k.state = StateNormal
		k.tooHotSince = time.Time{}
		log.Info().Msg("alarm reset by operator")

		if k.mode == ModeAutomatic && k.hasSample {
			k.evaluateAndEmit()
		}
		k.actuator.SignalAlarm(false)
		k.rec.KernelState(k.state, k.window, k.lastPeriod)
	})
	return ok && accepted
}

// Snapshot returns a consistent view of the kernel state. After shutdown the
// frozen terminal state is returned.
func (k *Kernel) Snapshot() Snapshot {
	var snap Snapshot
	if !k.call(func() { snap = k.buildSnapshot() }) {
		snap = k.buildSnapshot()
	}
	return snap
}

// evaluateAndEmit runs the state machine against the latest sample and
// issues the resulting device commands in the contractual order: sampling
// period, window position, temperature display, alarm signal.
func (k *Kernel) evaluateAndEmit() {
	if !k.hasSample {
		return
	}
	prev := k.state
	out := Evaluate(Inputs{
		Temperature: k.current,
		Now:         k.now(),
		Mode:        k.mode,
		State:       k.state,
		Window:      k.window,
		TooHotSince: k.tooHotSince,
	}, k.params)

	k.state = out.State
	k.window = out.Window
	k.tooHotSince = out.TooHotSince

	if prev != k.state {
		evt := log.Info()
		if k.state == StateAlarm {
			evt = log.Warn()
		}
		evt.Str("from", prev.String()).Str("to", k.state.String()).Msg("thermal state changed")
	}

	k.publishPeriod(out.Period)
	k.commandPosition(out.Window)
	if k.mode == ModeManual {
		k.actuator.DisplayTemperature(k.current)
	}
	if prev != StateAlarm && k.state == StateAlarm {
		k.actuator.SignalAlarm(true)
	}
	k.rec.KernelState(k.state, k.window, k.lastPeriod)
}

// publishPeriod forwards a sampling period to the sensor, deduplicating
// consecutive identical requests.
func (k *Kernel) publishPeriod(period time.Duration) {
	if period == k.lastPeriod {
		return
	}
	k.sensor.PublishPeriod(period)
	k.lastPeriod = period
}

// commandPosition forwards a window position to the actuator unless the
// change from the last commanded position is within the chatter epsilon.
func (k *Kernel) commandPosition(opening float64) {
	if math.Abs(opening-k.lastCommanded) <= positionEpsilon {
		return
	}
	k.actuator.SetPosition(opening)
	k.lastCommanded = opening
}

func (k *Kernel) buildSnapshot() Snapshot {
	hist := k.history.Snapshot()
	snap := Snapshot{
		SensorStatus:     k.health,
		SensorDetail:     k.healthDetail,
		LastTemperatures: hist.Readings,
		Mode:             k.mode,
		State:            k.state,
		WindowOpening:    roundPercent(k.window),
		AlarmActive:      k.state == StateAlarm,
	}
	if k.hasSample {
		current := k.current
		snap.CurrentTemperature = &current
	}
	if hist.Stats != nil {
		mean, min, max := hist.Stats.Mean, hist.Stats.Min, hist.Stats.Max
		snap.AverageTemperature = &mean
		snap.MinTemperature = &min
		snap.MaxTemperature = &max
	}
	return snap
}

// roundPercent converts an opening in [0,1] to a percentage with one decimal.
func roundPercent(opening float64) float64 {
	return math.Round(opening*1000) / 10
}
