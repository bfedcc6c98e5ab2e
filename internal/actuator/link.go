package actuator

import (
	"bufio"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tarm/serial"

	"github.com/smartbuilding/climatectl/internal/config"
	"github.com/smartbuilding/climatectl/internal/kernel"
)

const (
	// resetGrace is how long to wait after opening the port before the
	// first command: the device resets when the line is opened.
	resetGrace = 2 * time.Second

	retryInterval = 3 * time.Second
	closeTimeout  = 2 * time.Second

	outboundQueueSize = 32
)

// CommandSink is the slice of the control kernel that device events feed
// into.
type CommandSink interface {
	SetMode(mode kernel.Mode) bool
	SetManualWindow(percentage float64, origin kernel.Origin) bool
}

// Link owns the serial connection to the window controller. It implements
// kernel.ActuatorPort: outbound commands are queued and written by a
// background session; when the device is unavailable or the queue is full
// the command is dropped with a log entry, never blocking the kernel.
type Link struct {
	cfg  config.SerialConfig
	sink CommandSink

	out    chan string
	quit   chan struct{}
	wg     sync.WaitGroup
	onDrop func()

	mu   sync.Mutex
	port *serial.Port
}

// NewLink creates an unconnected link. onDrop, if non-nil, is invoked for
// every outbound command that is lost.
func NewLink(cfg config.SerialConfig, sink CommandSink, onDrop func()) *Link {
	if onDrop == nil {
		onDrop = func() {}
	}
	return &Link{
		cfg:    cfg,
		sink:   sink,
		out:    make(chan string, outboundQueueSize),
		quit:   make(chan struct{}),
		onDrop: onDrop,
	}
}

// Start launches the connection manager. The manager keeps reopening the
// port until Close is called; the kernel keeps running while the device is
// away, its commands are simply dropped.
func (l *Link) Start() {
	l.wg.Add(1)
	go l.run()
}

// Close stops the manager and joins it, waiting at most two seconds for the
// session goroutines to wind down.
func (l *Link) Close() {
	select {
	case <-l.quit:
		return
	default:
		close(l.quit)
	}
	l.closePort()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info().Msg("serial link closed")
	case <-time.After(closeTimeout):
		log.Warn().Msg("timeout waiting for serial link to close")
	}
}

// SetPosition implements kernel.ActuatorPort.
func (l *Link) SetPosition(opening float64) {
	l.send(formatPosition(opening))
}

// AnnounceMode implements kernel.ActuatorPort.
func (l *Link) AnnounceMode(mode kernel.Mode) {
	l.send(formatMode(mode))
}

// DisplayTemperature implements kernel.ActuatorPort.
func (l *Link) DisplayTemperature(celsius float64) {
	l.send(formatTemperature(celsius))
}

// SignalAlarm implements kernel.ActuatorPort.
func (l *Link) SignalAlarm(active bool) {
	l.send(formatAlarm(active))
}

// send enqueues a command without blocking. A full queue means the device is
// gone or wedged; the command is dropped and counted.
func (l *Link) send(cmd string) {
	select {
	case l.out <- cmd:
	default:
		log.Warn().Str("command", cmd).Msg("actuator queue full, dropping command")
		l.onDrop()
	}
}

func (l *Link) run() {
	defer l.wg.Done()
	for {
		port, err := serial.OpenPort(&serial.Config{Name: l.cfg.Port, Baud: l.cfg.Baud})
		if err != nil {
			log.Warn().Err(err).Str("port", l.cfg.Port).Msg("cannot open serial port, retrying")
			select {
			case <-time.After(retryInterval):
				continue
			case <-l.quit:
				return
			}
		}
		log.Info().Str("port", l.cfg.Port).Int("baud", l.cfg.Baud).Msg("serial link connected")
		l.setPort(port)

		// Opening the line resets the device; commands sent during the
		// reset window would be lost.
		select {
		case <-time.After(resetGrace):
		case <-l.quit:
			l.closePort()
			return
		}

		l.session(port)
		l.closePort()

		select {
		case <-l.quit:
			return
		default:
			log.Warn().Str("port", l.cfg.Port).Msg("serial link lost, reconnecting")
		}
	}
}

// session pumps the command queue into the port and runs the event reader
// until either side fails or the link is closing.
func (l *Link) session(port *serial.Port) {
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		l.readLoop(port)
	}()
	defer func() {
		l.closePort()
		<-readerDone
	}()

	for {
		select {
		case cmd := <-l.out:
			if _, err := port.Write([]byte(cmd + "\n")); err != nil {
				log.Error().Err(err).Str("command", cmd).Msg("serial write failed")
				l.onDrop()
				return
			}
			log.Debug().Str("command", cmd).Msg("sent to actuator")
		case <-readerDone:
			return
		case <-l.quit:
			return
		}
	}
}

func (l *Link) readLoop(port *serial.Port) {
	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		log.Debug().Str("line", line).Msg("received from actuator")
		l.dispatch(line)
	}
	if err := scanner.Err(); err != nil {
		log.Debug().Err(err).Msg("serial reader stopped")
	}
}

// dispatch translates one device line into a kernel command. Unknown lines
// are ignored; commands the kernel refuses are logged and dropped.
func (l *Link) dispatch(line string) {
	ev, ok := ParseEvent(line)
	if !ok {
		log.Debug().Str("line", line).Msg("ignoring unknown actuator line")
		return
	}
	switch ev.Kind {
	case EventModeChanged:
		if !l.sink.SetMode(ev.Mode) {
			log.Warn().Str("mode", ev.Mode.String()).Msg("device mode change rejected by kernel")
		}
	case EventKnobMoved:
		if !l.sink.SetManualWindow(ev.Percentage, kernel.OriginLocalKnob) {
			log.Warn().Float64("percentage", ev.Percentage).Msg("knob movement rejected by kernel")
		}
	}
}

func (l *Link) setPort(p *serial.Port) {
	l.mu.Lock()
	l.port = p
	l.mu.Unlock()
}

func (l *Link) closePort() {
	l.mu.Lock()
	if l.port != nil {
		l.port.Close()
		l.port = nil
	}
	l.mu.Unlock()
}
