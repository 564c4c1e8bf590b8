package voice

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"chatbank/internal/logger"
)

// State is the duplex session lifecycle.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Duplex owns one voice session: it wires the capture source to the transport
// and the transport to the playback scheduler. It shares no state with the
// chat flow.
type Duplex struct {
	mu        sync.Mutex
	state     State
	dialer    Dialer
	capture   CaptureSource
	sched     *Scheduler
	transport Transport

	log *log.Logger
}

// NewDuplex assembles a duplex session in the Idle state.
func NewDuplex(dialer Dialer, capture CaptureSource, sched *Scheduler) *Duplex {
	return &Duplex{
		state:   StateIdle,
		dialer:  dialer,
		capture: capture,
		sched:   sched,
		log:     logger.NewStyledLogger("Voice"),
	}
}

// State reports the current lifecycle state.
func (d *Duplex) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Start moves Idle → Connecting → Active: opens the transport, then starts
// capture. Either failure aborts back to Idle with no retry.
func (d *Duplex) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.state != StateIdle {
		state := d.state
		d.mu.Unlock()
		return fmt.Errorf("voice session not idle (state %s)", state)
	}
	d.state = StateConnecting
	d.mu.Unlock()
	d.log.Info("voice session connecting")

	transport, err := d.dialer.Dial(ctx)
	if err != nil {
		d.mu.Lock()
		d.state = StateIdle
		d.mu.Unlock()
		d.log.Error("voice transport open failed", "error", err)
		return fmt.Errorf("failed to open voice transport: %w", err)
	}

	d.mu.Lock()
	d.transport = transport
	d.mu.Unlock()

	if err := d.capture.Start(d.onFrame); err != nil {
		_ = transport.Close()
		d.mu.Lock()
		d.state = StateIdle
		d.transport = nil
		d.mu.Unlock()
		d.log.Error("microphone capture failed", "error", err)
		return fmt.Errorf("failed to start capture: %w", err)
	}

	d.mu.Lock()
	d.state = StateActive
	d.mu.Unlock()
	d.log.Info("voice session active")

	go d.receiveLoop(transport)
	return nil
}

// onFrame runs on the capture callback for every buffer. It checks liveness
// before sending, so closing the session synchronously halts transmission.
func (d *Duplex) onFrame(frame []float32) {
	d.mu.Lock()
	transport := d.transport
	live := d.state == StateActive
	d.mu.Unlock()
	if !live || transport == nil {
		return
	}

	if err := transport.Send(EncodeFrame(frame)); err != nil {
		d.log.Debug("realtime send failed", "error", err)
	}
}

// receiveLoop decodes inbound units and hands them to the playback scheduler
// until the transport ends. Transport errors are logged, not escalated.
func (d *Duplex) receiveLoop(transport Transport) {
	for {
		ev, err := transport.Receive()
		if err != nil {
			if d.State() == StateActive {
				d.log.Warn("voice transport closed", "error", err)
			}
			d.Stop()
			return
		}

		if ev.Interrupted {
			d.log.Debug("remote turn interrupted, flushing playback")
			d.sched.Interrupt()
		}
		if ev.Audio == "" {
			continue
		}
		samples, err := DecodePCM(ev.Audio)
		if err != nil {
			d.log.Warn("inbound audio undecodable", "error", err)
			continue
		}
		d.sched.Schedule(samples)
	}
}

// Stop closes the session from any state and releases capture and transport.
// The release obligation holds regardless of which path triggered the close.
func (d *Duplex) Stop() {
	d.mu.Lock()
	if d.state == StateClosed {
		d.mu.Unlock()
		return
	}
	d.state = StateClosed
	transport := d.transport
	d.transport = nil
	d.mu.Unlock()

	if err := d.capture.Stop(); err != nil {
		d.log.Debug("capture stop failed", "error", err)
	}
	if transport != nil {
		if err := transport.Close(); err != nil {
			d.log.Debug("transport close failed", "error", err)
		}
	}
	d.sched.Interrupt()
	d.log.Info("voice session closed")
}
