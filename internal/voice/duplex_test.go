package voice

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type receiveResult struct {
	event *ServerEvent
	err   error
}

// fakeTransport records outbound chunks and replays scripted server events.
type fakeTransport struct {
	mu     sync.Mutex
	sent   []Chunk
	closed bool
	events chan receiveResult
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan receiveResult, 16)}
}

func (t *fakeTransport) Send(chunk Chunk) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, chunk)
	return nil
}

func (t *fakeTransport) Receive() (*ServerEvent, error) {
	res, ok := <-t.events
	if !ok {
		return nil, fmt.Errorf("transport closed")
	}
	return res.event, res.err
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) sentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

func (t *fakeTransport) wasClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

type fakeDialer struct {
	transport *fakeTransport
	err       error
}

func (d *fakeDialer) Dial(ctx context.Context) (Transport, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.transport, nil
}

// fakeCapture hands the frame callback to the test instead of a device.
type fakeCapture struct {
	mu       sync.Mutex
	onFrame  func([]float32)
	stopped  bool
	startErr error
}

func (c *fakeCapture) Start(onFrame func([]float32)) error {
	if c.startErr != nil {
		return c.startErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFrame = onFrame
	return nil
}

func (c *fakeCapture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	return nil
}

func (c *fakeCapture) emit(frame []float32) {
	c.mu.Lock()
	cb := c.onFrame
	c.mu.Unlock()
	if cb != nil {
		cb(frame)
	}
}

func (c *fakeCapture) wasStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

func newTestDuplex(dialer Dialer, capture CaptureSource) (*Duplex, *Scheduler) {
	sched := NewScheduler(&recordingSink{}, OutputSampleRate, fixedClock(-1))
	return NewDuplex(dialer, capture, sched), sched
}

func TestStartMovesIdleToActive(t *testing.T) {
	transport := newFakeTransport()
	capture := &fakeCapture{}
	d, _ := newTestDuplex(&fakeDialer{transport: transport}, capture)

	assert.Equal(t, StateIdle, d.State())
	require.NoError(t, d.Start(context.Background()))
	assert.Equal(t, StateActive, d.State())

	d.Stop()
}

func TestDialFailureReturnsToIdle(t *testing.T) {
	capture := &fakeCapture{}
	d, _ := newTestDuplex(&fakeDialer{err: fmt.Errorf("endpoint unreachable")}, capture)

	err := d.Start(context.Background())

	assert.Error(t, err)
	assert.Equal(t, StateIdle, d.State())
}

func TestCaptureFailureClosesTransportAndReturnsToIdle(t *testing.T) {
	transport := newFakeTransport()
	capture := &fakeCapture{startErr: fmt.Errorf("no microphone")}
	d, _ := newTestDuplex(&fakeDialer{transport: transport}, capture)

	err := d.Start(context.Background())

	assert.Error(t, err)
	assert.Equal(t, StateIdle, d.State())
	assert.True(t, transport.wasClosed())
}

func TestStartRejectedWhenNotIdle(t *testing.T) {
	transport := newFakeTransport()
	capture := &fakeCapture{}
	d, _ := newTestDuplex(&fakeDialer{transport: transport}, capture)

	require.NoError(t, d.Start(context.Background()))
	assert.Error(t, d.Start(context.Background()))

	d.Stop()
	assert.Error(t, d.Start(context.Background()))
}

func TestCapturedFramesReachTransport(t *testing.T) {
	transport := newFakeTransport()
	capture := &fakeCapture{}
	d, _ := newTestDuplex(&fakeDialer{transport: transport}, capture)
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	capture.emit(make([]float32, FrameSize))
	capture.emit(make([]float32, FrameSize))

	require.Equal(t, 2, transport.sentCount())
	assert.Equal(t, InputMIMEType, transport.sent[0].MIMEType)
}

func TestFramesDroppedAfterStop(t *testing.T) {
	transport := newFakeTransport()
	capture := &fakeCapture{}
	d, _ := newTestDuplex(&fakeDialer{transport: transport}, capture)
	require.NoError(t, d.Start(context.Background()))

	d.Stop()
	capture.emit(make([]float32, FrameSize))

	assert.Equal(t, 0, transport.sentCount())
}

func TestInboundAudioIsScheduled(t *testing.T) {
	transport := newFakeTransport()
	capture := &fakeCapture{}
	d, sched := newTestDuplex(&fakeDialer{transport: transport}, capture)
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	chunk := EncodeFrame(make([]float32, 2400))
	transport.events <- receiveResult{event: &ServerEvent{Audio: chunk.Data}}

	assert.Eventually(t, func() bool {
		return sched.PendingCount() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestInterruptionFlushesScheduledPlayback(t *testing.T) {
	transport := newFakeTransport()
	capture := &fakeCapture{}
	d, sched := newTestDuplex(&fakeDialer{transport: transport}, capture)
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	chunk := EncodeFrame(make([]float32, 24000))
	transport.events <- receiveResult{event: &ServerEvent{Audio: chunk.Data}}
	require.Eventually(t, func() bool {
		return sched.PendingCount() == 1
	}, time.Second, 5*time.Millisecond)

	transport.events <- receiveResult{event: &ServerEvent{Interrupted: true}}

	assert.Eventually(t, func() bool {
		return sched.PendingCount() == 0 && sched.NextStart() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestReceiveErrorClosesSession(t *testing.T) {
	transport := newFakeTransport()
	capture := &fakeCapture{}
	d, _ := newTestDuplex(&fakeDialer{transport: transport}, capture)
	require.NoError(t, d.Start(context.Background()))

	transport.events <- receiveResult{err: fmt.Errorf("connection reset")}

	assert.Eventually(t, func() bool {
		return d.State() == StateClosed
	}, time.Second, 5*time.Millisecond)
	assert.True(t, capture.wasStopped())
}

func TestStopReleasesCaptureAndTransport(t *testing.T) {
	transport := newFakeTransport()
	capture := &fakeCapture{}
	d, _ := newTestDuplex(&fakeDialer{transport: transport}, capture)
	require.NoError(t, d.Start(context.Background()))

	d.Stop()
	d.Stop() // second call is a no-op

	assert.Equal(t, StateClosed, d.State())
	assert.True(t, capture.wasStopped())
	assert.True(t, transport.wasClosed())
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "closed", StateClosed.String())
}
