package voice

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os/exec"
	"sync"

	"chatbank/internal/logger"
)

// MicCapture reads microphone audio from an external recorder process and
// delivers fixed-size float32 frames.
type MicCapture struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
	done   chan struct{}
}

// NewMicCapture probes for a usable recorder binary. It prefers arecord,
// then sox's rec, then ffmpeg.
func NewMicCapture() (*MicCapture, error) {
	cmd, err := detectRecorder(InputSampleRate)
	if err != nil {
		return nil, err
	}
	return &MicCapture{cmd: cmd}, nil
}

func detectRecorder(rate int) (*exec.Cmd, error) {
	if path, err := exec.LookPath("arecord"); err == nil {
		return exec.Command(path,
			"-q", "-f", "S16_LE", "-c", "1", "-r", fmt.Sprint(rate), "-t", "raw"), nil
	}
	if path, err := exec.LookPath("rec"); err == nil {
		return exec.Command(path,
			"-q", "-t", "raw", "-b", "16", "-e", "signed", "-c", "1", "-r", fmt.Sprint(rate), "-"), nil
	}
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		return exec.Command(path,
			"-loglevel", "quiet", "-f", "pulse", "-i", "default",
			"-ac", "1", "-ar", fmt.Sprint(rate), "-f", "s16le", "-"), nil
	}
	return nil, fmt.Errorf("no audio recorder found (need arecord, rec, or ffmpeg)")
}

// Start launches the recorder and invokes onFrame for every full frame of
// captured samples until Stop is called or the recorder exits.
func (c *MicCapture) Start(onFrame func([]float32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return fmt.Errorf("capture already started")
	}

	stdout, err := c.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open recorder pipe: %w", err)
	}
	if err := c.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start recorder: %w", err)
	}
	c.stdout = stdout
	c.done = make(chan struct{})
	logger.Debug("microphone capture started", "command", c.cmd.Path)

	go c.readLoop(stdout, onFrame, c.done)
	return nil
}

func (c *MicCapture) readLoop(r io.Reader, onFrame func([]float32), done chan struct{}) {
	buf := make([]byte, FrameSize*2)
	frame := make([]float32, FrameSize)
	for {
		select {
		case <-done:
			return
		default:
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			if err != io.EOF && err != io.ErrClosedPipe {
				logger.Warn("capture read failed", "error", err)
			}
			return
		}
		for i := range frame {
			s := int16(binary.LittleEndian.Uint16(buf[i*2:]))
			frame[i] = float32(s) / 32768.0
		}
		onFrame(frame)
	}
}

// Stop terminates the recorder process. Safe to call more than once.
func (c *MicCapture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		return nil
	}
	close(c.done)
	c.done = nil
	if c.stdout != nil {
		c.stdout.Close()
	}
	if c.cmd.Process != nil {
		c.cmd.Process.Kill()
		c.cmd.Wait()
	}
	return nil
}

// PCMPlayer streams playback samples to an external player process.
type PCMPlayer struct {
	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// NewPCMPlayer probes for a player binary and starts it reading raw PCM on
// stdin. It prefers ffplay, then aplay, then sox's play.
func NewPCMPlayer(sampleRate int) (*PCMPlayer, error) {
	cmd, err := detectPlayer(sampleRate)
	if err != nil {
		return nil, err
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open player pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start player: %w", err)
	}
	logger.Debug("audio player started", "command", cmd.Path, "rate", sampleRate)
	return &PCMPlayer{cmd: cmd, stdin: stdin}, nil
}

func detectPlayer(rate int) (*exec.Cmd, error) {
	if path, err := exec.LookPath("ffplay"); err == nil {
		return exec.Command(path,
			"-loglevel", "quiet", "-nodisp", "-autoexit",
			"-f", "s16le", "-ar", fmt.Sprint(rate), "-ch_layout", "mono", "-i", "-"), nil
	}
	if path, err := exec.LookPath("aplay"); err == nil {
		return exec.Command(path,
			"-q", "-f", "S16_LE", "-c", "1", "-r", fmt.Sprint(rate), "-t", "raw"), nil
	}
	if path, err := exec.LookPath("play"); err == nil {
		return exec.Command(path,
			"-q", "-t", "raw", "-b", "16", "-e", "signed", "-c", "1", "-r", fmt.Sprint(rate), "-"), nil
	}
	return nil, fmt.Errorf("no audio player found (need ffplay, aplay, or play)")
}

// WritePCM converts samples to little-endian int16 and writes them to the
// player's stdin.
func (p *PCMPlayer) WritePCM(samples []float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stdin == nil {
		return fmt.Errorf("player closed")
	}
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int16(math.Round(float64(s) * 32767))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	_, err := p.stdin.Write(buf)
	return err
}

// Close shuts the player input and reaps the process.
func (p *PCMPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stdin == nil {
		return nil
	}
	p.stdin.Close()
	p.stdin = nil
	if p.cmd.Process != nil {
		p.cmd.Wait()
	}
	return nil
}
