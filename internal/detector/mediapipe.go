package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/aureum/internal/logger"
)

const (
	serviceScript   = "scripts/hand_landmarks.py"
	serviceIdleStop = 30 * time.Second
)

// ErrServiceNotFound is returned when the landmark service script is missing.
var ErrServiceNotFound = errors.New("hand landmark service not found")

// MediaPipe implements Detector by streaming JPEG frames to a Python
// MediaPipe process. Frames are written as a 4-byte big-endian length
// followed by the JPEG bytes; each reply is one JSON line.
type MediaPipe struct {
	config Config
	script string
	log    *zap.Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   *bufio.Reader
	idleStop *time.Timer
}

// NewMediaPipe creates a MediaPipe detector. The Python process is
// started lazily on the first Detect and stopped after 30s without frames.
func NewMediaPipe(config Config) (*MediaPipe, error) {
	script := locate(serviceScript)
	if script == "" {
		return nil, ErrServiceNotFound
	}

	return &MediaPipe{
		config: config,
		script: script,
		log:    logger.Named("mediapipe"),
	}, nil
}

// Detect encodes the frame, sends it to the service and decodes the reply.
func (d *MediaPipe) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	if frame == nil || frame.Empty() {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.start(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	if err := writeFrame(d.stdin, buf.GetBytes()); err != nil {
		d.stopLocked()
		return nil, err
	}

	hands, err := readHands(d.stdout)
	if err != nil {
		d.stopLocked()
		return nil, err
	}

	d.armIdleStop()
	return hands, nil
}

// Close shuts down the Python process.
func (d *MediaPipe) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopLocked()
}

func (d *MediaPipe) start() error {
	if d.cmd != nil {
		return nil
	}

	python := locate("venv/bin/python")
	if python == "" {
		python = "python3"
	}

	cmd := exec.Command(python, append([]string{d.script}, d.config.Args()...)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start landmark service: %w", err)
	}

	d.cmd = cmd
	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.log.Info("landmark service started", zap.String("python", python), zap.Int("pid", cmd.Process.Pid))
	return nil
}

func (d *MediaPipe) stopLocked() error {
	if d.cmd == nil {
		return nil
	}
	if d.idleStop != nil {
		d.idleStop.Stop()
		d.idleStop = nil
	}

	d.stdin.Close()
	err := d.cmd.Wait()
	d.cmd, d.stdin, d.stdout = nil, nil, nil
	d.log.Info("landmark service stopped")
	return err
}

func (d *MediaPipe) armIdleStop() {
	if d.idleStop != nil {
		d.idleStop.Stop()
	}
	d.idleStop = time.AfterFunc(serviceIdleStop, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if err := d.stopLocked(); err != nil {
			d.log.Debug("landmark service exit", zap.Error(err))
		}
	})
}

func writeFrame(w io.Writer, data []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(data)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// serviceReply is one JSON line from the landmark service.
type serviceReply struct {
	Hands []struct {
		Points     []Point3D `json:"points"`
		Handedness string    `json:"handedness"`
		Score      float64   `json:"score"`
	} `json:"hands"`
	Error string `json:"error,omitempty"`
}

func readHands(r *bufio.Reader) ([]HandLandmarks, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}

	var reply serviceReply
	if err := json.Unmarshal(line, &reply); err != nil {
		return nil, fmt.Errorf("parse reply: %w", err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("landmark service: %s", reply.Error)
	}

	hands := make([]HandLandmarks, 0, len(reply.Hands))
	for _, h := range reply.Hands {
		if len(h.Points) < NumLandmarks {
			continue
		}
		lm := HandLandmarks{Handedness: h.Handedness, Score: h.Score}
		copy(lm.Points[:], h.Points)
		hands = append(hands, lm)
	}
	return hands, nil
}

// locate resolves a path relative to the working directory, the
// executable directory or ~/.aureum.
func locate(rel string) string {
	var execDir string
	if execPath, err := os.Executable(); err == nil {
		execDir = filepath.Dir(execPath)
	}
	home, _ := os.UserHomeDir()

	candidates := []string{
		rel,
		filepath.Join("..", rel),
		filepath.Join(execDir, rel),
		filepath.Join(home, ".aureum", rel),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}
	return ""
}
