package texture

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ayusman/aureum/internal/logger"
)

var (
	// ErrQueueFull is returned by Submit when every worker is busy and the queue is full.
	ErrQueueFull = errors.New("upload queue full")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("uploader closed")
)

// DeliverFunc hands a decoded texture to its consumer. If it returns an
// error the uploader releases the handle.
type DeliverFunc func(h *Handle) error

type job struct {
	source string
	data   []byte
}

// Stats counts upload outcomes.
type Stats struct {
	Decoded int64 `json:"decoded"`
	Failed  int64 `json:"failed"`
	Pending int   `json:"pending"`
}

// Uploader decodes uploads on a fixed pool of workers. Decode failures
// are logged and dropped.
type Uploader struct {
	dec     *Decoder
	lib     *Library
	deliver DeliverFunc
	workers int
	log     *zap.Logger

	mu     sync.Mutex
	closed bool
	jobs   chan job
	wg     sync.WaitGroup

	decoded atomic.Int64
	failed  atomic.Int64
}

// NewUploader creates an Uploader. Call Start before Submit.
func NewUploader(dec *Decoder, lib *Library, workers, queue int, deliver DeliverFunc) *Uploader {
	if workers < 1 {
		workers = 1
	}
	if queue < 1 {
		queue = 1
	}
	return &Uploader{
		dec:     dec,
		lib:     lib,
		deliver: deliver,
		workers: workers,
		log:     logger.Named("upload"),
		jobs:    make(chan job, queue),
	}
}

// Start launches the workers.
func (u *Uploader) Start() {
	for w := 0; w < u.workers; w++ {
		u.wg.Add(1)
		go func() {
			defer u.wg.Done()
			for j := range u.jobs {
				u.process(j)
			}
		}()
	}
}

// Submit queues data for decoding. It never blocks.
func (u *Uploader) Submit(source string, data []byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return ErrClosed
	}
	select {
	case u.jobs <- job{source: source, data: data}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting uploads and waits for queued ones to finish.
func (u *Uploader) Close() {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return
	}
	u.closed = true
	close(u.jobs)
	u.mu.Unlock()

	u.wg.Wait()
}

// Stats returns the outcome counters.
func (u *Uploader) Stats() Stats {
	return Stats{
		Decoded: u.decoded.Load(),
		Failed:  u.failed.Load(),
		Pending: len(u.jobs),
	}
}

func (u *Uploader) process(j job) {
	img, format, err := u.dec.Decode(bytes.NewReader(j.data))
	if err != nil {
		u.failed.Add(1)
		u.log.Warn("photo decode failed",
			zap.String("source", j.source),
			zap.Int("bytes", len(j.data)),
			zap.Error(err),
		)
		return
	}

	h := u.lib.Add(j.source, img)
	if err := u.deliver(h); err != nil {
		h.Release()
		u.failed.Add(1)
		u.log.Warn("photo dropped", zap.String("source", j.source), zap.Error(err))
		return
	}

	u.decoded.Add(1)
	u.log.Debug("photo decoded",
		zap.String("source", j.source),
		zap.String("format", format),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()),
	)
}
