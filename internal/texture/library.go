package texture

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"sync"
	"sync/atomic"

	"github.com/HugoSmits86/nativewebp"
	"github.com/google/uuid"
)

// Handle is a decoded photo owned by exactly one entity. It satisfies
// registry.Texture.
type Handle struct {
	id       string
	source   string
	img      *image.NRGBA
	lib      *Library
	released atomic.Bool
}

// ID returns the token the renderer uses to fetch the texture.
func (h *Handle) ID() string { return h.id }

// Source returns the original file name.
func (h *Handle) Source() string { return h.source }

// Image returns the decoded pixels.
func (h *Handle) Image() *image.NRGBA { return h.img }

// Release drops the texture from its library. Safe to call more than once.
func (h *Handle) Release() {
	if !h.released.CompareAndSwap(false, true) {
		return
	}
	if h.lib != nil {
		h.lib.drop(h.id)
	}
}

// Library indexes live textures by id so the HTTP side can serve them
// while the render loop owns the handles. Encoded webp bytes are cached.
type Library struct {
	mu    sync.RWMutex
	items map[string]*libraryEntry
}

type libraryEntry struct {
	handle *Handle
	webp   []byte
}

// NewLibrary creates an empty Library.
func NewLibrary() *Library {
	return &Library{items: make(map[string]*libraryEntry)}
}

// Add registers img and returns its handle.
func (l *Library) Add(source string, img *image.NRGBA) *Handle {
	h := &Handle{id: uuid.NewString(), source: source, img: img, lib: l}

	l.mu.Lock()
	l.items[h.id] = &libraryEntry{handle: h}
	l.mu.Unlock()
	return h
}

// Get returns the live handle with id.
func (l *Library) Get(id string) (*Handle, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.items[id]
	if !ok {
		return nil, false
	}
	return e.handle, true
}

// Len returns the number of live textures.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// WebP returns the texture encoded as lossless webp, encoding on first use.
func (l *Library) WebP(id string) ([]byte, bool, error) {
	// Fast path: read lock
	l.mu.RLock()
	e, ok := l.items[id]
	if !ok {
		l.mu.RUnlock()
		return nil, false, nil
	}
	if e.webp != nil {
		data := e.webp
		l.mu.RUnlock()
		return data, true, nil
	}
	img := e.handle.img
	l.mu.RUnlock()

	var buf bytes.Buffer
	if err := EncodeWebP(&buf, img); err != nil {
		return nil, true, err
	}

	// Write lock with double-check; the texture may have been released meanwhile.
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok = l.items[id]
	if !ok {
		return nil, false, nil
	}
	if e.webp == nil {
		e.webp = buf.Bytes()
	}
	return e.webp, true, nil
}

func (l *Library) drop(id string) {
	l.mu.Lock()
	delete(l.items, id)
	l.mu.Unlock()
}

// EncodeWebP writes img as lossless webp.
func EncodeWebP(w io.Writer, img image.Image) error {
	if err := nativewebp.Encode(w, img, nil); err != nil {
		return fmt.Errorf("webp encode: %w", err)
	}
	return nil
}
