package channel

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
)

const (
	// DefaultRingCapacity is the per-direction buffer size used by SharedRing
	// when the caller passes 0.
	DefaultRingCapacity = 64 << 10

	// MinRingCapacity is the smallest accepted ring.
	MinRingCapacity = 64

	frameHeader = 4
)

// ring is a fixed-capacity byte ring carrying length-prefixed frames.
//
// head and tail are monotonic byte cursors; the producer only advances tail
// and the consumer only advances head, so the two sides never share a lock.
// Frames wrap around the end of buf. A write that does not fit fails with
// ErrRingFull instead of blocking.
//
// The signal channel is the out-of-band notification a consumer can select
// on; it carries no data.
type ring struct {
	buf  []byte
	size uint64

	head atomic.Uint64
	tail atomic.Uint64

	frames atomic.Int64
	closed atomic.Bool

	wmu sync.Mutex // serializes producers and Close
	rmu sync.Mutex // serializes consumers

	signal    chan struct{}
	closeOnce sync.Once
}

func newRing(capacity int) *ring {
	return &ring{
		buf:    make([]byte, capacity),
		size:   uint64(capacity),
		signal: make(chan struct{}, 1),
	}
}

func (r *ring) write(payload []byte) error {
	r.wmu.Lock()
	defer r.wmu.Unlock()

	if r.closed.Load() {
		return ErrDisconnected
	}

	need := uint64(frameHeader + len(payload))
	if need > r.size {
		return fmt.Errorf("%w: %d bytes, capacity %d", ErrFrameTooLarge, need, r.size)
	}

	tail := r.tail.Load()
	if free := r.size - (tail - r.head.Load()); free < need {
		return ErrRingFull
	}

	var hdr [frameHeader]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(payload)))
	r.copyIn(tail, hdr[:])
	r.copyIn(tail+frameHeader, payload)

	// Publish the frame only after its bytes are in place.
	r.tail.Store(tail + need)
	r.frames.Add(1)

	select {
	case r.signal <- struct{}{}:
	default:
	}
	return nil
}

func (r *ring) read() ([]byte, bool, error) {
	r.rmu.Lock()
	defer r.rmu.Unlock()

	// Load closed before tail: once closed is set no further frames are
	// published, so an empty ring observed afterwards is final.
	closed := r.closed.Load()
	head := r.head.Load()
	tail := r.tail.Load()

	if tail == head {
		if closed {
			return nil, false, ErrDisconnected
		}
		return nil, false, nil
	}
	if tail-head < frameHeader {
		return nil, false, fmt.Errorf("channel: ring corrupt: %d bytes pending, header needs %d", tail-head, frameHeader)
	}

	var hdr [frameHeader]byte
	r.copyOut(head, hdr[:])
	n := uint64(binary.LittleEndian.Uint32(hdr[:]))
	if frameHeader+n > tail-head {
		return nil, false, fmt.Errorf("channel: ring corrupt: frame of %d bytes, %d pending", n, tail-head-frameHeader)
	}

	payload := make([]byte, n)
	r.copyOut(head+frameHeader, payload)

	r.head.Store(head + frameHeader + n)
	r.frames.Add(-1)
	return payload, true, nil
}

func (r *ring) copyIn(pos uint64, src []byte) {
	off := pos % r.size
	n := copy(r.buf[off:], src)
	copy(r.buf, src[n:])
}

func (r *ring) copyOut(pos uint64, dst []byte) {
	off := pos % r.size
	n := copy(dst, r.buf[off:])
	copy(dst[n:], r.buf)
}

func (r *ring) close() {
	r.closeOnce.Do(func() {
		r.wmu.Lock()
		defer r.wmu.Unlock()
		r.closed.Store(true)
		close(r.signal)
	})
}

// ringPipe adapts a ring to typed messages through an encoder/decoder pair.
// Values never cross the ring as shared memory, only as bytes.
type ringPipe[T any] struct {
	r      *ring
	encode func(T) ([]byte, error)
	decode func([]byte) (T, error)
}

func (p *ringPipe[T]) Send(v T) error {
	data, err := p.encode(v)
	if err != nil {
		return fmt.Errorf("channel: encode: %w", err)
	}
	return p.r.write(data)
}

func (p *ringPipe[T]) TryRecv() (T, bool, error) {
	var zero T
	data, ok, err := p.r.read()
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := p.decode(data)
	if err != nil {
		return zero, false, fmt.Errorf("channel: decode frame: %w", err)
	}
	return v, true, nil
}

func (p *ringPipe[T]) Wait() <-chan struct{} { return p.r.signal }

func (p *ringPipe[T]) Len() int { return int(p.r.frames.Load()) }

func (p *ringPipe[T]) Close() { p.r.close() }
