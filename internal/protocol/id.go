package protocol

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// RequestID correlates a request with its terminal response.
// The zero value is never issued by a generator.
type RequestID [16]byte

// IsZero reports whether id is the zero RequestID.
func (id RequestID) IsZero() bool {
	return id == RequestID{}
}

// String renders the id in the hyphenated UUID form.
func (id RequestID) String() string {
	return uuid.UUID(id).String()
}

// MarshalText implements encoding.TextMarshaler.
func (id RequestID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *RequestID) UnmarshalText(text []byte) error {
	parsed, err := ParseRequestID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseRequestID parses the hyphenated UUID form. The zero id is rejected.
func ParseRequestID(s string) (RequestID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return RequestID{}, fmt.Errorf("parse request id: %w", err)
	}
	id := RequestID(u)
	if id.IsZero() {
		return RequestID{}, fmt.Errorf("parse request id: zero id")
	}
	return id, nil
}

// IDGenerator issues request ids.
type IDGenerator interface {
	NewID() RequestID
}

// RandomIDs issues random (version 4) UUIDs.
//
// Thread-safety: RandomIDs is stateless and safe for concurrent use.
type RandomIDs struct{}

// NewID returns a fresh random id. Panics if the system random source fails.
func (RandomIDs) NewID() RequestID {
	return RequestID(uuid.Must(uuid.NewRandom()))
}

// SequentialIDs issues 1, 2, 3, ... encoded big-endian in the low 8 bytes.
// Deterministic ids make traces reproducible in tests and golden files.
//
// Thread-safety: safe for concurrent use (atomic counter).
type SequentialIDs struct {
	n atomic.Uint64
}

// NewSequentialIDs returns a generator whose first id is 1.
func NewSequentialIDs() *SequentialIDs {
	return &SequentialIDs{}
}

// NewID returns the next id in sequence.
func (g *SequentialIDs) NewID() RequestID {
	return SequentialID(g.n.Add(1))
}

// SequentialID returns the id SequentialIDs issues as its n-th value.
func SequentialID(n uint64) RequestID {
	var id RequestID
	binary.BigEndian.PutUint64(id[8:], n)
	return id
}
