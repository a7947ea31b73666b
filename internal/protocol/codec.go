package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/gam3du/gam3du-sub000/internal/schema"
)

const (
	tagRequest  byte = 0x01
	tagResponse byte = 0x10
	tagError    byte = 0x11
	tagEvent    byte = 0x12
)

const (
	valueUnit byte = iota
	valueInteger
	valueFloat
	valueBoolean
	valueString
	valueList
)

// MaxListDepth bounds list nesting on decode.
const MaxListDepth = 32

// ErrTruncated is returned when input ends in the middle of a message.
var ErrTruncated = errors.New("protocol: truncated message")

// DecodeError describes malformed input at a byte offset.
type DecodeError struct {
	Offset  int
	Message string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("protocol: decode at offset %d: %s", e.Offset, e.Message)
}

// EncodeRequest serializes a request.
func EncodeRequest(r Request) ([]byte, error) {
	buf := make([]byte, 0, 32+len(r.Command)+8*len(r.Arguments))
	buf = append(buf, tagRequest)
	buf = append(buf, r.ID[:]...)
	buf = appendString(buf, string(r.Command))
	buf = binary.AppendUvarint(buf, uint64(len(r.Arguments)))
	for i, arg := range r.Arguments {
		var err error
		if buf, err = AppendValue(buf, arg); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
	}
	return buf, nil
}

// DecodeRequest parses a request produced by EncodeRequest.
func DecodeRequest(data []byte) (Request, error) {
	d := decoder{buf: data}
	if tag := d.readByte(); d.err == nil && tag != tagRequest {
		return Request{}, d.fail(0, fmt.Sprintf("expected request tag, got 0x%02x", tag))
	}

	var r Request
	r.ID = d.readID()
	r.Command = schema.Identifier(d.readString())
	argc := d.readLength()
	if d.err == nil && argc > 0 {
		r.Arguments = make([]schema.Value, 0, argc)
		for i := 0; i < argc && d.err == nil; i++ {
			r.Arguments = append(r.Arguments, d.readValue(0))
		}
	}
	if err := d.finish(); err != nil {
		return Request{}, err
	}
	return r, nil
}

// EncodeServerMessage serializes a Response, ErrorResponse or Event.
func EncodeServerMessage(m ServerMessage) ([]byte, error) {
	switch msg := m.(type) {
	case Response:
		buf := append([]byte{tagResponse}, msg.ID[:]...)
		return AppendValue(buf, msg.Result)
	case ErrorResponse:
		buf := append([]byte{tagError}, msg.ID[:]...)
		return appendString(buf, msg.Message), nil
	case Event:
		buf := appendString([]byte{tagEvent}, msg.Name)
		return binary.AppendVarint(buf, msg.Seq), nil
	default:
		return nil, fmt.Errorf("protocol: cannot encode server message %T", m)
	}
}

// DecodeServerMessage parses a message produced by EncodeServerMessage.
func DecodeServerMessage(data []byte) (ServerMessage, error) {
	d := decoder{buf: data}
	tag := d.readByte()

	var msg ServerMessage
	switch {
	case d.err != nil:
	case tag == tagResponse:
		id := d.readID()
		msg = Response{ID: id, Result: d.readValue(0)}
	case tag == tagError:
		id := d.readID()
		msg = ErrorResponse{ID: id, Message: d.readString()}
	case tag == tagEvent:
		name := d.readString()
		msg = Event{Name: name, Seq: d.readVarint()}
	default:
		return nil, d.fail(0, fmt.Sprintf("unknown server message tag 0x%02x", tag))
	}

	if err := d.finish(); err != nil {
		return nil, err
	}
	return msg, nil
}

// AppendValue appends the encoding of v to dst.
func AppendValue(dst []byte, v schema.Value) ([]byte, error) {
	switch val := v.(type) {
	case schema.UnitValue:
		return append(dst, valueUnit), nil
	case schema.IntegerValue:
		return binary.AppendVarint(append(dst, valueInteger), int64(val)), nil
	case schema.FloatValue:
		return binary.LittleEndian.AppendUint32(append(dst, valueFloat), math.Float32bits(float32(val))), nil
	case schema.BooleanValue:
		b := byte(0)
		if val {
			b = 1
		}
		return append(dst, valueBoolean, b), nil
	case schema.StringValue:
		return appendString(append(dst, valueString), string(val)), nil
	case schema.ListValue:
		dst = binary.AppendUvarint(append(dst, valueList), uint64(len(val)))
		for i, elem := range val {
			var err error
			if dst, err = AppendValue(dst, elem); err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
		}
		return dst, nil
	case nil:
		return nil, errors.New("protocol: cannot encode nil value")
	default:
		return nil, fmt.Errorf("protocol: cannot encode value %T", v)
	}
}

// DecodeValue parses a single value occupying all of data.
func DecodeValue(data []byte) (schema.Value, error) {
	d := decoder{buf: data}
	v := d.readValue(0)
	if err := d.finish(); err != nil {
		return nil, err
	}
	return v, nil
}

func appendString(dst []byte, s string) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

// decoder reads sequentially from buf and latches the first error; every
// read after an error returns a zero value.
type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) fail(off int, msg string) error {
	if d.err == nil {
		d.err = &DecodeError{Offset: off, Message: msg}
	}
	return d.err
}

func (d *decoder) remaining() int {
	return len(d.buf) - d.off
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n > d.remaining() {
		d.err = ErrTruncated
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) readByte() byte {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) readID() RequestID {
	var id RequestID
	copy(id[:], d.take(len(id)))
	return id
}

func (d *decoder) readUvarint() uint64 {
	if d.err != nil {
		return 0
	}
	n, size := binary.Uvarint(d.buf[d.off:])
	switch {
	case size == 0:
		d.err = ErrTruncated
		return 0
	case size < 0:
		d.fail(d.off, "varint overflows 64 bits")
		return 0
	}
	d.off += size
	return n
}

func (d *decoder) readVarint() int64 {
	if d.err != nil {
		return 0
	}
	n, size := binary.Varint(d.buf[d.off:])
	switch {
	case size == 0:
		d.err = ErrTruncated
		return 0
	case size < 0:
		d.fail(d.off, "varint overflows 64 bits")
		return 0
	}
	d.off += size
	return n
}

// readLength reads a count that must not exceed the bytes left; every encoded
// element occupies at least one byte.
func (d *decoder) readLength() int {
	start := d.off
	n := d.readUvarint()
	if d.err != nil {
		return 0
	}
	if n > uint64(d.remaining()) {
		d.fail(start, fmt.Sprintf("length %d exceeds remaining %d bytes", n, d.remaining()))
		return 0
	}
	return int(n)
}

func (d *decoder) readString() string {
	start := d.off
	b := d.take(d.readLength())
	if d.err != nil {
		return ""
	}
	if !utf8.Valid(b) {
		d.fail(start, "string is not valid UTF-8")
		return ""
	}
	return string(b)
}

func (d *decoder) readValue(depth int) schema.Value {
	start := d.off
	tag := d.readByte()
	if d.err != nil {
		return nil
	}

	switch tag {
	case valueUnit:
		return schema.Unit
	case valueInteger:
		return schema.IntegerValue(d.readVarint())
	case valueFloat:
		b := d.take(4)
		if b == nil {
			return nil
		}
		return schema.FloatValue(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case valueBoolean:
		switch d.readByte() {
		case 0:
			return schema.BooleanValue(false)
		case 1:
			return schema.BooleanValue(true)
		default:
			d.fail(start+1, "boolean byte must be 0 or 1")
			return nil
		}
	case valueString:
		return schema.StringValue(d.readString())
	case valueList:
		if depth >= MaxListDepth {
			d.fail(start, fmt.Sprintf("list nesting exceeds %d", MaxListDepth))
			return nil
		}
		n := d.readLength()
		list := make(schema.ListValue, 0, n)
		for i := 0; i < n && d.err == nil; i++ {
			list = append(list, d.readValue(depth+1))
		}
		return list
	default:
		d.fail(start, fmt.Sprintf("unknown value tag 0x%02x", tag))
		return nil
	}
}

func (d *decoder) finish() error {
	if d.err != nil {
		return d.err
	}
	if d.remaining() > 0 {
		return &DecodeError{Offset: d.off, Message: fmt.Sprintf("%d trailing bytes", d.remaining())}
	}
	return nil
}
