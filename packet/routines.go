package packet

import (
	"encoding/binary"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/VolantMQ/volantdds/guid"
)

const (
	// MaxLPString longest string or byte slice carried by message
	MaxLPString = 64 * 1024
	// MaxElements longest list carried by message
	MaxElements = 4096
)

// writer encodes fields into buf.
// With nil buf it only counts bytes which is how message size is computed
type writer struct {
	buf []byte
	off int
}

func (w *writer) put(n int) []byte {
	start := w.off
	w.off += n

	if w.buf == nil {
		return nil
	}

	return w.buf[start:w.off]
}

func (w *writer) byte(v byte) {
	if b := w.put(1); b != nil {
		b[0] = v
	}
}

func (w *writer) bool(v bool) {
	if v {
		w.byte(1)
	} else {
		w.byte(0)
	}
}

func (w *writer) uint32(v uint32) {
	if b := w.put(4); b != nil {
		binary.BigEndian.PutUint32(b, v)
	}
}

func (w *writer) uint64(v uint64) {
	if b := w.put(8); b != nil {
		binary.BigEndian.PutUint64(b, v)
	}
}

func (w *writer) duration(d time.Duration) {
	w.uint64(uint64(d))
}

func (w *writer) uvarint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)

	if b := w.put(n); b != nil {
		copy(b, tmp[:n])
	}
}

func (w *writer) raw(v []byte) {
	if b := w.put(len(v)); b != nil {
		copy(b, v)
	}
}

func (w *writer) bytes(v []byte) {
	w.uvarint(uint64(len(v)))
	w.raw(v)
}

func (w *writer) string(v string) {
	w.uvarint(uint64(len(v)))
	if b := w.put(len(v)); b != nil {
		copy(b, v)
	}
}

func (w *writer) strings(v []string) {
	w.uvarint(uint64(len(v)))
	for _, s := range v {
		w.string(s)
	}
}

func (w *writer) sequences(v []uint64) {
	w.uvarint(uint64(len(v)))
	for _, s := range v {
		w.uint64(s)
	}
}

func (w *writer) guid(g guid.GUID) {
	if b := w.put(guid.Len); b != nil {
		g.Put(b)
	}
}

// reader decodes fields from buf. First error sticks and zeroes
// all further reads
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}

	if n < 0 || len(r.buf)-r.off < n {
		r.fail(ErrInsufficientDataSize)
		return nil
	}

	b := r.buf[r.off : r.off+n]
	r.off += n

	return b
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

func (r *reader) byte() byte {
	if b := r.take(1); b != nil {
		return b[0]
	}

	return 0
}

func (r *reader) bool() bool {
	switch r.byte() {
	case 0:
		return false
	case 1:
		return true
	default:
		r.fail(ErrInvalid)
		return false
	}
}

func (r *reader) uint32() uint32 {
	if b := r.take(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}

	return 0
}

func (r *reader) uint64() uint64 {
	if b := r.take(8); b != nil {
		return binary.BigEndian.Uint64(b)
	}

	return 0
}

func (r *reader) duration() time.Duration {
	d := time.Duration(r.uint64())
	if d < 0 {
		r.fail(ErrInvalid)
		return 0
	}

	return d
}

func (r *reader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}

	v, n := binary.Uvarint(r.buf[r.off:])
	if n <= 0 {
		if n == 0 {
			r.fail(ErrInsufficientDataSize)
		} else {
			r.fail(ErrInvalidLength)
		}

		return 0
	}

	r.off += n

	return v
}

func (r *reader) length(limit int) int {
	l := r.uvarint()
	if r.err != nil {
		return 0
	}

	if l > uint64(limit) {
		r.fail(ErrInvalidLPStringSize)
		return 0
	}

	return int(l)
}

func (r *reader) count(elemSize int) int {
	l := r.uvarint()
	if r.err != nil {
		return 0
	}

	if l > MaxElements {
		r.fail(ErrTooManyElements)
		return 0
	}

	// every element takes at least elemSize bytes
	if int(l)*elemSize > r.remaining() {
		r.fail(ErrInsufficientDataSize)
		return 0
	}

	return int(l)
}

func (r *reader) bytes() []byte {
	n := r.length(MaxLPString)
	b := r.take(n)
	if b == nil || n == 0 {
		return nil
	}

	return append([]byte(nil), b...)
}

func (r *reader) string() string {
	n := r.length(MaxLPString)
	b := r.take(n)
	if b == nil {
		return ""
	}

	if !utf8.Valid(b) {
		r.fail(ErrInvalidUtf8)
		return ""
	}

	return string(b)
}

func (r *reader) strings() []string {
	n := r.count(1)
	if n == 0 {
		return nil
	}

	out := make([]string, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		out = append(out, r.string())
	}

	return out
}

func (r *reader) sequences() []uint64 {
	n := r.count(8)
	if n == 0 {
		return nil
	}

	out := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, r.uint64())
	}

	return out
}

func (r *reader) guid() guid.GUID {
	b := r.take(guid.Len)
	if b == nil {
		return guid.Unknown()
	}

	g, err := guid.FromBytes(b)
	if err != nil {
		r.fail(ErrInvalidGUID)
	}

	return g
}

func (w *writer) prefix(p guid.Prefix) {
	w.raw(p[:])
}

func (r *reader) prefix() guid.Prefix {
	var p guid.Prefix
	if b := r.take(guid.PrefixLen); b != nil {
		copy(p[:], b)
	}

	return p
}

func (w *writer) uuid(u uuid.UUID) {
	w.raw(u[:])
}

func (r *reader) uuid() uuid.UUID {
	var u uuid.UUID
	if b := r.take(len(u)); b != nil {
		copy(u[:], b)
	}

	return u
}
