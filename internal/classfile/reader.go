// Package classfile decodes class files and JAR archives into the
// internal/ir representation: constant pool, fields, methods, bytecode,
// and the control-flow graph built from it.
//
// Grounded on the decode shape of
// other_examples/fca524f3_artipop-jacobin__src-classloader-classloader.go
// (explicit struct-per-entry constant pool, raw-byte attributes) and on
// spec.md §4.1's scanner contract.
package classfile

import (
	"encoding/binary"
	"fmt"
)

// reader is a cursor over a class file's raw bytes. It never copies the
// underlying slice; every read advances pos and returns a sub-slice or
// scalar.
type reader struct {
	data []byte
	pos  int
}

func newReader(data []byte) *reader {
	return &reader{data: data}
}

func (r *reader) u1() (byte, error) {
	if r.pos+1 > len(r.data) {
		return 0, fmt.Errorf("classfile: truncated at offset %d reading u1", r.pos)
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u2() (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, fmt.Errorf("classfile: truncated at offset %d reading u2", r.pos)
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u4() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, fmt.Errorf("classfile: truncated at offset %d reading u4", r.pos)
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, fmt.Errorf("classfile: truncated at offset %d reading %d bytes", r.pos, n)
	}
	v := r.data[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func (r *reader) skip(n int) error {
	_, err := r.bytes(n)
	return err
}
