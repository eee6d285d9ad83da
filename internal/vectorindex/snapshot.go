package vectorindex

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	snapshotMagic   = "CFVX"
	snapshotVersion = uint16(1)
	maxRefLen       = 1 << 16
)

// ErrBadSnapshot is returned when a snapshot cannot be decoded.
var ErrBadSnapshot = errors.New("invalid index snapshot")

// Encode writes a snapshot of x: magic, version, dimension, count, then
// each entry as ref length, ref bytes and the little-endian vector.
func Encode(w io.Writer, x *Index) error {
	entries := x.Entries()
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(snapshotMagic); err != nil {
		return err
	}
	hdr := []any{snapshotVersion, uint32(x.Dimensions()), uint32(len(entries))}
	for _, v := range hdr {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("writing snapshot header: %w", err)
		}
	}

	buf := make([]byte, 4)
	for _, e := range entries {
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(e.Ref))); err != nil {
			return err
		}
		if _, err := bw.WriteString(e.Ref); err != nil {
			return err
		}
		for _, f := range e.Vector {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(f))
			if _, err := bw.Write(buf); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// Decode reads a snapshot written by Encode.
func Decode(r io.Reader) (*Index, error) {
	br := bufio.NewReader(r)

	magic := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("%w: reading magic: %v", ErrBadSnapshot, err)
	}
	if string(magic) != snapshotMagic {
		return nil, fmt.Errorf("%w: unexpected magic %q", ErrBadSnapshot, magic)
	}

	var version uint16
	var dim, count uint32
	for _, p := range []any{&version, &dim, &count} {
		if err := binary.Read(br, binary.LittleEndian, p); err != nil {
			return nil, fmt.Errorf("%w: reading header: %v", ErrBadSnapshot, err)
		}
	}
	if version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadSnapshot, version)
	}
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero dimension", ErrBadSnapshot)
	}

	x := New(int(dim))
	vecBytes := make([]byte, 4*int(dim))
	for i := uint32(0); i < count; i++ {
		var n uint32
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrBadSnapshot, i, err)
		}
		if n == 0 || n > maxRefLen {
			return nil, fmt.Errorf("%w: entry %d: ref length %d", ErrBadSnapshot, i, n)
		}
		ref := make([]byte, n)
		if _, err := io.ReadFull(br, ref); err != nil {
			return nil, fmt.Errorf("%w: entry %d ref: %v", ErrBadSnapshot, i, err)
		}
		if _, err := io.ReadFull(br, vecBytes); err != nil {
			return nil, fmt.Errorf("%w: entry %d vector: %v", ErrBadSnapshot, i, err)
		}
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(vecBytes[4*j:]))
		}
		if _, err := x.Add(string(ref), vec); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
		}
	}
	return x, nil
}

// Marshal returns the snapshot bytes of x.
func Marshal(x *Index) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, x); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
