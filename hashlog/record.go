package hashlog

import (
	"encoding/binary"

	"github.com/fbenkstein/ninja/hashlog/errors"
)

// Signature is the 12-byte magic line at the start of every hash
// log, ASCII including the trailing newline.
const Signature = "# ninjahash\n"

// Version is the on-disk format version this package reads and
// writes. The source this format is drawn from also contains a
// partly-stubbed v6 variant ("# ninjahashlog\n"); this package
// implements only the completed v5 design.
const Version uint32 = 5

// MaxRecordSize is the largest payload, in bytes, a single record
// may carry: the low 31 bits of the frame header.
const MaxRecordSize = 1<<19 - 1

const (
	kindIdentity uint32 = 0
	kindSnapshot uint32 = 1
	kindBit             = uint32(1) << 31
)

// encodeIdentity returns the frame bytes for an identity record
// assigning id to path.
func encodeIdentity(path string, id Id) ([]byte, error) {
	pad := (4 - len(path)%4) % 4
	size := len(path) + pad + 4
	if size > MaxRecordSize {
		return nil, errors.E(errors.Oversize, "identity record")
	}
	buf := make([]byte, 4+size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(size))
	n := 4
	n += copy(buf[n:], path)
	n += pad
	binary.LittleEndian.PutUint32(buf[n:n+4], uint32(^uint32(id)))
	return buf, nil
}

// encodeSnapshot returns the frame bytes for a snapshot record for
// outputID with the given sorted, deduplicated inputs. inputs must be
// non-empty: empty snapshots are never written (§4.4).
func encodeSnapshot(outputID Id, inputs []InputRecord) ([]byte, error) {
	size := 4 + 12*len(inputs)
	if size > MaxRecordSize {
		return nil, errors.E(errors.Oversize, "snapshot record")
	}
	buf := make([]byte, 4+size)
	binary.LittleEndian.PutUint32(buf[0:4], kindBit|uint32(size))
	n := 4
	binary.LittleEndian.PutUint32(buf[n:n+4], uint32(outputID))
	n += 4
	for _, in := range inputs {
		binary.LittleEndian.PutUint32(buf[n:n+4], uint32(in.ID))
		binary.LittleEndian.PutUint32(buf[n+4:n+8], uint32(in.MTime))
		binary.LittleEndian.PutUint32(buf[n+8:n+12], uint32(in.Value))
		n += 12
	}
	return buf, nil
}

// decodeIdentity decodes an identity record payload, verifying the
// checksum against nextID, the count of identity records seen so far.
// A mismatch signals a torn or corrupt tail.
func decodeIdentity(payload []byte, nextID Id) (path string, err error) {
	if len(payload) < 4 {
		return "", errors.E(errors.Torn, "identity record too short")
	}
	p := len(payload) - 4
	checksum := binary.LittleEndian.Uint32(payload[p : p+4])
	if Id(^checksum) != nextID {
		return "", errors.E(errors.Torn, "identity checksum mismatch")
	}
	// Padding is (4-P%4)%4 zero bytes inserted so the checksum field
	// is 4-aligned; walk back over at most 3 trailing zero bytes to
	// recover P.
	pathLen := p
	for i := 0; i < 3 && pathLen > 0 && payload[pathLen-1] == 0; i++ {
		pathLen--
	}
	return string(payload[:pathLen]), nil
}

// decodeSnapshot decodes a snapshot record payload. maxID is the
// largest id assigned so far; every referenced id (output or input)
// must not exceed it.
func decodeSnapshot(payload []byte, maxID Id) (outputID Id, inputs []InputRecord, err error) {
	if len(payload) < 4 || (len(payload)-4)%12 != 0 || len(payload) == 4 {
		return 0, nil, errors.E(errors.Torn, "snapshot record malformed size")
	}
	outputID = Id(binary.LittleEndian.Uint32(payload[0:4]))
	if outputID > maxID {
		return 0, nil, errors.E(errors.Torn, "snapshot references unknown output id")
	}
	n := (len(payload) - 4) / 12
	inputs = make([]InputRecord, n)
	prev := Id(-1)
	off := 4
	for i := 0; i < n; i++ {
		id := Id(binary.LittleEndian.Uint32(payload[off : off+4]))
		mtime := int32(binary.LittleEndian.Uint32(payload[off+4 : off+8]))
		hash := HashValue(binary.LittleEndian.Uint32(payload[off+8 : off+12]))
		if id > maxID {
			return 0, nil, errors.E(errors.Torn, "snapshot references unknown input id")
		}
		if id <= prev {
			return 0, nil, errors.E(errors.Torn, "snapshot inputs not strictly ascending")
		}
		prev = id
		inputs[i] = InputRecord{ID: id, HashRecord: HashRecord{MTime: mtime, Value: hash}}
		off += 12
	}
	return outputID, inputs, nil
}

// decodeFrameHeader splits a 4-byte frame header into its kind and
// payload size.
func decodeFrameHeader(header []byte) (isSnapshot bool, size uint32) {
	v := binary.LittleEndian.Uint32(header)
	return v&kindBit != 0, v &^ kindBit
}
