package state

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
)

// Blob errors.
var (
	ErrCorruptBlob        = errors.New("state: corrupt blob")
	ErrUnsupportedVersion = errors.New("state: unsupported blob version")
	ErrUnitMismatch       = errors.New("state: blob belongs to a different unit")
	ErrKeyTooLong         = errors.New("state: key too long")
)

// Version is the blob schema version written by Encode.
const Version uint16 = 1

var magic = [4]byte{'R', 'A', 'M', 'P'}

// minEntrySize is a key length prefix plus the value.
const minEntrySize = 2 + 8

// Snapshot is a decoded blob.
type Snapshot struct {
	Version uint16
	UnitID  string
	Values  map[string]float64
}

// Encode serializes values for unitID. Entries are written in key order so
// equal states produce equal blobs.
func Encode(unitID string, values map[string]float64) ([]byte, error) {
	if len(unitID) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: unit id", ErrKeyTooLong)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		if len(k) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: %.32q", ErrKeyTooLong, k)
		}

		keys = append(keys, k)
	}

	sort.Strings(keys)

	var buf bytes.Buffer

	buf.Write(magic[:])
	_ = binary.Write(&buf, binary.LittleEndian, Version)
	writeString(&buf, unitID)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(keys)))

	for _, k := range keys {
		writeString(&buf, k)
		_ = binary.Write(&buf, binary.LittleEndian, values[k])
	}

	return buf.Bytes(), nil
}

func writeString(buf *bytes.Buffer, s string) {
	_ = binary.Write(buf, binary.LittleEndian, uint16(len(s)))
	buf.WriteString(s)
}

// Decode parses a blob written by Encode or by an older schema version.
func Decode(blob []byte) (*Snapshot, error) {
	r := bytes.NewReader(blob)

	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil || head != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorruptBlob)
	}

	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("%w: version: %w", ErrCorruptBlob, err)
	}

	if version == 0 {
		return nil, fmt.Errorf("%w: version 0", ErrCorruptBlob)
	}

	if version > Version {
		return nil, fmt.Errorf("%w: %d is newer than %d", ErrUnsupportedVersion, version, Version)
	}

	unitID, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("%w: unit id: %w", ErrCorruptBlob, err)
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: entry count: %w", ErrCorruptBlob, err)
	}

	if int64(count)*minEntrySize > int64(r.Len()) {
		return nil, fmt.Errorf("%w: %d entries do not fit in %d bytes", ErrCorruptBlob, count, r.Len())
	}

	snap := &Snapshot{
		Version: version,
		UnitID:  unitID,
		Values:  make(map[string]float64, count),
	}

	for i := range count {
		key, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d key: %w", ErrCorruptBlob, i, err)
		}

		var v float64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, fmt.Errorf("%w: entry %d value: %w", ErrCorruptBlob, i, err)
		}

		snap.Values[key] = v
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptBlob, r.Len())
	}

	return snap, nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}

	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}

	return string(b), nil
}
