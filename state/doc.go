// Package state captures and restores stage configuration as versioned
// binary blobs.
//
// Blob layout, little endian:
//
//	"RAMP"           magic
//	uint16           schema version (currently 1)
//	uint16 + bytes   unit ID
//	uint32           entry count
//	entries          uint16 key length, key bytes, float64 value; sorted by key
//
// Blobs from a newer schema version, for another unit, or truncated are
// rejected. [Manager.Restore] never fails a render: it logs, resets the
// stage to defaults and reports [ErrRestoreFailed].
package state
