// Package coredump decodes versioned ESP32-family crash-dump envelopes and
// synthesizes ELF core files from them.
package coredump

import "fmt"

// ChecksumKind identifies which integrity scheme an envelope uses.
type ChecksumKind int

const (
	ChecksumCRC32 ChecksumKind = iota
	ChecksumSHA256
)

func (k ChecksumKind) String() string {
	if k == ChecksumSHA256 {
		return "sha256"
	}
	return "crc32"
}

// ErrUnrecognizedFormat is returned when the input is neither an ELF file,
// a recognized raw envelope, nor valid base64.
type ErrUnrecognizedFormat struct{}

func (e *ErrUnrecognizedFormat) Error() string {
	return "the format of the provided core file is not recognized: expected elf, raw or base64-encoded binary"
}

// ErrUnsupportedVersion is returned when the envelope's dump-format version
// is not one of the recognized BIN_*/ELF_* constants.
type ErrUnsupportedVersion struct {
	DumpVer uint16
}

func (e *ErrUnsupportedVersion) Error() string {
	return fmt.Sprintf("core dump version 0x%x is not supported", e.DumpVer)
}

// ErrUnsupportedChip is returned when the envelope's chip id is outside the
// set of supported targets.
type ErrUnsupportedChip struct {
	ChipVer uint16
}

func (e *ErrUnsupportedChip) Error() string {
	return fmt.Sprintf("core dump chip 0x%x is not one of the supported targets", e.ChipVer)
}

// ErrTruncatedEnvelope is returned when tot_len exceeds the input length.
type ErrTruncatedEnvelope struct {
	TotLen, Available int
}

func (e *ErrTruncatedEnvelope) Error() string {
	return fmt.Sprintf("truncated envelope: header declares %d bytes, only %d available", e.TotLen, e.Available)
}

// ErrHeaderDecode is returned when a header's fixed-width fields cannot be
// read from the input.
type ErrHeaderDecode struct {
	Reason string
}

func (e *ErrHeaderDecode) Error() string {
	return fmt.Sprintf("failed to decode envelope header: %s", e.Reason)
}

// ErrBodyDecode is returned when the variable-length body (task records,
// memory segments) cannot be parsed against the declared sizes.
type ErrBodyDecode struct {
	Reason string
}

func (e *ErrBodyDecode) Error() string {
	return fmt.Sprintf("failed to decode envelope body: %s", e.Reason)
}

// ErrChecksumMismatch is returned when the recomputed digest does not equal
// the checksum field observed on input.
type ErrChecksumMismatch struct {
	Kind             ChecksumKind
	Expected, Actual string
}

func (e *ErrChecksumMismatch) Error() string {
	return fmt.Sprintf("invalid core dump %s %s, should be %s", e.Kind, e.Actual, e.Expected)
}

// ErrAppImageMismatch is returned when the application ELF's SHA-256 does
// not match the prefix recorded in the core dump's ESP_CORE_DUMP_INFO note.
type ErrAppImageMismatch struct {
	CoreSHAPrefix, AppSHAPrefix string
}

func (e *ErrAppImageMismatch) Error() string {
	return fmt.Sprintf("invalid application image for coredump: coredump SHA256(%s) != app SHA256(%s)",
		e.CoreSHAPrefix, e.AppSHAPrefix)
}

// ErrVersionMismatch is returned when the ESP_CORE_DUMP_INFO note's version
// field does not match the envelope's own version.
type ErrVersionMismatch struct {
	CoreVer, EnvelopeVer uint32
}

func (e *ErrVersionMismatch) Error() string {
	return fmt.Sprintf("invalid application image for coredump: coredump SHA256 version(%d) != app SHA256 version(%d)",
		e.CoreVer, e.EnvelopeVer)
}

// ErrSegmentConflict is returned when two PT_LOAD segments would overlap in
// virtual address space.
type ErrSegmentConflict struct {
	RangeALo, RangeAHi uint32
	RangeBLo, RangeBHi uint32
}

func (e *ErrSegmentConflict) Error() string {
	return fmt.Sprintf("segment conflict: [0x%x, 0x%x) overlaps [0x%x, 0x%x)",
		e.RangeALo, e.RangeAHi, e.RangeBLo, e.RangeBHi)
}
