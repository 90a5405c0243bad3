package coredump

import "encoding/binary"

// Header is the common accessor surface over the three envelope header
// shapes (V1, V2, V2_1). Only the fields a given shape actually carries are
// meaningful; ChipRev and SegsNum return (0, false) on shapes that omit
// them.
type Header interface {
	TotLen() uint32
	Ver() uint32
	TaskNum() uint32
	TCBSize() uint32
	SegsNum() (uint32, bool)
	ChipRev() (uint32, bool)
	Size() int
	Encode() []byte
}

// V1Header is the oldest envelope header shape: tot_len, ver, task_num, tcbsz.
type V1Header struct {
	TotLenField  uint32
	VerField     uint32
	TaskNumField uint32
	TCBSizeField uint32
}

const v1HeaderSize = 16

// DecodeV1Header reads a V1Header from the start of data.
func DecodeV1Header(data []byte) (*V1Header, error) {
	if len(data) < v1HeaderSize {
		return nil, &ErrHeaderDecode{Reason: "input shorter than V1 header"}
	}
	return &V1Header{
		TotLenField:  binary.LittleEndian.Uint32(data[0:4]),
		VerField:     binary.LittleEndian.Uint32(data[4:8]),
		TaskNumField: binary.LittleEndian.Uint32(data[8:12]),
		TCBSizeField: binary.LittleEndian.Uint32(data[12:16]),
	}, nil
}

func (h *V1Header) TotLen() uint32            { return h.TotLenField }
func (h *V1Header) Ver() uint32               { return h.VerField }
func (h *V1Header) TaskNum() uint32           { return h.TaskNumField }
func (h *V1Header) TCBSize() uint32           { return h.TCBSizeField }
func (h *V1Header) SegsNum() (uint32, bool)   { return 0, false }
func (h *V1Header) ChipRev() (uint32, bool)   { return 0, false }
func (h *V1Header) Size() int                 { return v1HeaderSize }

func (h *V1Header) Encode() []byte {
	buf := make([]byte, v1HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.TotLenField)
	binary.LittleEndian.PutUint32(buf[4:8], h.VerField)
	binary.LittleEndian.PutUint32(buf[8:12], h.TaskNumField)
	binary.LittleEndian.PutUint32(buf[12:16], h.TCBSizeField)
	return buf
}

// V2Header adds segs_num after the V1 fields (binary tasks + mem segments,
// or a pre-built ELF payload).
type V2Header struct {
	V1Header
	SegsNumField uint32
}

const v2HeaderSize = v1HeaderSize + 4

func DecodeV2Header(data []byte) (*V2Header, error) {
	if len(data) < v2HeaderSize {
		return nil, &ErrHeaderDecode{Reason: "input shorter than V2 header"}
	}
	v1, err := DecodeV1Header(data)
	if err != nil {
		return nil, err
	}
	return &V2Header{
		V1Header:     *v1,
		SegsNumField: binary.LittleEndian.Uint32(data[16:20]),
	}, nil
}

func (h *V2Header) SegsNum() (uint32, bool) { return h.SegsNumField, true }
func (h *V2Header) Size() int               { return v2HeaderSize }

func (h *V2Header) Encode() []byte {
	buf := make([]byte, v2HeaderSize)
	copy(buf, h.V1Header.Encode())
	binary.LittleEndian.PutUint32(buf[16:20], h.SegsNumField)
	return buf
}

// V2_1Header adds chip_rev after the V2 fields.
type V2_1Header struct {
	V2Header
	ChipRevField uint32
}

const v2_1HeaderSize = v2HeaderSize + 4

func DecodeV2_1Header(data []byte) (*V2_1Header, error) {
	if len(data) < v2_1HeaderSize {
		return nil, &ErrHeaderDecode{Reason: "input shorter than V2_1 header"}
	}
	v2, err := DecodeV2Header(data)
	if err != nil {
		return nil, err
	}
	return &V2_1Header{
		V2Header:     *v2,
		ChipRevField: binary.LittleEndian.Uint32(data[20:24]),
	}, nil
}

func (h *V2_1Header) ChipRev() (uint32, bool) { return h.ChipRevField, true }
func (h *V2_1Header) Size() int               { return v2_1HeaderSize }

func (h *V2_1Header) Encode() []byte {
	buf := make([]byte, v2_1HeaderSize)
	copy(buf, h.V2Header.Encode())
	binary.LittleEndian.PutUint32(buf[20:24], h.ChipRevField)
	return buf
}

// decodeHeader decodes the header shape matching dumpVer, re-parsing data
// from scratch rather than reusing a tentatively-read V1Header — the shape
// used for decoding must be the exact shape used for checksum
// recomputation (spec.md §4.3).
func decodeHeader(dumpVer uint16, data []byte) (Header, error) {
	shape, ok := dumpVerShapes[dumpVer]
	if !ok {
		return nil, &ErrUnsupportedVersion{DumpVer: dumpVer}
	}
	switch {
	case shape.hasChipRev:
		return DecodeV2_1Header(data)
	case shape.hasSegsNum:
		return DecodeV2Header(data)
	default:
		return DecodeV1Header(data)
	}
}

// TaskHeader is the fixed-size record preceding each task's TCB and stack
// bytes in a binary-synthesis-path envelope body.
type TaskHeader struct {
	TCBAddr   uint32
	StackTop  uint32
	StackEnd  uint32
}

const taskHeaderSize = 12

func DecodeTaskHeader(data []byte) (*TaskHeader, error) {
	if len(data) < taskHeaderSize {
		return nil, &ErrBodyDecode{Reason: "input shorter than task header"}
	}
	return &TaskHeader{
		TCBAddr:  binary.LittleEndian.Uint32(data[0:4]),
		StackTop: binary.LittleEndian.Uint32(data[4:8]),
		StackEnd: binary.LittleEndian.Uint32(data[8:12]),
	}, nil
}

func (t *TaskHeader) Encode() []byte {
	buf := make([]byte, taskHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], t.TCBAddr)
	binary.LittleEndian.PutUint32(buf[4:8], t.StackTop)
	binary.LittleEndian.PutUint32(buf[8:12], t.StackEnd)
	return buf
}

// GrowsDown reports whether this task's stack grows toward lower
// addresses, per spec.md §3: "down" iff stack_end > stack_top.
func (t *TaskHeader) GrowsDown() bool { return t.StackEnd > t.StackTop }

// StackBounds returns the [lo, hi) bounds of the stack irrespective of
// growth direction.
func (t *TaskHeader) StackBounds() (lo, hi uint32) {
	if t.StackTop < t.StackEnd {
		return t.StackTop, t.StackEnd
	}
	return t.StackEnd, t.StackTop
}

// MemSegmentHeader precedes each memory-segment's data in a V2 envelope
// body, following the task records.
type MemSegmentHeader struct {
	MemStart uint32
	MemSize  uint32
}

const memSegmentHeaderSize = 8

func DecodeMemSegmentHeader(data []byte) (*MemSegmentHeader, error) {
	if len(data) < memSegmentHeaderSize {
		return nil, &ErrBodyDecode{Reason: "input shorter than memory segment header"}
	}
	return &MemSegmentHeader{
		MemStart: binary.LittleEndian.Uint32(data[0:4]),
		MemSize:  binary.LittleEndian.Uint32(data[4:8]),
	}, nil
}

func (m *MemSegmentHeader) Encode() []byte {
	buf := make([]byte, memSegmentHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], m.MemStart)
	binary.LittleEndian.PutUint32(buf[4:8], m.MemSize)
	return buf
}

// alignUp4 rounds size up to the next multiple of 4, matching the envelope's
// 4-byte record alignment (spec.md §3).
func alignUp4(size uint32) uint32 {
	if size%4 != 0 {
		return 4 * (size/4 + 1)
	}
	return size
}
