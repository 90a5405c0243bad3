// Package elfcore implements the minimal ELF32 object model the core
// synthesizer needs: reading an application image far enough to compute its
// SHA-256 marker, and writing a well-formed ET_CORE file out of PT_LOAD and
// PT_NOTE segments (C3, spec.md §4.6).
package elfcore

import (
	"crypto/sha256"
	"debug/elf"
	"encoding/binary"
	"fmt"
)

// ELF32 machine/type constants used by this module (spec.md §6).
const (
	EM_XTENSA = 94
	EM_RISCV  = 243

	ET_EXEC = 2
	ET_CORE = 4

	PT_LOAD = 1
	PT_NOTE = 4

	PF_R = 0x4
	PF_W = 0x2
)

// Custom p_type-space note types (spec.md §6).
const (
	PT_ESP_INFO       = 0x60000001
	PT_ESP_TASK_INFO  = 0x60000002
	PT_ESP_EXTRA_INFO = 0x60000003
)

const (
	elf32HeaderSize = 52
	elf32PhdrSize   = 32
)

// Segment is one program-header entry plus its backing bytes.
type Segment struct {
	Type  uint32 // PT_LOAD or PT_NOTE
	Flags uint32
	VAddr uint32
	Data  []byte
}

// File is an in-memory ELF32 core-file-in-progress: an ordered list of
// segments plus the machine type the final header should carry.
type File struct {
	Machine  uint16
	segments []Segment
}

// NewFile starts an empty core file targeting the given e_machine value.
func NewFile(machine uint16) *File {
	return &File{Machine: machine}
}

// AddSegment appends a segment, validating PT_LOAD non-overlap against
// every previously added PT_LOAD segment (spec.md §4.6 step 1, invariant
// iii). PT_NOTE segments may repeat and are not range-checked; callers pass
// vaddr=0 for them per spec.md §3.
func (f *File) AddSegment(vaddr uint32, data []byte, typ uint32, flags uint32) error {
	if typ == PT_LOAD {
		newLo, newHi := vaddr, vaddr+uint32(len(data))
		for _, s := range f.segments {
			if s.Type != PT_LOAD {
				continue
			}
			lo, hi := s.VAddr, s.VAddr+uint32(len(s.Data))
			if newLo < hi && lo < newHi {
				return &SegmentConflictError{ALo: lo, AHi: hi, BLo: newLo, BHi: newHi}
			}
		}
	}
	f.segments = append(f.segments, Segment{Type: typ, Flags: flags, VAddr: vaddr, Data: data})
	return nil
}

// Segments returns the segments added so far, in insertion order.
func (f *File) Segments() []Segment { return f.segments }

// SegmentConflictError reports two overlapping PT_LOAD virtual ranges.
type SegmentConflictError struct{ ALo, AHi, BLo, BHi uint32 }

func (e *SegmentConflictError) Error() string {
	return fmt.Sprintf("segment conflict: [0x%x, 0x%x) overlaps [0x%x, 0x%x)", e.ALo, e.AHi, e.BLo, e.BHi)
}

// Bytes assembles the final ELF32 byte stream: header, then program
// headers contiguously, then segment payloads each padded up to a 4-byte
// boundary (spec.md §4.6 step 2).
func (f *File) Bytes() []byte {
	n := len(f.segments)
	phoff := uint32(elf32HeaderSize)
	dataOff := phoff + uint32(n)*elf32PhdrSize

	offsets := make([]uint32, n)
	paddedSizes := make([]uint32, n)
	cur := dataOff
	for i, s := range f.segments {
		offsets[i] = cur
		padded := align4(uint32(len(s.Data)))
		paddedSizes[i] = padded
		cur += padded
	}
	total := cur

	out := make([]byte, total)
	writeELF32Header(out, f.Machine, phoff, uint16(n))

	for i, s := range f.segments {
		writePhdr(out[phoff+uint32(i)*elf32PhdrSize:], s, offsets[i])
		copy(out[offsets[i]:], s.Data)
	}
	return out
}

func align4(n uint32) uint32 {
	if n%4 != 0 {
		return n + (4 - n%4)
	}
	return n
}

func writeELF32Header(out []byte, machine uint16, phoff uint32, phnum uint16) {
	copy(out[0:4], []byte{0x7F, 'E', 'L', 'F'})
	out[4] = 1 // ELFCLASS32
	out[5] = 1 // ELFDATA2LSB
	out[6] = 1 // EV_CURRENT
	out[7] = 0 // ELFOSABI_NONE
	// out[8:16] already zero (ABI version + padding)

	binary.LittleEndian.PutUint16(out[16:18], ET_CORE)
	binary.LittleEndian.PutUint16(out[18:20], machine)
	binary.LittleEndian.PutUint32(out[20:24], 1) // e_version
	binary.LittleEndian.PutUint32(out[24:28], 0) // e_entry: unused in a core file
	binary.LittleEndian.PutUint32(out[28:32], phoff)
	binary.LittleEndian.PutUint32(out[32:36], 0) // e_shoff: no section headers
	binary.LittleEndian.PutUint32(out[36:40], 0) // e_flags
	binary.LittleEndian.PutUint16(out[40:42], elf32HeaderSize)
	binary.LittleEndian.PutUint16(out[42:44], elf32PhdrSize)
	binary.LittleEndian.PutUint16(out[44:46], phnum)
	binary.LittleEndian.PutUint16(out[46:48], 0) // e_shentsize
	binary.LittleEndian.PutUint16(out[48:50], 0) // e_shnum
	binary.LittleEndian.PutUint16(out[50:52], 0) // e_shstrndx
}

func writePhdr(out []byte, s Segment, offset uint32) {
	binary.LittleEndian.PutUint32(out[0:4], s.Type)
	binary.LittleEndian.PutUint32(out[4:8], offset)
	binary.LittleEndian.PutUint32(out[8:12], s.VAddr)
	binary.LittleEndian.PutUint32(out[12:16], s.VAddr) // p_paddr
	binary.LittleEndian.PutUint32(out[16:20], uint32(len(s.Data)))
	binary.LittleEndian.PutUint32(out[20:24], uint32(len(s.Data)))
	binary.LittleEndian.PutUint32(out[24:28], s.Flags)
	binary.LittleEndian.PutUint32(out[28:32], 4) // p_align
}

// ParseFile re-reads an already-built ELF32/ELF64 payload back into a
// *File so a caller can append another segment and re-emit, without
// hand-rolling a second writer path. Used when the ELF pass-through path
// needs to bolt a chip-rev note onto a core file that already exists as
// bytes (spec.md §4.7).
func ParseFile(data []byte) (*File, error) {
	f, err := elf.NewFile(fileReader{data})
	if err != nil {
		return nil, fmt.Errorf("parse core elf: %w", err)
	}
	defer f.Close()

	out := &File{Machine: uint16(f.Machine)}
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD && prog.Type != elf.PT_NOTE {
			continue
		}
		buf := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(buf, 0); err != nil {
			return nil, fmt.Errorf("read segment: %w", err)
		}
		out.segments = append(out.segments, Segment{
			Type:  uint32(prog.Type),
			Flags: uint32(prog.Flags),
			VAddr: uint32(prog.Vaddr),
			Data:  buf,
		})
	}
	return out, nil
}

// AppImageSHA256 opens an application ELF and hashes its loadable content,
// giving the marker the core-dump-info note's checksum is compared
// against (spec.md §3, "ELF Object (minimal)"). It uses the standard
// library's debug/elf reader rather than this package's own minimal model,
// since the application image is a full, well-formed executable the
// toolchain already knows how to parse.
func AppImageSHA256(data []byte) ([32]byte, error) {
	f, err := elf.NewFile(fileReader{data})
	if err != nil {
		return [32]byte{}, fmt.Errorf("open app image: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		buf := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(buf, 0); err != nil {
			return [32]byte{}, fmt.Errorf("read app image segment: %w", err)
		}
		h.Write(buf)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}
