package elfcore

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
)

// Note is one ELF Note wire-format record: namesz/descsz/type header, a
// NUL-terminated name padded to 4 bytes, and a desc payload padded to 4
// bytes (spec.md §3, "Note Section").
type Note struct {
	Type uint32
	Name string
	Desc []byte
}

// Encode serializes a Note to its wire format.
func (n Note) Encode() []byte {
	nameBytes := append([]byte(n.Name), 0)
	namePadded := align4(uint32(len(nameBytes)))
	descPadded := align4(uint32(len(n.Desc)))

	out := make([]byte, 12+namePadded+descPadded)
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(nameBytes)))
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(n.Desc)))
	binary.LittleEndian.PutUint32(out[8:12], n.Type)
	copy(out[12:], nameBytes)
	copy(out[12+namePadded:], n.Desc)
	return out
}

// BuildNote is a convenience wrapper matching the upstream loader's
// _build_note_section helper: it names, types, and encodes a note in one
// call.
func BuildNote(name string, typ uint32, desc []byte) []byte {
	return Note{Type: typ, Name: name, Desc: desc}.Encode()
}

// decodeNotes splits a raw PT_NOTE segment payload into its individual Note
// records.
func decodeNotes(data []byte) ([]Note, error) {
	var notes []Note
	for len(data) > 0 {
		if len(data) < 12 {
			return nil, fmt.Errorf("truncated note header")
		}
		namesz := binary.LittleEndian.Uint32(data[0:4])
		descsz := binary.LittleEndian.Uint32(data[4:8])
		typ := binary.LittleEndian.Uint32(data[8:12])
		namePadded := align4(namesz)
		descPadded := align4(descsz)
		need := 12 + namePadded + descPadded
		if uint32(len(data)) < need {
			return nil, fmt.Errorf("truncated note body")
		}
		rawName := data[12 : 12+namesz]
		name := string(bytes.TrimRight(rawName, "\x00"))
		desc := data[12+namePadded : 12+namePadded+descsz]
		notes = append(notes, Note{Type: typ, Name: name, Desc: desc})
		data = data[need:]
	}
	return notes, nil
}

// NoteSegments parses the PT_NOTE segments of a well-formed ELF32/ELF64
// file (the pre-built ELF payload carried by ELF_* dump versions) and
// returns their decoded Note records, using the standard library's
// debug/elf reader.
func NoteSegments(data []byte) ([]Note, error) {
	f, err := elf.NewFile(fileReader{data})
	if err != nil {
		return nil, fmt.Errorf("open core elf: %w", err)
	}
	defer f.Close()

	var notes []Note
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_NOTE {
			continue
		}
		raw := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(raw, 0); err != nil {
			return nil, fmt.Errorf("read note segment: %w", err)
		}
		decoded, err := decodeNotes(raw)
		if err != nil {
			return nil, err
		}
		notes = append(notes, decoded...)
	}
	return notes, nil
}

// Task status flag bits (spec.md §3, "task_flags bits").
const (
	TaskStatusCorrect       = 0
	TaskStatusTCBCorrupted  = 1 << 0
	TaskStatusStackCorrupted = 1 << 1
)

const taskNameFieldSize = 16

// TaskStatus is the TASK_INFO note description payload (spec.md §3).
type TaskStatus struct {
	Index       uint32
	Flags       uint32
	TCBAddr     uint32
	StackStart  uint32
	StackEnd    uint32
	StackLen    uint32
	Name        string
}

// Encode serializes a TaskStatus to its fixed-width wire format.
func (t TaskStatus) Encode() []byte {
	out := make([]byte, 24+taskNameFieldSize)
	binary.LittleEndian.PutUint32(out[0:4], t.Index)
	binary.LittleEndian.PutUint32(out[4:8], t.Flags)
	binary.LittleEndian.PutUint32(out[8:12], t.TCBAddr)
	binary.LittleEndian.PutUint32(out[12:16], t.StackStart)
	binary.LittleEndian.PutUint32(out[16:20], t.StackEnd)
	binary.LittleEndian.PutUint32(out[20:24], t.StackLen)
	copy(out[24:24+taskNameFieldSize], []byte(t.Name))
	return out
}
