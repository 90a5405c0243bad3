// Package arch recovers per-task CPU register state from stack memory
// according to a target architecture's exception/panic-handler frame
// layout (C2, spec.md §4.5).
package arch

import "escoredump/internal/coredump/target"

// NT_PRSTATUS is the standard ELF note type for a thread's register file.
const NT_PRSTATUS = 1

// ExtraRegID identifies a well-known register surfaced in the
// ESP_EXTRA_INFO note (Xtensa exception registers that don't fit in
// PRSTATUS).
type ExtraRegID uint32

// ErrUpwardGrowingStack is returned by DecodeStack when growsDown is false.
// Upward-growing stacks are not supported (spec.md Non-goals); the upstream
// loader's get_registers_from_stack raises on the same condition rather than
// guessing which end of the stack holds the exception frame.
type ErrUpwardGrowingStack struct{}

func (e *ErrUpwardGrowingStack) Error() string {
	return "growing up stacks are not supported"
}

// Recovery decodes a task's register state from its raw stack bytes and
// builds the PRSTATUS note description for it. Exactly one Recovery
// implementation exists per architecture family (Xtensa, RISC-V); the
// synthesizer selects one with a single switch over target.Arch (spec.md
// §9, "Polymorphism over chips").
type Recovery interface {
	// DecodeStack parses the first exception/panic frame off the low end of
	// stack and returns the recovered general-purpose register file plus,
	// for architectures that have them, a map of extra register id -> value
	// that doesn't fit the PRSTATUS layout. growsDown must be true; an
	// upward-growing stack is rejected with ErrUpwardGrowingStack, since
	// this package never supports recovering registers from one.
	DecodeStack(stack []byte, growsDown bool) (regs []uint32, extra map[ExtraRegID]uint32, err error)

	// BuildPRStatus serializes the ELF PRSTATUS note description for one
	// task, given its TCB address (used as pr_pid so the debugger can name
	// the task) and its recovered register file.
	BuildPRStatus(tcbAddr uint32, regs []uint32) []byte
}

// For returns the Recovery implementation for a chip's architecture
// family.
func For(a target.Arch) Recovery {
	if a == target.ArchRISCV {
		return RISCV{}
	}
	return Xtensa{}
}
