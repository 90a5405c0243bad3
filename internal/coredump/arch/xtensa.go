package arch

import "encoding/binary"

// Xtensa recovers registers from the windowed-ABI exception frame the RTOS
// crash hook pushes onto a task's stack (spec.md §4.5).
type Xtensa struct{}

// Extra register ids surfaced in the ESP_EXTRA_INFO note for the
// crash-origin task (spec.md §4.7 step 5).
const (
	ExtraEXCCAUSE ExtraRegID = 0
	ExtraEXCVADDR ExtraRegID = 1
	ExtraLBEG     ExtraRegID = 2
	ExtraLEND     ExtraRegID = 3
	ExtraLCOUNT   ExtraRegID = 4
)

// Core PRSTATUS register count: PC, PS, A0..A15, SAR.
const xtensaRegCount = 19

// Full exception frame word count: the 19 PRSTATUS registers plus the 5
// extra exception registers, one uint32 each.
const xtensaFrameWords = xtensaRegCount + 5
const xtensaFrameSize = xtensaFrameWords * 4

// DecodeStack reads the windowed-ABI exception frame from the low end of
// stack (spec.md §4.5) and recovers PC, PS, A0..A15, SAR into the PRSTATUS
// register file plus EXCCAUSE/EXCVADDR/LBEG/LEND/LCOUNT into extra. A stack
// shorter than one frame yields an all-zero register file rather than an
// error, matching "unknown fields are zero." An upward-growing stack is
// rejected outright (growing up stacks are not supported).
func (Xtensa) DecodeStack(stack []byte, growsDown bool) ([]uint32, map[ExtraRegID]uint32, error) {
	if !growsDown {
		return nil, nil, &ErrUpwardGrowingStack{}
	}

	regs := make([]uint32, xtensaRegCount)
	extra := make(map[ExtraRegID]uint32, 5)

	if len(stack) < xtensaFrameSize {
		return regs, extra, nil
	}

	frame := stack[:xtensaFrameSize]

	word := func(i int) uint32 {
		return binary.LittleEndian.Uint32(frame[i*4 : i*4+4])
	}

	for i := 0; i < xtensaRegCount; i++ {
		regs[i] = word(i)
	}
	extra[ExtraEXCCAUSE] = word(19)
	extra[ExtraEXCVADDR] = word(20)
	extra[ExtraLBEG] = word(21)
	extra[ExtraLEND] = word(22)
	extra[ExtraLCOUNT] = word(23)

	return regs, extra, nil
}

// BuildPRStatus serializes the PRSTATUS note description: the standard
// pr_info/pr_cursig/... prefix (zeroed except pr_pid, which the debugger
// uses to name the task) followed by the Xtensa register file in the order
// PC, PS, A0..A15, SAR.
func (Xtensa) BuildPRStatus(tcbAddr uint32, regs []uint32) []byte {
	return buildPRStatus(tcbAddr, regs, xtensaRegCount)
}
