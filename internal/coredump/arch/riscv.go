package arch

import "encoding/binary"

// RISCV recovers registers from the panic-handler frame the RTOS pushes
// onto a task's stack on RISC-V targets (spec.md §4.5). Unlike Xtensa,
// RISC-V has no exception registers that fall outside PRSTATUS: extra is
// always empty.
//
// TODO: the panic frame also carries mstatus/mtval/mcause CSRs ahead of
// mepc on some IDF versions; riscv.py isn't in the retrieved pack, so their
// exact frame offset isn't grounded here and they are not recovered.
type RISCV struct{}

// Register file: mepc followed by the 31 general-purpose registers x1..x31
// (x0 is hardwired to zero and carries no state).
const riscvRegCount = 1 + 31
const riscvFrameSize = riscvRegCount * 4

// DecodeStack reads the panic frame from the low end of stack and recovers
// mepc and x1..x31. A stack shorter than one frame yields an all-zero
// register file. An upward-growing stack is rejected outright (growing up
// stacks are not supported).
func (RISCV) DecodeStack(stack []byte, growsDown bool) ([]uint32, map[ExtraRegID]uint32, error) {
	if !growsDown {
		return nil, nil, &ErrUpwardGrowingStack{}
	}

	regs := make([]uint32, riscvRegCount)
	if len(stack) < riscvFrameSize {
		return regs, nil, nil
	}

	frame := stack[:riscvFrameSize]

	for i := 0; i < riscvRegCount; i++ {
		regs[i] = binary.LittleEndian.Uint32(frame[i*4 : i*4+4])
	}
	return regs, nil, nil
}

// BuildPRStatus serializes the PRSTATUS note description: the standard
// prefix (pr_pid set to tcbAddr) followed by mepc, x1..x31.
func (RISCV) BuildPRStatus(tcbAddr uint32, regs []uint32) []byte {
	return buildPRStatus(tcbAddr, regs, riscvRegCount)
}
