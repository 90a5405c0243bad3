package arch

import "encoding/binary"

// prStatusPrefixSize is the size of the elf_prstatus fields preceding the
// register file: si_signo/si_code/si_errno (12), cursig (2) + 2 bytes of
// padding, sigpend (4), sighold (4), pid (4), ppid (4), pgrp (4), sid (4),
// utime/stime/cutime/cstime (struct timeval, 8 bytes each) = 72 bytes.
const prStatusPrefixSize = 72

// prStatusPIDOffset is pr_pid's byte offset within the prefix.
const prStatusPIDOffset = 24

// buildPRStatus assembles an ELF PRSTATUS note description: the
// prStatusPrefixSize-byte prefix (zeroed except pr_pid := tcbAddr) followed
// by numRegs little-endian uint32 registers (spec.md §4.5).
func buildPRStatus(tcbAddr uint32, regs []uint32, numRegs int) []byte {
	out := make([]byte, prStatusPrefixSize+numRegs*4)
	binary.LittleEndian.PutUint32(out[prStatusPIDOffset:prStatusPIDOffset+4], tcbAddr)
	for i := 0; i < numRegs && i < len(regs); i++ {
		off := prStatusPrefixSize + i*4
		binary.LittleEndian.PutUint32(out[off:off+4], regs[i])
	}
	return out
}
