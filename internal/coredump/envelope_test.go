package coredump

import (
	"bytes"
	"crypto/sha256"
	"debug/elf"
	"encoding/base64"
	"encoding/hex"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"

	"escoredump/internal/coredump/arch"
	"escoredump/internal/coredump/target"
	"escoredump/internal/elfcore"
)

func TestLoadFromFileSource(t *testing.T) {
	data := buildBinV1Envelope(t)
	path := filepath.Join(t.TempDir(), "dump.bin")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	env, err := LoadFrom(FileSource{Path: path})
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if err := env.Validate(); err != nil {
		t.Errorf("Validate() on envelope loaded via FileSource: %v", err)
	}
}

// Fixed task/address constants shared by the fixtures below, taken
// directly from spec.md §8 scenario S1: tcb_addr=0x3FFB0000 (in DRAM),
// tcb_sz=0x90, stack_top=0x3FFB4000, stack_end=0x3FFB4200.
const (
	s1TCBAddr   = 0x3FFB0000
	s1StackTop  = 0x3FFB4000
	s1StackEnd  = 0x3FFB4200
	s1TCBSize   = 0x90
)

// buildTaskRecord encodes one task header plus a zeroed TCB and zeroed
// stack, padded to the envelope's 4-byte record alignment (spec.md §3).
func buildTaskRecord(tcbAddr, stackTop, stackEnd uint32, tcbSize int) []byte {
	th := &TaskHeader{TCBAddr: tcbAddr, StackTop: stackTop, StackEnd: stackEnd}
	stackLen := int(stackEnd) - int(stackTop)
	if stackLen < 0 {
		stackLen = -stackLen
	}
	rec := append([]byte{}, th.Encode()...)
	rec = append(rec, make([]byte, tcbSize)...)
	rec = append(rec, make([]byte, stackLen)...)
	for len(rec)%4 != 0 {
		rec = append(rec, 0)
	}
	return rec
}

// buildMemSegmentRecord encodes one memory-segment header plus a zeroed
// payload.
func buildMemSegmentRecord(memStart, memSize uint32) []byte {
	mh := &MemSegmentHeader{MemStart: memStart, MemSize: memSize}
	rec := append([]byte{}, mh.Encode()...)
	rec = append(rec, make([]byte, memSize)...)
	return rec
}

// signAndAppendChecksum encodes header, appends body, computes the
// checksum over that exact layout, and appends it — the same recipe
// validateChecksum expects to see on the way back in.
func signAndAppendChecksum(header Header, body []byte, kind ChecksumKind) []byte {
	signed := append(append([]byte{}, header.Encode()...), body...)
	var checksum []byte
	if kind == ChecksumSHA256 {
		sum := sha256.Sum256(signed)
		checksum = sum[:]
	} else {
		sum := crc32.ChecksumIEEE(signed)
		checksum = []byte{byte(sum), byte(sum >> 8), byte(sum >> 16), byte(sum >> 24)}
	}
	return append(signed, checksum...)
}

// buildBinV1Envelope assembles a minimal, checksum-valid BIN_V1 envelope
// for one task: a fixed-size TCB plus a zeroed stack, with addresses
// chosen to fall inside the esp32 profile's DRAM window (spec.md §8
// scenario S1).
func buildBinV1Envelope(t *testing.T) []byte {
	t.Helper()

	body := buildTaskRecord(s1TCBAddr, s1StackTop, s1StackEnd, s1TCBSize)

	header := &V1Header{
		VerField:     uint32(ChipESP32)<<16 | uint32(BinV1),
		TaskNumField: 1,
		TCBSizeField: s1TCBSize,
	}
	header.TotLenField = uint32(header.Size() + len(body) + 4)

	return signAndAppendChecksum(header, body, ChecksumCRC32)
}

func TestLoadAndValidateBinV1(t *testing.T) {
	data := buildBinV1Envelope(t)

	env, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if env.Version.ChipVer() != ChipESP32 {
		t.Errorf("ChipVer() = 0x%x, want ESP32", env.Version.ChipVer())
	}
	if env.Version.DumpVer() != BinV1 {
		t.Errorf("DumpVer() = 0x%x, want BinV1", env.Version.DumpVer())
	}
	if err := env.Validate(); err != nil {
		t.Errorf("Validate() on an untampered envelope: %v", err)
	}
}

func TestValidateDetectsTampering(t *testing.T) {
	data := buildBinV1Envelope(t)
	data[len(data)-1] ^= 0xFF // flip a checksum byte

	env, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := env.Validate(); err == nil {
		t.Error("expected Validate() to detect the tampered checksum")
	}
}

func TestTruncatedEnvelope(t *testing.T) {
	data := buildBinV1Envelope(t)
	if _, err := Load(data[:len(data)-10]); err == nil {
		t.Error("expected an error loading a truncated envelope")
	}
}

func TestUnsupportedChip(t *testing.T) {
	data := buildBinV1Envelope(t)
	// Overwrite the chip id (high 16 bits of ver, offset 6-8) with an
	// unrecognized value.
	data[6] = 0xFF
	data[7] = 0xFF
	if _, err := Load(data); err == nil {
		t.Error("expected an error loading an envelope with an unsupported chip id")
	}
}

func TestListTasksAndSynthesizeBinV1(t *testing.T) {
	data := buildBinV1Envelope(t)
	env, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := env.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	profile, ok := target.Lookup("esp32")
	if !ok {
		t.Fatal("esp32 profile missing")
	}

	reports, err := ListTasks(env, profile)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("ListTasks() returned %d tasks, want 1", len(reports))
	}
	if reports[0].TCBAddr != 0x3FFB0000 {
		t.Errorf("TCBAddr = 0x%x, want 0x3FFB0000", reports[0].TCBAddr)
	}

	core, err := Synthesize(env, profile, SynthOptions{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(core) < 52 || core[0] != 0x7F || core[1] != 'E' || core[2] != 'L' || core[3] != 'F' {
		t.Fatal("Synthesize() did not produce a well-formed ELF header")
	}

	// spec.md §8 S1: PT_LOAD at tcb_addr/tcb_sz, PT_LOAD at stack_top/span,
	// one PRSTATUS note with pr_pid == tcb_addr.
	f, err := elf.NewFile(bytes.NewReader(core))
	if err != nil {
		t.Fatalf("parse synthesized core: %v", err)
	}
	defer f.Close()

	var sawTCBLoad, sawStackLoad bool
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		switch {
		case p.Vaddr == s1TCBAddr && p.Filesz == s1TCBSize:
			sawTCBLoad = true
		case p.Vaddr == s1StackTop && p.Filesz == s1StackEnd-s1StackTop:
			sawStackLoad = true
		}
	}
	if !sawTCBLoad {
		t.Errorf("missing PT_LOAD at TCB 0x%x/0x%x", s1TCBAddr, s1TCBSize)
	}
	if !sawStackLoad {
		t.Errorf("missing PT_LOAD at stack 0x%x/0x%x", s1StackTop, s1StackEnd-s1StackTop)
	}

	notes, err := elfcore.NoteSegments(core)
	if err != nil {
		t.Fatalf("NoteSegments: %v", err)
	}
	var sawPRStatus bool
	for _, n := range notes {
		if n.Type != arch.NT_PRSTATUS {
			continue
		}
		sawPRStatus = true
		const prStatusPIDOffset = 24 // elf_prstatus pr_pid field offset (internal/coredump/arch/prstatus.go)
		if len(n.Desc) < prStatusPIDOffset+4 {
			t.Fatalf("PRSTATUS note too short: %d bytes", len(n.Desc))
		}
		pid := uint32(n.Desc[prStatusPIDOffset]) | uint32(n.Desc[prStatusPIDOffset+1])<<8 |
			uint32(n.Desc[prStatusPIDOffset+2])<<16 | uint32(n.Desc[prStatusPIDOffset+3])<<24
		if pid != s1TCBAddr {
			t.Errorf("pr_pid = 0x%x, want 0x%x", pid, s1TCBAddr)
		}
	}
	if !sawPRStatus {
		t.Error("missing a PRSTATUS note in the synthesized core")
	}
}

// TestSynthesizeBinV2EmitsMemorySegment covers spec.md §8 scenario S3:
// a BIN_V2 envelope's memory segments are emitted as additional PT_LOADs.
func TestSynthesizeBinV2EmitsMemorySegment(t *testing.T) {
	const memStart, memSize = 0x3FFC0000, 0x100

	body := append(
		buildTaskRecord(s1TCBAddr, s1StackTop, s1StackEnd, s1TCBSize),
		buildMemSegmentRecord(memStart, memSize)...,
	)
	header := &V2Header{
		V1Header: V1Header{
			VerField:     uint32(ChipESP32)<<16 | uint32(BinV2),
			TaskNumField: 1,
			TCBSizeField: s1TCBSize,
		},
		SegsNumField: 1,
	}
	header.TotLenField = uint32(header.Size() + len(body) + 4)
	data := signAndAppendChecksum(header, body, ChecksumCRC32)

	env, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := env.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	profile, _ := target.Lookup("esp32")
	core, err := Synthesize(env, profile, SynthOptions{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	f, err := elf.NewFile(bytes.NewReader(core))
	if err != nil {
		t.Fatalf("parse synthesized core: %v", err)
	}
	defer f.Close()

	var sawMemSeg bool
	for _, p := range f.Progs {
		if p.Type == elf.PT_LOAD && p.Vaddr == memStart && p.Filesz == memSize {
			sawMemSeg = true
		}
	}
	if !sawMemSeg {
		t.Errorf("missing PT_LOAD at memory segment 0x%x/0x%x", memStart, memSize)
	}
}

// TestSynthesizeBinV21OmitsMemorySegment covers spec.md §8 scenario S4: a
// BIN_V2_1 envelope with an identical body to S3 still emits the task
// segments but not the memory segment (spec.md §9 Open Question 2).
func TestSynthesizeBinV21OmitsMemorySegment(t *testing.T) {
	const memStart, memSize = 0x3FFC0000, 0x100

	body := append(
		buildTaskRecord(s1TCBAddr, s1StackTop, s1StackEnd, s1TCBSize),
		buildMemSegmentRecord(memStart, memSize)...,
	)
	header := &V2_1Header{
		V2Header: V2Header{
			V1Header: V1Header{
				VerField:     uint32(ChipESP32)<<16 | uint32(BinV2_1),
				TaskNumField: 1,
				TCBSizeField: s1TCBSize,
			},
			SegsNumField: 1,
		},
		ChipRevField: 3,
	}
	header.TotLenField = uint32(header.Size() + len(body) + 4)
	data := signAndAppendChecksum(header, body, ChecksumCRC32)

	env, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := env.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	profile, _ := target.Lookup("esp32")
	core, err := Synthesize(env, profile, SynthOptions{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	f, err := elf.NewFile(bytes.NewReader(core))
	if err != nil {
		t.Fatalf("parse synthesized core: %v", err)
	}
	defer f.Close()

	var sawMemSeg, sawTCBLoad bool
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if p.Vaddr == memStart {
			sawMemSeg = true
		}
		if p.Vaddr == s1TCBAddr {
			sawTCBLoad = true
		}
	}
	if sawMemSeg {
		t.Error("BIN_V2_1 should omit the memory segment, but a PT_LOAD at its address was found")
	}
	if !sawTCBLoad {
		t.Error("BIN_V2_1 should still emit task segments")
	}
}

// buildCoreELFWithInfoNote builds a minimal core ELF payload carrying one
// ESP_CORE_DUMP_INFO note, as an ELF_* dump version's body would.
func buildCoreELFWithInfoNote(t *testing.T, ver uint32, shaHexPrefix string) []byte {
	t.Helper()
	shaField := make([]byte, 64)
	copy(shaField, []byte(shaHexPrefix))
	desc := append(encodeU32(ver), shaField...)
	note := elfcore.BuildNote("ESP_CORE_DUMP_INFO", elfcore.PT_ESP_INFO, desc)

	f := elfcore.NewFile(elfcore.EM_XTENSA)
	if err := f.AddSegment(0, note, elfcore.PT_NOTE, 0); err != nil {
		t.Fatalf("AddSegment: %v", err)
	}
	return f.Bytes()
}

// buildAppImageELF builds a minimal application-image ELF with one PT_LOAD
// segment, the shape AppImageSHA256 hashes.
func buildAppImageELF(t *testing.T, payload []byte) []byte {
	t.Helper()
	f := elfcore.NewFile(elfcore.EM_XTENSA)
	if err := f.AddSegment(0x400D0000, payload, elfcore.PT_LOAD, elfcore.PF_R); err != nil {
		t.Fatalf("AddSegment: %v", err)
	}
	return f.Bytes()
}

// buildElfPassthroughEnvelope wraps a pre-built core ELF body in an
// ELF_SHA256_V2 envelope header/checksum.
func buildElfPassthroughEnvelope(verField uint32, coreELF []byte) []byte {
	header := &V2Header{
		V1Header: V1Header{VerField: verField},
	}
	header.TotLenField = uint32(header.Size() + len(coreELF) + sha256Size)
	return signAndAppendChecksum(header, coreELF, ChecksumSHA256)
}

// TestELFPassthroughAppImageMatch covers spec.md §8 scenario S5: an
// ELF_SHA256_V2 payload whose recorded SHA-256 prefix matches the supplied
// application image synthesizes successfully.
func TestELFPassthroughAppImageMatch(t *testing.T) {
	verField := uint32(ChipESP32)<<16 | uint32(ElfSHA256V2)

	appImage := buildAppImageELF(t, []byte("firmware payload bytes for hashing"))
	appSHA, err := elfcore.AppImageSHA256(appImage)
	if err != nil {
		t.Fatalf("AppImageSHA256: %v", err)
	}
	prefix := hex.EncodeToString(appSHA[:])[:16]

	coreELF := buildCoreELFWithInfoNote(t, verField, prefix)
	data := buildElfPassthroughEnvelope(verField, coreELF)

	env, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := env.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !env.IsELFPassthrough() {
		t.Fatal("expected an ELF pass-through envelope")
	}

	profile, _ := target.Lookup("esp32")
	out, err := Synthesize(env, profile, SynthOptions{AppImage: appImage})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(out) < 4 || out[0] != 0x7F {
		t.Error("expected a well-formed ELF core file")
	}
}

// TestELFPassthroughAppImageMismatch covers spec.md §8 scenario S6: a
// mismatched application image is rejected with ErrAppImageMismatch.
func TestELFPassthroughAppImageMismatch(t *testing.T) {
	verField := uint32(ChipESP32)<<16 | uint32(ElfSHA256V2)

	recordedImage := buildAppImageELF(t, []byte("the recorded firmware build"))
	recordedSHA, err := elfcore.AppImageSHA256(recordedImage)
	if err != nil {
		t.Fatalf("AppImageSHA256: %v", err)
	}
	prefix := hex.EncodeToString(recordedSHA[:])[:16]

	coreELF := buildCoreELFWithInfoNote(t, verField, prefix)
	data := buildElfPassthroughEnvelope(verField, coreELF)

	env, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := env.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	mismatchedImage := buildAppImageELF(t, []byte("a different firmware build entirely"))
	profile, _ := target.Lookup("esp32")
	if _, err := Synthesize(env, profile, SynthOptions{AppImage: mismatchedImage}); err == nil {
		t.Error("expected Synthesize to reject a mismatched app image")
	} else if _, ok := err.(*ErrAppImageMismatch); !ok {
		t.Errorf("err = %T, want *ErrAppImageMismatch", err)
	}
}

// TestBase64WrappedBinV1MatchesRaw covers spec.md §8 scenario S7: a
// base64-wrapped S1 envelope auto-detects as b64 and synthesizes
// identically to the raw envelope.
func TestBase64WrappedBinV1MatchesRaw(t *testing.T) {
	raw := buildBinV1Envelope(t)
	wrapped := []byte(base64.StdEncoding.EncodeToString(raw) + "\n")

	b64Env, err := Load(wrapped)
	if err != nil {
		t.Fatalf("Load(base64): %v", err)
	}
	if err := b64Env.Validate(); err != nil {
		t.Fatalf("Validate(base64): %v", err)
	}

	rawEnv, err := Load(raw)
	if err != nil {
		t.Fatalf("Load(raw): %v", err)
	}

	profile, _ := target.Lookup("esp32")
	fromB64, err := Synthesize(b64Env, profile, SynthOptions{})
	if err != nil {
		t.Fatalf("Synthesize(base64): %v", err)
	}
	fromRaw, err := Synthesize(rawEnv, profile, SynthOptions{})
	if err != nil {
		t.Fatalf("Synthesize(raw): %v", err)
	}
	if !bytes.Equal(fromB64, fromRaw) {
		t.Error("expected base64-wrapped input to synthesize identically to the raw envelope")
	}
}
