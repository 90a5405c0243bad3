package coredump

import "testing"

func TestMakeDumpVerRoundTrip(t *testing.T) {
	cases := []struct{ major, minor uint8 }{
		{0, 1}, {0, 2}, {0, 3}, {1, 0}, {1, 1}, {1, 2}, {1, 3},
	}
	for _, c := range cases {
		v := Version(uint32(MakeDumpVer(c.major, c.minor)))
		if v.Major() != c.major || v.Minor() != c.minor {
			t.Errorf("MakeDumpVer(%d,%d) round-trip = (%d,%d)", c.major, c.minor, v.Major(), v.Minor())
		}
	}
}

func TestVersionChipAndDumpVer(t *testing.T) {
	v := Version(uint32(ChipESP32S3)<<16 | uint32(BinV2))
	if v.ChipVer() != ChipESP32S3 {
		t.Errorf("ChipVer() = 0x%x, want 0x%x", v.ChipVer(), ChipESP32S3)
	}
	if v.DumpVer() != BinV2 {
		t.Errorf("DumpVer() = 0x%x, want 0x%x", v.DumpVer(), BinV2)
	}
}

func TestIsSupportedChip(t *testing.T) {
	for _, c := range SupportedChips {
		if !IsSupportedChip(c) {
			t.Errorf("IsSupportedChip(0x%x) = false, want true", c)
		}
	}
	if IsSupportedChip(0xFFFF) {
		t.Error("IsSupportedChip(0xFFFF) = true, want false")
	}
}

func TestIsXtensaChip(t *testing.T) {
	if !IsXtensaChip(ChipESP32) {
		t.Error("ESP32 should be Xtensa")
	}
	if IsXtensaChip(ChipESP32C3) {
		t.Error("ESP32C3 should not be Xtensa")
	}
}

func TestChipTarget(t *testing.T) {
	name, ok := ChipTarget(ChipESP32C6)
	if !ok || name != "esp32c6" {
		t.Errorf("ChipTarget(ESP32C6) = (%q, %v), want (esp32c6, true)", name, ok)
	}
	if _, ok := ChipTarget(0xFFFF); ok {
		t.Error("ChipTarget(0xFFFF) should not resolve")
	}
}

func TestIsRecognizedDumpVersion(t *testing.T) {
	for _, v := range CoreVersions {
		if !IsRecognizedDumpVersion(v) {
			t.Errorf("IsRecognizedDumpVersion(0x%x) = false, want true", v)
		}
	}
	if IsRecognizedDumpVersion(0x9999) {
		t.Error("IsRecognizedDumpVersion(0x9999) = true, want false")
	}
}
