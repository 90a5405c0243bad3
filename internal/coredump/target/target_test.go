package target

import "testing"

func TestLookupCaseInsensitive(t *testing.T) {
	p, ok := Lookup("ESP32S3")
	if !ok {
		t.Fatal("Lookup(\"ESP32S3\") should resolve case-insensitively")
	}
	if p.Name != "esp32s3" || p.Arch != ArchXtensa {
		t.Errorf("Lookup(\"ESP32S3\") = %+v", p)
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, ok := Lookup("esp8266"); ok {
		t.Error("Lookup(\"esp8266\") should not resolve")
	}
}

func TestTCBIsSaneWithinDRAM(t *testing.T) {
	p, _ := Lookup("esp32")
	if !p.TCBIsSane(0x3FFB0000, 68) {
		t.Error("expected a DRAM-resident TCB to be sane")
	}
	if p.TCBIsSane(0x20000000, 68) {
		t.Error("expected the fake-stack sentinel address to not be sane")
	}
	if p.TCBIsSane(0x3FFB0000, 0) {
		t.Error("a zero-size TCB should never be sane")
	}
}

func TestStackIsSaneBounds(t *testing.T) {
	p, _ := Lookup("esp32")
	if !p.StackIsSane(0x3FFB4000, 0x3FFB4060) {
		t.Error("expected a small, aligned, in-DRAM stack span to be sane")
	}
	if p.StackIsSane(0x3FFB4001, 0x3FFB4060) {
		t.Error("expected a misaligned stack_top to be insane")
	}
	if p.StackIsSane(0x3FFB4060, 0x3FFB4000) {
		t.Error("expected lo >= hi to be insane")
	}
	if p.StackIsSane(0x3FFB4000, 0x3FFB4000+maxTaskStackSize+16) {
		t.Error("expected a span over 64KiB to be insane")
	}
}

func TestAddrIsFake(t *testing.T) {
	if !AddrIsFake(0x20000000) {
		t.Error("expected the fake-stack sentinel window to report fake")
	}
	if !AddrIsFake(0x80000000) {
		t.Error("expected an address with the top bit set to report fake")
	}
	if AddrIsFake(0x3FFB0000) {
		t.Error("a normal DRAM address should not report fake")
	}
}
