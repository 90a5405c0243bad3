package coredump

import (
	"crypto/sha256"
	"encoding/hex"
	"hash/crc32"
)

const sha256Size = 32

// computeChecksum digests header.Encode() ⧺ body using the header shape
// that was actually observed on input. The digest is layout-sensitive: a
// V2_1 header must be re-serialized with V2_1 layout, not V2 — otherwise a
// validator would silently accept a digest computed over the wrong bytes
// (spec.md §4.3, testable property 3).
func computeChecksum(kind ChecksumKind, header Header, body []byte) []byte {
	signed := append(append([]byte{}, header.Encode()...), body...)
	switch kind {
	case ChecksumSHA256:
		sum := sha256.Sum256(signed)
		return sum[:]
	default:
		sum := crc32.ChecksumIEEE(signed)
		out := make([]byte, 4)
		out[0] = byte(sum)
		out[1] = byte(sum >> 8)
		out[2] = byte(sum >> 16)
		out[3] = byte(sum >> 24)
		return out
	}
}

// validateChecksum compares the recomputed digest against the checksum
// bytes observed in the envelope, returning ErrChecksumMismatch on any
// difference (spec.md testable property 2: flipping any bit, including in
// the checksum field itself, must be detected).
func validateChecksum(kind ChecksumKind, header Header, body, checksum []byte) error {
	actual := computeChecksum(kind, header, body)
	if !bytesEqual(actual, checksum) {
		return &ErrChecksumMismatch{
			Kind:     kind,
			Expected: hex.EncodeToString(checksum),
			Actual:   hex.EncodeToString(actual),
		}
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
