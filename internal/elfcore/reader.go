package elfcore

import "io"

// fileReader adapts an in-memory byte slice to io.ReaderAt so debug/elf can
// parse it without a backing os.File.
type fileReader struct{ data []byte }

func (r fileReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(r.data)) {
		return 0, io.EOF
	}
	n := copy(p, r.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
