package coredump

import "os"

// Source supplies the raw envelope bytes Load consumes. It is the seam
// the upstream loader's flash-extraction subprocess would plug into; this
// module ships only FileSource, reading a file already on disk. A
// caller-supplied Source backed by a flash/partition tool subprocess can
// implement the same interface without any change to Load.
type Source interface {
	Bytes() ([]byte, error)
}

// FileSource reads an envelope already saved to disk.
type FileSource struct {
	Path string
}

// Bytes implements Source.
func (s FileSource) Bytes() ([]byte, error) {
	return os.ReadFile(s.Path)
}

// LoadFrom reads a Source and parses its bytes as an envelope.
func LoadFrom(src Source) (*Envelope, error) {
	data, err := src.Bytes()
	if err != nil {
		return nil, err
	}
	return Load(data)
}

// Envelope is the parsed outer binary container: header + body + checksum
// (spec.md §3). Header and body are immutable after Load.
type Envelope struct {
	Version  Version
	Header   Header
	Body     []byte
	Checksum []byte
	Shape    headerShape
}

// Load auto-detects the input format, decodes it to a raw envelope if
// necessary, and parses the versioned header/body/checksum (C7 + C4).
func Load(data []byte) (*Envelope, error) {
	format, err := DetectFormat(data)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatB64:
		raw, err := DecodeB64Lines(data)
		if err != nil {
			return nil, err
		}
		return parseEnvelope(raw)
	case FormatRaw:
		return parseEnvelope(data)
	default: // FormatELF: no envelope wrapper, body is the whole file
		return &Envelope{
			Version: Version(0),
			Body:    data,
			Shape:   headerShape{isELFBody: true},
		}, nil
	}
}

// parseEnvelope implements C4: read a V1Header tentatively to obtain ver,
// derive the real header/checksum shape from the dump-version table, then
// re-parse the header with that shape before slicing body and checksum.
func parseEnvelope(data []byte) (*Envelope, error) {
	tentative, err := DecodeV1Header(data)
	if err != nil {
		return nil, err
	}
	version := Version(tentative.VerField)
	dumpVer := version.DumpVer()
	chipVer := version.ChipVer()

	if !IsSupportedChip(chipVer) {
		return nil, &ErrUnsupportedChip{ChipVer: chipVer}
	}

	shape, ok := dumpVerShapes[dumpVer]
	if !ok {
		return nil, &ErrUnsupportedVersion{DumpVer: dumpVer}
	}

	header, err := decodeHeader(dumpVer, data)
	if err != nil {
		return nil, err
	}

	checksumSize := 4
	if shape.checksum == ChecksumSHA256 {
		checksumSize = sha256Size
	}

	totLen := int(header.TotLen())
	if totLen > len(data) || totLen < header.Size()+checksumSize {
		return nil, &ErrTruncatedEnvelope{TotLen: totLen, Available: len(data)}
	}

	bodyStart := header.Size()
	bodyEnd := totLen - checksumSize
	if bodyEnd < bodyStart {
		return nil, &ErrHeaderDecode{Reason: "tot_len too small for header and checksum"}
	}

	return &Envelope{
		Version:  version,
		Header:   header,
		Body:     data[bodyStart:bodyEnd],
		Checksum: data[bodyEnd:totLen],
		Shape:    shape,
	}, nil
}

// Validate recomputes the envelope's checksum over header+body using the
// exact header shape observed on input and compares it to the stored
// checksum field (C5, spec.md §4.3).
func (e *Envelope) Validate() error {
	if e.Shape.isELFBody && e.Header == nil {
		// A bare ELF core file handed in directly (spec.md §4.1 rule 1):
		// there is no envelope checksum to validate.
		return nil
	}
	return validateChecksum(e.Shape.checksum, e.Header, e.Body, e.Checksum)
}

// IsELFPassthrough reports whether this envelope's body is a pre-built ELF
// payload rather than binary task/segment records.
func (e *Envelope) IsELFPassthrough() bool { return e.Shape.isELFBody }

// ChipRev returns the envelope's chip-revision field, if its header shape
// carries one.
func (e *Envelope) ChipRev() (uint32, bool) {
	if e.Header == nil {
		return 0, false
	}
	return e.Header.ChipRev()
}

// SegsNum returns the envelope's segment count, if its header shape carries
// one.
func (e *Envelope) SegsNum() (uint32, bool) {
	if e.Header == nil {
		return 0, false
	}
	return e.Header.SegsNum()
}
