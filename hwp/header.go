package hwp

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Stream names inside the compound file.
const (
	StreamFileHeader = "FileHeader"
	StreamDocInfo    = "DocInfo"
	StorageBodyText  = "BodyText"
)

const (
	fileHeaderSize = 256
	signatureText  = "HWP Document File"
)

// File header property flags.
const (
	FlagCompressed   uint32 = 1 << 0
	FlagPassword     uint32 = 1 << 1
	FlagDistribution uint32 = 1 << 2
	FlagScript       uint32 = 1 << 3
	FlagDRM          uint32 = 1 << 4
)

// ErrBadSignature is returned when FileHeader does not belong to HWP 5 document.
var ErrBadSignature = errors.New("bad HWP file header signature")

// FileHeader is decoded "FileHeader" stream.
type FileHeader struct {
	Version    uint32
	Properties uint32
}

// Version 5.0.3.0, what the word processor writes for plain documents.
const DefaultVersion uint32 = 0x05000300

func (h FileHeader) Compressed() bool {
	return h.Properties&FlagCompressed != 0
}

// Encrypted reports documents whose streams cannot be decoded without a key.
func (h FileHeader) Encrypted() bool {
	return h.Properties&(FlagPassword|FlagDRM|FlagDistribution) != 0
}

// VersionString returns dotted version, e.g. "5.0.3.0".
func (h FileHeader) VersionString() string {
	v := h.Version
	return fmt.Sprintf("%d.%d.%d.%d", v>>24, (v>>16)&0xFF, (v>>8)&0xFF, v&0xFF)
}

// ParseFileHeader decodes "FileHeader" stream.
func ParseFileHeader(data []byte) (FileHeader, error) {
	if len(data) < 40 {
		return FileHeader{}, fmt.Errorf("%w: %d bytes", ErrBadSignature, len(data))
	}
	sig := data[:32]
	for i, c := range []byte(signatureText) {
		if sig[i] != c {
			return FileHeader{}, ErrBadSignature
		}
	}
	return FileHeader{
		Version:    binary.LittleEndian.Uint32(data[32:]),
		Properties: binary.LittleEndian.Uint32(data[36:]),
	}, nil
}

// Encode produces 256 bytes "FileHeader" stream.
func (h FileHeader) Encode() []byte {
	out := make([]byte, fileHeaderSize)
	copy(out, signatureText)
	binary.LittleEndian.PutUint32(out[32:], h.Version)
	binary.LittleEndian.PutUint32(out[36:], h.Properties)
	return out
}
