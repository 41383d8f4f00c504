// Package cfb reads, patches in place and writes OLE compound files (MS-CFB),
// the container format of HWP 5 documents.
package cfb

import (
	"encoding/binary"
	"errors"
	"unicode"

	xunicode "golang.org/x/text/encoding/unicode"
)

var utf16le = xunicode.UTF16(xunicode.LittleEndian, xunicode.IgnoreBOM)

var signature = [8]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

const (
	headerSize   = 512
	dirEntrySize = 128

	miniStreamCutoff = 4096
	miniSectorSize   = 64

	// number of FAT sector locations kept in the header itself
	headerDIFATCount = 109

	maxNameUnits = 31
)

// special sector numbers
const (
	secMaxReg     uint32 = 0xFFFFFFFA
	secDIFAT      uint32 = 0xFFFFFFFC
	secFAT        uint32 = 0xFFFFFFFD
	secEndOfChain uint32 = 0xFFFFFFFE
	secFree       uint32 = 0xFFFFFFFF

	noStream uint32 = 0xFFFFFFFF
)

// directory object types
const (
	typeUnknown uint8 = 0
	typeStorage uint8 = 1
	typeStream  uint8 = 2
	typeRoot    uint8 = 5
)

const (
	colorRed   uint8 = 0
	colorBlack uint8 = 1
)

var (
	// ErrNotCompound is returned when data does not start with compound file signature.
	ErrNotCompound = errors.New("not a compound file")
	// ErrCorrupt is returned for structurally broken compound files.
	ErrCorrupt = errors.New("corrupt compound file")
	// ErrNotFound is returned when requested stream does not exist.
	ErrNotFound = errors.New("stream not found")
)

type header struct {
	Signature          [8]byte
	CLSID              [16]byte
	MinorVersion       uint16
	MajorVersion       uint16
	ByteOrder          uint16
	SectorShift        uint16
	MiniSectorShift    uint16
	Reserved           [6]byte
	NumDirSectors      uint32
	NumFATSectors      uint32
	FirstDirSector     uint32
	TransactionSig     uint32
	MiniStreamCutoff   uint32
	FirstMiniFATSector uint32
	NumMiniFATSectors  uint32
	FirstDIFATSector   uint32
	NumDIFATSectors    uint32
	DIFAT              [headerDIFATCount]uint32
}

type dirEntry struct {
	NameRaw     [64]byte
	NameLen     uint16
	Type        uint8
	Color       uint8
	Left        uint32
	Right       uint32
	Child       uint32
	CLSID       [16]byte
	StateBits   uint32
	Created     uint64
	Modified    uint64
	StartSector uint32
	Size        uint64
}

func (e *dirEntry) name() string {
	n := int(e.NameLen)/2 - 1
	if n <= 0 {
		return ""
	}
	n = min(n, 32)
	name, err := utf16le.NewDecoder().Bytes(e.NameRaw[:2*n])
	if err != nil {
		return ""
	}
	return string(name)
}

// nameUnits returns UTF-16 code units of the name.
func nameUnits(name string) []uint16 {
	raw, err := utf16le.NewEncoder().Bytes([]byte(name))
	if err != nil {
		return nil
	}
	units := make([]uint16, len(raw)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(raw[2*i:])
	}
	return units
}

func (e *dirEntry) setName(name string) error {
	units := nameUnits(name)
	if len(units) > maxNameUnits {
		return errors.New("entry name is too long: " + name)
	}
	e.NameRaw = [64]byte{}
	for i, u := range units {
		e.NameRaw[2*i] = byte(u)
		e.NameRaw[2*i+1] = byte(u >> 8)
	}
	e.NameLen = uint16(len(units)+1) * 2
	return nil
}

// compareNames orders sibling names the way compound file directories
// require: shorter names first, then by upper-cased UTF-16 code units.
func compareNames(a, b string) int {
	ua, ub := nameUnits(a), nameUnits(b)
	if len(ua) != len(ub) {
		return len(ua) - len(ub)
	}
	for i := range ua {
		ca, cb := upper(ua[i]), upper(ub[i])
		if ca != cb {
			return int(ca) - int(cb)
		}
	}
	return 0
}

func upper(u uint16) uint16 {
	if u >= 0xD800 && u < 0xE000 {
		return u
	}
	r := unicode.ToUpper(rune(u))
	if r > 0xFFFF {
		return u
	}
	return uint16(r)
}
