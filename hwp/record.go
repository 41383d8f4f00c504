// Package hwp decodes and encodes parts of HWP 5 documents: file header,
// record streams, document information and body text paragraphs.
package hwp

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Record tags.
const (
	tagBegin = 0x10

	TagDocumentProperties = tagBegin + 0
	TagIDMappings         = tagBegin + 1
	TagBinData            = tagBegin + 2
	TagFaceName           = tagBegin + 3
	TagBorderFill         = tagBegin + 4
	TagCharShape          = tagBegin + 5
	TagTabDef             = tagBegin + 6
	TagNumbering          = tagBegin + 7
	TagBullet             = tagBegin + 8
	TagParaShape          = tagBegin + 9
	TagStyle              = tagBegin + 10

	TagParaHeader     = tagBegin + 50
	TagParaText       = tagBegin + 51
	TagParaCharShape  = tagBegin + 52
	TagParaLineSeg    = tagBegin + 53
	TagParaRangeTag   = tagBegin + 54
	TagCtrlHeader     = tagBegin + 55
	TagListHeader     = tagBegin + 56
	TagPageDef        = tagBegin + 57
	TagFootnoteShape  = tagBegin + 58
	TagPageBorderFill = tagBegin + 59
)

const (
	maxInlineSize = 0xFFF
	maxTag        = 0x3FF
	maxLevel      = 0x3FF
)

// ErrMalformedRecord is returned when record stream cannot be decoded.
var ErrMalformedRecord = errors.New("malformed record")

// Record is a single tagged record. Data aliases the stream it was parsed
// from.
type Record struct {
	Tag   uint16
	Level uint16
	// Offset of the record header within the stream.
	Offset int
	// Offset of the payload within the stream.
	DataOffset int
	Data       []byte
}

// ParseRecords splits decompressed stream into records.
func ParseRecords(data []byte) ([]Record, error) {
	var out []Record
	for pos := 0; pos < len(data); {
		if len(data)-pos < 4 {
			return nil, fmt.Errorf("%w: truncated header at %d", ErrMalformedRecord, pos)
		}
		h := binary.LittleEndian.Uint32(data[pos:])
		r := Record{
			Tag:    uint16(h & maxTag),
			Level:  uint16((h >> 10) & maxLevel),
			Offset: pos,
		}
		size := int(h >> 20)
		pos += 4
		if size == maxInlineSize {
			if len(data)-pos < 4 {
				return nil, fmt.Errorf("%w: truncated extended size at %d", ErrMalformedRecord, pos)
			}
			size = int(binary.LittleEndian.Uint32(data[pos:]))
			pos += 4
		}
		if size < 0 || size > len(data)-pos {
			return nil, fmt.Errorf("%w: tag %d at %d declares %d bytes, %d left", ErrMalformedRecord, r.Tag, r.Offset, size, len(data)-pos)
		}
		r.DataOffset = pos
		r.Data = data[pos : pos+size]
		pos += size
		out = append(out, r)
	}
	return out, nil
}

// AppendRecord encodes record and appends it to dst.
func AppendRecord(dst []byte, tag, level uint16, payload []byte) []byte {
	size := len(payload)
	h := uint32(tag&maxTag) | uint32(level&maxLevel)<<10
	if size >= maxInlineSize {
		h |= maxInlineSize << 20
		dst = binary.LittleEndian.AppendUint32(dst, h)
		dst = binary.LittleEndian.AppendUint32(dst, uint32(size))
	} else {
		h |= uint32(size) << 20
		dst = binary.LittleEndian.AppendUint32(dst, h)
	}
	return append(dst, payload...)
}

// EncodeRecords serializes records, ignoring their offsets.
func EncodeRecords(recs []Record) []byte {
	var out []byte
	for _, r := range recs {
		out = AppendRecord(out, r.Tag, r.Level, r.Data)
	}
	return out
}

// TagName returns readable name for known tags.
func TagName(tag uint16) string {
	switch tag {
	case TagDocumentProperties:
		return "DOCUMENT_PROPERTIES"
	case TagIDMappings:
		return "ID_MAPPINGS"
	case TagBinData:
		return "BIN_DATA"
	case TagFaceName:
		return "FACE_NAME"
	case TagBorderFill:
		return "BORDER_FILL"
	case TagCharShape:
		return "CHAR_SHAPE"
	case TagTabDef:
		return "TAB_DEF"
	case TagNumbering:
		return "NUMBERING"
	case TagBullet:
		return "BULLET"
	case TagParaShape:
		return "PARA_SHAPE"
	case TagStyle:
		return "STYLE"
	case TagParaHeader:
		return "PARA_HEADER"
	case TagParaText:
		return "PARA_TEXT"
	case TagParaCharShape:
		return "PARA_CHAR_SHAPE"
	case TagParaLineSeg:
		return "PARA_LINE_SEG"
	case TagParaRangeTag:
		return "PARA_RANGE_TAG"
	case TagCtrlHeader:
		return "CTRL_HEADER"
	case TagListHeader:
		return "LIST_HEADER"
	case TagPageDef:
		return "PAGE_DEF"
	case TagFootnoteShape:
		return "FOOTNOTE_SHAPE"
	case TagPageBorderFill:
		return "PAGE_BORDER_FILL"
	}
	return fmt.Sprintf("TAG_%d", tag)
}
