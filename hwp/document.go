package hwp

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/h2non/filetype"

	"exgen/cfb"
)

// ErrEncrypted is returned for documents with password or DRM protection.
var ErrEncrypted = errors.New("document is encrypted")

var hwpType = filetype.NewType("hwp", "application/x-hwp")

func init() {
	filetype.AddMatcher(hwpType, func(buf []byte) bool {
		return len(buf) >= 8 && buf[0] == 0xD0 && buf[1] == 0xCF && buf[2] == 0x11 && buf[3] == 0xE0 &&
			buf[4] == 0xA1 && buf[5] == 0xB1 && buf[6] == 0x1A && buf[7] == 0xE1
	})
}

// Sniff checks whether file looks like compound document, the container of
// HWP 5 files. It reads only the beginning of the file.
func Sniff(name string) (bool, error) {
	f, err := os.Open(name)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, 262)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return filetype.Is(head[:n], hwpType.Extension), nil
}

// Document is an opened HWP 5 document.
type Document struct {
	Header    FileHeader
	Container *cfb.File
}

// Open reads and checks document from disk.
func Open(name string) (*Document, error) {
	c, err := cfb.Open(name)
	if err != nil {
		return nil, err
	}
	return newDocument(c)
}

// Parse checks document image.
func Parse(data []byte) (*Document, error) {
	c, err := cfb.Parse(data)
	if err != nil {
		return nil, err
	}
	return newDocument(c)
}

func newDocument(c *cfb.File) (*Document, error) {
	raw, err := c.ReadStream(StreamFileHeader)
	if err != nil {
		return nil, err
	}
	h, err := ParseFileHeader(raw)
	if err != nil {
		return nil, err
	}
	if h.Encrypted() {
		return nil, ErrEncrypted
	}
	if !c.Has(StreamDocInfo) {
		return nil, fmt.Errorf("%w: %s", cfb.ErrNotFound, StreamDocInfo)
	}
	return &Document{Header: h, Container: c}, nil
}

// Stream returns decompressed content of DocInfo or one of the sections,
// other streams are returned as stored.
func (d *Document) Stream(name string) ([]byte, error) {
	raw, err := d.Container.ReadStream(name)
	if err != nil {
		return nil, err
	}
	if !d.Header.Compressed() || !IsRecordStream(name) {
		return raw, nil
	}
	return Inflate(raw)
}

// DocInfo decodes document information stream.
func (d *Document) DocInfo() (*DocInfo, error) {
	data, err := d.Stream(StreamDocInfo)
	if err != nil {
		return nil, err
	}
	return ParseDocInfo(data)
}

// Sections returns section stream names in numeric order.
func (d *Document) Sections() []string {
	var out []string
	for _, s := range d.Container.Streams() {
		if _, ok := sectionNumber(s); ok {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b string) int {
		na, _ := sectionNumber(a)
		nb, _ := sectionNumber(b)
		return na - nb
	})
	return out
}

// SectionName returns stream name of n-th section.
func SectionName(n int) string {
	return StorageBodyText + "/Section" + strconv.Itoa(n)
}

func sectionNumber(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, StorageBodyText+"/Section")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// IsRecordStream reports streams which are compressed along with document.
func IsRecordStream(name string) bool {
	if name == StreamDocInfo {
		return true
	}
	_, ok := sectionNumber(name)
	return ok
}

// Encode packs stream for storage according to document compression flag.
func (d *Document) Encode(name string, data []byte) ([]byte, error) {
	if !d.Header.Compressed() || !IsRecordStream(name) {
		return data, nil
	}
	if _, ok := sectionNumber(name); ok {
		return DeflateSection(data)
	}
	return Deflate(data, 9)
}
