package cfb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path"
	"sort"
)

// Extent is a contiguous byte range of a stream inside the compound file.
type Extent struct {
	Offset int64
	Length int
}

// Entry describes a storage or a stream of the compound file.
type Entry struct {
	Path    string
	Storage bool
	Size    int64
}

// File is a parsed compound file kept in memory.
type File struct {
	data []byte
	hdr  header

	sectorSize int
	fat        []uint32
	miniFAT    []uint32
	entries    []dirEntry
	paths      map[string]int
	order      []string

	// sectors holding the mini stream, in order
	miniChain []uint32
}

// Open reads compound file from disk.
func Open(name string) (*File, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse parses compound file image. The slice is retained.
func Parse(data []byte) (*File, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrNotCompound, len(data))
	}
	f := &File{data: data, paths: make(map[string]int)}
	if err := binary.Read(bytes.NewReader(data[:headerSize]), binary.LittleEndian, &f.hdr); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}
	if f.hdr.Signature != signature {
		return nil, ErrNotCompound
	}
	if f.hdr.ByteOrder != 0xFFFE {
		return nil, fmt.Errorf("%w: byte order mark %#04x", ErrCorrupt, f.hdr.ByteOrder)
	}
	switch f.hdr.SectorShift {
	case 9, 12:
	default:
		return nil, fmt.Errorf("%w: sector shift %d", ErrCorrupt, f.hdr.SectorShift)
	}
	if f.hdr.MiniSectorShift != 6 {
		return nil, fmt.Errorf("%w: mini sector shift %d", ErrCorrupt, f.hdr.MiniSectorShift)
	}
	f.sectorSize = 1 << f.hdr.SectorShift

	// header counts are checked against the image before anything is
	// allocated from them
	for _, c := range []struct {
		name  string
		count uint32
	}{
		{"FAT", f.hdr.NumFATSectors},
		{"DIFAT", f.hdr.NumDIFATSectors},
		{"mini FAT", f.hdr.NumMiniFATSectors},
	} {
		if int64(c.count) > int64(f.sectorCount()) {
			return nil, fmt.Errorf("%w: %d %s sectors in %d sector file", ErrCorrupt, c.count, c.name, f.sectorCount())
		}
	}

	if err := f.loadFAT(); err != nil {
		return nil, err
	}
	if err := f.loadDirectory(); err != nil {
		return nil, err
	}
	if err := f.loadMiniFAT(); err != nil {
		return nil, err
	}
	if err := f.indexPaths(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) sectorCount() int {
	return (len(f.data) - 1) / f.sectorSize
}

func (f *File) sectorOffset(sec uint32) int64 {
	return int64(sec+1) * int64(f.sectorSize)
}

func (f *File) sector(sec uint32) ([]byte, error) {
	if sec > secMaxReg {
		return nil, fmt.Errorf("%w: special sector %#x in chain", ErrCorrupt, sec)
	}
	off := f.sectorOffset(sec)
	end := off + int64(f.sectorSize)
	if end > int64(len(f.data)) {
		// last sector of a file is allowed to be short
		if off >= int64(len(f.data)) {
			return nil, fmt.Errorf("%w: sector %d beyond end of file", ErrCorrupt, sec)
		}
		buf := make([]byte, f.sectorSize)
		copy(buf, f.data[off:])
		return buf, nil
	}
	return f.data[off:end], nil
}

func (f *File) loadFAT() error {
	locations := make([]uint32, 0, f.hdr.NumFATSectors)
	for _, s := range f.hdr.DIFAT {
		if s == secFree || len(locations) == int(f.hdr.NumFATSectors) {
			break
		}
		locations = append(locations, s)
	}

	perSector := f.sectorSize/4 - 1
	next, seen := f.hdr.FirstDIFATSector, 0
	for next != secEndOfChain && next != secFree && len(locations) < int(f.hdr.NumFATSectors) {
		if seen > f.sectorCount() {
			return fmt.Errorf("%w: DIFAT chain loop", ErrCorrupt)
		}
		seen++
		buf, err := f.sector(next)
		if err != nil {
			return err
		}
		for i := range perSector {
			s := binary.LittleEndian.Uint32(buf[i*4:])
			if s == secFree || len(locations) == int(f.hdr.NumFATSectors) {
				break
			}
			locations = append(locations, s)
		}
		next = binary.LittleEndian.Uint32(buf[perSector*4:])
	}
	if len(locations) != int(f.hdr.NumFATSectors) {
		return fmt.Errorf("%w: expected %d FAT sectors, found %d", ErrCorrupt, f.hdr.NumFATSectors, len(locations))
	}

	f.fat = make([]uint32, 0, len(locations)*f.sectorSize/4)
	for _, s := range locations {
		buf, err := f.sector(s)
		if err != nil {
			return err
		}
		for i := 0; i < f.sectorSize; i += 4 {
			f.fat = append(f.fat, binary.LittleEndian.Uint32(buf[i:]))
		}
	}
	return nil
}

// chain follows FAT (or MiniFAT) from start sector.
func chain(table []uint32, start uint32, limit int) ([]uint32, error) {
	var out []uint32
	for s := start; s != secEndOfChain; {
		if int(s) >= len(table) {
			return nil, fmt.Errorf("%w: sector %d outside of allocation table", ErrCorrupt, s)
		}
		if len(out) > limit {
			return nil, fmt.Errorf("%w: sector chain loop at %d", ErrCorrupt, start)
		}
		out = append(out, s)
		s = table[s]
	}
	return out, nil
}

func (f *File) readChain(start uint32) ([]byte, error) {
	secs, err := chain(f.fat, start, f.sectorCount())
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(secs)*f.sectorSize)
	for _, s := range secs {
		buf, err := f.sector(s)
		if err != nil {
			return nil, err
		}
		out = append(out, buf...)
	}
	return out, nil
}

func (f *File) loadDirectory() error {
	raw, err := f.readChain(f.hdr.FirstDirSector)
	if err != nil {
		return fmt.Errorf("directory: %w", err)
	}
	n := len(raw) / dirEntrySize
	if n == 0 {
		return fmt.Errorf("%w: empty directory", ErrCorrupt)
	}
	f.entries = make([]dirEntry, n)
	if err := binary.Read(bytes.NewReader(raw[:n*dirEntrySize]), binary.LittleEndian, f.entries); err != nil {
		return fmt.Errorf("%w: directory: %v", ErrCorrupt, err)
	}
	if f.entries[0].Type != typeRoot {
		return fmt.Errorf("%w: first directory entry is not root", ErrCorrupt)
	}
	if f.hdr.MajorVersion == 3 {
		// upper half of size is undefined in version 3 files
		for i := range f.entries {
			f.entries[i].Size &= 0xFFFFFFFF
		}
	}
	return nil
}

func (f *File) loadMiniFAT() error {
	if f.hdr.NumMiniFATSectors > 0 && f.hdr.FirstMiniFATSector != secEndOfChain {
		raw, err := f.readChain(f.hdr.FirstMiniFATSector)
		if err != nil {
			return fmt.Errorf("mini FAT: %w", err)
		}
		f.miniFAT = make([]uint32, len(raw)/4)
		for i := range f.miniFAT {
			f.miniFAT[i] = binary.LittleEndian.Uint32(raw[i*4:])
		}
	}
	root := &f.entries[0]
	if root.Size > 0 {
		secs, err := chain(f.fat, root.StartSector, f.sectorCount())
		if err != nil {
			return fmt.Errorf("mini stream: %w", err)
		}
		f.miniChain = secs
	}
	return nil
}

func (f *File) indexPaths() error {
	visited := make(map[uint32]bool)
	var walk func(id uint32, dir string) error
	walk = func(id uint32, dir string) error {
		if id == noStream {
			return nil
		}
		if int(id) >= len(f.entries) || visited[id] {
			return fmt.Errorf("%w: bad directory tree at entry %d", ErrCorrupt, id)
		}
		visited[id] = true
		e := &f.entries[id]
		if err := walk(e.Left, dir); err != nil {
			return err
		}
		p := path.Join(dir, e.name())
		switch e.Type {
		case typeStream, typeStorage:
			f.paths[p] = int(id)
			f.order = append(f.order, p)
		}
		if e.Type == typeStorage {
			if err := walk(e.Child, p); err != nil {
				return err
			}
		}
		return walk(e.Right, dir)
	}
	return walk(f.entries[0].Child, "")
}

// Entries lists storages and streams in directory order (parents before
// children, siblings in compound file order).
func (f *File) Entries() []Entry {
	out := make([]Entry, 0, len(f.order))
	for _, p := range f.order {
		e := &f.entries[f.paths[p]]
		out = append(out, Entry{Path: p, Storage: e.Type == typeStorage, Size: int64(e.Size)})
	}
	return out
}

// Streams returns sorted paths of all streams.
func (f *File) Streams() []string {
	out := make([]string, 0, len(f.order))
	for _, p := range f.order {
		if f.entries[f.paths[p]].Type == typeStream {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Has reports whether stream exists.
func (f *File) Has(name string) bool {
	id, ok := f.paths[name]
	return ok && f.entries[id].Type == typeStream
}

func (f *File) stream(name string) (*dirEntry, error) {
	id, ok := f.paths[name]
	if !ok || f.entries[id].Type != typeStream {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return &f.entries[id], nil
}

// ReadStream returns full content of the named stream ("BodyText/Section0").
func (f *File) ReadStream(name string) ([]byte, error) {
	ext, err := f.Extents(name)
	if err != nil {
		return nil, err
	}
	var total int
	for _, x := range ext {
		total += x.Length
	}
	out := make([]byte, 0, total)
	for _, x := range ext {
		end := x.Offset + int64(x.Length)
		if end > int64(len(f.data)) {
			return nil, fmt.Errorf("%w: stream %s runs beyond end of file", ErrCorrupt, name)
		}
		out = append(out, f.data[x.Offset:end]...)
	}
	return out, nil
}

// Extents returns byte ranges occupied by the stream data within the file,
// in stream order. Ranges never include sector slack past the stream size.
func (f *File) Extents(name string) ([]Extent, error) {
	e, err := f.stream(name)
	if err != nil {
		return nil, err
	}
	size := int64(e.Size)
	if size == 0 {
		return nil, nil
	}

	var out []Extent
	add := func(off int64, n int) {
		if l := len(out); l > 0 && out[l-1].Offset+int64(out[l-1].Length) == off {
			out[l-1].Length += n
			return
		}
		out = append(out, Extent{Offset: off, Length: n})
	}

	if size < int64(f.hdr.MiniStreamCutoff) {
		secs, err := chain(f.miniFAT, e.StartSector, len(f.miniFAT))
		if err != nil {
			return nil, fmt.Errorf("stream %s: %w", name, err)
		}
		perSector := f.sectorSize / miniSectorSize
		left := size
		for _, ms := range secs {
			if left <= 0 {
				break
			}
			idx := int(ms) / perSector
			if idx >= len(f.miniChain) {
				return nil, fmt.Errorf("%w: mini sector %d outside of mini stream", ErrCorrupt, ms)
			}
			off := f.sectorOffset(f.miniChain[idx]) + int64(int(ms)%perSector*miniSectorSize)
			n := int(min(left, miniSectorSize))
			add(off, n)
			left -= int64(n)
		}
		if left > 0 {
			return nil, fmt.Errorf("%w: stream %s is shorter than declared", ErrCorrupt, name)
		}
		return out, nil
	}

	secs, err := chain(f.fat, e.StartSector, f.sectorCount())
	if err != nil {
		return nil, fmt.Errorf("stream %s: %w", name, err)
	}
	left := size
	for _, s := range secs {
		if left <= 0 {
			break
		}
		n := int(min(left, int64(f.sectorSize)))
		add(f.sectorOffset(s), n)
		left -= int64(n)
	}
	if left > 0 {
		return nil, fmt.Errorf("%w: stream %s is shorter than declared", ErrCorrupt, name)
	}
	return out, nil
}
