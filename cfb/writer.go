package cfb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"slices"
	"strings"
)

// Node is an input item for Build: a stream with data or an (empty) storage.
// Parent storages of a path are created implicitly.
type Node struct {
	Path    string
	Storage bool
	Data    []byte
}

type treeNode struct {
	name     string
	storage  bool
	data     []byte
	children []*treeNode

	id          uint32
	left, right uint32
	child       uint32
	color       uint8
	start       uint32
}

const sectorSize = 512

// Build produces version 3 compound file image holding given nodes. Output
// depends only on the input: no timestamps or CLSIDs are recorded, siblings
// are sorted and kept in a balanced red-black tree.
func Build(nodes []Node) ([]byte, error) {
	root := &treeNode{storage: true}
	for _, n := range nodes {
		if err := root.insert(n); err != nil {
			return nil, err
		}
	}

	// breadth first numbering, root is always 0
	all := []*treeNode{root}
	for i := 0; i < len(all); i++ {
		t := all[i]
		t.id = uint32(i)
		if !t.storage {
			continue
		}
		slices.SortFunc(t.children, func(a, b *treeNode) int { return compareNames(a.name, b.name) })
		all = append(all, t.children...)
	}
	for _, t := range all {
		t.left, t.right, t.child = noStream, noStream, noStream
		t.color = colorBlack
	}
	for _, t := range all {
		if t.storage {
			t.child = linkSiblings(t.children)
		}
	}

	// allocate stream data
	var (
		miniSectors int
		dataSectors int
		miniFAT     []uint32
	)
	for _, t := range all[1:] {
		if t.storage {
			continue
		}
		switch size := len(t.data); {
		case size == 0:
			t.start = secEndOfChain
		case size < miniStreamCutoff:
			n := (size + miniSectorSize - 1) / miniSectorSize
			t.start = uint32(miniSectors)
			for i := range n {
				if i == n-1 {
					miniFAT = append(miniFAT, secEndOfChain)
				} else {
					miniFAT = append(miniFAT, uint32(miniSectors+i+1))
				}
			}
			miniSectors += n
		default:
			dataSectors += (size + sectorSize - 1) / sectorSize
		}
	}

	nDir := (len(all)*dirEntrySize + sectorSize - 1) / sectorSize
	nMiniFAT := (len(miniFAT)*4 + sectorSize - 1) / sectorSize
	nMiniStream := (miniSectors*miniSectorSize + sectorSize - 1) / sectorSize
	nonFAT := nDir + nMiniFAT + nMiniStream + dataSectors

	nFAT := 0
	for {
		need := (nonFAT + nFAT + sectorSize/4 - 1) / (sectorSize / 4)
		if need <= nFAT {
			break
		}
		nFAT = need
	}
	if nFAT > headerDIFATCount {
		return nil, fmt.Errorf("compound file too large: %d FAT sectors", nFAT)
	}

	fat := make([]uint32, nFAT*sectorSize/4)
	for i := range fat {
		fat[i] = secFree
	}
	next := uint32(0)
	alloc := func(n int) uint32 {
		if n == 0 {
			return secEndOfChain
		}
		first := next
		for i := range n {
			if i == n-1 {
				fat[next] = secEndOfChain
			} else {
				fat[next] = next + 1
			}
			next++
		}
		return first
	}
	for range nFAT {
		fat[next] = secFAT
		next++
	}
	firstDir := alloc(nDir)
	firstMiniFAT := alloc(nMiniFAT)
	firstMini := alloc(nMiniStream)
	for _, t := range all[1:] {
		if !t.storage && len(t.data) >= miniStreamCutoff {
			t.start = alloc((len(t.data) + sectorSize - 1) / sectorSize)
		}
	}

	hdr := header{
		Signature:          signature,
		MinorVersion:       0x003E,
		MajorVersion:       3,
		ByteOrder:          0xFFFE,
		SectorShift:        9,
		MiniSectorShift:    6,
		NumFATSectors:      uint32(nFAT),
		FirstDirSector:     firstDir,
		MiniStreamCutoff:   miniStreamCutoff,
		FirstMiniFATSector: firstMiniFAT,
		NumMiniFATSectors:  uint32(nMiniFAT),
		FirstDIFATSector:   secEndOfChain,
	}
	for i := range hdr.DIFAT {
		if i < nFAT {
			hdr.DIFAT[i] = uint32(i)
		} else {
			hdr.DIFAT[i] = secFree
		}
	}

	buf := &bytes.Buffer{}
	buf.Grow(headerSize + int(next)*sectorSize)
	if err := binary.Write(buf, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("marshal header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, fat); err != nil {
		return nil, fmt.Errorf("marshal FAT: %w", err)
	}

	// directory
	dir := make([]dirEntry, nDir*sectorSize/dirEntrySize)
	for i := range dir {
		dir[i].Left, dir[i].Right, dir[i].Child = noStream, noStream, noStream
	}
	for _, t := range all {
		e := &dir[t.id]
		name := t.name
		switch {
		case t.id == 0:
			name = "Root Entry"
			e.Type = typeRoot
			e.StartSector = firstMini
			e.Size = uint64(miniSectors * miniSectorSize)
			if miniSectors == 0 {
				e.StartSector = secEndOfChain
			}
		case t.storage:
			e.Type = typeStorage
		default:
			e.Type = typeStream
			e.StartSector = t.start
			e.Size = uint64(len(t.data))
		}
		if err := e.setName(name); err != nil {
			return nil, err
		}
		e.Color = t.color
		e.Left, e.Right, e.Child = t.left, t.right, t.child
	}
	if err := binary.Write(buf, binary.LittleEndian, dir); err != nil {
		return nil, fmt.Errorf("marshal directory: %w", err)
	}

	// mini FAT
	if nMiniFAT > 0 {
		tbl := make([]uint32, nMiniFAT*sectorSize/4)
		copy(tbl, miniFAT)
		for i := len(miniFAT); i < len(tbl); i++ {
			tbl[i] = secFree
		}
		if err := binary.Write(buf, binary.LittleEndian, tbl); err != nil {
			return nil, fmt.Errorf("marshal mini FAT: %w", err)
		}
	}

	// mini stream, then regular streams
	for _, t := range all[1:] {
		if !t.storage && len(t.data) > 0 && len(t.data) < miniStreamCutoff {
			buf.Write(t.data)
			pad(buf, miniSectorSize)
		}
	}
	pad(buf, sectorSize)
	for _, t := range all[1:] {
		if !t.storage && len(t.data) >= miniStreamCutoff {
			buf.Write(t.data)
			pad(buf, sectorSize)
		}
	}
	return buf.Bytes(), nil
}

func pad(buf *bytes.Buffer, unit int) {
	if n := buf.Len() % unit; n != 0 {
		buf.Write(make([]byte, unit-n))
	}
}

func (t *treeNode) insert(n Node) error {
	parts := strings.Split(strings.Trim(n.Path, "/"), "/")
	cur := t
	for i, p := range parts {
		if p == "" {
			return fmt.Errorf("bad entry path %q", n.Path)
		}
		var found *treeNode
		for _, c := range cur.children {
			if compareNames(c.name, p) == 0 {
				found = c
				break
			}
		}
		last := i == len(parts)-1
		switch {
		case found == nil:
			found = &treeNode{name: p, storage: !last || n.Storage}
			if last {
				found.data = n.Data
			}
			cur.children = append(cur.children, found)
		case last:
			return fmt.Errorf("duplicate entry %q", n.Path)
		case !found.storage:
			return fmt.Errorf("entry %q is nested under a stream", n.Path)
		}
		cur = found
	}
	return nil
}

// linkSiblings builds balanced tree out of sorted siblings and returns id of
// its root. Nodes on an incomplete last level are colored red, which keeps
// black height equal on every path.
func linkSiblings(sorted []*treeNode) uint32 {
	if len(sorted) == 0 {
		return noStream
	}
	height := 0
	for n := len(sorted); n > 0; n >>= 1 {
		height++
	}
	full := len(sorted) == 1<<height-1

	var build func(lo, hi, depth int) uint32
	build = func(lo, hi, depth int) uint32 {
		if lo >= hi {
			return noStream
		}
		mid := (lo + hi) / 2
		t := sorted[mid]
		t.left = build(lo, mid, depth+1)
		t.right = build(mid+1, hi, depth+1)
		if !full && depth == height-1 {
			t.color = colorRed
		}
		return t.id
	}
	return build(0, len(sorted), 0)
}
