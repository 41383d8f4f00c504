package cfb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sample() []Node {
	big := bytes.Repeat([]byte("0123456789abcdef"), 700) // 11200 bytes, regular sectors
	return []Node{
		{Path: "FileHeader", Data: bytes.Repeat([]byte{'H'}, 256)},
		{Path: "DocInfo", Data: bytes.Repeat([]byte{'D'}, 100)},
		{Path: "BodyText/Section0", Data: big},
		{Path: "BodyText/Section1", Data: []byte("short section")},
		{Path: "Scripts", Storage: true},
		{Path: "\x05HwpSummaryInformation", Data: []byte{}},
	}
}

func TestBuildParse(t *testing.T) {
	img, err := Build(sample())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(img)%sectorSize != 0 {
		t.Errorf("image size %d is not sector aligned", len(img))
	}

	f, err := Parse(img)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []string{"\x05HwpSummaryInformation", "BodyText/Section0", "BodyText/Section1", "DocInfo", "FileHeader"}
	if diff := cmp.Diff(want, f.Streams()); diff != "" {
		t.Errorf("Streams() mismatch (-want +got):\n%s", diff)
	}

	for _, n := range sample() {
		if n.Storage {
			continue
		}
		got, err := f.ReadStream(n.Path)
		if err != nil {
			t.Errorf("ReadStream(%q) error = %v", n.Path, err)
			continue
		}
		if !bytes.Equal(got, n.Data) {
			t.Errorf("ReadStream(%q) returned %d bytes, want %d", n.Path, len(got), len(n.Data))
		}
	}

	var storages []string
	for _, e := range f.Entries() {
		if e.Storage {
			storages = append(storages, e.Path)
		}
	}
	// siblings keep compound file order, shorter names first
	if diff := cmp.Diff([]string{"Scripts", "BodyText"}, storages); diff != "" {
		t.Errorf("storages mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildDeterministic(t *testing.T) {
	a, err := Build(sample())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	// input order must not matter
	nodes := sample()
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
	b, err := Build(nodes)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("Build() output depends on input order")
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name  string
		nodes []Node
	}{
		{"duplicate", []Node{{Path: "A", Data: []byte{1}}, {Path: "a", Data: []byte{2}}}},
		{"under stream", []Node{{Path: "A", Data: []byte{1}}, {Path: "A/B", Data: []byte{2}}}},
		{"empty segment", []Node{{Path: "A//B", Data: []byte{1}}}},
		{"long name", []Node{{Path: "ThisNameIsDefinitelyLongerThanThirtyOneUnits", Data: []byte{1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Build(tt.nodes); err == nil {
				t.Error("Build() expected error")
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse([]byte("short")); !errors.Is(err, ErrNotCompound) {
		t.Errorf("Parse(short) error = %v, want ErrNotCompound", err)
	}
	if _, err := Parse(make([]byte, 1024)); !errors.Is(err, ErrNotCompound) {
		t.Errorf("Parse(zeros) error = %v, want ErrNotCompound", err)
	}

	img, err := Build(sample())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	broken := bytes.Clone(img)
	broken[30] = 10 // sector shift
	if _, err := Parse(broken); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Parse(bad shift) error = %v, want ErrCorrupt", err)
	}

	// sector counts larger than the whole image
	for _, tt := range []struct {
		name   string
		offset int
	}{
		{"FAT", 44},
		{"mini FAT", 64},
		{"DIFAT", 72},
	} {
		broken := bytes.Clone(img)
		binary.LittleEndian.PutUint32(broken[tt.offset:], 0xFFFFFFFF)
		if _, err := Parse(broken); !errors.Is(err, ErrCorrupt) {
			t.Errorf("Parse(huge %s count) error = %v, want ErrCorrupt", tt.name, err)
		}
	}
	tiny := make([]byte, headerSize+512)
	copy(tiny, img[:headerSize])
	binary.LittleEndian.PutUint32(tiny[44:], 0xFFFFFFFF)
	binary.LittleEndian.PutUint32(tiny[68:], secEndOfChain)
	if _, err := Parse(tiny); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Parse(tiny with huge FAT count) error = %v, want ErrCorrupt", err)
	}

	f, err := Parse(img)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if _, err := f.ReadStream("Nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadStream(Nope) error = %v, want ErrNotFound", err)
	}
	if _, err := f.ReadStream("BodyText"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadStream(storage) error = %v, want ErrNotFound", err)
	}
}

func TestPatchStream(t *testing.T) {
	img, err := Build(sample())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	name := filepath.Join(t.TempDir(), "doc.hwp")
	if err := os.WriteFile(name, img, 0644); err != nil {
		t.Fatal(err)
	}

	for _, stream := range []string{"BodyText/Section0", "BodyText/Section1"} {
		f, err := Open(name)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		old, err := f.ReadStream(stream)
		if err != nil {
			t.Fatal(err)
		}
		patched := bytes.Clone(old)
		patched[len(patched)-1] ^= 0xFF
		patched[0] ^= 0xFF
		if err := PatchStream(name, stream, patched); err != nil {
			t.Fatalf("PatchStream(%q) error = %v", stream, err)
		}

		after, err := os.ReadFile(name)
		if err != nil {
			t.Fatal(err)
		}
		if len(after) != len(img) {
			t.Fatalf("file size changed: %d -> %d", len(img), len(after))
		}
		g, err := Parse(after)
		if err != nil {
			t.Fatalf("Parse() after patch error = %v", err)
		}
		got, err := g.ReadStream(stream)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, patched) {
			t.Errorf("stream %q was not patched", stream)
		}
		diff := 0
		for i := range after {
			if after[i] != img[i] {
				diff++
			}
		}
		if diff != 2 {
			t.Errorf("patch of %q changed %d bytes, want 2", stream, diff)
		}
		img = after
	}

	if err := PatchStream(name, "DocInfo", []byte("wrong size")); err == nil {
		t.Error("PatchStream() with wrong size expected error")
	}
}

func TestPatchStreams(t *testing.T) {
	img, err := Build(sample())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	name := filepath.Join(t.TempDir(), "doc.hwp")
	if err := os.WriteFile(name, img, 0644); err != nil {
		t.Fatal(err)
	}
	f, err := Parse(img)
	if err != nil {
		t.Fatal(err)
	}
	s0, err := f.ReadStream("BodyText/Section0")
	if err != nil {
		t.Fatal(err)
	}
	s1, err := f.ReadStream("BodyText/Section1")
	if err != nil {
		t.Fatal(err)
	}
	p0 := bytes.Clone(s0)
	p0[0] ^= 0xFF
	p1 := bytes.Clone(s1)
	p1[0] ^= 0xFF

	// second patch is bad, first must not land either
	err = PatchStreams(name, Patch{"BodyText/Section0", p0}, Patch{"BodyText/Section1", p1[1:]})
	if err == nil {
		t.Fatal("PatchStreams() with wrong size expected error")
	}
	err = PatchStreams(name, Patch{"BodyText/Section0", p0}, Patch{"Nope", p1})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("PatchStreams() with missing stream error = %v, want ErrNotFound", err)
	}
	after, err := os.ReadFile(name)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(after, img) {
		t.Fatal("failed PatchStreams() changed the file")
	}

	if err := PatchStreams(name, Patch{"BodyText/Section0", p0}, Patch{"BodyText/Section1", p1}); err != nil {
		t.Fatalf("PatchStreams() error = %v", err)
	}
	g, err := Open(name)
	if err != nil {
		t.Fatal(err)
	}
	for stream, want := range map[string][]byte{"BodyText/Section0": p0, "BodyText/Section1": p1} {
		got, err := g.ReadStream(stream)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("stream %q was not patched", stream)
		}
	}
}

func TestEntryNames(t *testing.T) {
	for _, name := range []string{"Root Entry", "\x05HwpSummaryInformation", "본문", "𝄞"} {
		var e dirEntry
		if err := e.setName(name); err != nil {
			t.Fatalf("setName(%q) error = %v", name, err)
		}
		if got := e.name(); got != name {
			t.Errorf("name() = %q, want %q", got, name)
		}
	}
	var e dirEntry
	if err := e.setName("𝄞𝄞𝄞𝄞𝄞𝄞𝄞𝄞𝄞𝄞𝄞𝄞𝄞𝄞𝄞𝄞"); err == nil {
		t.Error("setName() expected error for 32 units")
	}
}

func TestCompareNames(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"B", "AA", -1},
		{"abc", "ABC", 0},
		{"DocInfo", "DocOptions", -1},
		{"Section1", "Section0", 1},
	}
	for _, tt := range tests {
		got := compareNames(tt.a, tt.b)
		switch {
		case tt.want < 0 && got >= 0, tt.want > 0 && got <= 0, tt.want == 0 && got != 0:
			t.Errorf("compareNames(%q, %q) = %d, want sign %d", tt.a, tt.b, got, tt.want)
		}
	}
}
