package hwp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRecords(t *testing.T) {
	big := bytes.Repeat([]byte{7}, 5000)
	var data []byte
	data = AppendRecord(data, TagParaHeader, 0, []byte{1, 2, 3})
	data = AppendRecord(data, TagParaText, 1, big)
	data = AppendRecord(data, TagParaLineSeg, 1, nil)

	recs, err := ParseRecords(data)
	if err != nil {
		t.Fatalf("ParseRecords() error = %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("ParseRecords() returned %d records, want 3", len(recs))
	}
	if recs[1].Tag != TagParaText || recs[1].Level != 1 || len(recs[1].Data) != len(big) {
		t.Errorf("extended record = tag %d level %d size %d", recs[1].Tag, recs[1].Level, len(recs[1].Data))
	}
	if recs[1].DataOffset-recs[1].Offset != 8 {
		t.Errorf("extended record header is %d bytes, want 8", recs[1].DataOffset-recs[1].Offset)
	}
	if !bytes.Equal(EncodeRecords(recs), data) {
		t.Error("EncodeRecords() does not reproduce stream")
	}

	if _, err := ParseRecords(data[:len(data)-5]); !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("ParseRecords(truncated) error = %v, want ErrMalformedRecord", err)
	}
	if _, err := ParseRecords([]byte{1, 2}); !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("ParseRecords(short) error = %v, want ErrMalformedRecord", err)
	}
}

func TestFileHeader(t *testing.T) {
	h := FileHeader{Version: DefaultVersion, Properties: FlagCompressed}
	got, err := ParseFileHeader(h.Encode())
	if err != nil {
		t.Fatalf("ParseFileHeader() error = %v", err)
	}
	if got != h {
		t.Errorf("ParseFileHeader() = %+v, want %+v", got, h)
	}
	if !got.Compressed() || got.Encrypted() {
		t.Errorf("flags decoded wrong: %+v", got)
	}
	if s := got.VersionString(); s != "5.0.3.0" {
		t.Errorf("VersionString() = %q, want 5.0.3.0", s)
	}

	bad := h.Encode()
	bad[0] = 'X'
	if _, err := ParseFileHeader(bad); !errors.Is(err, ErrBadSignature) {
		t.Errorf("ParseFileHeader(bad) error = %v, want ErrBadSignature", err)
	}
}

func TestDeflateExact(t *testing.T) {
	data := bytes.Repeat([]byte("question text "), 200)
	packed, err := Deflate(data, 9)
	if err != nil {
		t.Fatal(err)
	}

	// trailing zeros after the final block must be ignored
	padded := append(bytes.Clone(packed), make([]byte, 64)...)
	got, err := Inflate(padded)
	if err != nil {
		t.Fatalf("Inflate(padded) error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("Inflate(padded) returned different data")
	}

	exact, err := DeflateExact(data, len(packed)+10)
	if err != nil {
		t.Fatalf("DeflateExact() error = %v", err)
	}
	if len(exact) != len(packed)+10 {
		t.Errorf("DeflateExact() returned %d bytes, want %d", len(exact), len(packed)+10)
	}
	if got, err := Inflate(exact); err != nil || !bytes.Equal(got, data) {
		t.Errorf("Inflate(DeflateExact()) error = %v, equal = %v", err, bytes.Equal(got, data))
	}

	if _, err := DeflateExact(data, 3); !errors.Is(err, ErrDoesNotFit) {
		t.Errorf("DeflateExact(tiny) error = %v, want ErrDoesNotFit", err)
	}
}

func TestParaText(t *testing.T) {
	var b []byte
	b = appendControl(b, CtrlSectionDef)
	for _, u := range []uint16{'1', '.', ctrlLineBreak, 'A'} {
		b = binary.LittleEndian.AppendUint16(b, u)
	}
	// tab is an inline control of 8 units
	b = binary.LittleEndian.AppendUint16(b, ctrlTab)
	b = append(b, make([]byte, 12)...)
	b = binary.LittleEndian.AppendUint16(b, ctrlTab)
	b = binary.LittleEndian.AppendUint16(b, 'B')
	b = binary.LittleEndian.AppendUint16(b, ctrlParaBreak)

	if got, want := DecodeParaText(b), "1.\nA\tB"; got != want {
		t.Errorf("DecodeParaText() = %q, want %q", got, want)
	}

	enc := EncodeParaText("가\t나\x01")
	if got, want := DecodeParaText(enc), "가 나"; got != want {
		t.Errorf("DecodeParaText(EncodeParaText()) = %q, want %q", got, want)
	}
	if n := TextUnits("가나다"); n != 3 {
		t.Errorf("TextUnits() = %d, want 3", n)
	}

	// characters outside of BMP take two units
	if got := DecodeParaText(EncodeParaText("x²𝄞")); got != "x²𝄞" {
		t.Errorf("DecodeParaText(EncodeParaText()) = %q, want %q", got, "x²𝄞")
	}
	if n := TextUnits("𝄞"); n != 2 {
		t.Errorf("TextUnits(surrogate pair) = %d, want 2", n)
	}
	lone := binary.LittleEndian.AppendUint16(nil, 0xD834)
	lone = binary.LittleEndian.AppendUint16(lone, 'a')
	if got := DecodeParaText(lone); got != "\uFFFDa" {
		t.Errorf("DecodeParaText(lone surrogate) = %q", got)
	}
}

func TestShapesRoundTrip(t *testing.T) {
	c := CharShapeFor(3, 9.5, 95, -5, true, true)
	got, err := DecodeCharShape(c.Encode())
	if err != nil {
		t.Fatalf("DecodeCharShape() error = %v", err)
	}
	if diff := cmp.Diff(c, got); diff != "" {
		t.Errorf("CharShape mismatch (-want +got):\n%s", diff)
	}
	if !got.Bold() || !got.Underline() || got.SizePt() != 9.5 {
		t.Errorf("CharShape accessors: bold %v underline %v size %v", got.Bold(), got.Underline(), got.SizePt())
	}
	if _, err := DecodeCharShape(c.Encode()[:40]); !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("DecodeCharShape(short) error = %v", err)
	}

	p := ParaShapeFor(140, 13.8, AlignJustify, true)
	gp, err := DecodeParaShape(p.Encode())
	if err != nil {
		t.Fatalf("DecodeParaShape() error = %v", err)
	}
	if diff := cmp.Diff(p, gp); diff != "" {
		t.Errorf("ParaShape mismatch (-want +got):\n%s", diff)
	}
	if gp.Indent != -1380 || gp.Alignment() != AlignJustify || !gp.UseGrid() || gp.LineSpacingKind() != LineSpacingPercent {
		t.Errorf("ParaShape accessors: %+v", gp)
	}
	gp.SetAlignment(AlignCenter)
	if gp.Alignment() != AlignCenter || !gp.UseGrid() {
		t.Errorf("SetAlignment() broke other bits: %+v", gp)
	}

	s := Style{Name: "문제", EnglishName: "Question", LangID: 0x412, ParaShapeID: 2, CharShapeID: 5, Rest: []byte{}}
	gs, err := DecodeStyle(s.Encode())
	if err != nil {
		t.Fatalf("DecodeStyle() error = %v", err)
	}
	if diff := cmp.Diff(s, gs); diff != "" {
		t.Errorf("Style mismatch (-want +got):\n%s", diff)
	}
	// name length pointing past the payload
	broken := s.Encode()
	broken[0] = 200
	if _, err := DecodeStyle(broken); !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("DecodeStyle(overflow) error = %v", err)
	}
}

func TestSkeleton(t *testing.T) {
	for _, compressed := range []bool{true, false} {
		sk := DefaultSkeleton()
		sk.Compressed = compressed
		sk.Paragraphs = []string{"first", "second"}
		img, err := sk.Build()
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		doc, err := Parse(img)
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if doc.Header.Compressed() != compressed {
			t.Errorf("Compressed() = %v, want %v", doc.Header.Compressed(), compressed)
		}
		di, err := doc.DocInfo()
		if err != nil {
			t.Fatalf("DocInfo() error = %v", err)
		}
		var names []string
		for _, s := range di.Styles {
			names = append(names, s.Name)
		}
		if diff := cmp.Diff([]string{"바탕글", "본문", "문제", "지문"}, names); diff != "" {
			t.Errorf("styles mismatch (-want +got):\n%s", diff)
		}
		st := di.Styles[3]
		face, ok := di.Face(0, di.CharShapes[st.CharShapeID].FaceIDs[0])
		if !ok || face != "휴먼명조" {
			t.Errorf("Face() = %q, %v, want 휴먼명조", face, ok)
		}
		if di.IDMappings[IDStyle] != 4 || len(di.FaceNames) != di.IDMappings.FaceCount() {
			t.Errorf("ID_MAPPINGS inconsistent: %v, %d faces", di.IDMappings, len(di.FaceNames))
		}

		if got := doc.Sections(); len(got) != 1 || got[0] != "BodyText/Section0" {
			t.Fatalf("Sections() = %v", got)
		}
		sec, err := doc.Stream(doc.Sections()[0])
		if err != nil {
			t.Fatal(err)
		}
		recs, err := ParseRecords(sec)
		if err != nil {
			t.Fatal(err)
		}
		paras, err := Paragraphs(recs)
		if err != nil {
			t.Fatalf("Paragraphs() error = %v", err)
		}
		if len(paras) != 3 {
			t.Fatalf("Paragraphs() returned %d, want 3", len(paras))
		}
		if paras[1].Text() != "first" || paras[2].Text() != "second" || paras[0].Text() != "" {
			t.Errorf("paragraph texts: %q %q %q", paras[0].Text(), paras[1].Text(), paras[2].Text())
		}
		var cols int
		for _, r := range paras[0].Records {
			if r.Tag == TagCtrlHeader {
				if n, ok := ColumnCount(r.Data); ok {
					cols = n
				}
			}
		}
		if cols != 2 {
			t.Errorf("ColumnCount() = %d, want 2", cols)
		}
	}
}

func TestSniff(t *testing.T) {
	dir := t.TempDir()
	img, err := DefaultTemplate()
	if err != nil {
		t.Fatal(err)
	}
	good := filepath.Join(dir, "t.hwp")
	bad := filepath.Join(dir, "t.txt")
	if err := os.WriteFile(good, img, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("plain"), 0644); err != nil {
		t.Fatal(err)
	}
	if ok, err := Sniff(good); err != nil || !ok {
		t.Errorf("Sniff(good) = %v, %v", ok, err)
	}
	if ok, err := Sniff(bad); err != nil || ok {
		t.Errorf("Sniff(bad) = %v, %v", ok, err)
	}
	if _, err := Sniff(filepath.Join(dir, "missing")); err == nil {
		t.Error("Sniff(missing) expected error")
	}
}
