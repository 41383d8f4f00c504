package dumputil

import (
	"errors"
	"fmt"
	"os"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"exgen/hwp"
	"exgen/utils/debug"
)

// RecordStreams returns DocInfo followed by sections in numeric order.
func RecordStreams(doc *hwp.Document) []string {
	return append([]string{hwp.StreamDocInfo}, doc.Sections()...)
}

// DumpRecords returns record tree of all record streams.
func DumpRecords(doc *hwp.Document) (string, error) {
	tw := debug.NewTreeWriter()
	tw.Line(0, "HWP %s, properties 0x%08X, compressed %t", doc.Header.VersionString(), doc.Header.Properties, doc.Header.Compressed())
	for _, e := range doc.Container.Entries() {
		if e.Storage {
			tw.Line(1, "storage %s", e.Path)
		} else {
			tw.Line(1, "stream %s (%d bytes)", e.Path, e.Size)
		}
	}
	for _, name := range RecordStreams(doc) {
		data, err := doc.Stream(name)
		if err != nil {
			return "", fmt.Errorf("stream %s: %w", name, err)
		}
		recs, err := hwp.ParseRecords(data)
		if err != nil {
			return "", fmt.Errorf("stream %s: %w", name, err)
		}
		tw.Line(0, "")
		tw.Line(0, "%s: %d records, %d bytes", name, len(recs), len(data))
		for i, r := range recs {
			depth := int(r.Level) + 1
			tw.Line(depth, "[%d] %s level %d @%d size %d", i, hwp.TagName(r.Tag), r.Level, r.Offset, len(r.Data))
			switch r.Tag {
			case hwp.TagParaHeader:
				if h, err := hwp.DecodeParaHeader(r.Data); err == nil {
					tw.Line(depth+1, "style %d, para shape %d, chars %d", h.StyleID, h.ParaShapeID, h.Chars&0x7FFFFFFF)
				}
			case hwp.TagParaText:
				tw.TextBlock(depth+1, "text", hwp.DecodeParaText(r.Data))
			case hwp.TagStyle:
				if s, err := hwp.DecodeStyle(r.Data); err == nil {
					tw.TextBlock(depth+1, "name", s.Name)
				}
			}
		}
	}
	return tw.String(), nil
}

// DumpParagraphs lists top level paragraphs of every section with their
// style names.
func DumpParagraphs(doc *hwp.Document) (string, error) {
	di, err := doc.DocInfo()
	if err != nil {
		return "", err
	}
	tw := debug.NewTreeWriter()
	for _, name := range doc.Sections() {
		data, err := doc.Stream(name)
		if err != nil {
			return "", fmt.Errorf("stream %s: %w", name, err)
		}
		recs, err := hwp.ParseRecords(data)
		if err != nil {
			return "", fmt.Errorf("stream %s: %w", name, err)
		}
		paras, err := hwp.Paragraphs(recs)
		if err != nil {
			return "", fmt.Errorf("stream %s: %w", name, err)
		}
		tw.Line(0, "%s: %d paragraphs", name, len(paras))
		for i, p := range paras {
			style := "?"
			if id := int(p.Header.StyleID); id < len(di.Styles) {
				style = di.Styles[id].Name
			}
			tw.Line(1, "[%d] style %d (%s), %d records", i, p.Header.StyleID, style, len(p.Records))
			tw.TextBlock(2, "text", p.Text())
		}
	}
	return tw.String(), nil
}

const recordSchema = `
CREATE TABLE records (
	stream TEXT NOT NULL,
	idx INTEGER NOT NULL,
	tag INTEGER NOT NULL,
	name TEXT NOT NULL,
	level INTEGER NOT NULL,
	offset INTEGER NOT NULL,
	data BLOB,
	PRIMARY KEY (stream, idx)
);
`

// WriteDatabase stores all records into <stem>.sqlite so they could be
// queried with regular tools.
func WriteDatabase(doc *hwp.Document, inPath, outDir string, overwrite bool) (err error) {
	outPath, err := outputPath(inPath, outDir, ".sqlite", overwrite)
	if err != nil {
		return err
	}
	if err := os.Remove(outPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	conn, err := sqlite.OpenConn(outPath, sqlite.OpenReadWrite, sqlite.OpenCreate)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, conn.Close()) }()

	if err := sqlitex.ExecuteScript(conn, recordSchema, nil); err != nil {
		return err
	}
	if err := insertRecords(conn, doc); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", outPath)
	return nil
}

func insertRecords(conn *sqlite.Conn, doc *hwp.Document) (err error) {
	defer sqlitex.Save(conn)(&err)

	for _, name := range RecordStreams(doc) {
		data, err := doc.Stream(name)
		if err != nil {
			return fmt.Errorf("stream %s: %w", name, err)
		}
		recs, err := hwp.ParseRecords(data)
		if err != nil {
			return fmt.Errorf("stream %s: %w", name, err)
		}
		for i, r := range recs {
			err := sqlitex.Execute(conn, `INSERT INTO records (stream, idx, tag, name, level, offset, data) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				&sqlitex.ExecOptions{Args: []any{name, i, int(r.Tag), hwp.TagName(r.Tag), int(r.Level), r.Offset, r.Data}})
			if err != nil {
				return fmt.Errorf("stream %s record %d: %w", name, i, err)
			}
		}
	}
	return nil
}
