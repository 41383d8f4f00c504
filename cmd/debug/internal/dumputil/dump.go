// Package dumputil provides shared output helpers for hwpdump debug tool.
// It operates on *hwp.Document and produces record dumps, stream ZIPs,
// paragraph listings and record databases.
package dumputil

import (
	"archive/zip"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"

	"exgen/hwp"
)

// DumpStreams writes every stream of the container into <stem>-streams.zip,
// record streams are inflated, binary data gets extension from its content.
func DumpStreams(doc *hwp.Document, inPath, outDir string, overwrite bool) (retErr error) {
	outPath, err := outputPath(inPath, outDir, "-streams.zip", overwrite)
	if err != nil {
		return err
	}
	if err := os.Remove(outPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer func() { retErr = errors.Join(retErr, f.Close()) }()

	zw := zip.NewWriter(f)
	defer func() { retErr = errors.Join(retErr, zw.Close()) }()

	written := 0
	for _, name := range doc.Container.Streams() {
		data, err := doc.Stream(name)
		if err != nil {
			return fmt.Errorf("stream %s: %w", name, err)
		}
		entryName := name
		if strings.HasPrefix(name, "BinData/") {
			if doc.Header.Compressed() {
				// embedded objects may be stored either way
				if inflated, err := hwp.Inflate(data); err == nil {
					data = inflated
				}
			}
			stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
			entryName = "BinData/" + SanitizeFileComponent(stem) + ExtFromFiletype(data)
		}
		w, err := zw.Create(entryName)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		written++
	}

	_, _ = fmt.Fprintf(os.Stderr, "streams: wrote %d file(s) into %s\n", written, outPath)
	return nil
}

// WriteOutput writes data to <stem><suffix> in either the input file's directory or outDir.
func WriteOutput(inPath, outDir, suffix string, data []byte, overwrite bool) error {
	outPath, err := outputPath(inPath, outDir, suffix, overwrite)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", outPath)
	return nil
}

func outputPath(inPath, outDir, suffix string, overwrite bool) (string, error) {
	base := filepath.Base(inPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	dir := filepath.Dir(inPath)
	if outDir != "" {
		dir = outDir
	}
	outPath := filepath.Join(dir, stem+suffix)

	if _, err := os.Stat(outPath); err == nil {
		if !overwrite {
			return "", fmt.Errorf("output file already exists: %s (use -overwrite)", outPath)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	return outPath, nil
}

// ExtFromFiletype detects the file extension from magic bytes.
func ExtFromFiletype(b []byte) string {
	kind, err := filetype.Match(b)
	if err == nil && kind != filetype.Unknown && kind.Extension != "" {
		return "." + kind.Extension
	}
	return ".bin"
}

// SanitizeFileComponent cleans a string for use in a filename.
func SanitizeFileComponent(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
