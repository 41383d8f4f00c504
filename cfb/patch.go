package cfb

import (
	"bytes"
	"fmt"
	"os"

	"github.com/google/renameio/v2"
)

// Patch is new content of an existing stream.
type Patch struct {
	Stream string
	Data   []byte
}

// PatchStream overwrites content of an existing stream in place. The new data
// must have exactly the size of the stream: only sectors occupied by the
// stream are written, directory, allocation tables and every other byte of
// the file stay untouched.
func PatchStream(name, stream string, data []byte) error {
	return PatchStreams(name, Patch{Stream: stream, Data: data})
}

// PatchStreams overwrites several streams at once. Every patch is checked
// before anything is written and the file is replaced atomically, so either
// all streams change or none does.
func PatchStreams(name string, patches ...Patch) error {
	fi, err := os.Stat(name)
	if err != nil {
		return err
	}
	img, err := os.ReadFile(name)
	if err != nil {
		return fmt.Errorf("unable to read compound file: %w", err)
	}
	f, err := Parse(img)
	if err != nil {
		return err
	}

	out := bytes.Clone(img)
	for _, p := range patches {
		ext, err := f.Extents(p.Stream)
		if err != nil {
			return err
		}
		var total int
		for _, x := range ext {
			total += x.Length
		}
		if total != len(p.Data) {
			return fmt.Errorf("stream %s size mismatch: have %d bytes, got %d", p.Stream, total, len(p.Data))
		}
		pos := 0
		for _, x := range ext {
			if x.Offset+int64(x.Length) > int64(len(out)) {
				return fmt.Errorf("%w: stream %s runs beyond end of file", ErrCorrupt, p.Stream)
			}
			copy(out[x.Offset:], p.Data[pos:pos+x.Length])
			pos += x.Length
		}
	}
	if err := renameio.WriteFile(name, out, fi.Mode().Perm()); err != nil {
		return fmt.Errorf("unable to write compound file: %w", err)
	}
	return nil
}
