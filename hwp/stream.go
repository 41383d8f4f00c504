package hwp

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// ErrDoesNotFit is returned when stream cannot be recompressed into the space
// it occupied.
var ErrDoesNotFit = errors.New("recompressed stream does not fit")

// Inflate decompresses raw deflate stream. Bytes after the final deflate
// block are ignored.
func Inflate(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to inflate stream: %w", err)
	}
	return out, nil
}

// Deflate compresses data as raw deflate stream.
func Deflate(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("unable to deflate stream: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("unable to deflate stream: %w", err)
	}
	return buf.Bytes(), nil
}

// DeflateSection compresses section stream and appends zero padding after
// the final block, so style references can later be rewritten in place even
// when recompressed stream grows slightly.
func DeflateSection(data []byte) ([]byte, error) {
	out, err := Deflate(data, 9)
	if err != nil {
		return nil, err
	}
	return append(out, make([]byte, 64+len(out)/50)...), nil
}

var recompressLevels = []int{flate.BestCompression, flate.DefaultCompression, 3, flate.BestSpeed, flate.NoCompression}

// DeflateExact compresses data so that result is exactly size bytes long:
// levels are tried from best to none, first result which fits is padded with
// zeros.
func DeflateExact(data []byte, size int) ([]byte, error) {
	shortest := -1
	for _, level := range recompressLevels {
		out, err := Deflate(data, level)
		if err != nil {
			return nil, err
		}
		if shortest < 0 || len(out) < shortest {
			shortest = len(out)
		}
		if len(out) <= size {
			if len(out) < size {
				out = append(out, make([]byte, size-len(out))...)
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrDoesNotFit, shortest, size)
}
