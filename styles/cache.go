package styles

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"time"

	"go.uber.org/zap"

	"exgen/hwp"
)

// Reader produces style directory of a template.
type Reader interface {
	Read(path string) (*Directory, error)
}

// FileReader reads template every time.
type FileReader struct{}

func (FileReader) Read(path string) (*Directory, error) {
	return ReadStyles(path)
}

// Cache keeps serialized directories keyed by template identity.
type Cache interface {
	LoadStyles(path string, modTime time.Time, size int64, sum string) ([]byte, bool, error)
	StoreStyles(path string, modTime time.Time, size int64, sum string, payload []byte) error
}

// CachedReader reuses directories of unchanged templates. Template is
// considered unchanged when its modification time, size and content hash are
// the same. Cache failures are logged and never fail the read.
type CachedReader struct {
	cache Cache
	log   *zap.Logger
}

func NewCachedReader(cache Cache, log *zap.Logger) *CachedReader {
	return &CachedReader{cache: cache, log: log.Named("styles")}
}

func (r *CachedReader) Read(path string) (*Directory, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, &Error{Path: path, Kind: ErrTemplateUnreadable, Err: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Kind: ErrTemplateUnreadable, Err: err}
	}
	h := sha256.Sum256(data)
	sum := hex.EncodeToString(h[:])

	payload, ok, err := r.cache.LoadStyles(path, fi.ModTime(), int64(len(data)), sum)
	if err != nil {
		r.log.Warn("Unable to query style cache", zap.String("template", path), zap.Error(err))
	}
	if ok {
		var d Directory
		derr := json.Unmarshal(payload, &d)
		if derr == nil {
			r.log.Debug("Style directory from cache", zap.String("template", path))
			return &d, nil
		}
		r.log.Warn("Ignoring damaged style cache entry", zap.String("template", path), zap.Error(derr))
	}

	doc, err := hwp.Parse(data)
	if err != nil {
		return nil, &Error{Path: path, Kind: ErrTemplateUnreadable, Err: err}
	}
	d, err := ReadStylesFrom(path, doc)
	if err != nil {
		return nil, err
	}
	if payload, err = json.Marshal(d); err == nil {
		err = r.cache.StoreStyles(path, fi.ModTime(), int64(len(data)), sum, payload)
	}
	if err != nil {
		r.log.Warn("Unable to update style cache", zap.String("template", path), zap.Error(err))
	}
	return d, nil
}
