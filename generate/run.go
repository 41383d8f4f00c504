package generate

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"exgen/archive"
	"exgen/common"
	"exgen/exam"
	"exgen/layers"
	"exgen/native"
	"exgen/state"
	"exgen/styles"
)

// NewFromEnv builds generator from program environment.
func NewFromEnv(env *state.LocalEnv) (*Generator, error) {
	opts, err := OptionsFromConfig(env.Cfg)
	if err != nil {
		return nil, err
	}
	opts.Overwrite = env.Overwrite

	log := env.Log
	options := []Option{WithReport(env.Rpt)}
	if env.Journal != nil {
		options = append(options, WithJournal(env.Journal))
		if env.Cfg.Journal.CacheStyles {
			options = append(options, WithStyleReader(styles.NewCachedReader(env.Journal, log)))
		}
	}
	resolver := layers.NewResolver(env.Cfg.Layers.Store(), log)
	return New(resolver, native.New(log), opts, log, options...), nil
}

// Run is the action of generate command.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("generate")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	if src, err = filepath.Abs(src); err != nil {
		return err
	}

	// without destination output directory comes from profile or configuration
	dst := cmd.Args().Get(1)
	if len(dst) > 0 {
		if dst, err = filepath.Abs(dst); err != nil {
			return err
		}
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	env.NoDirs, env.Overwrite = cmd.Bool("nodirs"), cmd.Bool("overwrite")

	// Since zip "standard" does not define file name encoding we may need to
	// force archaic code page for old archives
	cp := cmd.String("force-zip-cp")
	if len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully converting all non UTF-8 file names in archives", zap.String("charset", n))
		}
	}

	tmpl := requestTemplate{preset: cmd.String("preset")}
	for _, name := range cmd.StringSlice("sheet") {
		s, err := common.ParseSheet(name)
		if err != nil {
			return err
		}
		tmpl.sheets = append(tmpl.sheets, s)
	}
	if tmpl.preset == "" && cmd.Bool("last") {
		if tmpl.preset, err = lastPreset(env); err != nil {
			return err
		}
		log.Info("Using last preset", zap.String("preset", tmpl.preset))
	}

	gen, err := NewFromEnv(env)
	if err != nil {
		return err
	}
	pool := NewPool(ctx, gen, env.Cfg.Generation.Workers)

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst), zap.String("preset", tmpl.preset))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	w := &walker{env: env, dst: dst, tmpl: tmpl, submit: pool.Go, log: log}
	perr := w.process(ctx, src)
	results, rerr := pool.Wait()
	summarize(results, log)
	if perr != nil {
		return perr
	}
	if rerr != nil {
		return fmt.Errorf("%d of %d requests failed: %w", countFailed(results), len(results), rerr)
	}
	return nil
}

func lastPreset(env *state.LocalEnv) (string, error) {
	if env.Journal == nil {
		return "", errors.New("last preset requested but journal is disabled")
	}
	preset, found, err := env.Journal.LastPreset()
	if err != nil {
		return "", err
	}
	if !found {
		return "", errors.New("journal has no successful runs")
	}
	return preset, nil
}

func summarize(results []*Result, log *zap.Logger) {
	for _, r := range results {
		for _, s := range r.Sheets {
			if s.Outcome == common.OutcomeDegraded {
				log.Warn("Sheet produced with problems", zap.Stringer("request", r.ID),
					zap.Stringer("sheet", s.Sheet), zap.String("output", s.Path), zap.Error(s.Err))
			}
		}
		if len(r.Warnings) > 0 {
			log.Info("Preset does not match template", zap.Stringer("request", r.ID),
				zap.String("preset", r.Preset), zap.Int("warnings", len(r.Warnings)))
		}
	}
}

func countFailed(results []*Result) int {
	n := 0
	for _, r := range results {
		if r.Outcome == common.OutcomeFailed {
			n++
		}
	}
	return n
}

// requestTemplate holds request data shared by all requests of a command.
type requestTemplate struct {
	preset string
	sheets []common.Sheet
}

// walker finds content documents and submits requests for them.
type walker struct {
	env    *state.LocalEnv
	dst    string
	tmpl   requestTemplate
	submit func(Request)
	log    *zap.Logger
}

// process determines input type (directory, archive, or single file) and
// processes accordingly. Path inside archive may follow archive name.
func (w *walker) process(ctx context.Context, src string) error {
	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exists - probably path in archive
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				// directory cannot have tail - it would be simple file
				return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if err := w.processDir(ctx, head); err != nil {
				return fmt.Errorf("unable to process directory: %w", err)
			}
			break
		}

		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		isArchive, err := isArchiveFile(head)
		if err != nil {
			return fmt.Errorf("unable to check archive type: %w", err)
		}
		if isArchive {
			// we need to look inside to see if path makes sense
			tail = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			if err := w.processArchive(ctx, head, filepath.ToSlash(tail), ""); err != nil {
				return fmt.Errorf("unable to process archive: %w", err)
			}
			break
		}

		content, enc, err := isContentFile(head)
		if err != nil {
			return fmt.Errorf("unable to check file type: %w", err)
		}
		if content && len(tail) == 0 {
			file, err := os.Open(head)
			if err != nil {
				return err
			}
			defer file.Close()
			if err := w.processContent(selectReader(file, enc), filepath.Base(head)); err != nil {
				return err
			}
			break
		}
		return fmt.Errorf("input was not recognized as exam content (%s)", head)
	}
	if len(head) == 0 {
		return fmt.Errorf("input source was not found (%s)", src)
	}
	return nil
}

// processDir walks directory tree finding content documents and archives.
func (w *walker) processDir(ctx context.Context, dir string) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			w.log.Debug("Nothing to process", zap.String("dir", dir))
		}
	}()

	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			w.log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))

		isArchive, err := isArchiveFile(path)
		if err != nil {
			w.log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if isArchive {
			if err := w.processArchive(ctx, path, "", filepath.Dir(rel)); err != nil {
				w.log.Error("Unable to process archive", zap.String("file", path), zap.Error(err))
			}
			return nil
		}

		content, enc, err := isContentFile(path)
		if err != nil {
			w.log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if !content {
			w.log.Debug("Skipping file, not recognized as content or archive", zap.String("file", path))
			return nil
		}
		count++

		file, err := os.Open(path)
		if err != nil {
			w.log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
			return nil
		}
		defer file.Close()

		if err := w.processContent(selectReader(file, enc), rel); err != nil {
			w.log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
		}
		return nil
	})
}

// processArchive walks content documents inside archive under "pathIn".
func (w *walker) processArchive(ctx context.Context, path, pathIn, pathOut string) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			w.log.Debug("Nothing to process", zap.String("archive", path))
		}
	}()

	skip := func(name, reason string) {
		w.log.Warn("Skipping file in archive", zap.String("archive", path), zap.String("path", name), zap.String("reason", reason))
	}
	return archive.Walk(ctx, path, archive.All(archive.Under(pathIn), archive.WithExt(ContentExt)), func(arc string, f *zip.File) error {
		content, enc, err := isContentInArchive(f)
		if err != nil {
			w.log.Warn("Skipping file in archive",
				zap.String("archive", arc), zap.String("path", f.FileHeader.Name), zap.Error(err))
			return nil
		}
		if !content {
			w.log.Debug("Skipping file, not recognized as content", zap.String("archive", arc), zap.String("file", f.FileHeader.Name))
			return nil
		}
		count++

		r, err := f.Open()
		if err != nil {
			w.log.Error("Unable to process file in archive",
				zap.String("archive", arc), zap.String("file", f.FileHeader.Name), zap.Error(err))
			return nil
		}
		defer r.Close()

		pathInArchive := f.FileHeader.Name
		if cp := w.env.CodePage; cp != nil && f.FileHeader.NonUTF8 {
			// forcing zip file name encoding
			if n, err := cp.NewDecoder().String(pathInArchive); err == nil {
				pathInArchive = n
			} else {
				n, _ = ianaindex.IANA.Name(cp)
				w.log.Warn("Unable to convert archive name from specified encoding",
					zap.String("charset", n), zap.String("path", pathInArchive), zap.Error(err))
			}
		}
		if err := w.processContent(selectReader(r, enc), filepath.Join(pathOut, filepath.FromSlash(pathInArchive))); err != nil {
			w.log.Error("Unable to process file in archive",
				zap.String("archive", arc), zap.String("file", f.FileHeader.Name), zap.Error(err))
		}
		return nil
	}, skip)
}

// processContent loads single content document and submits request for it.
// "src" is path of the document relative to processed directory or archive,
// or just base name when single file was requested.
func (w *walker) processContent(r io.Reader, src string) error {
	doc, err := exam.Load(r)
	if err != nil {
		return fmt.Errorf("unable to load content (%s): %w", src, err)
	}

	req := NewRequest(doc, src, w.tmpl.preset)
	req.Sheets = w.tmpl.sheets
	if w.dst != "" {
		req.OutputDir = w.dst
		if !w.env.NoDirs {
			req.OutputDir = filepath.Join(w.dst, filepath.Dir(src))
		}
	}
	w.submit(req)
	return nil
}
