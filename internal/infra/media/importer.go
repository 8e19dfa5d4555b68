package media

import (
	"context"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
)

// ErrCancelled is returned by a picker when the user backs out.
var ErrCancelled = errors.New("file selection cancelled")

// Picked is a file chosen by the user.
type Picked struct {
	URI  string // Source location
	Name string // Display file name including extension
}

// Picker lets the user choose an audio file.
type Picker interface {
	PickAudioFile(ctx context.Context) (Picked, error)
}

// PathPicker "picks" a path supplied up front, e.g. from a command-line argument.
type PathPicker struct {
	Path string
}

// PickAudioFile implements Picker. An empty path counts as cancellation.
func (p PathPicker) PickAudioFile(ctx context.Context) (Picked, error) {
	if strings.TrimSpace(p.Path) == "" {
		return Picked{}, ErrCancelled
	}
	return Picked{URI: p.Path, Name: filepath.Base(p.Path)}, nil
}

// PickerFunc adapts a function to Picker.
type PickerFunc func(ctx context.Context) (Picked, error)

// PickAudioFile implements Picker.
func (f PickerFunc) PickAudioFile(ctx context.Context) (Picked, error) {
	return f(ctx)
}

// Importer copies picked files into the app-owned storage directory.
type Importer struct {
	fs  afero.Fs
	dir string
}

// NewImporter creates an importer writing into dir on fs.
func NewImporter(fs afero.Fs, dir string) *Importer {
	return &Importer{fs: fs, dir: dir}
}

// Fs returns the filesystem the importer works on.
func (i *Importer) Fs() afero.Fs {
	return i.fs
}

// Dir returns the storage directory.
func (i *Importer) Dir() string {
	return i.dir
}

// Copy copies the picked file into storage as "<stamp>-<name>" and returns the new path.
func (i *Importer) Copy(ctx context.Context, p Picked, stamp int64) (string, error) {
	if err := i.fs.MkdirAll(i.dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create %s", i.dir)
	}

	src, err := i.fs.Open(strings.TrimPrefix(p.URI, "file://"))
	if err != nil {
		return "", errors.Wrapf(err, "failed to open %s", p.URI)
	}
	defer src.Close()

	dest := filepath.Join(i.dir, strconv.FormatInt(stamp, 10)+"-"+sanitizeName(p.Name))
	dst, err := i.fs.Create(dest)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create %s", dest)
	}

	if _, err := io.Copy(dst, &ctxReader{ctx: ctx, r: src}); err != nil {
		dst.Close()
		_ = i.fs.Remove(dest)
		return "", errors.Wrapf(err, "failed to copy %s", p.URI)
	}
	if err := dst.Close(); err != nil {
		_ = i.fs.Remove(dest)
		return "", errors.Wrapf(err, "failed to finish %s", dest)
	}
	return dest, nil
}

// Remove deletes a previously imported file.
func (i *Importer) Remove(path string) error {
	if err := i.fs.Remove(strings.TrimPrefix(path, "file://")); err != nil {
		return errors.Wrapf(err, "failed to delete %s", path)
	}
	return nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeName keeps a file name safe for any filesystem.
func sanitizeName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "audio"
	}
	return name
}

// TitleFromName derives a display title from a file name.
func TitleFromName(name string) string {
	base := filepath.Base(name)
	return strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
}

// ctxReader stops a copy when the context is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
