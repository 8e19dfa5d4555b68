package media

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// ErrPermissionDenied is returned when listing assets without a granted permission.
var ErrPermissionDenied = errors.New("media library permission denied")

// Asset is one audio item reported by the device media library.
type Asset struct {
	ID         string // Opaque, stable per file
	URI        string
	Filename   string
	DurationMs int64 // 0 when the provider does not know
	Title      string
	Artist     string
	Album      string
}

// Scanner is the permission-gated device media library.
type Scanner interface {
	// Permission reports the current grant without prompting.
	Permission(ctx context.Context) (bool, error)
	// RequestPermission prompts for access and reports the outcome.
	RequestPermission(ctx context.Context) (bool, error)
	// ListAudioAssets returns at most limit assets.
	ListAudioAssets(ctx context.Context, limit int) ([]Asset, error)
}

// audioExtensions lists the file types the scanner reports.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".wav":  true,
	".ogg":  true,
	".oga":  true,
	".m4a":  true,
}

// DirScanner treats a directory tree as the device media library.
// Permission is granted while the directory exists and can be listed, so a
// grant outlives the process that requested it.
type DirScanner struct {
	fs   afero.Fs
	root string
}

// NewDirScanner creates a scanner over root.
func NewDirScanner(fs afero.Fs, root string) *DirScanner {
	return &DirScanner{fs: fs, root: root}
}

// Permission implements Scanner.
func (s *DirScanner) Permission(ctx context.Context) (bool, error) {
	return s.accessible()
}

// RequestPermission implements Scanner. There is nobody to prompt, so the
// outcome is the current state of the directory.
func (s *DirScanner) RequestPermission(ctx context.Context) (bool, error) {
	ok, err := s.accessible()
	if err != nil {
		return false, err
	}
	if !ok {
		zlog.Warn().Msgf("media: library unavailable: root=%q", s.root)
	}
	return ok, nil
}

// accessible reports whether root is a directory that can be listed.
func (s *DirScanner) accessible() (bool, error) {
	if s.root == "" {
		return false, nil
	}
	ok, err := afero.DirExists(s.fs, s.root)
	if err != nil {
		return false, errors.Wrapf(err, "failed to stat %s", s.root)
	}
	if !ok {
		return false, nil
	}
	if _, err := afero.ReadDir(s.fs, s.root); err != nil {
		zlog.Warn().Msgf("media: cannot list %s: %v", s.root, err)
		return false, nil
	}
	return true, nil
}

// ListAudioAssets implements Scanner. Assets are ordered by path.
func (s *DirScanner) ListAudioAssets(ctx context.Context, limit int) ([]Asset, error) {
	granted, err := s.Permission(ctx)
	if err != nil {
		return nil, err
	}
	if !granted {
		return nil, ErrPermissionDenied
	}

	var paths []string
	err = afero.Walk(s.fs, s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			zlog.Debug().Msgf("media: skipping %s: %v", path, err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if info.IsDir() {
			if path != s.root && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if audioExtensions[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to scan %s", s.root)
	}

	sort.Strings(paths)
	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}

	assets := make([]Asset, 0, len(paths))
	for _, p := range paths {
		a := Asset{
			ID:       assetID(p),
			URI:      p,
			Filename: filepath.Base(p),
		}
		if tags, err := ReadTags(s.fs, p); err == nil {
			a.Title = tags.Title
			a.Artist = tags.Artist
			a.Album = tags.Album
		} else {
			zlog.Debug().Msgf("media: no tags for %s: %v", p, err)
		}
		assets = append(assets, a)
	}

	zlog.Info().Msgf("media: scanned %s: assets=%d", s.root, len(assets))
	return assets, nil
}

// assetID derives an opaque, stable id from the file path.
func assetID(path string) string {
	return strconv.FormatUint(xxhash.Sum64String(path), 16)
}
