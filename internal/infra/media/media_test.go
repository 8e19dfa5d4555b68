package media

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, fs afero.Fs, files ...string) {
	t.Helper()
	for _, f := range files {
		require.NoError(t, afero.WriteFile(fs, f, []byte("not really audio"), 0o644))
	}
}

func TestDirScanner_RequiresPermission(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewDirScanner(fs, "/music")

	granted, err := s.Permission(context.Background())
	require.NoError(t, err)
	assert.False(t, granted)

	_, err = s.ListAudioAssets(context.Background(), 10)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestDirScanner_PermissionOutlivesScanner(t *testing.T) {
	fs := afero.NewMemMapFs()
	seed(t, fs, "/music/a.mp3")

	first := NewDirScanner(fs, "/music")
	granted, err := first.RequestPermission(context.Background())
	require.NoError(t, err)
	require.True(t, granted)

	// A new scanner over the same root sees the grant without prompting.
	second := NewDirScanner(fs, "/music")
	granted, err = second.Permission(context.Background())
	require.NoError(t, err)
	assert.True(t, granted)

	assets, err := second.ListAudioAssets(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, assets, 1)

	require.NoError(t, fs.RemoveAll("/music"))
	granted, err = second.Permission(context.Background())
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestDirScanner_DeniedWhenRootMissing(t *testing.T) {
	s := NewDirScanner(afero.NewMemMapFs(), "/nowhere")
	granted, err := s.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.False(t, granted)

	empty := NewDirScanner(afero.NewMemMapFs(), "")
	granted, err = empty.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestDirScanner_ListAudioAssets(t *testing.T) {
	fs := afero.NewMemMapFs()
	seed(t, fs,
		"/music/b/two.flac",
		"/music/a/one.MP3",
		"/music/a/cover.jpg",
		"/music/.hidden/three.mp3",
		"/music/notes.txt",
	)
	s := NewDirScanner(fs, "/music")

	granted, err := s.RequestPermission(context.Background())
	require.NoError(t, err)
	require.True(t, granted)

	assets, err := s.ListAudioAssets(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, assets, 2)

	assert.Equal(t, "/music/a/one.MP3", assets[0].URI)
	assert.Equal(t, "one.MP3", assets[0].Filename)
	assert.Equal(t, "/music/b/two.flac", assets[1].URI)
	assert.NotEmpty(t, assets[0].ID)
	assert.NotEqual(t, assets[0].ID, assets[1].ID)
	// Files without tags report empty metadata.
	assert.Empty(t, assets[0].Title)

	// Ids are stable across scans.
	again, err := s.ListAudioAssets(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, assets[0].ID, again[0].ID)

	limited, err := s.ListAudioAssets(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestPathPicker(t *testing.T) {
	p, err := PathPicker{Path: "/downloads/My Song.mp3"}.PickAudioFile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/downloads/My Song.mp3", p.URI)
	assert.Equal(t, "My Song.mp3", p.Name)

	_, err = PathPicker{}.PickAudioFile(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestImporter_CopyAndRemove(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/downloads/My Song!.mp3", []byte("abc"), 0o644))
	imp := NewImporter(fs, "/app/audio")

	dest, err := imp.Copy(context.Background(), Picked{URI: "/downloads/My Song!.mp3", Name: "My Song!.mp3"}, 1700000000000)
	require.NoError(t, err)
	assert.Equal(t, "/app/audio/1700000000000-My_Song_.mp3", dest)

	data, err := afero.ReadFile(fs, dest)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	// The source is left alone.
	exists, err := afero.Exists(fs, "/downloads/My Song!.mp3")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, imp.Remove(dest))
	exists, err = afero.Exists(fs, dest)
	require.NoError(t, err)
	assert.False(t, exists)

	assert.Error(t, imp.Remove(dest))
}

func TestImporter_CopyMissingSource(t *testing.T) {
	imp := NewImporter(afero.NewMemMapFs(), "/app/audio")
	_, err := imp.Copy(context.Background(), Picked{URI: "/nope.mp3", Name: "nope.mp3"}, 1)
	assert.Error(t, err)
}

func TestImporter_CopyCancelled(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a.mp3", []byte("abc"), 0o644))
	imp := NewImporter(fs, "/app/audio")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := imp.Copy(ctx, Picked{URI: "/a.mp3", Name: "a.mp3"}, 1)
	assert.Error(t, err)

	exists, err := afero.Exists(fs, "/app/audio/1-a.mp3")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"song.mp3":          "song.mp3",
		"My Song.mp3":       "My_Song.mp3",
		"../../etc/passwd":  "passwd",
		"":                  "audio",
		"  ":                "audio",
		"日本語.flac":          "flac",
		"a/b/c - d (e).ogg": "c_-_d_e_.ogg",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeName(in), "input %q", in)
	}
}

func TestTitleFromName(t *testing.T) {
	assert.Equal(t, "My Song", TitleFromName("My Song.mp3"))
	assert.Equal(t, "track", TitleFromName("/x/track.flac"))
}
