package library

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/osa030/pocketbox/internal/app/filter"
	"github.com/osa030/pocketbox/internal/domain/track"
	"github.com/osa030/pocketbox/internal/infra/media"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ImportAudioFile(t *testing.T) {
	f := newFixture(t, withPicker(media.PathPicker{Path: "/downloads/My Song.mp3"}))
	require.NoError(t, afero.WriteFile(f.fs, "/downloads/My Song.mp3", []byte("x"), 0o644))
	f.engine.SetDuration("/data/audio/1700000000000-My_Song.mp3", 215000)

	res := f.store.ImportAudioFile(context.Background())
	require.Equal(t, ImportOK, res.Status, "err: %v", res.Err)

	assert.Equal(t, "local-1700000000000", res.Track.ID)
	assert.Equal(t, "/data/audio/1700000000000-My_Song.mp3", res.Track.URI)
	assert.Equal(t, "My Song", res.Track.Title)
	assert.Equal(t, track.UnknownArtist, res.Track.Artist)
	assert.Equal(t, int64(215000), res.Track.Duration)
	assert.True(t, res.Track.IsLocal)

	exists, err := afero.Exists(f.fs, res.Track.URI)
	require.NoError(t, err)
	assert.True(t, exists)

	assert.Equal(t, []string{res.Track.ID}, ids(f.store.Tracks()))
	assert.Equal(t, []string{res.Track.ID}, ids(f.persistedTracks(t)))
	assert.False(t, f.store.IsLoading())
	// The probe handle is released.
	assert.Equal(t, 0, f.engine.LoadedCount())
}

func TestStore_ImportAudioFile_ProbeFailureKeepsTrack(t *testing.T) {
	f := newFixture(t, withPicker(media.PathPicker{Path: "/downloads/song.mp3"}))
	require.NoError(t, afero.WriteFile(f.fs, "/downloads/song.mp3", []byte("x"), 0o644))
	f.engine.FailOn("/data/audio/1700000000000-song.mp3", errors.New("unsupported codec"))

	res := f.store.ImportAudioFile(context.Background())
	require.True(t, res.OK())

	got, ok := f.store.Track(res.Track.ID)
	require.True(t, ok)
	assert.Equal(t, int64(0), got.Duration)
	assert.True(t, got.IsLocal)
	assert.False(t, f.store.IsLoading())
}

func TestStore_ImportAudioFile_Cancelled(t *testing.T) {
	f := newFixture(t, withPicker(media.PathPicker{}))

	res := f.store.ImportAudioFile(context.Background())
	assert.Equal(t, ImportCancelled, res.Status)
	assert.ErrorIs(t, res.Err, media.ErrCancelled)
	assert.Empty(t, f.store.Tracks())
	assert.False(t, f.store.IsLoading())
}

func TestStore_ImportAudioFile_Failures(t *testing.T) {
	tests := []struct {
		name   string
		picker media.Picker
	}{
		{name: "no picker", picker: nil},
		{name: "picker error", picker: media.PickerFunc(func(ctx context.Context) (media.Picked, error) {
			return media.Picked{}, errors.New("picker crashed")
		})},
		{name: "missing source", picker: media.PathPicker{Path: "/downloads/missing.mp3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, withPicker(tt.picker))

			res := f.store.ImportAudioFile(context.Background())
			assert.Equal(t, ImportFailed, res.Status)
			assert.Error(t, res.Err)
			assert.Empty(t, f.store.Tracks())
			assert.False(t, f.store.IsLoading())
		})
	}
}

func TestStore_ImportOnlineTrack(t *testing.T) {
	f := newFixture(t)
	f.engine.SetDuration("https://example.com/song.mp3", 99000)

	res := f.store.ImportOnlineTrack(context.Background(), " https://example.com/song.mp3 ", "Song", "", "")
	require.Equal(t, ImportOK, res.Status)

	assert.Equal(t, "online-1700000000000", res.Track.ID)
	assert.Equal(t, "https://example.com/song.mp3", res.Track.URI)
	assert.Equal(t, "Song", res.Track.Title)
	assert.Equal(t, track.UnknownArtist, res.Track.Artist)
	assert.Equal(t, track.UnknownAlbum, res.Track.Album)
	assert.Equal(t, int64(99000), res.Track.Duration)
	assert.False(t, res.Track.IsLocal)
	assert.Equal(t, track.ProvenanceOnline, res.Track.Provenance())

	assert.Equal(t, []string{res.Track.ID}, ids(f.persistedTracks(t)))
	assert.Equal(t, 0, f.engine.LoadedCount())
}

func TestStore_ImportOnlineTrack_InvalidURL(t *testing.T) {
	f := newFixture(t)

	for _, url := range []string{"", "ftp://example.com/a.mp3", "example.com/a.mp3", "file:///tmp/a.mp3"} {
		res := f.store.ImportOnlineTrack(context.Background(), url, "", "", "")
		assert.Equal(t, ImportInvalidURL, res.Status, "url %q", url)
		assert.ErrorIs(t, res.Err, ErrInvalidURL)
	}
	assert.Empty(t, f.store.Tracks())
	assert.Empty(t, f.engine.Handles())
}

func TestStore_ImportOnlineTrack_CustomSchemes(t *testing.T) {
	f := newFixture(t, withConfig(func(c *Config) { c.AcceptedSchemes = []string{"rtsp://"} }))

	assert.Equal(t, ImportInvalidURL, f.store.ImportOnlineTrack(context.Background(), "https://example.com/a.mp3", "", "", "").Status)
	assert.Equal(t, ImportOK, f.store.ImportOnlineTrack(context.Background(), "RTSP://example.com/live", "", "", "").Status)
}

func TestStore_ImportOnlineTrack_ProbeFailure(t *testing.T) {
	f := newFixture(t)
	f.engine.FailOn("https://example.com/broken.mp3", errors.New("404"))

	res := f.store.ImportOnlineTrack(context.Background(), "https://example.com/broken.mp3", "", "", "")
	assert.Equal(t, ImportProbeFailed, res.Status)
	assert.ErrorIs(t, res.Err, ErrProbeFailed)
	assert.Empty(t, f.store.Tracks())
	assert.False(t, f.store.IsLoading())
	assert.Nil(t, f.persistedTracks(t))
}

func TestStore_ImportOnlineTrack_RejectedByFilter(t *testing.T) {
	chain, err := filter.Build(map[string]map[string]any{
		"duration_limit_filter": {"min_seconds": 60},
	})
	require.NoError(t, err)
	f := newFixture(t, withFilters(chain))
	f.engine.SetDuration("https://example.com/jingle.mp3", 4000)

	res := f.store.ImportOnlineTrack(context.Background(), "https://example.com/jingle.mp3", "Jingle", "", "")
	assert.Equal(t, ImportRejected, res.Status)
	assert.Equal(t, filter.CodeDurationLimit, res.Code)
	assert.ErrorIs(t, res.Err, ErrRejected)
	assert.Empty(t, f.store.Tracks())

	res = f.store.ImportOnlineTrack(context.Background(), "https://example.com/song.mp3", "Song", "", "")
	assert.Equal(t, ImportOK, res.Status)
}

func TestStore_ImportOnlineTrack_RejectedDuplicate(t *testing.T) {
	chain, err := filter.Build(map[string]map[string]any{"duplicate_track_filter": nil})
	require.NoError(t, err)
	f := newFixture(t, withFilters(chain))

	first := f.store.ImportOnlineTrack(context.Background(), "https://example.com/a.mp3", "Bohemian Rhapsody", "Queen", "")
	require.Equal(t, ImportOK, first.Status)

	res := f.store.ImportOnlineTrack(context.Background(), "https://example.com/b.mp3", "Bohemian Rhapsody - 2011 Remaster", "Queen", "")
	assert.Equal(t, ImportRejected, res.Status)
	assert.Equal(t, filter.CodeDuplicateTrack, res.Code)

	cover := f.store.ImportOnlineTrack(context.Background(), "https://example.com/c.mp3", "Bohemian Rhapsody", "Panic! at the Disco", "")
	assert.Equal(t, ImportOK, cover.Status)
	assert.Len(t, f.store.Tracks(), 2)
}

func TestStore_ImportAudioFile_DuplicateFilterIgnoresUnknownArtist(t *testing.T) {
	chain, err := filter.Build(map[string]map[string]any{"duplicate_track_filter": nil})
	require.NoError(t, err)
	f := newFixture(t, withFilters(chain), withPicker(media.PathPicker{Path: "/downloads/Yesterday.mp3"}))
	require.NoError(t, afero.WriteFile(f.fs, "/downloads/Yesterday.mp3", []byte("x"), 0o644))

	existing := track.New(track.Fields{ID: "online-1", URI: "https://example.com/y.mp3", Title: "Yesterday (Remastered 2009)", Artist: "Unknown Artist"})
	f.seedTracks(t, existing)

	// Unknown artists never count as the same artist.
	res := f.store.ImportAudioFile(context.Background())
	require.Equal(t, ImportOK, res.Status, "err: %v", res.Err)
	assert.Len(t, f.store.Tracks(), 2)
}

func TestStore_ImportAudioFile_Rejected(t *testing.T) {
	chain, err := filter.Build(map[string]map[string]any{
		"duration_limit_filter": {"min_seconds": 60},
	})
	require.NoError(t, err)
	f := newFixture(t, withFilters(chain), withPicker(media.PathPicker{Path: "/downloads/beep.mp3"}))
	require.NoError(t, afero.WriteFile(f.fs, "/downloads/beep.mp3", []byte("x"), 0o644))
	f.engine.SetDuration("/data/audio/1700000000000-beep.mp3", 1000)

	res := f.store.ImportAudioFile(context.Background())
	assert.Equal(t, ImportRejected, res.Status)
	assert.Equal(t, filter.CodeDurationLimit, res.Code)
	assert.Empty(t, f.store.Tracks())

	exists, err := afero.Exists(f.fs, "/data/audio/1700000000000-beep.mp3")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.False(t, f.store.IsLoading())
}

func TestImportStatus_String(t *testing.T) {
	assert.Equal(t, "ok", ImportOK.String())
	assert.Equal(t, "probe_failed", ImportProbeFailed.String())
	assert.Equal(t, "rejected", ImportRejected.String())
	assert.Equal(t, "unknown", ImportStatus(99).String())
}
