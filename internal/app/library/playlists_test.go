package library

import (
	"context"
	"testing"
	"time"

	"github.com/osa030/pocketbox/internal/infra/storage"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreatePlaylist(t *testing.T) {
	f := newFixture(t)

	p, ok := f.store.CreatePlaylist("Road Trip")
	require.True(t, ok)
	assert.Equal(t, "Road Trip", p.Name)
	assert.Empty(t, p.Tracks)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, time.UnixMilli(testEpoch).UnixMilli(), p.CreatedAt)

	persisted := f.persistedPlaylists(t)
	require.Len(t, persisted, 1)
	assert.Equal(t, p, persisted[0])

	other, ok := f.store.CreatePlaylist("Road Trip")
	require.True(t, ok)
	assert.NotEqual(t, p.ID, other.ID)
}

func TestStore_CreatePlaylist_RejectsEmptyName(t *testing.T) {
	f := newFixture(t)

	for _, name := range []string{"", "   ", "\t\n"} {
		_, ok := f.store.CreatePlaylist(name)
		assert.False(t, ok, "name %q", name)
	}
	assert.Empty(t, f.store.Playlists())
	assert.Nil(t, f.persistedPlaylists(t))

	p, ok := f.store.CreatePlaylist("  Chill  ")
	require.True(t, ok)
	assert.Equal(t, "Chill", p.Name)
}

func TestStore_AddTrackToPlaylist_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.seedTracks(t, localTrack("1", "A"))
	p, _ := f.store.CreatePlaylist("Mix")

	assert.True(t, f.store.AddTrackToPlaylist(p.ID, "local-1"))
	assert.False(t, f.store.AddTrackToPlaylist(p.ID, "local-1"))

	got, ok := f.store.Playlist(p.ID)
	require.True(t, ok)
	assert.Equal(t, []string{"local-1"}, got.Tracks)

	persisted := f.persistedPlaylists(t)
	require.Len(t, persisted, 1)
	assert.Equal(t, []string{"local-1"}, persisted[0].Tracks)
}

func TestStore_PlaylistEdits(t *testing.T) {
	f := newFixture(t)
	f.seedTracks(t, localTrack("1", "A"), localTrack("2", "B"))
	p, _ := f.store.CreatePlaylist("Mix")

	f.store.AddTrackToPlaylist(p.ID, "local-1")
	f.store.AddTrackToPlaylist(p.ID, "local-2")

	assert.True(t, f.store.RenamePlaylist(p.ID, " Party "))
	assert.False(t, f.store.RenamePlaylist(p.ID, ""))
	assert.False(t, f.store.RenamePlaylist("missing", "x"))

	assert.True(t, f.store.RemoveTrackFromPlaylist(p.ID, "local-1"))
	assert.False(t, f.store.RemoveTrackFromPlaylist(p.ID, "local-1"))
	assert.False(t, f.store.AddTrackToPlaylist("missing", "local-1"))

	got, _ := f.store.Playlist(p.ID)
	assert.Equal(t, "Party", got.Name)
	assert.Equal(t, []string{"local-2"}, got.Tracks)

	persisted := f.persistedPlaylists(t)
	require.Len(t, persisted, 1)
	assert.Equal(t, got, persisted[0])

	assert.True(t, f.store.DeletePlaylist(p.ID))
	assert.False(t, f.store.DeletePlaylist(p.ID))
	assert.Empty(t, f.store.Playlists())
	assert.Empty(t, f.persistedPlaylists(t))
}

func TestStore_PlaylistsAreCopies(t *testing.T) {
	f := newFixture(t)
	p, _ := f.store.CreatePlaylist("Mix")
	f.store.AddTrackToPlaylist(p.ID, "local-1")

	got, _ := f.store.Playlist(p.ID)
	got.Tracks[0] = "changed"
	got.Name = "changed"

	again, _ := f.store.Playlist(p.ID)
	assert.Equal(t, "Mix", again.Name)
	assert.Equal(t, []string{"local-1"}, again.Tracks)
}

func TestStore_PlaylistTracksSkipsDanglingIDs(t *testing.T) {
	f := newFixture(t)
	f.seedTracks(t, localTrack("1", "A"), localTrack("2", "B"))
	p, _ := f.store.CreatePlaylist("Mix")

	f.store.AddTrackToPlaylist(p.ID, "local-2")
	f.store.AddTrackToPlaylist(p.ID, "gone")
	f.store.AddTrackToPlaylist(p.ID, "local-1")

	assert.Equal(t, []string{"local-2", "local-1"}, ids(f.store.PlaylistTracks(p.ID)))
	assert.Empty(t, f.store.PlaylistTracks("missing"))
}

func TestStore_DeleteTrackCascades(t *testing.T) {
	f := newFixture(t)
	a := localTrack("1", "A")
	require.NoError(t, afero.WriteFile(f.fs, a.URI, []byte("x"), 0o644))
	f.seedTracks(t, a, localTrack("2", "B"))

	p1, _ := f.store.CreatePlaylist("One")
	p2, _ := f.store.CreatePlaylist("Two")
	f.store.AddTrackToPlaylist(p1.ID, "local-1")
	f.store.AddTrackToPlaylist(p1.ID, "local-2")
	f.store.AddTrackToPlaylist(p2.ID, "local-1")

	f.store.DeleteTrack(context.Background(), "local-1")

	_, ok := f.store.Track("local-1")
	assert.False(t, ok)
	for _, p := range f.store.Playlists() {
		assert.NotContains(t, p.Tracks, "local-1")
	}
	for _, p := range f.persistedPlaylists(t) {
		assert.NotContains(t, p.Tracks, "local-1")
	}
	assert.Equal(t, []string{"local-2"}, ids(f.persistedTracks(t)))

	exists, err := afero.Exists(f.fs, a.URI)
	require.NoError(t, err)
	assert.False(t, exists)

	// Unknown ids are ignored.
	f.store.DeleteTrack(context.Background(), "missing")
	assert.Len(t, f.store.Tracks(), 1)
}

func TestStore_DeleteTrackWithMissingFile(t *testing.T) {
	f := newFixture(t)
	f.seedTracks(t, localTrack("1", "A"))

	f.store.DeleteTrack(context.Background(), "local-1")
	assert.Empty(t, f.store.Tracks())
}

func TestStore_LoadPlaylists(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.docs.Set(context.Background(), storage.KeyPlaylists,
		[]byte(`[{"id":"p1","name":"Old","tracks":null,"createdAt":1},{"id":"p2","name":"New","tracks":["x"],"createdAt":2}]`)))

	f.store.LoadPlaylists(context.Background())

	playlists := f.store.Playlists()
	require.Len(t, playlists, 2)
	assert.NotNil(t, playlists[0].Tracks)
	assert.Empty(t, playlists[0].Tracks)
	assert.Equal(t, []string{"x"}, playlists[1].Tracks)

	// A corrupt document leaves the playlists alone.
	require.NoError(t, f.docs.Set(context.Background(), storage.KeyPlaylists, []byte(`nope`)))
	f.store.LoadPlaylists(context.Background())
	assert.Len(t, f.store.Playlists(), 2)
}
