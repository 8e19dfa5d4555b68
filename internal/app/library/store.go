// Package library provides the library store: the track catalog, playlists,
// imports and the playback session, persisted through a storage backend.
package library

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/osa030/pocketbox/internal/app/filter"
	"github.com/osa030/pocketbox/internal/app/playback"
	"github.com/osa030/pocketbox/internal/domain/playlist"
	"github.com/osa030/pocketbox/internal/domain/track"
	"github.com/osa030/pocketbox/internal/infra/audio"
	"github.com/osa030/pocketbox/internal/infra/media"
	"github.com/osa030/pocketbox/internal/infra/storage"
	zlog "github.com/rs/zerolog/log"
)

// Errors
var (
	ErrInvalidURL  = errors.New("url scheme not accepted")
	ErrProbeFailed = errors.New("failed to probe audio resource")
	ErrRejected    = errors.New("track rejected by import filter")
)

// DefaultAcceptedSchemes are the url prefixes accepted by ImportOnlineTrack.
var DefaultAcceptedSchemes = []string{"http://", "https://"}

// Config holds store configuration.
type Config struct {
	AcceptedSchemes     []string // URL prefixes accepted for online imports
	PersistOnlineTracks bool     // Save online tracks alongside imported files
	ScanLimit           int      // Maximum assets per media scan
	AutoAdvance         bool     // Play the next catalog track when one finishes
}

// Deps are the collaborators of the store. Scanner, Picker, Importer and Filters
// may be nil when the corresponding feature is unavailable.
type Deps struct {
	Storage  storage.Store
	Engine   audio.Engine
	Scanner  media.Scanner
	Picker   media.Picker
	Importer *media.Importer
	Filters  *filter.Chain
	Now      func() time.Time
}

// Store owns the catalog, the playlists and the playback session.
type Store struct {
	mu sync.RWMutex

	tracks    []track.Track
	playlists []playlist.Playlist
	favorites map[string]bool // Favorites of tracks outside the tracks document

	config   Config
	storage  storage.Store
	engine   audio.Engine
	scanner  media.Scanner
	picker   media.Picker
	importer *media.Importer
	filters  *filter.Chain
	player   *playback.Controller
	ids      *track.IDGenerator
	now      func() time.Time

	persister *persister
	loading   atomic.Int32
}

// New creates a store. Call Init to load persisted state.
func New(config Config, deps Deps) *Store {
	if len(config.AcceptedSchemes) == 0 {
		config.AcceptedSchemes = DefaultAcceptedSchemes
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	s := &Store{
		tracks:    make([]track.Track, 0),
		playlists: make([]playlist.Playlist, 0),
		favorites: make(map[string]bool),
		config:    config,
		storage:   deps.Storage,
		engine:    deps.Engine,
		scanner:   deps.Scanner,
		picker:    deps.Picker,
		importer:  deps.Importer,
		filters:   deps.Filters,
		player:    playback.NewController(deps.Engine),
		ids:       track.NewIDGenerator(now),
		now:       now,
		persister: newPersister(deps.Storage),
	}
	s.player.SetOnFinished(s.onTrackFinished)
	return s
}

// Init loads the persisted playlists and the catalog.
func (s *Store) Init(ctx context.Context) {
	s.LoadPlaylists(ctx)
	s.LoadTracks(ctx)
}

// Player returns the playback controller owned by the store.
func (s *Store) Player() *playback.Controller {
	return s.player
}

// IsLoading reports whether a load or import is in progress.
func (s *Store) IsLoading() bool {
	return s.loading.Load() > 0
}

// Flush waits until every pending write has reached the storage backend.
func (s *Store) Flush() {
	s.persister.Flush()
}

// Close stops playback and drains pending writes. The storage backend is
// owned by the caller.
func (s *Store) Close() {
	s.player.Close()
	s.persister.Close()
	zlog.Info().Msg("library: closed")
}

func (s *Store) beginLoading() func() {
	s.loading.Add(1)
	return func() { s.loading.Add(-1) }
}

// acceptsURL reports whether url starts with an accepted scheme.
func (s *Store) acceptsURL(url string) bool {
	lower := strings.ToLower(strings.TrimSpace(url))
	for _, scheme := range s.config.AcceptedSchemes {
		if scheme != "" && strings.HasPrefix(lower, strings.ToLower(scheme)) {
			return true
		}
	}
	return false
}

// persisted reports whether t belongs in the persisted tracks document.
func (s *Store) persisted(t track.Track) bool {
	if t.IsLocal {
		return true
	}
	return s.config.PersistOnlineTracks && t.Provenance() == track.ProvenanceOnline
}

// indexOfTrackLocked returns the catalog index of id, or -1.
func (s *Store) indexOfTrackLocked(id string) int {
	for i := range s.tracks {
		if s.tracks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) indexOfPlaylistLocked(id string) int {
	for i := range s.playlists {
		if s.playlists[i].ID == id {
			return i
		}
	}
	return -1
}
