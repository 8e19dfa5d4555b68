package library

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/osa030/pocketbox/internal/domain/track"
	"github.com/osa030/pocketbox/internal/infra/storage"
	zlog "github.com/rs/zerolog/log"
)

const writeTimeout = 10 * time.Second

type write struct {
	key  string
	data []byte
}

// persister applies document writes in submission order on its own goroutine.
// Failures are logged and never reported to the submitter.
type persister struct {
	store storage.Store

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []write
	pending int
	closed  bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

func newPersister(store storage.Store) *persister {
	p := &persister{
		store: store,
		wake:  make(chan struct{}, 1),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	go p.run()
	return p
}

// submit queues a write without waiting for it.
func (p *persister) submit(key string, data []byte) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		zlog.Warn().Msgf("library: dropping write after close: key=%s", key)
		return
	}
	p.queue = append(p.queue, write{key: key, data: data})
	p.pending++
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Flush blocks until every submitted write has been attempted.
func (p *persister) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.pending > 0 {
		p.cond.Wait()
	}
}

// Close drains the queue and stops the writer. Calling it twice is harmless.
func (p *persister) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.quit)
	<-p.done
}

func (p *persister) run() {
	defer close(p.done)
	for {
		select {
		case <-p.wake:
			p.drain()
		case <-p.quit:
			p.drain()
			return
		}
	}
}

func (p *persister) drain() {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		w := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.apply(w)

		p.mu.Lock()
		p.pending--
		p.cond.Broadcast()
		p.mu.Unlock()
	}
}

func (p *persister) apply(w write) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := p.store.Set(ctx, w.key, w.data); err != nil {
		zlog.Error().Msgf("library: failed to persist %s: %v", w.key, err)
		return
	}
	zlog.Debug().Msgf("library: persisted %s: bytes=%d", w.key, len(w.data))
}

// persistTracksLocked snapshots the persisted subset of the catalog.
// Must be called with lock held.
func (s *Store) persistTracksLocked() {
	subset := make([]track.Track, 0, len(s.tracks))
	for _, t := range s.tracks {
		if s.persisted(t) {
			subset = append(subset, t)
		}
	}
	data, err := json.Marshal(subset)
	if err != nil {
		zlog.Error().Msgf("library: failed to encode tracks: %v", err)
		return
	}
	s.persister.submit(storage.KeyTracks, data)
}

// persistPlaylistsLocked snapshots the playlists.
// Must be called with lock held.
func (s *Store) persistPlaylistsLocked() {
	data, err := json.Marshal(s.playlists)
	if err != nil {
		zlog.Error().Msgf("library: failed to encode playlists: %v", err)
		return
	}
	s.persister.submit(storage.KeyPlaylists, data)
}

// setFavoriteLocked records the favorite flag of a track that is not in the
// tracks document and snapshots the favorites.
// Must be called with lock held.
func (s *Store) setFavoriteLocked(id string, favorite bool) {
	if favorite {
		s.favorites[id] = true
	} else {
		delete(s.favorites, id)
	}

	ids := make([]string, 0, len(s.favorites))
	for id := range s.favorites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	data, err := json.Marshal(ids)
	if err != nil {
		zlog.Error().Msgf("library: failed to encode favorites: %v", err)
		return
	}
	s.persister.submit(storage.KeyFavorites, data)
}
