package audio

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// BeepConfig configures the beep engine.
type BeepConfig struct {
	SampleRate     int           // Output sample rate of the speaker
	StatusInterval time.Duration // How often loaded handles report status
	MaxRemoteBytes int64         // Upper bound on bytes fetched for a remote resource
}

// BeepEngine decodes local files and remote http(s) resources with beep and
// plays them through the system speaker.
type BeepEngine struct {
	fs         afero.Fs
	httpClient *http.Client
	config     BeepConfig

	speakerOnce sync.Once
	speakerErr  error
}

// NewBeepEngine creates a beep-backed engine reading local files from fs.
func NewBeepEngine(fs afero.Fs, cfg BeepConfig) *BeepEngine {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44100
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = 500 * time.Millisecond
	}
	if cfg.MaxRemoteBytes <= 0 {
		cfg.MaxRemoteBytes = 64 << 20
	}
	return &BeepEngine{
		fs:         fs,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		config:     cfg,
	}
}

// Load implements Engine. The speaker is only initialized once something plays.
func (e *BeepEngine) Load(ctx context.Context, uri string, opts Options) (Handle, error) {
	rc, ext, err := e.open(ctx, uri)
	if err != nil {
		return nil, err
	}

	streamer, format, err := decode(rc, ext)
	if err != nil {
		_ = rc.Close()
		return nil, errors.Wrapf(err, "failed to decode %s", uri)
	}

	h := &beepHandle{
		engine:   e,
		streamer: streamer,
		format:   format,
		loaded:   true,
		stop:     make(chan struct{}),
	}
	go h.report(e.config.StatusInterval)

	if opts.Autoplay {
		if err := h.Play(); err != nil {
			_ = h.Unload()
			return nil, err
		}
	}
	return h, nil
}

func (e *BeepEngine) initSpeaker() error {
	e.speakerOnce.Do(func() {
		sr := beep.SampleRate(e.config.SampleRate)
		e.speakerErr = speaker.Init(sr, sr.N(time.Second/10))
		if e.speakerErr != nil {
			zlog.Error().Err(e.speakerErr).Msg("audio: speaker init failed")
		}
	})
	return e.speakerErr
}

// open returns a reader for uri and the file extension used to choose a decoder.
func (e *BeepEngine) open(ctx context.Context, uri string) (io.ReadCloser, string, error) {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		return e.fetch(ctx, uri)
	}

	p := strings.TrimPrefix(uri, "file://")
	f, err := e.fs.Open(p)
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed to open %s", p)
	}
	return f, strings.ToLower(path.Ext(p)), nil
}

// fetch downloads a remote resource into memory so the decoder can seek.
func (e *BeepEngine) fetch(ctx context.Context, uri string) (io.ReadCloser, string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, "", errors.Wrapf(err, "invalid url %s", uri)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to build request")
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed to fetch %s", uri)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", errors.Newf("unexpected status %d for %s", resp.StatusCode, uri)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, e.config.MaxRemoteBytes+1))
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed to read %s", uri)
	}
	if int64(len(data)) > e.config.MaxRemoteBytes {
		return nil, "", errors.Newf("resource exceeds %d bytes: %s", e.config.MaxRemoteBytes, uri)
	}

	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" {
		ext = extFromContentType(resp.Header.Get("Content-Type"))
	}
	return memFile{bytes.NewReader(data)}, ext, nil
}

// memFile adds a no-op Close to an in-memory reader without hiding Seek.
type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error { return nil }

func decode(rc io.ReadCloser, ext string) (beep.StreamSeekCloser, beep.Format, error) {
	switch ext {
	case ".wav":
		return wav.Decode(rc)
	case ".flac":
		return flac.Decode(rc)
	case ".ogg", ".oga":
		return vorbis.Decode(rc)
	default:
		return mp3.Decode(rc)
	}
}

func extFromContentType(ct string) string {
	ct = strings.ToLower(ct)
	switch {
	case strings.Contains(ct, "wav"):
		return ".wav"
	case strings.Contains(ct, "flac"):
		return ".flac"
	case strings.Contains(ct, "ogg"):
		return ".ogg"
	default:
		return ".mp3"
	}
}

// beepHandle owns one decoded stream.
type beepHandle struct {
	engine   *BeepEngine
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl

	mu       sync.Mutex
	loaded   bool
	finished bool
	callback func(Status)
	stop     chan struct{}
}

func (h *beepHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.loaded {
		return ErrUnloaded
	}

	if h.ctrl == nil {
		if err := h.engine.initSpeaker(); err != nil {
			return errors.Wrap(err, "speaker unavailable")
		}
		out := beep.Streamer(h.streamer)
		target := beep.SampleRate(h.engine.config.SampleRate)
		if h.format.SampleRate != target {
			out = beep.Resample(4, h.format.SampleRate, target, h.streamer)
		}
		h.ctrl = &beep.Ctrl{Streamer: beep.Seq(out, beep.Callback(h.onEnd))}
		speaker.Play(h.ctrl)
		return nil
	}

	speaker.Lock()
	h.ctrl.Paused = false
	speaker.Unlock()
	return nil
}

func (h *beepHandle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.loaded {
		return ErrUnloaded
	}
	if h.ctrl == nil {
		return nil
	}
	speaker.Lock()
	h.ctrl.Paused = true
	speaker.Unlock()
	return nil
}

func (h *beepHandle) Seek(positionMs int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.loaded {
		return ErrUnloaded
	}

	n := h.format.SampleRate.N(time.Duration(positionMs) * time.Millisecond)
	if h.ctrl != nil {
		speaker.Lock()
		defer speaker.Unlock()
	}
	length := h.streamer.Len()
	if n < 0 {
		n = 0
	}
	if length > 0 && n >= length {
		n = length - 1
	}
	if err := h.streamer.Seek(n); err != nil {
		return errors.Wrap(err, "seek failed")
	}
	return nil
}

func (h *beepHandle) Unload() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.loaded {
		return nil
	}
	h.loaded = false
	close(h.stop)

	if h.ctrl != nil {
		speaker.Lock()
		h.ctrl.Streamer = nil
		speaker.Unlock()
	}
	if err := h.streamer.Close(); err != nil {
		return errors.Wrap(err, "failed to close stream")
	}
	return nil
}

func (h *beepHandle) OnStatus(fn func(Status)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callback = fn
}

func (h *beepHandle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statusLocked()
}

func (h *beepHandle) statusLocked() Status {
	if !h.loaded {
		return Status{}
	}

	playing := h.ctrl != nil && !h.finished
	var pos int
	if h.ctrl != nil {
		speaker.Lock()
		pos = h.streamer.Position()
		playing = playing && !h.ctrl.Paused
		speaker.Unlock()
	} else {
		pos = h.streamer.Position()
	}

	return Status{
		PositionMs: h.format.SampleRate.D(pos).Milliseconds(),
		DurationMs: h.format.SampleRate.D(h.streamer.Len()).Milliseconds(),
		IsPlaying:  playing,
		IsLoaded:   true,
	}
}

// onEnd runs on the speaker goroutine with the speaker lock held, so it only
// hands off to another goroutine.
func (h *beepHandle) onEnd() {
	go func() {
		h.mu.Lock()
		if !h.loaded || h.finished {
			h.mu.Unlock()
			return
		}
		h.finished = true
		st := h.statusLocked()
		st.IsPlaying = false
		st.DidJustFinish = true
		fn := h.callback
		h.mu.Unlock()

		if fn != nil {
			fn(st)
		}
	}()
}

func (h *beepHandle) report(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.mu.Lock()
			if !h.loaded || h.finished || h.ctrl == nil {
				h.mu.Unlock()
				continue
			}
			st := h.statusLocked()
			fn := h.callback
			h.mu.Unlock()

			if fn != nil {
				fn(st)
			}
		}
	}
}
