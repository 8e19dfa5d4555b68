// Package main provides the pocketbox command-line player.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/osa030/pocketbox/internal/app/filter"
	"github.com/osa030/pocketbox/internal/app/library"
	"github.com/osa030/pocketbox/internal/domain/track"
	"github.com/osa030/pocketbox/internal/infra/audio"
	"github.com/osa030/pocketbox/internal/infra/config"
	"github.com/osa030/pocketbox/internal/infra/logger"
	"github.com/osa030/pocketbox/internal/infra/media"
	"github.com/osa030/pocketbox/internal/infra/storage"
)

var (
	app        = kingpin.New("pocketbox", "pocketbox music library and player")
	configPath = app.Flag("config", "Path to config file").Default("config/pocketbox.yaml").Envar("POCKETBOX_CONFIG").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stderr)").String()

	// tracks command
	tracksCmd = app.Command("tracks", "List the catalog").Default()

	// scan command
	scanCmd = app.Command("scan", "Request media library access and scan it")

	// import-file command
	importFileCmd  = app.Command("import-file", "Copy an audio file into the library")
	importFilePath = importFileCmd.Arg("path", "Audio file to import").Required().String()

	// import-url command
	importURLCmd    = app.Command("import-url", "Add a remote audio url to the library")
	importURL       = importURLCmd.Arg("url", "http(s) url of the audio resource").Required().String()
	importURLTitle  = importURLCmd.Flag("title", "Track title").String()
	importURLArtist = importURLCmd.Flag("artist", "Track artist").String()
	importURLAlbum  = importURLCmd.Flag("album", "Track album").String()

	// playlist commands
	playlistsCmd        = app.Command("playlists", "List playlists")
	playlistShowCmd     = app.Command("playlist-show", "Show the tracks of a playlist")
	playlistShowID      = playlistShowCmd.Arg("playlist-id", "Playlist ID").Required().String()
	playlistCreateCmd   = app.Command("playlist-create", "Create a playlist")
	playlistCreateName  = playlistCreateCmd.Arg("name", "Playlist name").Required().String()
	playlistRenameCmd   = app.Command("playlist-rename", "Rename a playlist")
	playlistRenameID    = playlistRenameCmd.Arg("playlist-id", "Playlist ID").Required().String()
	playlistRenameName  = playlistRenameCmd.Arg("name", "New name").Required().String()
	playlistDeleteCmd   = app.Command("playlist-delete", "Delete a playlist")
	playlistDeleteID    = playlistDeleteCmd.Arg("playlist-id", "Playlist ID").Required().String()
	playlistAddCmd      = app.Command("playlist-add", "Add a track to a playlist")
	playlistAddID       = playlistAddCmd.Arg("playlist-id", "Playlist ID").Required().String()
	playlistAddTrack    = playlistAddCmd.Arg("track-id", "Track ID").Required().String()
	playlistRemoveCmd   = app.Command("playlist-remove", "Remove a track from a playlist")
	playlistRemoveID    = playlistRemoveCmd.Arg("playlist-id", "Playlist ID").Required().String()
	playlistRemoveTrack = playlistRemoveCmd.Arg("track-id", "Track ID").Required().String()

	// track commands
	favoriteCmd     = app.Command("favorite", "Toggle the favorite flag of a track")
	favoriteTrackID = favoriteCmd.Arg("track-id", "Track ID").Required().String()
	deleteCmd       = app.Command("delete", "Delete a track from the library")
	deleteTrackID   = deleteCmd.Arg("track-id", "Track ID").Required().String()
	searchCmd       = app.Command("search", "Search titles, artists and albums")
	searchQuery     = searchCmd.Arg("query", "Search text").Required().Strings()
	artistsCmd      = app.Command("artists", "List artists")
	albumsCmd       = app.Command("albums", "List albums")

	// play command
	playCmd     = app.Command("play", "Play a track and follow the catalog")
	playTrackID = playCmd.Arg("track-id", "Track ID (default: first track)").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Load config
	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger, command-line flags win over the config file
	loggerConfig := logger.Config{
		Output: cfg.Log.Output,
		Level:  cfg.Log.Level,
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	logCloser, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logCloser.Close()

	if err := run(command, cfg); err != nil {
		zlog.Error().Msgf("pocketbox: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logCloser.Close()
		os.Exit(1)
	}
}

// run executes a command. Using a separate function ensures defer statements
// are executed even when returning with an error.
func run(command string, cfg *config.Config) error {
	ctx := context.Background()

	var picker media.Picker
	if command == importFileCmd.FullCommand() {
		picker = media.PathPicker{Path: *importFilePath}
	}

	store, closeAll, err := build(ctx, cfg, picker)
	if err != nil {
		return err
	}
	defer closeAll()

	store.Init(ctx)

	switch command {
	case tracksCmd.FullCommand():
		printTracks(store.Tracks())

	case scanCmd.FullCommand():
		granted := store.RequestPermissions(ctx)
		if !granted {
			fmt.Println("Media library access was not granted; showing imported tracks only.")
		}
		printTracks(store.Tracks())

	case importFileCmd.FullCommand():
		return printImport(store.ImportAudioFile(ctx))

	case importURLCmd.FullCommand():
		return printImport(store.ImportOnlineTrack(ctx, *importURL, *importURLTitle, *importURLArtist, *importURLAlbum))

	case playlistsCmd.FullCommand():
		for _, p := range store.Playlists() {
			fmt.Printf("%s  %-30s %3d tracks  created %s\n",
				p.ID, p.Name, p.TrackCount(), time.UnixMilli(p.CreatedAt).Format(time.DateTime))
		}

	case playlistShowCmd.FullCommand():
		p, ok := store.Playlist(*playlistShowID)
		if !ok {
			return fmt.Errorf("playlist not found: %s", *playlistShowID)
		}
		fmt.Printf("%s (%d entries)\n", p.Name, p.TrackCount())
		printTracks(store.PlaylistTracks(p.ID))

	case playlistCreateCmd.FullCommand():
		p, ok := store.CreatePlaylist(*playlistCreateName)
		if !ok {
			return fmt.Errorf("playlist name must not be empty")
		}
		fmt.Printf("Created playlist %s (%s)\n", p.Name, p.ID)

	case playlistRenameCmd.FullCommand():
		report(store.RenamePlaylist(*playlistRenameID, *playlistRenameName), "Renamed", "Nothing renamed")

	case playlistDeleteCmd.FullCommand():
		report(store.DeletePlaylist(*playlistDeleteID), "Deleted", "Playlist not found")

	case playlistAddCmd.FullCommand():
		if _, ok := store.Track(*playlistAddTrack); !ok {
			return fmt.Errorf("track not found: %s", *playlistAddTrack)
		}
		report(store.AddTrackToPlaylist(*playlistAddID, *playlistAddTrack), "Added", "Already in playlist or playlist not found")

	case playlistRemoveCmd.FullCommand():
		report(store.RemoveTrackFromPlaylist(*playlistRemoveID, *playlistRemoveTrack), "Removed", "Not in playlist")

	case favoriteCmd.FullCommand():
		fav, ok := store.ToggleFavorite(*favoriteTrackID)
		if !ok {
			return fmt.Errorf("track not found: %s", *favoriteTrackID)
		}
		fmt.Printf("Favorite: %v\n", fav)

	case deleteCmd.FullCommand():
		if _, ok := store.Track(*deleteTrackID); !ok {
			return fmt.Errorf("track not found: %s", *deleteTrackID)
		}
		store.DeleteTrack(ctx, *deleteTrackID)
		fmt.Println("Deleted")

	case searchCmd.FullCommand():
		printTracks(store.Search(strings.Join(*searchQuery, " ")))

	case artistsCmd.FullCommand():
		for _, g := range store.Artists() {
			fmt.Printf("%4d  %s\n", g.Count, g.Name)
		}

	case albumsCmd.FullCommand():
		for _, g := range store.Albums() {
			fmt.Printf("%4d  %s\n", g.Count, g.Name)
		}

	case playCmd.FullCommand():
		return play(ctx, cfg, store, *playTrackID)
	}

	return nil
}

// build wires the store with its storage backend, audio engine and providers.
// The returned function closes everything in reverse order.
func build(ctx context.Context, cfg *config.Config, picker media.Picker) (*library.Store, func(), error) {
	fs := afero.NewOsFs()

	if err := fs.MkdirAll(cfg.Library.DataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	filters, err := filter.Build(cfg.EnabledFilters())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up import filters: %w", err)
	}

	docs, err := storage.New(ctx, fs, cfg.Library.DataDir, cfg.Storage.Backend, cfg.Storage.Settings)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}

	var engine audio.Engine
	switch cfg.Playback.Engine {
	case "fake":
		engine = audio.NewFakeEngine(audio.WithTick(cfg.StatusInterval()))
	default:
		engine = audio.NewBeepEngine(fs, audio.BeepConfig{
			SampleRate:     cfg.Playback.SampleRate,
			StatusInterval: cfg.StatusInterval(),
			MaxRemoteBytes: cfg.Playback.MaxProbeBytes,
		})
	}
	zlog.Debug().Msgf("pocketbox: engine=%s storage=%s data_dir=%s", cfg.Playback.Engine, cfg.Storage.Backend, cfg.Library.DataDir)

	deps := library.Deps{
		Storage:  docs,
		Engine:   engine,
		Picker:   picker,
		Importer: media.NewImporter(fs, cfg.ImportPath()),
		Filters:  filters,
	}
	if cfg.Library.MediaDir != "" {
		deps.Scanner = media.NewDirScanner(fs, cfg.Library.MediaDir)
	}

	store := library.New(library.Config{
		AcceptedSchemes:     cfg.Library.AcceptedSchemes,
		PersistOnlineTracks: cfg.PersistOnlineTracks(),
		ScanLimit:           cfg.Library.ScanLimit,
		AutoAdvance:         cfg.AutoAdvance(),
	}, deps)

	closeAll := func() {
		store.Close()
		if err := docs.Close(); err != nil {
			zlog.Error().Msgf("pocketbox: failed to close storage: %v", err)
		}
	}
	return store, closeAll, nil
}

func printTracks(tracks []track.Track) {
	if len(tracks) == 0 {
		fmt.Println("No tracks.")
		return
	}
	for _, t := range tracks {
		flags := ""
		if t.IsFavorite {
			flags += "*"
		}
		fmt.Printf("%-24s %-7s %s  %-30s %-20s %-20s %s\n",
			t.ID, t.Provenance(), flags, t.Title, t.Artist, t.Album, formatDuration(t.Duration))
	}
}

func printImport(res library.ImportResult) error {
	switch res.Status {
	case library.ImportOK:
		fmt.Printf("Imported %s: %s - %s (%s)\n", res.Track.ID, res.Track.Artist, res.Track.Title, formatDuration(res.Track.Duration))
		return nil
	case library.ImportCancelled:
		fmt.Println("Import cancelled")
		return nil
	default:
		return fmt.Errorf("import %s: %w", res.Status, res.Err)
	}
}

func report(ok bool, success, failure string) {
	if ok {
		fmt.Println(success)
		return
	}
	fmt.Println(failure)
}

func formatDuration(ms int64) string {
	if ms <= 0 {
		return "--:--"
	}
	d := time.Duration(ms) * time.Millisecond
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
