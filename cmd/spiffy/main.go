// Package main is the entry point for the mpd-spiffy web gateway.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/spiffyhq/mpd-spiffy-server/internal/domain/artwork"
	"github.com/spiffyhq/mpd-spiffy-server/internal/domain/lyrics"
	"github.com/spiffyhq/mpd-spiffy-server/internal/domain/player"
	"github.com/spiffyhq/mpd-spiffy-server/internal/infra/artsource"
	"github.com/spiffyhq/mpd-spiffy-server/internal/infra/blacklist"
	"github.com/spiffyhq/mpd-spiffy-server/internal/infra/mpd"
	"github.com/spiffyhq/mpd-spiffy-server/internal/transport/httpapi"
	"github.com/spiffyhq/mpd-spiffy-server/internal/transport/socketio"
	"github.com/spiffyhq/mpd-spiffy-server/internal/version"
)

func main() {
	port := pflag.String("port", "8080", "HTTP server port")
	bind := pflag.String("bind", "127.0.0.1", "HTTP bind address")
	mpdHost := pflag.String("mpd-host", "localhost", "MPD host")
	mpdPort := pflag.Int("mpd-port", 6600, "MPD port")
	mpdPassword := pflag.String("mpd-password", "", "MPD password")
	blacklistPath := pflag.String("blacklist", blacklist.DefaultPath, "Image blacklist file")
	uiFile := pflag.String("ui", "mpd-spiffy.html", "UI page served at /")
	debug := pflag.Bool("debug", false, "Enable debug logging")
	pflag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	versionInfo := version.GetInfo()
	log.Info().Msgf("%s", versionInfo.String())
	log.Info().
		Str("bind", *bind).
		Str("port", *port).
		Str("mpd_host", *mpdHost).
		Int("mpd_port", *mpdPort).
		Bool("password_set", *mpdPassword != "").
		Str("blacklist", *blacklistPath).
		Msg("Configuration")

	// MPD connection
	mpdClient := mpd.NewClient(*mpdHost, *mpdPort, *mpdPassword)
	if err := mpdClient.Connect(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MPD")
	}
	defer mpdClient.Close()

	musicDir := mpdClient.MusicDirectory()
	log.Info().Str("dir", musicDir).Msg("Music directory")

	// Image blacklist
	bl := blacklist.NewStore(*blacklistPath)
	bl.Load()
	log.Info().Int("urls", bl.Len()).Msg("Image blacklist loaded")

	// Services
	playerService := player.NewService(mpdClient)

	artworkService := artwork.NewService(
		artsource.NewDeezerClient(),
		artsource.NewAudioDBClient(),
		artsource.NewImageFetcher(),
		bl,
	)

	lyricsService := lyrics.NewService(musicDir,
		lyrics.NewLRCLibClient(),
		lyrics.NewLyricsOVHClient(),
	)

	// Socket.io push channel
	socketServer, err := socketio.NewServer(mpdClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Socket.io server")
	}
	defer socketServer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := mpdClient.Watch(socketio.WatchSubsystems...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start MPD watcher")
	}
	socketServer.StartMPDWatcher(ctx, events)

	// HTTP surface
	api := httpapi.NewHandler(playerService, artworkService, lyricsService,
		httpapi.WithUIFile(*uiFile))

	mux := http.NewServeMux()
	mux.Handle("/", api)
	mux.Handle("/socket.io/", socketServer)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := mpdClient.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"error","mpd":"disconnected"}`))
			return
		}
		keys, images := artworkService.Stats()
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":       "ok",
			"mpd":          "connected",
			"cached_keys":  keys,
			"cached_imgs":  images,
			"blacklisted":  bl.Len(),
			"socket_peers": socketServer.ClientCount(),
		})
	})

	mux.HandleFunc("/api/v1/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(versionInfo)
	})

	server := &http.Server{
		Addr:         *bind + ":" + *port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info().Msg("Shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("HTTP server error")
	}

	log.Info().Msg("Server stopped")
}
