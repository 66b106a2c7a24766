// Package socketio pushes player state changes to connected browsers so the
// UI updates without polling.
package socketio

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/spiffyhq/mpd-spiffy-server/internal/domain/player"
)

// debounceWindow collapses bursts of MPD subsystem events into one push.
const debounceWindow = 150 * time.Millisecond

// Server handles Socket.io connections and events.
type Server struct {
	io       *socket.Server
	conn     player.Conn
	debounce *pushDebouncer

	mu      sync.RWMutex
	clients map[string]*socket.Socket
}

// NewServer creates a Socket.io server on top of an MPD connection.
func NewServer(conn player.Conn) (*Server, error) {
	opts := socket.DefaultServerOptions()
	opts.SetPingTimeout(20 * time.Second)
	opts.SetPingInterval(25 * time.Second)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	s := &Server{
		io:      socket.NewServer(nil, opts),
		conn:    conn,
		clients: make(map[string]*socket.Socket),
	}
	s.debounce = newPushDebouncer(debounceWindow, s.broadcast)

	s.setupHandlers()

	return s, nil
}

func (s *Server) setupHandlers() {
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		clientID := string(client.Id())

		log.Info().Str("id", clientID).Msg("Client connected")

		s.mu.Lock()
		s.clients[clientID] = client
		s.mu.Unlock()

		go func() {
			time.Sleep(100 * time.Millisecond)
			s.pushState(client)
			s.pushQueue(client)
		}()

		client.On("disconnect", func(args ...any) {
			log.Info().Str("id", clientID).Msg("Client disconnected")

			s.mu.Lock()
			delete(s.clients, clientID)
			s.mu.Unlock()
		})

		client.On("getState", func(args ...any) {
			s.pushState(client)
		})

		client.On("getQueue", func(args ...any) {
			s.pushQueue(client)
		})

		client.On("play", func(args ...any) {
			pos := -1
			if len(args) > 0 {
				if m, ok := args[0].(map[string]interface{}); ok {
					if v, ok := m["value"].(float64); ok {
						pos = int(v)
					}
				}
			}
			if err := s.conn.Play(pos); err != nil {
				log.Error().Err(err).Msg("Play failed")
			}
		})

		client.On("pause", func(args ...any) {
			if err := s.conn.Pause(true); err != nil {
				log.Error().Err(err).Msg("Pause failed")
			}
		})

		client.On("stop", func(args ...any) {
			if err := s.conn.Stop(); err != nil {
				log.Error().Err(err).Msg("Stop failed")
			}
		})

		client.On("next", func(args ...any) {
			if err := s.conn.Next(); err != nil {
				log.Error().Err(err).Msg("Next failed")
			}
		})

		client.On("prev", func(args ...any) {
			if err := s.conn.Previous(); err != nil {
				log.Error().Err(err).Msg("Previous failed")
			}
		})

		client.On("volume", func(args ...any) {
			if len(args) > 0 {
				if vol, ok := args[0].(float64); ok {
					if err := s.conn.SetVolume(int(vol)); err != nil {
						log.Error().Err(err).Msg("SetVolume failed")
					}
				}
			}
		})

		client.On("setRandom", func(args ...any) {
			if on, ok := boolValue(args); ok {
				if err := s.conn.SetRandom(on); err != nil {
					log.Error().Err(err).Msg("SetRandom failed")
				}
			}
		})

		client.On("setRepeat", func(args ...any) {
			if on, ok := boolValue(args); ok {
				if err := s.conn.SetRepeat(on); err != nil {
					log.Error().Err(err).Msg("SetRepeat failed")
				}
			}
		})
	})
}

// boolValue extracts the {"value": bool} payload the UI sends with toggles.
func boolValue(args []any) (bool, bool) {
	if len(args) == 0 {
		return false, false
	}
	if m, ok := args[0].(map[string]interface{}); ok {
		if v, ok := m["value"].(bool); ok {
			return v, true
		}
	}
	return false, false
}

// buildState assembles the pushState payload from MPD status and the
// current song.
func (s *Server) buildState() (map[string]interface{}, error) {
	status, err := s.conn.Status()
	if err != nil {
		return nil, err
	}
	song, err := s.conn.CurrentSong()
	if err != nil {
		return nil, err
	}

	volume, _ := strconv.Atoi(status["volume"])
	pos, _ := strconv.Atoi(status["song"])
	elapsed, _ := strconv.ParseFloat(status["elapsed"], 64)
	duration, _ := strconv.ParseFloat(status["duration"], 64)

	return map[string]interface{}{
		"status":   status["state"],
		"position": pos,
		"title":    song["Title"],
		"artist":   song["Artist"],
		"album":    song["Album"],
		"uri":      song["file"],
		"volume":   volume,
		"seek":     int(elapsed * 1000),
		"duration": int(duration),
		"random":   status["random"] == "1",
		"repeat":   status["repeat"] == "1",
		"single":   status["single"] == "1",
		"consume":  status["consume"] == "1",
	}, nil
}

func (s *Server) buildQueue() ([]map[string]interface{}, error) {
	songs, err := s.conn.PlaylistInfo()
	if err != nil {
		return nil, err
	}

	queue := make([]map[string]interface{}, 0, len(songs))
	for _, song := range songs {
		queue = append(queue, map[string]interface{}{
			"uri":    song["file"],
			"title":  song["Title"],
			"artist": song["Artist"],
			"album":  song["Album"],
		})
	}
	return queue, nil
}

func (s *Server) pushState(client *socket.Socket) {
	state, err := s.buildState()
	if err != nil {
		log.Error().Err(err).Msg("Failed to build state")
		return
	}
	client.Emit("pushState", state)
}

func (s *Server) pushQueue(client *socket.Socket) {
	queue, err := s.buildQueue()
	if err != nil {
		log.Error().Err(err).Msg("Failed to build queue")
		return
	}
	client.Emit("pushQueue", queue)
}

// broadcast pushes to every connected client. Called from the debouncer.
func (s *Server) broadcast(state, queue bool) {
	if state {
		if payload, err := s.buildState(); err == nil {
			s.io.Emit("pushState", payload)
		} else {
			log.Error().Err(err).Msg("Failed to build state for broadcast")
		}
	}
	if queue {
		if payload, err := s.buildQueue(); err == nil {
			s.io.Emit("pushQueue", payload)
		} else {
			log.Error().Err(err).Msg("Failed to build queue for broadcast")
		}
	}
}

// WatchSubsystems is the MPD idle subsystem list the push channel cares
// about.
var WatchSubsystems = []string{"player", "mixer", "playlist", "options"}

// StartMPDWatcher consumes MPD subsystem change events and broadcasts
// debounced state and queue updates until ctx is cancelled.
func (s *Server) StartMPDWatcher(ctx context.Context, events <-chan string) {
	go func() {
		log.Info().Strs("subsystems", WatchSubsystems).Msg("MPD watcher started")
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("MPD watcher stopped")
				return
			case subsystem, ok := <-events:
				if !ok {
					log.Warn().Msg("MPD watcher channel closed")
					return
				}
				log.Debug().Str("subsystem", subsystem).Msg("MPD subsystem changed")
				s.debounce.Trigger(subsystem)
			}
		}
	}()
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// ServeHTTP implements http.Handler for the Socket.io server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.io.ServeHandler(nil).ServeHTTP(w, r)
}

// Close shuts down the Socket.io server.
func (s *Server) Close() error {
	s.debounce.Stop()
	s.io.Close(nil)
	return nil
}
