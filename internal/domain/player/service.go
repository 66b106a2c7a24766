// Package player executes whitelisted playback commands against MPD and
// renders mpc-style plain text responses for the web UI.
package player

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotAllowed is returned for commands outside the whitelist.
	ErrNotAllowed = errors.New("command not allowed")

	// ErrMissingArg is returned when a command lacks a required argument.
	ErrMissingArg = errors.New("missing argument")
)

// allowedCommands is the set of commands the HTTP surface may invoke.
var allowedCommands = map[string]struct{}{
	"status": {}, "current": {}, "play": {}, "pause": {}, "stop": {},
	"next": {}, "prev": {}, "toggle": {},
	"volume": {}, "repeat": {}, "random": {}, "single": {}, "consume": {},
	"playlist": {}, "add": {}, "del": {}, "clear": {}, "shuffle": {}, "move": {},
	"search": {}, "find": {}, "findadd": {}, "searchadd": {}, "listall": {},
	"albumart": {}, "readpicture": {}, "update": {}, "stats": {},
}

// Allowed reports whether cmd is on the whitelist.
func Allowed(cmd string) bool {
	_, ok := allowedCommands[cmd]
	return ok
}

// Conn is the MPD connection the service drives.
type Conn interface {
	Status() (mpd.Attrs, error)
	CurrentSong() (mpd.Attrs, error)
	Stats() (mpd.Attrs, error)
	Play(pos int) error
	Pause(pause bool) error
	Stop() error
	Next() error
	Previous() error
	SetVolume(vol int) error
	SetRandom(on bool) error
	SetRepeat(on bool) error
	SetSingle(on bool) error
	SetConsume(on bool) error
	PlaylistInfo() ([]mpd.Attrs, error)
	Clear() error
	Add(uri string) error
	Delete(pos int) error
	Move(from, to int) error
	Shuffle() error
	Update(uri string) (int, error)
	ListAllInfo(uri string) ([]mpd.Attrs, error)
	List(args ...string) ([]mpd.Attrs, error)
	SearchSongs(cmd string, args ...string) ([]mpd.Attrs, error)
	RunOK(cmd string, args ...string) error
	ReadPicture(uri string) ([]byte, error)
	AlbumArt(uri string) ([]byte, error)
}

// Service executes player commands.
type Service struct {
	conn Conn
}

// NewService creates a player service on top of an MPD connection.
func NewService(conn Conn) *Service {
	return &Service{conn: conn}
}

// Execute runs a whitelisted text command and returns mpc-style output.
// format is an optional song format string with %artist%-style tokens.
// Positions in args are 1-based, matching the mpc CLI.
func (s *Service) Execute(cmd, format string, args []string) (string, error) {
	if !Allowed(cmd) {
		return "", fmt.Errorf("%w: %s", ErrNotAllowed, cmd)
	}

	log.Debug().Str("cmd", cmd).Strs("args", args).Msg("Player command")

	switch cmd {
	case "status":
		return s.statusText(format)
	case "current":
		return s.currentText(format)
	case "play":
		pos := -1
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return "", fmt.Errorf("invalid position: %q", args[0])
			}
			pos = n - 1
		}
		return s.after(s.conn.Play(pos), format)
	case "pause":
		return s.after(s.conn.Pause(true), format)
	case "stop":
		return s.after(s.conn.Stop(), format)
	case "next":
		return s.after(s.conn.Next(), format)
	case "prev":
		return s.after(s.conn.Previous(), format)
	case "toggle":
		return s.toggle(format)
	case "volume":
		return s.volume(format, args)
	case "repeat":
		return s.flag(format, args, "repeat", s.conn.SetRepeat)
	case "random":
		return s.flag(format, args, "random", s.conn.SetRandom)
	case "single":
		return s.flag(format, args, "single", s.conn.SetSingle)
	case "consume":
		return s.flag(format, args, "consume", s.conn.SetConsume)
	case "playlist":
		return s.playlistText(format)
	case "add":
		if len(args) == 0 {
			return "", fmt.Errorf("%w: add needs a URI", ErrMissingArg)
		}
		return "", s.conn.Add(args[0])
	case "del":
		if len(args) == 0 {
			return "", fmt.Errorf("%w: del needs a position", ErrMissingArg)
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return "", fmt.Errorf("invalid position: %q", args[0])
		}
		return "", s.conn.Delete(n - 1)
	case "clear":
		return "", s.conn.Clear()
	case "shuffle":
		return "", s.conn.Shuffle()
	case "move":
		if len(args) < 2 {
			return "", fmt.Errorf("%w: move needs from and to", ErrMissingArg)
		}
		from, err := strconv.Atoi(args[0])
		if err != nil {
			return "", fmt.Errorf("invalid position: %q", args[0])
		}
		to, err := strconv.Atoi(args[1])
		if err != nil {
			return "", fmt.Errorf("invalid position: %q", args[1])
		}
		return "", s.conn.Move(from-1, to-1)
	case "search", "find":
		return s.songList(cmd, format, args)
	case "findadd", "searchadd":
		if len(args) < 2 {
			return "", fmt.Errorf("%w: %s needs a tag and value", ErrMissingArg, cmd)
		}
		return "", s.conn.RunOK(cmd, args...)
	case "listall":
		uri := ""
		if len(args) > 0 {
			uri = args[0]
		}
		songs, err := s.conn.ListAllInfo(uri)
		if err != nil {
			return "", err
		}
		var b strings.Builder
		for _, song := range songs {
			if f := song["file"]; f != "" {
				b.WriteString(f)
				b.WriteByte('\n')
			}
		}
		return b.String(), nil
	case "update":
		uri := ""
		if len(args) > 0 {
			uri = args[0]
		}
		job, err := s.conn.Update(uri)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Updating DB (#%d) ...\n", job), nil
	case "stats":
		return s.statsText()
	case "albumart", "readpicture":
		return "", fmt.Errorf("%s is a binary command", cmd)
	}

	return "", fmt.Errorf("%w: %s", ErrNotAllowed, cmd)
}

// Artwork runs a binary artwork command (albumart or readpicture). When uri
// is empty the currently playing song is used.
func (s *Service) Artwork(cmd, uri string) ([]byte, error) {
	if cmd != "albumart" && cmd != "readpicture" {
		return nil, fmt.Errorf("%w: %s", ErrNotAllowed, cmd)
	}

	if uri == "" {
		song, err := s.conn.CurrentSong()
		if err != nil {
			return nil, err
		}
		uri = song["file"]
		if uri == "" {
			return nil, errors.New("no current song")
		}
	}

	if cmd == "readpicture" {
		return s.conn.ReadPicture(uri)
	}
	return s.conn.AlbumArt(uri)
}

// List returns unique tag values, one per line (e.g. all artists, or the
// albums of one artist).
func (s *Service) List(what string, rest ...string) (string, error) {
	values, err := s.conn.List(append([]string{what}, rest...)...)
	if err != nil {
		return "", err
	}

	key := listKey(what)
	var b strings.Builder
	for _, attrs := range values {
		if v := attrs[key]; v != "" {
			b.WriteString(v)
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

// after returns the status text after a mutating command, mirroring mpc.
func (s *Service) after(err error, format string) (string, error) {
	if err != nil {
		return "", err
	}
	return s.statusText(format)
}

func (s *Service) toggle(format string) (string, error) {
	status, err := s.conn.Status()
	if err != nil {
		return "", err
	}

	if status["state"] == "play" {
		err = s.conn.Pause(true)
	} else {
		err = s.conn.Play(-1)
	}
	return s.after(err, format)
}

// volume handles absolute ("75") and relative ("+5", "-10") adjustments.
func (s *Service) volume(format string, args []string) (string, error) {
	if len(args) == 0 {
		status, err := s.conn.Status()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("volume:%3s%%\n", status["volume"]), nil
	}

	arg := args[0]
	n, err := strconv.Atoi(strings.TrimPrefix(arg, "+"))
	if err != nil {
		return "", fmt.Errorf("invalid volume: %q", arg)
	}

	if strings.HasPrefix(arg, "+") || strings.HasPrefix(arg, "-") {
		status, err := s.conn.Status()
		if err != nil {
			return "", err
		}
		cur, _ := strconv.Atoi(status["volume"])
		n = cur + n
	}

	return s.after(s.conn.SetVolume(n), format)
}

// flag handles the on/off/toggle commands (repeat, random, single, consume).
func (s *Service) flag(format string, args []string, name string, set func(bool) error) (string, error) {
	var on bool
	if len(args) > 0 {
		on = args[0] == "on" || args[0] == "1" || args[0] == "true"
	} else {
		status, err := s.conn.Status()
		if err != nil {
			return "", err
		}
		on = status[name] != "1"
	}
	return s.after(set(on), format)
}

// statusText renders the three-line mpc status block. When stopped only the
// options line is emitted.
func (s *Service) statusText(format string) (string, error) {
	status, err := s.conn.Status()
	if err != nil {
		return "", err
	}

	var b strings.Builder

	state := status["state"]
	if state == "play" || state == "pause" {
		song, err := s.conn.CurrentSong()
		if err == nil {
			b.WriteString(renderSong(format, song))
			b.WriteByte('\n')
		}

		pos, _ := strconv.Atoi(status["song"])
		total, _ := strconv.Atoi(status["playlistlength"])
		elapsed := parseSeconds(status["elapsed"])
		duration := parseSeconds(status["duration"])
		percent := 0
		if duration > 0 {
			percent = int(float64(elapsed) / float64(duration) * 100)
		}

		label := "playing"
		if state == "pause" {
			label = "paused"
		}
		fmt.Fprintf(&b, "[%s] #%d/%d   %s/%s (%d%%)\n",
			label, pos+1, total, clock(elapsed), clock(duration), percent)
	}

	fmt.Fprintf(&b, "volume:%3s%%   repeat: %s   random: %s   single: %s   consume: %s\n",
		volumeField(status["volume"]),
		onOff(status["repeat"]), onOff(status["random"]),
		onOff(status["single"]), onOff(status["consume"]))

	return b.String(), nil
}

func (s *Service) currentText(format string) (string, error) {
	song, err := s.conn.CurrentSong()
	if err != nil {
		return "", err
	}
	if len(song) == 0 || song["file"] == "" {
		return "", nil
	}
	return renderSong(format, song) + "\n", nil
}

func (s *Service) playlistText(format string) (string, error) {
	songs, err := s.conn.PlaylistInfo()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, song := range songs {
		b.WriteString(renderSong(format, song))
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func (s *Service) songList(cmd, format string, args []string) (string, error) {
	if len(args) < 2 {
		return "", fmt.Errorf("%w: %s needs a tag and value", ErrMissingArg, cmd)
	}

	songs, err := s.conn.SearchSongs(cmd, args...)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, song := range songs {
		if format != "" {
			b.WriteString(renderSong(format, song))
		} else {
			b.WriteString(song["file"])
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func (s *Service) statsText() (string, error) {
	stats, err := s.conn.Stats()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Artists: %6s\n", stats["artists"])
	fmt.Fprintf(&b, "Albums:  %6s\n", stats["albums"])
	fmt.Fprintf(&b, "Songs:   %6s\n", stats["songs"])
	return b.String(), nil
}

// renderSong expands %tag% tokens in format against the song attrs. With an
// empty format it falls back to "Artist - Title", then the file path.
func renderSong(format string, song mpd.Attrs) string {
	if format == "" {
		artist := song["Artist"]
		title := song["Title"]
		if artist != "" && title != "" {
			return artist + " - " + title
		}
		return song["file"]
	}

	replacer := strings.NewReplacer(
		"%artist%", song["Artist"],
		"%albumartist%", song["AlbumArtist"],
		"%album%", song["Album"],
		"%title%", song["Title"],
		"%track%", song["Track"],
		"%genre%", song["Genre"],
		"%date%", song["Date"],
		"%file%", song["file"],
		"%time%", clock(parseSeconds(song["duration"])),
		"%position%", position(song["Pos"]),
	)
	return replacer.Replace(format)
}

// position converts MPD's 0-based queue position to the 1-based one mpc shows.
func position(pos string) string {
	n, err := strconv.Atoi(pos)
	if err != nil {
		return pos
	}
	return strconv.Itoa(n + 1)
}

func parseSeconds(v string) int {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return int(f)
}

func clock(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func onOff(v string) string {
	if v == "1" {
		return "on"
	}
	return "off"
}

func volumeField(v string) string {
	if v == "" {
		return "n/a"
	}
	return v
}

// listKey maps a list tag argument to the attribute key in MPD's response.
func listKey(what string) string {
	switch strings.ToLower(what) {
	case "artist":
		return "Artist"
	case "album":
		return "Album"
	case "albumartist":
		return "AlbumArtist"
	case "title":
		return "Title"
	case "genre":
		return "Genre"
	case "date":
		return "Date"
	default:
		return what
	}
}
