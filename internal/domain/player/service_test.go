package player

import (
	"errors"
	"strings"
	"testing"

	"github.com/fhs/gompd/v2/mpd"
)

type fakeConn struct {
	status  mpd.Attrs
	current mpd.Attrs
	stats   mpd.Attrs
	queue   []mpd.Attrs
	songs   []mpd.Attrs
	listing []mpd.Attrs

	playedPos  int
	paused     bool
	stopped    bool
	volume     int
	random     bool
	repeat     bool
	deletedPos int
	movedFrom  int
	movedTo    int
	added      string
	cleared    bool
	ranCmd     string
	ranArgs    []string
	artData    []byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		status: mpd.Attrs{
			"state": "play", "volume": "50", "song": "2", "playlistlength": "10",
			"elapsed": "30", "duration": "120",
			"repeat": "0", "random": "1", "single": "0", "consume": "0",
		},
		current:    mpd.Attrs{"file": "a/b.mp3", "Artist": "Daft Punk", "Title": "One More Time", "Pos": "2"},
		stats:      mpd.Attrs{"artists": "10", "albums": "20", "songs": "300"},
		playedPos:  -99,
		deletedPos: -99,
	}
}

func (f *fakeConn) Status() (mpd.Attrs, error)      { return f.status, nil }
func (f *fakeConn) CurrentSong() (mpd.Attrs, error) { return f.current, nil }
func (f *fakeConn) Stats() (mpd.Attrs, error)       { return f.stats, nil }
func (f *fakeConn) Play(pos int) error              { f.playedPos = pos; return nil }
func (f *fakeConn) Pause(p bool) error              { f.paused = p; return nil }
func (f *fakeConn) Stop() error                     { f.stopped = true; return nil }
func (f *fakeConn) Next() error                     { return nil }
func (f *fakeConn) Previous() error                 { return nil }
func (f *fakeConn) SetVolume(v int) error           { f.volume = v; return nil }
func (f *fakeConn) SetRandom(on bool) error         { f.random = on; return nil }
func (f *fakeConn) SetRepeat(on bool) error         { f.repeat = on; return nil }
func (f *fakeConn) SetSingle(on bool) error         { return nil }
func (f *fakeConn) SetConsume(on bool) error        { return nil }
func (f *fakeConn) PlaylistInfo() ([]mpd.Attrs, error) { return f.queue, nil }
func (f *fakeConn) Clear() error                    { f.cleared = true; return nil }
func (f *fakeConn) Add(uri string) error            { f.added = uri; return nil }
func (f *fakeConn) Delete(pos int) error            { f.deletedPos = pos; return nil }
func (f *fakeConn) Move(from, to int) error         { f.movedFrom, f.movedTo = from, to; return nil }
func (f *fakeConn) Shuffle() error                  { return nil }
func (f *fakeConn) Update(uri string) (int, error)  { return 7, nil }
func (f *fakeConn) ListAllInfo(uri string) ([]mpd.Attrs, error) { return f.songs, nil }
func (f *fakeConn) List(args ...string) ([]mpd.Attrs, error) {
	f.ranCmd, f.ranArgs = "list", args
	return f.listing, nil
}
func (f *fakeConn) SearchSongs(cmd string, args ...string) ([]mpd.Attrs, error) {
	f.ranCmd, f.ranArgs = cmd, args
	return f.songs, nil
}
func (f *fakeConn) RunOK(cmd string, args ...string) error {
	f.ranCmd, f.ranArgs = cmd, args
	return nil
}
func (f *fakeConn) ReadPicture(uri string) ([]byte, error) { return f.artData, nil }
func (f *fakeConn) AlbumArt(uri string) ([]byte, error)    { return f.artData, nil }

func TestAllowed(t *testing.T) {
	for _, cmd := range []string{"status", "play", "readpicture", "findadd"} {
		if !Allowed(cmd) {
			t.Errorf("Allowed(%q) = false, want true", cmd)
		}
	}
	for _, cmd := range []string{"kill", "password", "shutdown", ""} {
		if Allowed(cmd) {
			t.Errorf("Allowed(%q) = true, want false", cmd)
		}
	}
}

func TestExecute_NotAllowed(t *testing.T) {
	svc := NewService(newFakeConn())

	_, err := svc.Execute("kill", "", nil)
	if !errors.Is(err, ErrNotAllowed) {
		t.Errorf("err = %v, want ErrNotAllowed", err)
	}
}

func TestExecute_Status(t *testing.T) {
	svc := NewService(newFakeConn())

	out, err := svc.Execute("status", "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("status has %d lines, want 3:\n%s", len(lines), out)
	}
	if lines[0] != "Daft Punk - One More Time" {
		t.Errorf("song line = %q", lines[0])
	}
	if lines[1] != "[playing] #3/10   0:30/2:00 (25%)" {
		t.Errorf("state line = %q", lines[1])
	}
	if !strings.Contains(lines[2], "volume: 50%") || !strings.Contains(lines[2], "random: on") {
		t.Errorf("options line = %q", lines[2])
	}
}

func TestExecute_StatusStopped(t *testing.T) {
	conn := newFakeConn()
	conn.status["state"] = "stop"
	svc := NewService(conn)

	out, err := svc.Execute("status", "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Count(out, "\n") != 1 {
		t.Errorf("stopped status should be one line, got:\n%s", out)
	}
}

func TestExecute_CurrentWithFormat(t *testing.T) {
	svc := NewService(newFakeConn())

	out, err := svc.Execute("current", "%position%. %artist% / %title%", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.TrimSpace(out); got != "3. Daft Punk / One More Time" {
		t.Errorf("current = %q", got)
	}
}

func TestExecute_PlayPositionIsOneBased(t *testing.T) {
	conn := newFakeConn()
	svc := NewService(conn)

	if _, err := svc.Execute("play", "", []string{"5"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conn.playedPos != 4 {
		t.Errorf("played pos = %d, want 4", conn.playedPos)
	}
}

func TestExecute_PlayNoArgResumes(t *testing.T) {
	conn := newFakeConn()
	svc := NewService(conn)

	if _, err := svc.Execute("play", "", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conn.playedPos != -1 {
		t.Errorf("played pos = %d, want -1", conn.playedPos)
	}
}

func TestExecute_Toggle(t *testing.T) {
	conn := newFakeConn()
	svc := NewService(conn)

	if _, err := svc.Execute("toggle", "", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !conn.paused {
		t.Error("toggle while playing should pause")
	}

	conn.status["state"] = "pause"
	if _, err := svc.Execute("toggle", "", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conn.playedPos != -1 {
		t.Error("toggle while paused should resume")
	}
}

func TestExecute_Volume(t *testing.T) {
	tests := []struct {
		name string
		arg  string
		want int
	}{
		{"absolute", "75", 75},
		{"relative up", "+5", 55},
		{"relative down", "-10", 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := newFakeConn()
			svc := NewService(conn)

			if _, err := svc.Execute("volume", "", []string{tt.arg}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if conn.volume != tt.want {
				t.Errorf("volume = %d, want %d", conn.volume, tt.want)
			}
		})
	}
}

func TestExecute_RepeatToggleWithoutArg(t *testing.T) {
	conn := newFakeConn()
	svc := NewService(conn)

	if _, err := svc.Execute("repeat", "", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !conn.repeat {
		t.Error("repeat should flip from off to on")
	}
}

func TestExecute_DelMoveOneBased(t *testing.T) {
	conn := newFakeConn()
	svc := NewService(conn)

	if _, err := svc.Execute("del", "", []string{"3"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conn.deletedPos != 2 {
		t.Errorf("deleted pos = %d, want 2", conn.deletedPos)
	}

	if _, err := svc.Execute("move", "", []string{"2", "5"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conn.movedFrom != 1 || conn.movedTo != 4 {
		t.Errorf("move = %d -> %d, want 1 -> 4", conn.movedFrom, conn.movedTo)
	}
}

func TestExecute_Search(t *testing.T) {
	conn := newFakeConn()
	conn.songs = []mpd.Attrs{
		{"file": "a.mp3", "Artist": "A", "Title": "One"},
		{"file": "b.mp3", "Artist": "A", "Title": "Two"},
	}
	svc := NewService(conn)

	out, err := svc.Execute("search", "", []string{"artist", "A"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "a.mp3\nb.mp3\n" {
		t.Errorf("search output = %q", out)
	}
	if conn.ranCmd != "search" {
		t.Errorf("ran %q, want search", conn.ranCmd)
	}
}

func TestExecute_FindAdd(t *testing.T) {
	conn := newFakeConn()
	svc := NewService(conn)

	if _, err := svc.Execute("findadd", "", []string{"album", "Discovery"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conn.ranCmd != "findadd" || len(conn.ranArgs) != 2 {
		t.Errorf("ran %q %v", conn.ranCmd, conn.ranArgs)
	}
}

func TestExecute_Update(t *testing.T) {
	svc := NewService(newFakeConn())

	out, err := svc.Execute("update", "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Updating DB (#7) ...\n" {
		t.Errorf("update output = %q", out)
	}
}

func TestList(t *testing.T) {
	conn := newFakeConn()
	conn.listing = []mpd.Attrs{
		{"Album": "Discovery"},
		{"Album": "Homework"},
	}
	svc := NewService(conn)

	out, err := svc.List("album", "artist", "Daft Punk")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Discovery\nHomework\n" {
		t.Errorf("list output = %q", out)
	}
	if len(conn.ranArgs) != 3 || conn.ranArgs[0] != "album" {
		t.Errorf("list args = %v", conn.ranArgs)
	}
}

func TestArtwork_DefaultsToCurrentSong(t *testing.T) {
	conn := newFakeConn()
	conn.artData = []byte{0xFF, 0xD8, 0xFF}
	svc := NewService(conn)

	data, err := svc.Artwork("readpicture", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) != 3 {
		t.Errorf("artwork bytes = %d, want 3", len(data))
	}
}

func TestArtwork_RejectsTextCommand(t *testing.T) {
	svc := NewService(newFakeConn())

	if _, err := svc.Artwork("status", ""); !errors.Is(err, ErrNotAllowed) {
		t.Errorf("err = %v, want ErrNotAllowed", err)
	}
}
