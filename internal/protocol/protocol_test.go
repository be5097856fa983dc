package protocol

import (
	"strings"
	"testing"
	"time"

	"github.com/kjelba/bombfest/internal/arena"
)

func TestParseCommand(t *testing.T) {
	for word, want := range map[string]Command{
		"UP":    CommandUp,
		"DOWN":  CommandDown,
		"LEFT":  CommandLeft,
		"RIGHT": CommandRight,
		"BOMB":  CommandBomb,
	} {
		got, err := ParseCommand(word)
		if err != nil {
			t.Fatalf("%s: %v", word, err)
		}
		if got != want {
			t.Fatalf("%s: got %v", word, got)
		}
	}

	for _, bad := range []string{"", "up", "JUMP", "UP DOWN"} {
		if _, err := ParseCommand(bad); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}

func TestCommandMove(t *testing.T) {
	cases := []struct {
		cmd    Command
		dx, dy int
	}{
		{CommandUp, 0, -1},
		{CommandDown, 0, 1},
		{CommandLeft, -1, 0},
		{CommandRight, 1, 0},
	}
	for _, tc := range cases {
		dx, dy, ok := tc.cmd.Move()
		if !ok || dx != tc.dx || dy != tc.dy {
			t.Fatalf("%v: got %d,%d,%v", tc.cmd, dx, dy, ok)
		}
	}
	if _, _, ok := CommandBomb.Move(); ok {
		t.Fatal("BOMB should not be a movement")
	}
	if _, _, ok := CommandNone.Move(); ok {
		t.Fatal("empty command should not be a movement")
	}
}

func TestParseMessage(t *testing.T) {
	msg, err := ParseMessage([]byte("LEFT\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.Kind != MessageCommand || msg.Command != CommandLeft {
		t.Fatalf("unexpected message %#v", msg)
	}

	msg, err = ParseMessage([]byte("NAME Ragnhild\r\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.Kind != MessageName || msg.Name != "Ragnhild" {
		t.Fatalf("unexpected message %#v", msg)
	}

	if _, err := ParseMessage([]byte("FROBNICATE")); err == nil {
		t.Fatal("expected error for unknown message")
	}
}

func TestDecodeName(t *testing.T) {
	// 0xe6 is æ in Latin-1
	name, err := DecodeName([]byte{'b', 'j', 0xe6, 'r', 'n'})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if name != "bjærn" {
		t.Fatalf("unexpected name %q", name)
	}

	name, err = DecodeName([]byte("evil\x00\x1bname"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if name != "evilname" {
		t.Fatalf("control characters not stripped: %q", name)
	}

	long, err := DecodeName([]byte(strings.Repeat("x", 100)))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(long) > MaxNameLen {
		t.Fatalf("name not clamped: %d runes", len(long))
	}

	if _, err := DecodeName([]byte("   ")); err == nil {
		t.Fatal("expected error for blank name")
	}
}

func TestEncodeState(t *testing.T) {
	a, err := arena.Parse([]byte("#####\n#0.1#\n#####\n"), arena.Options{})
	if err != nil {
		t.Fatalf("arena: %v", err)
	}

	self := PlayerState{ID: 0, X: 1, Y: 1}
	opponents := []PlayerState{{ID: 1, X: 3, Y: 1, Wins: 2, Name: "rival"}}

	out := string(EncodeState(self, opponents, a, 3, 42))
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")

	if lines[0] != "STATE 3 42" {
		t.Fatalf("bad header %q", lines[0])
	}
	if lines[1] != "SELF 1 1" {
		t.Fatalf("bad self line %q", lines[1])
	}
	if lines[2] != "PLAYER 1 3 1 2 rival" {
		t.Fatalf("bad player line %q", lines[2])
	}
	if lines[3] != "ARENA 5 3" {
		t.Fatalf("bad arena header %q", lines[3])
	}
	if lines[4] != "#####" || lines[5] != "#...#" || lines[6] != "#####" {
		t.Fatalf("bad arena rows %q", lines[4:7])
	}
	if lines[len(lines)-1] != "END" {
		t.Fatalf("missing END, got %q", lines[len(lines)-1])
	}

	// recipient identity never appears in its own snapshot
	if strings.Contains(out, "PLAYER 0") {
		t.Fatal("self leaked into opponents list")
	}
}

func TestEncodeStateIncludesBombs(t *testing.T) {
	a, err := arena.Parse([]byte("#####\n#0.1#\n#####\n"), arena.Options{})
	if err != nil {
		t.Fatalf("arena: %v", err)
	}
	if err := a.PlaceBomb(arena.Point{X: 2, Y: 1}, 0, time.Now()); err != nil {
		t.Fatalf("place: %v", err)
	}

	out := string(EncodeState(PlayerState{}, nil, a, 0, 0))
	if !strings.Contains(out, "BOMB 2 1\n") {
		t.Fatalf("bomb missing from snapshot:\n%s", out)
	}
}

func TestEncodeEndOfRound(t *testing.T) {
	if got := string(EncodeEndOfRound(2, 4)); got != "ENDOFROUND 2 4\n" {
		t.Fatalf("unexpected %q", got)
	}
	if got := string(EncodeEndOfRound(-1, 1)); got != "ENDOFROUND -1 1\n" {
		t.Fatalf("unexpected %q", got)
	}
}
