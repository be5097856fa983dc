package script

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kjelba/bombfest/internal/arena"
	"github.com/kjelba/bombfest/internal/game"
	"github.com/kjelba/bombfest/internal/protocol"
)

type fakeActions struct {
	kicked []int
	banned []int
}

func (a *fakeActions) KickPlayer(id int, reason string) error {
	a.kicked = append(a.kicked, id)
	return nil
}

func (a *fakeActions) BanPlayer(id int, reason string, duration time.Duration) error {
	a.banned = append(a.banned, id)
	return nil
}

func newTestManager(t *testing.T) *game.Manager {
	t.Helper()
	a, err := arena.Parse([]byte("#######\n#0...1#\n#######\n"), arena.Options{})
	if err != nil {
		t.Fatalf("arena: %v", err)
	}
	return game.NewManager(a, game.Options{Rng: rand.New(rand.NewSource(1))})
}

func writeScript(t *testing.T, code string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hooks.lua")
	if err := os.WriteFile(path, []byte(code), 0644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestMissingScriptIsNoop(t *testing.T) {
	m := newTestManager(t)
	e := NewEngine(m, &fakeActions{}, nil)

	if err := e.Load(filepath.Join(t.TempDir(), "absent.lua")); err != nil {
		t.Fatalf("missing script must not error: %v", err)
	}
	if e.Loaded() {
		t.Fatal("engine should stay disabled")
	}

	// hooks on a disabled engine must not panic
	e.RoundStarted(1)
	e.TickFinished(3)
}

func TestHooksFire(t *testing.T) {
	m := newTestManager(t)
	actions := &fakeActions{}
	e := NewEngine(m, actions, nil)

	path := writeScript(t, `
		function on_round_start(round)
			kick(round + 10, "scripted")
		end
		function on_round_end(round, winner_id, winner_name)
			if winner_id >= 0 then
				ban(winner_id, "too good", 1)
			end
		end
	`)
	if err := e.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}

	m.Events().Register(e)
	m.AddLocalPlayer("a")
	m.AddLocalPlayer("b")
	if err := m.StartRound(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if len(actions.kicked) != 1 || actions.kicked[0] != 11 {
		t.Fatalf("on_round_start did not run: %v", actions.kicked)
	}

	p1, _ := m.Roster().Get(1)
	p1.SetAlive(false)
	m.Tick()

	if len(actions.banned) != 1 || actions.banned[0] != 0 {
		t.Fatalf("on_round_end did not run: %v", actions.banned)
	}
}

func TestAPIDrivesManager(t *testing.T) {
	m := newTestManager(t)
	e := NewEngine(m, &fakeActions{}, nil)

	path := writeScript(t, `
		function on_tick(tick)
			local id = add_local_player("bot")
			set_command(0, "LEFT")
		end
	`)
	if err := e.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}

	// adding mid-round fails, so exercise the API while idle
	e.TickFinished(1)

	if m.Roster().Count() != 1 {
		t.Fatalf("add_local_player did not run, count %d", m.Roster().Count())
	}
	p, _ := m.Roster().Get(0)
	if !p.Local() || p.Name() != "bot" {
		t.Fatalf("unexpected player %q", p.Name())
	}
	if p.Command() != protocol.CommandLeft {
		t.Fatalf("set_command did not run, got %v", p.Command())
	}
}

func TestBadHookIsLoggedNotFatal(t *testing.T) {
	m := newTestManager(t)
	e := NewEngine(m, &fakeActions{}, nil)

	path := writeScript(t, `
		function on_round_start(round)
			error("boom")
		end
	`)
	if err := e.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}

	// must not panic or propagate
	e.RoundStarted(1)
}
