// Package script runs the server-side Lua hooks. A hooks file may define
// any of the on_* functions; missing functions are simply skipped. All
// calls happen on the simulation goroutine.
package script

import (
	"fmt"
	"log/slog"
	"time"

	golua "github.com/Shopify/go-lua"

	"github.com/kjelba/bombfest/internal/arena"
	"github.com/kjelba/bombfest/internal/game"
	"github.com/kjelba/bombfest/internal/player"
	"github.com/kjelba/bombfest/internal/protocol"
	"github.com/kjelba/bombfest/pkg/lua"
)

// ServerActions is what the hook API may ask of the hosting server.
type ServerActions interface {
	KickPlayer(id int, reason string) error
	BanPlayer(id int, reason string, duration time.Duration) error
}

type Engine struct {
	vm      *lua.VM
	log     *slog.Logger
	manager *game.Manager
	actions ServerActions
	loaded  bool
}

func NewEngine(manager *game.Manager, actions ServerActions, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		vm:      lua.NewVM(),
		log:     logger,
		manager: manager,
		actions: actions,
	}
	e.registerAPI()
	return e
}

// Load reads the hooks file. A missing file leaves the engine as a no-op.
func (e *Engine) Load(path string) error {
	if path == "" || !lua.FileExists(path) {
		e.log.Info("no hooks script, lua disabled", "path", path)
		return nil
	}

	if err := e.vm.LoadFile(path); err != nil {
		return fmt.Errorf("hooks script: %w", err)
	}

	e.loaded = true
	e.log.Info("hooks script loaded", "path", path)
	return nil
}

func (e *Engine) Loaded() bool { return e.loaded }

func (e *Engine) call(name string, args ...interface{}) {
	if !e.loaded || !e.vm.HasFunction(name) {
		return
	}
	if err := e.vm.CallFunction(name, args...); err != nil {
		e.log.Error("lua hook failed", "hook", name, "error", err)
	}
}

// game.Events implementation.

func (e *Engine) PlayerJoined(p *player.Player) {
	e.call("on_player_join", p.ID(), p.Name())
}

func (e *Engine) PlayerLeft(p *player.Player) {
	e.call("on_player_leave", p.ID(), p.Name())
}

func (e *Engine) PlayerDied(p *player.Player) {
	e.call("on_player_death", p.ID(), p.Name())
}

func (e *Engine) RoundStarted(round int) {
	e.call("on_round_start", round)
}

func (e *Engine) RoundEnded(winner *player.Player, round int) {
	if winner != nil {
		e.call("on_round_end", round, winner.ID(), winner.Name())
	} else {
		e.call("on_round_end", round, -1, "")
	}
}

func (e *Engine) MatchEnded(standings []game.Standing) {
	winnerID, winnerName, best := -1, "", -1
	for _, s := range standings {
		if s.Wins > best {
			winnerID, winnerName, best = s.ID, s.Name, s.Wins
		}
	}
	e.call("on_match_over", winnerID, winnerName, best)
}

func (e *Engine) RosterChanged(players []*player.Player) {}

func (e *Engine) ArenaChanged(a *arena.Arena) {}

func (e *Engine) TickFinished(tick uint64) {
	e.call("on_tick", int(tick))
}

func (e *Engine) registerAPI() {
	e.vm.RegisterFunction("log", e.apiLog)
	e.vm.RegisterFunction("kick", e.apiKick)
	e.vm.RegisterFunction("ban", e.apiBan)
	e.vm.RegisterFunction("add_local_player", e.apiAddLocalPlayer)
	e.vm.RegisterFunction("set_command", e.apiSetCommand)
	e.vm.RegisterFunction("player_count", e.apiPlayerCount)
	e.vm.RegisterFunction("round", e.apiRound)
}

func (e *Engine) apiLog(state *golua.State) int {
	message, _ := state.ToString(1)
	e.log.Info("lua", "message", message)
	return 0
}

func (e *Engine) apiKick(state *golua.State) int {
	id, _ := state.ToInteger(1)
	reason, _ := state.ToString(2)

	if err := e.actions.KickPlayer(id, reason); err != nil {
		state.PushBoolean(false)
		state.PushString(err.Error())
		return 2
	}

	state.PushBoolean(true)
	state.PushString("")
	return 2
}

func (e *Engine) apiBan(state *golua.State) int {
	id, _ := state.ToInteger(1)
	reason, _ := state.ToString(2)
	durationHours, _ := state.ToNumber(3)

	duration := time.Duration(durationHours * float64(time.Hour))
	if err := e.actions.BanPlayer(id, reason, duration); err != nil {
		state.PushBoolean(false)
		state.PushString(err.Error())
		return 2
	}

	state.PushBoolean(true)
	state.PushString("")
	return 2
}

func (e *Engine) apiAddLocalPlayer(state *golua.State) int {
	name, _ := state.ToString(1)

	p, err := e.manager.AddLocalPlayer(name)
	if err != nil {
		state.PushInteger(-1)
		state.PushString(err.Error())
		return 2
	}

	state.PushInteger(p.ID())
	state.PushString("")
	return 2
}

func (e *Engine) apiSetCommand(state *golua.State) int {
	id, _ := state.ToInteger(1)
	name, _ := state.ToString(2)

	cmd, err := protocol.ParseCommand(name)
	if err != nil {
		state.PushBoolean(false)
		state.PushString(err.Error())
		return 2
	}

	if err := e.manager.SetCommand(id, cmd); err != nil {
		state.PushBoolean(false)
		state.PushString(err.Error())
		return 2
	}

	state.PushBoolean(true)
	state.PushString("")
	return 2
}

func (e *Engine) apiPlayerCount(state *golua.State) int {
	state.PushInteger(e.manager.Roster().Count())
	return 1
}

func (e *Engine) apiRound(state *golua.State) int {
	if e.manager.State() == game.StateIdle {
		state.PushInteger(0)
	} else {
		state.PushInteger(e.manager.RoundsPlayed() + 1)
	}
	return 1
}
