package game

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/kjelba/bombfest/internal/arena"
	"github.com/kjelba/bombfest/internal/player"
	"github.com/kjelba/bombfest/internal/protocol"
)

// Engine resolves one simulation step: concurrent intents applied in a fresh
// random order so no player id has a structural advantage in cell conflicts.
type Engine struct {
	rng *rand.Rand
	log *slog.Logger
}

func NewEngine(rng *rand.Rand, log *slog.Logger) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{rng: rng, log: log}
}

// turnOrder returns a uniform random permutation of the players
// (Fisher-Yates over a copied slice; the roster order is untouched).
func (e *Engine) turnOrder(players []*player.Player) []*player.Player {
	order := make([]*player.Player, len(players))
	copy(order, players)
	for i := len(order) - 1; i > 0; i-- {
		j := e.rng.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// Step applies every pending intent once, in this tick's random order.
//
// Movement and bomb placement are mutually exclusive within a tick. A move is
// rejected outright when the target cell is unwalkable, holds a bomb, or is
// occupied by any currently alive player, including one moved earlier in this
// same step. Directional commands persist (hold-to-move); a BOMB command is
// consumed by a successful placement.
func (e *Engine) Step(roster *player.Roster, a *arena.Arena, now time.Time) {
	for _, p := range e.turnOrder(roster.All()) {
		if !p.Alive() {
			continue
		}

		cmd := p.Command()
		if cmd == protocol.CommandNone {
			continue
		}

		dx, dy, moves := cmd.Move()
		if !moves {
			// BOMB
			if err := a.PlaceBomb(p.Position(), p.ID(), now); err != nil {
				e.log.Debug("bomb placement rejected", "player", p.ID(), "error", err)
			}
			p.ClearCommand()
			continue
		}

		pos := p.Position()
		target := arena.Point{X: pos.X + dx, Y: pos.Y + dy}

		if !a.IsWalkable(target) {
			continue
		}
		if _, occupied := roster.AliveAt(target); occupied {
			continue
		}
		if a.BombAt(target) {
			continue
		}

		p.SetPosition(target)
	}
}
