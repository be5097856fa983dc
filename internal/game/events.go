package game

import (
	"github.com/kjelba/bombfest/internal/arena"
	"github.com/kjelba/bombfest/internal/player"
)

// Standing is one row of the final win tally exposed at match end.
type Standing struct {
	ID   int
	Name string
	Wins int
}

// Events receives the explicit lifecycle notifications of the round manager.
// All calls happen synchronously on the simulation goroutine; implementations
// must not block.
type Events interface {
	PlayerJoined(p *player.Player)
	PlayerLeft(p *player.Player)
	PlayerDied(p *player.Player)
	RoundStarted(round int)
	// RoundEnded fires with a nil winner when the last players died
	// simultaneously.
	RoundEnded(winner *player.Player, round int)
	MatchEnded(standings []Standing)
	RosterChanged(players []*player.Player)
	ArenaChanged(a *arena.Arena)
	TickFinished(tick uint64)
}

type NopEvents struct{}

func (NopEvents) PlayerJoined(p *player.Player)            {}
func (NopEvents) PlayerLeft(p *player.Player)              {}
func (NopEvents) PlayerDied(p *player.Player)              {}
func (NopEvents) RoundStarted(round int)                   {}
func (NopEvents) RoundEnded(winner *player.Player, round int) {}
func (NopEvents) MatchEnded(standings []Standing)          {}
func (NopEvents) RosterChanged(players []*player.Player)   {}
func (NopEvents) ArenaChanged(a *arena.Arena)              {}
func (NopEvents) TickFinished(tick uint64)                 {}

// EventChain fans every notification out to all registered sinks in
// registration order.
type EventChain struct {
	sinks []Events
}

func NewEventChain() *EventChain {
	return &EventChain{}
}

func (c *EventChain) Register(e Events) {
	c.sinks = append(c.sinks, e)
}

func (c *EventChain) PlayerJoined(p *player.Player) {
	for _, e := range c.sinks {
		e.PlayerJoined(p)
	}
}

func (c *EventChain) PlayerLeft(p *player.Player) {
	for _, e := range c.sinks {
		e.PlayerLeft(p)
	}
}

func (c *EventChain) PlayerDied(p *player.Player) {
	for _, e := range c.sinks {
		e.PlayerDied(p)
	}
}

func (c *EventChain) RoundStarted(round int) {
	for _, e := range c.sinks {
		e.RoundStarted(round)
	}
}

func (c *EventChain) RoundEnded(winner *player.Player, round int) {
	for _, e := range c.sinks {
		e.RoundEnded(winner, round)
	}
}

func (c *EventChain) MatchEnded(standings []Standing) {
	for _, e := range c.sinks {
		e.MatchEnded(standings)
	}
}

func (c *EventChain) RosterChanged(players []*player.Player) {
	for _, e := range c.sinks {
		e.RosterChanged(players)
	}
}

func (c *EventChain) ArenaChanged(a *arena.Arena) {
	for _, e := range c.sinks {
		e.ArenaChanged(a)
	}
}

func (c *EventChain) TickFinished(tick uint64) {
	for _, e := range c.sinks {
		e.TickFinished(tick)
	}
}
