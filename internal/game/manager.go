package game

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/kjelba/bombfest/internal/arena"
	"github.com/kjelba/bombfest/internal/player"
	"github.com/kjelba/bombfest/internal/protocol"
)

type State uint8

const (
	// StateIdle: no round running, roster may change freely.
	StateIdle State = iota
	// StatePlaying: a round is active (possibly paused); connections are
	// rejected and disconnect removals are deferred.
	StatePlaying
	// StateResolving: a round just ended; waiting for the restart trigger.
	StateResolving
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StateResolving:
		return "resolving"
	default:
		return "unknown"
	}
}

// Options configure a Manager. The zero value is usable: time-seeded rng,
// default logger, 5 rounds per match.
type Options struct {
	Rng            *rand.Rand
	Logger         *slog.Logger
	RoundsPerMatch int
	Now            func() time.Time
}

// Manager owns the authoritative world: roster, arena and the round state
// machine. Every method must be called from the simulation goroutine.
type Manager struct {
	log    *slog.Logger
	engine *Engine
	roster *player.Roster
	arena  *arena.Arena
	events *EventChain
	now    func() time.Time

	state          State
	paused         bool
	tick           uint64
	roundsPlayed   int
	roundsPerMatch int
	lastAlive      int
}

func NewManager(a *arena.Arena, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RoundsPerMatch == 0 {
		opts.RoundsPerMatch = 5
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m := &Manager{
		log:            opts.Logger,
		engine:         NewEngine(opts.Rng, opts.Logger),
		roster:         player.NewRoster(),
		arena:          a,
		events:         NewEventChain(),
		now:            opts.Now,
		roundsPerMatch: opts.RoundsPerMatch,
	}
	a.SetExplosionHandler(m.handleExplosion)
	return m
}

func (m *Manager) Events() *EventChain  { return m.events }
func (m *Manager) Roster() *player.Roster { return m.roster }
func (m *Manager) Arena() *arena.Arena  { return m.arena }
func (m *Manager) State() State         { return m.state }
func (m *Manager) Paused() bool         { return m.paused }
func (m *Manager) RoundsPlayed() int    { return m.roundsPlayed }
func (m *Manager) RoundsPerMatch() int  { return m.roundsPerMatch }

// RoundActive reports whether a round is in progress. A paused round is
// still active: connections stay rejected and removals stay deferred.
func (m *Manager) RoundActive() bool { return m.state == StatePlaying }

// TickRunning reports whether the tick timer should drive the engine.
func (m *Manager) TickRunning() bool { return m.state == StatePlaying && !m.paused }

// Capacity is bounded by the arena's starting positions.
func (m *Manager) Capacity() int { return len(m.arena.StartingPositions()) }

// AddPlayer admits a remote participant. Admission fails while the roster is
// full or a round is active.
func (m *Manager) AddPlayer(name string, conn player.Conn) (*player.Player, error) {
	return m.addPlayer(name, conn)
}

// AddLocalPlayer admits a locally-controlled participant (no network
// channel). Local players are driven through SetCommand and are never
// evicted on arena shrink.
func (m *Manager) AddLocalPlayer(name string) (*player.Player, error) {
	return m.addPlayer(name, nil)
}

func (m *Manager) addPlayer(name string, conn player.Conn) (*player.Player, error) {
	if m.RoundActive() {
		return nil, fmt.Errorf("round in progress")
	}

	p, err := m.roster.Add(name, conn, m.Capacity())
	if err != nil {
		return nil, err
	}

	p.SetPosition(m.arena.StartingPositions()[p.ID()])

	m.events.PlayerJoined(p)
	m.events.RosterChanged(m.roster.All())
	return p, nil
}

// HandleDisconnect reacts to a peer going away. Mid-round the roster entry
// stays (inert) so live ids remain stable; otherwise it is removed at once
// and the remaining ids are renumbered densely.
func (m *Manager) HandleDisconnect(conn player.Conn) {
	p, ok := m.roster.ByConn(conn)
	if !ok {
		m.log.Warn("disconnect from a channel with no roster entry")
		return
	}

	p.MarkDisconnected()

	if m.RoundActive() {
		m.log.Info("player disconnected mid-round, removal deferred", "player", p.ID(), "name", p.Name())
		return
	}

	m.roster.Remove(p)
	m.log.Info("player removed", "name", p.Name())
	m.events.PlayerLeft(p)
	m.events.RosterChanged(m.roster.All())
}

// HandleCommand records a peer's latest intent. The tick snapshot decides
// whether it lands in the current or the next tick.
func (m *Manager) HandleCommand(conn player.Conn, cmd protocol.Command) {
	p, ok := m.roster.ByConn(conn)
	if !ok {
		m.log.Warn("command from a channel with no roster entry")
		return
	}
	p.SetCommand(cmd)
}

// SetCommand sets a pending command directly (local players, scripts).
func (m *Manager) SetCommand(id int, cmd protocol.Command) error {
	p, ok := m.roster.Get(id)
	if !ok {
		return fmt.Errorf("no player %d", id)
	}
	p.SetCommand(cmd)
	return nil
}

// HandleName applies a remote display-name announcement. Names are locked
// for the remainder of a round once it starts.
func (m *Manager) HandleName(conn player.Conn, name string) {
	p, ok := m.roster.ByConn(conn)
	if !ok {
		m.log.Warn("name change from a channel with no roster entry")
		return
	}
	if m.RoundActive() {
		m.log.Warn("name change rejected during round", "player", p.ID())
		return
	}
	p.SetName(name)
	m.events.RosterChanged(m.roster.All())
}

// StartRound runs the Idle/Resolving -> Playing transition: everyone alive,
// arena reset to its pristine state, players on their starting slots.
func (m *Manager) StartRound() error {
	if m.state == StatePlaying {
		return fmt.Errorf("round already running")
	}
	if m.roster.Count() == 0 {
		return fmt.Errorf("no players")
	}

	m.arena.Reset()
	for _, p := range m.roster.All() {
		p.SetAlive(true)
		p.ClearCommand()
	}
	m.roster.Reposition(m.arena)

	m.state = StatePlaying
	m.paused = false
	m.tick = 0
	m.lastAlive = m.roster.Count()

	round := m.roundsPlayed + 1
	m.log.Info("round started", "round", round, "players", m.roster.Count(), "arena", m.arena.Name())
	m.events.RoundStarted(round)
	m.events.ArenaChanged(m.arena)
	return nil
}

// Tick executes one simulation step. Round-over is signaled only on a death
// transition: someone died since the previous step and fewer than two
// players remain.
func (m *Manager) Tick() {
	if !m.TickRunning() {
		return
	}

	m.tick++
	m.engine.Step(m.roster, m.arena, m.now())

	alive := m.roster.AliveCount()
	if alive < m.lastAlive && alive < 2 {
		m.resolveRound(false)
		return
	}
	m.lastAlive = alive

	m.broadcastState()
	m.events.TickFinished(m.tick)
}

// CheckFuses detonates due bombs. Runs between ticks on the simulation
// goroutine; fuses burn on the wall clock and do not stop while paused.
func (m *Manager) CheckFuses() {
	m.arena.DetonateDue(m.now())
}

func (m *Manager) handleExplosion(cells []arena.Point) {
	for _, cell := range cells {
		if p, ok := m.roster.AliveAt(cell); ok {
			p.SetAlive(false)
			m.log.Info("player eliminated", "player", p.ID(), "name", p.Name())
			m.events.PlayerDied(p)
		}
	}
}

// TogglePause flips the tick engine's running state without touching round
// state.
func (m *Manager) TogglePause() {
	if m.state != StatePlaying {
		return
	}
	m.paused = !m.paused
	m.log.Info("pause toggled", "paused", m.paused)
}

// Stop forces an immediate end of the current round, bypassing the
// death-triggered path, and resets the match's round counter.
func (m *Manager) Stop() {
	switch m.state {
	case StatePlaying:
		m.resolveRound(true)
	case StateResolving:
		m.roundsPlayed = 0
		m.state = StateIdle
	}
}

func (m *Manager) resolveRound(manual bool) {
	round := m.roundsPlayed + 1

	var winner *player.Player
	winnerID := -1
	if w, ok := m.roster.FirstAlive(); ok {
		winner = w
		winner.AddWin()
		winnerID = winner.ID()
	}

	notice := protocol.EncodeEndOfRound(winnerID, round)
	for _, p := range m.roster.All() {
		if conn := p.Conn(); conn != nil {
			conn.Send(notice)
		}
	}

	if winner != nil {
		m.log.Info("round over", "round", round, "winner", winner.Name())
	} else {
		m.log.Info("round over with no survivor", "round", round)
	}
	m.events.RoundEnded(winner, round)

	if removed := m.roster.PruneDisconnected(); len(removed) > 0 {
		for _, p := range removed {
			m.events.PlayerLeft(p)
		}
		m.events.RosterChanged(m.roster.All())
	}

	m.roundsPlayed++

	switch {
	case manual:
		m.roundsPlayed = 0
		m.state = StateIdle
		m.log.Info("match stopped")
	case m.roundsPlayed >= m.roundsPerMatch:
		standings := m.Standings()
		m.roundsPlayed = 0
		m.state = StateIdle
		m.log.Info("match over", "rounds", m.roundsPerMatch)
		m.events.MatchEnded(standings)
	default:
		m.state = StateResolving
	}
}

// LoadArena swaps in a new arena (or a fresh copy of the current one). If
// the new arena has fewer starting positions than the roster, network
// players are evicted from the highest id down; locals are never evicted. A
// roster that cannot fit leaves the previous arena authoritative.
func (m *Manager) LoadArena(a *arena.Arena) error {
	capacity := len(a.StartingPositions())

	evicted, err := m.roster.EvictOverflow(capacity)
	if err != nil {
		return fmt.Errorf("cannot switch arena: %w", err)
	}

	for _, p := range evicted {
		m.log.Info("player evicted for smaller arena", "name", p.Name())
		if conn := p.Conn(); conn != nil {
			conn.Kick("arena is smaller, no free slot")
		}
		m.events.PlayerLeft(p)
	}

	m.arena = a
	a.SetExplosionHandler(m.handleExplosion)
	m.roster.Reposition(a)

	m.events.ArenaChanged(a)
	m.events.RosterChanged(m.roster.All())
	return nil
}

// Standings snapshots the win tallies in id order.
func (m *Manager) Standings() []Standing {
	standings := make([]Standing, 0, m.roster.Count())
	for _, p := range m.roster.All() {
		standings = append(standings, Standing{ID: p.ID(), Name: p.Name(), Wins: p.Wins()})
	}
	return standings
}

// broadcastState sends each alive, connected player its own view of the
// world: every other alive player plus arena and bomb state.
func (m *Manager) broadcastState() {
	alive := make([]*player.Player, 0, m.roster.Count())
	for _, p := range m.roster.All() {
		if p.Alive() {
			alive = append(alive, p)
		}
	}

	round := m.roundsPlayed + 1
	for _, p := range alive {
		conn := p.Conn()
		if conn == nil {
			continue
		}

		opponents := make([]protocol.PlayerState, 0, len(alive)-1)
		for _, o := range alive {
			if o == p {
				continue
			}
			opponents = append(opponents, protocol.PlayerState{
				ID:   o.ID(),
				X:    o.Position().X,
				Y:    o.Position().Y,
				Wins: o.Wins(),
				Name: o.Name(),
			})
		}

		self := protocol.PlayerState{ID: p.ID(), X: p.Position().X, Y: p.Position().Y, Wins: p.Wins()}
		conn.Send(protocol.EncodeState(self, opponents, m.arena, round, m.tick))
	}
}
