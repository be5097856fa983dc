package player

import (
	"github.com/kjelba/bombfest/internal/arena"
	"github.com/kjelba/bombfest/internal/protocol"
)

// Conn is the per-player duplex network channel. Sends are fire-and-forget:
// a slow peer must never stall the simulation. A nil Conn means the player is
// locally controlled.
type Conn interface {
	Send(data []byte)
	Kick(reason string)
	Addr() string
}

// Player is the authoritative per-participant state. It is owned by the
// roster and only ever mutated on the simulation goroutine.
type Player struct {
	id       int
	name     string
	position arena.Point
	alive    bool
	command  protocol.Command
	wins     int

	conn         Conn
	disconnected bool
}

func New(id int, name string, conn Conn) *Player {
	return &Player{
		id:   id,
		name: name,
		conn: conn,
	}
}

func (p *Player) ID() int        { return p.id }
func (p *Player) Name() string   { return p.name }
func (p *Player) Alive() bool    { return p.alive }
func (p *Player) Wins() int      { return p.wins }
func (p *Player) AddWin()        { p.wins++ }
func (p *Player) SetAlive(v bool) { p.alive = v }

func (p *Player) SetName(name string) { p.name = name }

func (p *Player) Position() arena.Point       { return p.position }
func (p *Player) SetPosition(pos arena.Point) { p.position = pos }

// Command returns the pending command. It persists until overwritten:
// a held direction keeps moving the player every tick.
func (p *Player) Command() protocol.Command { return p.command }

func (p *Player) SetCommand(cmd protocol.Command) { p.command = cmd }

// ClearCommand drops the pending command (used after a bomb placement so a
// single BOMB intent plants exactly one bomb).
func (p *Player) ClearCommand() { p.command = protocol.CommandNone }

// Conn returns the attached channel, or nil for a locally-controlled player
// or one whose peer has already gone away.
func (p *Player) Conn() Conn {
	if p.disconnected {
		return nil
	}
	return p.conn
}

// Local reports whether the player was created without a network channel.
// Local players are never evicted on map shrink.
func (p *Player) Local() bool { return p.conn == nil }

// MarkDisconnected detaches the channel while leaving the roster entry in
// place; used to defer removal until the round is over.
func (p *Player) MarkDisconnected() { p.disconnected = true }

func (p *Player) Disconnected() bool { return p.disconnected }

// Owns reports whether the given channel belongs to this player. It matches
// even after MarkDisconnected so late events can still be attributed.
func (p *Player) Owns(conn Conn) bool {
	return p.conn != nil && p.conn == conn
}
