package player

import (
	"fmt"

	"github.com/kjelba/bombfest/internal/arena"
)

// Roster is the ordered set of participants. Invariant: a player's id always
// equals its slice index; every removal renumbers densely from 0.
type Roster struct {
	players []*Player
}

func NewRoster() *Roster {
	return &Roster{}
}

func (r *Roster) Count() int { return len(r.players) }

func (r *Roster) All() []*Player { return r.players }

func (r *Roster) Get(id int) (*Player, bool) {
	if id < 0 || id >= len(r.players) {
		return nil, false
	}
	return r.players[id], true
}

// ByConn finds the roster entry owning the given channel, including entries
// already marked disconnected.
func (r *Roster) ByConn(conn Conn) (*Player, bool) {
	for _, p := range r.players {
		if p.Owns(conn) {
			return p, true
		}
	}
	return nil, false
}

// Add appends a player with the next sequential id, bounded by capacity.
func (r *Roster) Add(name string, conn Conn, capacity int) (*Player, error) {
	if len(r.players) >= capacity {
		return nil, fmt.Errorf("roster full: %d of %d slots taken", len(r.players), capacity)
	}
	p := New(len(r.players), name, conn)
	r.players = append(r.players, p)
	return p, nil
}

// Remove takes the player out and renumbers the remainder densely.
func (r *Roster) Remove(p *Player) bool {
	for i, other := range r.players {
		if other == p {
			r.players = append(r.players[:i], r.players[i+1:]...)
			r.renumber()
			return true
		}
	}
	return false
}

// PruneDisconnected removes every entry whose peer went away during the
// round. Returns the removed players.
func (r *Roster) PruneDisconnected() []*Player {
	var removed []*Player
	kept := r.players[:0]
	for _, p := range r.players {
		if p.Disconnected() {
			removed = append(removed, p)
		} else {
			kept = append(kept, p)
		}
	}
	r.players = kept
	if len(removed) > 0 {
		r.renumber()
	}
	return removed
}

// EvictOverflow shrinks the roster to capacity by dropping network players
// from the highest id downward. Locally-controlled players are never evicted;
// if locals alone exceed capacity the roster is left untouched and an error
// is returned.
func (r *Roster) EvictOverflow(capacity int) ([]*Player, error) {
	locals := 0
	for _, p := range r.players {
		if p.Local() {
			locals++
		}
	}
	if locals > capacity {
		return nil, fmt.Errorf("%d local players exceed capacity %d", locals, capacity)
	}

	var evicted []*Player
	for i := len(r.players) - 1; i >= 0 && len(r.players) > capacity; i-- {
		if r.players[i].Local() {
			continue
		}
		evicted = append(evicted, r.players[i])
		r.players = append(r.players[:i], r.players[i+1:]...)
	}
	if len(evicted) > 0 {
		r.renumber()
	}
	return evicted, nil
}

// Reposition places every player on the arena's starting slot matching its
// id. The roster must fit the arena.
func (r *Roster) Reposition(a *arena.Arena) {
	spawns := a.StartingPositions()
	for i, p := range r.players {
		p.SetPosition(spawns[i])
	}
}

func (r *Roster) AliveCount() int {
	alive := 0
	for _, p := range r.players {
		if p.Alive() {
			alive++
		}
	}
	return alive
}

// FirstAlive returns the lowest-id alive player, the round winner when a
// round resolves with survivors.
func (r *Roster) FirstAlive() (*Player, bool) {
	for _, p := range r.players {
		if p.Alive() {
			return p, true
		}
	}
	return nil, false
}

// AliveAt returns the alive player standing on the cell, if any.
func (r *Roster) AliveAt(pos arena.Point) (*Player, bool) {
	for _, p := range r.players {
		if p.Alive() && p.Position() == pos {
			return p, true
		}
	}
	return nil, false
}

func (r *Roster) renumber() {
	for i, p := range r.players {
		p.id = i
	}
}
