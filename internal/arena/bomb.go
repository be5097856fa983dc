package arena

import (
	"fmt"
	"time"
)

// Bomb is owned by the arena. Owner is an identity reference only: the bomb
// stays armed and detonates even if the placing player leaves the roster.
type Bomb struct {
	Owner      int
	Position   Point
	Planted    time.Time
	DetonateAt time.Time
}

// PlaceBomb arms a bomb on the given cell. A cell holds at most one bomb.
func (a *Arena) PlaceBomb(pos Point, owner int, now time.Time) error {
	if !a.IsWalkable(pos) {
		return fmt.Errorf("cannot place bomb on blocked cell %d,%d", pos.X, pos.Y)
	}
	if a.BombAt(pos) {
		return fmt.Errorf("cell %d,%d already holds a bomb", pos.X, pos.Y)
	}

	a.bombs = append(a.bombs, &Bomb{
		Owner:      owner,
		Position:   pos,
		Planted:    now,
		DetonateAt: now.Add(a.opts.Fuse),
	})
	return nil
}

func (a *Arena) Bombs() []*Bomb {
	return a.bombs
}

func (a *Arena) BombAt(pos Point) bool {
	for _, b := range a.bombs {
		if b.Position == pos {
			return true
		}
	}
	return false
}

// DetonateDue explodes every bomb whose fuse has run out, including bombs
// reached by another blast in the same pass. The explosion handler fires once
// per bomb with that bomb's affected cell set. Returns the number of
// detonations.
func (a *Arena) DetonateDue(now time.Time) int {
	var due []*Bomb
	for _, b := range a.bombs {
		if !now.Before(b.DetonateAt) {
			due = append(due, b)
		}
	}

	count := 0
	for len(due) > 0 {
		b := due[0]
		due = due[1:]
		if !a.removeBomb(b) {
			// already consumed by a chain earlier in this pass
			continue
		}

		cells, chained := a.blast(b.Position)
		due = append(due, chained...)
		count++

		if a.onExplosion != nil {
			a.onExplosion(cells)
		}
	}
	return count
}

func (a *Arena) removeBomb(b *Bomb) bool {
	for i, other := range a.bombs {
		if other == b {
			a.bombs = append(a.bombs[:i], a.bombs[i+1:]...)
			return true
		}
	}
	return false
}

// blast computes the cross-shaped cell set for a detonation at center. Arms
// extend up to the blast radius, stop at walls, and are absorbed by the first
// crate they hit (which is destroyed). Bombs caught in the blast chain.
func (a *Arena) blast(center Point) (cells []Point, chained []*Bomb) {
	cells = append(cells, center)

	dirs := []Point{{0, -1}, {0, 1}, {-1, 0}, {1, 0}}
	for _, d := range dirs {
		for step := 1; step <= a.opts.BlastRadius; step++ {
			p := Point{X: center.X + d.X*step, Y: center.Y + d.Y*step}
			tile := a.TileAt(p)
			if tile == TileWall {
				break
			}

			cells = append(cells, p)

			if tile == TileCrate {
				a.tiles[p.Y][p.X] = TileFloor
				break
			}

			for _, other := range a.bombs {
				if other.Position == p {
					chained = append(chained, other)
				}
			}
		}
	}
	return cells, chained
}
