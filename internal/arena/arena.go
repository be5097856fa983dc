package arena

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/kjelba/bombfest/internal/mapmeta"
)

//go:embed maps/default.map
var defaultSource []byte

// MinStartingPositions is the structural minimum for a playable arena.
const MinStartingPositions = 2

type Point struct {
	X, Y int
}

type Tile uint8

const (
	TileFloor Tile = iota
	TileWall
	TileCrate
)

// Options tune the bomb model of a parsed arena.
type Options struct {
	Fuse        time.Duration
	BlastRadius int
}

func (o Options) withDefaults() Options {
	if o.Fuse == 0 {
		o.Fuse = 3 * time.Second
	}
	if o.BlastRadius == 0 {
		o.BlastRadius = 2
	}
	return o
}

// Arena is the authoritative grid: tiles, starting positions and active
// bombs. It is owned and mutated by the simulation goroutine only.
type Arena struct {
	name   string
	author string
	width  int
	height int
	tiles  [][]Tile
	spawns []Point
	bombs  []*Bomb

	source      []byte
	opts        Options
	onExplosion func(cells []Point)
}

// DefaultSource returns the embedded fallback map.
func DefaultSource() []byte {
	return defaultSource
}

// Parse builds an arena from map file source. Map files are a rectangular
// character grid optionally preceded by "; key = value" metadata lines:
// '#' wall, '+' crate, '.' or ' ' floor, digits 0-9 starting positions.
func Parse(source []byte, opts Options) (*Arena, error) {
	a := &Arena{
		source: append([]byte(nil), source...),
		opts:   opts.withDefaults(),
	}
	if err := a.load(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Arena) load() error {
	meta, rows := mapmeta.Split(a.source)
	a.name = meta.Name
	a.author = meta.Author

	if len(rows) == 0 {
		return fmt.Errorf("map has no grid rows")
	}

	width := len(rows[0])
	spawns := make(map[int]Point)
	tiles := make([][]Tile, len(rows))

	for y, row := range rows {
		if len(row) != width {
			return fmt.Errorf("map is not rectangular: row %d is %d wide, expected %d", y, len(row), width)
		}
		tiles[y] = make([]Tile, width)
		for x, ch := range row {
			switch {
			case ch == '#':
				tiles[y][x] = TileWall
			case ch == '+':
				tiles[y][x] = TileCrate
			case ch == '.' || ch == ' ':
				tiles[y][x] = TileFloor
			case ch >= '0' && ch <= '9':
				slot := int(ch - '0')
				if _, dup := spawns[slot]; dup {
					return fmt.Errorf("duplicate starting position %d", slot)
				}
				spawns[slot] = Point{X: x, Y: y}
				tiles[y][x] = TileFloor
			default:
				return fmt.Errorf("unknown map character %q at %d,%d", ch, x, y)
			}
		}
	}

	if len(spawns) < MinStartingPositions {
		return fmt.Errorf("map has %d starting positions, need at least %d", len(spawns), MinStartingPositions)
	}

	ordered := make([]Point, len(spawns))
	for slot := 0; slot < len(spawns); slot++ {
		pos, ok := spawns[slot]
		if !ok {
			return fmt.Errorf("starting positions are not contiguous: missing slot %d", slot)
		}
		ordered[slot] = pos
	}

	a.width = width
	a.height = len(rows)
	a.tiles = tiles
	a.spawns = ordered
	a.bombs = nil
	return nil
}

// Reset restores the arena to its parsed source state: crates back in place,
// all bombs cleared. The explosion handler and options survive.
func (a *Arena) Reset() {
	// source was accepted once, a reload cannot fail
	_ = a.load()
}

func (a *Arena) Name() string {
	if a.name == "" {
		return "unnamed"
	}
	return a.name
}

func (a *Arena) Author() string { return a.author }

func (a *Arena) Size() (width, height int) {
	return a.width, a.height
}

// StartingPositions returns the spawn slots in id order. Its length bounds
// room capacity.
func (a *Arena) StartingPositions() []Point {
	return a.spawns
}

func (a *Arena) Contains(p Point) bool {
	return p.X >= 0 && p.X < a.width && p.Y >= 0 && p.Y < a.height
}

func (a *Arena) TileAt(p Point) Tile {
	if !a.Contains(p) {
		return TileWall
	}
	return a.tiles[p.Y][p.X]
}

// IsWalkable reports whether a player may stand on the cell. Bombs are
// tracked separately; see BombAt.
func (a *Arena) IsWalkable(p Point) bool {
	return a.TileAt(p) == TileFloor
}

// Rows renders the current tile grid for snapshot encoding.
func (a *Arena) Rows() []string {
	rows := make([]string, a.height)
	var b strings.Builder
	for y := 0; y < a.height; y++ {
		b.Reset()
		for x := 0; x < a.width; x++ {
			switch a.tiles[y][x] {
			case TileWall:
				b.WriteByte('#')
			case TileCrate:
				b.WriteByte('+')
			default:
				b.WriteByte('.')
			}
		}
		rows[y] = b.String()
	}
	return rows
}

// SetExplosionHandler registers the callback fired synchronously for every
// detonation with the full affected cell set.
func (a *Arena) SetExplosionHandler(fn func(cells []Point)) {
	a.onExplosion = fn
}
