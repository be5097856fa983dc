// Package arenagen produces classic symmetric arena layouts: solid border,
// pillar lattice, random crates, cleared corner spawn areas. The output is
// arena source text.
package arenagen

import (
	"bytes"
	"fmt"
)

const (
	MinSize     = 7
	MaxSize     = 51
	maxSpawns   = 4
	defaultSize = 15
)

type Options struct {
	Width        int
	Height       int
	Spawns       int     // 2..4, placed in the corners
	CrateDensity float64 // chance of a crate on a free cell, 0..1
	Seed         uint32
	Name         string
}

func (o Options) withDefaults() Options {
	if o.Width == 0 {
		o.Width = defaultSize
	}
	if o.Height == 0 {
		o.Height = defaultSize - 2
	}
	if o.Spawns == 0 {
		o.Spawns = maxSpawns
	}
	if o.CrateDensity == 0 {
		o.CrateDensity = 0.55
	}
	if o.Name == "" {
		o.Name = fmt.Sprintf("Generated %d", o.Seed)
	}
	return o
}

// lcg is the same multiplicative generator the old map tools used. Equal
// seeds reproduce equal layouts across platforms.
type lcg struct {
	seed uint32
}

func (g *lcg) next() uint32 {
	g.seed = g.seed*214013 + 2531011
	return (g.seed >> 16) & 0x7FFF
}

func (g *lcg) chance(p float64) bool {
	return float64(g.next()) < p*0x8000
}

// Generate renders a layout for the given options.
func Generate(opts Options) ([]byte, error) {
	opts = opts.withDefaults()

	if opts.Width < MinSize || opts.Height < MinSize {
		return nil, fmt.Errorf("arena too small: %dx%d (minimum %d)", opts.Width, opts.Height, MinSize)
	}
	if opts.Width > MaxSize || opts.Height > MaxSize {
		return nil, fmt.Errorf("arena too large: %dx%d (maximum %d)", opts.Width, opts.Height, MaxSize)
	}
	if opts.Spawns < 2 || opts.Spawns > maxSpawns {
		return nil, fmt.Errorf("spawn count %d out of range 2..%d", opts.Spawns, maxSpawns)
	}
	if opts.CrateDensity < 0 || opts.CrateDensity > 1 {
		return nil, fmt.Errorf("crate density %v out of range 0..1", opts.CrateDensity)
	}

	w, h := opts.Width, opts.Height
	grid := make([][]byte, h)
	for y := range grid {
		grid[y] = bytes.Repeat([]byte{'.'}, w)
	}

	// border
	for x := 0; x < w; x++ {
		grid[0][x] = '#'
		grid[h-1][x] = '#'
	}
	for y := 0; y < h; y++ {
		grid[y][0] = '#'
		grid[y][w-1] = '#'
	}

	// pillar lattice on even interior coordinates
	for y := 2; y < h-1; y += 2 {
		for x := 2; x < w-1; x += 2 {
			grid[y][x] = '#'
		}
	}

	// crates on the remaining floor
	rng := &lcg{seed: opts.Seed}
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			if grid[y][x] == '.' && rng.chance(opts.CrateDensity) {
				grid[y][x] = '+'
			}
		}
	}

	// corner spawns with a cleared elbow so nobody starts walled in
	corners := [maxSpawns][2]int{
		{1, 1},
		{w - 2, 1},
		{1, h - 2},
		{w - 2, h - 2},
	}
	for i := 0; i < opts.Spawns; i++ {
		x, y := corners[i][0], corners[i][1]
		grid[y][x] = byte('0' + i)
		clearAround(grid, x, y)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "; name = %s\n", opts.Name)
	fmt.Fprintf(&buf, "; author = arenagen seed %d\n", opts.Seed)
	for _, row := range grid {
		buf.Write(row)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func clearAround(grid [][]byte, x, y int) {
	for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
		nx, ny := x+d[0], y+d[1]
		if ny < 0 || ny >= len(grid) || nx < 0 || nx >= len(grid[ny]) {
			continue
		}
		if grid[ny][nx] == '+' {
			grid[ny][nx] = '.'
		}
	}
}
