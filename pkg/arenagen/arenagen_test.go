package arenagen

import (
	"bytes"
	"testing"

	"github.com/kjelba/bombfest/internal/arena"
)

func TestGeneratedLayoutParses(t *testing.T) {
	source, err := Generate(Options{Seed: 42})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	a, err := arena.Parse(source, arena.Options{})
	if err != nil {
		t.Fatalf("generated layout rejected:\n%s\n%v", source, err)
	}

	if got := len(a.StartingPositions()); got != 4 {
		t.Fatalf("expected 4 spawns, got %d", got)
	}
	w, h := a.Size()
	if w != 15 || h != 13 {
		t.Fatalf("unexpected default size %dx%d", w, h)
	}
}

func TestDeterministicForSeed(t *testing.T) {
	a, err := Generate(Options{Seed: 7})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := Generate(Options{Seed: 7})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("same seed produced different layouts")
	}

	c, err := Generate(Options{Seed: 8})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if bytes.Equal(a, c) {
		t.Fatal("different seeds produced identical layouts")
	}
}

func TestSpawnNeighborhoodsClear(t *testing.T) {
	source, err := Generate(Options{Seed: 3, CrateDensity: 1})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	a, err := arena.Parse(source, arena.Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	for i, spawn := range a.StartingPositions() {
		free := 0
		for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			p := arena.Point{X: spawn.X + d[0], Y: spawn.Y + d[1]}
			if a.Contains(p) && a.TileAt(p) == arena.TileFloor {
				free++
			}
		}
		if free == 0 {
			t.Fatalf("spawn %d is walled in:\n%s", i, source)
		}
	}
}

func TestRejectsBadOptions(t *testing.T) {
	cases := []Options{
		{Width: 3, Height: 3},
		{Width: 99, Height: 9},
		{Spawns: 1},
		{Spawns: 5},
		{CrateDensity: 1.5},
	}
	for _, opts := range cases {
		if _, err := Generate(opts); err == nil {
			t.Errorf("options %+v accepted", opts)
		}
	}
}
