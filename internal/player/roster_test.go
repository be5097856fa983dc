package player

import (
	"testing"
	"time"

	"github.com/kjelba/bombfest/internal/arena"
)

type fakeConn struct {
	sent   [][]byte
	kicked string
}

func (c *fakeConn) Send(data []byte)     { c.sent = append(c.sent, data) }
func (c *fakeConn) Kick(reason string)   { c.kicked = reason }
func (c *fakeConn) Addr() string         { return "test:0" }

func testArena(t *testing.T) *arena.Arena {
	t.Helper()
	a, err := arena.Parse([]byte("#######\n#0...1#\n#2...3#\n#######\n"), arena.Options{Fuse: time.Second})
	if err != nil {
		t.Fatalf("arena: %v", err)
	}
	return a
}

func TestAddAssignsSequentialIDs(t *testing.T) {
	r := NewRoster()

	for i := 0; i < 3; i++ {
		p, err := r.Add("p", &fakeConn{}, 4)
		if err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
		if p.ID() != i {
			t.Fatalf("expected id %d, got %d", i, p.ID())
		}
	}

	if _, err := r.Add("local", nil, 4); err != nil {
		t.Fatalf("add local: %v", err)
	}
	if _, err := r.Add("overflow", &fakeConn{}, 4); err == nil {
		t.Fatal("expected capacity rejection")
	}
}

func TestRemoveRenumbersDensely(t *testing.T) {
	r := NewRoster()
	var ps []*Player
	for i := 0; i < 4; i++ {
		p, _ := r.Add("p", &fakeConn{}, 8)
		ps = append(ps, p)
	}

	if !r.Remove(ps[1]) {
		t.Fatal("remove failed")
	}
	if r.Remove(ps[1]) {
		t.Fatal("double remove should fail")
	}

	for i, p := range r.All() {
		if p.ID() != i {
			t.Fatalf("id %d at index %d after renumber", p.ID(), i)
		}
	}
	if r.Count() != 3 {
		t.Fatalf("expected 3 players, got %d", r.Count())
	}
}

func TestPruneDisconnected(t *testing.T) {
	r := NewRoster()
	p0, _ := r.Add("a", &fakeConn{}, 8)
	p1, _ := r.Add("b", &fakeConn{}, 8)
	p2, _ := r.Add("c", &fakeConn{}, 8)

	p1.MarkDisconnected()

	// a ghost entry keeps its id until pruned
	if p2.ID() != 2 {
		t.Fatalf("id changed before prune: %d", p2.ID())
	}
	if p1.Conn() != nil {
		t.Fatal("disconnected player still exposes a channel")
	}

	removed := r.PruneDisconnected()
	if len(removed) != 1 || removed[0] != p1 {
		t.Fatalf("unexpected prune result %#v", removed)
	}
	if p0.ID() != 0 || p2.ID() != 1 {
		t.Fatalf("ids not dense after prune: %d, %d", p0.ID(), p2.ID())
	}
}

func TestEvictOverflow(t *testing.T) {
	r := NewRoster()
	n0, _ := r.Add("n0", &fakeConn{}, 8)
	local, _ := r.Add("local", nil, 8)
	n2, _ := r.Add("n2", &fakeConn{}, 8)
	n3, _ := r.Add("n3", &fakeConn{}, 8)

	evicted, err := r.EvictOverflow(2)
	if err != nil {
		t.Fatalf("evict: %v", err)
	}

	// highest ids go first, locals are skipped
	if len(evicted) != 2 || evicted[0] != n3 || evicted[1] != n2 {
		t.Fatalf("unexpected eviction order %#v", evicted)
	}
	if r.Count() != 2 {
		t.Fatalf("expected 2 remaining, got %d", r.Count())
	}
	if n0.ID() != 0 || local.ID() != 1 {
		t.Fatalf("ids not dense after eviction: %d, %d", n0.ID(), local.ID())
	}
}

func TestEvictOverflowRefusesWhenLocalsExceedCapacity(t *testing.T) {
	r := NewRoster()
	r.Add("l0", nil, 8)
	r.Add("l1", nil, 8)
	r.Add("n", &fakeConn{}, 8)

	if _, err := r.EvictOverflow(1); err == nil {
		t.Fatal("expected error when locals alone exceed capacity")
	}
	if r.Count() != 3 {
		t.Fatal("roster mutated despite refusal")
	}
}

func TestReposition(t *testing.T) {
	r := NewRoster()
	a := testArena(t)
	for i := 0; i < 3; i++ {
		r.Add("p", &fakeConn{}, len(a.StartingPositions()))
	}

	r.Reposition(a)

	spawns := a.StartingPositions()
	for i, p := range r.All() {
		if p.Position() != spawns[i] {
			t.Fatalf("player %d at %v, want %v", i, p.Position(), spawns[i])
		}
	}
}

func TestAliveQueries(t *testing.T) {
	r := NewRoster()
	p0, _ := r.Add("a", &fakeConn{}, 4)
	p1, _ := r.Add("b", &fakeConn{}, 4)

	if r.AliveCount() != 0 {
		t.Fatal("players should start dead until a round begins")
	}
	if _, ok := r.FirstAlive(); ok {
		t.Fatal("no alive player expected")
	}

	p0.SetAlive(true)
	p1.SetAlive(true)
	p0.SetPosition(arena.Point{X: 1, Y: 1})
	p1.SetPosition(arena.Point{X: 2, Y: 1})

	if r.AliveCount() != 2 {
		t.Fatalf("alive count %d", r.AliveCount())
	}
	if got, ok := r.FirstAlive(); !ok || got != p0 {
		t.Fatal("first alive should be lowest id")
	}
	if got, ok := r.AliveAt(arena.Point{X: 2, Y: 1}); !ok || got != p1 {
		t.Fatal("AliveAt lookup failed")
	}

	p1.SetAlive(false)
	if _, ok := r.AliveAt(arena.Point{X: 2, Y: 1}); ok {
		t.Fatal("dead player should not occupy a cell")
	}
}
