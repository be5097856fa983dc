package bans

import (
	"path/filepath"
	"testing"
	"time"
)

func TestBanRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bans.json")

	l := NewList(path)
	if err := l.Load(); err != nil {
		t.Fatalf("load of missing file should succeed: %v", err)
	}

	if err := l.Ban("10.0.0.1", "griefer", "blocking spawns", 0); err != nil {
		t.Fatalf("ban: %v", err)
	}
	if err := l.Ban("10.0.0.2", "", "", time.Hour); err != nil {
		t.Fatalf("ban: %v", err)
	}

	if _, ok := l.IsBanned("10.0.0.1"); !ok {
		t.Fatal("permanent ban not active")
	}
	if _, ok := l.IsBanned("10.0.0.3"); ok {
		t.Fatal("unknown ip reported banned")
	}

	// a fresh list reading the same file sees both bans
	reloaded := NewList(path)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Count() != 2 {
		t.Fatalf("expected 2 bans after reload, got %d", reloaded.Count())
	}

	ban, ok := reloaded.IsBanned("10.0.0.1")
	if !ok || ban.Reason != "blocking spawns" {
		t.Fatalf("ban details lost: %+v", ban)
	}
}

func TestExpiredBanDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bans.json")

	l := NewList(path)
	l.byIP["10.0.0.9"] = &Ban{
		IP:        "10.0.0.9",
		BannedAt:  time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	}

	if _, ok := l.IsBanned("10.0.0.9"); ok {
		t.Fatal("expired ban still active")
	}
	if l.Count() != 0 {
		t.Fatal("expired ban not removed on lookup")
	}
}

func TestUnban(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bans.json")

	l := NewList(path)
	if err := l.Ban("10.0.0.5", "", "", 0); err != nil {
		t.Fatalf("ban: %v", err)
	}
	if err := l.Unban("10.0.0.5"); err != nil {
		t.Fatalf("unban: %v", err)
	}
	if err := l.Unban("10.0.0.5"); err == nil {
		t.Fatal("double unban should fail")
	}
	if _, ok := l.IsBanned("10.0.0.5"); ok {
		t.Fatal("unbanned ip still banned")
	}
}
