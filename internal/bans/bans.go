package bans

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Ban is one banned address. A zero ExpiresAt with Permanent set means the
// ban never lapses.
type Ban struct {
	IP        string    `json:"ip"`
	Name      string    `json:"name,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	BannedAt  time.Time `json:"banned_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Permanent bool      `json:"permanent"`
}

func (b *Ban) expired(now time.Time) bool {
	return !b.Permanent && now.After(b.ExpiresAt)
}

// List holds the IP bans backing a server. It is only touched from the
// simulation goroutine, so it carries no lock.
type List struct {
	byIP     map[string]*Ban
	filePath string
}

func NewList(filePath string) *List {
	return &List{
		byIP:     make(map[string]*Ban),
		filePath: filePath,
	}
}

// Load reads the bans file, dropping entries that have already expired. A
// missing file is an empty list.
func (l *List) Load() error {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read bans file: %w", err)
	}

	var entries []*Ban
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to parse bans file: %w", err)
	}

	now := time.Now()
	l.byIP = make(map[string]*Ban, len(entries))
	for _, ban := range entries {
		if ban.IP == "" || ban.expired(now) {
			continue
		}
		l.byIP[ban.IP] = ban
	}

	return nil
}

func (l *List) Save() error {
	entries := make([]*Ban, 0, len(l.byIP))
	for _, ban := range l.byIP {
		entries = append(entries, ban)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal bans: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create bans directory: %w", err)
	}
	if err := os.WriteFile(l.filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write bans file: %w", err)
	}

	return nil
}

// IsBanned reports whether ip carries an active ban. Expired entries are
// dropped on lookup.
func (l *List) IsBanned(ip string) (*Ban, bool) {
	ban, ok := l.byIP[ip]
	if !ok {
		return nil, false
	}
	if ban.expired(time.Now()) {
		delete(l.byIP, ip)
		return nil, false
	}
	return ban, true
}

// Ban adds an entry and persists the list. A zero or negative duration
// makes the ban permanent.
func (l *List) Ban(ip, name, reason string, duration time.Duration) error {
	ban := &Ban{
		IP:       ip,
		Name:     name,
		Reason:   reason,
		BannedAt: time.Now(),
	}
	if duration <= 0 {
		ban.Permanent = true
	} else {
		ban.ExpiresAt = ban.BannedAt.Add(duration)
	}

	l.byIP[ip] = ban
	return l.Save()
}

func (l *List) Unban(ip string) error {
	if _, ok := l.byIP[ip]; !ok {
		return fmt.Errorf("no ban for %s", ip)
	}
	delete(l.byIP, ip)
	return l.Save()
}

func (l *List) All() []*Ban {
	now := time.Now()
	entries := make([]*Ban, 0, len(l.byIP))
	for _, ban := range l.byIP {
		if ban.expired(now) {
			continue
		}
		entries = append(entries, ban)
	}
	return entries
}

func (l *List) Count() int { return len(l.byIP) }
