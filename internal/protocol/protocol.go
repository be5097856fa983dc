// Package protocol implements the newline-framed text protocol spoken with
// game clients. Inbound packets carry a single intent or a NAME announcement;
// outbound packets carry per-recipient state snapshots. Display names travel
// as Latin-1 for compatibility with legacy clients.
package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/kjelba/bombfest/internal/arena"
)

const MaxNameLen = 16

type Command uint8

const (
	CommandNone Command = iota
	CommandUp
	CommandDown
	CommandLeft
	CommandRight
	CommandBomb
)

func (c Command) String() string {
	switch c {
	case CommandUp:
		return "UP"
	case CommandDown:
		return "DOWN"
	case CommandLeft:
		return "LEFT"
	case CommandRight:
		return "RIGHT"
	case CommandBomb:
		return "BOMB"
	default:
		return ""
	}
}

// Move reports the one-cell movement for a directional command.
func (c Command) Move() (dx, dy int, ok bool) {
	switch c {
	case CommandUp:
		return 0, -1, true
	case CommandDown:
		return 0, 1, true
	case CommandLeft:
		return -1, 0, true
	case CommandRight:
		return 1, 0, true
	default:
		return 0, 0, false
	}
}

func ParseCommand(word string) (Command, error) {
	switch word {
	case "UP":
		return CommandUp, nil
	case "DOWN":
		return CommandDown, nil
	case "LEFT":
		return CommandLeft, nil
	case "RIGHT":
		return CommandRight, nil
	case "BOMB":
		return CommandBomb, nil
	default:
		return CommandNone, fmt.Errorf("unknown command %q", word)
	}
}

type MessageKind uint8

const (
	MessageCommand MessageKind = iota
	MessageName
)

type Message struct {
	Kind    MessageKind
	Command Command
	Name    string
}

var latin1Decoder = charmap.ISO8859_1.NewDecoder()
var latin1Encoder = encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder())

// ParseMessage decodes one inbound packet.
func ParseMessage(data []byte) (Message, error) {
	line := strings.TrimRight(string(data), "\r\n")

	if rest, ok := strings.CutPrefix(line, "NAME "); ok {
		name, err := DecodeName([]byte(rest))
		if err != nil {
			return Message{}, err
		}
		return Message{Kind: MessageName, Name: name}, nil
	}

	cmd, err := ParseCommand(line)
	if err != nil {
		return Message{}, err
	}
	return Message{Kind: MessageCommand, Command: cmd}, nil
}

// DecodeName converts a Latin-1 wire name into a sanitized display name:
// control characters stripped, length clamped, empty rejected.
func DecodeName(raw []byte) (string, error) {
	decoded, err := latin1Decoder.Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("failed to decode name: %w", err)
	}

	var b strings.Builder
	for _, r := range string(decoded) {
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
		if b.Len() >= MaxNameLen {
			break
		}
	}

	name := strings.TrimSpace(b.String())
	if name == "" {
		return "", fmt.Errorf("empty display name")
	}
	return name, nil
}

func encodeName(name string) string {
	encoded, err := latin1Encoder.String(name)
	if err != nil {
		return "?"
	}
	return encoded
}

// PlayerState is the per-player view carried in a snapshot.
type PlayerState struct {
	ID   int
	X, Y int
	Wins int
	Name string
}

// EncodeState serializes one recipient's view of the world after a tick. The
// opponents slice must already exclude the recipient; the encoder only adds
// the recipient's own position via the SELF line.
func EncodeState(self PlayerState, opponents []PlayerState, a *arena.Arena, round int, tick uint64) []byte {
	var b strings.Builder

	b.WriteString("STATE ")
	b.WriteString(strconv.Itoa(round))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(tick, 10))
	b.WriteByte('\n')

	b.WriteString("SELF ")
	b.WriteString(strconv.Itoa(self.X))
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(self.Y))
	b.WriteByte('\n')

	for _, o := range opponents {
		fmt.Fprintf(&b, "PLAYER %d %d %d %d %s\n", o.ID, o.X, o.Y, o.Wins, encodeName(o.Name))
	}

	for _, bomb := range a.Bombs() {
		fmt.Fprintf(&b, "BOMB %d %d\n", bomb.Position.X, bomb.Position.Y)
	}

	w, h := a.Size()
	fmt.Fprintf(&b, "ARENA %d %d\n", w, h)
	for _, row := range a.Rows() {
		b.WriteString(row)
		b.WriteByte('\n')
	}

	b.WriteString("END\n")
	return []byte(b.String())
}

// EncodeEndOfRound announces a round termination; winnerID is -1 when the
// last players died simultaneously.
func EncodeEndOfRound(winnerID, round int) []byte {
	return []byte(fmt.Sprintf("ENDOFROUND %d %d\n", winnerID, round))
}

// EncodeKicked precedes a forced disconnect.
func EncodeKicked(reason string) []byte {
	return []byte("KICKED " + encodeName(reason) + "\n")
}
