package network

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/codecat/go-enet"
)

// Host wraps an ENet server host. All methods must be called from the
// goroutine that services it.
type Host struct {
	host     enet.Host
	port     uint16
	peers    int
	maxPeers int
	logger   *slog.Logger
}

type Event struct {
	Type      EventType
	Peer      enet.Peer
	Data      []byte
	ChannelID uint8
}

type EventType int

const (
	EventTypeNone EventType = iota
	EventTypeConnect
	EventTypeDisconnect
	EventTypeReceive
)

func NewHost(port int, maxPeers int, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}

	return &Host{
		port:     uint16(port),
		maxPeers: maxPeers,
		logger:   logger,
	}
}

func (h *Host) Listen() error {
	address := enet.NewListenAddress(h.port)

	var err error
	h.host, err = enet.NewHost(address, uint64(h.maxPeers), 1, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to create ENet host: %w", err)
	}

	h.logger.Info("listening", "port", h.port, "max_peers", h.maxPeers)
	return nil
}

func (h *Host) Close() {
	if h.host != nil {
		h.host.Destroy()
		h.host = nil
		h.logger.Info("host closed")
	}
}

// Service polls for the next network event, blocking for at most timeout.
// An Event with Type EventTypeNone means nothing happened.
func (h *Host) Service(timeout time.Duration) (*Event, error) {
	if h.host == nil {
		return nil, fmt.Errorf("host not listening")
	}

	enetEvent := h.host.Service(uint32(timeout.Milliseconds()))
	if enetEvent == nil {
		return &Event{Type: EventTypeNone}, nil
	}

	event := &Event{
		Peer: enetEvent.GetPeer(),
	}

	switch enetEvent.GetType() {
	case enet.EventConnect:
		event.Type = EventTypeConnect
		h.peers++
		h.logger.Debug("peer connected", "peer", PeerAddr(event.Peer))

	case enet.EventDisconnect:
		event.Type = EventTypeDisconnect
		if h.peers > 0 {
			h.peers--
		}
		h.logger.Debug("peer disconnected", "peer", PeerAddr(event.Peer))

	case enet.EventReceive:
		event.Type = EventTypeReceive
		packet := enetEvent.GetPacket()
		if packet != nil {
			event.Data = packet.GetData()
			event.ChannelID = enetEvent.GetChannelID()
			packet.Destroy()
		}
	}

	return event, nil
}

// SendPacket sends data to a single peer. Game state and round notices go
// out reliable; nothing in the protocol tolerates loss.
func (h *Host) SendPacket(peer enet.Peer, data []byte, reliable bool) error {
	if peer == nil {
		return fmt.Errorf("peer is nil")
	}

	flags := enet.PacketFlagUnsequenced
	if reliable {
		flags = enet.PacketFlagReliable
	}

	packet, err := enet.NewPacket(data, flags)
	if err != nil {
		return fmt.Errorf("failed to create packet: %w", err)
	}

	if err := peer.SendPacket(packet, 0); err != nil {
		return fmt.Errorf("failed to send packet: %w", err)
	}

	return nil
}

func (h *Host) DisconnectPeer(peer enet.Peer, immediate bool) {
	if peer == nil {
		return
	}

	if immediate {
		peer.DisconnectNow(0)
	} else {
		peer.Disconnect(0)
	}
}

func (h *Host) PeerCount() int { return h.peers }

// PeerAddr formats a peer's remote IP address.
func PeerAddr(peer enet.Peer) string {
	if peer == nil {
		return "?"
	}
	return peer.GetAddress().String()
}
