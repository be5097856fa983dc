package ping

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// Info is the discovery payload advertised on the LAN.
type Info struct {
	Name        string `json:"name"`
	Players     int    `json:"players"`
	Capacity    int    `json:"capacity"`
	Map         string `json:"map"`
	Round       int    `json:"round"`
	RoundsTotal int    `json:"rounds_total"`
	State       string `json:"state"`
}

// Handler answers LAN discovery probes on a UDP port. "PING" gets "PONG",
// "INFO" gets the current Info as JSON. It runs its own goroutine, so the
// info snapshot is guarded by a mutex.
type Handler struct {
	conn          *net.UDPConn
	logger        *slog.Logger
	stopChan      chan struct{}
	listenAddress string

	mu   sync.Mutex
	info Info
}

func NewHandler(address string, info Info, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		info:          info,
		logger:        logger,
		stopChan:      make(chan struct{}),
		listenAddress: address,
	}
}

func (h *Handler) Start() error {
	addr, err := net.ResolveUDPAddr("udp", h.listenAddress)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %w", err)
	}

	h.conn = conn
	h.logger.Info("discovery handler started", "address", h.listenAddress)

	go h.handlePackets()

	return nil
}

func (h *Handler) Stop() {
	close(h.stopChan)
	if h.conn != nil {
		h.conn.Close()
	}
	h.logger.Info("discovery handler stopped")
}

// Update replaces the advertised snapshot.
func (h *Handler) Update(info Info) {
	h.mu.Lock()
	h.info = info
	h.mu.Unlock()
}

func (h *Handler) snapshot() Info {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.info
}

func (h *Handler) handlePackets() {
	buffer := make([]byte, 64)

	for {
		n, addr, err := h.conn.ReadFromUDP(buffer)
		if err != nil {
			select {
			case <-h.stopChan:
				return
			default:
				h.logger.Error("failed to read UDP packet", "error", err)
				continue
			}
		}

		if n > 0 {
			h.handlePacket(buffer[:n], addr)
		}
	}
}

func (h *Handler) handlePacket(data []byte, addr *net.UDPAddr) {
	switch string(data) {
	case "PING":
		h.reply([]byte("PONG"), addr)
	case "INFO":
		payload, err := json.Marshal(h.snapshot())
		if err != nil {
			h.logger.Error("failed to marshal server info", "error", err)
			return
		}
		h.reply(payload, addr)
	}
}

func (h *Handler) reply(data []byte, addr *net.UDPAddr) {
	if _, err := h.conn.WriteToUDP(data, addr); err != nil {
		h.logger.Error("failed to send discovery response", "error", err, "addr", addr)
		return
	}
	h.logger.Debug("sent discovery response", "addr", addr)
}
