// Package observer exposes a read-mostly web boundary for dashboards and
// spectator tools: a WebSocket event stream, a status endpoint and a small
// control surface. It never touches game state directly; it receives copies
// through the event chain and forwards control actions to the simulation
// goroutine.
package observer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kjelba/bombfest/internal/arena"
	"github.com/kjelba/bombfest/internal/game"
	"github.com/kjelba/bombfest/internal/player"
)

const sendBuffer = 32

// event is the envelope every stream message uses.
type event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type playerDTO struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Alive bool   `json:"alive"`
	Wins  int    `json:"wins"`
	Local bool   `json:"local"`
}

type arenaDTO struct {
	Name   string   `json:"name"`
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Rows   []string `json:"rows"`
}

type statusDTO struct {
	Name        string      `json:"name"`
	State       string      `json:"state"`
	Round       int         `json:"round"`
	RoundsTotal int         `json:"rounds_total"`
	Players     []playerDTO `json:"players"`
	Arena       arenaDTO    `json:"arena"`
	Observers   int         `json:"observers"`
}

type connection struct {
	ws   *websocket.Conn
	send chan []byte
}

// Hub maintains the set of observer connections and fans events out to
// them. Slow consumers are dropped rather than allowed to stall the hub.
type Hub struct {
	connections map[*connection]bool
	broadcast   chan []byte
	register    chan *connection
	unregister  chan *connection
	count       chan chan int
	done        chan struct{}
}

func newHub() *Hub {
	return &Hub{
		connections: make(map[*connection]bool),
		broadcast:   make(chan []byte, 64),
		register:    make(chan *connection),
		unregister:  make(chan *connection),
		count:       make(chan chan int),
		done:        make(chan struct{}),
	}
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			for c := range h.connections {
				close(c.send)
				delete(h.connections, c)
			}
			return
		case c := <-h.register:
			h.connections[c] = true
		case c := <-h.unregister:
			if _, ok := h.connections[c]; ok {
				delete(h.connections, c)
				close(c.send)
			}
		case reply := <-h.count:
			reply <- len(h.connections)
		case message := <-h.broadcast:
			for c := range h.connections {
				select {
				case c.send <- message:
				default:
					close(c.send)
					delete(h.connections, c)
				}
			}
		}
	}
}

func (h *Hub) observers() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Service is the HTTP/WebSocket front. Event methods are called on the
// simulation goroutine and must only copy and enqueue.
type Service struct {
	log     *slog.Logger
	hub     *Hub
	server  *http.Server
	name    string
	rounds  int
	control func(action string) error

	mu     sync.Mutex
	status statusDTO
}

// Options for a Service. Control receives "start", "pause" and "stop" from
// the control endpoint and is expected to hand them to the simulation
// goroutine.
type Options struct {
	Addr        string
	ServerName  string
	RoundsTotal int
	Control     func(action string) error
	Logger      *slog.Logger
}

func NewService(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Service{
		log:     opts.Logger,
		hub:     newHub(),
		name:    opts.ServerName,
		rounds:  opts.RoundsTotal,
		control: opts.Control,
	}
	s.status = statusDTO{Name: s.name, State: "idle", RoundsTotal: s.rounds}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/control", s.handleControl)
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Service) Start() {
	go s.hub.run()
	go func() {
		s.log.Info("observer listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("observer server failed", "error", err)
		}
	}()
}

func (s *Service) Stop() {
	close(s.hub.done)
	s.server.Close()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: localOrigin,
}

// localOrigin admits non-browser clients, same-origin requests and
// localhost development pages.
func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	host := u.Host
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	return host == "localhost" || host == "127.0.0.1"
}

func (s *Service) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", "error", err)
		return
	}

	c := &connection{ws: ws, send: make(chan []byte, sendBuffer)}
	s.hub.register <- c

	// greet the new observer with the current status
	if payload, err := json.Marshal(event{Type: "status", Data: s.snapshot()}); err == nil {
		c.send <- payload
	}

	go c.writePump()
	go c.readPump(s.hub)
}

func (c *connection) writePump() {
	for message := range c.send {
		if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
			break
		}
	}
	c.ws.Close()
}

// readPump discards inbound frames; the stream is one-way. It exists to
// notice closed connections.
func (c *connection) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.snapshot())
}

func (s *Service) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	switch req.Action {
	case "start", "pause", "stop":
	default:
		http.Error(w, fmt.Sprintf("unknown action %q", req.Action), http.StatusBadRequest)
		return
	}

	if s.control == nil {
		http.Error(w, "control disabled", http.StatusServiceUnavailable)
		return
	}
	if err := s.control(req.Action); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Service) snapshot() statusDTO {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.Observers = s.hub.observers()
	return st
}

func (s *Service) publish(typ string, data interface{}) {
	payload, err := json.Marshal(event{Type: typ, Data: data})
	if err != nil {
		s.log.Error("failed to marshal observer event", "type", typ, "error", err)
		return
	}
	select {
	case s.hub.broadcast <- payload:
	default:
		s.log.Debug("observer broadcast queue full, dropping", "type", typ)
	}
}

func copyPlayers(players []*player.Player) []playerDTO {
	out := make([]playerDTO, 0, len(players))
	for _, p := range players {
		out = append(out, playerDTO{
			ID:    p.ID(),
			Name:  p.Name(),
			X:     p.Position().X,
			Y:     p.Position().Y,
			Alive: p.Alive(),
			Wins:  p.Wins(),
			Local: p.Local(),
		})
	}
	return out
}

func copyArena(a *arena.Arena) arenaDTO {
	w, h := a.Size()
	return arenaDTO{Name: a.Name(), Width: w, Height: h, Rows: a.Rows()}
}

// game.Events implementation.

func (s *Service) PlayerJoined(p *player.Player) {
	s.publish("player_join", playerDTO{ID: p.ID(), Name: p.Name(), Alive: p.Alive(), Local: p.Local()})
}

func (s *Service) PlayerLeft(p *player.Player) {
	s.publish("player_leave", playerDTO{ID: p.ID(), Name: p.Name()})
}

func (s *Service) PlayerDied(p *player.Player) {
	s.publish("player_death", playerDTO{ID: p.ID(), Name: p.Name(), X: p.Position().X, Y: p.Position().Y})
}

func (s *Service) RoundStarted(round int) {
	s.mu.Lock()
	s.status.State = "playing"
	s.status.Round = round
	s.mu.Unlock()
	s.publish("round_start", map[string]int{"round": round})
}

func (s *Service) RoundEnded(winner *player.Player, round int) {
	s.mu.Lock()
	s.status.State = "resolving"
	s.mu.Unlock()

	data := map[string]interface{}{"round": round, "winner_id": -1}
	if winner != nil {
		data["winner_id"] = winner.ID()
		data["winner_name"] = winner.Name()
	}
	s.publish("round_end", data)
}

func (s *Service) MatchEnded(standings []game.Standing) {
	s.mu.Lock()
	s.status.State = "idle"
	s.status.Round = 0
	s.mu.Unlock()
	s.publish("match_over", standings)
}

func (s *Service) RosterChanged(players []*player.Player) {
	dto := copyPlayers(players)
	s.mu.Lock()
	s.status.Players = dto
	s.mu.Unlock()
	s.publish("roster", dto)
}

func (s *Service) ArenaChanged(a *arena.Arena) {
	dto := copyArena(a)
	s.mu.Lock()
	s.status.Arena = dto
	s.mu.Unlock()
	s.publish("arena", dto)
}

func (s *Service) TickFinished(tick uint64) {
	s.publish("tick", map[string]uint64{"tick": tick})
}
