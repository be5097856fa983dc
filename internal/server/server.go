// Package server wires the simulation to the network: the ENet transport,
// the tick loop, LAN discovery, the observer boundary and the Lua hooks.
// All game state is owned by the run goroutine; other goroutines reach it
// through the control channel.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/codecat/go-enet"

	"github.com/kjelba/bombfest/internal/arena"
	"github.com/kjelba/bombfest/internal/bans"
	"github.com/kjelba/bombfest/internal/game"
	"github.com/kjelba/bombfest/internal/network"
	"github.com/kjelba/bombfest/internal/observer"
	"github.com/kjelba/bombfest/internal/ping"
	"github.com/kjelba/bombfest/internal/player"
	"github.com/kjelba/bombfest/internal/protocol"
	"github.com/kjelba/bombfest/internal/script"
	"github.com/kjelba/bombfest/pkg/arenagen"
	"github.com/kjelba/bombfest/pkg/config"
)

const pollInterval = 20 * time.Millisecond

type Server struct {
	config  *config.Config
	log     *slog.Logger
	network *network.Host
	manager *game.Manager
	banList *bans.List
	ping    *ping.Handler
	obs     *observer.Service
	scripts *script.Engine

	conns    map[enet.Peer]*peerConn
	control  chan func()
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	running  bool
	mapIndex int
}

// peerConn adapts an ENet peer to the player.Conn the game layer expects.
type peerConn struct {
	srv  *Server
	peer enet.Peer
}

func (c *peerConn) Send(data []byte) {
	if err := c.srv.network.SendPacket(c.peer, data, true); err != nil {
		c.srv.log.Debug("send failed", "peer", c.Addr(), "error", err)
	}
}

func (c *peerConn) Kick(reason string) {
	c.Send(protocol.EncodeKicked(reason))
	c.srv.network.DisconnectPeer(c.peer, false)
}

func (c *peerConn) Addr() string {
	return network.PeerAddr(c.peer)
}

func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	srv := &Server{
		config:  cfg,
		log:     logger,
		network: network.NewHost(cfg.Server.Port, cfg.Server.MaxClients, logger),
		conns:   make(map[enet.Peer]*peerConn),
		control: make(chan func(), 16),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	srv.banList = bans.NewList(cfg.Server.BansFile)
	if err := srv.banList.Load(); err != nil {
		logger.Warn("failed to load bans", "error", err)
	}

	a, err := srv.loadArenaSpec(cfg.Server.Maps[0])
	if err != nil {
		return nil, fmt.Errorf("failed to load arena %q: %w", cfg.Server.Maps[0], err)
	}

	srv.manager = game.NewManager(a, game.Options{
		Logger:         logger,
		RoundsPerMatch: cfg.Server.RoundsPerMatch,
	})
	srv.manager.Events().Register(&serverEvents{srv})

	srv.scripts = script.NewEngine(srv.manager, srv, logger)
	if err := srv.scripts.Load(cfg.Scripts.Hooks); err != nil {
		logger.Warn("hooks disabled", "error", err)
	} else if srv.scripts.Loaded() {
		srv.manager.Events().Register(srv.scripts)
	}

	srv.ping = ping.NewHandler(fmt.Sprintf(":%d", cfg.Server.Port+1), srv.discoveryInfo(), logger)

	if cfg.Observer.Enabled {
		srv.obs = observer.NewService(observer.Options{
			Addr:        fmt.Sprintf(":%d", cfg.Observer.Port),
			ServerName:  cfg.Server.Name,
			RoundsTotal: srv.manager.RoundsPerMatch(),
			Control:     srv.submitControl,
			Logger:      logger,
		})
		srv.manager.Events().Register(srv.obs)
	}

	return srv, nil
}

func (s *Server) Manager() *game.Manager { return s.manager }

func (s *Server) Start() error {
	if err := s.network.Listen(); err != nil {
		return fmt.Errorf("failed to start network: %w", err)
	}

	if err := s.ping.Start(); err != nil {
		s.log.Warn("failed to start discovery handler", "error", err)
	}

	if s.obs != nil {
		s.obs.Start()
	}

	s.running = true
	s.log.Info("server started", "name", s.config.Server.Name, "port", s.config.Server.Port)

	go s.run()
	return nil
}

func (s *Server) Stop() {
	s.log.Info("stopping server")
	s.cancel()
}

// Wait blocks until the run loop has exited.
func (s *Server) Wait() {
	<-s.done
}

func (s *Server) run() {
	tickTicker := time.NewTicker(s.config.TickInterval())
	defer tickTicker.Stop()

	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case fn := <-s.control:
			fn()

		case <-tickTicker.C:
			if s.manager.TickRunning() {
				s.manager.Tick()
			}

		case <-pollTicker.C:
			s.handleNetworkEvents()
			s.manager.CheckFuses()
		}
	}
}

func (s *Server) shutdown() {
	defer close(s.done)
	s.running = false
	s.manager.Stop()

	for _, c := range s.conns {
		c.Kick("server shutting down")
	}
	s.drainDisconnects()

	if s.obs != nil {
		s.obs.Stop()
	}
	s.ping.Stop()
	s.network.Close()
	s.log.Info("server stopped")
}

// drainDisconnects services the host briefly so queued disconnects and the
// final KICKED packets actually go out.
func (s *Server) drainDisconnects() {
	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) {
		event, err := s.network.Service(10 * time.Millisecond)
		if err != nil || event.Type == network.EventTypeNone {
			return
		}
	}
}

func (s *Server) handleNetworkEvents() {
	for i := 0; i < 100; i++ {
		event, err := s.network.Service(0)
		if err != nil {
			s.log.Error("network service error", "error", err)
			return
		}

		switch event.Type {
		case network.EventTypeNone:
			return

		case network.EventTypeConnect:
			s.handleConnect(event.Peer)

		case network.EventTypeDisconnect:
			s.handleDisconnect(event.Peer)

		case network.EventTypeReceive:
			s.handlePacket(event.Peer, event.Data)
		}
	}
}

func (s *Server) handleConnect(peer enet.Peer) {
	conn := &peerConn{srv: s, peer: peer}

	if ban, banned := s.banList.IsBanned(conn.Addr()); banned {
		s.log.Info("rejected banned address", "addr", conn.Addr(), "reason", ban.Reason)
		conn.Kick("you are banned")
		return
	}

	name := fmt.Sprintf("player%d", s.manager.Roster().Count())
	p, err := s.manager.AddPlayer(name, conn)
	if err != nil {
		s.log.Info("connection rejected", "addr", conn.Addr(), "reason", err)
		conn.Kick(err.Error())
		return
	}

	s.conns[peer] = conn
	s.log.Info("player connected", "id", p.ID(), "addr", conn.Addr())
}

func (s *Server) handleDisconnect(peer enet.Peer) {
	conn, ok := s.conns[peer]
	if !ok {
		return
	}
	delete(s.conns, peer)
	s.manager.HandleDisconnect(conn)
}

func (s *Server) handlePacket(peer enet.Peer, data []byte) {
	conn, ok := s.conns[peer]
	if !ok {
		return
	}

	msg, err := protocol.ParseMessage(data)
	if err != nil {
		s.log.Debug("dropping bad packet", "addr", conn.Addr(), "error", err)
		return
	}

	switch msg.Kind {
	case protocol.MessageName:
		s.manager.HandleName(conn, msg.Name)
	case protocol.MessageCommand:
		s.manager.HandleCommand(conn, msg.Command)
	}
}

// StartMatch begins a round from the control surface or the console.
func (s *Server) StartMatch() error {
	return s.manager.StartRound()
}

// submitControl hands an observer control action to the run goroutine.
func (s *Server) submitControl(action string) error {
	fn := func() {
		switch action {
		case "start":
			if err := s.manager.StartRound(); err != nil {
				s.log.Info("start refused", "reason", err)
			}
		case "pause":
			s.manager.TogglePause()
		case "stop":
			s.manager.Stop()
		}
	}

	select {
	case s.control <- fn:
		return nil
	default:
		return fmt.Errorf("control queue full")
	}
}

// script.ServerActions implementation. These run on the run goroutine
// because hooks fire during event dispatch.

func (s *Server) KickPlayer(id int, reason string) error {
	p, ok := s.manager.Roster().Get(id)
	if !ok {
		return fmt.Errorf("no player %d", id)
	}
	conn := p.Conn()
	if conn == nil {
		return fmt.Errorf("player %d has no connection", id)
	}
	conn.Kick(reason)
	return nil
}

func (s *Server) BanPlayer(id int, reason string, duration time.Duration) error {
	p, ok := s.manager.Roster().Get(id)
	if !ok {
		return fmt.Errorf("no player %d", id)
	}
	conn := p.Conn()
	if conn == nil {
		return fmt.Errorf("player %d has no connection", id)
	}
	if err := s.banList.Ban(conn.Addr(), p.Name(), reason, duration); err != nil {
		return err
	}
	conn.Kick("you are banned")
	return nil
}

// loadArenaSpec resolves one entry of the maps list: "default" is the
// embedded layout, "random" or "random:<seed>" generates one, anything
// else is a file in the maps directory.
func (s *Server) loadArenaSpec(spec string) (*arena.Arena, error) {
	opts := arena.Options{
		Fuse:        s.config.BombFuse(),
		BlastRadius: s.config.Server.BlastRadius,
	}

	switch {
	case spec == "default":
		return arena.Parse(arena.DefaultSource(), opts)

	case spec == "random" || strings.HasPrefix(spec, "random:"):
		seed := uint32(time.Now().UnixNano())
		if _, hint, ok := strings.Cut(spec, ":"); ok {
			parsed, err := strconv.ParseUint(hint, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("bad seed %q: %w", hint, err)
			}
			seed = uint32(parsed)
		}
		source, err := arenagen.Generate(arenagen.Options{Seed: seed})
		if err != nil {
			return nil, err
		}
		s.log.Info("generated arena", "seed", seed)
		return arena.Parse(source, opts)

	default:
		name := spec
		if filepath.Ext(name) == "" {
			name += ".map"
		}
		source, err := os.ReadFile(filepath.Join(s.config.Server.MapsDir, name))
		if err != nil {
			return nil, err
		}
		return arena.Parse(source, opts)
	}
}

// rotateArena advances to the next maps entry after a match. With a single
// entry the current arena simply resets on the next round start.
func (s *Server) rotateArena() {
	maps := s.config.Server.Maps
	if len(maps) < 2 {
		return
	}

	s.mapIndex = (s.mapIndex + 1) % len(maps)
	spec := maps[s.mapIndex]

	a, err := s.loadArenaSpec(spec)
	if err != nil {
		s.log.Error("failed to load next arena, keeping current", "spec", spec, "error", err)
		return
	}
	if err := s.manager.LoadArena(a); err != nil {
		s.log.Error("failed to switch arena", "spec", spec, "error", err)
		return
	}
	s.log.Info("rotated arena", "spec", spec, "name", a.Name())
}

func (s *Server) discoveryInfo() ping.Info {
	round := 0
	if s.manager != nil && s.manager.State() != game.StateIdle {
		round = s.manager.RoundsPlayed() + 1
	}

	info := ping.Info{
		Name:        s.config.Server.Name,
		Capacity:    s.config.Server.MaxClients,
		RoundsTotal: s.config.Server.RoundsPerMatch,
		Round:       round,
	}
	if s.manager != nil {
		info.Players = s.manager.Roster().Count()
		info.Map = s.manager.Arena().Name()
		info.State = s.manager.State().String()
		info.RoundsTotal = s.manager.RoundsPerMatch()
	}
	return info
}

// serverEvents reacts to simulation lifecycle changes: round restarts, map
// rotation and discovery info updates.
type serverEvents struct {
	srv *Server
}

func (e *serverEvents) PlayerJoined(p *player.Player) { e.srv.ping.Update(e.srv.discoveryInfo()) }
func (e *serverEvents) PlayerLeft(p *player.Player)   { e.srv.ping.Update(e.srv.discoveryInfo()) }
func (e *serverEvents) PlayerDied(p *player.Player)   {}

func (e *serverEvents) RoundStarted(round int) {
	e.srv.ping.Update(e.srv.discoveryInfo())
}

// RoundEnded schedules the automatic restart. The closure re-checks the
// state on the run goroutine: a manual stop or match end in the meantime
// cancels the restart.
func (e *serverEvents) RoundEnded(winner *player.Player, round int) {
	s := e.srv
	time.AfterFunc(s.config.RoundRestartDelay(), func() {
		select {
		case s.control <- func() {
			if s.manager.State() != game.StateResolving {
				return
			}
			if err := s.manager.StartRound(); err != nil {
				s.log.Info("restart abandoned", "reason", err)
				s.manager.Stop()
			}
		}:
		case <-s.ctx.Done():
		}
	})
}

func (e *serverEvents) MatchEnded(standings []game.Standing) {
	e.srv.rotateArena()
	e.srv.ping.Update(e.srv.discoveryInfo())
}

func (e *serverEvents) RosterChanged(players []*player.Player) {
	e.srv.ping.Update(e.srv.discoveryInfo())
}

func (e *serverEvents) ArenaChanged(a *arena.Arena) {
	e.srv.ping.Update(e.srv.discoveryInfo())
}

func (e *serverEvents) TickFinished(tick uint64) {}
