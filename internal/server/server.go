package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"ito-server/internal/game"
)

// Config carries everything the server needs to start. Zero values fall
// back to environment variables and then to defaults, so the server can
// run from a bare .env file without flags.
type Config struct {
	Port        int
	DatabaseURL string
	BaseURL     string
	PoolMin     int
	PoolMax     int
	CleanupAge  time.Duration
	RateLimit   int
	RateWindow  time.Duration
}

type Server struct {
	port    int
	baseURL string

	store             *RoomStore
	roomManager       *RoomManager
	sessionManager    *SessionManager
	revealSessions    *RevealSessionManager
	connectionManager *ConnectionManager
	rateLimiter       *RateLimiter

	cleanupAge time.Duration
	done       chan struct{}
}

func NewServer(cfg Config) (*Server, *http.Server) {
	if cfg.Port == 0 {
		cfg.Port, _ = strconv.Atoi(os.Getenv("PORT"))
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("BASE_URL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	pool := game.Pool{Min: cfg.PoolMin, Max: cfg.PoolMax}
	if !pool.Valid() || pool == (game.Pool{}) {
		pool = game.DefaultPool
	}
	if cfg.CleanupAge == 0 {
		cfg.CleanupAge = 24 * time.Hour
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 30
	}
	if cfg.RateWindow == 0 {
		cfg.RateWindow = 10 * time.Second
	}

	store, err := NewRoomStore(context.Background(), cfg.DatabaseURL)
	if err != nil {
		// Run without persistence rather than refusing to start; rooms
		// will live only in memory until the database comes back.
		log.Printf("Warning: persistence disabled: %v", err)
		store = nil
	}

	newServer := &Server{
		port:              cfg.Port,
		baseURL:           cfg.BaseURL,
		store:             store,
		roomManager:       NewRoomManager(pool),
		sessionManager:    NewSessionManager(),
		revealSessions:    NewRevealSessionManager(),
		connectionManager: NewConnectionManager(),
		rateLimiter:       NewRateLimiter(cfg.RateLimit, cfg.RateWindow),
		cleanupAge:        cfg.CleanupAge,
		done:              make(chan struct{}),
	}

	newServer.loadPersistedState()

	go newServer.periodicSaveTask()
	go newServer.cleanupTask()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", newServer.port),
		Handler:      newServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return newServer, httpServer
}

// loadPersistedState restores rooms saved by a previous process. Admin
// tokens are not persisted, so a fresh token is issued per room and
// logged for the administrator to reclaim it. A failed load degrades to
// an empty server.
func (s *Server) loadPersistedState() {
	if s.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rooms, err := s.store.LoadAllRooms(ctx)
	if err != nil {
		log.Printf("Warning: failed to load persisted rooms, starting fresh: %v", err)
		return
	}

	for _, g := range rooms {
		token := s.roomManager.RestoreRoom(g)
		s.sessionManager.StoreSession(SessionInfo{
			Token:    token,
			RoomCode: g.RoomCode,
			Role:     RoleAdmin,
		})
		log.Printf("Restored room %s (status %s), admin token: %s", g.RoomCode, g.Status, token)
	}

	if len(rooms) > 0 {
		log.Printf("Restored %d room(s) from store", len(rooms))
	}
}

// persistRoom writes one room through to the store, best effort. The
// in-memory state is authoritative; a failed save is logged and the
// periodic save retries it.
func (s *Server) persistRoom(room *Room) {
	if s.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	room.WithGame(func(g *game.Game) {
		err = s.store.SaveRoom(ctx, g)
	})
	if err != nil {
		log.Printf("Failed to persist room: %v", err)
	}
}

// periodicSaveTask writes every room to the store on an interval,
// catching anything a best-effort save missed.
func (s *Server) periodicSaveTask() {
	if s.store == nil {
		return
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.saveAllRooms()
		case <-s.done:
			return
		}
	}
}

func (s *Server) saveAllRooms() {
	if s.store == nil {
		return
	}

	for _, room := range s.roomManager.Rooms() {
		s.persistRoom(room)
	}
}

// cleanupTask prunes finished rooms that have gone stale, both from the
// store and from memory, along with their sessions.
func (s *Server) cleanupTask() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupOldRooms()
		case <-s.done:
			return
		}
	}
}

func (s *Server) cleanupOldRooms() {
	if s.store == nil {
		s.cleanupMemoryRooms()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	codes, err := s.store.CleanupOldRooms(ctx, s.cleanupAge)
	if err != nil {
		log.Printf("Failed to cleanup old rooms: %v", err)
		return
	}

	for _, code := range codes {
		s.roomManager.RemoveRoom(code)
		s.sessionManager.RemoveRoomSessions(code)
		s.revealSessions.DiscardRoom(code)
	}

	if len(codes) > 0 {
		log.Printf("Cleaned up %d stale room(s)", len(codes))
	}
}

// cleanupMemoryRooms is the fallback when persistence is disabled:
// prune finished rooms straight from memory.
func (s *Server) cleanupMemoryRooms() {
	cutoff := time.Now().Add(-s.cleanupAge)

	for _, room := range s.roomManager.Rooms() {
		var code string
		room.WithGame(func(g *game.Game) {
			if g.Status == game.StatusFinished && room.UpdatedAt.Before(cutoff) {
				code = g.RoomCode
			}
		})
		if code != "" {
			s.roomManager.RemoveRoom(code)
			s.sessionManager.RemoveRoomSessions(code)
			s.revealSessions.DiscardRoom(code)
		}
	}
}

// Shutdown flushes every room to the store and releases the pool.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.done)

	if s.store == nil {
		return nil
	}

	var lastErr error
	for _, room := range s.roomManager.Rooms() {
		var err error
		room.WithGame(func(g *game.Game) {
			err = s.store.SaveRoom(ctx, g)
		})
		if err != nil {
			log.Printf("Failed to save room during shutdown: %v", err)
			lastErr = err
		}
	}

	s.store.Close()
	log.Println("All rooms saved, store closed")
	return lastErr
}
