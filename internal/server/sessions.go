package server

import (
	"errors"
	"sync"
)

type ViewerRole string

const (
	RoleAdmin  ViewerRole = "admin"
	RolePlayer ViewerRole = "player"
)

// SessionInfo ties a viewer token to a room and a role. Player sessions
// also carry the player name the token is allowed to see cards for.
type SessionInfo struct {
	Token    string
	RoomCode string
	Role     ViewerRole
	Player   string
}

type SessionManager struct {
	sessions map[string]SessionInfo // Token -> SessionInfo
	mu       sync.RWMutex
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]SessionInfo),
	}
}

func (sm *SessionManager) StoreSession(info SessionInfo) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.sessions[info.Token] = info
}

func (sm *SessionManager) GetSession(token string) (SessionInfo, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[token]
	if !exists {
		return SessionInfo{}, errors.New("TOKEN_NOT_FOUND: Invalid viewer token")
	}

	return session, nil
}

func (sm *SessionManager) RemoveSession(token string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, token)
}

// RemoveRoomSessions drops every session for a room, used when a room
// is pruned.
func (sm *SessionManager) RemoveRoomSessions(roomCode string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for token, session := range sm.sessions {
		if session.RoomCode == roomCode {
			delete(sm.sessions, token)
		}
	}
}
