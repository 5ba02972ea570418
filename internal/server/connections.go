package server

import (
	"sync"

	"github.com/coder/websocket"
)

// ConnectionManager tracks open sockets and which viewer token each one
// authenticated as. Clients may omit the token after create/join; the
// bound token is used instead.
type ConnectionManager struct {
	connections map[string]*websocket.Conn // connectionID -> socket
	tokens      map[string]string          // connectionID -> viewer token
	mu          sync.RWMutex
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*websocket.Conn),
		tokens:      make(map[string]string),
	}
}

func (cm *ConnectionManager) AddConnection(id string, conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[id] = conn
}

func (cm *ConnectionManager) RemoveConnection(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.connections, id)
	delete(cm.tokens, id)
}

// BindToken remembers the viewer token a connection authenticated as.
func (cm *ConnectionManager) BindToken(connectionID, token string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.tokens[connectionID] = token
}

// TokenFor returns the bound token for a connection, or "".
func (cm *ConnectionManager) TokenFor(connectionID string) string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.tokens[connectionID]
}

// Count returns the number of open connections.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}
