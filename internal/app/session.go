package app

import "sync"

// Session is the device-level signed-in user. Notification actions arriving
// while nobody is signed in are dropped by the router.
type Session struct {
	mu     sync.RWMutex
	userID string
}

func NewSession() *Session {
	return &Session{}
}

func (s *Session) Set(userID string) {
	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()
}

func (s *Session) Clear() {
	s.Set("")
}

// UserID returns the signed-in user id, or empty when signed out.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}
