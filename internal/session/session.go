// Package session holds the client-side login context. A Session is
// created at login, passed explicitly to every engine call, and
// invalidated at logout; nothing here is process-global.
package session

import (
	"time"

	"github.com/Abdiitb/Namma-Chennai-sub001/internal/models"
)

type Session struct {
	Token     string
	User      models.User
	CreatedAt time.Time

	invalid bool
}

func New(token string, user models.User) *Session {
	return &Session{Token: token, User: user, CreatedAt: time.Now()}
}

func (s *Session) Actor() models.Actor {
	return models.Actor{ID: s.User.ID, Role: s.User.Role}
}

// Invalidate marks the session unusable; the engine rejects calls made
// with an invalidated session.
func (s *Session) Invalidate() { s.invalid = true }

func (s *Session) Valid() bool { return s != nil && !s.invalid && s.Token != "" }
