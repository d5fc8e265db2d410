package web

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type Session struct {
	sessions.Session
}

func LoadSession(c *gin.Context) *Session {
	return &Session{
		Session: sessions.Default(c),
	}
}

// Flash queues a message for the next page render
func (s *Session) Flash(message string) {
	s.AddFlash(message)
	if err := s.Save(); err != nil {
		log.Errorf("web: save session: %s", err)
	}
}

// Messages pops the queued flash messages
func (s *Session) Messages() (messages []string) {
	flashes := s.Flashes()
	if len(flashes) == 0 {
		return
	}
	for _, f := range flashes {
		if m, ok := f.(string); ok {
			messages = append(messages, m)
		}
	}
	if err := s.Save(); err != nil {
		log.Errorf("web: save session: %s", err)
	}
	return
}
