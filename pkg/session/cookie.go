package session

import (
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
)

const tokenKeyPrefix = "api_token:"

// CookieSession stores tokens in a gorilla session, scoping them to one
// browser session of the hosting web application. Mutations only reach the
// client once Save is called, and a CookieSession must not be shared across
// concurrent requests.
type CookieSession struct {
	sess  *sessions.Session
	dirty bool
}

// NewCookieSession wraps an already loaded gorilla session.
func NewCookieSession(sess *sessions.Session) *CookieSession {
	return &CookieSession{sess: sess}
}

// LoadCookieSession loads the named session for r from store. A session that
// fails to decode (for example after a key rotation) is replaced by a fresh one.
func LoadCookieSession(store sessions.Store, r *http.Request, name string) (*CookieSession, error) {
	sess, err := store.Get(r, name)
	if sess == nil {
		return nil, fmt.Errorf("load session %q: %w", name, err)
	}
	return NewCookieSession(sess), nil
}

func (c *CookieSession) Token(service string) (string, bool, error) {
	tok, ok := c.sess.Values[tokenKeyPrefix+service].(string)
	if !ok || tok == "" {
		return "", false, nil
	}
	return tok, true, nil
}

func (c *CookieSession) SetToken(service, token string) error {
	c.sess.Values[tokenKeyPrefix+service] = token
	c.dirty = true
	return nil
}

func (c *CookieSession) ClearToken(service string) error {
	if _, ok := c.sess.Values[tokenKeyPrefix+service]; ok {
		delete(c.sess.Values, tokenKeyPrefix+service)
		c.dirty = true
	}
	return nil
}

// Dirty reports whether tokens changed since the session was loaded or saved.
func (c *CookieSession) Dirty() bool { return c.dirty }

// Save writes the session back to the response when tokens changed.
func (c *CookieSession) Save(r *http.Request, w http.ResponseWriter) error {
	if !c.dirty {
		return nil
	}
	if err := c.sess.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	c.dirty = false
	return nil
}
