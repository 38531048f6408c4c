package handler

import (
	"net/http"

	"github.com/gorilla/securecookie"
)

const (
	flashCookieName = "vidshelf_flash"

	// flashMaxAge bounds how long a pending flash stays valid, in seconds.
	flashMaxAge = 600
)

// Flash categories.
const (
	FlashSuccess = "success"
	FlashWarning = "warning"
)

// Flash is a one-shot message shown on the next page load.
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// FlashStore keeps flash messages in a signed cookie.
type FlashStore struct {
	codec *securecookie.SecureCookie
}

// NewFlashStore creates a FlashStore signing with secret.
func NewFlashStore(secret string) *FlashStore {
	codec := securecookie.New([]byte(secret), nil).
		MaxAge(flashMaxAge).
		SetSerializer(securecookie.JSONEncoder{})
	return &FlashStore{codec: codec}
}

// Set queues f for the next request.
func (s *FlashStore) Set(w http.ResponseWriter, f Flash) {
	encoded, err := s.codec.Encode(flashCookieName, f)
	if err != nil {
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   flashMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Pop returns the pending flash, if any, and clears it. Cookies that fail
// verification are discarded.
func (s *FlashStore) Pop(w http.ResponseWriter, r *http.Request) (Flash, bool) {
	c, err := r.Cookie(flashCookieName)
	if err != nil {
		return Flash{}, false
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	var f Flash
	if err := s.codec.Decode(flashCookieName, c.Value, &f); err != nil || f.Message == "" {
		return Flash{}, false
	}
	return f, true
}
