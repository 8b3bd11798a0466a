package handlers

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/babanuki/internal/auth"
)

const authCookieName = "auth_token"

// EnsureGuestPlayer returns the player id carried by the auth_token cookie.
// A missing or invalid token mints a new guest id and sets the cookie on w,
// so it must run before the response header is written.
func EnsureGuestPlayer(w http.ResponseWriter, r *http.Request, issuer *auth.Issuer) (string, error) {
	if token := extractCookieToken(r.Header.Get("Cookie"), authCookieName); token != "" {
		if playerID, err := issuer.AuthenticateJWT(token); err == nil {
			if _, err := uuid.Parse(playerID); err == nil {
				return playerID, nil
			}
		}
	}

	playerID := uuid.NewString()
	token, err := issuer.CreateJWT(playerID)
	if err != nil {
		return "", fmt.Errorf("failed to create guest JWT: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
	return playerID, nil
}
