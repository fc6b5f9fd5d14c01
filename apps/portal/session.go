package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	portalSessionCookieName = "ncrp_portal_session"
	portalSessionDuration   = 12 * time.Hour
)

// The session only remembers who signed in so pages can prefill the email.
// The API itself stays stateless.
type portalSession struct {
	Email string
}

func (a *App) createSessionToken(session portalSession, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"email": session.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(portalSessionDuration).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.cfg.SigningSecret))
}

func (a *App) verifySessionToken(tokenString string) (*portalSession, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(a.cfg.SigningSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	email, _ := claims["email"].(string)
	if strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("invalid session payload")
	}
	return &portalSession{Email: email}, nil
}

func (a *App) startSession(c *gin.Context, email string) error {
	token, err := a.createSessionToken(portalSession{Email: email}, time.Now())
	if err != nil {
		return err
	}
	secure := strings.EqualFold(a.cfg.Env, "production")
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(portalSessionCookieName, token, int(portalSessionDuration.Seconds()), "/", "", secure, true)
	return nil
}

func (a *App) clearSession(c *gin.Context) {
	secure := strings.EqualFold(a.cfg.Env, "production")
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(portalSessionCookieName, "", -1, "/", "", secure, true)
}

// currentSession returns nil when the cookie is missing or invalid.
func (a *App) currentSession(c *gin.Context) *portalSession {
	token, err := c.Cookie(portalSessionCookieName)
	if err != nil || token == "" {
		return nil
	}
	session, err := a.verifySessionToken(token)
	if err != nil {
		return nil
	}
	return session
}
