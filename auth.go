package main

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	jwtExpiry        = 12 * time.Hour
	jwtIssuer        = "arena-server"
	adminSubject     = "admin"
	bcryptCost       = 12
	loginRateWindow  = 60 * time.Second
	maxLoginAttempts = 10
)

var (
	ErrAdminDisabled   = errors.New("admin disabled")
	ErrBadCredentials  = errors.New("invalid password")
	ErrTooManyAttempts = errors.New("too many login attempts, try again later")
	ErrInvalidToken    = errors.New("invalid token")
)

// Admin guards the operator endpoints with a bcrypt password check and
// short-lived HS256 tokens. A nil *Admin or one without a password hash
// rejects every login.
type Admin struct {
	passHash  []byte
	jwtSecret []byte
	now       func() time.Time

	// Rate limiting for login attempts (IP -> attempts)
	rateMu  sync.Mutex
	rateMap map[string]*rateEntry
}

type rateEntry struct {
	Count   int
	ResetAt time.Time
}

// NewAdmin builds the admin guard from config. A plain password is hashed
// once at startup; an explicit hash takes precedence.
func NewAdmin(cfg Config) (*Admin, error) {
	a := &Admin{
		jwtSecret: make([]byte, 32),
		now:       time.Now,
		rateMap:   make(map[string]*rateEntry),
	}
	if _, err := rand.Read(a.jwtSecret); err != nil {
		return nil, fmt.Errorf("generate jwt secret: %w", err)
	}

	switch {
	case cfg.AdminPasswordHash != "":
		if _, err := bcrypt.Cost([]byte(cfg.AdminPasswordHash)); err != nil {
			return nil, fmt.Errorf("ADMIN_PASSWORD_HASH: %w", err)
		}
		a.passHash = []byte(cfg.AdminPasswordHash)
	case cfg.AdminPassword != "":
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		a.passHash = hash
	}
	return a, nil
}

// Enabled reports whether logins are possible
func (a *Admin) Enabled() bool {
	return a != nil && len(a.passHash) > 0
}

// Login checks the password and returns a signed token
func (a *Admin) Login(password, ip string) (string, error) {
	if !a.Enabled() {
		return "", ErrAdminDisabled
	}
	if !a.checkRate(ip) {
		return "", ErrTooManyAttempts
	}
	if err := bcrypt.CompareHashAndPassword(a.passHash, []byte(password)); err != nil {
		return "", ErrBadCredentials
	}
	return a.generateToken()
}

// ValidateToken verifies signature, issuer, subject and expiry.
func (a *Admin) ValidateToken(tokenStr string) error {
	if !a.Enabled() {
		return ErrAdminDisabled
	}
	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return a.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(jwtIssuer),
		jwt.WithSubject(adminSubject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

func (a *Admin) generateToken() (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Issuer:    jwtIssuer,
		Subject:   adminSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(jwtExpiry)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

func (a *Admin) checkRate(ip string) bool {
	a.rateMu.Lock()
	defer a.rateMu.Unlock()

	now := a.now()
	entry, ok := a.rateMap[ip]
	if !ok || now.After(entry.ResetAt) {
		a.rateMap[ip] = &rateEntry{Count: 1, ResetAt: now.Add(loginRateWindow)}
		return true
	}
	entry.Count++
	return entry.Count <= maxLoginAttempts
}

// RequireAdmin wraps next so it only runs with a valid bearer token.
func (a *Admin) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			http.Error(w, "admin disabled", http.StatusNotFound)
			return
		}
		auth := r.Header.Get("Authorization")
		tokenStr, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || tokenStr == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if err := a.ValidateToken(tokenStr); err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="admin", error="invalid_token"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
