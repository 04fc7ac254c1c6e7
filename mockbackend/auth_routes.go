package mockbackend

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/backend-qa/api-contract-tests/servicedef"
)

const (
	invalidCredentialsMessage = "Invalid login credentials"
	missingEmailMessage       = "missing email or phone"
)

type accessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeAuthError writes an error in the shape of the configured contract.
func (b *Backend) writeAuthError(w http.ResponseWriter, status int, code, message string) {
	if b.opts.Contract == LegacyContract {
		writeJSON(w, status, servicedef.LegacyAuthError{Error: code, ErrorDescription: message})
		return
	}
	writeJSON(w, status, servicedef.CurrentAuthError{Code: status, ErrorCode: code, Msg: message})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func (b *Backend) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("apikey")
		if key == "" || (key != b.opts.AnonKey && key != b.opts.ServiceKey) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"message": "No API key found in request",
				"hint":    "No `apikey` request header or url param was found.",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) requireServiceRole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.opts.ServiceKey == "" || bearerToken(r) != b.opts.ServiceKey {
			b.writeAuthError(w, http.StatusForbidden, "not_admin", "User not allowed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) issueToken(u *user) (servicedef.TokenResponse, error) {
	now := time.Now()
	expiresAt := now.Add(b.opts.TokenLifetime)
	claims := accessClaims{
		Email: u.email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.opts.JWTSecret)
	if err != nil {
		return servicedef.TokenResponse{}, err
	}
	return servicedef.TokenResponse{
		AccessToken:  signed,
		TokenType:    "bearer",
		ExpiresIn:    int(b.opts.TokenLifetime.Seconds()),
		ExpiresAt:    expiresAt.Unix(),
		RefreshToken: strings.ReplaceAll(uuid.NewString(), "-", ""),
		User:         u.toWire(),
	}, nil
}

// userForToken returns the user the token was issued to, or nil if the token is invalid, expired
// or revoked by a logout.
func (b *Backend) userForToken(token string) *user {
	if token == "" {
		return nil
	}
	var claims accessClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return b.opts.JWTSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.revoked[token] {
		return nil
	}
	return b.users[claims.Subject]
}

func (u *user) toWire() *servicedef.User {
	ret := &servicedef.User{
		ID:        u.id,
		Email:     u.email,
		Role:      "authenticated",
		CreatedAt: u.createdAt.Format(time.RFC3339),
	}
	if !u.confirmedAt.IsZero() {
		ret.EmailConfirmedAt = u.confirmedAt.Format(time.RFC3339)
	}
	return ret
}

func (b *Backend) handleToken(w http.ResponseWriter, r *http.Request) {
	if grant := r.URL.Query().Get("grant_type"); grant != servicedef.GrantTypePassword {
		b.writeAuthError(w, http.StatusBadRequest, "unsupported_grant_type",
			"unsupported_grant_type")
		return
	}
	var req servicedef.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		b.writeAuthError(w, http.StatusBadRequest, "bad_json", "Could not parse request body as JSON")
		return
	}
	if req.Email == "" {
		b.writeAuthError(w, http.StatusBadRequest, "validation_failed", missingEmailMessage)
		return
	}

	b.lock.Lock()
	u := b.findByEmail(req.Email)
	b.lock.Unlock()
	if u == nil || req.Password == "" || u.password != req.Password {
		b.writeAuthError(w, http.StatusBadRequest, "invalid_credentials", invalidCredentialsMessage)
		return
	}
	if u.confirmedAt.IsZero() {
		b.writeAuthError(w, http.StatusBadRequest, "email_not_confirmed", "Email not confirmed")
		return
	}

	resp, err := b.issueToken(u)
	if err != nil {
		b.writeAuthError(w, http.StatusInternalServerError, "unexpected_failure", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if b.userForToken(token) == nil {
		b.writeAuthError(w, http.StatusUnauthorized, "bad_jwt", "invalid JWT")
		return
	}
	b.lock.Lock()
	b.revoked[token] = true
	b.lock.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u := b.userForToken(bearerToken(r))
	if u == nil {
		b.writeAuthError(w, http.StatusUnauthorized, "bad_jwt", "invalid JWT")
		return
	}
	writeJSON(w, http.StatusOK, u.toWire())
}

func (b *Backend) handleAdminCreateUser(w http.ResponseWriter, r *http.Request) {
	var params servicedef.AdminCreateUserParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		b.writeAuthError(w, http.StatusBadRequest, "bad_json", "Could not parse request body as JSON")
		return
	}
	if params.Email == "" || params.Password == "" {
		b.writeAuthError(w, http.StatusBadRequest, "validation_failed", "email and password are required")
		return
	}
	b.lock.Lock()
	u, created := b.addUserLocked(params.Email, params.Password, params.EmailConfirm)
	b.lock.Unlock()
	if !created {
		b.writeAuthError(w, http.StatusUnprocessableEntity, "email_exists",
			"A user with this email address has already been registered")
		return
	}
	writeJSON(w, http.StatusOK, u.toWire())
}

func (b *Backend) handleAdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	b.lock.Lock()
	defer b.lock.Unlock()
	b.deleted = append(b.deleted, id)
	if b.failDeletes {
		b.writeAuthError(w, http.StatusInternalServerError, "unexpected_failure", "Database error deleting user")
		return
	}
	u, ok := b.users[id]
	if !ok {
		b.writeAuthError(w, http.StatusNotFound, "user_not_found", "User not found")
		return
	}
	delete(b.users, id)
	delete(b.idsByEmail, strings.ToLower(u.email))
	writeJSON(w, http.StatusOK, map[string]interface{}{})
}
