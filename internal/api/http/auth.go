package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/estate-hub/estate-hub/internal/domain/user"
)

type actorContextKey struct{}

// Claims carry the identity resolved by the external auth service.
// The subject is the actor id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for an actor.
func IssueToken(secret []byte, actor user.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseActor validates a token and returns the actor it names. SYSTEM is
// reserved for the scheduler and never accepted from a token.
func ParseActor(secret []byte, token string) (user.Actor, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return user.Actor{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return user.Actor{}, errors.New("invalid token")
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return user.Actor{}, errors.New("subject is not an actor id")
	}
	role, err := user.ParseRole(claims.Role)
	if err != nil {
		return user.Actor{}, err
	}
	if role == user.RoleSystem {
		return user.Actor{}, errors.New("system role cannot be presented by clients")
	}
	return user.Actor{ID: id, Role: role}, nil
}

func (s *Server) requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := ParseActor(s.jwtSecret, bearerToken(r))
		if err != nil {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), actorContextKey{}, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// actorFrom returns the actor placed by requireActor.
func actorFrom(r *http.Request) user.Actor {
	actor, _ := r.Context().Value(actorContextKey{}).(user.Actor)
	return actor
}

func bearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	// EventSource cannot set headers.
	if r.URL.Path == "/v1/events" {
		return r.URL.Query().Get("access_token")
	}
	return ""
}
