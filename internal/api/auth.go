package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hanapbahay/internal/config"
	"hanapbahay/internal/models"
	"hanapbahay/internal/service"

	"github.com/golang-jwt/jwt/v5"
)

const (
	apiKeyHeaderDefault = "X-API-Key"
	permRead            = "read"
	permWrite           = "write"
	clientKeyUnknown    = "unknown"
)

var (
	errUnauthenticated  = errors.New("unauthenticated")
	errPermissionDenied = errors.New("permission denied")
)

// Claims are the bearer token claims. Subject carries the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for actor.
func IssueToken(secret, issuer string, actor service.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(actor.UserID, 10),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

type actorKey struct{}

func withActor(ctx context.Context, actor service.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// actorFrom returns the authenticated actor of the request, if any.
func actorFrom(ctx context.Context) (service.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(service.Actor)
	return actor, ok
}

// HTTPAuth resolves the acting user from a bearer token or an API key and
// applies per-client rate limiting.
type HTTPAuth struct {
	cfg     config.APIAuthConfig
	clients map[string]config.APIClientKey
	limiter *rateLimiter
	parser  *jwt.Parser
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		if k.Key == "" {
			continue
		}
		m[k.Key] = k
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if cfg.Auth.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Auth.JWTIssuer))
	}
	return &HTTPAuth{
		cfg:     cfg.Auth,
		clients: m,
		limiter: newRateLimiter(cfg.RateLimit),
		parser:  jwt.NewParser(opts...),
	}
}

// Wrap authenticates when credentials are present and rate limits every
// request. Whether a route needs an actor is decided by requireActor.
func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, key, err := a.authenticate(r)
		if err != nil {
			statusCode := http.StatusUnauthorized
			if errors.Is(err, errPermissionDenied) {
				statusCode = http.StatusForbidden
			}
			writeError(w, statusCode, err.Error())
			return
		}
		if key == "" {
			key = remoteHost(r)
		}
		if !a.limiter.allow(key) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		if actor != nil {
			r = r.WithContext(withActor(r.Context(), *actor))
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate returns the actor (nil when anonymous) and the rate limit key.
func (a *HTTPAuth) authenticate(r *http.Request) (*service.Actor, string, error) {
	if !a.cfg.Enabled {
		return devActor(r), "", nil
	}

	if apiKey := strings.TrimSpace(r.Header.Get(a.apiKeyHeader())); apiKey != "" {
		client, ok := a.lookupClient(apiKey)
		if !ok {
			return nil, "", fmt.Errorf("%w: invalid api key", errUnauthenticated)
		}
		if err := checkPermissions(client, r); err != nil {
			return nil, "", err
		}
		actor := service.System
		return &actor, apiKey, nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, "", nil
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, "", fmt.Errorf("%w: expected bearer token", errUnauthenticated)
	}
	actor, err := a.parseToken(strings.TrimSpace(token))
	if err != nil {
		return nil, "", err
	}
	return actor, "user:" + strconv.FormatInt(actor.UserID, 10), nil
}

func (a *HTTPAuth) parseToken(raw string) (*service.Actor, error) {
	var claims Claims
	_, err := a.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(a.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: invalid token", errUnauthenticated)
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, fmt.Errorf("%w: invalid subject", errUnauthenticated)
	}
	switch claims.Role {
	case models.RoleTenant, models.RoleOwner, models.RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: invalid role", errUnauthenticated)
	}
	return &service.Actor{UserID: userID, Role: claims.Role}, nil
}

func (a *HTTPAuth) apiKeyHeader() string {
	if h := strings.TrimSpace(a.cfg.HeaderAPIKey); h != "" {
		return h
	}
	return apiKeyHeaderDefault
}

func (a *HTTPAuth) lookupClient(key string) (config.APIClientKey, bool) {
	for k, client := range a.clients {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			return client, true
		}
	}
	return config.APIClientKey{}, false
}

// checkPermissions allows reads with "read" and everything with "write".
// An empty list allows all.
func checkPermissions(client config.APIClientKey, r *http.Request) error {
	if len(client.Permissions) == 0 {
		return nil
	}
	required := permWrite
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		required = permRead
	}
	for _, p := range client.Permissions {
		p = strings.TrimSpace(p)
		if p == required || p == permWrite {
			return nil
		}
	}
	return errPermissionDenied
}

// devActor trusts X-User-ID and X-User-Role when auth is disabled.
func devActor(r *http.Request) *service.Actor {
	id, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	role := r.Header.Get("X-User-Role")
	if role == "" {
		role = models.RoleTenant
	}
	return &service.Actor{UserID: id, Role: role}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

// requireActor rejects anonymous requests.
func requireActor(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := actorFrom(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r)
	}
}
