package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"laundry-billing/internal/infra/logging"
)

const (
	RoleOwner      = "owner"
	RoleBranchUser = "branch_user"
	// RoleScheduler is never carried by a token; it marks a caller that presented the scheduler secret.
	RoleScheduler = "scheduler"
)

var (
	errMissingToken = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid token")
)

// Claims are issued by the platform's auth service and verified here with the shared secret.
type Claims struct {
	Role     string `json:"role"`
	BranchID string `json:"branch_id,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller.
type Principal struct {
	ID       string
	Role     string
	BranchID string
}

func (p *Principal) IsOwner() bool { return p != nil && p.Role == RoleOwner }

// CanAccessBranch: owners see every branch, branch users only their own.
func (p *Principal) CanAccessBranch(branchID string) bool {
	if p.IsOwner() {
		return true
	}
	return p != nil && p.Role == RoleBranchUser && p.BranchID != "" && p.BranchID == branchID
}

type AuthManager struct {
	secret          []byte
	issuer          string
	schedulerSecret string
}

func NewAuthManager(jwtSecret, issuer, schedulerSecret string) *AuthManager {
	return &AuthManager{secret: []byte(jwtSecret), issuer: issuer, schedulerSecret: schedulerSecret}
}

// Mint signs a token. The production issuer is the auth service; this is used by tooling and tests.
func (a *AuthManager) Mint(subject, role, branchID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:     role,
		BranchID: branchID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Authenticate reads Authorization: Bearer <jwt>. When allowScheduler is set the
// scheduler secret is accepted in place of a token.
func (a *AuthManager) Authenticate(r *http.Request, allowScheduler bool) (*Principal, error) {
	hdr := r.Header.Get("Authorization")
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return nil, errMissingToken
	}
	tok := strings.TrimSpace(hdr[7:])
	if tok == "" {
		return nil, errMissingToken
	}

	if allowScheduler && a.schedulerSecret != "" &&
		subtle.ConstantTimeCompare([]byte(tok), []byte(a.schedulerSecret)) == 1 {
		return &Principal{ID: RoleScheduler, Role: RoleScheduler}, nil
	}
	return a.parse(tok)
}

func (a *AuthManager) parse(tok string) (*Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return nil, errInvalidToken
	}
	if claims.Role != RoleOwner && claims.Role != RoleBranchUser {
		return nil, errInvalidToken
	}
	return &Principal{ID: claims.Subject, Role: claims.Role, BranchID: claims.BranchID}, nil
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p *Principal) context.Context {
	ctx = logging.WithCallerID(ctx, p.ID)
	ctx = logging.WithBranchID(ctx, p.BranchID)
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

// authenticate rejects requests without a valid caller with 401.
func (s *Server) authenticate(allowScheduler bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := s.auth.Authenticate(r, allowScheduler)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
		})
	}
}

// requireRole answers 403 unless the caller holds one of roles.
func requireRole(roles ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := principalFrom(r.Context())
			for _, role := range roles {
				if p != nil && p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "forbidden")
		})
	}
}
