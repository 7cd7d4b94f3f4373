package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// claims carried by the access token. `sub` is the user id; tenant and
// role are custom claims issued by the identity provider.
type tokenClaims struct {
	Subject  string
	TenantID string
	Role     string
}

type verifier interface {
	verify(ctx context.Context, rawToken string) (*tokenClaims, error)
}

// Middleware resolves the bearer token into a Principal and stores it in
// the request context. With an OIDC issuer configured the token is
// verified against the provider; otherwise it is validated locally as an
// HS256 JWT.
func Middleware(oidcIssuer, jwtSecret string) func(http.Handler) http.Handler {
	var v verifier
	if oidcIssuer != "" {
		provider, err := oidc.NewProvider(context.Background(), oidcIssuer)
		if err != nil {
			panic(fmt.Sprintf("Failed to create OIDC provider: %v", err))
		}
		v = &oidcVerifier{
			verifier: provider.Verifier(&oidc.Config{SkipClientIDCheck: true}),
		}
	} else {
		v = &hmacVerifier{secret: []byte(jwtSecret)}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			claims, err := v.verify(r.Context(), rawToken)
			if err != nil {
				http.Error(w, fmt.Sprintf("invalid token: %v", err), http.StatusUnauthorized)
				return
			}

			if claims.Subject == "" || claims.TenantID == "" {
				http.Error(w, "token missing subject or tenant claim", http.StatusUnauthorized)
				return
			}

			ctx := WithPrincipal(r.Context(), Principal{
				UserID:   claims.Subject,
				TenantID: claims.TenantID,
				Role:     claims.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractTokenFromRequest extracts a JWT from the Authorization header.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	// Bearer token format: "Bearer {token}"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}

	return parts[1], nil
}

type oidcVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func (o *oidcVerifier) verify(ctx context.Context, rawToken string) (*tokenClaims, error) {
	idToken, err := o.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	var claims struct {
		Sub    string `json:"sub"`
		Tenant string `json:"tenant"`
		Role   string `json:"role"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	return &tokenClaims{Subject: claims.Sub, TenantID: claims.Tenant, Role: claims.Role}, nil
}

type hmacVerifier struct {
	secret []byte
}

func (h *hmacVerifier) verify(_ context.Context, rawToken string) (*tokenClaims, error) {
	token, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return h.secret, nil
	})
	if err != nil {
		return nil, err
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	claims := &tokenClaims{}
	if sub, ok := mapClaims["sub"].(string); ok {
		claims.Subject = sub
	}
	if tenant, ok := mapClaims["tenant"].(string); ok {
		claims.TenantID = tenant
	}
	if role, ok := mapClaims["role"].(string); ok {
		claims.Role = role
	}

	return claims, nil
}
