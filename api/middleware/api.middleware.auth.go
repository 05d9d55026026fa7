// FilePath: api/middleware/api.middleware.auth.go
package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/Nerzal/gocloak/v13"

	"github.com/residential-power/outagewatch/internal/errors"
)

// KeycloakConfig configures the operator/admin auth middleware. The sensor
// heartbeat route never uses this — its handler compares the body's api_key
// with SENSOR_API_KEY itself.
type KeycloakConfig struct {
	URL          string
	Realm        string
	ClientID     string
	ClientSecret string
}

// KeycloakMiddleware gates the admin control-plane routes (freeze, broadcast,
// job management). It is never applied to the sensor-facing heartbeat route.
type KeycloakMiddleware struct {
	client *gocloak.GoCloak
	config KeycloakConfig
}

// UserContext carries the authenticated operator's identity and roles.
type UserContext struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

type contextKey string

const userContextKey contextKey = "user"

// NewKeycloakMiddleware constructs a KeycloakMiddleware.
func NewKeycloakMiddleware(config KeycloakConfig) *KeycloakMiddleware {
	return &KeycloakMiddleware{
		client: gocloak.NewClient(config.URL),
		config: config,
	}
}

// Authenticate validates the bearer token and adds user info to context.
func (k *KeycloakMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			handleError(w, errors.NewAuthError("no token provided", nil))
			return
		}

		result, err := k.client.RetrospectToken(r.Context(), token, k.config.ClientID, k.config.ClientSecret, k.config.Realm)
		if err != nil || result.Active == nil || !*result.Active {
			handleError(w, errors.NewAuthError("invalid token", err))
			return
		}

		roles, err := k.client.GetRealmRoles(r.Context(), token, k.config.Realm, gocloak.GetRoleParams{})
		if err != nil {
			handleError(w, errors.NewAuthError("failed to get realm roles", err))
			return
		}

		claims, err := k.client.GetUserInfo(r.Context(), token, k.config.Realm)
		if err != nil {
			handleError(w, errors.NewAuthError("failed to get user info", err))
			return
		}

		userContext := createUserContext(claims, roles)
		ctx := context.WithValue(r.Context(), userContextKey, userContext)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuthenticate validates a bearer token if present and adds user
// info to context on success, but never rejects the request — used on
// sensor-key-gated routes that grant operators an enriched view when they
// also present a valid token (e.g. GET /sensors's unredacted fields).
func (k *KeycloakMiddleware) OptionalAuthenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		result, err := k.client.RetrospectToken(r.Context(), token, k.config.ClientID, k.config.ClientSecret, k.config.Realm)
		if err != nil || result.Active == nil || !*result.Active {
			next.ServeHTTP(w, r)
			return
		}

		roles, err := k.client.GetRealmRoles(r.Context(), token, k.config.Realm, gocloak.GetRoleParams{})
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := k.client.GetUserInfo(r.Context(), token, k.config.Realm)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		userContext := createUserContext(claims, roles)
		ctx := context.WithValue(r.Context(), userContextKey, userContext)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRoles ensures the authenticated operator has every named role.
func (k *KeycloakMiddleware) RequireRoles(roles []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := r.Context().Value(userContextKey).(*UserContext)
			if !ok {
				handleError(w, errors.NewAuthError("no user context found", nil))
				return
			}
			if !hasRequiredRoles(user.Roles, roles) {
				handleError(w, errors.NewAuthorizationError("insufficient permissions", nil))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserFromContext retrieves the authenticated operator, if any.
func UserFromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok
}

// SensorKeyAuth gates the sensor listing route with a constant-time
// X-API-Key check against SENSOR_API_KEY, independent of Keycloak.
func SensorKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				handleError(w, errors.NewAuthError("invalid api key", nil))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func createUserContext(userInfo *gocloak.UserInfo, roles []*gocloak.Role) *UserContext {
	uc := &UserContext{Roles: extractRoles(roles)}
	if userInfo.Sub != nil {
		uc.ID = *userInfo.Sub
	}
	if userInfo.PreferredUsername != nil {
		uc.Username = *userInfo.PreferredUsername
	}
	if userInfo.Email != nil {
		uc.Email = *userInfo.Email
	}
	return uc
}

func extractToken(r *http.Request) string {
	bearerToken := r.Header.Get("Authorization")
	parts := strings.Split(bearerToken, " ")
	if len(parts) == 2 {
		return parts[1]
	}
	return ""
}

func extractRoles(roles []*gocloak.Role) []string {
	var roleStrings []string
	for _, role := range roles {
		if role.Name != nil {
			roleStrings = append(roleStrings, *role.Name)
		}
	}
	return roleStrings
}

func hasRequiredRoles(userRoles, requiredRoles []string) bool {
	if len(requiredRoles) == 0 {
		return true
	}
	roleMap := make(map[string]bool, len(userRoles))
	for _, role := range userRoles {
		roleMap[role] = true
	}
	for _, required := range requiredRoles {
		if required == "*" {
			return true
		}
		if !roleMap[required] {
			return false
		}
	}
	return true
}

func handleError(w http.ResponseWriter, err error) {
	if apiErr, ok := err.(*errors.APIError); ok {
		http.Error(w, apiErr.Message, apiErr.Code)
		return
	}
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}
