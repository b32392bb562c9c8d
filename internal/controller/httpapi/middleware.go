package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/schooldesk/examaccess/internal/model"
)

type viewerKey struct{}

// viewerClaims is the identity the external auth subsystem puts in the
// bearer token. This layer only decodes it; authentication itself happens
// elsewhere.
type viewerClaims struct {
	IsAdmin bool `json:"is_admin"`
	jwt.RegisteredClaims
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}

		viewer, err := s.parseViewer(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), viewerKey{}, viewer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) parseViewer(token string) (model.Viewer, error) {
	var claims viewerClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return model.Viewer{}, err
	}
	if !parsed.Valid || claims.Subject == "" {
		return model.Viewer{}, fmt.Errorf("invalid claims")
	}

	return model.Viewer{ID: claims.Subject, IsAdmin: claims.IsAdmin}, nil
}

func viewerFrom(ctx context.Context) model.Viewer {
	viewer, _ := ctx.Value(viewerKey{}).(model.Viewer)
	return viewer
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
