package console

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lexpilot/lexpilot/internal/shared"
)

// AuthContext is the caller's authentication state, passed explicitly to
// access decisions.
type AuthContext struct {
	User    string
	Role    string
	Loading bool
}

// Decision is the outcome of an access check.
type Decision int

const (
	DecisionWait Decision = iota
	DecisionRedirectLogin
	DecisionRedirectHome
	DecisionAllow
)

func (d Decision) String() string {
	switch d {
	case DecisionRedirectLogin:
		return "redirect_login"
	case DecisionRedirectHome:
		return "redirect_home"
	case DecisionAllow:
		return "allow"
	default:
		return "wait"
	}
}

// Access decides whether ac may open an admin view.
func Access(ac AuthContext) Decision {
	switch {
	case ac.Loading:
		return DecisionWait
	case strings.TrimSpace(ac.User) == "":
		return DecisionRedirectLogin
	case ac.Role != shared.RoleAdmin:
		return DecisionRedirectHome
	default:
		return DecisionAllow
	}
}

// DecisionForError maps an authorization failure from an admin endpoint to a
// redirect. Other errors return DecisionAllow and stay with the view.
func DecisionForError(err error) Decision {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Status == 403 {
		return DecisionRedirectHome
	}
	if errors.Is(err, ErrUnauthorized) {
		return DecisionRedirectLogin
	}
	return DecisionAllow
}

// AuthContextFromToken reads the identity claims of an access token without
// verifying it; the server remains the authority. An empty or malformed
// token yields an anonymous context.
func AuthContextFromToken(token string) AuthContext {
	token = strings.TrimSpace(token)
	if token == "" {
		return AuthContext{}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return AuthContext{}
	}
	user, _ := claims["email"].(string)
	if user == "" {
		user, _ = claims["sub"].(string)
	}
	role, _ := claims["role"].(string)
	return AuthContext{User: user, Role: role}
}
