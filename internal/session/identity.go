package session

import (
	"github.com/golang-jwt/jwt/v5"
)

// Identity returns the subject of a JWT credential for display purposes. The token is not verified,
// the remote API stays the only judge of its validity. Credentials that are not JWTs yield "".
func Identity(token string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}

	for _, key := range []string{"email", "sub", "name"} {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
