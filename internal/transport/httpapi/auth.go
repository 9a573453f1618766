package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"simbridge.dev/internal/sim/router"
)

// Credentials holds one password per role. A value starting with "$2" is
// treated as a bcrypt hash, anything else as plain text. An empty
// password disables its role.
type Credentials struct {
	GameMaster    string
	BlueCommander string
	RedCommander  string
}

type roleSecret struct {
	role   router.Role
	secret string
}

func (c Credentials) roles() []roleSecret {
	return []roleSecret{
		{router.RoleGameMaster, c.GameMaster},
		{router.RoleBlueCommander, c.BlueCommander},
		{router.RoleRedCommander, c.RedCommander},
	}
}

// authenticate resolves the Basic auth header into a caller. The first
// role whose password matches wins.
func (c Credentials) authenticate(r *http.Request) (router.Caller, bool) {
	user, pass, ok := r.BasicAuth()
	if !ok || pass == "" {
		return router.Caller{}, false
	}
	for _, rs := range c.roles() {
		if rs.secret != "" && matches(rs.secret, pass) {
			return router.Caller{Username: user, Role: rs.role}, true
		}
	}
	return router.Caller{}, false
}

func matches(secret, pass string) bool {
	if strings.HasPrefix(secret, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(secret), []byte(pass)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(pass)) == 1
}
