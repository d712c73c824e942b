package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of token claims shown to the user. The client
// never verifies the signature; the API is the authority on validity.
type Claims struct {
	Subject   string
	Email     string
	Name      string
	ExpiresAt time.Time
}

// Common claim names issued by ASP.NET Core identity alongside the
// registered ones.
const (
	claimEmail      = "email"
	claimUniqueName = "unique_name"
	claimName       = "name"
	claimXMLEmail   = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress"
	claimXMLName    = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"
	claimXMLNameID  = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"
)

// Claims decodes the token payload. Opaque (non-JWT) tokens yield empty
// claims and ok=false.
func (s Session) Claims() (Claims, bool) {
	if s.Token == "" {
		return Claims{}, false
	}

	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.Token, mc); err != nil {
		return Claims{}, false
	}

	c := Claims{
		Subject: firstString(mc, "sub", claimXMLNameID),
		Email:   firstString(mc, claimEmail, claimXMLEmail),
		Name:    firstString(mc, claimName, claimUniqueName, claimXMLName),
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, true
}

// Label is a short description of the signed-in user.
func (c Claims) Label() string {
	switch {
	case c.Email != "":
		return c.Email
	case c.Name != "":
		return c.Name
	case c.Subject != "":
		return c.Subject
	default:
		return "signed in"
	}
}

// Expired reports whether the token carries an expiry in the past.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

func firstString(mc jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		if v, ok := mc[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
