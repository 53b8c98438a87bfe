package crowdfund

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
)

// claim names consumed by the client
const (
	ClaimSubject           = "sub"
	ClaimExpiresAt         = "exp"
	ClaimEmail             = "email"
	ClaimPreferredUsername = "preferred_username"
	ClaimName              = "name"
	ClaimGivenName         = "given_name"
	ClaimFamilyName        = "family_name"
	ClaimRealmAccess       = "realm_access"
	ClaimRoles             = "roles"
)

var parser = jwt.NewParser(jwt.WithPaddingAllowed())

// Payload is the decoded, unverified body of a bearer credential.
// Accessors check the JSON type of each claim and report absence on mismatch.
type Payload struct {
	claims jwt.MapClaims
}

// Identity is the display identity derived from a payload.
type Identity struct {
	Subject     string `json:"subject,omitempty"`
	Email       string `json:"email,omitempty"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Initials    string `json:"initials"`
}

// Decode parses the middle segment of a three part credential. It never
// fails loudly: malformed or empty input returns nil.
func Decode(raw string) *Payload {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ".")
	if len(parts) != 3 || parts[1] == "" {
		return nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err == nil {
		return &Payload{claims: claims}
	}

	// the header may be unreadable while the payload is fine
	body, ok := decodeSegment(parts[1])
	if !ok {
		return nil
	}

	claims = jwt.MapClaims{}
	if err := json.Unmarshal(body, &claims); err != nil {
		return nil
	}
	return &Payload{claims: claims}
}

func decodeSegment(seg string) ([]byte, bool) {
	encodings := []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.StdEncoding,
	}
	for _, enc := range encodings {
		if b, err := enc.DecodeString(seg); err == nil {
			return b, true
		}
	}
	return nil, false
}

// String returns a string claim.
func (p *Payload) String(name string) (string, bool) {
	if p == nil {
		return "", false
	}
	s, ok := p.claims[name].(string)
	return s, ok
}

// Number returns a numeric claim.
func (p *Payload) Number(name string) (float64, bool) {
	if p == nil {
		return 0, false
	}
	switch v := p.claims[name].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Raw returns a copy of the decoded claims.
func (p *Payload) Raw() map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p.claims))
	for k, v := range p.claims {
		out[k] = v
	}
	return out
}

// RolesOf returns the raw role names under realm_access.roles.
func RolesOf(p *Payload) []string {
	roles := []string{}
	if p == nil {
		return roles
	}

	access, ok := p.claims[ClaimRealmAccess].(map[string]any)
	if !ok {
		return roles
	}

	raw, ok := access[ClaimRoles].([]any)
	if !ok {
		return roles
	}

	for _, r := range raw {
		if role, ok := r.(string); ok {
			roles = append(roles, role)
		}
	}
	return roles
}

// ExpiresAt returns the exp claim as a time.
func ExpiresAt(p *Payload) (time.Time, bool) {
	exp, ok := p.Number(ClaimExpiresAt)
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(exp * 1000)), true
}

// IsExpired reports whether the payload expired before now. A nil payload or
// a missing or non numeric exp counts as expired.
func IsExpired(p *Payload, now time.Time) bool {
	exp, ok := p.Number(ClaimExpiresAt)
	if !ok {
		return true
	}
	return exp*1000 < float64(now.UnixMilli())
}

// SubjectOf returns the stable user identifier, empty when absent.
func SubjectOf(p *Payload) string {
	sub, _ := p.String(ClaimSubject)
	return sub
}

// IdentityOf derives the display identity.
func IdentityOf(p *Payload) Identity {
	id := Identity{Subject: SubjectOf(p)}

	id.Username, _ = p.String(ClaimPreferredUsername)
	id.Email, _ = p.String(ClaimEmail)
	if id.Email == "" && strings.Contains(id.Username, "@") {
		id.Email = id.Username
	}

	if name, ok := p.String(ClaimName); ok && strings.TrimSpace(name) != "" {
		id.DisplayName = strings.TrimSpace(name)
	} else {
		given, _ := p.String(ClaimGivenName)
		family, _ := p.String(ClaimFamilyName)
		id.DisplayName = strings.TrimSpace(strings.TrimSpace(given) + " " + strings.TrimSpace(family))
	}

	id.Initials = initials(id.DisplayName, id.Email)
	return id
}

func initials(name, email string) string {
	var out []rune
	for _, word := range strings.Fields(name) {
		r, _ := utf8.DecodeRuneInString(word)
		out = append(out, unicode.ToUpper(r))
		if len(out) == 2 {
			break
		}
	}
	if len(out) > 0 {
		return string(out)
	}

	if email != "" {
		r, _ := utf8.DecodeRuneInString(email)
		return string(unicode.ToUpper(r))
	}

	return "?"
}
