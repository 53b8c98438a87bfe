package crowdfund

import "strings"

// Role is the application level permission tier.
type Role string

const (
	// RoleNone means no role could be resolved (unauthenticated)
	RoleNone Role = ""
	// RoleInvestor browses campaigns and invests
	RoleInvestor Role = "investor"
	// RoleBusiness runs campaigns and withdraws funds
	RoleBusiness Role = "business"
	// RoleAdmin reviews users, KYC, campaigns and withdrawals
	RoleAdmin Role = "admin"
)

// raw claim names, in precedence order
const (
	ClaimRoleAdmin    = "ADMIN"
	ClaimRoleBusiness = "BUSINESS"
	ClaimRoleInvestor = "INVESTOR"
)

// IsValid checks if the role is one of the predefined roles
func (r Role) IsValid() bool {
	switch r {
	case RoleInvestor, RoleBusiness, RoleAdmin:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// ParseRole safely parses a string into a Role
func ParseRole(s string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	return role, role.IsValid()
}

// ResolveRole maps raw claims to a single role: ADMIN, then BUSINESS, then
// INVESTOR. Unrecognized claims default to investor; no claims resolve to
// RoleNone.
func ResolveRole(raw []string) Role {
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		seen[normalizeClaim(r)] = true
	}

	switch {
	case seen[ClaimRoleAdmin]:
		return RoleAdmin
	case seen[ClaimRoleBusiness]:
		return RoleBusiness
	case seen[ClaimRoleInvestor]:
		return RoleInvestor
	case len(raw) > 0:
		return RoleInvestor
	default:
		return RoleNone
	}
}

// RoleOf resolves the role of a payload. Unauthenticated sessions have no
// role; authenticated ones without a recognized claim are investors.
func RoleOf(p *Payload, authenticated bool) Role {
	if !authenticated {
		return RoleNone
	}
	if role := ResolveRole(RolesOf(p)); role != RoleNone {
		return role
	}
	return RoleInvestor
}

// HasRole reports whether role is in allowed.
func HasRole(role Role, allowed []Role) bool {
	for _, a := range allowed {
		if a == role {
			return true
		}
	}
	return false
}

func normalizeClaim(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.TrimPrefix(s, "ROLE_")
}

// Routes holds the redirect targets of the client.
type Routes struct {
	Login             string `json:"login"`
	VerifyOTP         string `json:"verify_otp"`
	InvestorDashboard string `json:"investor_dashboard"`
	BusinessDashboard string `json:"business_dashboard"`
	AdminDashboard    string `json:"admin_dashboard"`
}

// DefaultRoutes returns the canonical paths.
func DefaultRoutes() Routes {
	return Routes{
		Login:             "/login",
		VerifyOTP:         "/verify-otp",
		InvestorDashboard: "/investor/dashboard",
		BusinessDashboard: "/business/dashboard",
		AdminDashboard:    "/admin/dashboard",
	}
}

// DashboardFor returns the landing path for role, the login path otherwise.
func (r Routes) DashboardFor(role Role) string {
	var path string
	switch role {
	case RoleInvestor:
		path = r.InvestorDashboard
	case RoleBusiness:
		path = r.BusinessDashboard
	case RoleAdmin:
		path = r.AdminDashboard
	}
	if path == "" {
		return r.LoginPath()
	}
	return path
}

// LoginPath returns the login route with the default as fallback.
func (r Routes) LoginPath() string {
	if r.Login == "" {
		return DefaultRoutes().Login
	}
	return r.Login
}

// DashboardRouteFor uses the default routes.
func DashboardRouteFor(role Role) string {
	return DefaultRoutes().DashboardFor(role)
}
