package auth

import (
	"net/http"
	"strings"
)

// Rule grants access to requests whose path starts with Prefix (and ends with
// Suffix, when set). An empty Methods list matches every method.
type Rule struct {
	Methods []string
	Prefix  string
	Suffix  string
	Role    Role
}

func (r Rule) matches(req *http.Request) bool {
	path := req.URL.Path
	if !strings.HasPrefix(path, r.Prefix) || !strings.HasSuffix(path, r.Suffix) {
		return false
	}
	if len(r.Methods) == 0 {
		return true
	}
	for _, method := range r.Methods {
		if method == req.Method {
			return true
		}
	}
	return false
}

// Policy maps requests to the role they require. Rules are checked in order
// and the first match wins. Paths under /api/ with no matching rule need admin;
// anything else is public.
type Policy struct {
	public map[string]bool
	rules  []Rule
}

// NewPolicy builds a policy. publicPaths are matched exactly.
func NewPolicy(publicPaths []string, rules ...Rule) Policy {
	public := make(map[string]bool, len(publicPaths))
	for _, path := range publicPaths {
		public[path] = true
	}
	return Policy{public: public, rules: rules}
}

// StatementRules are the access rules of the statement API.
func StatementRules() []Rule {
	read := []string{http.MethodGet, http.MethodHead}
	return []Rule{
		{Prefix: "/api/v1/statements/bulk", Role: RoleAdmin},
		{Prefix: "/api/v1/statements/files", Methods: read, Role: RoleCashier},
		{Prefix: "/api/v1/enrollments/", Suffix: "/export.xlsx", Methods: read, Role: RoleCashier},
		{Prefix: "/api/v1/enrollments/", Suffix: "/generate", Role: RoleAdmin},
		{Prefix: "/api/v1/enrollments/", Methods: read, Role: RoleStudent},
	}
}

// Require returns the role req needs, or false when it is public.
func (p Policy) Require(req *http.Request) (Role, bool) {
	if req == nil || p.public[req.URL.Path] {
		return "", false
	}
	for _, rule := range p.rules {
		if rule.matches(req) {
			return rule.Role, true
		}
	}
	if strings.HasPrefix(req.URL.Path, "/api/") {
		return RoleAdmin, true
	}
	return "", false
}
