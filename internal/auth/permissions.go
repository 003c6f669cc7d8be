package auth

import "strings"

const (
	PermSetsRead      = "sets:read"
	PermSetsWrite     = "sets:write"
	PermSetsExport    = "sets:export"
	PermSetsImport    = "sets:import"
	PermTaxonomyRead  = "taxonomy:read"
	PermTaxonomyWrite = "taxonomy:write"
	PermAssetsWrite   = "assets:write"
	PermAssistantUse  = "assistant:use"
	PermPracticeRun   = "practice:run"
	PermPracticeEdit  = "practice:edit"
	PermResultsOwn    = "results:read-own"
)

var RolePermissions = map[string][]string{
	RoleAdmin: {"*"},
	RoleEditor: {
		"sets:*",
		PermTaxonomyRead,
		PermAssetsWrite,
		PermAssistantUse,
		"practice:*",
		PermResultsOwn,
	},
	RoleViewer: {
		PermSetsRead,
		PermTaxonomyRead,
		PermPracticeRun,
		PermResultsOwn,
	},
}

type Checker struct {
	rolePermissions map[string][]string
}

func NewChecker(rp map[string][]string) *Checker {
	if rp == nil {
		rp = RolePermissions
	}
	return &Checker{rolePermissions: rp}
}

func (c *Checker) Has(role, perm string) bool {
	for _, p := range c.rolePermissions[role] {
		if matchPerm(p, perm) {
			return true
		}
	}
	return false
}

func matchPerm(pattern, perm string) bool {
	if pattern == "*" || pattern == perm {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(perm, strings.TrimSuffix(pattern, "*"))
	}
	return false
}
