package authz

// RuleKind classifies what a path lookup resolved to.
type RuleKind int

const (
	// RuleUnmapped means the path is not in the map at all. Unmapped
	// paths are accessible to any authenticated identity.
	RuleUnmapped RuleKind = iota

	// RuleAlways means the path is mapped to the 'always' sentinel and
	// is accessible to any authenticated identity.
	RuleAlways

	// RuleCapability means access requires the returned capability.
	RuleCapability
)

// PathMap maps an administrative route to the capability required to
// view it, or to the 'always' sentinel. The allow/deny asymmetry is
// deliberate policy: a path absent from the map defaults to allow,
// while a mapped capability the role lacks denies.
type PathMap map[string]pathRule

type pathRule struct {
	always     bool
	capability Capability
}

// DefaultPathMap returns the built-in admin route permission map.
func DefaultPathMap() PathMap {
	return PathMap{
		"/admin":           {always: true},
		"/admin/articles":  {always: true},
		"/admin/media":     {capability: CapManageMedia},
		"/admin/comments":  {capability: CapModerateComments},
		"/admin/analytics": {capability: CapViewAnalytics},
		"/admin/users":     {capability: CapManageUsers},
		"/admin/settings":  {capability: CapManageSettings},
	}
}

// RequiredCapability resolves the rule for a path. The capability
// return value is only meaningful when the kind is RuleCapability.
func (p PathMap) RequiredCapability(path string) (Capability, RuleKind) {
	rule, ok := p[path]
	if !ok {
		return "", RuleUnmapped
	}
	if rule.always {
		return "", RuleAlways
	}
	return rule.capability, RuleCapability
}
