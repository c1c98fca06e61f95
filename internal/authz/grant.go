package authz

import "strings"

// GrantKind distinguishes the three stored permission forms.
type GrantKind int

const (
	GrantExact GrantKind = iota
	GrantResourceWildcard
	GrantGlobalWildcard
)

// Grant is the structured form of one stored permission string.
type Grant struct {
	Kind     GrantKind
	Resource string
	Action   string
}

// ParseGrant converts a stored permission string into its structured form.
// Recognized shapes: "resource:action", "resource:*", "*:*" and the bare "*".
func ParseGrant(s string) Grant {
	if s == Wildcard {
		return Grant{Kind: GrantGlobalWildcard}
	}
	resource, action, found := strings.Cut(s, ":")
	if !found {
		return Grant{Kind: GrantExact, Resource: resource}
	}
	if resource == Wildcard {
		return Grant{Kind: GrantGlobalWildcard}
	}
	if action == Wildcard {
		return Grant{Kind: GrantResourceWildcard, Resource: resource}
	}
	return Grant{Kind: GrantExact, Resource: resource, Action: action}
}

// GrantSet is a role's resolved permission set. Permission strings are parsed
// once at population time so checks never re-parse.
type GrantSet struct {
	global    bool
	resources map[string]struct{}
	exact     map[string]struct{}
}

// NewGrantSet builds a GrantSet from stored permission strings.
func NewGrantSet(grants []string) *GrantSet {
	s := &GrantSet{
		resources: make(map[string]struct{}),
		exact:     make(map[string]struct{}),
	}
	for _, raw := range grants {
		g := ParseGrant(raw)
		switch g.Kind {
		case GrantGlobalWildcard:
			s.global = true
		case GrantResourceWildcard:
			s.resources[g.Resource] = struct{}{}
		case GrantExact:
			s.exact[g.Resource+":"+g.Action] = struct{}{}
		}
	}
	return s
}

// Allows reports whether the set grants resource:action. Exact matches are
// checked first, then the resource wildcard, then the global wildcard. A
// wildcard on one resource never covers another resource's actions.
func (s *GrantSet) Allows(resource, action string) bool {
	if _, ok := s.exact[resource+":"+action]; ok {
		return true
	}
	if _, ok := s.resources[resource]; ok {
		return true
	}
	return s.global
}

// Len returns the number of distinct grants in the set.
func (s *GrantSet) Len() int {
	n := len(s.exact) + len(s.resources)
	if s.global {
		n++
	}
	return n
}
