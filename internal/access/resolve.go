package access

// Resolve maps a grant and a resource to the effective capability. The
// precedence is fixed:
//
//  1. no grant loaded: deny everything
//  2. admin: allow everything, even over an explicit deny record
//  3. explicit record for the resource: returned as stored
//  4. anything else: deny everything
//
// Resolve is pure and safe for concurrent use.
func Resolve(g *Grant, r Resource) Capability {
	if g == nil {
		return denyAll
	}
	if g.Admin() {
		return allowAll
	}
	if c, ok := g.Entry(string(r)); ok {
		return c
	}
	return denyAll
}

// Can is shorthand for Resolve(g, r).Allows(a).
func Can(g *Grant, r Resource, a Action) bool {
	return Resolve(g, r).Allows(a)
}
