package scheduler

// Generation hands out cancellation tokens. Bumping the generation
// invalidates every token issued before it, so callbacks that captured an
// older token can tell they are stale.
type Generation struct {
	n uint64
}

// Token is a snapshot of a Generation.
type Token struct {
	g *Generation
	n uint64
}

// Next invalidates outstanding tokens and returns a fresh one.
func (g *Generation) Next() Token {
	g.n++
	return Token{g: g, n: g.n}
}

// Invalidate cancels outstanding tokens without issuing a new one.
func (g *Generation) Invalidate() {
	g.n++
}

// Valid reports whether no newer token has been issued since t.
func (t Token) Valid() bool {
	return t.g != nil && t.g.n == t.n
}
