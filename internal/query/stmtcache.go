package query

// preparedStatement records one named statement parsed on this
// connection's server session.
type preparedStatement struct {
	name       string
	parsed     bool
	paramCount int
}

// stmtCache tracks which named statements have been parsed on one
// connection. It is owned by exactly one Conn and accessed only while
// the connection's exchange lock is held, so it needs no locking of
// its own. Entries never survive the connection: clear is called on
// close and on transport failure.
type stmtCache struct {
	entries map[string]*preparedStatement
}

func newStmtCache() *stmtCache {
	return &stmtCache{entries: make(map[string]*preparedStatement)}
}

// lookup returns the cache entry for name, if the statement has been
// parsed on this connection.
func (c *stmtCache) lookup(name string) (*preparedStatement, bool) {
	stmt, ok := c.entries[name]
	return stmt, ok
}

// markParsed records that a Parse for name completed on the server.
// Reusing a name with different query text is a caller contract
// violation the server reports; the cache keys on name alone.
func (c *stmtCache) markParsed(name string, paramCount int) {
	c.entries[name] = &preparedStatement{
		name:       name,
		parsed:     true,
		paramCount: paramCount,
	}
}

func (c *stmtCache) clear() {
	c.entries = make(map[string]*preparedStatement)
}

func (c *stmtCache) len() int {
	return len(c.entries)
}
