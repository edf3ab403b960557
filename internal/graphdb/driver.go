package graphdb

import "context"

// AccessMode routes a session to a writer or a reader.
type AccessMode int

const (
	AccessWrite AccessMode = iota
	AccessRead
)

func (m AccessMode) String() string {
	if m == AccessRead {
		return "read"
	}
	return "write"
}

// SessionOptions configures a new session.
type SessionOptions struct {
	Mode AccessMode
	// Bookmarks make the session wait until the store has caught up with them.
	Bookmarks []string
}

// Driver is the entry point to a graph backend.
type Driver interface {
	// Backend names the store, e.g. "Neo4j".
	Backend() string
	NewSession(ctx context.Context, opts SessionOptions) (Session, error)
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// Session is a scoped unit of work. It must be closed on every exit path.
type Session interface {
	// Run executes query in an auto-commit transaction and collects every record.
	Run(ctx context.Context, query string, params map[string]any) (*Result, error)
	BeginTransaction(ctx context.Context) (Transaction, error)
	// LastBookmark returns the bookmark of the last committed transaction, or "".
	LastBookmark() string
	Close(ctx context.Context) error
}

// Transaction is an explicit transaction. Run may be called from several
// goroutines; implementations serialize access to the underlying connection.
type Transaction interface {
	Run(ctx context.Context, query string, params map[string]any) ([]Record, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Result is a fully collected query result.
type Result struct {
	Records  []Record
	Counters Counters
}

// Record is one driver row. Values may hold Node or Relationship entities.
type Record struct {
	Keys   []string
	Values []any
}

// Get returns the value stored under key.
func (r Record) Get(key string) (any, bool) {
	for i, k := range r.Keys {
		if k == key && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Node is a graph node as returned by a backend.
type Node struct {
	ID     string
	Labels []string
	Props  map[string]any
}

// Relationship is a graph relationship as returned by a backend.
type Relationship struct {
	ID      string
	Type    string
	StartID string
	EndID   string
	Props   map[string]any
}

// Counters are the mutation statistics of one query.
type Counters struct {
	NodesCreated         int `json:"nodesCreated"`
	NodesDeleted         int `json:"nodesDeleted"`
	RelationshipsCreated int `json:"relationshipsCreated"`
	RelationshipsDeleted int `json:"relationshipsDeleted"`
	PropertiesSet        int `json:"propertiesSet"`
	LabelsAdded          int `json:"labelsAdded"`
	LabelsRemoved        int `json:"labelsRemoved"`
	IndexesAdded         int `json:"indexesAdded"`
	IndexesRemoved       int `json:"indexesRemoved"`
	ConstraintsAdded     int `json:"constraintsAdded"`
	ConstraintsRemoved   int `json:"constraintsRemoved"`
}

// ContainsUpdates reports whether any counter is non-zero.
func (c Counters) ContainsUpdates() bool {
	return c != Counters{}
}
