package types

import "strconv"

// Cluster is a named set of nodes replicating the same databases. A
// Cluster's fields are set once by the Cluster Descriptor and never
// mutated afterward; callers must treat it as a read-only snapshot for
// the lifetime of whatever task resolved it.
type Cluster struct {
	Name      string
	Database  DatabaseConfig
	Nodes     []*Node
	LoadedAt  int64 // unix seconds, set by the descriptor on Resolve
}

// NodeByName returns the node with the given name, or nil.
func (c *Cluster) NodeByName(name string) *Node {
	for _, n := range c.Nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// NodeNames returns every node name in declaration order.
func (c *Cluster) NodeNames() []string {
	names := make([]string, len(c.Nodes))
	for i, n := range c.Nodes {
		names[i] = n.Name
	}
	return names
}

// DatabaseConfig holds database-level settings shared by every node in
// a cluster: the logical database name and replication-set membership.
// Per-node overrides (host, port, credentials) live on Node.
type DatabaseConfig struct {
	Name            string
	ReplicationSets []string
}

// Node is one replica in a Cluster: connection coordinates, the
// credentials used to open a session, and TLS material if the node
// requires client-cert authentication at the Postgres level.
type Node struct {
	Name     string
	Host     string
	Port     int
	DBName   string
	User     string
	Password string // decrypted; never logged, never serialized into a DiffFile
	SSLMode  string // e.g. "require", "verify-full"
	SSLCert  string // path to client cert, optional
	SSLKey   string // path to client key, optional
	SSLRoot  string // path to root CA, optional
}

// DSN builds a libpq-style connection string for this node. The
// password is included; callers must never log the result.
func (n *Node) DSN() string {
	sslmode := n.SSLMode
	if sslmode == "" {
		sslmode = "prefer"
	}
	dsn := "host=" + n.Host +
		" port=" + strconv.Itoa(n.Port) +
		" dbname=" + n.DBName +
		" user=" + n.User +
		" password=" + n.Password +
		" sslmode=" + sslmode
	if n.SSLCert != "" {
		dsn += " sslcert=" + n.SSLCert
	}
	if n.SSLKey != "" {
		dsn += " sslkey=" + n.SSLKey
	}
	if n.SSLRoot != "" {
		dsn += " sslrootcert=" + n.SSLRoot
	}
	return dsn
}
