package clusterdesc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuemby/ace/pkg/security"
	"github.com/cuemby/ace/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var bucketClusters = []byte("clusters")

// record is the on-disk shape of a cluster: identical to types.Cluster
// except each node's password is a sealed ciphertext rather than
// plaintext.
type record struct {
	Name     string              `json:"name"`
	Database types.DatabaseConfig `json:"database"`
	Nodes    []nodeRecord        `json:"nodes"`
}

type nodeRecord struct {
	Name           string `json:"name"`
	Host           string `json:"host"`
	Port           int    `json:"port"`
	DBName         string `json:"dbname"`
	User           string `json:"user"`
	SealedPassword []byte `json:"sealed_password"`
	SSLMode        string `json:"ssl_mode,omitempty"`
	SSLCert        string `json:"ssl_cert,omitempty"`
	SSLKey         string `json:"ssl_key,omitempty"`
	SSLRoot        string `json:"ssl_root,omitempty"`
}

// Descriptor resolves cluster names against an embedded bbolt cache.
// Safe for concurrent use: bbolt serializes writes and allows
// concurrent read transactions, and Resolve never writes.
type Descriptor struct {
	db      *bolt.DB
	secrets *security.SecretsManager
}

// Open opens (creating if absent) the descriptor cache at path,
// sealing/unsealing node passwords with the given 32-byte key.
func Open(path string, encryptionKey []byte) (*Descriptor, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open descriptor cache: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketClusters)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init descriptor cache: %w", err)
	}

	secrets, err := security.NewSecretsManager(encryptionKey)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Descriptor{db: db, secrets: secrets}, nil
}

// Close releases the underlying database handle.
func (d *Descriptor) Close() error {
	return d.db.Close()
}

// Put stores or replaces a cluster's descriptor record. This is the
// write path the external topology loader uses to populate the cache;
// it is not part of the runtime Resolve hot path.
func (d *Descriptor) Put(c *types.Cluster) error {
	if c.Name == "" {
		return types.NewError(types.KindValidation, "cluster name is required", types.ErrInvalidClusterSpec)
	}
	if len(c.Nodes) == 0 {
		return types.NewError(types.KindValidation, "cluster must declare at least one node", types.ErrInvalidClusterSpec)
	}

	rec := record{Name: c.Name, Database: c.Database}
	for _, n := range c.Nodes {
		if n.Name == "" || n.Host == "" || n.Port == 0 || n.DBName == "" || n.User == "" {
			return types.NewError(types.KindValidation, fmt.Sprintf("node %q is missing required fields", n.Name), types.ErrInvalidClusterSpec)
		}
		sealed, err := d.secrets.EncryptNodePassword(n.Password)
		if err != nil {
			return fmt.Errorf("seal password for node %s: %w", n.Name, err)
		}
		rec.Nodes = append(rec.Nodes, nodeRecord{
			Name: n.Name, Host: n.Host, Port: n.Port, DBName: n.DBName,
			User: n.User, SealedPassword: sealed,
			SSLMode: n.SSLMode, SSLCert: n.SSLCert, SSLKey: n.SSLKey, SSLRoot: n.SSLRoot,
		})
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal cluster record: %w", err)
	}

	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketClusters).Put([]byte(c.Name), data)
	})
}

// Resolve returns the named cluster with node passwords decrypted in
// memory. No network I/O is performed.
func (d *Descriptor) Resolve(name string) (*types.Cluster, error) {
	var data []byte
	if err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketClusters).Get([]byte(name))
		if v == nil {
			return nil
		}
		data = append([]byte(nil), v...)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("read descriptor cache: %w", err)
	}

	if data == nil {
		return nil, types.NewError(types.KindValidation, fmt.Sprintf("cluster %q not found", name), types.ErrClusterNotFound)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode cluster record: %w", err)
	}
	if len(rec.Nodes) == 0 {
		return nil, types.NewError(types.KindValidation, fmt.Sprintf("cluster %q has no nodes", name), types.ErrInvalidClusterSpec)
	}

	cluster := &types.Cluster{Name: rec.Name, Database: rec.Database, LoadedAt: time.Now().Unix()}
	for _, nr := range rec.Nodes {
		if nr.Name == "" || nr.Host == "" || nr.Port == 0 || nr.DBName == "" {
			return nil, types.NewError(types.KindValidation, fmt.Sprintf("cluster %q node %q is missing required fields", name, nr.Name), types.ErrInvalidClusterSpec)
		}
		password, err := d.secrets.DecryptNodePassword(nr.SealedPassword)
		if err != nil {
			return nil, fmt.Errorf("unseal password for node %s: %w", nr.Name, err)
		}
		cluster.Nodes = append(cluster.Nodes, &types.Node{
			Name: nr.Name, Host: nr.Host, Port: nr.Port, DBName: nr.DBName,
			User: nr.User, Password: password,
			SSLMode: nr.SSLMode, SSLCert: nr.SSLCert, SSLKey: nr.SSLKey, SSLRoot: nr.SSLRoot,
		})
	}

	return cluster, nil
}

// List returns every cached cluster name.
func (d *Descriptor) List() ([]string, error) {
	var names []string
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketClusters).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, err
}
