// Package config turns CLI flags into the server's configuration
// record.
package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Primary is the upstream a replica follows.
type Primary struct {
	Host string
	Port int
}

func (p Primary) Addr() string { return fmt.Sprintf("%s:%d", p.Host, p.Port) }

// Config is the immutable startup configuration.
type Config struct {
	Port       int
	Dir        string
	DBFilename string

	// AdminAddr enables the HTTP status listener when non-empty.
	AdminAddr string

	// ReplicaOf is nil when the server starts as primary.
	ReplicaOf *Primary

	// ReplID is the 40-character hex replication identifier minted at
	// startup.
	ReplID string
}

// IsReplica reports whether the server follows a primary.
func (c *Config) IsReplica() bool { return c.ReplicaOf != nil }

// Load parses command-line arguments.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("zkv-server", flag.ContinueOnError)
	port := fs.Int("port", 6379, "TCP port to listen on")
	dir := fs.String("dir", ".", "snapshot directory")
	dbfilename := fs.String("dbfilename", "dump.rdb", "snapshot file name")
	adminAddr := fs.String("admin-addr", "", "HTTP status listener address (disabled when empty)")
	replicaof := fs.String("replicaof", "", `primary to follow, as "<host> <port>"`)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:       *port,
		Dir:        *dir,
		DBFilename: *dbfilename,
		AdminAddr:  *adminAddr,
		ReplID:     newReplID(),
	}

	if *replicaof != "" {
		fields := strings.Fields(*replicaof)
		if len(fields) != 2 {
			return nil, fmt.Errorf(`--replicaof must be "<host> <port>", got %q`, *replicaof)
		}
		p, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("--replicaof port %q: %w", fields[1], err)
		}
		cfg.ReplicaOf = &Primary{Host: fields[0], Port: p}
	}
	return cfg, nil
}

// newReplID mints the 40-character hex replication id.
func newReplID() string {
	hex := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	return hex[:40]
}
