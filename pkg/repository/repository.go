/*
Copyright 2024 The Skynet Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package repository owns all persisted state: servers, players, sessions,
// sanctions, statistics, leaderboards, settings, API keys and discord links.
// Every other component reads and writes through it.
package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/gocql/gocql"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	klog "k8s.io/klog/v2"
)

// ErrNotFound is the explicit absent value: reads that can yield "no row"
// return it instead of a zero struct.
var ErrNotFound = errors.New("not found")

// Error wraps a transport or encoding failure with the operation that hit it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("repository: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gocql.ErrNotFound) {
		return ErrNotFound
	}
	return &Error{Op: op, Err: err}
}

// Column TTLs. The ban pointer TTL is computed from the sanction's remaining
// duration instead.
const (
	TTLPlayerServer = 24 * time.Hour
	TTLWaitingMove  = 24 * time.Hour
	TTLAutoIPBan    = 7 * 24 * time.Hour
	TTLDiscordLink  = 10 * time.Minute
)

// Config carries the connection parameters read from the environment.
type Config struct {
	Address  string
	Keyspace string
	Username string
	Password string
}

// Repository is the concrete store backed by a Scylla/Cassandra cluster.
// Statements are prepared lazily by the driver and cached for the lifetime
// of the session, so the CQL constants below act as the statement catalog.
type Repository struct {
	session   *gocql.Session
	reference *referenceCache
	settings  *gocache.Cache
}

// New connects to the cluster and returns a ready Repository. Connection
// setup is retried a few times because the database may still be starting
// when the control plane boots.
func New(cfg Config) (*Repository, error) {
	cluster := gocql.NewCluster(strings.Split(cfg.Address, ",")...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 5 * time.Second
	cluster.ConnectTimeout = 5 * time.Second
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	var session *gocql.Session
	err := retry.Do(
		func() error {
			var cerr error
			session, cerr = cluster.CreateSession()
			if cerr != nil {
				klog.Errorf("failed to connect to database at %s because of %s", cfg.Address, cerr.Error())
			}
			return cerr
		},
		retry.Delay(1*time.Second),
		retry.Attempts(3),
	)
	if err != nil {
		return nil, &Error{Op: "connect", Err: err}
	}

	reference, err := loadReferenceCache(session)
	if err != nil {
		session.Close()
		return nil, err
	}

	return &Repository{
		session:   session,
		reference: reference,
		settings:  gocache.New(10*time.Second, time.Minute),
	}, nil
}

// Close tears down the underlying session.
func (r *Repository) Close() {
	r.session.Close()
}

// Conversion helpers between the driver's UUID type and the domain's.

func cqlID(id uuid.UUID) gocql.UUID {
	return gocql.UUID(id)
}

func cqlIDPtr(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return gocql.UUID(*id)
}

func domainID(id gocql.UUID) uuid.UUID {
	return uuid.UUID(id)
}

func domainIDPtr(id gocql.UUID) *uuid.UUID {
	if id == (gocql.UUID{}) {
		return nil
	}
	u := uuid.UUID(id)
	return &u
}

func domainIDs(ids []gocql.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]uuid.UUID, len(ids))
	for i, id := range ids {
		out[i] = uuid.UUID(id)
	}
	return out
}

func cqlIDs(ids []uuid.UUID) []gocql.UUID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]gocql.UUID, len(ids))
	for i, id := range ids {
		out[i] = gocql.UUID(id)
	}
	return out
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func strVal(p *string) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeVal(p *time.Time) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func ttlSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	secs := int(d / time.Second)
	if secs == 0 {
		secs = 1
	}
	return secs
}
