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

package repository

import (
	"context"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

// Reference tables loaded once at init: groups, api groups and server
// kinds change through operator tooling followed by a rolling restart, so
// the process treats them as immutable.

const (
	stmtSelectGroups    = `SELECT name, power, prefix, suffix, permissions FROM groups`
	stmtSelectAPIGroups = `SELECT name, permissions FROM api_groups`
	stmtSelectKinds     = `SELECT name, image, permissions, autoscale, startup FROM servers_kinds`

	stmtSelectServerKind      = `SELECT kind FROM servers WHERE id = ?`
	stmtSelectServerKindProps = `SELECT kind, properties FROM servers WHERE id = ?`
)

type referenceCache struct {
	groups    map[string]Group
	apiGroups map[string]ApiGroup
	kinds     map[string]ServerKind
}

func loadReferenceCache(session *gocql.Session) (*referenceCache, error) {
	cache := &referenceCache{
		groups:    map[string]Group{},
		apiGroups: map[string]ApiGroup{},
		kinds:     map[string]ServerKind{},
	}

	{
		iter := session.Query(stmtSelectGroups).Iter()
		var (
			name           string
			power          int
			prefix, suffix *string
			permissions    []string
		)
		for iter.Scan(&name, &power, &prefix, &suffix, &permissions) {
			cache.groups[name] = Group{Name: name, Power: power, Prefix: prefix, Suffix: suffix, Permissions: permissions}
			prefix, suffix, permissions = nil, nil, nil
		}
		if err := iter.Close(); err != nil {
			return nil, wrap("load groups", err)
		}
	}

	{
		iter := session.Query(stmtSelectAPIGroups).Iter()
		var (
			name        string
			permissions []string
		)
		for iter.Scan(&name, &permissions) {
			cache.apiGroups[name] = ApiGroup{Name: name, Permissions: permissions}
			permissions = nil
		}
		if err := iter.Close(); err != nil {
			return nil, wrap("load api groups", err)
		}
	}

	{
		iter := session.Query(stmtSelectKinds).Iter()
		var (
			name, image        string
			permissions        map[string][]string
			autoscale, startup string
		)
		for iter.Scan(&name, &image, &permissions, &autoscale, &startup) {
			as, err := decodeAutoscale(autoscale)
			if err != nil {
				return nil, &Error{Op: "load server kinds", Err: err}
			}
			su, err := decodeStartup(startup)
			if err != nil {
				return nil, &Error{Op: "load server kinds", Err: err}
			}
			cache.kinds[name] = ServerKind{Name: name, Image: image, Permissions: permissions, Autoscale: as, Startup: su}
			permissions, autoscale, startup = nil, "", ""
		}
		if err := iter.Close(); err != nil {
			return nil, wrap("load server kinds", err)
		}
	}

	return cache, nil
}

// GetGroup returns a cached group definition.
func (r *Repository) GetGroup(name string) (Group, bool) {
	g, ok := r.reference.groups[name]
	return g, ok
}

// GroupsByName maps member group names to their definitions, dropping
// unknown names.
func (r *Repository) GroupsByName(names []string) []Group {
	out := make([]Group, 0, len(names))
	for _, name := range names {
		if g, ok := r.reference.groups[name]; ok {
			out = append(out, g)
		}
	}
	return out
}

// GetAPIGroup returns a cached API permission group.
func (r *Repository) GetAPIGroup(name string) (ApiGroup, bool) {
	g, ok := r.reference.apiGroups[name]
	return g, ok
}

// GetServerKind returns a cached kind configuration.
func (r *Repository) GetServerKind(name string) (ServerKind, bool) {
	k, ok := r.reference.kinds[name]
	return k, ok
}

// ServerKinds returns every configured kind.
func (r *Repository) ServerKinds() []ServerKind {
	out := make([]ServerKind, 0, len(r.reference.kinds))
	for _, k := range r.reference.kinds {
		out = append(out, k)
	}
	return out
}

// ServerKindOf resolves the kind name of a registered server or ErrNotFound.
func (r *Repository) ServerKindOf(ctx context.Context, server uuid.UUID) (string, error) {
	var kind string
	err := r.session.Query(stmtSelectServerKind, cqlID(server)).WithContext(ctx).Scan(&kind)
	if err != nil {
		return "", wrap("server kind of", err)
	}
	return kind, nil
}

// ServerKindAndProperties resolves the kind and property map of a server.
func (r *Repository) ServerKindAndProperties(ctx context.Context, server uuid.UUID) (string, map[string]string, error) {
	var (
		kind       string
		properties map[string]string
	)
	err := r.session.Query(stmtSelectServerKindProps, cqlID(server)).WithContext(ctx).Scan(&kind, &properties)
	if err != nil {
		return "", nil, wrap("server kind and properties", err)
	}
	return kind, properties, nil
}
