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

package lifecycle

import (
	"fmt"
	"strings"

	"github.com/skynet-mc/skynet/pkg/repository"
)

const defaultLocale = "fr"

// composePermissions resolves the effective permission set for a login on
// the named kind: the union of group permissions, the power marker, the
// player's own permissions, and the kind's per-group overrides, then
// scope-filtered. Returns the set and the player's power.
func (s *Service) composePermissions(groupNames, playerPerms []string, kindName string) ([]string, int) {
	if len(groupNames) == 0 {
		groupNames = []string{"Default"}
	}
	groups := s.store.GroupsByName(groupNames)

	power := 0
	for _, g := range groups {
		if g.Power > power {
			power = g.Power
		}
	}

	var permissions []string
	for _, g := range groups {
		permissions = append(permissions, g.Permissions...)
	}
	permissions = append(permissions, fmt.Sprintf("power.%d", power))
	permissions = append(permissions, playerPerms...)

	if kind, ok := s.store.GetServerKind(kindName); ok {
		for _, name := range groupNames {
			permissions = append(permissions, kind.Permissions[name]...)
		}
	}

	return filterScoped(permissions), power
}

// filterScoped keeps unscoped permissions, strips the proxy scope, and
// drops every other scope.
func filterScoped(permissions []string) []string {
	out := make([]string, 0, len(permissions))
	for _, p := range permissions {
		switch {
		case !strings.Contains(p, ":"):
			out = append(out, p)
		case strings.HasPrefix(p, "proxy:"):
			out = append(out, strings.TrimPrefix(p, "proxy:"))
		}
	}
	return out
}

// decoration picks the prefix/suffix pair: the player's explicit value
// wins, otherwise the value of the highest-power group that defines one.
func (s *Service) decoration(groupNames []string, explicitPrefix, explicitSuffix *string) (*string, *string) {
	if len(groupNames) == 0 {
		groupNames = []string{"Default"}
	}
	groups := s.store.GroupsByName(groupNames)

	prefix := explicitPrefix
	if prefix == nil {
		prefix = pickDecoration(groups, func(g repository.Group) *string { return g.Prefix })
	}
	suffix := explicitSuffix
	if suffix == nil {
		suffix = pickDecoration(groups, func(g repository.Group) *string { return g.Suffix })
	}
	return prefix, suffix
}

func pickDecoration(groups []repository.Group, pick func(repository.Group) *string) *string {
	var (
		best      *string
		bestPower int
	)
	for _, g := range groups {
		value := pick(g)
		if value == nil {
			continue
		}
		if best == nil || g.Power > bestPower {
			best = value
			bestPower = g.Power
		}
	}
	return best
}

func localeOrDefault(locale *string) string {
	if locale != nil && *locale != "" {
		return *locale
	}
	return defaultLocale
}
