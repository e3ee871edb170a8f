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
	"errors"

	"github.com/google/uuid"
	klog "k8s.io/klog/v2"

	"github.com/samber/lo"
)

const stmtSelectApiKey = `SELECT key, group FROM api_keys WHERE key = ?`

// HasRoutePermission reports whether the API key grants the named
// permission. An unknown key denies. A key with no group is unrestricted
// and allowed through, with a warning so the usage shows up in the logs.
func (r *Repository) HasRoutePermission(ctx context.Context, key uuid.UUID, permission string) (bool, error) {
	key2, err := r.GetApiKey(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if key2.Group == nil {
		klog.Warningf("unrestricted api key usage (%s), usage of this type of key should be avoided", key)
		return true, nil
	}

	group, ok := r.GetAPIGroup(*key2.Group)
	if !ok {
		return false, nil
	}
	return lo.Contains(group.Permissions, permission), nil
}

// GetApiKey loads a key row or ErrNotFound.
func (r *Repository) GetApiKey(ctx context.Context, key uuid.UUID) (ApiKey, error) {
	var group *string
	k := cqlID(key)
	err := r.session.Query(stmtSelectApiKey, k).WithContext(ctx).Scan(&k, &group)
	if err != nil {
		return ApiKey{}, wrap("get api key", err)
	}
	return ApiKey{Key: key, Group: group}, nil
}
