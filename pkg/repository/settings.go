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
)

const (
	stmtSelectSetting = `SELECT value FROM settings WHERE key = ?`
	stmtInsertSetting = `INSERT INTO settings (key, value) VALUES (?, ?)`
)

// GetSetting reads a runtime-mutable setting. Values are cached
// opportunistically for a few seconds to keep the prelogin path off the
// database; writes go through SetSetting and refresh the cache.
func (r *Repository) GetSetting(ctx context.Context, key string) (string, error) {
	if cached, ok := r.settings.Get(key); ok {
		return cached.(string), nil
	}
	var value string
	err := r.session.Query(stmtSelectSetting, key).WithContext(ctx).Scan(&value)
	if err != nil {
		if wrapped := wrap("get setting", err); wrapped != ErrNotFound {
			return "", wrapped
		}
		return "", nil
	}
	r.settings.SetDefault(key, value)
	return value, nil
}

// SetSetting upserts a setting and refreshes the local cache entry.
func (r *Repository) SetSetting(ctx context.Context, key, value string) error {
	if err := r.session.Query(stmtInsertSetting, key, value).WithContext(ctx).Exec(); err != nil {
		return wrap("set setting", err)
	}
	r.settings.SetDefault(key, value)
	return nil
}
