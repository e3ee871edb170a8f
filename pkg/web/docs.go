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

package web

import (
	"net/http"

	"github.com/skynet-mc/skynet/pkg/version"
)

const docsPage = `<!DOCTYPE html>
<html>
<head><title>skynet api</title></head>
<body>
<h1>skynet control plane</h1>
<p>Authenticated JSON API for proxies, game servers, and operator tooling.</p>
<ul>
<li><code>/api/players</code> &mdash; logins, moves, sanctions, transactions, stats</li>
<li><code>/api/servers</code> &mdash; fleet inventory, provisioning, state reports</li>
<li><code>/api/proxy</code> &mdash; ping data and player counts</li>
<li><code>/api/discord</code> &mdash; account links and webhooks</li>
<li><code>/api/leaderboards</code> &mdash; ranking boards</li>
</ul>
<p>All routes except <code>/api</code> and server registration require an
<code>Authorization</code> header carrying an API key.</p>
</body>
</html>
`

func (h *Handler) docs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Skynet-Version", version.Version)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(docsPage))
}

// postShutdown asks the replica to drain and exit; the orchestrator is
// expected to restart or reschedule it.
func (h *Handler) postShutdown(w http.ResponseWriter, _ *http.Request) {
	h.shutdown.Trigger("api request")
	respondJSON(w, http.StatusOK, nil)
}
