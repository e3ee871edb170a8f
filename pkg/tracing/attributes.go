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

package tracing

import (
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/skynet-mc/skynet/pkg/observability/fields"
)

// Standardized attribute/log field names for server and player metadata.
const (
	FieldServerID    = "skynet.mc.server.id"
	FieldServerName  = "skynet.mc.server.name"
	FieldServerKind  = "skynet.mc.server.kind"
	FieldServerState = "skynet.mc.server.state"
	FieldPlayerID    = "skynet.mc.player.id"
	FieldUsername    = "skynet.mc.player.username"
	FieldSessionID   = "skynet.mc.session.id"
	FieldProxyID     = "skynet.mc.proxy.id"
	FieldComponent   = "skynet.mc.component"
)

// Standardized logger field names to avoid ad-hoc magic strings.
const (
	FieldClientAddress   = "client.address"
	FieldCount           = "skynet.mc.count"
	FieldError           = "error"
	FieldEvent           = "skynet.mc.event"
	FieldK8sNamespace    = fields.FieldK8sNamespaceName
	FieldK8sPodName      = fields.FieldK8sPodName
	FieldLeaderboardName = "skynet.mc.leaderboard.name"
	FieldOnlineCount     = "skynet.mc.online_count"
	FieldReason          = "skynet.mc.reason"
	FieldReplicaID       = "skynet.mc.replica.id"
	FieldLoginOutcome    = "skynet.mc.login.outcome"
	FieldRoutingKey      = "messaging.rabbitmq.destination.routing_key"
	FieldSlots           = "skynet.mc.server.slots"
	FieldSpanID          = fields.FieldSpanID
	FieldTraceID         = fields.FieldTraceID
)

var (
	serverIDKey    = attribute.Key(FieldServerID)
	serverNameKey  = attribute.Key(FieldServerName)
	serverKindKey  = attribute.Key(FieldServerKind)
	serverStateKey = attribute.Key(FieldServerState)
	playerIDKey    = attribute.Key(FieldPlayerID)
	usernameKey    = attribute.Key(FieldUsername)
	sessionIDKey   = attribute.Key(FieldSessionID)
	proxyIDKey     = attribute.Key(FieldProxyID)
	componentKey   = attribute.Key(FieldComponent)
	routingKeyKey  = attribute.Key(FieldRoutingKey)
	loginOutcome   = attribute.Key(FieldLoginOutcome)
	errorTypeKey   = attribute.Key("error.type")
	onlineCountKey = attribute.Key(FieldOnlineCount)
)

// AttrServerID returns a span attribute carrying a server identity.
func AttrServerID(id uuid.UUID) attribute.KeyValue {
	return serverIDKey.String(id.String())
}

// AttrServerName returns a span attribute carrying a server pod name.
func AttrServerName(name string) attribute.KeyValue {
	return serverNameKey.String(name)
}

// AttrServerKind returns a span attribute carrying a server kind.
func AttrServerKind(kind string) attribute.KeyValue {
	return serverKindKey.String(normalizeDimensionValue(kind))
}

// AttrServerState returns a span attribute carrying the lifecycle state of a server.
func AttrServerState(state string) attribute.KeyValue {
	return serverStateKey.String(normalizeDimensionValue(state))
}

// AttrPlayerID returns a span attribute carrying a player identity.
func AttrPlayerID(id uuid.UUID) attribute.KeyValue {
	return playerIDKey.String(id.String())
}

// AttrUsername returns a span attribute carrying a player username.
func AttrUsername(name string) attribute.KeyValue {
	return usernameKey.String(name)
}

// AttrSessionID returns a span attribute carrying a session identity.
func AttrSessionID(id uuid.UUID) attribute.KeyValue {
	return sessionIDKey.String(id.String())
}

// AttrProxyID returns a span attribute carrying a proxy identity.
func AttrProxyID(id uuid.UUID) attribute.KeyValue {
	return proxyIDKey.String(id.String())
}

// AttrComponent returns a span attribute naming the component emitting the span.
func AttrComponent(component string) attribute.KeyValue {
	return componentKey.String(component)
}

// AttrLoginOutcome returns a span attribute carrying a canonical login
// outcome value.
func AttrLoginOutcome(outcome string) attribute.KeyValue {
	return loginOutcome.String(outcome)
}

// AttrRoutingKey returns a span attribute carrying an AMQP routing key.
func AttrRoutingKey(key string) attribute.KeyValue {
	return routingKeyKey.String(key)
}

// AttrErrorType returns a span attribute carrying the classified error type.
func AttrErrorType(errType string) attribute.KeyValue {
	return errorTypeKey.String(errType)
}

// AttrOnlineCount returns a span attribute carrying an aggregated player count.
func AttrOnlineCount(count int) attribute.KeyValue {
	return onlineCountKey.Int(count)
}

// AttrsForServer returns the common attribute pair for a server span.
func AttrsForServer(id uuid.UUID, kind string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if id != uuid.Nil {
		attrs = append(attrs, AttrServerID(id))
	}
	if kind != "" {
		attrs = append(attrs, AttrServerKind(kind))
	}
	return attrs
}

// normalizeDimensionValue converts human-friendly names into lower snake case
// strings so that metric dimensions remain stable across emitters.
func normalizeDimensionValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	lower := strings.ToLower(trimmed)
	if strings.ContainsAny(lower, " \t") {
		lower = strings.Join(strings.Fields(lower), "_")
	}
	return lower
}
