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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	klog "k8s.io/klog/v2"

	"github.com/skynet-mc/skynet/pkg/message"
	"github.com/skynet-mc/skynet/pkg/repository"
	"github.com/skynet-mc/skynet/pkg/telemetryfields"
	"github.com/skynet-mc/skynet/pkg/tracing"
)

// PreLoginDecision is the screening outcome for a connecting IP.
type PreLoginDecision struct {
	Allowed bool
	Message message.Message
}

func allowed() PreLoginDecision {
	return PreLoginDecision{Allowed: true}
}

func denied(msg message.Message) PreLoginDecision {
	return PreLoginDecision{Message: msg}
}

// PreLogin screens an IP before the client handshake: maintenance gate,
// active IP ban, then reputation. Loopback always passes, and a reputation
// outage fails open.
func (s *Service) PreLogin(ctx context.Context, ip string) (PreLoginDecision, error) {
	ctx, span := otel.Tracer("skynet").Start(ctx, tracing.SpanPlayerPreLogin,
		trace.WithAttributes(tracing.AttrLoginOutcome(telemetryfields.LoginOutcomeAllowed)))
	defer span.End()

	maintenance, err := s.store.GetSetting(ctx, repository.SettingMaintenance)
	if err != nil {
		return PreLoginDecision{}, err
	}
	if maintenance == "true" {
		override, err := s.maintenanceOverride(ctx)
		if err != nil {
			return PreLoginDecision{}, err
		}
		for _, allowedIP := range override {
			if allowedIP == ip {
				return allowed(), nil
			}
		}
		span.SetAttributes(tracing.AttrLoginOutcome(telemetryfields.LoginOutcomeMaintenance))
		return denied(message.NewBuilder().
			Colored("SkyNet ", message.DarkPurple).
			Colored("> ", message.DarkGray).
			Colored("Connection impossible...", message.Red).
			LineBreak().
			Text("Le serveur est en maintenance, merci de réessayer plus tard").
			Build()), nil
	}

	ipBan, err := s.store.GetIPBan(ctx, ip)
	switch {
	case err == nil:
		reference := "Aucune"
		if ipBan.Ban != nil {
			reference = ipBan.Ban.String()
		}
		span.SetAttributes(tracing.AttrLoginOutcome(telemetryfields.LoginOutcomeBanned))
		return denied(deniedIPMessage(reference)), nil
	case !errors.Is(err, repository.ErrNotFound):
		return PreLoginDecision{}, err
	}

	if parsed := net.ParseIP(ip); parsed != nil && parsed.IsLoopback() {
		return allowed(), nil
	}

	if s.reputation == nil {
		return allowed(), nil
	}
	verdict, err := s.reputation.CheckIP(ctx, ip)
	if err != nil {
		klog.Errorf("ip reputation check for %s: %v", ip, err)
		return allowed(), nil
	}
	if !verdict.Risky() {
		return allowed(), nil
	}

	// A week-long automated ban keeps repeat offenders off the reputation
	// API while it is still cached.
	reason := verdict.String()
	banID, err := s.store.InsertIPBan(ctx, ip, &reason, nil, durationPtr(repository.TTLAutoIPBan), true)
	if err != nil {
		return PreLoginDecision{}, err
	}
	span.SetAttributes(tracing.AttrLoginOutcome(telemetryfields.LoginOutcomeRisky))
	return denied(deniedIPMessage(banID.String())), nil
}

func (s *Service) maintenanceOverride(ctx context.Context) ([]string, error) {
	raw, err := s.store.GetSetting(ctx, repository.SettingMaintenanceOverride)
	if err != nil || raw == "" {
		return nil, err
	}
	var ips []string
	if err := json.Unmarshal([]byte(raw), &ips); err != nil {
		return nil, fmt.Errorf("parse maintenance override list: %w", err)
	}
	return ips, nil
}

func deniedIPMessage(reference string) message.Message {
	return message.NewBuilder().
		Colored("SkyNet ", message.DarkPurple).
		Colored("> ", message.DarkGray).
		Colored("Connection impossible...", message.Red).
		LineBreak().
		Text("Votre adresse ip n'est pas autorisée a se connecter").
		LineBreak().
		Text("Référence : " + reference).
		Build()
}
