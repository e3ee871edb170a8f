package telemetryfields

import "strings"

// This file contains enumeration values for low-cardinality telemetry fields.
// These are canonical, snake_case values intended for spanmetrics dimensions.

const (
	// Error types
	ErrorTypeRepository   = "repository_error"
	ErrorTypeBus          = "bus_error"
	ErrorTypeOrchestrator = "orchestrator_error"
	ErrorTypeUpstream     = "upstream_error"
	ErrorTypeInternal     = "internal_error"
	ErrorTypeParameter    = "parameter_error"
	ErrorTypeNotFound     = "not_found"
	ErrorTypeUnauthorized = "unauthorized"

	// Login outcomes
	LoginOutcomeAllowed          = "allowed"
	LoginOutcomeBanned           = "banned"
	LoginOutcomeMaintenance      = "maintenance"
	LoginOutcomeRisky            = "risky_ip"
	LoginOutcomeAlreadyConnected = "already_connected"
)

// NormalizeErrorType maps many possible error-type string formats into a canonical
// lower_snake_case enumeration. It accepts the raw error type string (e.g., "RepositoryError")
// and returns the canonical form (e.g., "repository_error").
func NormalizeErrorType(raw string) string {
	switch raw {
	case "RepositoryError", "repositoryError", "repository_error":
		return ErrorTypeRepository
	case "BusError", "busError", "bus_error":
		return ErrorTypeBus
	case "OrchestratorError", "orchestratorError", "orchestrator_error":
		return ErrorTypeOrchestrator
	case "UpstreamError", "upstreamError", "upstream_error", "UpstreamFailed":
		return ErrorTypeUpstream
	case "InternalError", "internalError", "internal_error":
		return ErrorTypeInternal
	case "ParameterError", "parameterError", "parameter_error", "BadRequest":
		return ErrorTypeParameter
	case "NotFound", "notFound", "not_found":
		return ErrorTypeNotFound
	case "Unauthorized", "unauthorized":
		return ErrorTypeUnauthorized
	default:
		res := normalizeDimensionValue(raw)
		res = strings.ReplaceAll(res, "-", "_")
		return res
	}
}

// normalizeDimensionValue lowercases a value and collapses whitespace runs
// into underscores. Hyphens are left alone; NormalizeErrorType folds them.
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
