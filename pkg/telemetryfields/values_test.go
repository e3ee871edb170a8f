package telemetryfields

import "testing"

func TestNormalizeErrorType(t *testing.T) {
	cases := map[string]string{
		"RepositoryError":  ErrorTypeRepository,
		"repositoryError":  ErrorTypeRepository,
		"repository_error": ErrorTypeRepository,
		"BusError":         ErrorTypeBus,
		"UpstreamFailed":   ErrorTypeUpstream,
		"InternalError":    ErrorTypeInternal,
		"internalError":    ErrorTypeInternal,
		"ParameterError":   ErrorTypeParameter,
		"NotFound":         ErrorTypeNotFound,
		"Unauthorized":     ErrorTypeUnauthorized,
		"somethingElse":    "somethingelse",
		"Two Words":        "two_words",
	}
	for k, want := range cases {
		if got := NormalizeErrorType(k); got != want {
			t.Fatalf("NormalizeErrorType(%q) = %q, want %q", k, got, want)
		}
	}
}
