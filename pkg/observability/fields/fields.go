package fields

// Shared telemetry attribute names used by both the logging and tracing
// packages. Keeping the constants here avoids an import cycle between the
// two; this package must stay free of other project imports.
const (
	FieldServiceName       = "service.name"
	FieldServiceVersion    = "service.version"
	FieldServiceInstanceID = "service.instance.id"
	FieldServiceNamespace  = "service.namespace"
	FieldK8sNamespaceName  = "k8s.namespace.name"
	FieldK8sPodName        = "k8s.pod.name"
	FieldK8sNodeName       = "k8s.node.name"
	FieldTraceID           = "trace_id"
	FieldSpanID            = "span_id"
)
