package logging

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/zap/zapcore"

	"github.com/skynet-mc/skynet/pkg/observability/fields"
)

// setupOTelLogsCore builds a zapcore.Core that exports log records to the
// given OTLP gRPC collector endpoint. Returns nil when the exporter cannot be
// constructed so callers can fall back to local-only logging.
func setupOTelLogsCore(endpoint string) zapcore.Core {
	exporter, err := otlploggrpc.New(context.Background(),
		otlploggrpc.WithEndpoint(endpoint),
		otlploggrpc.WithInsecure(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up otlp log exporter for %s: %v\n", endpoint, err)
		return nil
	}

	md := ResourceMetadataSnapshot()
	attrs := make([]attribute.KeyValue, 0, 6)
	if md.ServiceName != "" {
		attrs = append(attrs, attribute.String(fields.FieldServiceName, md.ServiceName))
	}
	if md.ServiceVersion != "" {
		attrs = append(attrs, attribute.String(fields.FieldServiceVersion, md.ServiceVersion))
	}
	if md.ServiceInstanceID != "" {
		attrs = append(attrs, attribute.String(fields.FieldServiceInstanceID, md.ServiceInstanceID))
	}
	if md.PodName != "" {
		attrs = append(attrs, attribute.String(fields.FieldK8sPodName, md.PodName))
	}
	if md.PodNamespace != "" {
		attrs = append(attrs, attribute.String(fields.FieldK8sNamespaceName, md.PodNamespace))
	}
	if md.NodeName != "" {
		attrs = append(attrs, attribute.String(fields.FieldK8sNodeName, md.NodeName))
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(resource.NewSchemaless(attrs...)),
	)

	return otelzap.NewCore("skynet", otelzap.WithLoggerProvider(provider))
}
