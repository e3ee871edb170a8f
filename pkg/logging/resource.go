package logging

import (
	"os"
	"sync"

	"github.com/skynet-mc/skynet/pkg/observability/fields"
)

const defaultServiceName = "skynet"

// ResourceMetadata identifies the running replica in structured log output
// and in the OTLP resource attached to exported log records.
type ResourceMetadata struct {
	ServiceName       string
	ServiceVersion    string
	ServiceInstanceID string
	PodName           string
	PodNamespace      string
	NodeName          string
}

var (
	resourceMu       sync.RWMutex
	resourceMetadata ResourceMetadata

	activeMu   sync.RWMutex
	activeJSON bool
)

func init() {
	resourceMetadata = ReadResourceMetadataFromEnv()
}

// ReadResourceMetadataFromEnv builds ResourceMetadata from the environment.
// SKYNET_-prefixed variables win over the generic ones.
func ReadResourceMetadataFromEnv() ResourceMetadata {
	md := ResourceMetadata{
		ServiceName:    firstNonEmpty(os.Getenv("SKYNET_SERVICE_NAME"), os.Getenv("SERVICE_NAME"), defaultServiceName),
		ServiceVersion: firstNonEmpty(os.Getenv("SKYNET_SERVICE_VERSION"), os.Getenv("SERVICE_VERSION")),
		PodName:        os.Getenv("POD_NAME"),
		PodNamespace:   os.Getenv("POD_NAMESPACE"),
		NodeName:       os.Getenv("NODE_NAME"),
	}

	md.ServiceInstanceID = md.PodName
	if md.ServiceInstanceID == "" {
		if hn, err := os.Hostname(); err == nil {
			md.ServiceInstanceID = hn
		}
	}

	return md
}

// SetResourceMetadata replaces the process-wide resource metadata.
func SetResourceMetadata(md ResourceMetadata) {
	resourceMu.Lock()
	defer resourceMu.Unlock()
	resourceMetadata = md
}

// ResourceMetadataSnapshot returns a copy of the current resource metadata.
func ResourceMetadataSnapshot() ResourceMetadata {
	resourceMu.RLock()
	defer resourceMu.RUnlock()
	return resourceMetadata
}

// ResourceKeyValues renders the metadata as logr key/value pairs, skipping
// anything unset.
func ResourceKeyValues() []interface{} {
	md := ResourceMetadataSnapshot()

	kv := make([]interface{}, 0, 12)
	if md.ServiceName != "" {
		kv = append(kv, fields.FieldServiceName, md.ServiceName)
	}
	if md.ServiceVersion != "" {
		kv = append(kv, fields.FieldServiceVersion, md.ServiceVersion)
	}
	if md.ServiceInstanceID != "" {
		kv = append(kv, fields.FieldServiceInstanceID, md.ServiceInstanceID)
	}
	if md.PodName != "" {
		kv = append(kv, fields.FieldK8sPodName, md.PodName)
	}
	if md.PodNamespace != "" {
		kv = append(kv, fields.FieldK8sNamespaceName, md.PodNamespace)
	}
	if md.NodeName != "" {
		kv = append(kv, fields.FieldK8sNodeName, md.NodeName)
	}
	return kv
}

func setActiveJSON(on bool) {
	activeMu.Lock()
	defer activeMu.Unlock()
	activeJSON = on
}

func isActiveJSON() bool {
	activeMu.RLock()
	defer activeMu.RUnlock()
	return activeJSON
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
