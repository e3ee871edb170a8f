package tracing

// Canonical span event names emitted by the reconciler and autoscaler.
const (
	EventReconcileAdoptStart   = "reconciler.adopt.start"
	EventReconcileAdoptSuccess = "reconciler.adopt.success"
	EventReconcileRelease      = "reconciler.release"
	EventReconcileOrphanSeen   = "reconciler.orphan_seen"

	EventAutoscaleServerIdle    = "autoscale.server.idle"
	EventAutoscaleServerDrained = "autoscale.server.drained"
	EventAutoscaleProvision     = "autoscale.provision"
)
