package tracing

// Canonical root span names. Keep the verb-object convention so collectors
// and dashboards stay aligned with what the code emits.
const (
	SpanReconcilePod       = "reconcile pod"
	SpanAdoptServer        = "adopt server"
	SpanReleaseServer      = "release server"
	SpanAutoscaleTick      = "autoscale tick"
	SpanPublishEvent       = "publish event"
	SpanConsumeEvent       = "consume event"
	SpanPlayerPreLogin     = "player prelogin"
	SpanPlayerLogin        = "player login"
	SpanPlayerMove         = "move player"
	SpanSessionClose       = "close session"
	SpanLeaderboardRebuild = "rebuild leaderboard"
)
