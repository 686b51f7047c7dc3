package constants

import (
	"math"
	"time"
)

// MaxDurationSeconds is the largest whole number of seconds a time.Duration holds.
const MaxDurationSeconds = math.MaxInt64 / int64(time.Second)

// Requeue intervals used by reconcilers.
const (
	RequeueShort    = 5 * time.Second
	RequeueStandard = 1 * time.Minute
)

// Per-resource leader election timings. The informer resync period must exceed LeaseDuration.
const (
	LeaseDuration = 15 * time.Second
	LeaseRenew    = 10 * time.Second
	LeaseRetry    = 2 * time.Second
)

const (
	// ReadyPollInterval is the backoff between watch sync checks.
	ReadyPollInterval = 100 * time.Millisecond
	// HACleanupInterval separates rounds of HA ConfigMap deletion.
	HACleanupInterval = 100 * time.Millisecond
	// PauseShutdownGrace bounds how long the resume worker may take to exit.
	PauseShutdownGrace = 2 * time.Second
	// BroadcastRequestTimeout bounds each per-pod upgrade hook call.
	BroadcastRequestTimeout = 30 * time.Second
)
