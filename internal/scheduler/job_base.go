package scheduler

import "github.com/aristath/marketdata/internal/scheduler/base"

// JobBase lets jobs in this package embed run-status tracking without importing base
type JobBase = base.JobBase
