package streambox

import "time"

// Metrics captures scheduler telemetry. Every method is labeled with the box name.
type Metrics interface {
	// ObserveBatchDuration records the time to claim, process and commit a batch.
	ObserveBatchDuration(box string, duration time.Duration)
	// AddClaimed increments the count of claimed records.
	AddClaimed(box string, count int)
	// AddProcessed increments the count of records moved to FINISHED.
	AddProcessed(box string, count int)
	// AddErrors increments the count of records left pending after a failure.
	AddErrors(box string, count int)
	// SetPending updates the current pending record count.
	SetPending(box string, count int)
}

// NopMetrics is a no-op metrics recorder.
type NopMetrics struct{}

// ObserveBatchDuration implements Metrics.
func (NopMetrics) ObserveBatchDuration(string, time.Duration) {}

// AddClaimed implements Metrics.
func (NopMetrics) AddClaimed(string, int) {}

// AddProcessed implements Metrics.
func (NopMetrics) AddProcessed(string, int) {}

// AddErrors implements Metrics.
func (NopMetrics) AddErrors(string, int) {}

// SetPending implements Metrics.
func (NopMetrics) SetPending(string, int) {}
