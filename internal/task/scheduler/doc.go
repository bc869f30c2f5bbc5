// Package scheduler runs a job on wall-clock-aligned boundaries.
//
// Aligned computes wake times (it is a cron.Schedule); Loop sleeps until the
// next one, runs the job, and only then arms the following sleep.
package scheduler
