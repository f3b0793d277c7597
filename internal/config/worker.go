package config

import "fmt"

// WorkerConfig mirrors spec.md §4.F's option table exactly: the queue name
// a worker binary processes, its fan-out, the process-isolation and
// result-retention policy, and the blocking-pop timeout.
type WorkerConfig struct {
	// Queue is the name of the queue this worker processes.
	Queue string `env:"QUEUE" envDefault:"default"`

	// Concurrency is the number of independent worker loops to run.
	Concurrency int `env:"CONCURRENCY" envDefault:"10"`

	// ForkToHandle runs each attempt in a freshly exec'd child process when
	// true; runs in-process (with panic recovery) when false.
	ForkToHandle bool `env:"FORK_TO_HANDLE" envDefault:"false"`

	// CleanSuccessfulJobsLogs deletes a successful job's record immediately
	// instead of retaining it with a TTL.
	CleanSuccessfulJobsLogs bool `env:"CLEAN_SUCCESSFUL_JOBS_LOGS" envDefault:"true"`

	// JobLogExpireSeconds is the TTL applied to retained records.
	JobLogExpireSeconds int `env:"JOB_LOG_EXPIRE_SECONDS" envDefault:"86400"`

	// QueueTimeout is the number of seconds one blocking-pop attempt waits.
	QueueTimeout int `env:"QUEUE_TIMEOUT" envDefault:"5"`
}

// Validate checks the worker configuration for sane values.
func (c *WorkerConfig) Validate() error {
	if c.Queue == "" {
		return fmt.Errorf("worker queue name cannot be empty")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("worker concurrency must be at least 1 (got %d)", c.Concurrency)
	}
	if c.QueueTimeout < 1 {
		return fmt.Errorf("worker queue timeout must be at least 1 second (got %d)", c.QueueTimeout)
	}
	if c.JobLogExpireSeconds < 0 {
		return fmt.Errorf("worker job log expiry cannot be negative (got %d)", c.JobLogExpireSeconds)
	}

	return nil
}
