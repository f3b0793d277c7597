// Package isolate implements the Process Isolator: running a job attempt
// with crash containment, stream capture, and a status classification.
package isolate

import (
	"context"

	"github.com/muaviaUsmani/bananas/internal/job"
)

// Result carries everything the worker needs after one attempt: the
// classified status and the captured per-attempt output.
type Result struct {
	Status    job.JobStatus
	Stdout    string
	Stderr    string
	Exception string
}

// Isolator runs one attempt of j and returns its classified outcome. The
// worker is responsible for the retry decision (§4.F.7); the isolator only
// distinguishes success from the different flavors of failure.
type Isolator interface {
	Run(ctx context.Context, env job.Envelope, j job.Job) Result
}
