package isolate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/muaviaUsmani/bananas/internal/job"
)

// execModeArg is the hidden subcommand the re-exec'd child looks for in
// os.Args[0] position 1. A cmd/worker main() must check for it before
// running the normal worker loop and, if present, call RunChildProcess.
const execModeArg = "execute-job"

// ForkIsolator runs each attempt in a freshly exec'd copy of the current
// binary, so a crashing handler cannot take the worker process down with it.
// Grounded on the original's fork_process/handle_job_run: a forked child
// there; a re-exec'd child here, since Go cannot fork-without-exec safely
// once goroutines and the runtime are live.
type ForkIsolator struct {
	// ScratchDir holds the per-attempt stdout/stderr capture files, keyed by
	// job UUID, mirroring the original's "<uuid>"/"<uuid>.stderr" fstreams.
	ScratchDir string
}

// NewForkIsolator returns a ForkIsolator writing scratch files under dir.
func NewForkIsolator(dir string) *ForkIsolator {
	return &ForkIsolator{ScratchDir: dir}
}

func (f *ForkIsolator) Run(ctx context.Context, env job.Envelope, j job.Job) Result {
	exe, err := os.Executable()
	if err != nil {
		return Result{Status: job.StatusErrorExcept, Exception: err.Error()}
	}

	outPath := filepath.Join(f.ScratchDir, env.UUID)
	errPath := filepath.Join(f.ScratchDir, env.UUID+".stderr")

	outFile, err := os.Create(outPath)
	if err != nil {
		return Result{Status: job.StatusErrorExcept, Exception: err.Error()}
	}
	defer os.Remove(outPath)
	defer outFile.Close()

	errFile, err := os.Create(errPath)
	if err != nil {
		return Result{Status: job.StatusErrorExcept, Exception: err.Error()}
	}
	defer os.Remove(errPath)
	defer errFile.Close()

	// Re-encode j rather than forwarding env.Data verbatim: the worker already
	// decoded env into j with the authoritative tries/maxtries merged in, and
	// the child process needs that same state, not the pre-merge bytes.
	data, err := j.Encode()
	if err != nil {
		return Result{Status: job.StatusErrorExcept, Exception: err.Error()}
	}

	stdin, err := json.Marshal(job.Envelope{ClassName: env.ClassName, UUID: env.UUID, Data: data})
	if err != nil {
		return Result{Status: job.StatusErrorExcept, Exception: err.Error()}
	}

	cmd := exec.CommandContext(ctx, exe, execModeArg)
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Stdout = outFile
	cmd.Stderr = errFile

	runErr := cmd.Run()

	stdoutBuf, _ := os.ReadFile(outPath)
	stderrBuf, _ := os.ReadFile(errPath)

	res := Result{Stdout: string(stdoutBuf), Stderr: string(stderrBuf)}

	if runErr == nil {
		res.Status = job.StatusNoError
		return res
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		res.Status = exitCodeToStatus(exitErr.ExitCode())
		res.Exception = string(stderrBuf)
		return res
	}

	res.Status = job.StatusErrorExcept
	res.Exception = runErr.Error()
	return res
}

// exitCodeToStatus maps the child's process exit code back to a JobStatus.
// RunChildProcess is responsible for using these exact codes.
func exitCodeToStatus(code int) job.JobStatus {
	switch code {
	case 10:
		return job.StatusErrorRetry
	case 11:
		return job.StatusErrorRemove
	default:
		return job.StatusErrorExcept
	}
}

// IsChildExecRequest reports whether argv invokes the hidden child mode, and
// RunChildProcess drives that mode end to end: decode the envelope from
// stdin, look the class up in registry, run Handle, and exit with a code
// that exitCodeToStatus can classify.
func IsChildExecRequest(argv []string) bool {
	return len(argv) > 1 && argv[1] == execModeArg
}

// RunChildProcess implements the re-exec'd child side of ForkIsolator. It
// never returns; it always calls os.Exit.
func RunChildProcess(registry *job.Registry, stdin []byte) {
	var env job.Envelope
	if err := json.Unmarshal(stdin, &env); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(11)
	}

	j, err := registry.Instance(env.ClassName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(11)
	}

	if err := j.Decode(env.Data); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(11)
	}

	if err := j.Handle(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if j.RetryIfError() {
			os.Exit(10)
		}
		os.Exit(11)
	}

	os.Exit(0)
}
