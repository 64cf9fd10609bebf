package hostdriver

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"os/exec"
	"syscall"
	"time"

	"github.com/radiocontrol/simctrl/internal/apperrors"
	"github.com/radiocontrol/simctrl/internal/logging"
	"golang.org/x/time/rate"
)

// result captures everything the teacher's FFmpegProcess captures about a
// finished child process: stdout, stderr, exit code and duration.
type result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// retryableExitCodes are exit codes the host tools are known to return
// transiently (simulator service still starting up, device busy). Anything
// else is treated as a hard failure and never retried.
var retryableExitCodes = map[int]bool{
	2:   true,
	143: true, // SIGTERM during a racing shutdown
}

// Driver is the concrete host-driver client. It is safe for concurrent use;
// callers needing per-device exclusivity should serialize through
// internal/transport's per-UDID deviceLocks, per spec §5.
type Driver struct {
	simctlBin     string
	automationBin string
	actionTimeout time.Duration
	createTimeout time.Duration
	retryAttempts int
	logger        *logging.Logger
	backoffPacer  *rate.Limiter
}

// New creates a Driver from the host_driver configuration section.
func New(simctlBin, automationBin string, createTimeout, actionTimeout time.Duration, retryAttempts int, logger *logging.Logger) *Driver {
	return &Driver{
		simctlBin:     simctlBin,
		automationBin: automationBin,
		actionTimeout: actionTimeout,
		createTimeout: createTimeout,
		retryAttempts: retryAttempts,
		logger:        logger,
		backoffPacer:  rate.NewLimiter(rate.Every(50*time.Millisecond), 1),
	}
}

// run executes one command under timeout, killing and reaping the child on
// deadline exceeded, and retrying transient failures with exponential
// backoff (spec §4.3, §7 "transient errors ... retried up to 3 times").
func (d *Driver) run(ctx context.Context, op string, timeout time.Duration, name string, args ...string) (*result, error) {
	var last *result
	var lastErr error

	attempts := d.retryAttempts + 1 // the first try plus retryAttempts retries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 200 * time.Millisecond
			jitter := time.Duration(rand.Int63n(int64(backoff) / 2))
			select {
			case <-time.After(backoff + jitter):
			case <-ctx.Done():
				return nil, apperrors.Wrap(apperrors.KindTimeout, op, "context cancelled during retry backoff", ctx.Err())
			}
			if err := d.backoffPacer.Wait(ctx); err != nil {
				return nil, apperrors.Wrap(apperrors.KindTimeout, op, "context cancelled during retry backoff", err)
			}
		}

		res, err := d.runOnce(ctx, op, timeout, name, args...)
		last, lastErr = res, err
		if err == nil {
			return res, nil
		}

		if e, ok := err.(*apperrors.Error); ok && e.Kind == apperrors.KindTimeout {
			return nil, err // deadline exceeded is never retried
		}
		if !retryableExitCodes[last.exitCodeOrMinusOne()] {
			return nil, err
		}

		d.logger.WithFields(logging.Fields{
			"op": op, "attempt": attempt + 1, "exit_code": last.exitCodeOrMinusOne(),
		}).Warn("host driver command failed transiently, retrying")
	}

	return last, lastErr
}

func (r *result) exitCodeOrMinusOne() int {
	if r == nil {
		return -1
	}
	return r.ExitCode
}

func (d *Driver) runOnce(ctx context.Context, op string, timeout time.Duration, name string, args ...string) (*result, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	res := &result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), Duration: duration}

	if runCtx.Err() == context.DeadlineExceeded {
		if cmd.Process != nil {
			_ = cmd.Process.Signal(syscall.SIGKILL)
			_, _ = cmd.Process.Wait() // reap
		}
		return res, apperrors.New(apperrors.KindTimeout, op, fmt.Sprintf("%s timed out after %s", name, timeout))
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
		}
		return res, apperrors.Wrap(apperrors.KindHostDriver, op, fmt.Sprintf("%s failed: %s", name, stderr.String()), err)
	}

	return res, nil
}

// simctl runs an `xcrun simctl <args...>` command.
func (d *Driver) simctl(ctx context.Context, op string, timeout time.Duration, args ...string) (*result, error) {
	full := append([]string{"simctl"}, args...)
	return d.run(ctx, op, timeout, d.simctlBin, full...)
}

// automation runs an automation-CLI command against udid.
func (d *Driver) automation(ctx context.Context, op string, timeout time.Duration, args ...string) (*result, error) {
	return d.run(ctx, op, timeout, d.automationBin, args...)
}
