package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/cli/go-gh/v2"
	"github.com/sammcj/mcp-code-research/internal/cache"
	"github.com/sammcj/mcp-code-research/internal/config"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Command families
const (
	FamilyGH  = "gh"
	FamilyNPM = "npm"
)

// Options controls a single execution
type Options struct {
	// Cache reuses a recent successful result for identical arguments
	Cache bool
}

// Result is the output of a successful command
type Result struct {
	Family  string `json:"family"`
	Command string `json:"command"`
	Output  []byte `json:"-"`
}

// JSON decodes the command output into v
func (r *Result) JSON(v any) error {
	if err := json.Unmarshal(r.Output, v); err != nil {
		return fmt.Errorf("failed to parse %s output: %w", r.Family, err)
	}
	return nil
}

// Executor runs CLI commands for a family
type Executor interface {
	Execute(ctx context.Context, family string, args []string, opts Options) (*Result, error)
}

// Runner invokes a binary and returns its captured output
type Runner func(ctx context.Context, args []string) (stdout, stderr []byte, err error)

// CLIExecutor runs gh and npm with per-family rate limiting, timeouts and caching
type CLIExecutor struct {
	runners  map[string]Runner
	limiters map[string]*rate.Limiter
	cache    *cache.Cache
	logger   *logrus.Logger
	timeout  time.Duration
}

// New creates an executor for the gh and npm families
func New(cfg *config.Config, c *cache.Cache, logger *logrus.Logger) *CLIExecutor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CLIExecutor{
		runners: map[string]Runner{
			FamilyGH:  ghRunner,
			FamilyNPM: npmRunner,
		},
		limiters: map[string]*rate.Limiter{
			FamilyGH:  rate.NewLimiter(rate.Limit(cfg.GitHub.SearchAPIRateLimit)/60, 1),
			FamilyNPM: rate.NewLimiter(rate.Limit(cfg.Packages.RateLimit), 1),
		},
		cache:   c,
		logger:  logger,
		timeout: cfg.Command.Timeout,
	}
}

// WithRunner replaces the runner for a family and removes its rate limit
func (e *CLIExecutor) WithRunner(family string, runner Runner) *CLIExecutor {
	e.runners[family] = runner
	delete(e.limiters, family)
	return e
}

// Execute runs args under the family's binary
func (e *CLIExecutor) Execute(ctx context.Context, family string, args []string, opts Options) (*Result, error) {
	runner, ok := e.runners[family]
	if !ok {
		return nil, fmt.Errorf("unknown command family: %s", family)
	}

	run := func() (*Result, error) {
		return e.run(ctx, family, runner, args)
	}
	if opts.Cache && e.cache != nil {
		return cache.WithCache(e.cache, cache.GenerateKey("exec:"+family, args), run)
	}
	return run()
}

func (e *CLIExecutor) run(ctx context.Context, family string, runner Runner, args []string) (*Result, error) {
	command := family + " " + strings.Join(args, " ")

	if limiter := e.limiters[family]; limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, &CommandError{
				Family:   family,
				Command:  command,
				Category: CategoryRateLimit,
				Message:  fmt.Sprintf("rate limit wait cancelled: %v", err),
				Err:      err,
			}
		}
	}

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	stdout, stderr, err := runner(runCtx, args)
	logger := e.logger.WithFields(logrus.Fields{
		"family":   family,
		"command":  command,
		"duration": time.Since(start).String(),
	})

	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			logger.Debug("Command binary not available")
			return nil, fmt.Errorf("%w: %s", ErrBinaryNotFound, family)
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			logger.Warn("Command timed out")
			return nil, &CommandError{
				Family:   family,
				Command:  command,
				Category: CategoryTimeout,
				Message:  fmt.Sprintf("command timed out after %s", e.timeout),
				Err:      context.DeadlineExceeded,
			}
		}

		message := strings.TrimSpace(string(stderr))
		if message == "" {
			message = err.Error()
		}
		cmdErr := NewCommandError(family, command, message, err)
		logger.WithField("category", cmdErr.Category).Debug("Command failed")
		return nil, cmdErr
	}

	logger.WithField("bytes", len(stdout)).Debug("Command completed")
	return &Result{Family: family, Command: command, Output: stdout}, nil
}

func ghRunner(ctx context.Context, args []string) ([]byte, []byte, error) {
	stdout, stderr, err := gh.ExecContext(ctx, args...)
	return stdout.Bytes(), stderr.Bytes(), err
}

func npmRunner(ctx context.Context, args []string) ([]byte, []byte, error) {
	path, err := exec.LookPath("npm")
	if err != nil {
		return nil, nil, err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err = cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

var (
	defaultExecutor Executor
	defaultMu       sync.RWMutex
)

// Default returns the shared executor, creating one from the global config if unset
func Default() Executor {
	defaultMu.RLock()
	e := defaultExecutor
	defaultMu.RUnlock()
	if e != nil {
		return e
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultExecutor == nil {
		defaultExecutor = New(config.Get(), nil, nil)
	}
	return defaultExecutor
}

// SetDefault replaces the shared executor
func SetDefault(e Executor) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultExecutor = e
}
