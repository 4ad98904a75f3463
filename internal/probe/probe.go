// Package probe reports what compute the image pipeline can rely on for
// one request. Detection never fails: any error yields a CPU-only state.
package probe

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/priyansh1913/open-deep-research-web/internal/invoker"
	"github.com/priyansh1913/open-deep-research-web/internal/logger"
	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

const (
	defaultNvidiaSMI = "nvidia-smi"
	detectTimeout    = 5 * time.Second
)

// CommandRunner runs an external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// Options configures a Probe.
type Options struct {
	// NvidiaSMI is the detection binary (default "nvidia-smi").
	NvidiaSMI string

	// LowMemoryGB is the free-memory threshold for DegradedAccelerated.
	LowMemoryGB float64

	// ForceCPU short-circuits detection.
	ForceCPU bool

	// WorkerURL, when set, is checked for usability with GET /sdapi/v1/memory.
	WorkerURL string

	Runner     CommandRunner
	HTTPClient *http.Client
	Logger     logger.Logger
}

// Probe detects device capability.
type Probe struct {
	opts Options
}

// New creates a Probe, filling defaults.
func New(opts Options) *Probe {
	if opts.NvidiaSMI == "" {
		opts.NvidiaSMI = defaultNvidiaSMI
	}
	if opts.Runner == nil {
		opts.Runner = ExecRunner
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: detectTimeout}
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	return &Probe{opts: opts}
}

// Probe returns a snapshot of device capability.
func (p *Probe) Probe(ctx context.Context) models.DeviceState {
	if p.opts.ForceCPU {
		return models.CPUOnlyState()
	}

	ctx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()

	if p.opts.WorkerURL != "" {
		return p.probeWorker(ctx)
	}

	state, err := p.detect(ctx)
	if err != nil {
		p.opts.Logger.Debugf("accelerator detection failed, using CPU: %v", err)
		return models.CPUOnlyState()
	}
	return p.classify(state)
}

// probeWorker trusts the worker's own CUDA figures, since the worker may run
// on another host. Local detection only supplies the device name, or the
// free memory when the worker does not report it.
func (p *Probe) probeWorker(ctx context.Context) models.DeviceState {
	free, err := p.checkWorker(ctx)
	if err != nil {
		p.opts.Logger.Warnf("diffusion worker unusable, using CPU: %v", err)
		return models.CPUOnlyState()
	}

	state, err := p.detect(ctx)
	if err != nil {
		if free < 0 {
			p.opts.Logger.Debugf("worker reports no free memory and local detection failed, using CPU: %v", err)
			return models.CPUOnlyState()
		}
		state = models.DeviceState{Kind: models.DeviceKindAccelerated, Name: "diffusion worker"}
	}
	if free >= 0 {
		state.FreeMemoryGB = free
	}
	return p.classify(state)
}

func (p *Probe) classify(state models.DeviceState) models.DeviceState {
	if state.FreeMemoryGB < p.opts.LowMemoryGB {
		state.Kind = models.DeviceKindDegradedAccelerated
	}
	return state
}

// detect parses nvidia-smi csv output and picks the GPU with the most free memory.
func (p *Probe) detect(ctx context.Context) (models.DeviceState, error) {
	out, err := p.opts.Runner(ctx, p.opts.NvidiaSMI,
		"--query-gpu=name,memory.free", "--format=csv,noheader,nounits")
	if err != nil {
		return models.DeviceState{}, err
	}
	return ParseNvidiaSMI(out)
}

// ParseNvidiaSMI parses "name, free_mib" lines. Free memory is reported in MiB.
func ParseNvidiaSMI(out []byte) (models.DeviceState, error) {
	best := models.DeviceState{Kind: models.DeviceKindAccelerated, FreeMemoryGB: -1}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		idx := strings.LastIndex(line, ",")
		if idx < 0 {
			return models.DeviceState{}, fmt.Errorf("unexpected nvidia-smi line %q", line)
		}
		mib, err := strconv.ParseFloat(strings.TrimSpace(line[idx+1:]), 64)
		if err != nil {
			return models.DeviceState{}, fmt.Errorf("parse free memory in %q: %w", line, err)
		}
		gb := mib / 1024
		if gb > best.FreeMemoryGB {
			best.FreeMemoryGB = gb
			best.Name = strings.TrimSpace(line[:idx])
		}
	}
	if err := scanner.Err(); err != nil {
		return models.DeviceState{}, err
	}
	if best.FreeMemoryGB < 0 {
		return models.DeviceState{}, fmt.Errorf("no GPUs reported")
	}
	return best, nil
}

// checkWorker verifies the diffusion worker answers and reports CUDA memory.
// It returns the worker's free CUDA memory in GB, or -1 when not reported.
func (p *Probe) checkWorker(ctx context.Context) (float64, error) {
	url := strings.TrimRight(p.opts.WorkerURL, "/") + invoker.MemoryPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return -1, err
	}
	resp, err := p.opts.HTTPClient.Do(req)
	if err != nil {
		return -1, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return -1, fmt.Errorf("worker memory check: HTTP %d", resp.StatusCode)
	}

	var body struct {
		CUDA json.RawMessage `json:"cuda"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return -1, fmt.Errorf("worker memory check: %w", err)
	}
	if len(body.CUDA) == 0 || string(body.CUDA) == "null" {
		return -1, fmt.Errorf("worker reports no CUDA device")
	}

	var cuda struct {
		Error  string `json:"error"`
		System *struct {
			Free float64 `json:"free"`
		} `json:"system"`
	}
	if err := json.Unmarshal(body.CUDA, &cuda); err != nil {
		return -1, fmt.Errorf("worker memory check: %w", err)
	}
	if cuda.Error != "" {
		return -1, fmt.Errorf("worker CUDA error: %s", cuda.Error)
	}
	if cuda.System == nil {
		return -1, nil
	}
	// free is reported in bytes
	return cuda.System.Free / (1 << 30), nil
}

// Releaser frees accelerator memory held by a backend.
type Releaser = invoker.MemoryReleaser

// Lease scopes accelerator use for one generation attempt.
type Lease struct {
	ctx      context.Context
	releaser Releaser
	logger   logger.Logger
	once     sync.Once
}

// Acquire starts a lease. Memory left over from an earlier attempt is
// released first; failure to do so is logged and does not stop the attempt.
// releaser may be nil.
func (p *Probe) Acquire(ctx context.Context, releaser Releaser) *Lease {
	l := &Lease{ctx: ctx, releaser: releaser, logger: p.opts.Logger}
	l.free()
	return l
}

// Release frees memory once; later calls are no-ops.
func (l *Lease) Release() {
	l.once.Do(l.free)
}

func (l *Lease) free() {
	if l.releaser == nil {
		return
	}
	// Release even when the request itself was cancelled.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(l.ctx), detectTimeout)
	defer cancel()
	if err := l.releaser.ReleaseMemory(ctx); err != nil {
		l.logger.Warnf("failed to release accelerator memory: %v", err)
	}
}
