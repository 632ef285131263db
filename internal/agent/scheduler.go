package agent

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/JuanCS-Dev/vertice-code/internal/infra"
	"github.com/JuanCS-Dev/vertice-code/pkg/models"
)

// SchedulerConfig classifies tool calls for wave computation. Patterns use
// the same glob syntax as RequireApproval/ElevatedTools (matchToolPattern).
type SchedulerConfig struct {
	// WriteTools names/patterns that mutate a filesystem path.
	WriteTools []string

	// DestructiveTools names/patterns that must never run concurrently
	// with anything else already queued in the same batch.
	DestructiveTools []string

	// NetworkTools names/patterns whose side effects are off the
	// filesystem (HTTP calls, web search) and therefore independent of
	// filesystem tools unless they share a path argument.
	NetworkTools []string

	// PathArgKeys are JSON argument keys inspected, in order, to find the
	// filesystem path a tool call touches.
	PathArgKeys []string

	// MaxParallelTools bounds concurrency within a single wave.
	// Default: 4.
	MaxParallelTools int
}

// DefaultSchedulerConfig returns the default tool classification used to
// build dependency waves.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		WriteTools:       []string{"write_file", "edit_file", "str_replace*", "apply_patch", "delete_file", "move_file"},
		DestructiveTools: []string{"execute_command", "process", "git_push*", "git_reset*"},
		NetworkTools:     []string{"web_search", "web_fetch", "http_request"},
		PathArgKeys:      []string{"path", "file_path", "filepath", "target"},
		MaxParallelTools: 4,
	}
}

// WaveSummary reports how a batch of tool calls was scheduled, per spec
// 4.5 step 5.
type WaveSummary struct {
	WaveCount         int
	ParallelismFactor float64
	ExecutionTimeMS   int64
}

// ToolWaveScheduler groups ToolCalls into dependency-respecting waves using
// a conservative static rule set and drives an Executor one wave at a time,
// bounding in-wave concurrency to MaxParallelTools via a dedicated
// infra.Semaphore (separate from the Executor's own backpressure semaphore,
// which continues to bound the executor's total in-flight work).
type ToolWaveScheduler struct {
	executor *Executor
	config   SchedulerConfig
	sem      *infra.Semaphore
}

// NewToolWaveScheduler creates a scheduler over the given executor.
func NewToolWaveScheduler(executor *Executor, config SchedulerConfig) *ToolWaveScheduler {
	if config.MaxParallelTools <= 0 {
		config.MaxParallelTools = 4
	}
	return &ToolWaveScheduler{
		executor: executor,
		config:   config,
		sem:      infra.NewSemaphore(int64(config.MaxParallelTools)),
	}
}

// Stats returns the wave semaphore's current utilization, for health
// telemetry alongside Executor.CircuitBreakerStats.
func (s *ToolWaveScheduler) Stats() infra.SemaphoreStats {
	return s.sem.Stats()
}

func (s *ToolWaveScheduler) classify(call models.ToolCall) (writes, destructive, network bool, path string) {
	writes = matchesToolPatterns(s.config.WriteTools, call.Name, nil)
	destructive = matchesToolPatterns(s.config.DestructiveTools, call.Name, nil)
	network = matchesToolPatterns(s.config.NetworkTools, call.Name, nil)
	path = s.extractPath(call.Input)
	return
}

// extractPath pulls a string-valued path argument out of a tool call's raw
// JSON input, trying each configured key in order.
func (s *ToolWaveScheduler) extractPath(input json.RawMessage) string {
	if len(input) == 0 {
		return ""
	}
	var args map[string]json.RawMessage
	if err := json.Unmarshal(input, &args); err != nil {
		return ""
	}
	for _, key := range s.config.PathArgKeys {
		raw, ok := args[key]
		if !ok {
			continue
		}
		var val string
		if err := json.Unmarshal(raw, &val); err == nil && val != "" {
			return val
		}
	}
	return ""
}

// buildWaves computes the dependency graph from spec 4.5 step 1 and groups
// calls into Kahn-style topological waves (step 2): wave k holds every call
// whose dependencies are all satisfied by waves < k. Dependencies are
// computed only against earlier calls in submission order, matching the
// "any earlier call" language of the dependency rules.
func (s *ToolWaveScheduler) buildWaves(calls []models.ToolCall) [][]int {
	n := len(calls)
	if n == 0 {
		return nil
	}

	writes := make([]bool, n)
	destructive := make([]bool, n)
	network := make([]bool, n)
	paths := make([]string, n)
	for i, c := range calls {
		writes[i], destructive[i], network[i], paths[i] = s.classify(c)
	}

	deps := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			switch {
			case destructive[i]:
				deps[i] = append(deps[i], j)
			case (writes[i] || writes[j]) && paths[i] != "" && paths[i] == paths[j]:
				deps[i] = append(deps[i], j)
			case network[i] && !network[j] && paths[i] != "" && paths[i] == paths[j]:
				deps[i] = append(deps[i], j)
			}
		}
	}

	wave := make([]int, n)
	maxWave := 0
	for i := 0; i < n; i++ {
		w := 0
		for _, j := range deps[i] {
			if wave[j]+1 > w {
				w = wave[j] + 1
			}
		}
		wave[i] = w
		if w > maxWave {
			maxWave = w
		}
	}

	waves := make([][]int, maxWave+1)
	for i, w := range wave {
		waves[w] = append(waves[w], i)
	}
	return waves
}

// ExecuteWaves runs calls wave by wave. Within a wave, calls run
// concurrently bounded to MaxParallelTools by the scheduler's own
// semaphore; excess calls queue FIFO inside that wave (spec 4.5 step 3).
// Results are collected by call_id and returned in original submission
// order (step 4). Cancellation of ctx stops dispatching further waves;
// already-finished calls are reported as-is, queued ones are marked
// canceled (spec 4.5's "cancellation of the batch").
func (s *ToolWaveScheduler) ExecuteWaves(ctx context.Context, calls []models.ToolCall) ([]*ExecutionResult, WaveSummary) {
	start := time.Now()
	results := make([]*ExecutionResult, len(calls))
	if len(calls) == 0 {
		return results, WaveSummary{}
	}

	waves := s.buildWaves(calls)
	for _, wave := range waves {
		if ctx.Err() != nil {
			for _, idx := range wave {
				results[idx] = &ExecutionResult{
					ToolCallID: calls[idx].ID,
					ToolName:   calls[idx].Name,
					Error:      ctx.Err(),
				}
			}
			continue
		}

		var wg sync.WaitGroup
		for _, idx := range wave {
			if err := s.sem.Acquire(ctx, 1); err != nil {
				results[idx] = &ExecutionResult{
					ToolCallID: calls[idx].ID,
					ToolName:   calls[idx].Name,
					Error:      err,
				}
				continue
			}
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				defer s.sem.Release(1)
				results[idx] = s.executor.Execute(ctx, calls[idx])
			}(idx)
		}
		wg.Wait()
	}

	summary := WaveSummary{
		WaveCount:       len(waves),
		ExecutionTimeMS: time.Since(start).Milliseconds(),
	}
	if summary.WaveCount > 0 {
		summary.ParallelismFactor = float64(len(calls)) / float64(summary.WaveCount)
	}
	return results, summary
}
