package exec

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestSandboxExecutor_RunSuccess(t *testing.T) {
	s := NewSandboxExecutor(ExecutionLimits{TimeoutSeconds: 5})
	result := s.Run(context.Background(), "echo hello", "", nil, "")
	if result.FailureKind != SandboxOK {
		t.Fatalf("expected success, got failure kind %q: %s", result.FailureKind, result.FailureError)
	}
	if !strings.Contains(result.Stdout, "hello") {
		t.Fatalf("expected stdout to contain 'hello', got %q", result.Stdout)
	}
}

func TestSandboxExecutor_OutputTruncatedWithSentinel(t *testing.T) {
	limits := ExecutionLimits{TimeoutSeconds: 5, MaxOutputBytes: 64}
	s := NewSandboxExecutor(limits)
	result := s.Run(context.Background(), "yes | head -c 4096", "", nil, "")
	if !result.Truncated {
		t.Fatalf("expected output to be marked truncated")
	}
	if !strings.Contains(result.Stdout, truncationSentinel) {
		t.Fatalf("expected truncation sentinel in stdout, got %q", result.Stdout)
	}
}

func TestSandboxExecutor_TimeoutKillsProcess(t *testing.T) {
	s := NewSandboxExecutor(ExecutionLimits{TimeoutSeconds: 1})
	start := time.Now()
	result := s.Run(context.Background(), "sleep 5", "", nil, "")
	elapsed := time.Since(start)
	if result.FailureKind != SandboxTimeout {
		t.Fatalf("expected timeout failure, got %q", result.FailureKind)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("expected the timeout to fire within ~2s, took %s", elapsed)
	}
}

func TestSandboxExecutor_NonZeroExit(t *testing.T) {
	s := NewSandboxExecutor(ExecutionLimits{TimeoutSeconds: 5})
	result := s.Run(context.Background(), "exit 7", "", nil, "")
	if result.FailureKind != SandboxNonZeroExit || result.ExitCode != 7 {
		t.Fatalf("expected non-zero exit 7, got %+v", result)
	}
}

func TestSanitizedEnv_BlanksDangerousVars(t *testing.T) {
	env := sanitizedEnv(map[string]string{"LD_PRELOAD": "/evil.so", "FOO": "bar"})
	for _, kv := range env {
		if strings.HasPrefix(kv, "LD_PRELOAD=") {
			t.Fatalf("LD_PRELOAD should never be injected, got %q", kv)
		}
	}
	found := false
	for _, kv := range env {
		if kv == "FOO=bar" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected caller-supplied FOO=bar to be merged in")
	}
}
