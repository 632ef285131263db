package security

import (
	"fmt"
	"regexp"
	"strings"
)

// Verdict is the outcome of validating a shell command. It mirrors the
// shape of CommandVerdict in the agent loop's data model: exactly one of
// Allowed, AllowedWithWarning, or Denied is true for any given command.
type Verdict struct {
	Allowed bool
	Warning bool
	Denied  bool
	Reason  string
}

func allowed() Verdict                { return Verdict{Allowed: true} }
func allowedWithWarning(r string) Verdict { return Verdict{Allowed: true, Warning: true, Reason: r} }
func denied(r string) Verdict         { return Verdict{Denied: true, Reason: r} }

const maxCommandLength = 4096
const maxPipeCount = 10

// denyListSubstrings triggers AllowedWithWarning when found anywhere in the
// command. These are exact dangerous phrases rather than regexes.
var denyListSubstrings = []string{
	"rm -rf /",
	"rm -rf /*",
	"rm -fr /",
	":(){:|:&};:",
	"dd if=/dev/zero of=/dev/sd",
	"mkfs.",
	"curl | sh",
	"curl | bash",
	"wget | sh",
	"wget | bash",
	"> /dev/sda",
}

// dangerousPatternSet is the enumerated dangerous regex set: recursive
// chmod 777, raw-disk writes, privilege escalation, pipe-to-shell
// downloaders, eval-from-subshell.
var dangerousPatternSet = []*regexp.Regexp{
	regexp.MustCompile(`chmod\s+-R\s+777`),
	regexp.MustCompile(`dd\s+if=/dev/(zero|random|urandom)`),
	regexp.MustCompile(`\bsudo\s+`),
	regexp.MustCompile(`\bsu\s+-`),
	regexp.MustCompile(`(curl|wget)\s+.*\|\s*(sudo\s+)?(bash|sh|zsh)\b`),
	regexp.MustCompile(`eval\s*\(.*\$\(`),
	regexp.MustCompile(`:\(\)\s*\{`),
}

// AllowedCommand describes an entry in the strict-mode allow-list.
type AllowedCommand struct {
	BaseName    string
	Category    string
	Description string
}

// DefaultAllowList is the strict-mode allow-list of base commands, grouped
// by category (read-only, git-read, git-write, package-manager).
var DefaultAllowList = map[string]AllowedCommand{
	"ls":     {BaseName: "ls", Category: "read-only", Description: "list directory contents"},
	"cat":    {BaseName: "cat", Category: "read-only", Description: "print file contents"},
	"grep":   {BaseName: "grep", Category: "read-only", Description: "search file contents"},
	"find":   {BaseName: "find", Category: "read-only", Description: "find files"},
	"head":   {BaseName: "head", Category: "read-only", Description: "print first lines"},
	"tail":   {BaseName: "tail", Category: "read-only", Description: "print last lines"},
	"wc":     {BaseName: "wc", Category: "read-only", Description: "count lines/words"},
	"pwd":    {BaseName: "pwd", Category: "read-only", Description: "print working directory"},
	"echo":   {BaseName: "echo", Category: "read-only", Description: "print text"},
	"git":    {BaseName: "git", Category: "git-read", Description: "git (subcommand-gated)"},
	"go":     {BaseName: "go", Category: "package-manager", Description: "go toolchain"},
	"npm":    {BaseName: "npm", Category: "package-manager", Description: "node package manager"},
	"python": {BaseName: "python", Category: "package-manager", Description: "python interpreter"},
	"python3": {BaseName: "python3", Category: "package-manager", Description: "python interpreter"},
}

// CommandValidator classifies shell commands per the fixed pipeline:
// empty/length checks, deny-list, dangerous-pattern set, pipe-count limit,
// then (in strict mode) a full metacharacter ban plus allow-list lookup.
// Audit mode bypasses strict checks and logs a warning instead.
type CommandValidator struct {
	Strict    bool
	Audit     bool
	AllowList map[string]AllowedCommand
	// OnAudit, when set, is invoked every time Audit mode bypasses a
	// strict-mode check, so callers can surface the bypass to the user.
	OnAudit func(command, reason string)
}

// NewCommandValidator returns a validator in strict mode with the default
// allow-list, matching the spec's default posture.
func NewCommandValidator() *CommandValidator {
	return &CommandValidator{
		Strict:    true,
		AllowList: DefaultAllowList,
	}
}

// Validate classifies cmd and returns its Verdict. It is deterministic:
// the same input always yields the same verdict.
func (v *CommandValidator) Validate(cmd string) Verdict {
	trimmed := strings.TrimSpace(cmd)
	if trimmed == "" {
		return denied("empty")
	}
	if len(cmd) > maxCommandLength {
		return denied("too long")
	}

	for _, bad := range denyListSubstrings {
		if strings.Contains(cmd, bad) {
			return allowedWithWarning(fmt.Sprintf("matched deny-list entry %q", bad))
		}
	}

	for _, re := range dangerousPatternSet {
		if re.MatchString(cmd) {
			return allowedWithWarning(fmt.Sprintf("matched dangerous pattern %q", re.String()))
		}
	}

	if pipeCount := strings.Count(cmd, "|") - strings.Count(cmd, "||")*2; pipeCount > maxPipeCount {
		return denied("excessive piping")
	}

	if v.Audit {
		if v.OnAudit != nil {
			v.OnAudit(cmd, "audit mode bypasses strict validation")
		}
		return allowedWithWarning("audit mode: strict checks bypassed")
	}

	if v.Strict {
		if reason := strictViolation(cmd); reason != "" {
			return denied(reason)
		}
		base, _ := splitBaseArgs(trimmed)
		allowList := v.AllowList
		if allowList == nil {
			allowList = DefaultAllowList
		}
		if _, ok := allowList[base]; !ok {
			return denied(fmt.Sprintf("%q is not whitelisted", base))
		}
	}

	return allowed()
}

// strictViolation enforces the comprehensive strict-mode ban: no shell
// metacharacters, no chaining, no redirection, no unexpected environment
// expansion, no dangerous globs, no encoded characters. Returns a non-empty
// reason describing the first violation found, or "" if clean.
func strictViolation(cmd string) string {
	analysis := AnalyzeCommandQuoteAware(cmd)
	if !analysis.IsSafe {
		return analysis.Reason
	}
	if strings.Contains(cmd, "%") && strings.Contains(cmd, "\\x") {
		return "encoded characters are not permitted in strict mode"
	}
	if strings.Contains(cmd, "$") && !strings.HasPrefix(strings.TrimSpace(cmd), "echo $PATH") {
		if idx := strings.Index(cmd, "${"); idx >= 0 {
			return "environment expansion is not permitted in strict mode"
		}
	}
	return ""
}

// splitBaseArgs parses a trimmed command into its base executable name and
// remaining argument string.
func splitBaseArgs(trimmed string) (base string, args string) {
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return "", ""
	}
	base = fields[0]
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	if len(fields) > 1 {
		args = strings.Join(fields[1:], " ")
	}
	return base, args
}
