package context

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// MaskOptions configures the long-term-context compression applied to a
// tool result after execution (C11).
type MaskOptions struct {
	// HeadLines is how many leading lines of long stdout survive verbatim.
	HeadLines int

	// TailLines is how many trailing lines of long stdout survive verbatim.
	TailLines int

	// MaxFieldChars bounds each string value when masking structured
	// (non-exec-result) JSON content.
	MaxFieldChars int

	// MinLinesToMask is the line count above which stdout gets collapsed;
	// content at or under this size passes through untouched.
	MinLinesToMask int
}

// DefaultMaskOptions returns the default head+tail window and field budget.
func DefaultMaskOptions() MaskOptions {
	return MaskOptions{
		HeadLines:      20,
		TailLines:      10,
		MaxFieldChars:  500,
		MinLinesToMask: 40,
	}
}

func (o MaskOptions) withDefaults() MaskOptions {
	if o.HeadLines <= 0 {
		o.HeadLines = 20
	}
	if o.TailLines <= 0 {
		o.TailLines = 10
	}
	if o.MaxFieldChars <= 0 {
		o.MaxFieldChars = 500
	}
	if o.MinLinesToMask <= 0 {
		o.MinLinesToMask = o.HeadLines + o.TailLines + 1
	}
	return o
}

// MaskResult is the computed long-term-context representation of a tool
// result, alongside the metrics the masking step reports (spec 4.11).
type MaskResult struct {
	// Content is the masked representation to store in long-term context.
	// Equal to the raw input when Masked is false.
	Content string

	// CompressionRatio is masked_bytes / raw_bytes.
	CompressionRatio float64

	// TokensSaved approximates (raw_bytes-masked_bytes)/4.
	TokensSaved int

	// Masked is true when any compression was actually applied.
	Masked bool
}

const hiddenLinesSentinel = "… <hidden %d lines> …"
const fieldTruncatedSuffix = "…[truncated]"

// Mask computes the masked representation of a raw tool result. Exec-style
// results (JSON with a "stdout" field) get stdout collapsed to head+tail
// while stderr and the exit code survive verbatim; other JSON objects get
// per-field string truncation; plain text gets head+tail line collapsing.
// Short content (at or under MinLinesToMask lines, or under roughly
// MaxFieldChars*4 bytes for structured data) is returned unmasked.
func Mask(raw string, opts MaskOptions) MaskResult {
	opts = opts.withDefaults()
	if raw == "" {
		return MaskResult{Content: raw}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err == nil {
		if _, hasStdout := obj["stdout"]; hasStdout {
			return maskExecResult(raw, obj, opts)
		}
		return maskStructured(raw, obj, opts)
	}

	return maskPlainText(raw, opts)
}

// maskExecResult collapses a long stdout field to head+tail while leaving
// stderr, exit_code, and every other field of the object untouched, per the
// "masking preserves stderr and non-zero exit lines verbatim" invariant.
func maskExecResult(raw string, obj map[string]json.RawMessage, opts MaskOptions) MaskResult {
	var stdout string
	if err := json.Unmarshal(obj["stdout"], &stdout); err != nil {
		return maskStructured(raw, obj, opts)
	}

	collapsed, masked := collapseLines(stdout, opts.HeadLines, opts.TailLines, opts.MinLinesToMask)
	if !masked {
		return MaskResult{Content: raw, CompressionRatio: 1}
	}

	encoded, err := json.Marshal(collapsed)
	if err != nil {
		return MaskResult{Content: raw, CompressionRatio: 1}
	}
	obj["stdout"] = encoded

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		b.Write(kb)
		b.WriteByte(':')
		b.Write(obj[k])
	}
	b.WriteByte('}')

	return finish(raw, b.String())
}

// maskStructured truncates every string value over MaxFieldChars, keeping
// keys and non-string values untouched.
func maskStructured(raw string, obj map[string]json.RawMessage, opts MaskOptions) MaskResult {
	changed := false
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		b.Write(kb)
		b.WriteByte(':')

		var s string
		if json.Unmarshal(obj[k], &s) == nil && len(s) > opts.MaxFieldChars {
			truncated := s[:opts.MaxFieldChars] + fieldTruncatedSuffix
			vb, _ := json.Marshal(truncated)
			b.Write(vb)
			changed = true
			continue
		}
		b.Write(obj[k])
	}
	b.WriteByte('}')

	if !changed {
		return MaskResult{Content: raw, CompressionRatio: 1}
	}
	return finish(raw, b.String())
}

// maskPlainText collapses free-form text to head+tail lines.
func maskPlainText(raw string, opts MaskOptions) MaskResult {
	collapsed, masked := collapseLines(raw, opts.HeadLines, opts.TailLines, opts.MinLinesToMask)
	if !masked {
		return MaskResult{Content: raw, CompressionRatio: 1}
	}
	return finish(raw, collapsed)
}

// collapseLines keeps the first headN and last tailN lines of s, replacing
// the middle with a hidden-lines sentinel, when s has more than minLines
// lines total. Returns (s, false) when no collapsing was needed.
func collapseLines(s string, headN, tailN, minLines int) (string, bool) {
	lines := strings.Split(s, "\n")
	if len(lines) <= minLines {
		return s, false
	}

	hidden := len(lines) - headN - tailN
	if hidden <= 0 {
		return s, false
	}

	var b strings.Builder
	for _, l := range lines[:headN] {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteString(fmt.Sprintf(hiddenLinesSentinel, hidden))
	b.WriteByte('\n')
	for i, l := range lines[len(lines)-tailN:] {
		b.WriteString(l)
		if i < tailN-1 {
			b.WriteByte('\n')
		}
	}
	return b.String(), true
}

func finish(raw, masked string) MaskResult {
	rawBytes := len(raw)
	maskedBytes := len(masked)
	ratio := 1.0
	if rawBytes > 0 {
		ratio = float64(maskedBytes) / float64(rawBytes)
	}
	saved := (rawBytes - maskedBytes) / 4
	if saved < 0 {
		saved = 0
	}
	return MaskResult{
		Content:          masked,
		CompressionRatio: ratio,
		TokensSaved:      saved,
		Masked:           true,
	}
}
