// Package report classifies failed builds by scanning their build logs
// for known failure signatures.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Kind is the category a build log falls into.
type Kind int

const (
	// KindUnknown means no known signature matched.
	KindUnknown Kind = iota
	// KindReason means a known failure reason matched.
	KindReason
	// KindInternal means the compiler or the fact extractor crashed.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindReason:
		return "reason"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Result is the classification of one build log.
type Result struct {
	Kind   Kind
	Reason string
	Line   string // the line that matched
}

const failedPrefix = "Compilation failed: "

type rule struct {
	reason string
	match  func(line string) bool
}

func contains(subs ...string) func(string) bool {
	return func(line string) bool {
		for _, s := range subs {
			if !strings.Contains(line, s) {
				return false
			}
		}
		return true
	}
}

// failedRules refine a "Compilation failed:" line reported by the build
// sandbox.
var failedRules = []rule{
	{"failed to fetch dependencies", contains(`"fetch" "--locked" "--manifest-path" "Cargo.toml"` + "` failed")},
	{"failed to generate lockfile", contains(`"generate-lockfile" "--manifest-path" "Cargo.toml"` + "` failed")},
	{"crate depends on yanked dependencies", contains("the crate depends on yanked dependencies")},
	{"invalid Cargo.toml syntax", contains("invalid Cargo.toml syntax")},
	{"missing Cargo.toml", contains("missing Cargo.toml")},
	{"unable to download package", contains("unable to download")},
	{"unable to download package (403)", contains("Client Error: 403 Forbidden")},
	{"connection error: reset by peer", contains("Connection reset by peer (os error 104")},
}

// lineRules are checked in order against every other line.
var lineRules = []rule{
	{"compilation error", contains("error: aborting due to", "previous errors")},
	{"compilation error", contains("error: aborting due to previous error")},
	{"failed custom build command", contains("error: failed to run custom build command for")},
	{"unknown crate type", contains("error: unknown crate type: `dynlib`")},
	{"compilation killed", contains("(signal: 9, SIGKILL: kill)")},
	{"multiple package links", contains("error: multiple packages link to native library")},
	{"failed to read directory", contains("failed to read directory")},
	{"truncated logs", func(l string) bool {
		return strings.Contains(l, "too much data in the log, truncating it") || strings.Contains(l, "[build log truncated at")
	}},
	{"failed to download", contains("error: failed to download")},
	{"uses removed features", contains("error[E0557]: feature has been removed")},
	{"rustc stack overflow", contains("thread 'rustc' has overflowed its stack")},
}

var internalMarkers = []string{
	"error: internal compiler error",
	"thread 'rustc' panicked at",
	"corpus_extractor",
}

// ClassifyLine classifies a single log line. ok is false when the line
// carries no signature.
func ClassifyLine(line string) (res Result, ok bool) {
	if rest, found := strings.CutPrefix(line, failedPrefix); found {
		for _, r := range failedRules {
			if r.match(rest) {
				return Result{Kind: KindReason, Reason: r.reason, Line: line}, true
			}
		}
		return Result{Kind: KindReason, Reason: "unknown compilation failure", Line: line}, true
	}
	for _, r := range lineRules {
		if r.match(line) {
			return Result{Kind: KindReason, Reason: r.reason, Line: line}, true
		}
	}
	for _, m := range internalMarkers {
		if strings.Contains(line, m) {
			return Result{Kind: KindInternal, Line: line}, true
		}
	}
	return Result{}, false
}

// ClassifyReader returns the classification of the first matching line.
func ClassifyReader(r io.Reader) (Result, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if res, ok := ClassifyLine(sc.Text()); ok {
			return res, nil
		}
	}
	if err := sc.Err(); err != nil {
		return Result{}, err
	}
	return Result{Kind: KindUnknown}, nil
}

// Classify classifies the build log at path.
func Classify(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = f.Close() }()
	res, err := ClassifyReader(f)
	if err != nil {
		return Result{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return res, nil
}
