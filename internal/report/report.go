package report

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// TimeoutReason is recorded for attempts that ran out of time, whatever
// their log says.
const TimeoutReason = "timed out"

// Report aggregates the classification of many build logs.
type Report struct {
	Reasons        map[string]int
	InternalErrors []string
	Unknown        []string
	Missing        []string
}

// New returns an empty report.
func New() *Report {
	return &Report{Reasons: make(map[string]int)}
}

// Add classifies one log. A missing log is recorded, not an error.
func (r *Report) Add(path string) error {
	res, err := Classify(path)
	if errors.Is(err, fs.ErrNotExist) {
		r.Missing = append(r.Missing, path)
		return nil
	}
	if err != nil {
		return err
	}
	r.record(path, res)
	return nil
}

func (r *Report) record(path string, res Result) {
	switch res.Kind {
	case KindReason:
		r.Reasons[res.Reason]++
	case KindInternal:
		r.InternalErrors = append(r.InternalErrors, path)
	default:
		r.Unknown = append(r.Unknown, path)
	}
}

// Failed is the number of logs that were classified.
func (r *Report) Failed() int {
	n := len(r.InternalErrors) + len(r.Unknown)
	for _, c := range r.Reasons {
		n += c
	}
	return n
}

// Scan classifies every *.log file in dir.
func Scan(dir string) (*Report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	r := New()
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".log" {
			continue
		}
		if err := r.Add(filepath.Join(dir, e.Name())); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// FromJobs classifies the latest attempt of every entry whose latest
// attempt failed. Logs are looked up in logDir by BuildJob.LogName.
func FromJobs(logDir string, jobs []*types.BuildJob) (*Report, error) {
	latest := make(map[string]*types.BuildJob)
	for _, j := range jobs {
		cur, ok := latest[j.Entry.ID]
		if !ok || j.StartedAt.After(cur.StartedAt) || (j.StartedAt.Equal(cur.StartedAt) && j.Attempt > cur.Attempt) {
			latest[j.Entry.ID] = j
		}
	}

	r := New()
	for _, id := range slices.Sorted(maps.Keys(latest)) {
		j := latest[id]
		if !j.Outcome.Failed() {
			continue
		}
		if j.Outcome == types.OutcomeTimeout {
			r.Reasons[TimeoutReason]++
			continue
		}
		if err := r.Add(filepath.Join(logDir, j.LogName())); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Write prints the report with up to examples paths per list.
func (r *Report) Write(w io.Writer, examples int) error {
	var b strings.Builder
	b.WriteString("Failure reasons:\n")
	for _, reason := range slices.Sorted(maps.Keys(r.Reasons)) {
		fmt.Fprintf(&b, "%s: %d\n", reason, r.Reasons[reason])
	}
	writeList(&b, "Internal compiler errors", r.InternalErrors, examples)
	writeList(&b, "Unknown failures", r.Unknown, examples)
	writeList(&b, "Missing build logs", r.Missing, examples)
	_, err := io.WriteString(w, b.String())
	return err
}

func writeList(b *strings.Builder, title string, paths []string, examples int) {
	if len(paths) == 0 {
		return
	}
	fmt.Fprintf(b, "%s: %d\n", title, len(paths))
	if examples <= 0 {
		return
	}
	b.WriteString("Examples:\n")
	for _, p := range paths[:min(examples, len(paths))] {
		fmt.Fprintf(b, "  %s\n", p)
	}
}
