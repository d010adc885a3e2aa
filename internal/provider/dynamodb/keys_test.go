package dynamodb

import (
	"testing"
	"time"
)

func TestJobPK(t *testing.T) {
	got := jobPK("01J9Z")
	if got != "JOB#01J9Z" {
		t.Errorf("jobPK = %q, want %q", got, "JOB#01J9Z")
	}
}

func TestRecordSK(t *testing.T) {
	if got := recordSK(); got != "RECORD" {
		t.Errorf("recordSK = %q, want %q", got, "RECORD")
	}
}

func TestEntryPK(t *testing.T) {
	got := entryPK("serde-1.0.0")
	if got != "ENTRY#serde-1.0.0" {
		t.Errorf("entryPK = %q, want %q", got, "ENTRY#serde-1.0.0")
	}
}

func TestRunPK(t *testing.T) {
	got := runPK("run-7")
	if got != "RUN#run-7" {
		t.Errorf("runPK = %q, want %q", got, "RUN#run-7")
	}
}

func TestJobSKOrdersByID(t *testing.T) {
	a := jobSK("01J9Z0000000000000000000AA")
	b := jobSK("01J9Z0000000000000000000AB")
	if a >= b {
		t.Errorf("jobSK ordering: %q should sort before %q", a, b)
	}
}

func TestTTLEpoch(t *testing.T) {
	before := time.Now().Add(time.Hour).Unix()
	got := ttlEpoch(time.Hour)
	after := time.Now().Add(time.Hour).Unix()

	if got < before || got > after {
		t.Errorf("ttlEpoch(1h) = %d, expected between %d and %d", got, before, after)
	}
}

func TestIsExpired(t *testing.T) {
	if isExpired(0) {
		t.Error("zero epoch must not count as expired")
	}
	if !isExpired(time.Now().Add(-time.Minute).Unix()) {
		t.Error("past epoch should be expired")
	}
	if isExpired(time.Now().Add(time.Hour).Unix()) {
		t.Error("future epoch should not be expired")
	}
}
