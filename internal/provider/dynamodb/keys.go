package dynamodb

import "time"

// PK/SK prefix constants.
const (
	prefixJob   = "JOB#"
	prefixEntry = "ENTRY#"
	prefixRun   = "RUN#"

	skRecord = "RECORD"
)

func jobPK(id string) string        { return prefixJob + id }
func recordSK() string              { return skRecord }
func entryPK(entryID string) string { return prefixEntry + entryID }
func runPK(runID string) string     { return prefixRun + runID }

// jobSK sorts by job id; ULIDs order attempts by start time.
func jobSK(id string) string { return prefixJob + id }

func ttlEpoch(d time.Duration) int64 {
	return time.Now().Add(d).Unix()
}

func isExpired(epoch int64) bool {
	return epoch > 0 && time.Now().Unix() > epoch
}
