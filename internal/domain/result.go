package domain

import "time"

// TimestampLayout is the wire format for the Last_Check_In column.
const TimestampLayout = "2006-01-02 15:04"

// Result records the outcome of one profile's pipeline run.
// Created fresh per attempt and never mutated after Finalize.
type Result struct {
	ProfileID     string
	ProfileName   string
	Email         string
	LoginOK       bool
	CheckInOK     bool
	ConvertOK     bool
	SharePoints   float64
	CheckInStreak string
	Error         string
	Timestamp     time.Time
}

// Key returns the upsert key: profile name, falling back to profile id.
func (r Result) Key() string {
	if r.ProfileName != "" {
		return r.ProfileName
	}
	return r.ProfileID
}

// Failed reports whether this run should count as a failure in
// summaries and in retry-failed selection.
func (r Result) Failed() bool {
	return r.Error != "" || !r.LoginOK
}

// Summary aggregates a batch of results.
type Summary struct {
	Processed   int
	LoginOK     int
	CheckInOK   int
	ConvertOK   int
	Errored     int
	TotalShare  float64
	Duration    time.Duration
	FailureList []Result
}

// Summarize computes the aggregate view over a completed batch.
func Summarize(results []Result, elapsed time.Duration) Summary {
	s := Summary{Processed: len(results), Duration: elapsed}
	for _, r := range results {
		if r.LoginOK {
			s.LoginOK++
		}
		if r.CheckInOK {
			s.CheckInOK++
		}
		if r.ConvertOK {
			s.ConvertOK++
		}
		if r.Error != "" {
			s.Errored++
		}
		s.TotalShare += r.SharePoints
		if r.Failed() {
			s.FailureList = append(s.FailureList, r)
		}
	}
	return s
}
