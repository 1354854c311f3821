package session

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates a session's records for logging and the report header.
type Summary struct {
	Passed         int
	Failed         int
	MeanAbsErrPct  float64
	MaxAbsErrPct   float64
	StdDevAbsErr   float64
	FieldMeanError []float64 // mean signed percent error per field, 1-based order
}

// Summarize computes aggregate statistics over records. Fields is the
// payload length; it sizes the per-field means.
func Summarize(records []Record, fields int) Summary {
	sum := Summary{FieldMeanError: make([]float64, fields)}
	if len(records) == 0 {
		return sum
	}

	abs := make([]float64, 0, len(records))
	fieldTotals := make([]float64, fields)
	fieldCounts := make([]float64, fields)
	for _, r := range records {
		if r.Pass {
			sum.Passed++
		} else {
			sum.Failed++
		}
		abs = append(abs, math.Abs(r.ErrorPct))
		if r.Field >= 1 && r.Field <= fields {
			fieldTotals[r.Field-1] += r.ErrorPct
			fieldCounts[r.Field-1]++
		}
	}

	sum.MeanAbsErrPct = stat.Mean(abs, nil)
	sum.StdDevAbsErr = stat.StdDev(abs, nil)
	sum.MaxAbsErrPct = floats.Max(abs)
	for i := range sum.FieldMeanError {
		if fieldCounts[i] > 0 {
			sum.FieldMeanError[i] = fieldTotals[i] / fieldCounts[i]
		}
	}
	return sum
}
