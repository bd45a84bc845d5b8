// Package stats aggregates TrialResults into per-(size, type) StatGroups and
// renders them for downstream consumers.
package stats

import (
	"math"
	"sort"

	"github.com/dfslab/dfsbench/pkg/bench/model"
)

// groupKey identifies a StatGroup.
type groupKey struct {
	sizeMB   int
	fileType model.FileType
}

// accumulator collects the samples of a single group.
type accumulator struct {
	// firstSeen is the index of the first result of this group. It breaks
	// ties between groups of the same size.
	firstSeen int
	total     int

	putThroughput, getThroughput []float64
	putLatency, getLatency       []float64
	putCPU, putMem               []float64
	getCPU, getMem               []float64
}

// Aggregate groups results by (FileSizeMB, FileType) and computes a StatGroup
// for each group. Groups are ordered by ascending size, then by the order in
// which each file type first appears in results.
//
// Means and standard deviations only consider trials where the relevant
// operation succeeded. The standard deviation is the sample standard
// deviation and is 0 when fewer than two samples exist.
func Aggregate(results []model.TrialResult) []model.StatGroup {
	groups := map[groupKey]*accumulator{}
	for i, r := range results {
		ft := r.FileType
		if ft == "" {
			ft = model.FileTypeRandom
		}
		k := groupKey{sizeMB: r.FileSizeMB, fileType: ft}
		acc, ok := groups[k]
		if !ok {
			acc = &accumulator{firstSeen: i}
			groups[k] = acc
		}
		acc.total++
		if r.PutSuccess {
			acc.putThroughput = append(acc.putThroughput, r.PutThroughput)
			acc.putLatency = append(acc.putLatency, r.PutLatency)
			acc.putCPU = append(acc.putCPU, r.PutCPUUsage)
			acc.putMem = append(acc.putMem, r.PutMemoryUsage)
		}
		if r.GetSuccess {
			acc.getThroughput = append(acc.getThroughput, r.GetThroughput)
			acc.getLatency = append(acc.getLatency, r.GetLatency)
			acc.getCPU = append(acc.getCPU, r.GetCPUUsage)
			acc.getMem = append(acc.getMem, r.GetMemoryUsage)
		}
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].sizeMB != keys[j].sizeMB {
			return keys[i].sizeMB < keys[j].sizeMB
		}
		return groups[keys[i]].firstSeen < groups[keys[j]].firstSeen
	})

	out := make([]model.StatGroup, 0, len(keys))
	for _, k := range keys {
		acc := groups[k]
		out = append(out, model.StatGroup{
			FileSizeMB:         k.sizeMB,
			FileType:           k.fileType,
			PutThroughputMean:  Mean(acc.putThroughput),
			PutThroughputStd:   StdDev(acc.putThroughput),
			PutThroughputCount: len(acc.putThroughput),
			GetThroughputMean:  Mean(acc.getThroughput),
			GetThroughputStd:   StdDev(acc.getThroughput),
			GetThroughputCount: len(acc.getThroughput),
			PutLatencyMean:     Mean(acc.putLatency),
			PutLatencyStd:      StdDev(acc.putLatency),
			GetLatencyMean:     Mean(acc.getLatency),
			GetLatencyStd:      StdDev(acc.getLatency),
			PutCPUUsage:        Mean(acc.putCPU),
			PutMemoryUsage:     Mean(acc.putMem),
			GetCPUUsage:        Mean(acc.getCPU),
			GetMemoryUsage:     Mean(acc.getMem),
			PutSuccessRate:     rate(len(acc.putLatency), acc.total),
			GetSuccessRate:     rate(len(acc.getLatency), acc.total),
			SampleCount:        acc.total,
		})
	}
	return out
}

// Mean returns the arithmetic mean of values, or 0 if values is empty.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the sample (n-1) standard deviation of values, or 0 if
// there are fewer than two values.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := Mean(values)
	var sq float64
	for _, v := range values {
		sq += (v - m) * (v - m)
	}
	return math.Sqrt(sq / float64(len(values)-1))
}

func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
