// Package model contains the data structures produced by a DFS benchmark
// session and serialized into its report artifact.
package model

import (
	"fmt"
	"strings"
)

// MiB is the number of bytes in one megabyte, as used for file sizes and
// throughput values.
const MiB = 1024 * 1024

// FileType is the content class of a generated workload file.
type FileType string

const (
	// FileTypeRandom files contain random bytes.
	FileTypeRandom = FileType("random")
	// FileTypeText files repeat a human-readable sentence.
	FileTypeText = FileType("text")
	// FileTypeBinary files repeat the 0x00..0x0F byte pattern.
	FileTypeBinary = FileType("binary")
)

// FileTypes lists the valid content classes.
var FileTypes = []FileType{FileTypeRandom, FileTypeText, FileTypeBinary}

// ParseFileType returns the FileType named by s.
func ParseFileType(s string) (FileType, error) {
	for _, ft := range FileTypes {
		if string(ft) == strings.ToLower(strings.TrimSpace(s)) {
			return ft, nil
		}
	}
	return "", fmt.Errorf("invalid file type %q (valid: random, text, binary)", s)
}

// TrialResult is the outcome of one PUT+GET attempt for a given file size,
// file type and iteration. It is never modified after the trial ends.
type TrialResult struct {
	// FileSizeMB is the requested file size in MiB.
	FileSizeMB int `json:"file_size_mb" bigquery:"file_size_mb"`
	// FileSizeBytes is the exact size of the generated file.
	FileSizeBytes int64 `json:"file_size_bytes" bigquery:"file_size_bytes"`
	// FileType is the content class of the generated file.
	FileType FileType `json:"file_type" bigquery:"file_type"`

	// PutSuccess is true if the upload succeeded.
	PutSuccess bool `json:"put_success" bigquery:"put_success"`
	// PutLatency is the upload wall-clock time in seconds.
	PutLatency float64 `json:"put_latency_s" bigquery:"put_latency_s"`
	// PutThroughput is the upload throughput in MiB/s.
	PutThroughput float64 `json:"put_throughput_mbps" bigquery:"put_throughput_mbps"`
	// PutCPUUsage is the mean of the CPU percentages sampled before and
	// after the upload.
	PutCPUUsage float64 `json:"put_cpu_usage" bigquery:"put_cpu_usage"`
	// PutMemoryUsage is the mean of the memory percentages sampled before
	// and after the upload.
	PutMemoryUsage float64 `json:"put_memory_usage" bigquery:"put_memory_usage"`

	// GetSuccess is true if the download succeeded and returned a file of
	// the expected size.
	GetSuccess bool `json:"get_success" bigquery:"get_success"`
	// GetLatency is the download wall-clock time in seconds.
	GetLatency float64 `json:"get_latency_s" bigquery:"get_latency_s"`
	// GetThroughput is the download throughput in MiB/s.
	GetThroughput float64 `json:"get_throughput_mbps" bigquery:"get_throughput_mbps"`
	// GetCPUUsage is the mean CPU percentage around the download.
	GetCPUUsage float64 `json:"get_cpu_usage" bigquery:"get_cpu_usage"`
	// GetMemoryUsage is the mean memory percentage around the download.
	GetMemoryUsage float64 `json:"get_memory_usage" bigquery:"get_memory_usage"`

	// IntegrityOK is true if the downloaded file has exactly FileSizeBytes
	// bytes.
	IntegrityOK bool `json:"integrity_ok" bigquery:"integrity_ok"`
	// TestID increases monotonically within a session.
	TestID int `json:"test_id" bigquery:"test_id"`
	// Timestamp is the ISO-8601 time the trial completed.
	Timestamp string `json:"timestamp" bigquery:"timestamp"`
}

// DiskUsage describes the filesystem hosting the working directory.
type DiskUsage struct {
	TotalGB float64 `json:"total_gb"`
	UsedGB  float64 `json:"used_gb"`
	FreeGB  float64 `json:"free_gb"`
	Percent float64 `json:"percent"`
}

// SystemInfo is a snapshot of the host taken when the session starts.
type SystemInfo struct {
	// Timestamp is the ISO-8601 snapshot time.
	Timestamp string `json:"timestamp"`
	// OS identifies the operating system and kernel.
	OS string `json:"os"`
	// Hostname is the host's name, if available.
	Hostname string `json:"hostname,omitempty"`
	// GoVersion is the Go runtime the tool was built with.
	GoVersion string `json:"go_version,omitempty"`
	// CPUCount is the number of logical CPUs.
	CPUCount int `json:"cpu_count"`
	// MemoryTotalGB is the total physical memory in GiB.
	MemoryTotalGB float64 `json:"memory_total_gb"`
	// MemoryAvailableGB is the available memory in GiB at snapshot time.
	MemoryAvailableGB float64 `json:"memory_available_gb,omitempty"`
	// DiskUsage is nil when the filesystem cannot be inspected.
	DiskUsage *DiskUsage `json:"disk_usage,omitempty"`
	// Environment is only populated when environment capture is enabled.
	Environment map[string]string `json:"environment,omitempty"`
}

// SessionReport is the artifact persisted at the end of a session.
type SessionReport struct {
	// SessionID uniquely identifies the session.
	SessionID string `json:"session_id,omitempty"`
	// Version is the symbolic version of the tool that produced the report.
	Version string `json:"version,omitempty"`
	// GitShortCommit is the commit of the tool that produced the report.
	GitShortCommit string `json:"git_short_commit,omitempty"`

	SystemInfo SystemInfo `json:"system_info"`
	// Duration is the session wall-clock time in seconds.
	Duration float64       `json:"test_duration_seconds"`
	Results  []TrialResult `json:"results"`
}

// StatGroup holds the aggregated statistics of all the trials sharing the
// same file size and file type.
type StatGroup struct {
	FileSizeMB int      `json:"file_size_mb" csv:"file_size_mb" bigquery:"file_size_mb"`
	FileType   FileType `json:"file_type" csv:"file_type" bigquery:"file_type"`

	PutThroughputMean  float64 `json:"put_throughput_mean" csv:"put_throughput_mean" bigquery:"put_throughput_mean"`
	PutThroughputStd   float64 `json:"put_throughput_std" csv:"put_throughput_std" bigquery:"put_throughput_std"`
	PutThroughputCount int     `json:"put_throughput_count" csv:"put_throughput_count" bigquery:"put_throughput_count"`
	GetThroughputMean  float64 `json:"get_throughput_mean" csv:"get_throughput_mean" bigquery:"get_throughput_mean"`
	GetThroughputStd   float64 `json:"get_throughput_std" csv:"get_throughput_std" bigquery:"get_throughput_std"`
	GetThroughputCount int     `json:"get_throughput_count" csv:"get_throughput_count" bigquery:"get_throughput_count"`

	PutLatencyMean float64 `json:"put_latency_mean" csv:"put_latency_mean" bigquery:"put_latency_mean"`
	PutLatencyStd  float64 `json:"put_latency_std" csv:"put_latency_std" bigquery:"put_latency_std"`
	GetLatencyMean float64 `json:"get_latency_mean" csv:"get_latency_mean" bigquery:"get_latency_mean"`
	GetLatencyStd  float64 `json:"get_latency_std" csv:"get_latency_std" bigquery:"get_latency_std"`

	// PutCPUUsage and the following fields are means over successful
	// operations only.
	PutCPUUsage    float64 `json:"put_cpu_usage" csv:"put_cpu_usage" bigquery:"put_cpu_usage"`
	PutMemoryUsage float64 `json:"put_memory_usage" csv:"put_memory_usage" bigquery:"put_memory_usage"`
	GetCPUUsage    float64 `json:"get_cpu_usage" csv:"get_cpu_usage" bigquery:"get_cpu_usage"`
	GetMemoryUsage float64 `json:"get_memory_usage" csv:"get_memory_usage" bigquery:"get_memory_usage"`

	// PutSuccessRate and GetSuccessRate are fractions in [0, 1].
	PutSuccessRate float64 `json:"put_success_rate" csv:"put_success_rate" bigquery:"put_success_rate"`
	GetSuccessRate float64 `json:"get_success_rate" csv:"get_success_rate" bigquery:"get_success_rate"`

	// SampleCount is the number of trials in the group.
	SampleCount int `json:"sample_count" csv:"sample_count" bigquery:"sample_count"`
}
