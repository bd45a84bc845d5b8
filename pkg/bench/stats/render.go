package stats

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dfslab/dfsbench/pkg/bench/model"
	"github.com/gocarina/gocsv"
)

// TableHeaders are the column names of the summary table.
var TableHeaders = []string{
	"File Size", "File Type",
	"PUT Throughput (MB/s)", "GET Throughput (MB/s)",
	"PUT Latency (s)", "GET Latency (s)",
	"PUT Success Rate", "GET Success Rate",
}

// TableRows formats groups as rows of the summary table.
func TableRows(groups []model.StatGroup) [][]string {
	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, []string{
			fmt.Sprintf("%d MB", g.FileSizeMB),
			string(g.FileType),
			fmt.Sprintf("%.2f ± %.2f", g.PutThroughputMean, g.PutThroughputStd),
			fmt.Sprintf("%.2f ± %.2f", g.GetThroughputMean, g.GetThroughputStd),
			fmt.Sprintf("%.3f ± %.3f", g.PutLatencyMean, g.PutLatencyStd),
			fmt.Sprintf("%.3f ± %.3f", g.GetLatencyMean, g.GetLatencyStd),
			fmt.Sprintf("%.1f%%", g.PutSuccessRate*100),
			fmt.Sprintf("%.1f%%", g.GetSuccessRate*100),
		})
	}
	return rows
}

// WriteTable writes the summary table to w as aligned text columns.
func WriteTable(w io.Writer, groups []model.StatGroup) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(TableHeaders, "\t"))
	for _, row := range TableRows(groups) {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// WriteSystemInfo writes a key: value rendering of info to w. The captured
// environment is never printed.
func WriteSystemInfo(w io.Writer, info model.SystemInfo) error {
	lines := []string{
		"System Information for Reproducibility:",
		strings.Repeat("=", 50),
		"timestamp: " + info.Timestamp,
		"os: " + info.OS,
	}
	if info.Hostname != "" {
		lines = append(lines, "hostname: "+info.Hostname)
	}
	if info.GoVersion != "" {
		lines = append(lines, "go_version: "+info.GoVersion)
	}
	lines = append(lines,
		fmt.Sprintf("cpu_count: %d", info.CPUCount),
		fmt.Sprintf("memory_total_gb: %.2f", info.MemoryTotalGB))
	if info.DiskUsage != nil {
		lines = append(lines, fmt.Sprintf("disk_usage: total %.2f GB, used %.2f GB, free %.2f GB (%.1f%%)",
			info.DiskUsage.TotalGB, info.DiskUsage.UsedGB, info.DiskUsage.FreeGB, info.DiskUsage.Percent))
	}
	if len(info.Environment) > 0 {
		lines = append(lines, fmt.Sprintf("environment: %d variables captured", len(info.Environment)))
	}
	_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}

// WriteCSV writes groups to w as CSV, one row per group.
func WriteCSV(w io.Writer, groups []model.StatGroup) error {
	return gocsv.Marshal(&groups, w)
}

// WriteCSVFile writes groups as CSV to the file at path.
func WriteCSVFile(path string, groups []model.StatGroup) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, groups); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
