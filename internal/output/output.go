// Package output renders run results for people and for scripts
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	humanize "github.com/dustin/go-humanize"
	"github.com/natefinch/atomic"

	"github.com/jessegalley/fileserver/internal/runners"
	"github.com/jessegalley/fileserver/internal/stats"
)

// OutputFormat represents the supported output format types
type OutputFormat string

// supported output format constants
const (
	// table format outputs results in a human-readable table
	TableFormat OutputFormat = "table"

	// json format outputs results as a json object
	JSONFormat OutputFormat = "json"

	// flat format outputs results as space-separated values
	FlatFormat OutputFormat = "flat"
)

const mib = 1024 * 1024

// opResult is the json form of one operation type
type opResult struct {
	Count      int64       `json:"count"`
	IOPS       float64     `json:"iops"`
	Bytes      int64       `json:"bytes"`
	Throughput float64     `json:"throughput_mbs"`
	NotFound   int64       `json:"not_found"`
	Errors     int64       `json:"errors"`
	Latency    *latencyOut `json:"latency_us,omitempty"`
}

type latencyOut struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// jsonResult is the json document for a whole run
type jsonResult struct {
	RunID          string              `json:"run_id"`
	Workload       string              `json:"workload"`
	Engine         string              `json:"engine"`
	Jobs           int                 `json:"jobs"`
	IODepth        int                 `json:"iodepth"`
	BlockSize      uint64              `json:"block_size"`
	PrefilledBytes int64               `json:"prefilled_bytes"`
	Duration       float64             `json:"duration_seconds"`
	Read           opResult            `json:"read"`
	Write          opResult            `json:"write"`
	Ops            map[string]opResult `json:"ops"`
}

// FormatResult formats a run result according to the specified format
func FormatResult(result *runners.Result, format OutputFormat) (string, error) {
	if result == nil {
		return "", fmt.Errorf("no result to format")
	}

	agg := result.Stats
	read, write := agg.Ops["read"], agg.Ops["write"]

	switch format {
	case TableFormat:
		var sb strings.Builder

		fmt.Fprintf(&sb, "\n%s: %d job(s), iodepth %d, %s blocks, %s engine, %.2fs (run %s)\n",
			result.Workload, result.Jobs, result.IODepth, humanize.IBytes(result.BlockSize),
			result.Engine, agg.TestDuration, result.RunID)
		if result.Prefilled > 0 {
			fmt.Fprintf(&sb, "prefilled %s\n", humanize.IBytes(uint64(result.Prefilled)))
		}

		fmt.Fprintf(&sb, "\n%8s  %12s  %12s  %12s  %10s  %8s  %12s\n",
			"", "IOPS", "BW/s", "Count", "NotFound", "Errors", "Lat (us)")
		for _, op := range agg.Operations() {
			s := agg.Ops[op]
			lat := "-"
			if agg.HasLatencyData && s.Latency.Count > 0 {
				lat = fmt.Sprintf("%.1f", s.Latency.MeanUs)
			}
			fmt.Fprintf(&sb, "%8s  %12.2f  %12s  %12d  %10d  %8d  %12s\n",
				op, s.IOPS, humanize.IBytes(uint64(s.BandwidthBps)), s.Count, s.NotFound, s.Errors, lat)
		}

		total := agg.Total()
		fmt.Fprintf(&sb, "%8s  %12.2f  %12s  %12d  %10d  %8d\n",
			"total", total.IOPS, humanize.IBytes(uint64(total.BandwidthBps)), total.Count, total.NotFound, total.Errors)

		return sb.String(), nil

	case JSONFormat:
		jr := jsonResult{
			RunID:          result.RunID,
			Workload:       result.Workload.String(),
			Engine:         result.Engine,
			Jobs:           result.Jobs,
			IODepth:        result.IODepth,
			BlockSize:      result.BlockSize,
			PrefilledBytes: result.Prefilled,
			Duration:       agg.TestDuration,
			Read:           toOpResult(read, agg.HasLatencyData),
			Write:          toOpResult(write, agg.HasLatencyData),
			Ops:            make(map[string]opResult, len(agg.Ops)),
		}
		for op, s := range agg.Ops {
			jr.Ops[op] = toOpResult(s, agg.HasLatencyData)
		}

		jsonBytes, err := json.MarshalIndent(jr, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal json: %w", err)
		}

		return string(jsonBytes) + "\n", nil

	case FlatFormat:
		// read iops, read MiB/s, write iops, write MiB/s, not found, errors
		total := agg.Total()
		return fmt.Sprintf("%.2f %.2f %.2f %.2f %d %d\n",
			read.IOPS, read.BandwidthBps/mib, write.IOPS, write.BandwidthBps/mib,
			total.NotFound, total.Errors), nil

	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

func toOpResult(s stats.OpSummary, withLatency bool) opResult {
	r := opResult{
		Count:      s.Count,
		IOPS:       s.IOPS,
		Bytes:      s.Bytes,
		Throughput: s.BandwidthBps / mib,
		NotFound:   s.NotFound,
		Errors:     s.Errors,
	}
	if withLatency && s.Latency.Count > 0 {
		r.Latency = &latencyOut{
			Mean:   s.Latency.MeanUs,
			StdDev: s.Latency.StdDevUs,
			Min:    s.Latency.MinUs,
			Max:    s.Latency.MaxUs,
		}
	}
	return r
}

// ValidateFormat checks if the provided format string is a valid output format
func ValidateFormat(format string) (OutputFormat, error) {
	f := OutputFormat(strings.ToLower(format))

	switch f {
	case TableFormat, JSONFormat, FlatFormat:
		return f, nil
	default:
		return "", fmt.Errorf("invalid format '%s'. supported formats are: table, json, flat", format)
	}
}

// WriteFile stores formatted output at path, replacing any previous file in
// one step
func WriteFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if err := atomic.WriteFile(path, strings.NewReader(content)); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}
