package stats

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	humanize "github.com/dustin/go-humanize"
)

// DisplayConfig contains configuration options for the statistics display
type DisplayConfig struct {
	UpdateInterval time.Duration // how often to refresh the display
	ShowLatency    bool          // whether to show latency statistics
	ShowProgress   bool          // whether to show a progress bar
	TestDuration   time.Duration // total test duration (for progress calculation)
	Quiet          bool          // suppress all live updates
}

// Display renders live statistics to a terminal while a run is going
type Display struct {
	config    DisplayConfig
	collector *Collector
	out       io.Writer
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastStats AggregatedStats // most recent statistics, redrawn on every tick
	startTime time.Time
	drawn     bool // whether anything is on screen yet
}

// NewDisplay creates a display reading live updates from collector and drawing on out
func NewDisplay(collector *Collector, out io.Writer, config DisplayConfig) *Display {
	if config.UpdateInterval <= 0 {
		config.UpdateInterval = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Display{
		config:    config,
		collector: collector,
		out:       out,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
}

// Start begins the display goroutine
func (sd *Display) Start() {
	if sd.config.Quiet {
		return
	}

	sd.startTime = time.Now()
	sd.wg.Add(1)
	go sd.displayLoop()
}

// Stop shuts down the display, waits for it and clears the screen
func (sd *Display) Stop() {
	sd.cancel()
	sd.wg.Wait()

	if sd.drawn {
		sd.clearTerminal()
	}
}

// displayLoop processes live statistics updates until stopped
func (sd *Display) displayLoop() {
	defer sd.wg.Done()

	ticker := time.NewTicker(sd.config.UpdateInterval)
	defer ticker.Stop()

	updates := sd.collector.LiveUpdates()
	for {
		select {
		case stats, ok := <-updates:
			if !ok {
				// collector stopped, keep the last frame until Stop
				updates = nil
				continue
			}
			sd.lastStats = stats

		case <-ticker.C:
			if sd.lastStats.Ops != nil {
				sd.render(sd.lastStats)
			}

		case <-sd.ctx.Done():
			return
		}
	}
}

// render redraws the whole live view
func (sd *Display) render(stats AggregatedStats) {
	var sb strings.Builder
	sd.writeFrame(&sb, stats, time.Since(sd.startTime))

	sd.clearTerminal()
	io.WriteString(sd.out, sb.String())
	sd.drawn = true
}

// writeFrame formats one frame of the live view
func (sd *Display) writeFrame(sb *strings.Builder, stats AggregatedStats, elapsed time.Duration) {
	sb.WriteString("=== Live Statistics ===\n\n")

	if sd.config.ShowProgress && sd.config.TestDuration > 0 {
		progress := float64(elapsed) / float64(sd.config.TestDuration)
		if progress > 1.0 {
			progress = 1.0
		}
		sb.WriteString(progressBar(progress, elapsed, sd.config.TestDuration))
		sb.WriteString("\n\n")
	}

	fmt.Fprintf(sb, "Elapsed: %.1fs", stats.TestDuration)
	if remaining := sd.config.TestDuration - elapsed; sd.config.TestDuration > 0 && remaining > 0 {
		fmt.Fprintf(sb, " | Remaining: %.1fs", remaining.Seconds())
	}
	sb.WriteString("\n\n")

	ops := stats.Operations()
	if len(ops) == 0 {
		sb.WriteString("No operations recorded yet...\n")
		return
	}

	showLatency := stats.HasLatencyData && sd.config.ShowLatency

	fmt.Fprintf(sb, "%-8s %12s %12s %12s %10s %8s", "Op", "Count", "IOPS", "BW/s", "NotFound", "Errors")
	if showLatency {
		fmt.Fprintf(sb, " %12s", "Latency")
	}
	sb.WriteString("\n")

	for _, op := range ops {
		s := stats.Ops[op]
		fmt.Fprintf(sb, "%-8s %12d %12.2f %12s %10d %8d",
			op, s.Count, s.IOPS, humanize.IBytes(uint64(s.BandwidthBps)), s.NotFound, s.Errors)
		if showLatency {
			if s.Latency.Count > 0 {
				fmt.Fprintf(sb, " %10.1fμs", s.Latency.MeanUs)
			} else {
				fmt.Fprintf(sb, " %12s", "─")
			}
		}
		sb.WriteString("\n")
	}
}

// progressBar renders a visual progress bar
func progressBar(progress float64, elapsed, total time.Duration) string {
	const barWidth = 40
	const progressChar = "█"
	const emptyChar = "░"

	filled := int(progress * float64(barWidth))
	if filled > barWidth {
		filled = barWidth
	}

	bar := strings.Repeat(progressChar, filled) + strings.Repeat(emptyChar, barWidth-filled)

	return fmt.Sprintf("Progress: [%s] %.1f%% (%s / %s)",
		bar, progress*100, formatDuration(elapsed), formatDuration(total))
}

// formatDuration formats a duration as whole seconds, minutes and seconds, or hours and minutes
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// clearTerminal clears the screen and moves the cursor to the top-left
func (sd *Display) clearTerminal() {
	io.WriteString(sd.out, "\033[2J\033[H")
}
