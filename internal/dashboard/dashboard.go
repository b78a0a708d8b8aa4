package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/openradius/authstorm/internal/metrics"
	"github.com/openradius/authstorm/internal/output"
	"github.com/openradius/authstorm/internal/scenario"
)

const historySize = 100

// RunConfig holds run parameters for display.
type RunConfig struct {
	Server     string
	Identities int
	Phases     int
	SteadyRate int
	PeakRate   int
	Timeout    time.Duration
	Retries    int
	Arrival    string
	ConfigFile string
}

// Dashboard renders a live terminal UI for the phase currently running. It
// implements scenario.Listener.
type Dashboard struct {
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	grid          *ui.Grid
	rateSparkline *widgets.SparklineGroup
	latencyPara   *widgets.Paragraph
	phaseGauge    *widgets.Gauge
	errorList     *widgets.List
	phaseList     *widgets.List
	summaryPara   *widgets.Paragraph
	countsPara    *widgets.Paragraph

	cfg        RunConfig
	startTime  time.Time
	phase      *scenario.Phase
	phaseIndex int
	phaseStart time.Time
	stats      *metrics.LiveStats
	lastTotal  int64
	lastTick   time.Time
	rates      []float64
	completed  []metrics.PhaseSummary
}

// New initializes the terminal. shutdownFunc is called when the user presses q.
func New(cfg RunConfig, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		ctx:          ctx,
		cancel:       cancel,
		shutdownFunc: shutdownFunc,
		cfg:          cfg,
		startTime:    time.Now(),
		rates:        make([]float64, 0, historySize),
	}
	d.initWidgets()
	d.setupGrid()
	return d, nil
}

func (d *Dashboard) initWidgets() {
	sparkline := widgets.NewSparkline()
	sparkline.Title = "auth/sec"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}

	d.rateSparkline = widgets.NewSparklineGroup(sparkline)
	d.rateSparkline.Title = "Throughput"
	d.rateSparkline.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Latency"
	d.latencyPara.Text = "Avg: -\nMax: -\nP95: -"
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.phaseGauge = widgets.NewGauge()
	d.phaseGauge.Title = "Phase Progress"
	d.phaseGauge.BarColor = ui.ColorBlue
	d.phaseGauge.BorderStyle.Fg = ui.ColorCyan
	d.phaseGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.errorList = widgets.NewList()
	d.errorList.Title = "Errors"
	d.errorList.Rows = []string{"[No errors](fg:green)"}
	d.errorList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.errorList.BorderStyle.Fg = ui.ColorCyan

	d.phaseList = widgets.NewList()
	d.phaseList.Title = "Completed Phases"
	d.phaseList.Rows = []string{"Awaiting first phase"}
	d.phaseList.TextStyle = ui.NewStyle(ui.ColorCyan)
	d.phaseList.BorderStyle.Fg = ui.ColorCyan

	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "authstorm"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.countsPara = widgets.NewParagraph()
	d.countsPara.Title = "Outcomes"
	d.countsPara.Text = "Waiting for data..."
	d.countsPara.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)
	d.grid.Set(
		ui.NewRow(0.14,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.18,
			ui.NewCol(0.5, d.phaseGauge),
			ui.NewCol(0.5, d.countsPara),
		),
		ui.NewRow(0.34,
			ui.NewCol(0.65, d.rateSparkline),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.34,
			ui.NewCol(0.5, d.phaseList),
			ui.NewCol(0.5, d.errorList),
		),
	)
}

// Start begins the update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the update loop and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

// OnPhaseStart switches the display to the new phase's statistics.
func (d *Dashboard) OnPhaseStart(p scenario.Phase, stats *metrics.LiveStats) {
	d.mu.Lock()
	defer d.mu.Unlock()
	phase := p
	d.phase = &phase
	d.phaseIndex++
	d.phaseStart = time.Now()
	d.stats = stats
	d.lastTotal = 0
	d.lastTick = d.phaseStart
	d.rates = d.rates[:0]
}

// OnPhaseEnd adds the phase to the completed list.
func (d *Dashboard) OnPhaseEnd(_ scenario.Phase, s metrics.PhaseSummary) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.completed = append(d.completed, s)
	d.phaseList.Rows = formatCompletedRows(d.completed)
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()
	d.render()

	for {
		select {
		case <-d.ctx.Done():
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	d.summaryPara.Text = d.summaryText(now)
	if d.phase == nil || d.stats == nil {
		return
	}

	snap := d.stats.Snapshot()
	if dt := now.Sub(d.lastTick).Seconds(); dt > 0 {
		d.rates = appendHistory(d.rates, float64(snap.Total-d.lastTotal)/dt)
	}
	d.lastTotal = snap.Total
	d.lastTick = now
	d.rateSparkline.Sparklines[0].Data = d.rates
	if n := len(d.rates); n > 0 {
		d.rateSparkline.Title = fmt.Sprintf("Throughput | Current: %.0f auth/sec", d.rates[n-1])
	}

	pct := progressPercent(now.Sub(d.phaseStart), d.phase.Duration)
	d.phaseGauge.Percent = pct
	d.phaseGauge.Label = fmt.Sprintf("%s %d%%", d.phase.Label, pct)

	d.countsPara.Text = fmt.Sprintf(
		"Sent:      %d\nAccepted:  %d\nRejected:  %d\nErrors:    %d (%.1f%%)",
		snap.Total, snap.Accept, snap.Reject, snap.Errors, snap.ErrorPct(),
	)
	d.latencyPara.Text = fmt.Sprintf(
		"Avg: %.1fms\nMax: %.1fms\nP95: %s",
		snap.AvgMs(), snap.MaxMs(), output.FormatLatency(d.stats.LiveP95()),
	)
	d.errorList.Rows = formatErrorRows(d.stats.ErrorBreakdown())
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func (d *Dashboard) summaryText(now time.Time) string {
	phase := "-"
	if d.phase != nil {
		phase = fmt.Sprintf("%d/%d %s", d.phaseIndex, d.cfg.Phases, d.phase.Name)
	}
	return fmt.Sprintf("Server: %s | Identities: %d\n%s\nPhase: %s | Elapsed: %s | q to stop",
		d.cfg.Server,
		d.cfg.Identities,
		formatRunParams(d.cfg),
		phase,
		now.Sub(d.startTime).Round(time.Second),
	)
}

func appendHistory(history []float64, v float64) []float64 {
	history = append(history, v)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

func progressPercent(elapsed, total time.Duration) int {
	if total <= 0 {
		return 0
	}
	pct := int(elapsed * 100 / total)
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

func formatErrorRows(breakdown map[string]int64) []string {
	rows := metrics.FlattenErrorBuckets(breakdown)
	if len(rows) == 0 {
		return []string{"[No errors](fg:green)"}
	}
	if len(rows) > 10 {
		rows = rows[:10]
	}
	formatted := make([]string, 0, len(rows))
	for _, row := range rows {
		formatted = append(formatted, fmt.Sprintf("[%s](fg:red) %d", metrics.FriendlyErrorName(row.Class), row.Count))
	}
	return formatted
}

func formatCompletedRows(phases []metrics.PhaseSummary) []string {
	rows := make([]string, 0, len(phases))
	for _, p := range phases {
		rows = append(rows, fmt.Sprintf("[%-14s](fg:cyan) | %7.1f/s | p95 %s | err %.1f%%",
			p.Name, p.Throughput, output.FormatLatency(p.P95), p.ErrorPct()))
	}
	return rows
}

func formatRunParams(cfg RunConfig) string {
	var parts []string
	if cfg.SteadyRate > 0 || cfg.PeakRate > 0 {
		parts = append(parts, fmt.Sprintf("Rate: %d → %d/s", cfg.SteadyRate, cfg.PeakRate))
	}
	if cfg.Arrival != "" && cfg.Arrival != "uniform" {
		parts = append(parts, fmt.Sprintf("Arrival: %s", cfg.Arrival))
	}
	if cfg.Timeout > 0 {
		parts = append(parts, fmt.Sprintf("Timeout: %s", cfg.Timeout))
	}
	if cfg.Retries > 0 {
		parts = append(parts, fmt.Sprintf("Retries: %d", cfg.Retries))
	}
	if cfg.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", cfg.ConfigFile))
	}
	return strings.Join(parts, " | ")
}
