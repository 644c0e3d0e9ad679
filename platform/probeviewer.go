package platform

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gammazero/deque"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"lautenbacher.net/puttcup/sensor"
)

const (
	maxProbeHistory = 500
	viewerTitle     = " PUTTCUP Sensor Probe "
)

// ProbeViewer shows live readings of the rangefinder with statistics over
// the last samples. It is the tool for finding a good ThresholdCM.
type ProbeViewer struct {
	tuiApp    *tview.Application
	view      *tview.TextView
	mu        sync.Mutex
	history   *deque.Deque[float64]
	statuses  *deque.Deque[sensor.Status]
	last      sensor.DistanceSample
	threshold float64
	ossignal  chan os.Signal
	simulated bool
}

type probeStats struct {
	n      int
	min    float64
	max    float64
	mean   float64
	median float64
	stdDev float64
}

func NewProbeViewer(threshold float64, ossignal chan os.Signal, simulated bool) *ProbeViewer {
	pv := &ProbeViewer{
		tuiApp:    tview.NewApplication(),
		history:   new(deque.Deque[float64]),
		statuses:  new(deque.Deque[sensor.Status]),
		threshold: threshold,
		ossignal:  ossignal,
		simulated: simulated,
	}
	pv.history.Grow(maxProbeHistory)
	pv.statuses.Grow(maxProbeHistory)
	return pv
}

// Run samples every interval and shows the results until ctx is done. The
// TUI runs on its own goroutine, sampling happens on the caller's.
func (pv *ProbeViewer) Run(ctx context.Context, sampler sensor.Sampler, timeout, interval time.Duration) error {
	pv.setupUI()
	uiErr := make(chan error, 1)
	go func() {
		uiErr <- pv.tuiApp.Run()
	}()
	defer pv.tuiApp.Stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("Stopping sensor probe")
			return nil
		case err := <-uiErr:
			return err
		case <-ticker.C:
			pv.Update(sampler.Sample(timeout))
		}
	}
}

// Update records one sample and schedules a redraw. Safe for concurrent
// use.
func (pv *ProbeViewer) Update(sample sensor.DistanceSample) {
	pv.mu.Lock()
	pv.record(sample)
	text := pv.prepareDisplayText()
	pv.mu.Unlock()

	pv.tuiApp.QueueUpdateDraw(func() {
		pv.view.SetText(text)
	})
}

// record must be called with the mutex held.
func (pv *ProbeViewer) record(sample sensor.DistanceSample) {
	pv.last = sample
	if pv.statuses.Len() == maxProbeHistory {
		pv.statuses.PopFront()
	}
	pv.statuses.PushBack(sample.Status)
	if !sample.Valid() {
		return
	}
	if pv.history.Len() == maxProbeHistory {
		pv.history.PopFront()
	}
	pv.history.PushBack(sample.Value)
}

func (pv *ProbeViewer) setupUI() {
	pv.view = tview.NewTextView()
	pv.view.SetDynamicColors(true)
	pv.view.SetTextAlign(tview.AlignLeft)
	pv.view.SetBackgroundColor(tcell.ColorDarkSlateGray)
	pv.view.SetBorder(true).SetTitle(viewerTitle).SetTitleColor(tcell.ColorLightBlue)

	var introText strings.Builder
	if !pv.simulated {
		introText.WriteString("Displaying real sensor values.\n")
	} else {
		introText.WriteString("[#ff0000]Caution:[-] Displaying a simulated sensor.\n")
	}
	introText.WriteString("Hit [#ff0000]q[-] to exit, [#ff0000]r[-] to reload config file and restart")

	intro := tview.NewTextView()
	intro.SetBorder(true).SetTitle(" PUTTCUP ").SetTitleColor(tcell.ColorLightBlue)
	intro.SetText(introText.String())
	intro.SetTextAlign(tview.AlignCenter)
	intro.SetDynamicColors(true)
	intro.SetBackgroundColor(tcell.ColorDarkSlateGray)

	layout := tview.NewFlex().SetDirection(tview.FlexRow)
	layout.AddItem(intro, 4, 1, false)
	layout.AddItem(pv.view, 7, 1, true)

	pv.tuiApp.SetRoot(layout, true).SetFocus(pv.view)
	pv.tuiApp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'q', 'Q':
			pv.ossignal <- os.Interrupt
		case 'r', 'R':
			pv.ossignal <- syscall.SIGHUP
		}
		return event
	})
}

// prepareDisplayText must be called with the mutex held.
func (pv *ProbeViewer) prepareDisplayText() string {
	data := make([]float64, pv.history.Len())
	for i := range pv.history.Len() {
		data[i] = pv.history.At(i)
	}
	stats := calculateStats(data)

	var timeouts, outOfRange int
	for i := range pv.statuses.Len() {
		switch pv.statuses.At(i) {
		case sensor.StatusTimeout:
			timeouts++
		case sensor.StatusOutOfRange:
			outOfRange++
		}
	}

	hit := "[green]no[-]"
	if pv.last.Valid() && pv.last.Value < pv.threshold {
		hit = "[yellow]yes[-]"
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, " [yellow]Last:[-]      %s (%s), below threshold %.1f cm: %s\n", pv.last.String(), pv.last.Status, pv.threshold, hit)
	fmt.Fprintf(&buf, " [yellow]Valid:[-]     %d of the last %d samples\n", stats.n, pv.statuses.Len())
	fmt.Fprintf(&buf, " [yellow][min|mean|median|max]:[-] [%5.1f|%5.1f|%5.1f|%5.1f] cm\n", stats.min, stats.mean, stats.median, stats.max)
	fmt.Fprintf(&buf, " [yellow]Std dev:[-]   %5.2f cm\n", stats.stdDev)
	fmt.Fprintf(&buf, " [yellow]Invalid:[-]   %d timeouts, %d out of range", timeouts, outOfRange)
	return buf.String()
}

func calculateStats(data []float64) probeStats {
	if len(data) == 0 {
		return probeStats{}
	}
	sorted := slices.Clone(data)
	slices.Sort(sorted)

	stats := probeStats{
		n:      len(data),
		min:    floats.Min(data),
		max:    floats.Max(data),
		mean:   stat.Mean(data, nil),
		median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
	}
	if len(data) > 1 {
		stats.stdDev = stat.StdDev(data, nil)
	}
	return stats
}
