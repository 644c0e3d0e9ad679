package platform

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	c "lautenbacher.net/puttcup/config"
	"lautenbacher.net/puttcup/controller"
	"lautenbacher.net/puttcup/effects"
	"lautenbacher.net/puttcup/logging"
	"lautenbacher.net/puttcup/sensor"
	u "lautenbacher.net/puttcup/util"
)

// TUIPlatform simulates the cup in the terminal: the strip is drawn as a
// row of colored blocks and the ball is dropped into the cup with a key.
type TUIPlatform struct {
	title        string
	ledsTotal    int
	ranger       *SimulatedRanger
	tviewapp     *tview.Application
	intro        *tview.TextView
	ledDisplay   *tview.TextView
	statusView   *tview.TextView
	logView      *tview.TextView
	ossignalChan chan os.Signal
	ledsMutex    sync.Mutex
	leds         []effects.Led
	logFlushOnce sync.Once
	readyChan    chan bool
	stopOnce     sync.Once
	stopped      chan struct{}
}

func NewTUIPlatform(title string, display c.DisplayConfig, ossignalchan chan os.Signal) *TUIPlatform {
	return &TUIPlatform{
		title:        title,
		ledsTotal:    display.LedsTotal,
		ranger:       NewSimulatedRanger(nil, nil),
		ossignalChan: ossignalchan,
		leds:         make([]effects.Led, display.LedsTotal),
		readyChan:    make(chan bool),
		stopped:      make(chan struct{}),
	}
}

// Ready is closed once the TUI has been drawn for the first time.
func (s *TUIPlatform) Ready() <-chan bool {
	return s.readyChan
}

func (s *TUIPlatform) Ranger() *SimulatedRanger {
	return s.ranger
}

func (s *TUIPlatform) Sampler(det c.DetectionConfig) sensor.Sampler {
	return sensor.NewRangeSensor(s.ranger, s.ranger, sensor.SystemClock{}, det.Settle, validRange(det))
}

func (s *TUIPlatform) Strip() effects.Strip {
	return s
}

func (s *TUIPlatform) Len() int {
	return s.ledsTotal
}

func (s *TUIPlatform) Show(leds []effects.Led) error {
	s.ledsMutex.Lock()
	copy(s.leds, leds)
	s.ledsMutex.Unlock()

	select {
	case <-s.stopped:
		return nil
	default:
	}
	s.tviewapp.QueueUpdateDraw(s.simulateLedDisplay)
	return nil
}

// Close stops the TUI. Logging goes back to buffering so nothing is
// written into the dead screen.
func (s *TUIPlatform) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopped)
		logging.BufferOutput()
		if s.tviewapp != nil {
			s.tviewapp.Stop()
		}
	})
	return nil
}

func (s *TUIPlatform) getIntroText() string {
	ball := "[green]empty[-]"
	if s.ranger.Distance() < EmptyCupCM {
		ball = "[yellow]ball in the cup[-]"
	}
	noise := "off"
	if s.ranger.Noise() {
		noise = "[#ff0000]on[-]"
	}
	line1 := fmt.Sprintf("Cup: %s (%.1f cm) | sensor noise: %s", ball, s.ranger.Distance(), noise)
	line2 := "Hit [blue]space[-] to drop/remove the ball, [blue]n[-] to toggle noise"
	line3 := "Hit [#ff0000]q[-] to exit, [#ff0000]r[-] to reload, [#ff0000]Up/Down[-] to scroll logs"
	return fmt.Sprintf("%s\n%s\n%s", line1, line2, line3)
}

func (s *TUIPlatform) Start() error {
	s.tviewapp = tview.NewApplication()

	s.intro = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	s.intro.SetText(s.getIntroText())
	s.intro.SetBorder(true).SetTitle(s.title).SetTitleColor(tcell.ColorLightBlue)
	s.intro.SetBackgroundColor(tcell.NewRGBColor(20, 20, 20))

	s.ledDisplay = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	s.ledDisplay.SetBorder(true)
	s.ledDisplay.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))

	s.statusView = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	s.statusView.SetBorder(true).SetTitle(" Controller ").SetTitleColor(tcell.ColorLightBlue)
	s.statusView.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))

	s.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetChangedFunc(func() {
			s.logView.ScrollToEnd()
			s.tviewapp.Draw()
		})
	s.logView.SetBorder(true).SetTitle(" Logs ").SetTitleColor(tcell.ColorLightBlue)
	s.logView.SetBackgroundColor(tcell.NewRGBColor(40, 40, 40))

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.intro, 5, 0, false).
		AddItem(s.ledDisplay, 4, 0, false).
		AddItem(s.statusView, 3, 0, false).
		AddItem(s.logView, 0, 1, true)

	s.tviewapp.SetAfterDrawFunc(func(screen tcell.Screen) {
		s.logFlushOnce.Do(func() {
			if err := logging.SetOutput(tview.ANSIWriter(s.logView)); err != nil {
				slog.Error("Failed to attach log view", "error", err)
			}
			close(s.readyChan)
		})
	})

	s.tviewapp.SetInputCapture(s.handleKey)

	go func() {
		if err := s.tviewapp.SetRoot(layout, true).Run(); err != nil {
			slog.Error("Error running TUI", "error", err)
			s.ossignalChan <- os.Interrupt
		}
	}()
	return nil
}

func (s *TUIPlatform) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyCtrlC:
		s.ossignalChan <- os.Interrupt
		return nil
	case tcell.KeyUp:
		row, col := s.logView.GetScrollOffset()
		s.logView.ScrollTo(row-1, col)
		return nil
	case tcell.KeyDown:
		row, col := s.logView.GetScrollOffset()
		s.logView.ScrollTo(row+1, col)
		return nil
	case tcell.KeyRune:
		switch event.Rune() {
		case ' ', 'b', 'B':
			if s.ranger.Distance() < EmptyCupCM {
				s.ranger.SetDistance(EmptyCupCM)
				slog.Debug("Ball removed")
			} else {
				s.ranger.SetDistance(BallInCM)
				slog.Debug("Ball dropped", "distance", BallInCM)
			}
			s.intro.SetText(s.getIntroText())
			return nil
		case 'n', 'N':
			on := s.ranger.ToggleNoise()
			slog.Info("Sensor noise", "enabled", on)
			s.intro.SetText(s.getIntroText())
			return nil
		case 'q', 'Q':
			s.ossignalChan <- os.Interrupt
			return nil
		case 'r', 'R':
			s.ossignalChan <- syscall.SIGHUP
			return nil
		}
	}
	return event
}

// WatchStatus mirrors the controller status into the status pane until
// ctx is done.
func (s *TUIPlatform) WatchStatus(ctx context.Context, status *u.AtomicEvent[controller.Status]) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopped:
				return
			case <-status.Channel():
				text := formatStatus(status.Value())
				s.tviewapp.QueueUpdateDraw(func() {
					s.statusView.SetText(text)
				})
			}
		}
	}()
}

func formatStatus(st controller.Status) string {
	mode := "[green]" + st.Mode.String() + "[-]"
	if st.Mode == controller.ModeCelebrating {
		mode = "[yellow]" + st.Mode.String() + "[-]"
	}
	last := "never"
	if !st.LastTrigger.IsZero() {
		last = st.LastTrigger.Format("15:04:05")
	}
	return fmt.Sprintf(" Mode: %s | Distance: %s (%s) | Streak: %d | Holes: %d | Last: %s",
		mode, st.Sample.String(), st.Sample.Status, st.Streak, st.Triggers, last)
}

// simulateLedDisplay redraws the LED pane. It must run on the TUI
// goroutine via QueueUpdateDraw.
func (s *TUIPlatform) simulateLedDisplay() {
	s.ledsMutex.Lock()
	top, bottom := renderLeds(s.leds)
	s.ledsMutex.Unlock()
	s.ledDisplay.SetText(" " + top + "\n " + bottom)
}

// renderLeds draws the strip as two text rows, a LED's brightness being the
// height of its bar.
func renderLeds(leds []effects.Led) (string, string) {
	var top, bottom strings.Builder
	for _, led := range leds {
		if led.IsEmpty() {
			top.WriteString(" ")
			bottom.WriteString("·")
			continue
		}
		t, b := ledGlyphs(led)
		color := scaledColor(led)
		top.WriteString(color + t + "[-]")
		bottom.WriteString(color + b + "[-]")
	}
	return top.String(), bottom.String()
}

var bars = []string{"▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

// ledGlyphs maps the brightest channel to a bar of 1 to 16 eighths over
// two rows.
func ledGlyphs(led effects.Led) (string, string) {
	value := max(led.Red, led.Green, led.Blue)
	level := int(math.Ceil(float64(value) / 255 * 16))
	level = min(max(level, 1), 16)
	if level <= 8 {
		return " ", bars[level-1]
	}
	return bars[level-9], "█"
}

// scaledColor returns the hue of led at full brightness as a tview color
// tag. Brightness is shown by the bar height instead.
func scaledColor(led effects.Led) string {
	maxColor := float64(max(led.Red, led.Green, led.Blue))
	if maxColor == 0 {
		return "[#000000]"
	}
	factor := 255 / maxColor
	red := math.Min(math.Round(float64(led.Red)*factor), 255)
	green := math.Min(math.Round(float64(led.Green)*factor), 255)
	blue := math.Min(math.Round(float64(led.Blue)*factor), 255)
	return fmt.Sprintf("[#%02x%02x%02x]", byte(red), byte(green), byte(blue))
}
