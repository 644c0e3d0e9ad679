package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lautenbacher.net/puttcup/announce"
	"lautenbacher.net/puttcup/audio"
	c "lautenbacher.net/puttcup/config"
	"lautenbacher.net/puttcup/controller"
	"lautenbacher.net/puttcup/dispatch"
	"lautenbacher.net/puttcup/effects"
	"lautenbacher.net/puttcup/logging"
	"lautenbacher.net/puttcup/peripheral"
	"lautenbacher.net/puttcup/platform"
	"lautenbacher.net/puttcup/sensor"
)

const (
	simulationTitle   = " PUTTCUP Simulation "
	configSettle      = 500 * time.Millisecond
	listenerIdleEvery = 100 * time.Millisecond
	probeWanderEvery  = 700 * time.Millisecond
)

var (
	flagConfig string
	flagReal   bool
	flagHTTP   string
	flagPort   string
	flagStdin  bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "puttcup",
		Short: "Golf cup hole detector and celebration controller",
		Long: `puttcup watches an ultrasonic rangefinder in the bottom of a golf cup.
When a ball drops in it plays a sound, runs a light show on the LED strip
and tells the co-processor to join in. Without --real the cup is simulated
in the terminal.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", c.CONFILE, "configuration file")
	rootCmd.PersistentFlags().BoolVar(&flagReal, "real", false, "drive the real hardware instead of the simulation")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the hole detector",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runController()
		},
	}
	runCmd.Flags().StringVar(&flagHTTP, "http", "", "serve the runtime config API on this address, e.g. :8080")

	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "Show live rangefinder readings and statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe()
		},
	}

	peripheralCmd := &cobra.Command{
		Use:   "peripheral",
		Short: "Act as the co-processor: render commands read from a serial port",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPeripheral()
		},
	}
	peripheralCmd.Flags().StringVar(&flagPort, "port", "", "serial port to read commands from (default from config)")
	peripheralCmd.Flags().BoolVar(&flagStdin, "stdin", false, "read commands from stdin instead of a serial port")

	portsCmd := &cobra.Command{
		Use:   "ports",
		Short: "List the serial ports of this machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := peripheral.ListPorts()
			if err != nil {
				return err
			}
			for _, p := range ports {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, probeCmd, peripheralCmd, portsCmd)
	return rootCmd
}

func readConfig() (c.Config, error) {
	conf, err := c.ReadConfig(flagConfig)
	if err != nil {
		return c.Config{}, err
	}
	conf.RealHW = flagReal
	conf.Configfile = flagConfig
	return conf, nil
}

// initLogging picks the log target of the platform. The simulation buffers
// its output until the TUI is drawn.
func initLogging(conf c.Config) error {
	target := conf.Logging.TUI
	if conf.RealHW {
		target = conf.Logging.HW
	}
	return logging.Init(!conf.RealHW, logOptions(target))
}

func logOptions(t c.LogTarget) logging.Options {
	return logging.Options{Level: t.Level, Format: t.Format, File: t.File}
}

func newPlatform(conf c.Config, ossignal chan os.Signal) (platform.Platform, *platform.TUIPlatform) {
	if conf.RealHW {
		return platform.NewRaspberryPiPlatform(conf.Hardware), nil
	}
	tui := platform.NewTUIPlatform(simulationTitle, conf.Hardware.Display, ossignal)
	return tui, tui
}

// startPlatform starts p and, for the simulation, waits for the first draw.
func startPlatform(p platform.Platform, tui *platform.TUIPlatform) error {
	if tui == nil {
		return p.Start()
	}
	errc := make(chan error, 1)
	go func() {
		errc <- p.Start()
	}()
	select {
	case err := <-errc:
		if err == nil {
			err = errors.New("terminal UI exited before it was drawn")
		}
		return err
	case <-tui.Ready():
		return nil
	}
}

func runController() error {
	ossignal := make(chan os.Signal, 1)
	signal.Notify(ossignal, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(ossignal)

	for {
		conf, err := readConfig()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return err
		}
		if err := initLogging(conf); err != nil {
			return err
		}
		reload, err := runOnce(conf, ossignal)
		if err != nil || !reload {
			logging.Close()
			return err
		}
		slog.Info("Reloading configuration", "file", conf.Configfile)
	}
}

// runOnce wires all components for conf and runs the controller until a
// signal arrives. It reports whether the caller should start over with a
// freshly read configuration.
func runOnce(conf c.Config, ossignal chan os.Signal) (bool, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	plat, tui := newPlatform(conf, ossignal)
	if err := startPlatform(plat, tui); err != nil {
		plat.Close()
		return false, fmt.Errorf("failed to start platform: %w", err)
	}
	slog.Info("Platform started", "real", conf.RealHW, "leds", plat.Strip().Len())

	link := peripheral.Connect(conf.Peripheral)

	var sounds dispatch.Sounds
	var jukebox *audio.Jukebox
	if conf.Audio.Enabled {
		library := audio.NewLibrary(conf.Audio.Dir)
		if err := library.Watch(ctx); err != nil {
			slog.Warn("Not watching sound directory", "dir", conf.Audio.Dir, "error", err)
		}
		jukebox = audio.NewJukebox(library, audio.NewPlayer(conf.Audio), nil)
		sounds = jukebox
	}

	announcer := announce.FromConfig(conf.Announce)
	engine := effects.NewEngine(plat.Strip(), nil, conf.Ambient, conf.Celebration)
	dispatcher := dispatch.New(link, sounds, engine, announcer)
	ctrl := controller.New(conf, plat.Sampler(conf.Detection), engine, dispatcher, link, plat)

	if tui != nil {
		tui.WatchStatus(ctx, ctrl.Status())
	}

	var server *http.Server
	if flagHTTP != "" {
		server = serveConfigAPI(flagHTTP, conf.Configfile)
	}

	changes, err := c.Watch(ctx, conf.Configfile, configSettle)
	if err != nil {
		slog.Warn("Not watching config file", "error", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- ctrl.Run(ctx)
	}()

	reload := false
	var runErr error
	select {
	case sig := <-ossignal:
		slog.Info("Received signal", "signal", sig.String())
		reload = sig == syscall.SIGHUP
		cancel()
		runErr = <-done
	case <-changes:
		slog.Info("Config file changed")
		reload = true
		cancel()
		runErr = <-done
	case runErr = <-done:
	}

	if server != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("HTTP server shutdown failed", "error", err)
		}
		stop()
	}
	dispatcher.Wait()
	if jukebox != nil {
		jukebox.Wait()
	}
	audio.TerminatePortaudio()
	if announcer != nil {
		announcer.Close()
	}
	return reload, runErr
}

func serveConfigAPI(addr, cfile string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/config", c.ConfigHandler(cfile))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		slog.Info("Serving config API", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Config API failed", "error", err)
		}
	}()
	return server
}

func runProbe() error {
	conf, err := readConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	// the probe view owns the screen, logs are flushed when it exits
	if err := logging.Init(true, logOptions(conf.Logging.TUI)); err != nil {
		return err
	}
	defer logging.Close()

	ossignal := make(chan os.Signal, 1)
	signal.Notify(ossignal, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(ossignal)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-ossignal:
			cancel()
		case <-ctx.Done():
		}
	}()

	var sampler sensor.Sampler
	if conf.RealHW {
		rpi := platform.NewRaspberryPiPlatform(conf.Hardware)
		if err := rpi.Start(); err != nil {
			return fmt.Errorf("failed to start platform: %w", err)
		}
		defer rpi.Close()
		sampler = rpi.Sampler(conf.Detection)
	} else {
		ranger := platform.NewSimulatedRanger(nil, nil)
		go ranger.Wander(ctx, probeWanderEvery)
		det := conf.Detection
		sampler = sensor.NewRangeSensor(ranger, ranger, sensor.SystemClock{}, det.Settle,
			sensor.ValidRange{Min: det.MinValidCM, Max: det.MaxValidCM})
	}

	viewer := platform.NewProbeViewer(conf.Detection.ThresholdCM, ossignal, !conf.RealHW)
	return viewer.Run(ctx, sampler, conf.Detection.EchoTimeout, conf.Detection.PollInterval)
}

func runPeripheral() error {
	conf, err := readConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	if flagStdin && !conf.RealHW {
		return errors.New("--stdin needs --real, the simulation uses the terminal")
	}
	if err := initLogging(conf); err != nil {
		return err
	}
	defer logging.Close()

	ossignal := make(chan os.Signal, 1)
	signal.Notify(ossignal, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(ossignal)

	var input io.ReadCloser = os.Stdin
	if !flagStdin {
		port := flagPort
		if port == "" {
			port = conf.Peripheral.Port
		}
		p, err := peripheral.OpenPort(port, peripheral.OptionsFromConfig(conf.Peripheral))
		if err != nil {
			return err
		}
		input = p
	}
	defer input.Close()

	plat, tui := newPlatform(conf, ossignal)
	if err := startPlatform(plat, tui); err != nil {
		plat.Close()
		return fmt.Errorf("failed to start platform: %w", err)
	}
	defer plat.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case sig := <-ossignal:
			slog.Info("Received signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return listen(ctx, conf, plat.Strip(), input)
}

// listen renders the commands read from r on strip until ctx is done or r
// is exhausted.
func listen(ctx context.Context, conf c.Config, strip effects.Strip, r io.Reader) error {
	engine := effects.NewEngine(strip, nil, conf.Ambient, conf.Celebration)
	listener := peripheral.NewListener(engine, listenerIdleEvery, conf.Celebration.Duration)
	slog.Info("Listening for commands", "leds", strip.Len())
	return listener.Run(ctx, r)
}

// Local Variables:
// compile-command: "go build"
// End:
