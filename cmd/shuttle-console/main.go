// Command shuttle-console samples the console's switches, encoders and
// potentiometers, runs the panel logic and mirrors every event to MQTT and a
// status page.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sweeney/shuttle-console/internal/event"
	"github.com/sweeney/shuttle-console/internal/monitor"
	"github.com/sweeney/shuttle-console/internal/mqtt"
	"github.com/sweeney/shuttle-console/internal/panels"
	"github.com/sweeney/shuttle-console/internal/pins"
	"github.com/sweeney/shuttle-console/internal/sim"
	"github.com/sweeney/shuttle-console/internal/status"
	"github.com/sweeney/shuttle-console/internal/web"
)

type options struct {
	sample     time.Duration
	i2c        string
	gpiochip   string
	iio        string
	iioBits    uint
	expanders  string
	broker     string
	heartbeat  time.Duration
	httpAddr   string
	sim        bool
	printState bool
	logAnalog  bool
	mqttAnalog bool
	verbose    bool
}

func main() {
	var o options
	flag.DurationVar(&o.sample, "sample", 50*time.Millisecond, "Sampling period")
	flag.StringVar(&o.i2c, "i2c", "/dev/i2c-1", "I2C adapter for the expanders")
	flag.StringVar(&o.gpiochip, "gpiochip", "gpiochip0", "GPIO chip for the local bank and mux select lines")
	flag.StringVar(&o.iio, "iio", "/sys/bus/iio/devices/iio:device0", "IIO ADC device directory (empty disables analog inputs)")
	flag.UintVar(&o.iioBits, "iio-bits", 12, "ADC resolution in bits")
	flag.StringVar(&o.expanders, "expanders", "0x20,0x21,0x22", "I2C addresses of expanders A, B and C")
	flag.StringVar(&o.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address (empty to disable)")
	flag.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.StringVar(&o.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	flag.BoolVar(&o.sim, "sim", false, "Run against a simulated board driven from stdin")
	flag.BoolVar(&o.printState, "print-state", false, "Print current pin state and exit")
	flag.BoolVar(&o.logAnalog, "log-analog", false, "Log every analog change")
	flag.BoolVar(&o.mqttAnalog, "mqtt-analog", false, "Forward AnalogChange events to MQTT")
	flag.BoolVar(&o.verbose, "verbose", false, "Log every bus publish")

	flag.Parse()

	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(o options) error {
	bus := event.NewBus(nil)
	bus.SetVerbose(o.verbose)

	hw, err := openHardware(o, bus)
	if err != nil {
		return fmt.Errorf("init hardware: %w", err)
	}
	defer hw.close()

	if o.printState {
		hw.pins.Sample()
		fmt.Print(hw.pins.Snapshot())
		return nil
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		SampleMs:    o.sample.Milliseconds(),
		HeartbeatMs: o.heartbeat.Milliseconds(),
		Broker:      o.broker,
		HTTPAddr:    o.httpAddr,
		I2C:         o.i2c,
		Sim:         o.sim,
	})
	if info := readNetworkInfo(); info != nil {
		tracker.SetNetwork(info)
	}

	mon, err := monitor.New(hw.pins, tracker, nil, monitor.Options{LogAnalog: o.logAnalog, LogPanels: true})
	if err != nil {
		return fmt.Errorf("init monitor: %w", err)
	}
	defer mon.Close()

	console, err := panels.NewConsole(hw.pins)
	if err != nil {
		return fmt.Errorf("init panels: %w", err)
	}
	defer console.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	d := &daemon{
		pins:      hw.pins,
		tracker:   tracker,
		monitor:   mon,
		console:   console,
		heartbeat: o.heartbeat,
		now:       time.Now,
	}

	if o.broker != "" {
		pub := mqtt.NewRealPublisher(o.broker, "shuttle-console")
		defer pub.Close()
		var skip []event.Kind
		if !o.mqttAnalog {
			skip = append(skip, event.AnalogChange)
		}
		bridge := mqtt.NewBridge(pub, mqtt.DefaultQueue, nil, skip...)
		if err := bus.Tap(bridge); err != nil {
			return fmt.Errorf("tap mqtt bridge: %w", err)
		}
		d.pub, d.conn, d.bridge = pub, pub, bridge
		g.Go(func() error { return bridge.Run(gctx) })
	}

	d.publishSystem("STARTUP", "")

	if o.httpAddr != "" {
		hub := web.NewHub(nil)
		if err := bus.Tap(hub); err != nil {
			return fmt.Errorf("tap websocket hub: %w", err)
		}
		srv := web.New(o.httpAddr, tracker, hub)
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer scancel()
			return srv.Shutdown(sctx)
		})
		log.Printf("http status server listening on %s", o.httpAddr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if hw.board != nil {
		shell := sim.NewShell(hw.board, hw.pins, os.Stdout)
		// The shell blocks on stdin, so it stays outside the group; quitting
		// it stops the daemon like Ctrl-C.
		go func() {
			if err := shell.Run(gctx, os.Stdin); err != nil {
				log.Printf("sim shell: %v", err)
			}
			select {
			case sigCh <- os.Interrupt:
			default:
			}
		}()
		log.Printf("simulation mode: type help for commands")
	}

	log.Printf("started: sample=%v broker=%s heartbeat=%v sim=%v", o.sample, o.broker, o.heartbeat, o.sim)

	ticker := time.NewTicker(o.sample)
	defer ticker.Stop()

	g.Go(func() error {
		defer cancel()
		return d.run(gctx, ticker.C, sigCh)
	})
	return g.Wait()
}

// daemon owns the sampling loop and the lifecycle events.
type daemon struct {
	pins      *pins.Manager
	tracker   *status.Tracker
	monitor   *monitor.Monitor
	console   *panels.Console
	pub       mqtt.Publisher        // nil without a broker
	conn      mqtt.ConnectionStatus // nil without a broker
	bridge    *mqtt.Bridge
	heartbeat time.Duration
	now       func() time.Time

	seeded   bool
	lastBeat time.Time
}

// run samples on every tick until a signal arrives or ctx is done, then
// publishes SHUTDOWN.
func (d *daemon) run(ctx context.Context, tick <-chan time.Time, sig <-chan os.Signal) error {
	d.lastBeat = d.now()
	for {
		select {
		case <-ctx.Done():
			d.shutdown("CANCELLED")
			return nil

		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			d.shutdown(signalName(s))
			return nil

		case <-tick:
			d.step()
		}
	}
}

// step runs one sampling pass. The first pass only seeds the cache, after
// which the panels and the tracker are synced from it.
func (d *daemon) step() {
	d.pins.Sample()
	if !d.seeded {
		d.seeded = true
		d.monitor.Seed()
		if err := d.console.Sync(); err != nil {
			log.Printf("panel sync: %v", err)
		}
		log.Printf("baseline established")
	}
	d.refresh()

	t := d.now()
	if d.heartbeat > 0 && t.Sub(d.lastBeat) >= d.heartbeat {
		d.lastBeat = t
		if info := readNetworkInfo(); info != nil {
			d.tracker.SetNetwork(info)
		}
		snap := d.snapshot()
		log.Printf("heartbeat: uptime=%v passes=%d events=%d read_failures=%d",
			snap.Uptime().Truncate(time.Second), snap.Pins.Passes, snap.Pins.Events, snap.Pins.ReadFailures)
		d.publishSystem("HEARTBEAT", "")
	}
}

func (d *daemon) refresh() {
	d.tracker.SetStats(d.pins.Bus().Stats(), d.pins.Stats())
	if d.conn != nil {
		d.tracker.SetMQTT(d.conn.IsConnected(), d.bridge.Dropped())
	}
}

func (d *daemon) shutdown(reason string) {
	d.refresh()
	d.publishSystem("SHUTDOWN", reason)
}

// publishSystem sends a retained lifecycle event carrying a status snapshot.
// Heartbeats are not retained.
func (d *daemon) publishSystem(name, reason string) {
	if d.pub == nil {
		return
	}
	snap := d.snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      name,
		Reason:     reason,
		Retained:   name != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, name, reason),
	}
	if err := d.pub.PublishSystem(ev); err != nil {
		log.Printf("failed to publish %s event: %v", name, err)
		return
	}
	log.Printf("published %s event", name)
}

// snapshot reads the tracker on the daemon's clock.
func (d *daemon) snapshot() status.Snapshot {
	snap := d.tracker.Snapshot()
	snap.Now = d.now()
	return snap
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
