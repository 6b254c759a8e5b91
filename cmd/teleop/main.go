package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/subsea-teleop/internal/api"
	"github.com/banshee-data/subsea-teleop/internal/commands"
	"github.com/banshee-data/subsea-teleop/internal/config"
	"github.com/banshee-data/subsea-teleop/internal/db"
	"github.com/banshee-data/subsea-teleop/internal/joystick"
	"github.com/banshee-data/subsea-teleop/internal/network"
	"github.com/banshee-data/subsea-teleop/internal/security"
	"github.com/banshee-data/subsea-teleop/internal/serialmux"
	"github.com/banshee-data/subsea-teleop/internal/stream"
	"github.com/banshee-data/subsea-teleop/internal/teleop"
	"github.com/banshee-data/subsea-teleop/internal/version"
)

// Input modes
const (
	inputSerial = "serial"
	inputUDP    = "udp"
	inputPCAP   = "pcap"
	inputDev    = "dev"
	inputNone   = "none"
)

var (
	configPath  = flag.String("config", config.DefaultConfigPath, "Controller parameter file (.json)")
	listen      = flag.String("listen", ":8080", "HTTP listen address")
	inputMode   = flag.String("input", inputSerial, "Input source: serial, udp, pcap, dev or none")
	port        = flag.String("port", "/dev/ttyUSB0", "Serial port of the gamepad bridge")
	baud        = flag.Int("baud", serialmux.DefaultBaudRate, "Serial baud rate")
	udpListen   = flag.String("udp-listen", ":9870", "UDP address for bridge datagrams (udp input)")
	udpRcvBuf   = flag.Int("udp-rcvbuf", 1<<20, "UDP receive buffer size in bytes")
	udpPublish  = flag.String("udp-publish", "", "host:port to send command messages to (empty disables)")
	pcapFile    = flag.String("pcap-file", "", "Capture to replay (pcap input)")
	pcapPort    = flag.Int("pcap-port", 9870, "UDP destination port to extract from the capture")
	pcapSpeed   = flag.Float64("pcap-speed", 1, "Replay speed multiplier; 0 replays as fast as possible")
	dbPath      = flag.String("db-path", "teleop.db", "Session log database (empty disables recording)")
	grpcListen  = flag.String("grpc-listen", ":9871", "gRPC address for the cycle stream (empty disables)")
	grpcViewers = flag.Int("grpc-max-viewers", 4, "Maximum concurrent cycle stream viewers")
	devInterval = flag.Duration("dev-interval", 50*time.Millisecond, "Line interval of the simulated bridge (dev input)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func validateInputMode(mode string) error {
	switch mode {
	case inputSerial, inputUDP, inputPCAP, inputDev, inputNone:
		return nil
	}
	return fmt.Errorf("unknown input %q: expected serial, udp, pcap, dev or none", mode)
}

// devScript is the line sequence the simulated bridge loops over: a level
// vehicle at 2m, a rest frame, one press of the arm button and a short
// ascend on the left stick.
func devScript() ([][]byte, error) {
	rest := joystick.Neutral()
	frames := []joystick.Frame{
		rest,
		rest.With(joystick.ButtonArm),
		rest,
		rest.WithAxis(joystick.AxisLeftStickUD, -0.5),
		rest,
	}

	var lines [][]byte
	orientation, err := teleop.EncodeOrientation(teleop.Orientation{})
	if err != nil {
		return nil, err
	}
	depth, err := teleop.EncodeDepth(2)
	if err != nil {
		return nil, err
	}
	lines = append(lines, orientation, depth)
	for _, f := range frames {
		b, err := teleop.EncodeFrame(f)
		if err != nil {
			return nil, err
		}
		lines = append(lines, b)
	}
	return lines, nil
}

// openBridge returns the line source for the serial-style input modes.
func openBridge(mode string) (serialmux.SerialMuxInterface, error) {
	switch mode {
	case inputSerial:
		m, err := serialmux.NewRealSerialMux(*port, serialmux.PortOptions{BaudRate: *baud})
		if err != nil {
			return nil, err
		}
		return m, nil
	case inputDev:
		lines, err := devScript()
		if err != nil {
			return nil, err
		}
		return serialmux.NewMockSerialMux(lines, *devInterval), nil
	default:
		return serialmux.NewDisabledSerialMux(), nil
	}
}

type lineStatser interface {
	Stats() (lines, dropped uint64)
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if err := validateInputMode(*inputMode); err != nil {
		log.Fatal(err)
	}
	if *inputMode == inputPCAP && *pcapFile == "" {
		log.Fatal("-pcap-file is required with -input pcap")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load controller config: %v", err)
	}
	log.Printf("teleop %s: %.0f Hz, attitude assist %v, depth assist %v",
		version.String(), cfg.Rate, cfg.EnableAttitude, cfg.EnableDepth)

	diagnostics := map[string]func() any{}
	publishers := commands.Fanout{}

	hub := stream.NewHub(*grpcViewers)
	publishers = append(publishers, hub)
	diagnostics["stream"] = func() any {
		return map[string]any{"viewers": hub.Clients(), "dropped": hub.Dropped()}
	}

	var database *db.DB
	var recorder *db.Recorder
	if *dbPath != "" {
		if err := security.ValidateDatabasePath(*dbPath); err != nil {
			log.Fatalf("invalid database path: %v", err)
		}
		database, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer database.Close()
		recorder = db.NewRecorder(database)
		publishers = append(publishers, recorder)
		diagnostics["recorder"] = func() any {
			written, dropped := recorder.Stats()
			return map[string]uint64{"written": written, "dropped": dropped}
		}
	}

	var cmdPub *network.CommandPublisher
	if *udpPublish != "" {
		cmdPub, err = network.NewCommandPublisher(*udpPublish, time.Minute)
		if err != nil {
			log.Fatalf("failed to open command publisher: %v", err)
		}
		publishers = append(publishers, cmdPub)
		diagnostics["udp_publisher"] = func() any { return cmdPub.Stats() }
	}

	opts := teleop.RunnerOptions{Publisher: publishers}
	if recorder != nil {
		opts.Transitions = recorder
	}
	runner := teleop.NewRunner(cfg, opts)

	bridge, err := openBridge(*inputMode)
	if err != nil {
		log.Fatalf("failed to open bridge: %v", err)
	}
	defer bridge.Close()
	if err := bridge.Initialize(); err != nil {
		log.Fatalf("failed to initialize bridge: %v", err)
	}
	if s, ok := bridge.(lineStatser); ok {
		diagnostics["serial"] = func() any {
			lines, dropped := s.Stats()
			return map[string]uint64{"lines": lines, "dropped": dropped}
		}
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// control loop
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := runner.Run(ctx); err != nil {
			log.Printf("control loop stopped: %v", err)
		}
		log.Print("control loop terminated")
	}()

	if cmdPub != nil {
		cmdPub.Start(ctx)
	}

	var device api.DeviceStater
	switch *inputMode {
	case inputSerial, inputDev:
		r := serialmux.NewRouter(runner)
		device = r

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bridge.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("failed to monitor serial port: %v", err)
			}
			log.Print("monitor routine terminated")
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Run(ctx, bridge); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("bridge router stopped: %v", err)
			}
			log.Print("bridge router terminated")
		}()

	case inputUDP:
		listener := network.NewListener(network.ListenerConfig{
			Address: *udpListen,
			RcvBuf:  *udpRcvBuf,
			Sink:    runner,
		})
		diagnostics["udp_listener"] = func() any { return listener.Stats() }

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := listener.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("UDP listener stopped: %v", err)
			}
			log.Print("UDP listener terminated")
		}()

	case inputPCAP:
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats, err := network.ReplayPCAPFile(ctx, *pcapFile, *pcapPort, runner, network.ReplayOptions{
				Realtime: *pcapSpeed > 0,
				Speed:    *pcapSpeed,
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("PCAP replay failed: %v", err)
				return
			}
			log.Printf("PCAP replay finished: %d packets, %d rejected, span %s", stats.Packets, stats.Rejected, stats.Span)
		}()
	}

	if *grpcListen != "" {
		srv := stream.NewServer(hub)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(ctx, *grpcListen); err != nil {
				log.Printf("cycle stream server stopped: %v", err)
			}
			log.Print("cycle stream server terminated")
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		apiOpts := api.Options{
			Status:      runner,
			Config:      cfg,
			Device:      device,
			Diagnostics: diagnostics,
		}
		if database != nil {
			apiOpts.Sessions = database
		}
		apiServer := api.NewServer(apiOpts)
		mux := apiServer.ServeMux()

		apiServer.AttachAdminRoutes(mux)
		bridge.AttachAdminRoutes(mux)
		if database != nil {
			if err := database.AttachAdminRoutes(mux); err != nil {
				log.Printf("failed to attach database admin routes: %v", err)
			}
		}

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("failed to start server: %v", err)
				stop()
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()

	if recorder != nil {
		if err := recorder.Close(); err != nil {
			log.Printf("failed to close session recorder: %v", err)
		}
	}
	if cmdPub != nil {
		if err := cmdPub.Close(); err != nil {
			log.Printf("failed to close command publisher: %v", err)
		}
	}
	log.Printf("Graceful shutdown complete")
}
