// Command linkcheck validates a point-to-point serial link: it sends a
// fixed frame to the device under test a number of times, verifies the
// echoed frames field by field, and writes an HTML report plus a row per
// comparison into a local sqlite database.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/linkcheck/internal/config"
	"github.com/banshee-data/linkcheck/internal/frame"
	"github.com/banshee-data/linkcheck/internal/link"
	"github.com/banshee-data/linkcheck/internal/report"
	"github.com/banshee-data/linkcheck/internal/resultdb"
	"github.com/banshee-data/linkcheck/internal/session"
	"github.com/banshee-data/linkcheck/internal/version"
)

var (
	devMode      = flag.Bool("dev", false, "Run against a loopback port instead of real hardware")
	portName     = flag.String("port", "", "Serial port to use (overrides config)")
	configPath   = flag.String("config", "", "Path to TOML config file")
	packets      = flag.Int("packets", 0, "Number of frames to send (overrides config)")
	listSessions = flag.Bool("list", false, "List stored sessions and exit")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		log.Printf("linkcheck %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	if *portName != "" {
		cfg.Port = *portName
	}
	if *packets > 0 {
		cfg.PacketsToSend = *packets
	}

	db, err := resultdb.Open(cfg.Database)
	if err != nil {
		log.Fatalf("failed to open results database: %v", err)
	}
	defer db.Close()

	if *listSessions {
		sessions, err := db.ListSessions()
		if err != nil {
			log.Fatalf("failed to list sessions: %v", err)
		}
		for _, s := range sessions {
			log.Printf("%s  %s  port=%s sent=%d received=%d pass=%d fail=%d",
				s.StartedAt.Format(time.RFC3339), s.ID, s.Port, s.Sent, s.Received, s.Passed, s.Failed)
		}
		return
	}

	var port link.Porter
	if *devMode {
		log.Printf("dev mode: using loopback port")
		cfg.Port = "loopback"
		port = link.NewLoopbackPort()
	} else {
		port, err = link.OpenPort(cfg.Port, cfg.PortOptions)
		if err != nil {
			log.Fatalf("failed to open serial port: %v", err)
		}
		// Give the device time to settle after the port asserts DTR.
		time.Sleep(2 * time.Second)
	}
	defer port.Close()

	frameCfg := frame.DefaultConfig()
	receiver := link.NewReceiver(port, frameCfg, link.ReceiverConfig{
		ChunkSize:   cfg.ChunkSize,
		ReadTimeout: cfg.ReadTimeout,
	})

	sess, err := session.New(session.Config{
		Expected:      cfg.Expected,
		PacketsToSend: cfg.PacketsToSend,
		SendDelay:     cfg.SendDelay,
		RecvTimeout:   cfg.RecvTimeout,
		TolerancePct:  cfg.TolerancePct,
	}, frameCfg, port, receiver.Payloads())
	if err != nil {
		log.Fatalf("failed to create session: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		receiver.Run(ctx)
	}()
	log.Printf("serial receiver started on %s", cfg.Port)

	res, runErr := sess.Run(ctx)
	if runErr != nil {
		if receiver.Err() != nil {
			log.Printf("session aborted: %v (receiver: %v)", runErr, receiver.Err())
		} else {
			log.Printf("session aborted: %v", runErr)
		}
	}
	stop()
	wg.Wait()

	// Whatever was graded gets reported, aborted session or not.
	sum := session.Summarize(res.Records, len(cfg.Expected))
	log.Printf("session %s: sent=%d received=%d pass=%d fail=%d mean|err|=%.3f%%",
		res.ID, res.Sent, res.Received, sum.Passed, sum.Failed, sum.MeanAbsErrPct)

	if err := db.SaveResult(res, cfg.Port); err != nil {
		log.Printf("failed to save results: %v", err)
	}

	path, err := report.WriteFiles(cfg.ReportDir, res, sum)
	if err != nil {
		log.Fatalf("failed to write report: %v", err)
	}
	log.Printf("report generated: %s", path)
}
