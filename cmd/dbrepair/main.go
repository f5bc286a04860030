package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dbrepair/dbrepair/pkg/durability"
	"github.com/dbrepair/dbrepair/pkg/repair"
	"github.com/dbrepair/dbrepair/pkg/repairapi"
	"github.com/dbrepair/dbrepair/pkg/repairconfig"
)

func main() {
	configFile := flag.String("config", "", "Path to a YAML config file")
	showHelp := flag.Bool("help", false, "Show help message")

	cfg, err := repairconfig.LoadFromFile(configFileFromArgs())
	if err != nil {
		log.Fatalf("ERROR: loading config: %v", err)
	}
	repairconfig.BindFlags(flag.CommandLine, &cfg)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\ndbrepair serves an admin HTTP surface for repairing document databases.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -db-path /var/lib/godb -repair-path /var/lib/godb-repair\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -config dbrepair.yaml -port 9090\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nSafety Note:\n")
		fmt.Fprintf(os.Stderr, "  repair-path must sit on the same filesystem as db-path whenever\n")
		fmt.Fprintf(os.Stderr, "  possible; a cross-device install falls back to a copy, which is\n")
		fmt.Fprintf(os.Stderr, "  far slower for large databases.\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}
	_ = configFile

	if err := cfg.Validate(); err != nil {
		log.Fatalf("ERROR: invalid configuration: %v", err)
	}

	coord := repair.NewCoordinator(cfg.DBPath, cfg.RepairPath, cfg.DirectoryPerDB, durability.NewManager(durability.LevelFsync))
	srv := repairapi.NewServer(coord)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Router(),
	}

	go func() {
		log.Printf("Starting dbrepair admin server on :%s", cfg.Port)
		log.Printf("Repairs available at POST http://localhost:%s/repair/{db}", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

// configFileFromArgs scans os.Args for -config/--config ahead of the
// full flag.Parse() so the YAML file's values can seed flag defaults
// before BindFlags registers them.
func configFileFromArgs() string {
	for i, arg := range os.Args[1:] {
		switch {
		case arg == "-config" || arg == "--config":
			if i+2 <= len(os.Args)-1 {
				return os.Args[i+2]
			}
		case len(arg) > 8 && arg[:8] == "-config=":
			return arg[8:]
		case len(arg) > 9 && arg[:9] == "--config=":
			return arg[9:]
		}
	}
	return ""
}
