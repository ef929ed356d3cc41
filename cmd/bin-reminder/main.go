package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/klabast/wb-services/bin-reminder/internal/app"
	"github.com/klabast/wb-services/bin-reminder/internal/commands"
	"github.com/pkg/browser"
	"golang.org/x/term"
)

func main() {
	// Check for subcommands
	if len(os.Args) > 1 && os.Args[1] == "authorize" {
		os.Exit(commands.Authorize(os.Args[2:]))
	}
	os.Exit(run())
}

func run() int {
	dryRun := flag.Bool("dry-run", false, "Scrape and plan events without touching the calendar")
	exportPath := flag.String("export", "", "Also write the planned events to this file")
	exportFormat := flag.String("format", "", "Export format: ics, csv or json (default: from file extension)")
	envFile := flag.String("env", "", "Path to .env file (default: ./.env)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bin-reminder [OPTIONS]\n")
		fmt.Fprintf(os.Stderr, "       bin-reminder authorize [OPTIONS]\n\n")
		fmt.Fprintf(os.Stderr, "Looks up the next bin collections and adds reminders to Google Calendar.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	cfg, err := app.LoadConfig(envFiles...)
	if err != nil {
		log.Printf("❌ %v", err)
		return app.ExitCode(err)
	}

	closeLog, err := app.SetupLogging(cfg.LogFile)
	if err != nil {
		log.Printf("❌ %v", err)
		return app.ExitCode(err)
	}
	defer func() {
		if err := closeLog(); err != nil {
			log.Printf("Error closing log file: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Consent needs a human; unattended runs must have a token already
	var consent app.ConsentFunc
	if term.IsTerminal(int(os.Stdin.Fd())) {
		lc := &app.LoopbackConsent{OpenBrowser: browser.OpenURL}
		consent = lc.Obtain
	}

	pipeline := &app.Pipeline{
		Config:          cfg,
		OpenBrowser:     app.ChromeLauncher(cfg),
		ConnectCalendar: app.GoogleConnector(cfg, consent),
	}

	log.Printf("Starting bin reminder sync (calendar: %s, time zone: %s)", cfg.CalendarID, cfg.Location)
	_, err = pipeline.Run(ctx, app.RunOptions{
		DryRun:       *dryRun,
		ExportPath:   *exportPath,
		ExportFormat: *exportFormat,
	})
	return app.ExitCode(err)
}
