package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// RunOptions are the per-invocation switches from the command line
type RunOptions struct {
	DryRun       bool
	ExportPath   string
	ExportFormat string
}

// Report is everything one run produced, for the end-of-run summary
type Report struct {
	Address     Address
	Parse       ParseOutcome
	Descriptors []EventDescriptor
	Sync        SyncResult
	Synced      bool
}

// Pipeline wires resolver, scraper, mapper and sync together. The browser
// and calendar are opened through the factories so tests can fake them.
type Pipeline struct {
	Config          *Config
	OpenBrowser     func(ctx context.Context) (Browser, error)
	ConnectCalendar func(ctx context.Context) (CalendarService, func() error, error)
	Now             func() time.Time
}

// Run performs one scrape-and-sync pass. Fatal errors return before any
// calendar write; per-row and per-event problems end up in the report.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (report *Report, err error) {
	report = &Report{}
	defer func() { LogSummary(report, err) }()

	cfg := p.Config
	addr, err := ResolveAddress(cfg.Suburb, cfg.Street, cfg.HouseNumber)
	if err != nil {
		return report, err
	}
	report.Address = addr

	format := ""
	if opts.ExportPath != "" {
		if format, err = ExportFormat(opts.ExportPath, opts.ExportFormat); err != nil {
			return report, err
		}
	}

	outcome, err := p.scrape(ctx, addr)
	if err != nil {
		return report, err
	}
	report.Parse = outcome
	report.Descriptors = MapEntries(outcome.Entries)

	for _, d := range report.Descriptors {
		log.Printf("Planned %q on %s (collection %s)", d.Title, d.Date.Format(DateLayout), d.Entry.CollectionDate.Format(DateLayout))
	}

	switch {
	case opts.ExportPath == "":
	case len(report.Descriptors) == 0:
		log.Printf("⚠️  Nothing to export to %s", opts.ExportPath)
	default:
		if err := ExportFile(opts.ExportPath, format, report.Descriptors, cfg.Location); err != nil {
			log.Printf("❌ %v", err)
		}
	}

	if opts.DryRun {
		log.Printf("Dry run: calendar left untouched")
		return report, nil
	}
	if len(report.Descriptors) == 0 {
		log.Printf("⚠️  No upcoming collections to sync")
		return report, nil
	}

	service, release, err := p.ConnectCalendar(ctx)
	if err != nil {
		return report, err
	}
	defer func() {
		if rerr := release(); rerr != nil {
			log.Printf("⚠️  Releasing calendar credential: %v", rerr)
		}
	}()

	syncer := NewSyncer(service, cfg.CalendarID, cfg.Location, cfg.RequestTimeout)
	report.Sync = syncer.Sync(ctx, report.Descriptors)
	report.Synced = true
	return report, nil
}

// scrape owns the browser session and closes it before returning
func (p *Pipeline) scrape(ctx context.Context, addr Address) (ParseOutcome, error) {
	browser, err := p.OpenBrowser(ctx)
	if err != nil {
		return ParseOutcome{}, err
	}
	defer func() {
		if cerr := browser.Close(); cerr != nil {
			log.Printf("⚠️  %v", cerr)
		}
	}()

	scraper := NewScraper(browser, p.Config.Profile, p.Config.Location)
	if p.Now != nil {
		scraper.now = p.Now
	}
	return scraper.Scrape(ctx, addr)
}

// LogSummary prints the end-of-run summary, whatever the outcome
func LogSummary(r *Report, err error) {
	log.Printf("Summary: %d collections found, %d rows skipped, %d past, %d unparseable",
		len(r.Parse.Entries), len(r.Parse.Skipped), len(r.Parse.Past), len(r.Parse.Errors))
	if r.Synced {
		log.Printf("Summary: created=%d skipped_duplicate=%d failed=%d",
			r.Sync.Created, r.Sync.SkippedDuplicate, len(r.Sync.Failed))
	}
	for _, perr := range r.Parse.Errors {
		log.Printf("❌ %v", perr)
	}
	for _, f := range r.Sync.Failed {
		log.Printf("❌ %s on %s: %v", f.Descriptor.Title, f.Descriptor.Date.Format(DateLayout), f.Err)
	}
	if err != nil {
		log.Printf("❌ Run aborted: %v", err)
	}
}

// ChromeLauncher opens the real browser for cfg
func ChromeLauncher(cfg *Config) func(ctx context.Context) (Browser, error) {
	return func(ctx context.Context) (Browser, error) {
		return NewChromeBrowser(ctx, ChromeOptions{
			ExecPath:  cfg.ChromePath,
			Headless:  cfg.Headless,
			Timeout:   cfg.RequestTimeout,
			Selectors: cfg.Profile.Selectors,
		})
	}
}

// GoogleConnector authenticates and opens Google Calendar. The returned
// release func persists the (possibly refreshed) token.
func GoogleConnector(cfg *Config, consent ConsentFunc) func(ctx context.Context) (CalendarService, func() error, error) {
	return func(ctx context.Context) (CalendarService, func() error, error) {
		oauthCfg, err := LoadOAuthConfig(cfg.CredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		store := &TokenStore{Path: cfg.TokenFile, Passphrase: cfg.TokenPassphrase}
		cred, err := AcquireCredential(ctx, oauthCfg, store, consent, cfg.RequestTimeout)
		if err != nil {
			return nil, nil, err
		}
		svc, err := NewGoogleCalendar(ctx, cred.Client(ctx))
		if err != nil {
			if rerr := cred.Release(); rerr != nil {
				log.Printf("⚠️  Releasing calendar credential: %v", rerr)
			}
			return nil, nil, err
		}
		return svc, cred.Release, nil
	}
}

// SetupLogging sends the standard logger to stderr and the append-only
// log file. The returned func closes the file.
func SetupLogging(path string) (func() error, error) {
	if path == "" {
		log.SetOutput(os.Stderr)
		return func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, LogFilePermission)
	if err != nil {
		return nil, fmt.Errorf("%w: opening log file: %v", ErrEnvironment, err)
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	log.SetFlags(log.LstdFlags)
	return func() error {
		log.SetOutput(os.Stderr)
		return f.Close()
	}, nil
}
