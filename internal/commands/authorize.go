package commands

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/klabast/wb-services/bin-reminder/internal/app"
	"github.com/pkg/browser"
	"golang.org/x/term"
)

// stdin is shared so that consecutive prompts do not lose buffered input
var stdin = bufio.NewReader(os.Stdin)

// Authorize handles the authorize subcommand: it runs the consent flow
// up front so that scheduled runs find a token waiting
func Authorize(args []string) int {
	fs := flag.NewFlagSet("authorize", flag.ExitOnError)
	force := fs.Bool("force", false, "Replace an existing token without asking")
	encrypt := fs.Bool("encrypt", false, "Encrypt the token file with a passphrase")
	noBrowser := fs.Bool("no-browser", false, "Only print the consent URL")
	envFile := fs.String("env", "", "Path to .env file (default: ./.env)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bin-reminder authorize [OPTIONS]\n\n")
		fmt.Fprintf(os.Stderr, "Grants calendar access and saves the OAuth token.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  %-17s Client secret file (default: %s)\n", app.EnvCredentialsFile, app.DefaultCredentialsFile)
		fmt.Fprintf(os.Stderr, "  %-17s Token file (default: %s)\n", app.EnvTokenFile, app.DefaultTokenFile)
		fmt.Fprintf(os.Stderr, "  %-17s Passphrase for an encrypted token file\n", app.EnvTokenPassphrase)
	}
	fs.Parse(args)

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	cfg, err := app.LoadConfig(envFiles...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return app.ExitCode(err)
	}

	store := &app.TokenStore{Path: cfg.TokenFile, Passphrase: cfg.TokenPassphrase}
	if store.Exists() && !*force {
		if !confirm(stdin, fmt.Sprintf("Token file already exists: %s\nOverwrite? (y/N): ", store.Path)) {
			fmt.Fprintln(os.Stderr, "Aborted")
			return app.ExitFailure
		}
	}

	if *encrypt && store.Passphrase == "" {
		pass, err := readSecret("Token passphrase:  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading passphrase: %v\n", err)
			return app.ExitFailure
		}
		again, err := readSecret("Confirm passphrase: ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading passphrase: %v\n", err)
			return app.ExitFailure
		}
		if pass == "" {
			fmt.Fprintln(os.Stderr, "Passphrase cannot be empty")
			return app.ExitFailure
		}
		if pass != again {
			fmt.Fprintln(os.Stderr, "Passphrases do not match")
			return app.ExitFailure
		}
		store.Passphrase = pass
	}

	oauthCfg, err := app.LoadOAuthConfig(cfg.CredentialsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return app.ExitCode(err)
	}

	consent := &app.LoopbackConsent{Out: os.Stdout}
	if !*noBrowser {
		consent.OpenBrowser = browser.OpenURL
	}

	tok, err := consent.Obtain(context.Background(), oauthCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return app.ExitCode(err)
	}
	if err := store.Save(tok); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving token: %v\n", err)
		return app.ExitFailure
	}

	fmt.Printf("✅ Token saved: %s\n", store.Path)
	if store.Passphrase != "" && cfg.TokenPassphrase == "" {
		fmt.Printf("   Encrypted. Set %s to the same passphrase for unattended runs.\n", app.EnvTokenPassphrase)
	}
	return app.ExitOK
}

// confirm asks a yes/no question; anything but y/yes is no
func confirm(in *bufio.Reader, prompt string) bool {
	fmt.Print(prompt)
	response, _ := in.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

// readSecret reads a line without echo when stdin is a terminal
func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := stdin.ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}
