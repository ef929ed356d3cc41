package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"golang.org/x/oauth2"
)

// TokenStore persists the OAuth token between runs. With a passphrase the
// file is sealed; without one it is plain JSON readable only by the owner.
type TokenStore struct {
	Path       string
	Passphrase string
}

// Exists reports whether a token file is present
func (s *TokenStore) Exists() bool {
	_, err := os.Stat(s.Path)
	return err == nil
}

// Load reads the saved token. A missing file returns an error satisfying
// errors.Is(err, fs.ErrNotExist).
func (s *TokenStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}

	if IsSealed(data) {
		if s.Passphrase == "" {
			return nil, fmt.Errorf("token file %s is encrypted; set %s", s.Path, EnvTokenPassphrase)
		}
		if data, err = OpenToken(string(data), s.Passphrase); err != nil {
			return nil, fmt.Errorf("opening token file %s: %w", s.Path, err)
		}
	} else if s.Passphrase != "" {
		log.Printf("⚠️  Token file %s is not encrypted; it will be sealed on the next save", s.Path)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parsing token file %s: %w", s.Path, err)
	}
	return &tok, nil
}

// Save writes the token via a temp file, keeping the previous one as a backup
func (s *TokenStore) Save(tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}

	if s.Passphrase != "" {
		sealed, err := SealToken(data, s.Passphrase)
		if err != nil {
			return fmt.Errorf("sealing token: %w", err)
		}
		data = []byte(sealed + "\n")
	}

	tmpFile := s.Path + TmpSuffix
	if err := os.WriteFile(tmpFile, data, TokenFilePermission); err != nil {
		return fmt.Errorf("writing token: %w", err)
	}

	if _, err := os.Stat(s.Path); err == nil {
		if err := os.Rename(s.Path, s.Path+BackupSuffix); err != nil {
			log.Printf("Warning: failed to back up token file: %v", err)
		}
	}

	if err := os.Rename(tmpFile, s.Path); err != nil {
		return fmt.Errorf("replacing token file: %w", err)
	}
	return nil
}
