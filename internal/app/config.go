package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on hosts without zoneinfo

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Constants
const (
	DefaultLookupURL       = "https://www.thehills.nsw.gov.au/Residents/Waste-Recycling/When-is-my-bin-day/Check-which-bin-to-put-out"
	DefaultCalendarID      = "primary"
	DefaultTimezone        = "Australia/Sydney"
	DefaultCredentialsFile = "credentials.json"
	DefaultTokenFile       = "token.json"
	DefaultLogFile         = "bin_calendar.log"
	DefaultRequestTimeout  = 30 * time.Second

	DateLayout          = "2006-01-02"
	BackupSuffix        = ".backup"
	TmpSuffix           = ".tmp"
	TokenFilePermission = 0600
	LogFilePermission   = 0644

	// Reminders fire this many minutes before the all-day event starts
	ReminderLeadMinutes = 24 * 60

	// Environment keys
	EnvSuburb          = "SUBURB"
	EnvStreet          = "STREET"
	EnvHouseNumber     = "HOUSE_NUMBER"
	EnvLookupURL       = "BIN_LOOKUP_URL"
	EnvCalendarID      = "CALENDAR_ID"
	EnvTimezone        = "TIMEZONE"
	EnvCredentialsFile = "CREDENTIALS_FILE"
	EnvTokenFile       = "TOKEN_FILE"
	EnvTokenPassphrase = "TOKEN_PASSPHRASE"
	EnvLogFile         = "LOG_FILE"
	EnvRequestTimeout  = "REQUEST_TIMEOUT"
	EnvHeadless        = "HEADLESS"
	EnvChromePath      = "CHROME_PATH"
	EnvSiteProfile     = "SITE_PROFILE"
)

// Config is everything a run needs, read once at startup
type Config struct {
	Suburb      string
	Street      string
	HouseNumber string

	CalendarID      string
	CredentialsFile string
	TokenFile       string
	TokenPassphrase string
	LogFile         string
	ChromePath      string

	Location       *time.Location
	RequestTimeout time.Duration
	Headless       bool

	Profile SiteProfile
}

// Selectors are the CSS selectors the scraper depends on
type Selectors struct {
	SearchInput string `yaml:"search_input"`
	Suggestion  string `yaml:"suggestion"`
	Submit      string `yaml:"submit"`
	Results     string `yaml:"results"`
	Row         string `yaml:"row"`
	Label       string `yaml:"label"`
	Date        string `yaml:"date"`
}

// SiteProfile describes the council page: where it lives, how it is laid
// out and how its wording maps to bin types
type SiteProfile struct {
	LookupURL   string        `yaml:"lookup_url"`
	Selectors   Selectors     `yaml:"selectors"`
	DateLayouts []string      `yaml:"date_layouts"`
	Keywords    []KeywordRule `yaml:"keywords"`
}

// DefaultSiteProfile matches The Hills Shire Council bin-day lookup
func DefaultSiteProfile() SiteProfile {
	return SiteProfile{
		LookupURL: DefaultLookupURL,
		Selectors: Selectors{
			SearchInput: "#address",
			Suggestion:  "ul.ui-autocomplete li",
			Submit:      `button[type="submit"]`,
			Results:     "body",
			Row:         ".bin-schedule-item",
			Label:       ".bin-type",
			Date:        ".collection-date",
		},
		DateLayouts: []string{
			"02/01/2006",
			"2/1/2006",
			"Monday 2 January 2006",
			"Monday, 2 January 2006",
			"Mon 2 Jan 2006",
			"2 January 2006",
			"2006-01-02",
		},
		Keywords: DefaultKeywordRules(),
	}
}

// LoadSiteProfile reads a YAML profile; keys it leaves out keep their defaults
func LoadSiteProfile(path string) (SiteProfile, error) {
	profile := DefaultSiteProfile()

	data, err := os.ReadFile(path)
	if err != nil {
		return profile, fmt.Errorf("%w: reading site profile: %v", ErrConfiguration, err)
	}
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return profile, fmt.Errorf("%w: parsing site profile %s: %v", ErrConfiguration, path, err)
	}
	if err := profile.Validate(); err != nil {
		return profile, err
	}
	return profile, nil
}

// Validate checks that no selector or table was blanked out
func (p SiteProfile) Validate() error {
	required := map[string]string{
		"lookup_url":             p.LookupURL,
		"selectors.search_input": p.Selectors.SearchInput,
		"selectors.suggestion":   p.Selectors.Suggestion,
		"selectors.results":      p.Selectors.Results,
		"selectors.row":          p.Selectors.Row,
		"selectors.label":        p.Selectors.Label,
		"selectors.date":         p.Selectors.Date,
	}
	var missing []string
	for key, value := range required {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: site profile missing %s", ErrConfiguration, strings.Join(sortedStrings(missing), ", "))
	}
	if len(p.DateLayouts) == 0 {
		return fmt.Errorf("%w: site profile has no date_layouts", ErrConfiguration)
	}
	if len(p.Keywords) == 0 {
		return fmt.Errorf("%w: site profile has no keywords", ErrConfiguration)
	}
	return nil
}

// LoadConfig reads the .env file (if any) and the environment.
// Address fields are not validated here; ResolveAddress does that.
func LoadConfig(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: loading .env: %v", ErrConfiguration, err)
	}

	cfg := &Config{
		Suburb:          os.Getenv(EnvSuburb),
		Street:          os.Getenv(EnvStreet),
		HouseNumber:     os.Getenv(EnvHouseNumber),
		CalendarID:      getenv(EnvCalendarID, DefaultCalendarID),
		CredentialsFile: getenv(EnvCredentialsFile, DefaultCredentialsFile),
		TokenFile:       getenv(EnvTokenFile, DefaultTokenFile),
		TokenPassphrase: os.Getenv(EnvTokenPassphrase),
		LogFile:         getenv(EnvLogFile, DefaultLogFile),
		ChromePath:      os.Getenv(EnvChromePath),
		RequestTimeout:  DefaultRequestTimeout,
		Headless:        true,
	}

	loc, err := time.LoadLocation(getenv(EnvTimezone, DefaultTimezone))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfiguration, EnvTimezone, err)
	}
	cfg.Location = loc

	if v := os.Getenv(EnvRequestTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("%w: %s must be a positive duration, got %q", ErrConfiguration, EnvRequestTimeout, v)
		}
		cfg.RequestTimeout = d
	}

	if v := os.Getenv(EnvHeadless); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be a boolean, got %q", ErrConfiguration, EnvHeadless, v)
		}
		cfg.Headless = b
	}

	cfg.Profile = DefaultSiteProfile()
	if path := os.Getenv(EnvSiteProfile); path != "" {
		if cfg.Profile, err = LoadSiteProfile(path); err != nil {
			return nil, err
		}
	}
	if v := os.Getenv(EnvLookupURL); v != "" {
		cfg.Profile.LookupURL = v
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
