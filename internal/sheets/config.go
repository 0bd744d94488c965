// Package sheets exports bank rule statistics to Google Sheets.
package sheets

import (
	"fmt"
	"time"

	"github.com/Veraticus/bankrules/internal/common"
)

// AuthMethod is how the writer authenticates to the Sheets API.
type AuthMethod int

const (
	AuthNone AuthMethod = iota
	AuthOAuth
	AuthServiceAccount
)

// Config controls where rule reports land and how they are written.
type Config struct {
	// OAuth2 installed-app credentials. RefreshToken usually comes from
	// the token file written by `bankrules export auth`.
	ClientID     string
	ClientSecret string
	RefreshToken string

	ServiceAccountPath string

	// SpreadsheetID reuses an existing spreadsheet; otherwise one named
	// SpreadsheetName is created on every export.
	SpreadsheetID   string
	SpreadsheetName string
	TimeZone        string

	BatchSize        int
	RetryAttempts    int
	RetryDelay       time.Duration
	EnableFormatting bool
}

func DefaultConfig() Config {
	return Config{
		SpreadsheetName:  "Bank Rule Statistics",
		TimeZone:         "UTC",
		BatchSize:        500,
		RetryAttempts:    3,
		RetryDelay:       time.Second,
		EnableFormatting: true,
	}
}

// Auth reports the single configured auth method, or AuthNone when the
// credentials are incomplete.
func (c *Config) Auth() AuthMethod {
	switch {
	case c.ServiceAccountPath != "":
		return AuthServiceAccount
	case c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != "":
		return AuthOAuth
	default:
		return AuthNone
	}
}

func (c *Config) Validate() error {
	oauth := c.ClientID != "" || c.RefreshToken != ""
	switch {
	case c.ServiceAccountPath != "" && oauth:
		return fmt.Errorf("%w: sheets: set either OAuth2 credentials or a service account, not both", common.ErrInvalidConfig)
	case c.Auth() == AuthNone:
		return fmt.Errorf("%w: sheets: no complete authentication method", common.ErrMissingConfig)
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("%w: sheets: time zone %q: %w", common.ErrInvalidConfig, c.TimeZone, err)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: sheets: batch size must be positive", common.ErrInvalidConfig)
	}
	if c.RetryAttempts < 0 || c.RetryDelay < 0 {
		return fmt.Errorf("%w: sheets: retry settings cannot be negative", common.ErrInvalidConfig)
	}
	return nil
}
