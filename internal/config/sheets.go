package config

import (
	"os"

	"github.com/Veraticus/bankrules/internal/sheets"
	"github.com/spf13/viper"
)

// LoadSheetsConfig loads Google Sheets configuration. Precedence:
// 1. viper (config file or BANKRULES_ env vars)
// 2. GOOGLE_SHEETS_* environment variables
// 3. sheets.DefaultConfig
func LoadSheetsConfig(v *viper.Viper) (*sheets.Config, error) {
	config := sheets.DefaultConfig()

	setString := func(dst *string, key, env string) {
		if val := v.GetString(key); val != "" {
			*dst = val
			return
		}
		if val := os.Getenv(env); val != "" {
			*dst = val
		}
	}

	setString(&config.ServiceAccountPath, "sheets.service_account_path", "GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH")
	setString(&config.ClientID, "sheets.client_id", "GOOGLE_SHEETS_CLIENT_ID")
	setString(&config.ClientSecret, "sheets.client_secret", "GOOGLE_SHEETS_CLIENT_SECRET")
	setString(&config.RefreshToken, "sheets.refresh_token", "GOOGLE_SHEETS_REFRESH_TOKEN")
	setString(&config.SpreadsheetID, "sheets.spreadsheet_id", "GOOGLE_SHEETS_SPREADSHEET_ID")
	setString(&config.SpreadsheetName, "sheets.spreadsheet_name", "GOOGLE_SHEETS_SPREADSHEET_NAME")
	config.ServiceAccountPath = ExpandPath(config.ServiceAccountPath)
	if tz := v.GetString("sheets.time_zone"); tz != "" {
		config.TimeZone = tz
	}
	if v.IsSet("sheets.batch_size") {
		config.BatchSize = v.GetInt("sheets.batch_size")
	}

	// A refresh token saved by `bankrules export auth` fills the gap.
	if config.RefreshToken == "" && config.ClientID != "" {
		if tokenFile := v.GetString("sheets.token_file"); tokenFile != "" {
			if token, err := sheets.LoadToken(ExpandPath(tokenFile)); err == nil {
				config.RefreshToken = token.RefreshToken
			}
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
