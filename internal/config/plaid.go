package config

import (
	"github.com/Veraticus/bankrules/internal/plaid"
	"github.com/spf13/viper"
)

// LoadPlaidConfig reads the plaid.* keys and validates them.
func LoadPlaidConfig(v *viper.Viper) (*plaid.Config, error) {
	cfg := &plaid.Config{
		ClientID:    v.GetString("plaid.client_id"),
		Secret:      v.GetString("plaid.secret"),
		Environment: v.GetString("plaid.environment"),
		AccessToken: v.GetString("plaid.access_token"),
		BankAccount: v.GetString("plaid.bank_account"),
		Accounts:    v.GetStringMapString("plaid.accounts"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
