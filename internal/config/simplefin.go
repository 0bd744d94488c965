package config

import (
	"github.com/Veraticus/bankrules/internal/simplefin"
	"github.com/spf13/viper"
)

// LoadSimpleFINConfig reads the simplefin.* keys and validates them.
func LoadSimpleFINConfig(v *viper.Viper) (*simplefin.Config, error) {
	cfg := &simplefin.Config{
		Token:       v.GetString("simplefin.token"),
		StateFile:   ExpandPath(v.GetString("simplefin.state_file")),
		BankAccount: v.GetString("simplefin.bank_account"),
		Accounts:    v.GetStringMapString("simplefin.accounts"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
