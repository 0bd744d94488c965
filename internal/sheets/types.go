package sheets

import (
	"time"

	"github.com/shopspring/decimal"
)

// RuleStatsRow is one row of the Rules tab.
type RuleStatsRow struct {
	LastMatched  *time.Time
	TotalMatched decimal.Decimal
	Name         string
	BankAccount  string
	Match        string // e.g. `Description Contains "amazon"`
	Action       string
	Account      string
	Priority     int
	TimesMatched int
	Active       bool
}

// BulkRunRow is one row of the bulk run history section.
type BulkRunRow struct {
	StartedAt    time.Time
	Source       string
	BankAccount  string
	Transactions int
	Applied      int
	Errors       int
}

// Report holds everything written to the spreadsheet.
type Report struct {
	GeneratedAt  time.Time
	TotalMatched decimal.Decimal
	Rules        []RuleStatsRow
	Runs         []BulkRunRow
	TotalMatches int
}
