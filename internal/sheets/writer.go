package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Veraticus/bankrules/internal/common"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// ReportWriter writes a rule statistics report somewhere.
type ReportWriter interface {
	Write(ctx context.Context, report Report) error
}

const (
	sheetTitle = "Bank Rules"
	// rulesHeaderRow is the zero-based row index of the rules table header.
	rulesHeaderRow = 6
	ruleColumns    = 10
)

// Writer implements the ReportWriter interface for Google Sheets.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewWriter creates a new Google Sheets report writer.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	service, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create sheets service: %w", common.ErrSheetsAPI, err)
	}

	return &Writer{
		config:  config,
		service: service,
		logger:  logger.With("component", "sheets"),
	}, nil
}

// Write replaces the sheet contents with the report.
func (w *Writer) Write(ctx context.Context, report Report) error {
	w.logger.Info("starting rule statistics export",
		"rules", len(report.Rules),
		"runs", len(report.Runs))

	spreadsheetID, err := w.getOrCreateSpreadsheet(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get spreadsheet: %w", common.ErrSheetsAPI, err)
	}

	if clearErr := w.clearSheet(ctx, spreadsheetID); clearErr != nil {
		return fmt.Errorf("%w: failed to clear sheet: %w", common.ErrSheetsAPI, clearErr)
	}

	values := prepareReportData(report)

	retryOpts := common.RetryOptions{
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	err = common.WithRetry(ctx, func() error {
		return w.writeData(ctx, spreadsheetID, values)
	}, retryOpts)
	if err != nil {
		return fmt.Errorf("%w: failed to write data: %w", common.ErrSheetsAPI, err)
	}

	if w.config.EnableFormatting {
		err = common.WithRetry(ctx, func() error {
			return w.applyFormatting(ctx, spreadsheetID, len(report.Rules))
		}, retryOpts)
		if err != nil {
			// Formatting is cosmetic; the data is already written.
			w.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("rule statistics export completed",
		"spreadsheet_id", spreadsheetID,
		"rows_written", len(values))

	return nil
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	switch config.Auth() {
	case AuthServiceAccount:
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}
		tokenSource = jwtConfig.TokenSource(ctx)
	case AuthOAuth:
		token := &oauth2.Token{RefreshToken: config.RefreshToken, TokenType: "Bearer"}
		tokenSource = oauthConfig(config.ClientID, config.ClientSecret, "").TokenSource(ctx, token)
	default:
		return nil, fmt.Errorf("%w: sheets credentials", common.ErrMissingConfig)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, tokenSource)))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return srv, nil
}

// getOrCreateSpreadsheet gets an existing spreadsheet or creates a new one.
func (w *Writer) getOrCreateSpreadsheet(ctx context.Context) (string, error) {
	if w.config.SpreadsheetID != "" {
		_, err := w.service.Spreadsheets.Get(w.config.SpreadsheetID).Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("unable to access spreadsheet %s: %w", w.config.SpreadsheetID, err)
		}
		return w.config.SpreadsheetID, nil
	}

	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title:    w.config.SpreadsheetName,
			TimeZone: w.config.TimeZone,
		},
		Sheets: []*sheets.Sheet{
			{
				Properties: &sheets.SheetProperties{
					Title: sheetTitle,
				},
			},
		},
	}

	created, err := w.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create spreadsheet: %w", err)
	}

	w.logger.Info("created new spreadsheet",
		"id", created.SpreadsheetId,
		"url", created.SpreadsheetUrl)

	return created.SpreadsheetId, nil
}

func (w *Writer) clearSheet(ctx context.Context, spreadsheetID string) error {
	_, err := w.service.Spreadsheets.Values.Clear(spreadsheetID, "A:Z", &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

// prepareReportData lays the report out as rows: a title block, the rules
// table starting at rulesHeaderRow, then the bulk run history.
func prepareReportData(report Report) [][]any {
	values := make([][]any, 0, rulesHeaderRow+len(report.Rules)+len(report.Runs)+4)

	values = append(values,
		[]any{"Bank Rule Statistics", report.GeneratedAt.Format("Jan 2, 2006 15:04")},
		[]any{},
		[]any{"Rules", len(report.Rules)},
		[]any{"Total Matches", report.TotalMatches},
		[]any{"Total Amount Matched", report.TotalMatched.InexactFloat64()},
		[]any{},
		[]any{
			"Name",
			"Priority",
			"Active",
			"Bank Account",
			"Match",
			"Action",
			"Account",
			"Times Matched",
			"Last Matched",
			"Total Matched",
		},
	)

	for _, row := range report.Rules {
		lastMatched := ""
		if row.LastMatched != nil {
			lastMatched = row.LastMatched.Format("2006-01-02 15:04")
		}
		values = append(values, []any{
			row.Name,
			row.Priority,
			row.Active,
			row.BankAccount,
			row.Match,
			row.Action,
			row.Account,
			row.TimesMatched,
			lastMatched,
			row.TotalMatched.InexactFloat64(),
		})
	}

	if len(report.Runs) == 0 {
		return values
	}

	values = append(values,
		[]any{},
		[]any{"Bulk Runs"},
		[]any{"Started", "Source", "Bank Account", "Transactions", "Applied", "Errors"},
	)
	for _, run := range report.Runs {
		values = append(values, []any{
			run.StartedAt.Format("2006-01-02 15:04"),
			run.Source,
			run.BankAccount,
			run.Transactions,
			run.Applied,
			run.Errors,
		})
	}

	return values
}

// writeData writes the rows in batches to stay under API limits.
func (w *Writer) writeData(ctx context.Context, spreadsheetID string, values [][]any) error {
	for i := 0; i < len(values); i += w.config.BatchSize {
		end := min(i+w.config.BatchSize, len(values))
		batch := values[i:end]

		rangeStr := fmt.Sprintf("A%d", i+1)
		_, err := w.service.Spreadsheets.Values.Update(spreadsheetID, rangeStr, &sheets.ValueRange{Values: batch}).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", i+1, err)
		}

		w.logger.Debug("wrote batch", "start_row", i+1, "rows", len(batch))
	}

	return nil
}

func (w *Writer) applyFormatting(ctx context.Context, spreadsheetID string, ruleCount int) error {
	batchUpdate := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: formattingRequests(ruleCount),
	}
	_, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, batchUpdate).Context(ctx).Do()
	return err
}

// formattingRequests bolds the title and table header, formats the
// Total Matched column as currency and freezes the header rows.
func formattingRequests(ruleCount int) []*sheets.Request {
	lastRuleRow := int64(rulesHeaderRow + 1 + ruleCount)

	return []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          0,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   2,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true, FontSize: 16},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          0,
					StartRowIndex:    rulesHeaderRow,
					EndRowIndex:      rulesHeaderRow + 1,
					StartColumnIndex: 0,
					EndColumnIndex:   ruleColumns,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          0,
					StartRowIndex:    rulesHeaderRow + 1,
					EndRowIndex:      lastRuleRow,
					StartColumnIndex: ruleColumns - 1,
					EndColumnIndex:   ruleColumns,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						NumberFormat: &sheets.NumberFormat{
							Type:    "CURRENCY",
							Pattern: "$#,##0.00",
						},
					},
				},
				Fields: "userEnteredFormat.numberFormat",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    0,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   ruleColumns,
				},
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId: 0,
					GridProperties: &sheets.GridProperties{
						FrozenRowCount: rulesHeaderRow + 1,
					},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
	}
}

var _ ReportWriter = (*Writer)(nil)
