// Package google mirrors rent payments into an owner-facing Google Sheet.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"

	"hanapbahay/internal/config"
	"hanapbahay/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	ledgerSheet   = "Payments"
	lastColumn    = "N"
	statusColumn  = "J"
	updatedColumn = "N"
	timeLayout    = "2006-01-02 15:04:05"
)

var ErrRowNotFound = errors.New("payment row not found")

var ledgerHeaders = []interface{}{
	"Payment ID", "Booking ID", "Period", "Due Date", "Tenant ID", "Owner ID",
	"Amount", "Late Fee", "Amount Paid", "Status", "Method", "Reference", "Paid Date", "Updated At",
}

// LedgerSheet keeps one row per rent payment, keyed by payment id in column A.
type LedgerSheet struct {
	service       *sheets.Service
	spreadsheetID string
	rowCache      map[int64]int
	cacheMu       sync.RWMutex
	logger        *zerolog.Logger
}

// NewLedgerSheet authenticates with a service account and warms the row
// cache in the background.
func NewLedgerSheet(ctx context.Context, cfg config.GoogleConfig, logger *zerolog.Logger) (*LedgerSheet, error) {
	credentialsJSON, err := os.ReadFile(cfg.GoogleCredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	jwtConfig, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	s := newLedgerSheet(srv, cfg.LedgerSpreadSheetID, logger)

	go func() {
		warmCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.WarmUpCache(warmCtx); err != nil {
			s.logger.Warn().Err(err).Msg("ledger sheet cache warm-up failed")
		}
	}()

	return s, nil
}

func newLedgerSheet(srv *sheets.Service, spreadsheetID string, logger *zerolog.Logger) *LedgerSheet {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &LedgerSheet{
		service:       srv,
		spreadsheetID: spreadsheetID,
		rowCache:      make(map[int64]int),
		logger:        logger,
	}
}

// ServiceAccountEmail returns the address the spreadsheet must be shared with.
func ServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

// EnsureHeader checks access to the spreadsheet and writes the header row
// when the sheet is empty.
func (s *LedgerSheet) EnsureHeader(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, ledgerSheet+"!A1:"+lastColumn+"1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, ledgerSheet+"!A1:"+lastColumn+"1", &sheets.ValueRange{
		Values: [][]interface{}{ledgerHeaders},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// WarmUpCache populates the row index cache by reading the id column.
func (s *LedgerSheet) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, ledgerSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[int64]int)
	for i, row := range resp.Values {
		if id := cellID(row); id > 0 {
			s.rowCache[id] = i + 1
		}
	}
	return nil
}

func (s *LedgerSheet) AppendPayment(ctx context.Context, payment *models.RentPayment) error {
	resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, ledgerSheet+"!A:A", &sheets.ValueRange{
		Values: [][]interface{}{paymentRowValues(payment)},
	}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return err
	}
	if resp.Updates != nil {
		if row := rowFromRange(resp.Updates.UpdatedRange); row > 0 {
			s.setCachedRow(payment.ID, row)
		}
	}
	return nil
}

// UpsertPayment rewrites the payment row or appends a new one.
func (s *LedgerSheet) UpsertPayment(ctx context.Context, payment *models.RentPayment) error {
	if payment == nil {
		return fmt.Errorf("payment is nil")
	}

	rowIdx, err := s.FindPaymentRow(ctx, payment.ID)
	if err != nil {
		if errors.Is(err, ErrRowNotFound) {
			return s.AppendPayment(ctx, payment)
		}
		return err
	}

	rangeData := fmt.Sprintf("%s!A%d:%s%d", ledgerSheet, rowIdx, lastColumn, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, &sheets.ValueRange{
		Values: [][]interface{}{paymentRowValues(payment)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// UpdatePaymentStatus touches only the status and updated-at cells.
func (s *LedgerSheet) UpdatePaymentStatus(ctx context.Context, paymentID int64, status string) error {
	rowIdx, err := s.FindPaymentRow(ctx, paymentID)
	if err != nil {
		return err
	}

	statusRange := fmt.Sprintf("%s!%s%d:%s%d", ledgerSheet, statusColumn, rowIdx, statusColumn, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, statusRange, &sheets.ValueRange{
		Values: [][]interface{}{{status}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return err
	}

	updatedRange := fmt.Sprintf("%s!%s%d:%s%d", ledgerSheet, updatedColumn, rowIdx, updatedColumn, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, updatedRange, &sheets.ValueRange{
		Values: [][]interface{}{{time.Now().Format(timeLayout)}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// DeletePayment clears the payment row. A missing row is not an error.
func (s *LedgerSheet) DeletePayment(ctx context.Context, paymentID int64) error {
	rowIdx, err := s.FindPaymentRow(ctx, paymentID)
	if errors.Is(err, ErrRowNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	rangeData := fmt.Sprintf("%s!A%d:%s%d", ledgerSheet, rowIdx, lastColumn, rowIdx)
	_, err = s.service.Spreadsheets.Values.Clear(s.spreadsheetID, rangeData, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err == nil {
		s.deleteCachedRow(paymentID)
	}
	return err
}

// FindPaymentRow returns the 1-based row of paymentID, consulting the cache first.
func (s *LedgerSheet) FindPaymentRow(ctx context.Context, paymentID int64) (int, error) {
	if paymentID == 0 {
		return 0, fmt.Errorf("payment id is required")
	}
	if row, ok := s.getCachedRow(paymentID); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, ledgerSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	for i, row := range resp.Values {
		if cellID(row) == paymentID {
			s.setCachedRow(paymentID, i+1)
			return i + 1, nil
		}
	}
	return 0, ErrRowNotFound
}

func (s *LedgerSheet) getCachedRow(id int64) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *LedgerSheet) setCachedRow(id int64, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

func (s *LedgerSheet) deleteCachedRow(id int64) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	delete(s.rowCache, id)
}

// ClearCache forgets every cached row index.
func (s *LedgerSheet) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[int64]int)
}

func cellID(row []interface{}) int64 {
	if len(row) == 0 {
		return 0
	}
	switch v := row[0].(type) {
	case float64:
		return int64(v)
	case string:
		id, _ := strconv.ParseInt(v, 10, 64)
		return id
	}
	return 0
}

var rangeRowPattern = regexp.MustCompile(`![A-Z]+(\d+)`)

// rowFromRange extracts the first row number of an A1 range like "Payments!A10:N10".
func rowFromRange(a1 string) int {
	m := rangeRowPattern.FindStringSubmatch(a1)
	if m == nil {
		return 0
	}
	row, _ := strconv.Atoi(m[1])
	return row
}

func pesos(centavos int64) float64 {
	return float64(centavos) / 100
}

func paymentRowValues(p *models.RentPayment) []interface{} {
	paidDate := ""
	if p.PaidDate != nil {
		paidDate = p.PaidDate.Format(models.DateLayout)
	}
	return []interface{}{
		p.ID,
		p.BookingID,
		p.Period,
		p.DueDate.Format(models.DateLayout),
		p.TenantID,
		p.OwnerID,
		pesos(p.Amount),
		pesos(p.LateFee),
		pesos(p.AmountPaid),
		p.Status,
		p.PaymentMethod,
		p.ReferenceNumber,
		paidDate,
		p.UpdatedAt.Format(timeLayout),
	}
}
