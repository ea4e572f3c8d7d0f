// Package export writes owner rent ledgers as xlsx workbooks.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hanapbahay/internal/database"
	"hanapbahay/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Payments"

var headers = []string{
	"Period", "Due Date", "Listing", "Tenant", "Amount", "Late Fee", "Amount Paid", "Balance", "Status", "Method", "Reference", "Paid Date",
}

// LedgerSource lists the rows of an owner ledger.
type LedgerSource interface {
	ListPayments(ctx context.Context, filter database.PaymentFilter) ([]*models.RentPayment, error)
	ListBookings(ctx context.Context, filter database.BookingFilter) ([]*models.Booking, error)
}

type LedgerExporter struct {
	source LedgerSource
	dir    string
	logger *zerolog.Logger
}

func NewLedgerExporter(source LedgerSource, dir string, logger *zerolog.Logger) *LedgerExporter {
	return &LedgerExporter{
		source: source,
		dir:    dir,
		logger: logger,
	}
}

// Totals are the sums written below the ledger rows, in centavos.
type Totals struct {
	Amount     int64
	LateFee    int64
	AmountPaid int64
	Balance    int64
}

// OwnerLedger writes every payment of ownerID due within [from, to] and
// returns the file path.
func (e *LedgerExporter) OwnerLedger(ctx context.Context, ownerID int64, from, to time.Time) (string, error) {
	if to.Before(from) {
		return "", fmt.Errorf("invalid date range: %s - %s", from.Format(models.DateLayout), to.Format(models.DateLayout))
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	payments, err := e.source.ListPayments(ctx, database.PaymentFilter{OwnerID: ownerID, DueFrom: from, DueTo: to})
	if err != nil {
		return "", fmt.Errorf("error getting payments: %w", err)
	}
	bookings, err := e.source.ListBookings(ctx, database.BookingFilter{OwnerID: ownerID})
	if err != nil {
		return "", fmt.Errorf("error getting bookings: %w", err)
	}
	byID := make(map[int64]*models.Booking, len(bookings))
	for _, b := range bookings {
		byID[b.ID] = b
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Rent ledger: %s - %s",
		from.Format(models.DateLayout), to.Format(models.DateLayout)))
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.MergeCell(sheetName, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 3)
		_ = f.SetCellValue(sheetName, cell, h)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	moneyStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 4})
	overdueStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#F8CBAD"}, Pattern: 1},
	})

	var totals Totals
	row := 4
	for _, p := range payments {
		listing, tenant := "", ""
		if b := byID[p.BookingID]; b != nil {
			listing, tenant = b.ListingTitle, b.TenantName
		}
		paidDate := ""
		if p.PaidDate != nil {
			paidDate = p.PaidDate.Format(models.DateLayout)
		}
		values := []interface{}{
			p.Period,
			p.DueDate.Format(models.DateLayout),
			listing,
			tenant,
			pesos(p.Amount),
			pesos(p.LateFee),
			pesos(p.AmountPaid),
			pesos(p.Balance()),
			p.Status,
			p.PaymentMethod,
			p.ReferenceNumber,
			paidDate,
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheetName, start, &values); err != nil {
			return "", fmt.Errorf("error writing row: %w", err)
		}
		_ = f.SetCellStyle(sheetName, cellName(5, row), cellName(8, row), moneyStyle)
		if p.Status == models.PaymentOverdue {
			_ = f.SetCellStyle(sheetName, cellName(9, row), cellName(9, row), overdueStyle)
		}

		totals.Amount += p.Amount
		totals.LateFee += p.LateFee
		totals.AmountPaid += p.AmountPaid
		totals.Balance += p.Balance()
		row++
	}

	row++
	_ = f.SetCellValue(sheetName, cellName(4, row), "Total")
	_ = f.SetCellValue(sheetName, cellName(5, row), pesos(totals.Amount))
	_ = f.SetCellValue(sheetName, cellName(6, row), pesos(totals.LateFee))
	_ = f.SetCellValue(sheetName, cellName(7, row), pesos(totals.AmountPaid))
	_ = f.SetCellValue(sheetName, cellName(8, row), pesos(totals.Balance))
	totalStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, NumFmt: 4})
	_ = f.SetCellStyle(sheetName, cellName(4, row), cellName(8, row), totalStyle)

	_ = f.SetColWidth(sheetName, "A", "B", 12)
	_ = f.SetColWidth(sheetName, "C", "D", 28)
	_ = f.SetColWidth(sheetName, "E", lastCol, 15)

	fileName := fmt.Sprintf("ledger_%d_%s_to_%s.xlsx", ownerID, from.Format(models.DateLayout), to.Format(models.DateLayout))
	filePath := filepath.Join(e.dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("rows", len(payments)).Msg("Ledger export created")
	return filePath, nil
}

func cellName(col, row int) string {
	cell, _ := excelize.CoordinatesToCellName(col, row)
	return cell
}

func pesos(centavos int64) float64 {
	return float64(centavos) / 100
}
