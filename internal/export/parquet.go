package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/expensedesk/expensedesk/internal/expense"
)

type ParquetEncodeResult struct {
	Data          []byte
	RecordCount   int64
	MinExpenseDay *time.Time
	MaxExpenseDay *time.Time
}

// parquetExpense is the export row layout read back by the reports engine.
type parquetExpense struct {
	ExpenseID         int64  `parquet:"expense_id"`
	UserID            int64  `parquet:"user_id"`
	UserName          string `parquet:"user_name"`
	CategoryID        int64  `parquet:"category_id"`
	CategoryName      string `parquet:"category_name"`
	StatusID          int64  `parquet:"status_id"`
	StatusName        string `parquet:"status_name"`
	AmountMinor       int64  `parquet:"amount_minor"`
	Currency          string `parquet:"currency"`
	ExpenseDate       string `parquet:"expense_date"`
	Description       string `parquet:"description"`
	ReceiptFile       string `parquet:"receipt_file"`
	SubmittedAtUnixMs *int64 `parquet:"submitted_at_unix_ms,optional"`
	ReviewedBy        *int64 `parquet:"reviewed_by,optional"`
	ReviewedAtUnixMs  *int64 `parquet:"reviewed_at_unix_ms,optional"`
	CreatedAtUnixMs   int64  `parquet:"created_at_unix_ms"`
}

func EncodeExpensesToParquet(items []expense.Expense) (ParquetEncodeResult, error) {
	if len(items) == 0 {
		return ParquetEncodeResult{}, fmt.Errorf("expenses are required")
	}

	rows := make([]parquetExpense, 0, len(items))
	var minDay *time.Time
	var maxDay *time.Time

	for _, item := range items {
		rows = append(rows, parquetExpense{
			ExpenseID:         item.ID,
			UserID:            item.UserID,
			UserName:          item.UserName,
			CategoryID:        item.CategoryID,
			CategoryName:      item.CategoryName,
			StatusID:          item.StatusID,
			StatusName:        item.StatusName,
			AmountMinor:       item.AmountMinor,
			Currency:          item.Currency,
			ExpenseDate:       item.ExpenseDate.Format("2006-01-02"),
			Description:       item.Description,
			ReceiptFile:       item.ReceiptFile,
			SubmittedAtUnixMs: unixMillis(item.SubmittedAt),
			ReviewedBy:        item.ReviewedBy,
			ReviewedAtUnixMs:  unixMillis(item.ReviewedAt),
			CreatedAtUnixMs:   item.CreatedAt.UnixMilli(),
		})

		day := item.ExpenseDate.UTC()
		if minDay == nil || day.Before(*minDay) {
			copy := day
			minDay = &copy
		}
		if maxDay == nil || day.After(*maxDay) {
			copy := day
			maxDay = &copy
		}
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetExpense](buf)
	if _, err := writer.Write(rows); err != nil {
		return ParquetEncodeResult{}, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return ParquetEncodeResult{}, fmt.Errorf("close parquet writer: %w", err)
	}

	return ParquetEncodeResult{
		Data:          buf.Bytes(),
		RecordCount:   int64(len(rows)),
		MinExpenseDay: minDay,
		MaxExpenseDay: maxDay,
	}, nil
}

func unixMillis(value *time.Time) *int64 {
	if value == nil {
		return nil
	}
	ms := value.UnixMilli()
	return &ms
}
