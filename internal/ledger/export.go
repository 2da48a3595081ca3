package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/wonny/xcelerator/internal/contracts"
)

var transactionHeader = []string{"OrderID", "Date", "Symbol", "Action", "Quantity", "Price", "Value", "CashAfter"}

// WriteTransactionsCSV writes the transaction log with currency rounded to paise
func WriteTransactionsCSV(w io.Writer, txs []contracts.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(transactionHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range txs {
		row := []string{
			t.OrderID,
			t.Date.Format("2006-01-02"),
			t.Symbol,
			string(t.Action),
			strconv.Itoa(t.Quantity),
			decimal.NewFromFloat(t.Price).StringFixed(2),
			decimal.NewFromFloat(t.Value()).StringFixed(2),
			decimal.NewFromFloat(t.CashAfter).StringFixed(2),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", t.OrderID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
