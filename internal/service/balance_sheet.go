package service

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/mmynk/splitledger/internal/report"
)

// BalanceSheetPath is where BalanceSheetHandler is mounted.
const BalanceSheetPath = "/balances/download"

// BalanceSheetHandler serves the CSV balance sheet as a file download.
func BalanceSheetHandler(reporter *report.Reporter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		// Render fully before writing headers so a failure can still return 500.
		var buf bytes.Buffer
		if err := reporter.WriteBalanceSheet(r.Context(), &buf); err != nil {
			slog.Error("Error generating balance sheet", "error", err)
			http.Error(w, "failed to generate balance sheet", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="balance_sheet.csv"`)
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			w.Write(buf.Bytes())
		}
	})
}
