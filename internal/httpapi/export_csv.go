package httpapi

import (
	"encoding/csv"
	"net/http"
	"strconv"

	"github.com/societyops/ledger/internal/service/reports"
)

// CSV export mirrors the JSON report payloads row for row so spreadsheets can
// consume them without an intermediate tool.

func writeTrialBalanceCSV(w http.ResponseWriter, rep reports.TrialBalanceReport) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="trial-balance-`+rep.AsOn.Format(dateLayout)+`.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"account_code", "account_name", "type", "debit", "credit"})
	for _, row := range rep.Rows {
		_ = cw.Write([]string{row.AccountCode, row.AccountName, string(row.Type), row.Debit.StringFixed(2), row.Credit.StringFixed(2)})
	}
	_ = cw.Write([]string{"", "TOTAL", "", rep.TotalDebit.StringFixed(2), rep.TotalCredit.StringFixed(2)})
	cw.Flush()
}

func writeGeneralLedgerCSV(w http.ResponseWriter, st reports.LedgerStatement) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="ledger-`+st.AccountCode+`-`+st.To.Format(dateLayout)+`.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"date", "entry_number", "voucher", "description", "debit", "credit", "running_balance"})
	_ = cw.Write([]string{st.From.Format(dateLayout), "", "", "OPENING BALANCE", "", "", st.OpeningBalance.StringFixed(2)})
	for _, ln := range st.Lines {
		_ = cw.Write([]string{
			ln.Date.Format(dateLayout),
			strconv.FormatInt(ln.EntryNumber, 10),
			string(ln.Voucher),
			ln.Description,
			ln.Debit.StringFixed(2),
			ln.Credit.StringFixed(2),
			ln.Running.StringFixed(2),
		})
	}
	_ = cw.Write([]string{st.To.Format(dateLayout), "", "", "CLOSING BALANCE", "", "", st.ClosingBalance.StringFixed(2)})
	cw.Flush()
}
