package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/societyops/ledger/internal/service/reports"
)

type trialBalanceRowResponse struct {
	AccountCode string `json:"account_code"`
	AccountName string `json:"account_name"`
	Type        string `json:"type"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
}

type trialBalanceResponse struct {
	AsOn        string                    `json:"as_on"`
	Rows        []trialBalanceRowResponse `json:"rows"`
	TotalDebit  string                    `json:"total_debit"`
	TotalCredit string                    `json:"total_credit"`
	IsBalanced  bool                      `json:"is_balanced"`
}

type reportRowResponse struct {
	AccountCode string `json:"account_code,omitempty"`
	AccountName string `json:"account_name"`
	Amount      string `json:"amount"`
}

type ledgerLineResponse struct {
	Date        string    `json:"date"`
	EntryNumber int64     `json:"entry_number"`
	EntryID     uuid.UUID `json:"entry_id"`
	Description string    `json:"description"`
	Voucher     string    `json:"voucher"`
	Debit       string    `json:"debit"`
	Credit      string    `json:"credit"`
	Running     string    `json:"running_balance"`
}

type ledgerStatementResponse struct {
	AccountCode    string               `json:"account_code"`
	AccountName    string               `json:"account_name"`
	Type           string               `json:"type"`
	From           string               `json:"from"`
	To             string               `json:"to"`
	OpeningBalance string               `json:"opening_balance"`
	Lines          []ledgerLineResponse `json:"lines"`
	NetMovement    string               `json:"net_movement"`
	ClosingBalance string               `json:"closing_balance"`
}

type incomeExpenditureResponse struct {
	From         string              `json:"from"`
	To           string              `json:"to"`
	Income       []reportRowResponse `json:"income"`
	Expenses     []reportRowResponse `json:"expenses"`
	TotalIncome  string              `json:"total_income"`
	TotalExpense string              `json:"total_expense"`
	NetSurplus   string              `json:"net_surplus"`
}

type balanceSheetResponse struct {
	AsOn             string              `json:"as_on"`
	Assets           []reportRowResponse `json:"assets"`
	Liabilities      []reportRowResponse `json:"liabilities"`
	Capital          []reportRowResponse `json:"capital"`
	TotalAssets      string              `json:"total_assets"`
	TotalLiabilities string              `json:"total_liabilities"`
	TotalCapital     string              `json:"total_capital"`
	IsBalanced       bool                `json:"is_balanced"`
	Difference       string              `json:"difference"`
}

type memberDuesRowResponse struct {
	FlatID      uuid.UUID `json:"flat_id"`
	FlatNumber  string    `json:"flat_number"`
	OwnerName   string    `json:"owner_name"`
	Outstanding string    `json:"outstanding"`
}

type memberDuesResponse struct {
	To               string                  `json:"to"`
	Rows             []memberDuesRowResponse `json:"rows"`
	TotalOutstanding string                  `json:"total_outstanding"`
}

const dateLayout = "2006-01-02"

// trialBalance handles GET /v1/reports/trial-balance?as_on=YYYY-MM-DD.
// ?format=csv streams the same rows as CSV.
func (s *Server) trialBalance(w http.ResponseWriter, r *http.Request) {
	asOn, err := queryDate(r, "as_on", time.Now().UTC())
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	rep, err := s.reports.TrialBalance(r.Context(), asOn)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if r.URL.Query().Get("format") == "csv" {
		writeTrialBalanceCSV(w, rep)
		return
	}
	out := trialBalanceResponse{
		AsOn:        rep.AsOn.Format(dateLayout),
		Rows:        make([]trialBalanceRowResponse, 0, len(rep.Rows)),
		TotalDebit:  rep.TotalDebit.StringFixed(2),
		TotalCredit: rep.TotalCredit.StringFixed(2),
		IsBalanced:  rep.IsBalanced,
	}
	for _, row := range rep.Rows {
		out.Rows = append(out.Rows, trialBalanceRowResponse{
			AccountCode: row.AccountCode,
			AccountName: row.AccountName,
			Type:        string(row.Type),
			Debit:       row.Debit.StringFixed(2),
			Credit:      row.Credit.StringFixed(2),
		})
	}
	toJSON(w, http.StatusOK, out)
}

// generalLedger handles GET /v1/reports/general-ledger?account=CODE&from=&to=.
func (s *Server) generalLedger(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("account")
	if code == "" {
		badRequest(w, "account query parameter is required")
		return
	}
	now := time.Now().UTC()
	from, err := queryDate(r, "from", time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	to, err := queryDate(r, "to", now)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	st, err := s.reports.GeneralLedger(r.Context(), code, from, to)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if r.URL.Query().Get("format") == "csv" {
		writeGeneralLedgerCSV(w, st)
		return
	}
	toJSON(w, http.StatusOK, toLedgerStatementResponse(st))
}

// balanceSheet handles GET /v1/reports/balance-sheet?as_on=YYYY-MM-DD.
func (s *Server) balanceSheet(w http.ResponseWriter, r *http.Request) {
	asOn, err := queryDate(r, "as_on", time.Now().UTC())
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	rep, err := s.reports.BalanceSheet(r.Context(), asOn)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := balanceSheetResponse{
		AsOn:             rep.AsOn.Format(dateLayout),
		Assets:           toReportRows(rep.Assets),
		Liabilities:      toReportRows(rep.Liabilities),
		Capital:          toReportRows(rep.Capital),
		TotalAssets:      rep.TotalAssets.StringFixed(2),
		TotalLiabilities: rep.TotalLiabilities.StringFixed(2),
		TotalCapital:     rep.TotalCapital.StringFixed(2),
		IsBalanced:       rep.IsBalanced,
		Difference:       rep.Difference.StringFixed(2),
	}
	toJSON(w, http.StatusOK, out)
}

// incomeExpenditure handles GET /v1/reports/income-and-expenditure?from=&to=.
func (s *Server) incomeExpenditure(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from, err := queryDate(r, "from", time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	to, err := queryDate(r, "to", now)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	rep, err := s.reports.IncomeExpenditure(r.Context(), from, to)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := incomeExpenditureResponse{
		From:         rep.From.Format(dateLayout),
		To:           rep.To.Format(dateLayout),
		Income:       toReportRows(rep.Income),
		Expenses:     toReportRows(rep.Expenses),
		TotalIncome:  rep.TotalIncome.StringFixed(2),
		TotalExpense: rep.TotalExpense.StringFixed(2),
		NetSurplus:   rep.NetSurplus.StringFixed(2),
	}
	toJSON(w, http.StatusOK, out)
}

// memberDues handles GET /v1/reports/member-dues?to=YYYY-MM-DD.
func (s *Server) memberDues(w http.ResponseWriter, r *http.Request) {
	to, err := queryDate(r, "to", time.Now().UTC())
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	rep, err := s.reports.MemberDues(r.Context(), to)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := memberDuesResponse{
		To:               rep.To.Format(dateLayout),
		Rows:             make([]memberDuesRowResponse, 0, len(rep.Rows)),
		TotalOutstanding: rep.TotalOutstanding.StringFixed(2),
	}
	for _, row := range rep.Rows {
		out.Rows = append(out.Rows, memberDuesRowResponse{
			FlatID:      row.FlatID,
			FlatNumber:  row.FlatNumber,
			OwnerName:   row.OwnerName,
			Outstanding: row.Outstanding.StringFixed(2),
		})
	}
	toJSON(w, http.StatusOK, out)
}

func toReportRows(rows []reports.ReportRow) []reportRowResponse {
	out := make([]reportRowResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, reportRowResponse{AccountCode: row.AccountCode, AccountName: row.AccountName, Amount: row.Amount.StringFixed(2)})
	}
	return out
}

func toLedgerStatementResponse(st reports.LedgerStatement) ledgerStatementResponse {
	out := ledgerStatementResponse{
		AccountCode:    st.AccountCode,
		AccountName:    st.AccountName,
		Type:           string(st.Type),
		From:           st.From.Format(dateLayout),
		To:             st.To.Format(dateLayout),
		OpeningBalance: st.OpeningBalance.StringFixed(2),
		Lines:          make([]ledgerLineResponse, 0, len(st.Lines)),
		NetMovement:    st.NetMovement.StringFixed(2),
		ClosingBalance: st.ClosingBalance.StringFixed(2),
	}
	for _, ln := range st.Lines {
		out.Lines = append(out.Lines, ledgerLineResponse{
			Date:        ln.Date.Format(dateLayout),
			EntryNumber: ln.EntryNumber,
			EntryID:     ln.EntryID,
			Description: ln.Description,
			Voucher:     string(ln.Voucher),
			Debit:       ln.Debit.StringFixed(2),
			Credit:      ln.Credit.StringFixed(2),
			Running:     ln.Running.StringFixed(2),
		})
	}
	return out
}
