package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestPeriodString(t *testing.T) {
	p := Period{Year: 2026, Month: time.August}
	if got := p.String(); got != "2026-08" {
		t.Fatalf("got %q", got)
	}
	if !p.Contains(time.Date(2026, 8, 31, 23, 0, 0, 0, time.UTC)) {
		t.Fatal("last day must be inside the period")
	}
	if p.Contains(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("next month must be outside")
	}
}

func TestEntryBalance(t *testing.T) {
	e := JournalEntry{Lines: []JournalLine{
		{AccountCode: AccountCash, Debit: decimal.NewFromInt(100)},
		{AccountCode: AccountMaintenance, Credit: decimal.NewFromInt(100)},
	}}
	if !e.IsBalanced() {
		t.Fatal("entry should balance")
	}
	e.Lines[1].Credit = decimal.NewFromInt(99)
	if e.IsBalanced() {
		t.Fatal("entry should not balance")
	}
}

func TestPostableTotalExcludesArrears(t *testing.T) {
	b := BillComputation{Components: []BillComponent{
		{Label: ComponentMaintenance, Amount: decimal.NewFromInt(2000)},
		{Label: ComponentLateFee, Amount: decimal.NewFromInt(30)},
		{Label: ComponentArrears, Amount: decimal.NewFromInt(1500)},
	}}
	if got := b.PostableTotal(); !got.Equal(decimal.NewFromInt(2030)) {
		t.Fatalf("got %s", got)
	}
}

func TestNormalSide(t *testing.T) {
	cases := map[AccountType]Side{
		AccountTypeAsset:     SideDebit,
		AccountTypeExpense:   SideDebit,
		AccountTypeLiability: SideCredit,
		AccountTypeCapital:   SideCredit,
		AccountTypeIncome:    SideCredit,
	}
	for at, want := range cases {
		if got := at.NormalSide(); got != want {
			t.Fatalf("%s: got %s", at, got)
		}
	}
}

func TestComponentAccountMapping(t *testing.T) {
	for _, label := range []string{ComponentMaintenance, ComponentWater, ComponentFixed, ComponentSinking, ComponentRepair, ComponentCorpus, ComponentLateFee} {
		if _, ok := ComponentAccount(label); !ok {
			t.Fatalf("component %q has no posting account", label)
		}
	}
	if _, ok := ComponentAccount(ComponentArrears); ok {
		t.Fatal("arrears must not map to a posting account")
	}
}
