package memory

import (
	"aspire/internal/core"
	"aspire/internal/sheets"
)

// DemoSpreadsheetID names the spreadsheet NewFromFile seeds without a file.
const DemoSpreadsheetID = "demo"

// Demo returns a small spreadsheet in the 3.3.0 layout.
func Demo() Spreadsheet {
	put := func(g *sheets.Grid, cell string, rows core.RawTable) {
		r, err := sheets.ParseRange("X!" + cell)
		if err != nil {
			panic(err)
		}
		g.Put(r.StartCol, r.StartRow, rows)
	}

	var backend, dashboard, trx, transfers, payees sheets.Grid

	// The version tag is the rightmost cell of row 2.
	put(&backend, "Z2", core.RawTable{{"3.3.0"}})
	put(&backend, "G2", core.RawTable{{"Rent"}, {"Groceries"}, {"Fun"}, {"Savings"}})
	put(&backend, "M2", core.RawTable{{"Checking"}, {"Credit Card"}, {"Cash"}})

	put(&dashboard, "B8", core.RawTable{{"Checking", "$2,450.00"}, {"Credit Card", "-$320.10"}, {"Cash", "$80.00"}})
	put(&dashboard, "F6", core.RawTable{
		{"✦", "", "Fixed", "", "", "", "", "", "", ""},
		{"✧", "", "Rent", "$1,200.00", "", "", "$0.00", "", "", "$1,200.00"},
		{"✦", "", "Daily", "", "", "", "", "", "", ""},
		{"✧", "", "Groceries", "$180.25", "", "", "$119.75", "", "", "$300.00"},
		{"✧", "", "Fun", "$40.00", "", "", "$60.00", "", "", "$100.00"},
	})

	put(&trx, "B9", core.RawTable{
		{"03/01/2024", "Checking", "Landlord", "Rent", "March", "$1,200.00", "", "✅"},
		{"03/02/2024", "Credit Card", "Market", "Groceries", "", "$54.10", "", "\U0001F17F\uFE0F"},
		{"03/03/2024", "Checking", "Employer", "Available to budget", "salary", "", "$3,000.00", "✅"},
	})

	put(&transfers, "B1", core.RawTable{{"Date", "Amount", "From", "To", "Memo"}})
	put(&payees, "A1", core.RawTable{{"Landlord"}, {"Market"}, {"Employer"}})

	return Spreadsheet{Sheets: map[string][][]string{
		"BackendData":        backend,
		"Dashboard":          dashboard,
		"My Transactions":    trx,
		"Category Transfers": transfers,
		"Payees":             payees,
	}}
}
