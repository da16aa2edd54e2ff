package xlsx

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"aspire/internal/core"
	"aspire/internal/sheets"
)

func newWorkbookFile(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for _, name := range []string{"BackendData", "My Transactions", "Payees"} {
		if _, err := f.NewSheet(name); err != nil {
			t.Fatalf("NewSheet %s: %v", name, err)
		}
	}
	set := func(sheet, cell, value string) {
		t.Helper()
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			t.Fatalf("SetCellValue %s!%s: %v", sheet, cell, err)
		}
	}
	set("BackendData", "G2", "Rent")
	set("BackendData", "G3", "Food")
	set("BackendData", "Z2", "3.3.0")
	set("My Transactions", "B9", "03/01/2024")
	set("My Transactions", "C9", "Checking")
	set("Payees", "A1", "Landlord")
	if err := f.SetDefinedName(&excelize.DefinedName{
		Name:     "v_Version",
		RefersTo: "BackendData!$Z$2",
	}); err != nil {
		t.Fatalf("SetDefinedName: %v", err)
	}

	path := filepath.Join(t.TempDir(), "budget.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	return path
}

func TestWorkbookRead(t *testing.T) {
	w, err := Open(newWorkbookFile(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer w.Close()

	blocks, err := w.Read(context.Background(), "ignored",
		[]string{"BackendData!2:2", "v_Version", "BackendData!G2:G", "Payees"})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	row := blocks[0].Values[0]
	if row[len(row)-1] != "3.3.0" {
		t.Errorf("version row = %q", row)
	}
	if !reflect.DeepEqual(blocks[1].Values, core.RawTable{{"3.3.0"}}) {
		t.Errorf("named version = %q", blocks[1].Values)
	}
	if !reflect.DeepEqual(blocks[2].Values, core.RawTable{{"Rent"}, {"Food"}}) {
		t.Errorf("categories = %q", blocks[2].Values)
	}
	if !reflect.DeepEqual(blocks[3].Values, core.RawTable{{"Landlord"}}) {
		t.Errorf("payees = %q", blocks[3].Values)
	}

	if _, err := w.Read(context.Background(), "", []string{"Nope!A1"}); err == nil {
		t.Error("expected error for missing sheet")
	}
}

func TestWorkbookWritePersists(t *testing.T) {
	path := newWorkbookFile(t)
	w, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	row := core.RawTable{{"03/02/2024", "Cash", "Market", "Food", "", "$4", "", "✅"}}
	if err := w.Write(ctx, "", "My Transactions!B9:I", sheets.ValueBlock{Values: row}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Write(ctx, "", "My Transactions!B9:I9", sheets.ValueBlock{Values: core.RawTable{{"03/03/2024"}}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := w.Write(ctx, "", "Category Transfers!B:F", sheets.ValueBlock{Values: core.RawTable{{"d", "$1", "A", "B"}}}); err != nil {
		t.Fatalf("append to new sheet: %v", err)
	}
	w.Close()

	w, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer w.Close()
	blocks, err := w.Read(ctx, "", []string{"My Transactions!B9:I", "Category Transfers!B:F"})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := core.RawTable{{"03/03/2024", "Checking"}, row[0]}
	if !reflect.DeepEqual(blocks[0].Values, want) {
		t.Errorf("transactions = %q, want %q", blocks[0].Values, want)
	}
	if !reflect.DeepEqual(blocks[1].Values, core.RawTable{{"d", "$1", "A", "B"}}) {
		t.Errorf("transfers = %q", blocks[1].Values)
	}
}
