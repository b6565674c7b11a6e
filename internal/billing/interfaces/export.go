package interfaces

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	billing "residential-cloud/internal/billing/domain"
)

var amountPrinter = message.NewPrinter(language.Spanish)

// money formats an amount with grouped thousands and two decimals.
func money(d decimal.Decimal) string {
	return amountPrinter.Sprintf("$ %.2f", d.Round(2).InexactFloat64())
}

// latin converts s to the Windows-1252 encoding used by the core PDF fonts.
func latin(s string) string {
	out, err := charmap.Windows1252.NewEncoder().String(s)
	if err != nil {
		return s
	}
	return out
}

// BuildBillReceiptPDF renders the receipt of a bill with its payments.
func BuildBillReceiptPDF(bill *billing.GeneratedBill, payments []billing.Payment) ([]byte, error) {
	if bill == nil {
		return nil, billing.ErrBillNotFound
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, latin("Bill Receipt"))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, latin(fmt.Sprintf("Bill: %s", bill.ID)))
	pdf.Ln(5)
	pdf.Cell(0, 6, latin(fmt.Sprintf("Property: %s", bill.PropertyID)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s", bill.Period.String()))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Due date: %s", bill.DueDate.Format(time.DateOnly)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", bill.Status))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", bill.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	if bill.PaidAt != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Paid: %s", bill.PaidAt.Format(time.RFC3339)))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(90, 6, "Concept", "1", 0, "L", false, 0, "")
	pdf.CellFormat(45, 6, "Type", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Amount", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, item := range bill.LineItems {
		pdf.CellFormat(90, 6, latin(item.Name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 6, string(item.Type), "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, latin(money(item.Amount)), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(135, 6, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(45, 6, latin(money(bill.TotalAmount)), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)
	pdf.CellFormat(135, 6, "Paid", "1", 0, "R", false, 0, "")
	pdf.CellFormat(45, 6, latin(money(bill.PaidAmount)), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)
	pdf.CellFormat(135, 6, "Outstanding", "1", 0, "R", false, 0, "")
	pdf.CellFormat(45, 6, latin(money(bill.Outstanding())), "1", 0, "R", false, 0, "")
	pdf.Ln(10)

	if len(payments) > 0 {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(50, 6, "Paid at", "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, "Method", "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, "Reference", "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, "Amount", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, p := range payments {
			pdf.CellFormat(50, 6, p.PaidAt.Format("2006-01-02 15:04"), "1", 0, "C", false, 0, "")
			pdf.CellFormat(40, 6, string(p.Method), "1", 0, "C", false, 0, "")
			pdf.CellFormat(45, 6, latin(p.Reference), "1", 0, "L", false, 0, "")
			pdf.CellFormat(45, 6, latin(money(p.Amount)), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildFinancialReportPDF renders a financial summary.
func BuildFinancialReportPDF(summary *billing.FinancialSummary) ([]byte, error) {
	if summary == nil {
		return nil, errors.New("financial report pdf: nil summary")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Financial Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Complex: %d", summary.ComplexID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Range: %s to %s", summary.StartDate, summary.EndDate))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Mode: %s", summary.Mode))
	pdf.Ln(8)

	rows := [][2]string{
		{"Total billed", money(summary.TotalBilled)},
		{"Total collected", money(summary.TotalCollected)},
		{"Total expenses", money(summary.TotalExpenses)},
		{"Collection rate", summary.CollectionRate.StringFixed(2) + " %"},
		{"Net income", money(summary.NetIncome)},
		{"Pending amount", money(summary.PendingAmount)},
		{"Bills", fmt.Sprintf("%d", summary.BillCount)},
		{"Payments", fmt.Sprintf("%d", summary.PaymentCount)},
		{"Expenses", fmt.Sprintf("%d", summary.ExpenseCount)},
	}
	for _, row := range rows {
		pdf.CellFormat(70, 6, row[0], "1", 0, "L", false, 0, "")
		pdf.CellFormat(60, 6, latin(row[1]), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	if len(summary.ExpensesByCategory) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(70, 6, "Category", "1", 0, "C", false, 0, "")
		pdf.CellFormat(60, 6, "Amount", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, c := range summary.ExpensesByCategory {
			pdf.CellFormat(70, 6, latin(c.Category), "1", 0, "L", false, 0, "")
			pdf.CellFormat(60, 6, latin(money(c.Amount)), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildFinancialReportXLSX renders a financial summary as a workbook.
func BuildFinancialReportXLSX(summary *billing.FinancialSummary) ([]byte, error) {
	if summary == nil {
		return nil, errors.New("financial report xlsx: nil summary")
	}
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	categorySheet := "expenses"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(categorySheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Financial Report")
	cells := []struct {
		label string
		value any
	}{
		{"Complex", summary.ComplexID},
		{"Start date", summary.StartDate},
		{"End date", summary.EndDate},
		{"Mode", string(summary.Mode)},
		{"Total billed", summary.TotalBilled.InexactFloat64()},
		{"Total collected", summary.TotalCollected.InexactFloat64()},
		{"Total expenses", summary.TotalExpenses.InexactFloat64()},
		{"Collection rate (%)", summary.CollectionRate.InexactFloat64()},
		{"Net income", summary.NetIncome.InexactFloat64()},
		{"Pending amount", summary.PendingAmount.InexactFloat64()},
		{"Bills", summary.BillCount},
		{"Payments", summary.PaymentCount},
		{"Expenses", summary.ExpenseCount},
	}
	for i, c := range cells {
		row := i + 3
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), c.label)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), c.value)
	}

	_ = f.SetCellValue(categorySheet, "A1", "Category")
	_ = f.SetCellValue(categorySheet, "B1", "Amount")
	for i, c := range summary.ExpensesByCategory {
		row := i + 2
		_ = f.SetCellValue(categorySheet, fmt.Sprintf("A%d", row), c.Category)
		_ = f.SetCellValue(categorySheet, fmt.Sprintf("B%d", row), c.Amount.InexactFloat64())
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
