package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	fees "schoolfees-cloud/internal/fees/domain"
)

// BuildReceiptPDF renders a payment receipt.
func BuildReceiptPDF(fee *fees.StudentFee, payment *fees.Payment) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Payment Receipt")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Receipt: %s", payment.ReceiptNumber))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Student: %s", fee.StudentID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Academic Year: %s", fee.AcademicYear))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Payment Date: %s", payment.PaymentDate.Format("2006-01-02")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Method: %s", payment.PaymentMethod))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", payment.Status))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Amount: %s", payment.Amount.StringFixed(2)))
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Total Paid: %s", fee.TotalPaid.StringFixed(2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Balance Due: %s", fee.BalanceDue.StringFixed(2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Issued: %s", time.Now().UTC().Format(time.RFC3339)))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildFeeStatementPDF renders a fee statement with its payment history.
func BuildFeeStatementPDF(fee *fees.StudentFee, payments []fees.Payment) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Student Fee Statement")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Student: %s", fee.StudentID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Grade: %d", fee.GradeLevel))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Academic Year: %s", fee.AcademicYear))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Frequency: %s", fee.Frequency))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", fee.Status))
	pdf.Ln(8)

	pdf.Cell(0, 6, fmt.Sprintf("Total Before Discounts: %s", fee.TotalBeforeDiscounts.StringFixed(2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Frequency Discount: %s", fee.PaymentDiscountAmount.StringFixed(2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Sibling Discount: %s", fee.SiblingDiscountAmount.StringFixed(2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Bursary: %s", fee.BursaryAmount.StringFixed(2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total Amount Due: %s", fee.TotalAmountDue.StringFixed(2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total Paid: %s", fee.TotalPaid.StringFixed(2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Balance Due: %s", fee.BalanceDue.StringFixed(2)))
	pdf.Ln(8)

	// Payment history table
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(35, 6, "Date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Receipt", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Method", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Amount", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, payment := range payments {
		pdf.CellFormat(35, 6, payment.PaymentDate.Format("2006-01-02"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, payment.ReceiptNumber, "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, payment.PaymentMethod, "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, payment.Status, "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, payment.Amount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildLedgerXLSX renders a fee snapshot and its ledger as a workbook.
func BuildLedgerXLSX(fee *fees.StudentFee, payments []fees.Payment) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	ledgerSheet := "payments"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(ledgerSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Student Fee Statement")
	_ = f.SetCellValue(summarySheet, "A3", "Student")
	_ = f.SetCellValue(summarySheet, "B3", fee.StudentID)
	_ = f.SetCellValue(summarySheet, "A4", "Grade")
	_ = f.SetCellValue(summarySheet, "B4", fee.GradeLevel)
	_ = f.SetCellValue(summarySheet, "A5", "Academic Year")
	_ = f.SetCellValue(summarySheet, "B5", fee.AcademicYear)
	_ = f.SetCellValue(summarySheet, "A6", "Frequency")
	_ = f.SetCellValue(summarySheet, "B6", string(fee.Frequency))
	_ = f.SetCellValue(summarySheet, "A7", "Status")
	_ = f.SetCellValue(summarySheet, "B7", fee.Status)
	_ = f.SetCellValue(summarySheet, "A8", "Total Before Discounts")
	_ = f.SetCellValue(summarySheet, "B8", fee.TotalBeforeDiscounts.StringFixed(2))
	_ = f.SetCellValue(summarySheet, "A9", "Total Discounts")
	_ = f.SetCellValue(summarySheet, "B9", fee.TotalDiscounts.StringFixed(2))
	_ = f.SetCellValue(summarySheet, "A10", "Bursary")
	_ = f.SetCellValue(summarySheet, "B10", fee.BursaryAmount.StringFixed(2))
	_ = f.SetCellValue(summarySheet, "A11", "Total Amount Due")
	_ = f.SetCellValue(summarySheet, "B11", fee.TotalAmountDue.StringFixed(2))
	_ = f.SetCellValue(summarySheet, "A12", "Total Paid")
	_ = f.SetCellValue(summarySheet, "B12", fee.TotalPaid.StringFixed(2))
	_ = f.SetCellValue(summarySheet, "A13", "Balance Due")
	_ = f.SetCellValue(summarySheet, "B13", fee.BalanceDue.StringFixed(2))

	_ = f.SetCellValue(ledgerSheet, "A1", "Date")
	_ = f.SetCellValue(ledgerSheet, "B1", "Receipt")
	_ = f.SetCellValue(ledgerSheet, "C1", "Method")
	_ = f.SetCellValue(ledgerSheet, "D1", "Status")
	_ = f.SetCellValue(ledgerSheet, "E1", "Amount")
	for i, payment := range payments {
		row := i + 2
		_ = f.SetCellValue(ledgerSheet, fmt.Sprintf("A%d", row), payment.PaymentDate.Format("2006-01-02"))
		_ = f.SetCellValue(ledgerSheet, fmt.Sprintf("B%d", row), payment.ReceiptNumber)
		_ = f.SetCellValue(ledgerSheet, fmt.Sprintf("C%d", row), payment.PaymentMethod)
		_ = f.SetCellValue(ledgerSheet, fmt.Sprintf("D%d", row), payment.Status)
		_ = f.SetCellValue(ledgerSheet, fmt.Sprintf("E%d", row), payment.Amount.StringFixed(2))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
