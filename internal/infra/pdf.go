package infra

// pdf.go renders invoice receipts with go-pdf/fpdf: A6 portrait with store
// header, invoice number and date, customer block, item table, totals and
// payment status.

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"trinity/internal/model"

	"github.com/go-pdf/fpdf"
)

// unsafeFileChars covers anything a caller-supplied invoice number could use
// to escape the storage directory.
var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// ReceiptFileName is the on-disk name for an invoice's receipt.
func ReceiptFileName(inv *model.Invoice) string {
	return fmt.Sprintf("receipt_%s.pdf", unsafeFileChars.ReplaceAllString(inv.InvoiceNumber, "_"))
}

// WriteReceiptPDF renders the receipt for inv into w. inv.Items must be loaded;
// inv.Customer is optional.
func WriteReceiptPDF(w io.Writer, inv *model.Invoice, storeName string) error {
	pdf := buildReceipt(inv, storeName)
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("pdf: render receipt: %w", err)
	}
	return nil
}

// GenerateReceiptPDF writes the receipt under storagePath (created if needed)
// and returns the file path.
func GenerateReceiptPDF(inv *model.Invoice, storeName, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0o755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}
	filePath := filepath.Join(storagePath, ReceiptFileName(inv))

	pdf := buildReceipt(inv, storeName)
	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}

func buildReceipt(inv *model.Invoice, storeName string) *fpdf.Fpdf {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 105, Ht: 148},
	})
	pdf.SetMargins(6, 6, 6)
	pdf.SetAutoPageBreak(true, 8)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 12

	// Header
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(contentW, 7, storeName, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 5, "Invoice receipt", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(contentW, 5, "Invoice "+inv.InvoiceNumber, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, inv.CreatedAt.UTC().Format("2006-01-02 15:04 UTC"), "", 1, "L", false, 0, "")
	if inv.Customer != nil {
		pdf.CellFormat(contentW, 4, "Customer: "+inv.Customer.FullName(), "", 1, "L", false, 0, "")
		if inv.Customer.Email != "" {
			pdf.CellFormat(contentW, 4, inv.Customer.Email, "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(2)
	pdf.Line(6, pdf.GetY(), pageW-6, pdf.GetY())
	pdf.Ln(2)

	col1 := contentW * 0.46
	col2 := contentW * 0.12
	col3 := contentW * 0.20
	col4 := contentW * 0.22

	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(col1, 5, "Product", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 5, "Qty", "B", 0, "C", false, 0, "")
	pdf.CellFormat(col3, 5, "Unit", "B", 0, "R", false, 0, "")
	pdf.CellFormat(col4, 5, "Total", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	for _, item := range inv.Items {
		name := item.ProductName
		if item.ProductBrand != "" {
			name += " (" + item.ProductBrand + ")"
		}
		if len(name) > 30 {
			name = name[:29] + "."
		}
		pdf.CellFormat(col1, 5, name, "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 5, fmt.Sprintf("%d", item.Quantity), "", 0, "C", false, 0, "")
		pdf.CellFormat(col3, 5, item.UnitPrice.StringFixed(2), "", 0, "R", false, 0, "")
		pdf.CellFormat(col4, 5, item.TotalPrice.StringFixed(2), "", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	pdf.Line(6, pdf.GetY(), pageW-6, pdf.GetY())
	pdf.Ln(2)

	labelW := col1 + col2 + col3
	pdf.CellFormat(labelW, 5, "Subtotal", "", 0, "L", false, 0, "")
	pdf.CellFormat(col4, 5, inv.Subtotal.StringFixed(2), "", 1, "R", false, 0, "")
	pdf.CellFormat(labelW, 5, "Tax ("+inv.TaxRate.StringFixed(2)+"%)", "", 0, "L", false, 0, "")
	pdf.CellFormat(col4, 5, inv.TaxAmount.StringFixed(2), "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(labelW, 6, "TOTAL", "", 0, "L", false, 0, "")
	pdf.CellFormat(col4, 6, inv.TotalAmount.StringFixed(2), "", 1, "R", false, 0, "")

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, "Payment: "+inv.PaymentMethod+"  Status: "+inv.Status, "", 1, "L", false, 0, "")
	if inv.PaidAt != nil {
		pdf.CellFormat(contentW, 4, "Paid at "+inv.PaidAt.UTC().Format("2006-01-02 15:04 UTC"), "", 1, "L", false, 0, "")
	}

	pdf.Ln(3)
	pdf.SetFont("Helvetica", "I", 7)
	pdf.CellFormat(contentW, 4, "Thank you for shopping with us", "", 1, "C", false, 0, "")
	return pdf
}
