package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/schoolyard-app/schoolyard/internal/fees"
)

var receiptPrinter = message.NewPrinter(language.English)

var receiptTemplate = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"money": func(cents int64) string {
		return receiptPrinter.Sprintf("%.2f", float64(cents)/100)
	},
	"upper": strings.ToUpper,
	"date": func(t time.Time) string {
		return t.Format("02 Jan 2006 15:04")
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Receipt {{.ReceiptNo}}</title>
<style>
  body { font-family: Helvetica, Arial, sans-serif; margin: 48px; color: #1a1a1a; }
  h1 { font-size: 20px; margin-bottom: 0; }
  .muted { color: #666; font-size: 12px; }
  table { width: 100%; border-collapse: collapse; margin-top: 24px; }
  td, th { padding: 8px 4px; text-align: left; border-bottom: 1px solid #ddd; font-size: 13px; }
  .amount { font-size: 24px; font-weight: bold; margin-top: 24px; }
  .footer { margin-top: 48px; font-size: 11px; color: #999; }
</style>
</head>
<body>
<h1>Payment Receipt</h1>
<p class="muted">Receipt {{.ReceiptNo}} issued {{date .Data.IssuedAt}}</p>
<table>
  <tr><th>Student</th><td>{{.Data.StudentName}}</td></tr>
  <tr><th>Admission No</th><td>{{.Data.AdmissionNo}}</td></tr>
  <tr><th>Class</th><td>{{.Data.ClassName}}</td></tr>
  <tr><th>Kind</th><td>{{upper (printf "%s" .Data.Transaction.Kind)}}</td></tr>
  <tr><th>Method</th><td>{{.Data.Transaction.Method}}</td></tr>
  <tr><th>Reference</th><td>{{.Data.Transaction.Reference}}</td></tr>
  <tr><th>Description</th><td>{{.Data.Transaction.Description}}</td></tr>
  <tr><th>Recorded</th><td>{{date .Data.Transaction.CreatedAt}}</td></tr>
</table>
<p class="amount">{{money .Data.Transaction.AmountCents}}</p>
<p class="muted">Account balance after this entry: {{money .Data.Balance}}</p>
<p class="footer">This document was generated automatically and is valid without a signature.</p>
</body>
</html>`))

// ReceiptRenderer turns fee transactions into PDF receipts through the
// Gotenberg conversion service.
type ReceiptRenderer struct {
	client *Client
}

// NewReceiptRenderer wraps the Gotenberg client. A nil client is allowed and
// makes FeeReceipt fail with a descriptive error.
func NewReceiptRenderer(client *Client) *ReceiptRenderer {
	return &ReceiptRenderer{client: client}
}

// FeeReceipt renders a payment receipt PDF for the given transaction.
func (r *ReceiptRenderer) FeeReceipt(ctx context.Context, data fees.ReceiptData) ([]byte, error) {
	if r == nil || r.client == nil {
		return nil, fmt.Errorf("report: gotenberg client not configured")
	}
	html, err := renderReceiptHTML(data)
	if err != nil {
		return nil, fmt.Errorf("report: render receipt template: %w", err)
	}
	pdf, err := r.client.RenderHTML(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("report: convert receipt: %w", err)
	}
	return pdf, nil
}

func renderReceiptHTML(data fees.ReceiptData) (string, error) {
	var buf bytes.Buffer
	err := receiptTemplate.Execute(&buf, struct {
		ReceiptNo string
		Data      fees.ReceiptData
	}{
		ReceiptNo: fmt.Sprintf("FEE-%06d", data.Transaction.ID),
		Data:      data,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
