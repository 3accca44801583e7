package report

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/schoolyard-app/schoolyard/internal/fees"
)

func sampleReceipt() fees.ReceiptData {
	return fees.ReceiptData{
		Transaction: fees.Transaction{
			ID:          42,
			StudentID:   7,
			Kind:        fees.TxPayment,
			AmountCents: 150000,
			Description: "Term 2 tuition",
			Method:      "bank",
			Reference:   "ab12cd34",
			CreatedAt:   time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC),
		},
		StudentName: "Amina Yusuf",
		AdmissionNo: "ADM-0042",
		ClassName:   "Grade 5",
		Balance:     25000,
		IssuedAt:    time.Date(2026, 2, 10, 9, 31, 0, 0, time.UTC),
	}
}

func TestRenderReceiptHTML(t *testing.T) {
	html, err := renderReceiptHTML(sampleReceipt())
	require.NoError(t, err)

	require.Contains(t, html, "FEE-000042")
	require.Contains(t, html, "Amina Yusuf")
	require.Contains(t, html, "ADM-0042")
	require.Contains(t, html, "1,500.00")
	require.Contains(t, html, "250.00")
	require.Contains(t, html, "PAYMENT")
}

func TestFeeReceiptWithoutClient(t *testing.T) {
	var r *ReceiptRenderer
	_, err := r.FeeReceipt(context.Background(), sampleReceipt())
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "not configured"))

	_, err = NewReceiptRenderer(nil).FeeReceipt(context.Background(), sampleReceipt())
	require.Error(t, err)
}
