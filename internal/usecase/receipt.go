package usecase

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"counselling-payments/internal/domain/model"
)

const receiptSubject = "Payment Receipt - Counselling App"

var receiptHTML = template.Must(template.New("receipt").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px;">
  <h2>Payment Receipt</h2>
  <p>Hi {{.Name}},</p>
  <p>Thank you for your payment. Here are the details:</p>
  <div style="background-color: #f5f5f5; padding: 15px; margin: 15px 0; border-left: 4px solid #4CAF50;">
    <p><strong>Amount:</strong> {{.Amount}}</p>
    <p><strong>Transaction ID:</strong> {{.PaymentID}}</p>
    <p><strong>Date:</strong> {{.Date}}</p>
    {{- if .Plan}}
    <p><strong>Plan:</strong> {{.Plan}}</p>
    {{- end}}
  </div>
  <p>If you have any questions about your payment, please contact our support team.</p>
</div>`))

type receiptData struct {
	Name      string
	Amount    string
	PaymentID string
	Date      string
	Plan      string
}

func newReceiptData(u *model.User, o *model.Order) receiptData {
	name := u.Name
	if name == "" {
		name = "there"
	}
	when := o.UpdatedAt
	if when.IsZero() {
		when = time.Now()
	}
	return receiptData{
		Name:      name,
		Amount:    formatAmount(o.Currency, o.Amount),
		PaymentID: o.PaymentID,
		Date:      when.Format("02 Jan 2006"),
		Plan:      o.PlanName(),
	}
}

// renderReceipt returns the plain-text and HTML bodies of a payment receipt.
func renderReceipt(u *model.User, o *model.Order) (string, string, error) {
	d := newReceiptData(u, o)
	text := fmt.Sprintf("Hi %s, Thank you for your payment of %s. Your transaction ID is %s.", d.Name, d.Amount, d.PaymentID)
	var buf bytes.Buffer
	if err := receiptHTML.Execute(&buf, d); err != nil {
		return "", "", fmt.Errorf("render receipt: %w", err)
	}
	return text, buf.String(), nil
}

func successSMS(o *model.Order) string {
	msg := fmt.Sprintf("Your payment of %s was successful.", formatAmount(o.Currency, o.Amount))
	if plan := o.PlanName(); plan != "" {
		msg += " Your " + plan + " plan is now active."
	}
	return msg + " Thank you for choosing Saarthi."
}

func formatAmount(currency string, amount float64) string {
	if currency == "" || currency == "INR" {
		return fmt.Sprintf("₹%.2f", amount)
	}
	return fmt.Sprintf("%s %.2f", currency, amount)
}
