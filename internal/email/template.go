package email

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/crestrock/storefront/internal/model"
)

var displayZone = time.FixedZone("EAT", 3*60*60)

const displayTimeLayout = "2 Jan 2006, 15:04"

// OrderConfirmation builds the template fields of the order confirmation
// email. linkBase is the public storefront origin.
func OrderConfirmation(order *model.Order, linkBase string, now time.Time) Params {
	var rows strings.Builder
	for _, item := range order.Items {
		fmt.Fprintf(&rows,
			`<tr><td style="padding: 10px; border-bottom: 1px solid #e5e7eb;"><strong>%s</strong><br><small>%s • Qty: %d</small></td>`+
				`<td style="text-align: right; padding: 10px; border-bottom: 1px solid #e5e7eb;">KSh %s</td></tr>`,
			html.EscapeString(item.Name), html.EscapeString(item.Brand), item.Quantity, FormatAmount(item.Subtotal()))
	}

	address := order.Customer.DeliveryAddress
	if address == "" {
		address = "Not specified"
	}

	paid := order.Total
	receipt := ""
	paidAt := order.UpdatedAt
	if pd := order.PaymentData; pd != nil {
		receipt = pd.ReceiptNumber
		if !pd.Amount.IsZero() {
			paid = pd.Amount
		}
		if !pd.CompletedAt.IsZero() {
			paidAt = pd.CompletedAt
		}
	}

	return Params{
		"customer_name":    order.Customer.Name,
		"order_id":         strings.TrimPrefix(order.Reference(), "ORD-"),
		"items_list":       rows.String(),
		"total_amount":     FormatAmount(order.Total),
		"delivery_address": address,
		"phone":            order.Customer.Phone,
		"order_date":       formatTime(order.CreatedAt),
		"receipt_number":   receipt,
		"amount_paid":      FormatAmount(paid),
		"payment_time":     formatTime(paidAt),
		"order_link":       strings.TrimRight(linkBase, "/") + "/order-confirmation/" + order.ID,
		"current_year":     fmt.Sprint(now.In(displayZone).Year()),
	}
}

// FormatAmount renders 50000 as "50,000" and 1234.5 as "1,234.50".
func FormatAmount(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().Round(2).StringFixed(2)
	digits, frac := s[:len(s)-3], s[len(s)-3:]
	if frac == ".00" {
		frac = ""
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString(frac)
	return b.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(displayZone).Format(displayTimeLayout)
}
