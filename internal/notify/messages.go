package notify

import (
	"fmt"
	"strconv"
	"strings"

	"hanapbahay/internal/events"
	"hanapbahay/internal/models"
)

// Peso formats centavos as "₱8,000.00".
func Peso(centavos int64) string {
	sign := ""
	if centavos < 0 {
		sign = "-"
		centavos = -centavos
	}
	whole := strconv.FormatInt(centavos/100, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%s₱%s.%02d", sign, b.String(), centavos%100)
}

func bookingText(eventType string, p events.BookingEventPayload) string {
	date := p.MoveInDate.Format("Jan 2, 2006")
	switch eventType {
	case events.EventBookingRequested:
		return fmt.Sprintf("New booking request from %s for %s, move-in %s.", p.TenantName, p.ListingTitle, date)
	case events.EventBookingApproved:
		return fmt.Sprintf("Your booking for %s was approved. Move-in on %s.", p.ListingTitle, date)
	case events.EventBookingRejected:
		return fmt.Sprintf("Your booking for %s was declined.", p.ListingTitle)
	case events.EventBookingCancelled:
		return fmt.Sprintf("%s cancelled the booking request for %s.", p.TenantName, p.ListingTitle)
	case events.EventBookingCompleted:
		return fmt.Sprintf("The lease for %s is now completed.", p.ListingTitle)
	}
	return ""
}

func paymentText(eventType string, p events.PaymentEventPayload) string {
	due := Peso(p.Amount + p.LateFee - p.AmountPaid)
	switch eventType {
	case events.EventPaymentsCreated:
		return fmt.Sprintf("Your rent schedule is ready. First payment for %s: %s.", p.Period, Peso(p.Amount))
	case events.EventPaymentSubmitted:
		return fmt.Sprintf("Payment for %s submitted via %s. Please confirm once received.", p.Period, p.Method)
	case events.EventPaymentConfirmed:
		if p.Status == models.PaymentPartial {
			return fmt.Sprintf("Partial payment for %s confirmed. Remaining balance: %s.", p.Period, due)
		}
		return fmt.Sprintf("Payment for %s confirmed. Salamat!", p.Period)
	case events.EventPaymentRejected:
		return fmt.Sprintf("Payment for %s was rejected: %s", p.Period, p.Reason)
	case events.EventPaymentGateway:
		if p.Reason != "" {
			return fmt.Sprintf("Online payment for %s received. Amount paid so far: %s. The pending manual submission was set aside (%s).",
				p.Period, Peso(p.AmountPaid), p.Reason)
		}
		return fmt.Sprintf("Online payment for %s received. Amount paid so far: %s.", p.Period, Peso(p.AmountPaid))
	case events.EventPaymentUnapplied:
		return fmt.Sprintf("An online payment of %s for %s arrived but the payment is already %s. It was not applied; please arrange a refund or credit.",
			Peso(p.GatewayAmount), p.Period, p.Status)
	case events.EventPaymentFailed:
		return fmt.Sprintf("Online payment for %s did not go through. Please try again.", p.Period)
	case events.EventPaymentOverdue:
		return fmt.Sprintf("Rent for %s is overdue. Amount due: %s.", p.Period, due)
	case events.EventPaymentReminder:
		return fmt.Sprintf("Reminder: rent for %s (%s) is due soon.", p.Period, due)
	case events.EventPaymentRepaired:
		return fmt.Sprintf("The amount for %s was corrected to %s.", p.Period, Peso(p.Amount+p.LateFee))
	}
	return ""
}
