// Command checkout places an order against a running storefront API, starts
// the M-Pesa payment and follows the order until it settles.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/crestrock/storefront/internal/config"
	"github.com/crestrock/storefront/internal/dto"
	"github.com/crestrock/storefront/internal/email"
	"github.com/crestrock/storefront/internal/model"
	"github.com/crestrock/storefront/internal/orderapi"
	"github.com/crestrock/storefront/internal/payment"
	"github.com/crestrock/storefront/internal/reconcile"
)

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout, os.Stderr))
}

// realMain returns the process exit code so deferred cleanup runs first.
func realMain(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		items        = fs.String("items", "", "cart as product-id:qty pairs, comma separated")
		name         = fs.String("name", "", "customer name")
		phoneNumber  = fs.String("phone", "", "customer phone number")
		emailAddr    = fs.String("email", "", "customer email (optional)")
		address      = fs.String("address", "", "delivery address")
		method       = fs.String("method", string(model.PaymentMethodMpesa), "payment method: mpesa, whatsapp or cash")
		paymentPhone = fs.String("payment-phone", "", "phone to charge, defaults to -phone")
		verbose      = fs.Bool("v", false, "debug logging")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	lines, err := parseItems(*items)
	if err != nil {
		fmt.Fprintln(stderr, err)
		fs.Usage()
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := orderapi.NewClient(cfg.APIURL, cfg.Timeout)
	ctrl := reconcile.New(reconcile.Deps{
		Store:   api,
		Gateway: payment.NewClient(cfg.Payment.APIURL, cfg.Payment.Timeout),
		Mailer:  newMailer(cfg.Email, log),
		Deduper: reconcile.NewMemoryDeduper(),
		Log:     log,
	}, reconcile.Options{
		PollInterval:    cfg.Reconcile.PollInterval,
		PollMaxDuration: cfg.Reconcile.PollMaxDuration,
		OrderLinkBase:   cfg.Email.StorefrontURL,
	})
	defer ctrl.Close()

	co := &checkout{
		ctrl:           ctrl,
		api:            api,
		whatsAppNumber: cfg.WhatsApp.Number,
		out:            stdout,
		errOut:         stderr,
	}
	err = co.run(ctx, lines, model.CustomerInfo{
		Name:            *name,
		Phone:           *phoneNumber,
		Email:           *emailAddr,
		DeliveryAddress: *address,
	}, model.PaymentMethod(*method), *paymentPhone)
	if err != nil {
		log.Debug("checkout failed", "error", err)
		if errors.Is(err, errPaymentFailed) {
			fmt.Fprintln(stderr, err)
		} else {
			fmt.Fprintln(stderr, reconcile.UserMessage(err))
		}
		return 1
	}
	return 0
}

type checkout struct {
	ctrl           *reconcile.Controller
	api            *orderapi.Client
	whatsAppNumber string
	out, errOut    io.Writer
}

func (co *checkout) run(ctx context.Context, lines []dto.CartLine, customer model.CustomerInfo, method model.PaymentMethod, payer string) error {
	items, err := co.api.Snapshot(ctx, lines)
	if err != nil {
		return err
	}

	ref, err := co.ctrl.CreateOrder(ctx, items, customer, method)
	if err != nil {
		return err
	}
	fmt.Fprintf(co.out, "Order #%s placed, total KSh %s\n", model.OrderReference(ref.ID), email.FormatAmount(ref.Total))

	if method != model.PaymentMethodMpesa {
		order, err := co.api.GetOrder(ctx, ref.ID)
		if err != nil {
			order = &model.Order{ID: ref.ID, Total: ref.Total, Items: items, Customer: customer, PaymentMethod: method}
		}
		fmt.Fprintln(co.out, "Send your order to the shop on WhatsApp:")
		fmt.Fprintln(co.out, email.WhatsAppHandoff(order, co.whatsAppNumber))
		return nil
	}

	if payer == "" {
		payer = customer.Phone
	}
	started, err := co.ctrl.InitiatePayment(ctx, *ref, ref.Total, payer)
	if err != nil {
		return err
	}
	if started.CustomerMessage != "" {
		fmt.Fprintln(co.out, started.CustomerMessage)
	} else {
		fmt.Fprintln(co.out, "Check your phone and enter your M-Pesa PIN.")
	}

	poll := co.ctrl.PollUntilTerminal(ctx, ref.ID, reconcile.PollConfig{
		OnChange: func(order *model.Order) {
			fmt.Fprintf(co.out, "Status: %s\n", order.EffectiveStatus())
		},
		OnWarning: func(err error) {
			fmt.Fprintln(co.errOut, reconcile.UserMessage(err))
		},
	})
	order, err := poll.Wait()
	if err != nil {
		if errors.Is(err, reconcile.ErrPollCancelled) {
			fmt.Fprintln(co.out, "Stopped waiting. Your order is saved.")
			return nil
		}
		return err
	}

	if order.EffectiveStatus() != model.OrderStatusPaid {
		reason := order.FailReason
		if reason == "" {
			reason = "Payment was not completed."
		}
		return fmt.Errorf("%w: %s", errPaymentFailed, reason)
	}
	fmt.Fprintln(co.out, "Payment received. Thank you!")
	return nil
}

var errPaymentFailed = errors.New("payment failed")

// parseItems reads "id:qty,id:qty". A missing quantity means 1.
func parseItems(s string) ([]dto.CartLine, error) {
	var lines []dto.CartLine
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, qty, found := strings.Cut(part, ":")
		line := dto.CartLine{ProductID: strings.TrimSpace(id), Quantity: 1}
		if found {
			n, err := strconv.Atoi(strings.TrimSpace(qty))
			if err != nil {
				return nil, fmt.Errorf("parse items: bad quantity in %q", part)
			}
			line.Quantity = n
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil, errors.New("parse items: -items is required")
	}
	return lines, nil
}

func newMailer(cfg config.EmailConfig, log *slog.Logger) email.Sender {
	if !cfg.Enabled() {
		return nil
	}
	mailer, err := email.NewEmailJS(email.EmailJSConfig{
		Endpoint:   cfg.Endpoint,
		ServiceID:  cfg.ServiceID,
		TemplateID: cfg.TemplateID,
		PublicKey:  cfg.PublicKey,
		PrivateKey: cfg.PrivateKey,
		Timeout:    cfg.Timeout,
	})
	if err != nil {
		log.Warn("EmailJS disabled", "error", err)
		return nil
	}
	return mailer
}
