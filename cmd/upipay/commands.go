package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mstgnz/upipay/infra/logger"
	"github.com/mstgnz/upipay/infra/retry"
	"github.com/mstgnz/upipay/provider"
	"github.com/mstgnz/upipay/provider/upi"
	"github.com/spf13/cobra"
)

type linkFlags struct {
	payee, name, amount, currency, note, reference, mcc, callback string
}

func (f *linkFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.payee, "pa", "", "Payee VPA, e.g. shop@okaxis")
	cmd.Flags().StringVar(&f.name, "pn", "", "Payee name")
	cmd.Flags().StringVar(&f.amount, "amount", "", "Amount in rupees")
	cmd.Flags().StringVar(&f.currency, "currency", provider.DefaultCurrency, "Currency")
	cmd.Flags().StringVar(&f.note, "note", "", "Transaction note (tn)")
	cmd.Flags().StringVar(&f.reference, "ref", "", "Transaction reference (tr)")
	cmd.Flags().StringVar(&f.mcc, "mc", "", "Merchant category code")
	cmd.Flags().StringVar(&f.callback, "url", "", "Callback URL")
	_ = cmd.MarkFlagRequired("pa")
	_ = cmd.MarkFlagRequired("pn")
	_ = cmd.MarkFlagRequired("amount")
}

func (f *linkFlags) params() (upi.LinkParams, error) {
	amount, err := provider.ParseAmount(f.amount)
	if err != nil {
		return upi.LinkParams{}, err
	}
	return upi.LinkParams{
		PayeeAddress: f.payee,
		PayeeName:    f.name,
		Amount:       amount,
		Currency:     f.currency,
		Note:         f.note,
		Reference:    f.reference,
		MerchantCode: f.mcc,
		CallbackURL:  f.callback,
	}, nil
}

func linkCmd(a *app) *cobra.Command {
	f := &linkFlags{}
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Print a upi://pay deep link",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := f.params()
			if err != nil {
				return err
			}
			link, err := upi.Build(params)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func qrCmd(a *app) *cobra.Command {
	f := &linkFlags{}
	var (
		out    string
		qrOpts = provider.DefaultQROptions()
	)
	cmd := &cobra.Command{
		Use:   "qr",
		Short: "Render a deep link as a PNG QR code",
		Long:  "Render a deep link as a PNG QR code. Without --out the image is printed as a data URI.",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := f.params()
			if err != nil {
				return err
			}
			png, _, err := upi.QR(cmd.Context(), upi.NewQRCodeRenderer(), params, qrOpts)
			if err != nil {
				return err
			}
			if out == "" {
				fmt.Fprintln(cmd.OutOrStdout(), upi.DataURI(png))
				return nil
			}
			if err := os.WriteFile(out, png, 0o644); err != nil {
				return err
			}
			a.log.Info("qr code written", provider.LogFields("", map[string]any{"file": out, "bytes": len(png)}))
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "PNG file to write")
	cmd.Flags().IntVar(&qrOpts.Size, "size", qrOpts.Size, "Image size in pixels")
	cmd.Flags().IntVar(&qrOpts.Margin, "margin", qrOpts.Margin, "Quiet zone; 0 disables it")
	cmd.Flags().StringVar(&qrOpts.DarkColor, "dark", qrOpts.DarkColor, "Module colour")
	cmd.Flags().StringVar(&qrOpts.LightColor, "light", qrOpts.LightColor, "Background colour")
	return cmd
}

func capabilitiesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities [provider]",
		Short: "List what a provider supports",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := provider.Names()
			if len(args) == 1 {
				names = []provider.Name{provider.Name(args[0])}
			} else if sel := a.selectedProvider(); sel != "" {
				names = []provider.Name{sel}
			}

			out := make(map[provider.Name][]string, len(names))
			for _, name := range names {
				if !provider.IsSupported(name) {
					return provider.NewValidationError(fmt.Sprintf("unsupported provider %q", name), nil)
				}
				out[name] = provider.Capabilities(name)
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
}

func orderCmd(a *app) *cobra.Command {
	var (
		amount string
		req    provider.OrderRequest
	)
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Create an order with the configured provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.gateway()
			if err != nil {
				return err
			}
			if req.Amount, err = provider.ParseAmount(amount); err != nil {
				return err
			}

			result, err := retry.Do(cmd.Context(), func(ctx context.Context) (*provider.OrderResult, error) {
				return g.CreateOrder(ctx, req)
			}, a.retryOptions())
			if err != nil {
				return err
			}
			a.log.Info("order created", logger.LogContext{
				Provider: string(result.Provider),
				Fields:   map[string]any{"orderId": result.OrderID, "amount": provider.FormatAmount(result.Amount)},
			})
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "Amount in rupees")
	cmd.Flags().StringVar(&req.Receipt, "receipt", "", "Merchant reference; generated when empty")
	cmd.Flags().StringVar(&req.Description, "description", "", "Order description")
	cmd.Flags().StringVar(&req.ReturnURL, "return-url", "", "Where the payer lands after checkout")
	cmd.Flags().StringVar(&req.Customer.Name, "name", "", "Customer name")
	cmd.Flags().StringVar(&req.Customer.Email, "email", "", "Customer email")
	cmd.Flags().StringVar(&req.Customer.Contact, "contact", "", "Customer mobile number")
	cmd.Flags().StringVar(&req.Customer.UPIID, "vpa", "", "Customer VPA for collect requests")
	cmd.Flags().StringToStringVar(&req.Notes, "note", nil, "Order notes as key=value")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

var errNotSettled = errors.New("transaction not settled yet")

func statusCmd(a *app) *cobra.Command {
	var (
		wait     int
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "status <orderId>",
		Short: "Query the normalized status of an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.gateway()
			if err != nil {
				return err
			}

			opts := a.retryOptions()
			if wait > 0 {
				opts.MaxAttempts = wait
				opts.Delay = interval
				opts.Linear = false
			}

			var status *provider.TransactionStatus
			err = retry.Run(cmd.Context(), func(ctx context.Context) error {
				s, err := g.GetTransactionStatus(ctx, args[0])
				if err != nil {
					return err
				}
				status = s
				if wait > 0 && !s.Status.IsFinal() {
					return errNotSettled
				}
				return nil
			}, opts)
			if err != nil && !(errors.Is(err, errNotSettled) && status != nil) {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), status)
		},
	}
	cmd.Flags().IntVar(&wait, "wait", 0, "Poll up to this many times until the status is final")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "Delay between polls with --wait")
	return cmd
}

func verifyCmd(a *app) *cobra.Command {
	var (
		ev  provider.VerificationEvidence
		udf []string
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify client-side payment evidence",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.gateway()
			if err != nil {
				return err
			}
			copy(ev.UDF[:], udf)
			ok := g.VerifyPayment(cmd.Context(), ev)
			return writeJSON(cmd.OutOrStdout(), map[string]any{"provider": g.Provider(), "verified": ok})
		},
	}
	cmd.Flags().StringVar(&ev.OrderID, "order", "", "Order id")
	cmd.Flags().StringVar(&ev.PaymentID, "payment", "", "Payment id")
	cmd.Flags().StringVar(&ev.Signature, "signature", "", "Signature, checksum or hash")
	cmd.Flags().StringVar(&ev.Payload, "payload", "", "Raw response payload (Paytm, PhonePe)")
	cmd.Flags().StringVar(&ev.Status, "status", "", "Reported status")
	cmd.Flags().StringVar(&ev.Email, "email", "", "Payer email (PayU)")
	cmd.Flags().StringVar(&ev.FirstName, "firstname", "", "Payer first name (PayU)")
	cmd.Flags().StringVar(&ev.ProductInfo, "productinfo", "", "Product info (PayU)")
	cmd.Flags().StringVar(&ev.Amount, "amount", "", "Amount exactly as returned (PayU)")
	cmd.Flags().StringVar(&ev.TxnID, "txnid", "", "Transaction id (PayU)")
	cmd.Flags().StringSliceVar(&udf, "udf", nil, "udf1..udf5 in order (PayU)")
	cmd.Flags().StringVar(&ev.AdditionalCharges, "additional-charges", "", "additionalCharges as returned (PayU)")
	return cmd
}

func refundCmd(a *app) *cobra.Command {
	var (
		amount string
		req    provider.RefundRequest
	)
	cmd := &cobra.Command{
		Use:   "refund",
		Short: "Refund a payment; omit --amount for a full refund",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.gateway()
			if err != nil {
				return err
			}
			if amount != "" {
				if req.Amount, err = provider.ParseAmount(amount); err != nil {
					return err
				}
			}
			receipt, err := retry.Do(cmd.Context(), func(ctx context.Context) (*provider.RefundReceipt, error) {
				return g.RefundPayment(ctx, req)
			}, a.retryOptions())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), receipt)
		},
	}
	cmd.Flags().StringVar(&req.PaymentID, "payment", "", "Payment id")
	cmd.Flags().StringVar(&req.OrderID, "order", "", "Order id (Cashfree, Paytm)")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount in rupees")
	cmd.Flags().StringVar(&req.Receipt, "receipt", "", "Refund reference; generated when empty")
	_ = cmd.MarkFlagRequired("payment")
	return cmd
}

func webhookVerifyCmd(a *app) *cobra.Command {
	var (
		file  string
		event provider.WebhookEvent
	)
	cmd := &cobra.Command{
		Use:   "webhook-verify",
		Short: "Verify the signature of a saved webhook body",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.gateway()
			if err != nil {
				return err
			}
			if event.RawPayload, err = readPayload(file, cmd.InOrStdin()); err != nil {
				return err
			}
			ok := g.VerifyWebhookSignature(cmd.Context(), event)
			return writeJSON(cmd.OutOrStdout(), map[string]any{"provider": g.Provider(), "verified": ok})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Raw body file; - reads stdin")
	cmd.Flags().StringVar(&event.Signature, "signature", "", "Signature header value")
	cmd.Flags().StringVar(&event.Timestamp, "timestamp", "", "Timestamp header value (Cashfree)")
	cmd.Flags().StringVar(&event.EventName, "event", "", "Event name, for logs")
	return cmd
}
