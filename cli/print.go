package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"atpkiosk/config"
	"atpkiosk/models"
	"atpkiosk/services/navigation"
	"atpkiosk/services/payment"
	"atpkiosk/services/upload"
	"atpkiosk/utils"

	"github.com/spf13/cobra"
)

var printCmd = &cobra.Command{
	Use:   "print",
	Short: "Run a whole print visit from the terminal",
	Long: `print opens a session, uploads a document, collects the checkout result
from the terminal and follows the print job until it finishes.`,
	Args: cobra.NoArgs,
	RunE: runPrint,
}

func init() {
	printCmd.Flags().String("session", "", "session id from the QR code")
	printCmd.Flags().String("file", "", "document to print (PDF, DOCX, JPEG or PNG)")
	printCmd.Flags().Int("pages", 1, "number of pages")
	printCmd.Flags().String("mode", string(models.ColorModeBW), "BW or Color")
	_ = printCmd.MarkFlagRequired("session")
	_ = printCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(printCmd)
}

// waitFor blocks until pred accepts a snapshot from updates.
func waitFor(ctx context.Context, updates <-chan navigation.State, pred func(navigation.State) bool) (navigation.State, error) {
	for {
		select {
		case <-ctx.Done():
			return navigation.State{}, ctx.Err()
		case st, ok := <-updates:
			if !ok {
				return navigation.State{}, errors.New("kiosk closed")
			}
			if pred(st) {
				return st, nil
			}
		}
	}
}

func notice(st navigation.State, fallback string) error {
	if st.Notification != nil {
		return errors.New(st.Notification.Message)
	}
	return errors.New(fallback)
}

func runPrint(cmd *cobra.Command, _ []string) error {
	sessionID, _ := cmd.Flags().GetString("session")
	path, _ := cmd.Flags().GetString("file")
	pages, _ := cmd.Flags().GetInt("pages")
	rawMode, _ := cmd.Flags().GetString("mode")
	mode, err := models.ParseColorMode(rawMode)
	if err != nil {
		return err
	}

	svcs, err := buildServices()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	ctrl := svcs.controller(payment.NewTerminalCheckout(os.Stdin, out))
	defer ctrl.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	ctrl.Open(sessionID)
	st, err := waitFor(ctx, updates, func(st navigation.State) bool {
		return st.SessionID == sessionID && !st.SessionLoading
	})
	if err != nil {
		return err
	}
	if st.Session == nil {
		return notice(st, "Session not found")
	}
	printSession(out, *st.Session)
	fmt.Fprintf(out, "Time remaining: %s\n\n", st.Countdown)

	if st, ok := ctrl.Navigate(models.StageUpload); !ok {
		return notice(st, navigation.MsgNoSession)
	}

	file, f, err := upload.OpenCandidate(path)
	if err != nil {
		return fmt.Errorf("%s", utils.UserMessage(err))
	}
	defer f.Close()

	fmt.Fprintf(out, "Uploading %s (%s, %d pages, %s)...\n", displayName(file.Name), utils.FormatFileSize(file.Size), pages, mode.Label())
	desc, err := ctrl.Upload(ctx, file, pages, mode)
	if err != nil {
		return fmt.Errorf("%s", utils.UserMessage(err))
	}
	currency := config.AppConfig.Currency
	fmt.Fprintf(out, "Uploaded %s: %d pages, %s, total %s\n", displayName(desc.FileName), desc.PageCount, desc.ColorMode.Label(), utils.FormatCurrency(desc.TotalCost, currency))
	if desc.PriceAdjusted {
		fmt.Fprintf(out, "Note: the estimate was %s; the printer's price applies.\n", utils.FormatCurrency(desc.EstimatedCost, currency))
	}

	if _, err := waitFor(ctx, updates, func(st navigation.State) bool { return st.Stage == models.StagePayment }); err != nil {
		return err
	}
	if err := payInTerminal(ctx, ctrl, out); err != nil {
		return err
	}

	fmt.Fprintln(out, "Payment verified. Following the print job...")
	return followJob(ctx, updates, out)
}

// maxNameWidth keeps long document names on one terminal line.
const maxNameWidth = 40

func displayName(name string) string {
	return utils.TruncateText(name, maxNameWidth)
}

// maxPaymentAttempts bounds terminal retries after a failed or cancelled checkout.
const maxPaymentAttempts = 3

// payInTerminal retries until the payment is verified or the attempts run out.
func payInTerminal(ctx context.Context, ctrl *navigation.Controller, out io.Writer) error {
	for attempt := 1; ; attempt++ {
		h, err := ctrl.StartPayment()
		if err != nil {
			return fmt.Errorf("%s", utils.UserMessage(err))
		}
		select {
		case <-h.Done():
		case <-ctx.Done():
			h.Cancel()
			return ctx.Err()
		}

		st := ctrl.State()
		if st.Payment.State == models.PaymentPaid {
			return nil
		}
		if attempt == maxPaymentAttempts {
			return notice(st, "Payment was not completed")
		}
		if st.Notification != nil {
			fmt.Fprintf(out, "%s: %s\n", st.Notification.Severity, st.Notification.Message)
		}
		fmt.Fprintln(out, "Try again.")
	}
}

func followJob(ctx context.Context, updates <-chan navigation.State, out io.Writer) error {
	var shown models.JobStatus
	for {
		st, err := waitFor(ctx, updates, func(st navigation.State) bool {
			return st.Job.Status != "" && st.Job.Status != shown
		})
		if err != nil {
			return err
		}
		shown = st.Job.Status
		fmt.Fprintf(out, "Status: %s\n", shown)
		printSteps(out, st.Job.Steps)
		switch shown {
		case models.JobCompleted:
			fmt.Fprintln(out, navigation.MsgPrinted)
			return nil
		case models.JobFailed:
			return errors.New(navigation.MsgPrintFailed)
		}
	}
}
