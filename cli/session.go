package cli

import (
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"atpkiosk/config"
	"atpkiosk/models"
	"atpkiosk/services/session"
	"atpkiosk/utils"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session <id>",
	Short: "Show a print session and its remaining time",
	Args:  cobra.ExactArgs(1),
	RunE:  runSession,
}

func init() {
	sessionCmd.Flags().BoolP("watch", "w", false, "keep counting down until the session expires")
	rootCmd.AddCommand(sessionCmd)
}

func printSession(w io.Writer, s models.Session) {
	modes := make([]string, 0, len(s.ColorOptions))
	for _, m := range s.ColorOptions {
		modes = append(modes, m.Label())
	}
	fmt.Fprintf(w, "Session: %s\n", s.SessionID)
	fmt.Fprintf(w, "Printer: %s\n", s.PrinterName)
	if s.PricePerPage > 0 {
		fmt.Fprintf(w, "Price:   %s per page\n", utils.FormatCurrency(s.PricePerPage, config.AppConfig.Currency))
	}
	if len(modes) > 0 {
		fmt.Fprintf(w, "Modes:   %s\n", strings.Join(modes, ", "))
	}
	fmt.Fprintf(w, "Expires: %s\n", s.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
}

func runSession(cmd *cobra.Command, args []string) error {
	svcs, err := buildServices()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess, err := svcs.sessions.FetchSession(ctx, args[0])
	if err != nil {
		return fmt.Errorf("%s", utils.UserMessage(err))
	}
	out := cmd.OutOrStdout()
	printSession(out, *sess)

	watch, _ := cmd.Flags().GetBool("watch")
	if !watch {
		fmt.Fprintf(out, "Time remaining: %s\n", utils.FormatTimeRemaining(sess.ExpiresAt, time.Now()))
		return nil
	}
	h := svcs.sessions.StartCountdown(ctx, *sess, func(t session.Tick) {
		fmt.Fprintf(out, "\rTime remaining: %-8s", t.Label)
		if t.Expired {
			fmt.Fprintln(out)
		}
	})
	h.Wait()
	if ctx.Err() != nil {
		// Interrupted before expiry.
		fmt.Fprintln(out)
	}
	return nil
}
