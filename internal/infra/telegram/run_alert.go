package telegram

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"enrollment_sync/internal/app"
	"enrollment_sync/internal/domain/telegram"

	"gopkg.in/telebot.v3"
)

// RunAlertNotifier tells the admin chat which campuses failed in a run.
type RunAlertNotifier struct {
	client      telegram.Client
	adminChatID int64
}

func NewRunAlertNotifier(client telegram.Client, adminChatID int64) *RunAlertNotifier {
	return &RunAlertNotifier{client: client, adminChatID: adminChatID}
}

func (n *RunAlertNotifier) NotifyRun(_ context.Context, report *app.RunReport) error {
	if err := n.client.SendMessage(n.adminChatID, FormatRunAlert(report), &telebot.SendOptions{DisableWebPagePreview: true}); err != nil {
		return fmt.Errorf("failed to send run alert: %w", err)
	}
	return nil
}

// FormatRunAlert renders a plain-text summary of a run with failed campuses.
func FormatRunAlert(report *app.RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Enrollment sync (%s, period %s) finished with %d of %d campuses failing.\n",
		report.Job, report.Period.String(), len(report.FailedCampuses), len(report.Campuses))

	names := make([]string, 0, len(report.FailedCampuses))
	for name := range report.FailedCampuses {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "- %s: %s\n", name, report.FailedCampuses[name])
	}
	fmt.Fprintf(&b, "Run: %s", report.RunID)
	return b.String()
}

var _ app.RunNotifier = (*RunAlertNotifier)(nil)
