package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"face-attendance-go/internal/core/models"
	"face-attendance-go/internal/util/timezone"

	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the attendance report for a date range",
	Long: `Print every attendance record between --from and --to (inclusive,
YYYY-MM-DD). Both default to today. --class restricts the report to one class.`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().String("from", "", "First day of the report (YYYY-MM-DD)")
	reportCmd.Flags().String("to", "", "Last day of the report (YYYY-MM-DD)")
	reportCmd.Flags().String("class", "", "Only include this class")
	reportCmd.Flags().Bool("json", false, "Print JSON instead of a table")
}

// reportRange löst die Datumsflags auf, leere Werte stehen für heute
func reportRange(from, to, today string) (string, string, error) {
	if from == "" {
		from = today
	}
	if to == "" {
		to = today
	}
	f, err := timezone.ParseDate(from)
	if err != nil {
		return "", "", fmt.Errorf("invalid --from: %w", err)
	}
	t, err := timezone.ParseDate(to)
	if err != nil {
		return "", "", fmt.Errorf("invalid --to: %w", err)
	}
	if t.Before(f) {
		return "", "", fmt.Errorf("--to %s is before --from %s", to, from)
	}
	return timezone.Date(f), timezone.Date(t), nil
}

// statusCounts zählt die Zeilen eines Berichts je Status
func statusCounts(rows []models.ReportRow) map[models.AttendanceStatus]int {
	counts := make(map[models.AttendanceStatus]int, 3)
	for _, r := range rows {
		counts[r.Status]++
	}
	return counts
}

func runReport(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	from, to, err := reportRange(mustGetString(cmd, "from"), mustGetString(cmd, "to"), timezone.Date(timezone.Now()))
	if err != nil {
		return err
	}
	fromDay, _ := timezone.ParseDate(from)
	toDay, _ := timezone.ParseDate(to)

	rows, err := a.repo.AttendanceReport(fromDay, toDay, mustGetString(cmd, "class"))
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{"from": from, "to": to, "count": len(rows), "rows": rows})
	}

	if len(rows) == 0 {
		fmt.Printf("No attendance records between %s and %s\n", from, to)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tCLASS\tROLL\tNAME\tSTATUS\tIN\tOUT")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", r.Date, r.Class, r.RollNumber, r.StudentName, r.Status, r.InTime, r.OutTime)
	}
	_ = w.Flush()

	counts := statusCounts(rows)
	fmt.Printf("\n%d records: %d present, %d late, %d absent\n",
		len(rows), counts[models.StatusPresent], counts[models.StatusLate], counts[models.StatusAbsent])
	return nil
}
