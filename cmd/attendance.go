package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/camden-git/faceattend/attendance"
	"github.com/camden-git/faceattend/config"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Print attendance records",
	Long: `Prints the attendance ledger in commit order, optionally filtered by
name and by date (YYYY-MM-DD).`,
	RunE: runAttendance,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)

	attendanceCmd.Flags().String("name", "", "Only records for this identity")
	attendanceCmd.Flags().String("date", "", "Only records on this date (YYYY-MM-DD)")
}

func runAttendance(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	name, _ := cmd.Flags().GetString("name")
	date, _ := cmd.Flags().GetString("date")

	a := &app{cfg: cfg}
	defer a.Close()
	ledger, err := openLedger(a)
	if err != nil {
		return fmt.Errorf("failed to open attendance ledger: %w", err)
	}

	records, err := ledger.Query(attendance.Filter{Name: name, Date: date})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTIMESTAMP\tCONFIDENCE")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\n", rec.Name, rec.FormattedTimestamp(), rec.FormattedConfidence())
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nTotal records: %d\n", len(records))
	return nil
}
