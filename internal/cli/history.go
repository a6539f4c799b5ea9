package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Kaushik-Ravi/dendro/internal/store"
)

var (
	historySubject string
	historyLimit   int
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored measurements for a subject",
	Long: `History lists the measurements persisted for a subject, newest first.
The most recent record also feeds the reverse-derivation calibration tier
the next time the same subject is measured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := store.Open(cfg.Store, newLogger())
		if err != nil {
			return fmt.Errorf("open device store: %w", err)
		}
		defer st.Close()

		records, err := st.Measurements(historySubject, historyLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Printf("No measurements stored for %q\n", historySubject)
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tHEIGHT\tCANOPY\tGIRTH\tCO2E\tDISTANCE\tCALIBRATION")
		for _, m := range records {
			fmt.Fprintf(w, "%s\t%.1f m\t%.1f m\t%.2f m\t%.0f kg\t%.1f m\t%s\n",
				m.CreatedAt.Format("2006-01-02 15:04"),
				m.HeightM, m.CanopyM, m.GirthM, m.CO2eKg, m.DistanceM, m.Source)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&historySubject, "subject", "", "subject ID (required)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum records to list")
	_ = historyCmd.MarkFlagRequired("subject")
}
