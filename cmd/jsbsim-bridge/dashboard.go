package main

import (
	"log"

	"github.com/spf13/cobra"

	"jsbsim-bridge/internal/dashboard"
)

var (
	dashboardOut   string
	dashboardTable string
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Render Grafana dashboards for the recorded tables",
	Long:  "dashboard writes Grafana dashboard JSON querying the GreptimeDB state and event tables. GREPTIMEDB_DATASOURCE_UID must be set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := dashboard.Render(dashboardOut, dashboard.Options{StateTable: dashboardTable}); err != nil {
			return err
		}
		log.Printf("[Dashboard] rendered to %s", dashboardOut)
		return nil
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardOut, "out", "build", "Output directory")
	dashboardCmd.Flags().StringVar(&dashboardTable, "table", "", "State table name (default jsbsim_state)")
}
