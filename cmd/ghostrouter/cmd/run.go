package cmd

import (
	"fmt"

	"github.com/Shopify/ghostrouter/routerd"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Stream the binlog and dispatch row changes",
	RunE:  runRouter,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("bind", "", "control server bind address")
}

func runRouter(cmd *cobra.Command, args []string) error {
	if err := requireConfig(); err != nil {
		return err
	}

	config, err := routerd.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("bind") {
		config.ServerBindAddr, _ = cmd.Flags().GetString("bind")
	}

	router := &routerd.Router{
		Config:     config,
		ConfigPath: configFile,
	}

	if err := router.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	return router.Run()
}
