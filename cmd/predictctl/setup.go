package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bd4predict/predict-api/internal/setup"
)

func setupCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the MCP server with a desktop MCP client",
	}
	cmd.PersistentFlags().StringVar(&configPath, "client-config", "", "Client config file (default: Claude Desktop location)")

	resolve := func() (string, error) {
		if configPath != "" {
			return configPath, nil
		}
		return setup.DefaultClientConfigPath()
	}

	var opts setup.Options
	register := &cobra.Command{
		Use:   "mcp-client",
		Short: "Add or update the bd4predict entry in the client config",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolve()
			if err != nil {
				return err
			}
			entry, err := setup.Register(path, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Registered %s in %s\n", setup.ServerName, path)
			fmt.Fprintf(out, "Server binary: %s\n", entry.Command)
			fmt.Fprintln(out, "Restart the client to load the new configuration.")
			return nil
		},
	}
	register.Flags().StringVar(&opts.BinaryPath, "binary", "", "MCP server binary (default: search PATH)")
	register.Flags().StringVar(&opts.DataDir, "data-dir", "", "Data directory passed as BD4P_DATA_DIR")
	register.Flags().StringVar(&opts.ModelPath, "model", "", "Model artifact passed as BD4P_MODEL_PATH")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the client registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolve()
			if err != nil {
				return err
			}
			st, err := setup.GetStatus(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config file: %s\n", st.ConfigPath)
			if !st.Registered {
				fmt.Fprintln(out, "Status: not registered")
				return nil
			}
			fmt.Fprintln(out, "Status: registered")
			fmt.Fprintf(out, "Binary: %s (exists: %t)\n", st.BinaryPath, st.BinaryExists)
			if st.DataDir != "" {
				if _, err := os.Stat(st.DataDir); err != nil {
					fmt.Fprintf(out, "Data directory: %s (created on first run)\n", st.DataDir)
				} else {
					fmt.Fprintf(out, "Data directory: %s\n", st.DataDir)
				}
			}
			return nil
		},
	}

	cmd.AddCommand(register, status)
	return cmd
}
