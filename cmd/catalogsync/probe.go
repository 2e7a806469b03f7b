package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"
)

func newProbeCmd(a *app) *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check what the configured access token is allowed to do",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine := a.components.ReadOnlyEngine()
			if write {
				engine = a.components.Engine()
			}
			if engine == nil {
				return withCode(exitUsage, errors.New("SHOPIFY_SHOP_NAME and SHOPIFY_ACCESS_TOKEN are required"))
			}

			perms := engine.Probe(cmd.Context())
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(perms); err != nil {
				return withCode(exitFailure, err)
			}
			if !perms.ShopRead || !perms.ProductsRead {
				return withCode(exitFailure, errors.New("token cannot read the shop catalog"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&write, "write", false, "Also create and delete a draft product when PROBE_WRITE allows it")
	return cmd
}
