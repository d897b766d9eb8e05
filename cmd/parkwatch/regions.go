package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/parkwatch/parkwatch/internal/monitoring/parkkihubi"
)

func newRegionsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "regions",
		Short: "List the monitored parking regions",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Debug().Str("api_url", apiURL).Msg("fetching regions")

			client := newAPIClient("")
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			out := cmd.OutOrStdout()
			start := time.Now()

			if asJSON {
				var regions []parkkihubi.Region
				err := client.FetchRegions(ctx, func(page []parkkihubi.Region) {
					regions = append(regions, page...)
				})
				if err != nil {
					return err
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(regions)
			}

			total := 0
			err := client.FetchRegions(ctx, func(page []parkkihubi.Region) {
				for _, region := range page {
					fmt.Fprintf(out, "%s\t%s\t%d\n", region.ID, region.Name, region.CapacityEstimate)
				}
				total += len(page)
			})
			if err != nil {
				return err
			}

			log.Debug().
				Int("regions", total).
				Dur("elapsed", time.Since(start)).
				Msg("regions fetched")

			fmt.Fprintf(out, "Total: %d\n", total)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print regions as JSON")

	return cmd
}
