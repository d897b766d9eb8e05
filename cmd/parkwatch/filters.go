package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/parkwatch/parkwatch/internal/export"
)

func newFiltersCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "filters",
		Short: "Print the export filter vocabulary (operators and payment zones)",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Debug().Str("api_url", apiURL).Msg("fetching export filters")

			svc := export.NewService(export.ServiceConfig{
				Client:     newAPIClient(""),
				Repository: export.NewInMemoryRepository(),
				Logger:     log.Logger,
			})
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			vocab, err := svc.Vocabulary(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(vocab)
			}

			fmt.Fprintln(out, "Operators:")
			for _, op := range vocab.Operators {
				fmt.Fprintf(out, "  %s\t%s\n", op.ID, op.Name)
			}
			fmt.Fprintln(out, "Payment zones:")
			for _, zone := range vocab.PaymentZones {
				fmt.Fprintf(out, "  %s\t%s\n", zone.Code, zone.Name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the vocabulary as JSON")

	return cmd
}
