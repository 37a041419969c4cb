package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/msomdec/virtual-tourist/internal/service"
)

func newSearchCommand() *cobra.Command {
	var (
		lat, lon float64
		count    int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Print photo URLs found around a coordinate",
		Example: `  virtualtourist search --lat 48.8584 --lon 2.2945
  virtualtourist search --lat 40.6892 --lon -74.0445 --count 30`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			urls, err := newFlickrClient(cfg.Flickr).Search(cmd.Context(), lat, lon, count)
			if err != nil {
				return err
			}
			for _, u := range urls {
				fmt.Fprintln(cmd.OutOrStdout(), u)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude in degrees")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude in degrees")
	cmd.Flags().IntVar(&count, "count", service.DefaultAlbumSize, "number of photos to sample")
	cmd.MarkFlagRequired("lat")
	cmd.MarkFlagRequired("lon")
	return cmd
}
