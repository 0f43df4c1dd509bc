package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var lookupGeoJSON bool

var lookupCmd = &cobra.Command{
	Use:   "lookup <region name>",
	Short: "Resolve a region name against the gazetteer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		name := args[0]
		entry, ok := env.Gazetteer.Lookup(name)
		if !ok {
			return fmt.Errorf("no region matches %q", name)
		}

		if lookupGeoJSON {
			feature, err := env.Gazetteer.Feature(name)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(feature)
		}

		fmt.Printf("%s\n", entry.Name)
		fmt.Printf("  bbox: lat [%.4f, %.4f] lon [%.4f, %.4f]\n",
			entry.Box.MinLat, entry.Box.MaxLat, entry.Box.MinLon, entry.Box.MaxLon)
		fmt.Printf("  polygon: %v\n", entry.Polygon != nil)
		return nil
	},
}

func init() {
	lookupCmd.Flags().BoolVar(&lookupGeoJSON, "geojson", false, "print the region as a GeoJSON feature")
	rootCmd.AddCommand(lookupCmd)
}
