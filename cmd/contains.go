package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wegman-software/osmraw/internal/bounds"
)

var containsCmd = &cobra.Command{
	Use:   "contains <lon> <lat>",
	Short: "Check whether a coordinate passes the spatial filter",
	Long: `Evaluate the configured --bbox, --polygon or --polygon-file filter for one
coordinate and print "true" or "false". For polygon filters the winding
number of the exterior ring is printed as well.`,
	Args: cobra.ExactArgs(2),
	Run:  runContains,
}

func init() {
	rootCmd.AddCommand(containsCmd)
}

func runContains(cmd *cobra.Command, args []string) {
	lon, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		exitWithError("invalid longitude", err)
	}
	lat, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		exitWithError("invalid latitude", err)
	}

	filter, err := bounds.FromConfig(cfg.BBox, cfg.Polygon, cfg.PolygonFile)
	if err != nil {
		exitWithError("invalid spatial filter", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, filter.Admits(lon, lat))
	if filter.Kind() == bounds.KindPolygon {
		fmt.Fprintf(out, "winding number: %d\n", bounds.WindingNumber(filter.Ring(), lon, lat))
	}
}
