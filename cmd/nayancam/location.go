package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"nayancam/internal/drive"

	"github.com/spf13/cobra"
)

// location command
var locationCmd = &cobra.Command{
	Use:   "location",
	Short: "Record and inspect GPS fixes",
}

var locationAddCmd = &cobra.Command{
	Use:   "add LAT LON",
	Short: "Record a single fix",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("latitude: %w", err)
		}
		lon, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("longitude: %w", err)
		}
		accuracy, _ := cmd.Flags().GetFloat64("accuracy")
		at, _ := cmd.Flags().GetString("at")

		loc := drive.Location{Latitude: lat, Longitude: lon, Accuracy: accuracy}
		if at != "" {
			t, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return fmt.Errorf("--at: %w", err)
			}
			loc.TimeStamp = drive.UnixMilli(t)
		}

		a, err := newApp(cmd, "RecordLocation", fmt.Sprintf("%s,%s", args[0], args[1]), true)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.RecordLocation(cmd.Context(), loc)
	},
}

var locationImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import fixes from CSV (timestamp_ms,lat,lon[,accuracy])",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		a, err := newApp(cmd, "ImportLocations", args[0], true)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.ImportLocations(cmd.Context(), f)
		if err != nil {
			return fmt.Errorf("imported %d fix(es) before failing: %w", n, err)
		}
		fmt.Printf("Imported %d fix(es)\n", n)
		return nil
	},
}

var locationHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded fixes",
	RunE: func(cmd *cobra.Command, args []string) error {
		sinceFlag, _ := cmd.Flags().GetDuration("since")

		a, err := newApp(cmd, "LocationHistory", "", true)
		if err != nil {
			return err
		}
		defer a.Close()

		var since time.Time
		if sinceFlag > 0 {
			since = time.Now().Add(-sinceFlag)
		}
		locs, err := a.LocationHistory(cmd.Context(), since)
		if err != nil {
			return err
		}
		if len(locs) == 0 {
			fmt.Println("No fixes recorded.")
			return nil
		}
		for _, l := range locs {
			printFix(l)
		}
		return nil
	},
}

func printFix(l drive.Location) {
	fmt.Printf("%s  %11.7f  %11.7f  %5.1fm\n",
		l.Time().Format("2006-01-02 15:04:05"), l.Latitude, l.Longitude, l.Accuracy)
}

// cluster command
var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Show the fixes the next route sync would send",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "CurrentCluster", "", true)
		if err != nil {
			return err
		}
		defer a.Close()

		wm, err := a.Watermark(cmd.Context())
		if err != nil {
			return err
		}
		res, err := a.CurrentCluster(cmd.Context())
		if err != nil {
			return err
		}

		if wm.IsZero() {
			fmt.Println("Watermark: none")
		} else {
			fmt.Printf("Watermark: %s\n", wm.Format(time.RFC3339))
		}
		fmt.Printf("Cluster:   %d fix(es), gap exceeded: %v\n", len(res.Fixes), res.GapExceeded)
		for _, l := range res.Fixes {
			printFix(l)
		}
		return nil
	},
}

// route command
var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Map-match driven routes",
}

var routeSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one route sync pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "SyncRoute", "", false)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.SyncRoute(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Clustered %d fix(es), gap exceeded: %v\n", res.Clustered, res.GapExceeded)
		if res.RouteFetched {
			fmt.Printf("Route fetched, %d segment(s) applied, watermark %s, %d synced fix(es) dropped\n",
				res.SegmentsApplied, drive.FromUnixMilli(res.Watermark).Format(time.RFC3339), res.LocationsPruned)
		} else {
			fmt.Println("Route not fetched")
		}
		fmt.Printf("Pushed %d segment(s)\n", res.SegmentsPushed)
		return nil
	},
}

// segments command
var segmentsCmd = &cobra.Command{
	Use:   "segments",
	Short: "Manage tracked road segments",
}

var segmentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked segments",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Segments", "", true)
		if err != nil {
			return err
		}
		defer a.Close()

		segs, err := a.Segments(cmd.Context())
		if err != nil {
			return err
		}
		if len(segs) == 0 {
			fmt.Println("No segments tracked.")
			return nil
		}
		for _, s := range segs {
			fmt.Printf("%4d  %s  %s\n", s.Count,
				drive.FromUnixMilli(s.LastUpdated).Format("2006-01-02 15:04:05"), s.Coordinates)
		}
		return nil
	},
}

var segmentsPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push tracked segments to the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "SyncSegments", "", false)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.SyncSegments(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Pushed %d segment(s)\n", n)
		return nil
	},
}

var segmentsFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Drop every tracked segment",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "FlushSegments", "", true)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.FlushSegments(cmd.Context())
	},
}

func init() {
	locationCmd.AddCommand(locationAddCmd)
	locationAddCmd.Flags().Float64("accuracy", 0, "Horizontal accuracy in meters")
	locationAddCmd.Flags().String("at", "", "Fix time (RFC3339); defaults to now")
	locationCmd.AddCommand(locationImportCmd)
	locationCmd.AddCommand(locationHistoryCmd)
	locationHistoryCmd.Flags().Duration("since", 0, "Only show fixes newer than this")

	routeCmd.AddCommand(routeSyncCmd)

	segmentsCmd.AddCommand(segmentsListCmd)
	segmentsCmd.AddCommand(segmentsPushCmd)
	segmentsCmd.AddCommand(segmentsFlushCmd)

	rootCmd.AddCommand(locationCmd)
	rootCmd.AddCommand(clusterCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(segmentsCmd)
}
