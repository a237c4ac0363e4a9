package main

import (
	"fmt"
	"os"
	"time"

	"nayancam/internal/drive"
	"nayancam/internal/sensor"

	"github.com/spf13/cobra"
)

// videos command
var videosCmd = &cobra.Command{
	Use:   "videos",
	Short: "Manage the video upload queue",
}

var videosAddCmd = &cobra.Command{
	Use:   "add FILE",
	Short: "Queue a recording for upload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "EnqueueVideo", args[0], true)
		if err != nil {
			return err
		}
		defer a.Close()

		v, err := a.EnqueueVideo(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Queued %s (%s)\n", v.VideoName, v.UploadStatus)
		return nil
	},
}

var videosListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued recordings",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, _ := cmd.Flags().GetStringSlice("status")
		var statuses []drive.UploadStatus
		for _, n := range names {
			s, err := drive.ParseUploadStatus(n)
			if err != nil {
				return err
			}
			statuses = append(statuses, s)
		}

		a, err := newApp(cmd, "Videos", "", true)
		if err != nil {
			return err
		}
		defer a.Close()

		videos, err := a.Videos(cmd.Context(), statuses...)
		if err != nil {
			return err
		}
		if len(videos) == 0 {
			fmt.Println("No recordings queued.")
			return nil
		}
		for _, v := range videos {
			uploaded := "-"
			if v.UploadedAt != 0 {
				uploaded = drive.FromUnixMilli(v.UploadedAt).Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%-12s  %8d  %-19s  %s\n", v.UploadStatus, v.VideoID, uploaded, v.VideoName)
		}
		return nil
	},
}

var videosUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Reconcile, then upload every pending recording",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "UploadPending", "", false)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.UploadPending(cmd.Context())
		if err != nil {
			return err
		}
		if res.ReconcileFailed {
			fmt.Println("Reconciliation failed; upload skipped")
			return nil
		}
		if r := res.Reconcile; r != nil {
			fmt.Printf("Reconciled %d: %d removed, %d requeued\n", r.Checked, r.Purged, r.Reset)
		}
		fmt.Printf("Uploaded %d of %d (%d duplicate, %d failed)\n",
			res.Uploaded, res.Attempted, res.Duplicates, res.Failed)
		return nil
	},
}

var videosReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Drop recordings the server has persisted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "ReconcileVideos", "", false)
		if err != nil {
			return err
		}
		defer a.Close()

		r, err := a.ReconcileVideos(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Reconciled %d: %d removed, %d requeued\n", r.Checked, r.Purged, r.Reset)
		return nil
	},
}

var videosWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Queue new recordings as the camera writes them",
	RunE: func(cmd *cobra.Command, args []string) error {
		every, _ := cmd.Flags().GetDuration("upload-every")

		a, err := newApp(cmd, "Watch", "", every == 0)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Watch(cmd.Context(), every)
	},
}

var videosRemoveCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Drop a recording from the queue without deleting the file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "RemoveVideo", args[0], true)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.RemoveVideo(cmd.Context(), args[0])
	},
}

var videosFetchCmd = &cobra.Command{
	Use:   "fetch NAME OUTPUT",
	Short: "Restore an archived recording from the vault",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "FetchVideo", args[0], true)
		if err != nil {
			return err
		}
		defer a.Close()

		var passphrase string
		if a.Encrypted() {
			if passphrase, err = readPassphrase("Passphrase: "); err != nil {
				return err
			}
		}

		out, err := os.OpenFile(args[1], os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		if err := a.FetchVideo(cmd.Context(), args[0], passphrase, out); err != nil {
			out.Close()
			os.Remove(args[1])
			return err
		}
		return out.Close()
	},
}

// sensor command
var sensorCmd = &cobra.Command{
	Use:   "sensor",
	Short: "Orientation fusion tools",
}

var sensorReplayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Feed recorded sensor events (timestamp_ns,kind,x,y,z) through the fusion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		a, err := newApp(cmd, "ReplaySensor", args[0], true)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.ReplaySensor(cmd.Context(), f, func(m sensor.Meta) {
			fmt.Printf("%s  az %-12s  pitch %7.3f  roll %7.3f  gyro %8.2f  mag %7.3f\n",
				time.Duration(m.Timestamp), m.AngleWithDirection, m.Pitch, m.Roll,
				m.GyroHeadingDegrees, m.MagHeading)
		})
		if err != nil {
			return err
		}
		fmt.Printf("%d update(s)\n", n)
		return nil
	},
}

func init() {
	videosCmd.AddCommand(videosAddCmd)
	videosCmd.AddCommand(videosListCmd)
	videosListCmd.Flags().StringSlice("status", nil, "Only show these statuses (e.g. FAILED)")
	videosCmd.AddCommand(videosUploadCmd)
	videosCmd.AddCommand(videosReconcileCmd)
	videosCmd.AddCommand(videosWatchCmd)
	videosWatchCmd.Flags().Duration("upload-every", 0, "Also run an upload pass on this interval")
	videosCmd.AddCommand(videosFetchCmd)
	videosCmd.AddCommand(videosRemoveCmd)

	sensorCmd.AddCommand(sensorReplayCmd)

	rootCmd.AddCommand(videosCmd)
	rootCmd.AddCommand(sensorCmd)
}
