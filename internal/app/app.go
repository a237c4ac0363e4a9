package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"nayancam/internal/config"
	"nayancam/internal/database"
	"nayancam/internal/drive"
	"nayancam/internal/encryption"
	"nayancam/internal/fs"
	"nayancam/internal/geo"
	"nayancam/internal/remote"
	"nayancam/internal/sensor"
	"nayancam/internal/vault"
	"nayancam/internal/watcher"
)

// App is the application layer between the CLI and drive.Service.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw CLI input, and manages the DB lifecycle on Close.
type App struct {
	cfg       *config.Config
	db        drive.Database
	vault     drive.Vault
	encryptor drive.Encryptor
	server    drive.Server
	filter    *fs.RecordingFilter
	logger    *slog.Logger
	reporter  *crashReporter
	service   *drive.Service
	op        *Operation
	logFiles  []*os.File
}

// Options tunes New.
type Options struct {
	// Operation names the CLI command being run (e.g. "SyncRoute").
	Operation string

	// Parameters is recorded with the operation when it is persisted.
	Parameters string

	// Offline skips the server client for commands that stay local.
	Offline bool

	// LogLevel is the minimum level written to the log. Zero means INFO.
	LogLevel slog.Level
}

// New creates a fully wired App from the given config.
// The caller must call Close when done.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if len(cfg.Vaults) == 0 {
		return nil, fmt.Errorf("no vaults configured")
	}
	v, err := vault.NewVaultFromConfig(ctx, cfg.Vaults[0])
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}

	filter, err := fs.NewRecordingFilter(cfg.Recordings.Dir, cfg.Recordings.Extensions, cfg.Recordings.Ignore)
	if err != nil {
		return nil, fmt.Errorf("creating recording filter: %w", err)
	}

	var server drive.Server
	if !opts.Offline && cfg.Server.BaseURL != "" {
		client, err := remote.New(remote.Options{
			BaseURL:           cfg.Server.BaseURL,
			RouteURL:          cfg.Server.RouteURL,
			Token:             cfg.Server.Token,
			RequestsPerSecond: cfg.Server.RequestsPerSecond,
			Timeout:           cfg.Server.Timeout.Duration,
		})
		if err != nil {
			return nil, fmt.Errorf("creating server client: %w", err)
		}
		server = client
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.DeviceID, drive.RealClock{})
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	// Check local DB version against remote vault version.
	remoteVersion, err := v.GetMetadataVersion(ctx, cfg.DeviceID, "db")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("checking remote metadata version: %w", err)
	}

	localMax, err := db.MaxOperationID(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("checking local metadata version: %w", err)
	}

	if remoteVersion > localMax {
		db.Close()
		return nil, fmt.Errorf("local database is behind remote (local=%d, remote=%d): restore from vault or re-initialize", localMax, remoteVersion)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID, opts.LogLevel)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	crashFile, err := openLog(cfg.LogDir, "crash.log")
	if err != nil {
		logFile.Close()
		db.Close()
		return nil, fmt.Errorf("creating crash log: %w", err)
	}
	reporter := newCrashReporter(crashFile, opID)

	svcOpts := []drive.Option{
		drive.WithVault(v),
		drive.WithReporter(reporter),
		drive.WithSettings(settingsFromConfig(cfg)),
	}
	if enc != nil {
		svcOpts = append(svcOpts, drive.WithEncryptor(enc))
	}
	svc := drive.NewService(db, server, &slogAdapter{l: logger}, svcOpts...)

	return &App{
		cfg:       cfg,
		db:        db,
		vault:     v,
		encryptor: enc,
		server:    server,
		filter:    filter,
		logger:    logger,
		reporter:  reporter,
		service:   svc,
		op:        NewOperation(opts.Operation, opts.Parameters),
		logFiles:  []*os.File{logFile, crashFile},
	}, nil
}

// settingsFromConfig overlays the configured thresholds on the defaults.
// Zero values keep the default.
func settingsFromConfig(cfg *config.Config) drive.Settings {
	s := drive.DefaultSettings()
	if v := cfg.Clustering.DistanceThresholdM; v > 0 {
		s.DistanceThreshold = v
	}
	if v := cfg.Clustering.AccuracyThresholdM; v > 0 {
		s.AccuracyThreshold = v
	}
	if v := cfg.Clustering.TimeGap.Duration; v > 0 {
		s.TimeGap = v
	}
	if v := cfg.Clustering.SyncInterval.Duration; v > 0 {
		s.SyncInterval = v
	}
	if v := cfg.Retention.MaxAge.Duration; v > 0 {
		s.MaxAge = v
	}
	return s
}

func sensorConfig(cfg *config.Config) sensor.Config {
	c := sensor.DefaultConfig()
	if v := cfg.Sensor.UpdateInterval.Duration; v > 0 {
		c.UpdateInterval = v
	}
	if v := cfg.Sensor.ValueDrift; v > 0 {
		c.ValueDrift = v
	}
	if v := cfg.Sensor.GyroSensitivity; v > 0 {
		c.GyroSensitivity = v
	}
	if v := cfg.Sensor.BiasSamples; v > 0 {
		c.BiasSamples = v
	}
	return c
}

// persistOperation saves the operation to the database, giving it an auto-increment ID.
// This should only be called for DB-mutating commands.
func (a *App) persistOperation(ctx context.Context) error {
	if a.op.Persisted() {
		return nil
	}
	dbOp, err := a.db.CreateOperation(ctx, a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// track runs a mutating step under the persisted operation and marks the
// operation failed when the step errors.
func (a *App) track(ctx context.Context, fn func() error) error {
	if err := a.persistOperation(ctx); err != nil {
		return err
	}
	if err := fn(); err != nil {
		a.op.Fail()
		return err
	}
	return nil
}

// RecordLocation stores a single fix.
func (a *App) RecordLocation(ctx context.Context, loc drive.Location) error {
	return a.track(ctx, func() error {
		return a.service.RecordLocation(ctx, loc)
	})
}

// ImportLocations reads CSV fixes from r and stores them.
func (a *App) ImportLocations(ctx context.Context, r io.Reader) (int, error) {
	locs, err := ReadLocations(r)
	if err != nil {
		return 0, err
	}
	var n int
	err = a.track(ctx, func() error {
		var err error
		n, err = a.service.ImportLocations(ctx, locs)
		return err
	})
	return n, err
}

// LocationHistory returns the stored fixes at or after since.
func (a *App) LocationHistory(ctx context.Context, since time.Time) ([]drive.Location, error) {
	var ms int64
	if !since.IsZero() {
		ms = drive.UnixMilli(since)
	}
	return a.service.LocationHistory(ctx, ms)
}

// CurrentCluster returns the leading cluster of the unsynced history.
func (a *App) CurrentCluster(ctx context.Context) (geo.ClusterResult, error) {
	return a.service.CurrentCluster(ctx)
}

// Watermark returns the route-sync watermark.
func (a *App) Watermark(ctx context.Context) (time.Time, error) {
	ms, err := a.service.Watermark(ctx)
	if err != nil || ms == 0 {
		return time.Time{}, err
	}
	return drive.FromUnixMilli(ms), nil
}

// SyncRoute runs one route sync pass.
func (a *App) SyncRoute(ctx context.Context) (*drive.RouteSyncResult, error) {
	var res *drive.RouteSyncResult
	err := a.track(ctx, func() error {
		var err error
		res, err = a.service.SyncRoute(ctx)
		return err
	})
	return res, err
}

// Segments lists the locally tracked segments.
func (a *App) Segments(ctx context.Context) ([]drive.Segment, error) {
	return a.service.Segments(ctx)
}

// SyncSegments pushes the tracked segments.
func (a *App) SyncSegments(ctx context.Context) (int, error) {
	var n int
	err := a.track(ctx, func() error {
		var err error
		n, err = a.service.SyncSegments(ctx)
		return err
	})
	return n, err
}

// FlushSegments drops every tracked segment.
func (a *App) FlushSegments(ctx context.Context) error {
	return a.track(ctx, func() error {
		return a.service.FlushSegments(ctx)
	})
}

// EnqueueVideo resolves a recording path and adds it to the upload queue.
func (a *App) EnqueueVideo(ctx context.Context, rawPath string) (*drive.Video, error) {
	p, _, err := a.filter.Resolve(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	var v *drive.Video
	err = a.track(ctx, func() error {
		var err error
		v, err = a.service.EnqueueVideo(ctx, p)
		return err
	})
	return v, err
}

// Videos lists queued recordings with the given statuses, or all of them.
func (a *App) Videos(ctx context.Context, statuses ...drive.UploadStatus) ([]drive.Video, error) {
	return a.service.Videos(ctx, statuses...)
}

// UploadPending runs one upload pass.
func (a *App) UploadPending(ctx context.Context) (*drive.UploadResult, error) {
	var res *drive.UploadResult
	err := a.track(ctx, func() error {
		var err error
		res, err = a.service.UploadPending(ctx)
		return err
	})
	return res, err
}

// ReconcileVideos compares the synced batch with the server.
func (a *App) ReconcileVideos(ctx context.Context) (*drive.ReconcileResult, error) {
	var res *drive.ReconcileResult
	err := a.track(ctx, func() error {
		var err error
		res, err = a.service.ReconcileVideos(ctx)
		return err
	})
	return res, err
}

// RemoveVideo drops a recording from the upload queue.
func (a *App) RemoveVideo(ctx context.Context, name string) error {
	return a.track(ctx, func() error {
		return a.service.RemoveVideo(ctx, name)
	})
}

// ValidateVault checks that the configured vault is reachable and writable.
func (a *App) ValidateVault(ctx context.Context) error {
	return a.vault.ValidateSetup(ctx)
}

// FetchVideo writes an archived recording to w. passphrase unlocks the
// private key when recordings are archived encrypted.
func (a *App) FetchVideo(ctx context.Context, name, passphrase string, w io.Writer) error {
	var dc drive.DecryptionContext
	if a.encryptor != nil {
		var err error
		dc, err = a.encryptor.Unlock(passphrase)
		if err != nil {
			return fmt.Errorf("unlocking key: %w", err)
		}
	}
	return a.service.FetchArchive(ctx, name, dc, w)
}

// Encrypted reports whether recordings are archived encrypted.
func (a *App) Encrypted() bool {
	return a.encryptor != nil
}

// Watch enqueues recordings as they appear. When uploadEvery is positive an
// upload pass runs on that interval. Watch returns when ctx is cancelled.
func (a *App) Watch(ctx context.Context, uploadEvery time.Duration) error {
	if uploadEvery > 0 && a.server == nil {
		return fmt.Errorf("periodic upload requires a server")
	}
	if err := a.persistOperation(ctx); err != nil {
		return err
	}

	w := watcher.New(a.filter, a.service, &slogAdapter{l: a.logger}, watcher.WithReporter(a.reporter))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(ctx)
	})
	if uploadEvery > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(uploadEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					res, err := a.service.UploadPending(ctx)
					if err != nil {
						if ctx.Err() != nil {
							return nil
						}
						a.op.Fail()
						return err
					}
					a.logger.Info("upload pass", "attempted", res.Attempted, "uploaded", res.Uploaded)
				}
			}
		})
	}
	return g.Wait()
}

// ReplaySensor feeds recorded sensor events from r through the orientation
// fusion and calls emit for every update.
func (a *App) ReplaySensor(ctx context.Context, r io.Reader, emit func(sensor.Meta)) (int, error) {
	events, err := sensor.ReadEvents(r)
	if err != nil {
		return 0, err
	}

	fusion := sensor.NewFusion(sensorConfig(a.cfg), a.reporter)
	updates, unsubscribe := fusion.Subscribe(len(events))

	feed := make(chan sensor.Event)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(feed)
		for _, ev := range events {
			select {
			case feed <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	g.Go(func() error {
		return fusion.Run(ctx, feed)
	})
	err = g.Wait()
	unsubscribe()

	n := 0
	for meta := range updates {
		emit(meta)
		n++
	}
	return n, err
}

// Purge runs the retention janitor.
func (a *App) Purge(ctx context.Context) (*drive.PurgeResult, error) {
	var res *drive.PurgeResult
	err := a.track(ctx, func() error {
		var err error
		res, err = a.service.Purge(ctx)
		return err
	})
	return res, err
}

// GetHistory returns the most recent operations.
func (a *App) GetHistory(ctx context.Context, limit int) ([]drive.Operation, error) {
	return a.service.GetHistory(ctx, limit)
}

// Close finalizes the operation and closes all resources.
// For persisted operations: finishes the operation record, snapshots the DB, and uploads it to the vault.
// For non-persisted operations: just closes the database.
func (a *App) Close() error {
	var firstErr error
	ctx := context.Background()

	if a.op.Persisted() {
		if err := a.db.FinishOperation(ctx, a.op.ID, a.op.Status); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}

		tmpFile, err := os.CreateTemp("", "nayancam-db-snapshot-*.db")
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("creating temp file for db snapshot: %w", err)
		}

		var tmpPath string
		if tmpFile != nil {
			tmpPath = tmpFile.Name()
			tmpFile.Close()

			if err := a.db.BackupTo(tmpPath); err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("snapshotting database: %w", err)
				}
				os.Remove(tmpPath)
				tmpPath = ""
			}
		}

		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}

		// The snapshot version is the operation ID.
		if tmpPath != "" {
			if err := a.uploadMetadata(ctx, tmpPath, a.op.ID); err != nil && firstErr == nil {
				firstErr = err
			}
			os.Remove(tmpPath)
		}
	} else {
		if err := a.db.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}

	for _, f := range a.logFiles {
		f.Close()
	}

	return firstErr
}

// uploadMetadata opens the DB snapshot and uploads it to the vault as metadata.
func (a *App) uploadMetadata(ctx context.Context, path string, version int64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening db snapshot for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat db snapshot: %w", err)
	}

	if err := a.vault.PutMetadata(ctx, a.cfg.DeviceID, "db", f, info.Size(), version); err != nil {
		return fmt.Errorf("uploading metadata to vault: %w", err)
	}
	return nil
}
