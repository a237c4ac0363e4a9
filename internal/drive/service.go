package drive

import (
	"context"
	"fmt"
	"time"

	"nayancam/internal/geo"
)

// Settings tunes the sync passes.
type Settings struct {
	DistanceThreshold float64       // clustering distance in meters
	AccuracyThreshold float64       // fixes at or above this accuracy are ignored
	TimeGap           time.Duration // elapsed time that ends a cluster on a jump
	SyncInterval      time.Duration // minimum time between route fetches
	MaxAge            time.Duration // retention of locations and segments
}

// DefaultSettings mirrors the values the capture app ships with.
func DefaultSettings() Settings {
	return Settings{
		DistanceThreshold: geo.DefaultDistanceThreshold,
		AccuracyThreshold: geo.DefaultAccuracyThreshold,
		TimeGap:           geo.DefaultTimeGap,
		SyncInterval:      15 * time.Minute,
		MaxAge:            7 * 24 * time.Hour,
	}
}

// Service is the orchestration layer that coordinates the location store,
// segment tracker, route server and video queue for the CLI.
type Service struct {
	database  Database
	server    Server
	vault     Vault
	encryptor Encryptor
	logger    Logger
	reporter  CrashReporter
	clock     Clock
	settings  Settings
}

// Option configures optional Service dependencies.
type Option func(*Service)

// WithVault archives every uploaded recording to v.
func WithVault(v Vault) Option { return func(s *Service) { s.vault = v } }

// WithEncryptor encrypts recordings before they reach the vault.
func WithEncryptor(e Encryptor) Option { return func(s *Service) { s.encryptor = e } }

// WithReporter sets the crash reporter. Defaults to NopReporter.
func WithReporter(r CrashReporter) Option { return func(s *Service) { s.reporter = r } }

// WithClock replaces the real clock.
func WithClock(c Clock) Option { return func(s *Service) { s.clock = c } }

// WithSettings replaces DefaultSettings.
func WithSettings(st Settings) Option { return func(s *Service) { s.settings = st } }

// NewService creates a Service. server may be nil for commands that stay local.
func NewService(database Database, server Server, logger Logger, opts ...Option) *Service {
	s := &Service{
		database: database,
		server:   server,
		logger:   logger,
		reporter: NopReporter{},
		clock:    RealClock{},
		settings: DefaultSettings(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = NewNopLogger()
	}
	return s
}

// Settings returns the active settings.
func (s *Service) Settings() Settings { return s.settings }

func (s *Service) requireServer() error {
	if s.server == nil {
		return fmt.Errorf("no server configured")
	}
	return nil
}

// report logs and forwards a swallowed failure.
func (s *Service) report(msg string, err error) {
	s.logger.Warn(msg, "error", err)
	s.reporter.Log(msg)
	s.reporter.RecordException(err)
}

// GetHistory returns the most recent operations, newest first.
func (s *Service) GetHistory(ctx context.Context, limit int) ([]Operation, error) {
	ops, err := s.database.ListOperations(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}
