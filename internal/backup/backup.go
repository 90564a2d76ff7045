// Package backup takes point-in-time copies of the database, optionally
// encrypts them and ships them to S3-compatible storage.
package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "modernc.org/sqlite"

	"github.com/dukerupert/surplus/internal/clock"
	"github.com/dukerupert/surplus/internal/database"
	"github.com/dukerupert/surplus/internal/metrics"
	"github.com/dukerupert/surplus/internal/model"
)

const (
	namePrefix = "food_waste_backup_"
	nameLayout = "20060102_150405"
	// EncryptedExt is appended to encrypted backup files.
	EncryptedExt = ".enc"
)

// DefaultName returns the timestamped file name used when no target is given.
func DefaultName(t time.Time) string {
	return namePrefix + t.Format(nameLayout) + ".db"
}

// Snapshot writes a consistent copy of db to target using VACUUM INTO, which
// reads through SQLite's own locking rather than copying file bytes. It
// refuses to overwrite an existing file.
func Snapshot(ctx context.Context, db *sql.DB, target string) error {
	if _, err := os.Stat(target); err == nil {
		return fmt.Errorf("%w: %s already exists", database.ErrStorageUnavailable, target)
	}
	if dir := filepath.Dir(target); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create backup dir: %w", database.ErrStorageUnavailable, err)
		}
	}
	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", target); err != nil {
		return fmt.Errorf("vacuum into: %w", database.Classify(err))
	}
	return nil
}

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
}

func (c S3Config) enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Config holds backup manager configuration.
type Config struct {
	Dir           string
	RetentionDays int
	// Interval between scheduled backups. Zero disables the schedule.
	Interval   time.Duration
	Passphrase string
	S3         S3Config
}

// State represents the backup manager state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateError   State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	LastPath   string     `json:"last_path,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
	Remote     bool       `json:"remote"`
}

// StatusCallback is called whenever the backup state changes.
type StatusCallback func(Status)

// Options control a single backup run.
type Options struct {
	// Target overrides the generated file name. Relative names land in the
	// configured backup dir.
	Target  string
	Encrypt bool
	Upload  bool
	// Passphrase overrides Config.Passphrase for this run.
	Passphrase string
}

// Result describes a finished backup.
type Result struct {
	Path      string `json:"path"`
	Encrypted bool   `json:"encrypted"`
	Key       string `json:"key,omitempty"`
	SizeBytes int64  `json:"size_bytes"`
}

// Manager runs backups on demand and on a schedule.
type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	status   Status
	callback StatusCallback

	db     *sql.DB
	clock  clock.Clock
	logger *slog.Logger
	client s3Client

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a backup manager. Uploads are enabled only when the S3
// bucket and credentials are all set.
func NewManager(cfg Config, db *sql.DB, clk clock.Clock, logger *slog.Logger, callback StatusCallback) *Manager {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		cfg:      cfg,
		db:       db,
		clock:    clk,
		logger:   logger,
		callback: callback,
		status:   Status{State: StateIdle},
	}
	if cfg.S3.enabled() {
		m.client = newS3Client(cfg.S3)
		m.status.Remote = true
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Start begins the scheduled backup loop. It is a no-op when no interval is
// configured.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.cfg.Interval <= 0 || m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	interval := m.cfg.Interval
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.scheduled(ctx)
			}
		}
	}()
}

// Stop gracefully stops the backup loop.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (m *Manager) scheduled(ctx context.Context) {
	m.mu.RLock()
	opts := Options{Encrypt: m.cfg.Passphrase != "", Upload: m.client != nil}
	m.mu.RUnlock()

	if _, err := m.Run(ctx, opts); err != nil {
		m.logger.Error("scheduled backup failed", "error", err)
		return
	}
	if _, err := m.Cleanup(ctx); err != nil {
		m.logger.Error("backup cleanup failed", "error", err)
	}
}

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	s.Remote = m.client != nil
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

func (m *Manager) fail(err error) error {
	m.setStatus(Status{State: StateError, Error: err.Error()})
	metrics.ObserveBackup(err)
	m.logger.Error("backup failed", "error", err)
	return err
}

// Run snapshots the database, then encrypts and uploads the copy as asked.
func (m *Manager) Run(ctx context.Context, opts Options) (*Result, error) {
	m.mu.RLock()
	cfg := m.cfg
	client := m.client
	m.mu.RUnlock()

	passphrase := opts.Passphrase
	if passphrase == "" {
		passphrase = cfg.Passphrase
	}
	if opts.Encrypt && passphrase == "" {
		return nil, m.fail(errors.New("encrypted backup requested without a passphrase"))
	}
	if opts.Upload && client == nil {
		return nil, m.fail(errors.New("upload requested but S3 is not configured"))
	}

	m.setStatus(Status{State: StateRunning, InProgress: true})

	target := opts.Target
	if target == "" {
		target = DefaultName(m.clock.Now())
	}
	if !filepath.IsAbs(target) && cfg.Dir != "" && filepath.Dir(target) == "." {
		target = filepath.Join(cfg.Dir, target)
	}

	if err := Snapshot(ctx, m.db, target); err != nil {
		return nil, m.fail(err)
	}
	res := &Result{Path: target}

	if opts.Encrypt {
		encPath := target + EncryptedExt
		salt, err := GenerateSalt()
		if err != nil {
			return nil, m.fail(err)
		}
		if err := EncryptFile(target, encPath, passphrase, salt); err != nil {
			return nil, m.fail(err)
		}
		if err := os.Remove(target); err != nil {
			return nil, m.fail(fmt.Errorf("remove plaintext copy: %w", err))
		}
		res.Path = encPath
		res.Encrypted = true
	}

	info, err := os.Stat(res.Path)
	if err != nil {
		return nil, m.fail(fmt.Errorf("stat backup: %w", err))
	}
	res.SizeBytes = info.Size()

	if opts.Upload {
		key, err := m.upload(ctx, client, cfg.S3, res.Path, res.SizeBytes)
		if err != nil {
			return nil, m.fail(err)
		}
		res.Key = key
	}

	now := m.clock.Now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &now, LastPath: res.Path})
	metrics.ObserveBackup(nil)
	m.logger.Info("backup written", "path", res.Path, "bytes", res.SizeBytes, "encrypted", res.Encrypted, "key", res.Key)
	return res, nil
}

func objectKey(cfg S3Config, path string) string {
	name := filepath.Base(path)
	if cfg.Prefix == "" {
		return name
	}
	return strings.TrimSuffix(cfg.Prefix, "/") + "/" + name
}

func (m *Manager) upload(ctx context.Context, client s3Client, cfg S3Config, path string, size int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()

	key := objectKey(cfg, path)
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(cfg.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}
	return key, nil
}

// Fetch downloads the object key from S3 into dst.
func (m *Manager) Fetch(ctx context.Context, key, dst string) error {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	m.mu.RUnlock()

	if client == nil {
		return errors.New("backup not configured: S3 credentials missing")
	}
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("%s already exists", dst)
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, result.Body); err != nil {
		out.Close()
		return fmt.Errorf("write downloaded file: %w", err)
	}
	return out.Close()
}

// Cleanup deletes backups in the backup dir older than the retention period,
// and their remote copies when uploads are configured. It returns the number
// of local files removed.
func (m *Manager) Cleanup(ctx context.Context) (int, error) {
	m.mu.RLock()
	cfg := m.cfg
	client := m.client
	m.mu.RUnlock()

	if cfg.Dir == "" || cfg.RetentionDays <= 0 {
		return 0, nil
	}
	files, err := List(cfg.Dir)
	if err != nil {
		return 0, err
	}

	cutoff := m.clock.Now().AddDate(0, 0, -cfg.RetentionDays)
	removed := 0
	for _, f := range files {
		if !f.ModTime.Before(cutoff) {
			continue
		}
		if err := os.Remove(f.Path); err != nil {
			return removed, fmt.Errorf("remove %s: %w", f.Path, err)
		}
		removed++
		if client == nil {
			continue
		}
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(cfg.S3.Bucket),
			Key:    aws.String(objectKey(cfg.S3, f.Path)),
		}); err != nil {
			m.logger.Warn("failed to delete remote backup", "path", f.Path, "error", err)
		}
	}
	if removed > 0 {
		m.logger.Info("old backups removed", "count", removed, "retention_days", cfg.RetentionDays)
	}
	return removed, nil
}

// File is a backup found on disk.
type File struct {
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
	Encrypted bool      `json:"encrypted"`
}

// List returns the backups in dir, newest first. A missing dir is empty.
func List(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	var files []File
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, namePrefix) {
			continue
		}
		if !strings.HasSuffix(name, ".db") && !strings.HasSuffix(name, ".db"+EncryptedExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
		files = append(files, File{
			Path:      filepath.Join(dir, name),
			SizeBytes: info.Size(),
			ModTime:   info.ModTime(),
			Encrypted: strings.HasSuffix(name, EncryptedExt),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ModTime.After(files[j].ModTime) })
	return files, nil
}

// Verify checks that path is a readable SQLite database holding the four
// domain tables. Encrypted backups are decrypted to a temp file first.
func Verify(ctx context.Context, path, passphrase string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("stat backup: %w", err)
	}
	if strings.HasSuffix(path, EncryptedExt) {
		tmp, err := os.CreateTemp("", "surplus-verify-*.db")
		if err != nil {
			return fmt.Errorf("create temp file: %w", err)
		}
		tmp.Close()
		defer os.Remove(tmp.Name())
		if err := DecryptFile(path, tmp.Name(), passphrase); err != nil {
			return err
		}
		path = tmp.Name()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}
	defer db.Close()

	var integrity string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if integrity != "ok" {
		return fmt.Errorf("integrity check failed: %s", integrity)
	}

	for _, table := range model.Tables {
		var n int
		err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
		if err != nil {
			return fmt.Errorf("check table %s: %w", table, err)
		}
		if n == 0 {
			return fmt.Errorf("backup is missing table %s", table)
		}
	}
	return nil
}
