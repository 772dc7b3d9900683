// Package updater replaces the camstream binary with the latest GitHub
// release and keeps one backup of the binary it replaced.
package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/smazurov/camstream/internal/logging"
	"github.com/smazurov/camstream/internal/version"
)

// DefaultRepository is the GitHub slug releases are fetched from.
const DefaultRepository = "smazurov/camstream"

var (
	// ErrUpToDate is returned by Apply when the running version is current.
	ErrUpToDate = errors.New("updater: already up to date")
	// ErrNoRelease is returned when the repository has no matching release.
	ErrNoRelease = errors.New("updater: no release found")
	// ErrNoBackup is returned by Rollback when nothing was backed up.
	ErrNoBackup = errors.New("updater: no backup available")
)

// Options configures an Updater.
type Options struct {
	Repository string // GitHub repo slug, DefaultRepository when empty
	Prerelease bool
	BackupDir  string // ~/.cache/camstream/backup when empty
	Logger     *slog.Logger
}

// Release describes the latest release relative to the running binary.
type Release struct {
	CurrentVersion  string    `json:"current_version"`
	LatestVersion   string    `json:"latest_version"`
	ReleaseNotes    string    `json:"release_notes,omitempty"`
	ReleaseURL      string    `json:"release_url,omitempty"`
	PublishedAt     time.Time `json:"published_at"`
	AssetSize       int       `json:"asset_size"`
	UpdateAvailable bool      `json:"update_available"`
}

// Updater checks, applies and rolls back releases.
type Updater struct {
	repo    selfupdate.Repository
	updater *selfupdate.Updater
	backups *backupStore
	logger  *slog.Logger
}

// New creates an updater backed by the GitHub releases API.
func New(opts Options) (*Updater, error) {
	if opts.Repository == "" {
		opts.Repository = DefaultRepository
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("updater")
	}

	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, fmt.Errorf("create GitHub source: %w", err)
	}
	up, err := selfupdate.NewUpdater(selfupdate.Config{
		Source:     source,
		Prerelease: opts.Prerelease,
	})
	if err != nil {
		return nil, fmt.Errorf("create updater: %w", err)
	}

	backups, err := newBackupStore(opts.BackupDir, opts.Logger)
	if err != nil {
		return nil, err
	}

	return &Updater{
		repo:    selfupdate.ParseSlug(opts.Repository),
		updater: up,
		backups: backups,
		logger:  opts.Logger,
	}, nil
}

// Check queries the latest release without downloading it.
func (u *Updater) Check(ctx context.Context) (Release, error) {
	info, _, err := u.latest(ctx)
	return info, err
}

func (u *Updater) latest(ctx context.Context) (Release, *selfupdate.Release, error) {
	current := version.Version
	rel, found, err := u.updater.DetectLatest(ctx, u.repo)
	if err != nil {
		return Release{CurrentVersion: current}, nil, fmt.Errorf("check for updates: %w", err)
	}
	if !found {
		return Release{CurrentVersion: current}, nil, ErrNoRelease
	}

	info := Release{
		CurrentVersion:  current,
		LatestVersion:   rel.Version(),
		ReleaseNotes:    rel.ReleaseNotes,
		ReleaseURL:      rel.URL,
		PublishedAt:     rel.PublishedAt,
		AssetSize:       rel.AssetByteSize,
		UpdateAvailable: newer(current, rel.GreaterThan),
	}
	return info, rel, nil
}

// newer reports whether a release beats current. Dev builds are always
// considered outdated.
func newer(current string, greaterThan func(string) bool) bool {
	return current == "dev" || greaterThan(current)
}

// Apply backs up the running binary and replaces it with the latest
// release. The old binary is restored when the replacement fails. The
// caller restarts the service.
func (u *Updater) Apply(ctx context.Context) (Release, error) {
	info, rel, err := u.latest(ctx)
	if err != nil {
		return info, err
	}
	if !info.UpdateAvailable {
		return info, ErrUpToDate
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return info, fmt.Errorf("locate executable: %w", err)
	}
	if err := u.backups.save(exe, info.CurrentVersion); err != nil {
		return info, fmt.Errorf("backup: %w", err)
	}

	u.logger.Info("Applying update", "from", info.CurrentVersion, "to", info.LatestVersion)
	if err := u.updater.UpdateTo(ctx, rel, exe); err != nil {
		if _, restoreErr := u.backups.restore(); restoreErr != nil {
			u.logger.Error("Restoring backup failed", "error", restoreErr)
		}
		return info, fmt.Errorf("apply update: %w", err)
	}

	u.logger.Info("Update applied", "version", info.LatestVersion)
	return info, nil
}

// Rollback restores the binary saved by the last Apply and returns its
// version.
func (u *Updater) Rollback() (string, error) {
	info, err := u.backups.restore()
	if err != nil {
		return "", err
	}
	return info.Version, nil
}
