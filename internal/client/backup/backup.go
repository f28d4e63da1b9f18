package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// ConflictStrategy определяет поведение импорта при совпадении ID
type ConflictStrategy string

// Возможные стратегии импорта
const (
	// StrategySkip оставляет локальную запись без изменений
	StrategySkip ConflictStrategy = "skip"
	// StrategyOverwrite заменяет локальную запись записью из снапшота
	StrategyOverwrite ConflictStrategy = "overwrite"
	// StrategyNewest оставляет запись с более поздним modified_at
	StrategyNewest ConflictStrategy = "newest"
)

// Manifest описывает содержимое снапшота
type Manifest struct {
	CreatedAt     time.Time `json:"created_at"`
	DeviceID      string    `json:"device_id"`
	Conversations int       `json:"conversations"`
	Messages      int       `json:"messages"`
	Encrypted     bool      `json:"encrypted"`
}

// ImportResult результат применения снапшота к локальному хранилищу
type ImportResult struct {
	Imported  int `json:"imported"`
	Skipped   int `json:"skipped"`
	Conflicts int `json:"conflicts"`
	Errors    int `json:"errors"`
}

// SnapshotExporter exports the whole local store as one snapshot blob
type SnapshotExporter interface {
	// Export writes a snapshot of every local record to w
	Export(ctx context.Context, w io.Writer) (Manifest, error)
}

// SnapshotImporter applies a snapshot blob to the local store
type SnapshotImporter interface {
	// Import reads a snapshot from r and applies it record by record
	// according to the given conflict strategy
	Import(ctx context.Context, r io.Reader, strategy ConflictStrategy) (ImportResult, error)
}

// ErrRemoteNotFound возвращается когда удаленного снапшота еще нет
var ErrRemoteNotFound = errors.New("remote snapshot not found")

// RemoteStore defines the blob storage a snapshot is mirrored to
type RemoteStore interface {
	// Stat returns the remote snapshot modification time.
	// Returns ErrRemoteNotFound when no snapshot was uploaded yet.
	Stat(ctx context.Context, name string) (time.Time, error)

	// Upload replaces the remote snapshot with the contents of r
	Upload(ctx context.Context, name string, r io.Reader) error

	// Download opens the remote snapshot for reading
	Download(ctx context.Context, name string) (io.ReadCloser, error)
}

// Action описывает что сделал цикл бэкапа
type Action string

// Возможные значения Action
const (
	ActionNone       Action = "none"
	ActionUploaded   Action = "uploaded"
	ActionDownloaded Action = "downloaded"
)

// CloudBackup зеркалирует локальный снапшот в удаленное blob-хранилище
// целиком, без инкрементальности. Направление определяется сравнением
// времени модификации файлов: более новая сторона побеждает.
type CloudBackup struct {
	exporter   SnapshotExporter
	importer   SnapshotImporter
	remote     RemoteStore
	logger     *slog.Logger
	localPath  string
	remoteName string
	strategy   ConflictStrategy
}

// NewCloudBackup создает сервис бэкапа
func NewCloudBackup(exporter SnapshotExporter, importer SnapshotImporter, remote RemoteStore, localPath, remoteName string, strategy ConflictStrategy, logger *slog.Logger) *CloudBackup {
	if strategy == "" {
		strategy = StrategyNewest
	}
	return &CloudBackup{
		exporter:   exporter,
		importer:   importer,
		remote:     remote,
		logger:     logger,
		localPath:  localPath,
		remoteName: remoteName,
		strategy:   strategy,
	}
}

// Sync экспортирует локальный снапшот и сверяет его с удаленным.
// Более новая сторона перезаписывает более старую.
func (b *CloudBackup) Sync(ctx context.Context) (Action, error) {
	if err := b.exportLocal(ctx); err != nil {
		return ActionNone, err
	}

	localInfo, err := os.Stat(b.localPath)
	if err != nil {
		return ActionNone, fmt.Errorf("failed to stat local snapshot: %w", err)
	}

	remoteTime, err := b.remote.Stat(ctx, b.remoteName)
	if err != nil {
		if errors.Is(err, ErrRemoteNotFound) {
			// Удаленного снапшота нет, первая загрузка
			return b.upload(ctx)
		}
		return ActionNone, fmt.Errorf("failed to stat remote snapshot: %w", err)
	}

	localTime := localInfo.ModTime()
	switch {
	case localTime.After(remoteTime):
		return b.upload(ctx)
	case remoteTime.After(localTime):
		return b.download(ctx)
	default:
		b.logger.Debug("snapshot up to date", "path", b.localPath)
		return ActionNone, nil
	}
}

// Upload принудительно загружает локальный снапшот
func (b *CloudBackup) Upload(ctx context.Context) (Action, error) {
	if err := b.exportLocal(ctx); err != nil {
		return ActionNone, err
	}
	return b.upload(ctx)
}

// Download принудительно скачивает и применяет удаленный снапшот
func (b *CloudBackup) Download(ctx context.Context) (Action, ImportResult, error) {
	action, result, err := b.downloadAndImport(ctx)
	return action, result, err
}

func (b *CloudBackup) exportLocal(ctx context.Context) error {
	file, err := os.Create(b.localPath)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}

	manifest, err := b.exporter.Export(ctx, file)
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to export snapshot: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot file: %w", err)
	}

	b.logger.Info("snapshot exported",
		"path", b.localPath,
		"conversations", manifest.Conversations,
		"messages", manifest.Messages)
	return nil
}

func (b *CloudBackup) upload(ctx context.Context) (Action, error) {
	file, err := os.Open(b.localPath)
	if err != nil {
		return ActionNone, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if err := b.remote.Upload(ctx, b.remoteName, file); err != nil {
		return ActionNone, fmt.Errorf("failed to upload snapshot: %w", err)
	}

	b.logger.Info("snapshot uploaded", "name", b.remoteName)
	return ActionUploaded, nil
}

func (b *CloudBackup) download(ctx context.Context) (Action, error) {
	action, result, err := b.downloadAndImport(ctx)
	if err != nil {
		return action, err
	}
	if result.Errors > 0 {
		b.logger.Warn("snapshot import finished with errors", "errors", result.Errors)
	}
	return action, nil
}

func (b *CloudBackup) downloadAndImport(ctx context.Context) (Action, ImportResult, error) {
	body, err := b.remote.Download(ctx, b.remoteName)
	if err != nil {
		return ActionNone, ImportResult{}, fmt.Errorf("failed to download snapshot: %w", err)
	}
	defer func() { _ = body.Close() }()

	result, err := b.importer.Import(ctx, body, b.strategy)
	if err != nil {
		return ActionNone, result, fmt.Errorf("failed to import snapshot: %w", err)
	}

	b.logger.Info("snapshot imported",
		"imported", result.Imported,
		"skipped", result.Skipped,
		"conflicts", result.Conflicts)
	return ActionDownloaded, result, nil
}
