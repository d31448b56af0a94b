package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/samber/lo"

	"github.com/dmitrijs2005/dekinai/internal/common"
	"github.com/dmitrijs2005/dekinai/internal/cryptox"
	"github.com/dmitrijs2005/dekinai/internal/dbx"
	"github.com/dmitrijs2005/dekinai/internal/logging"
	sc "github.com/dmitrijs2005/dekinai/internal/server/config"
	"github.com/dmitrijs2005/dekinai/internal/server/models"
	"github.com/dmitrijs2005/dekinai/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/dekinai/internal/server/storage"
	"github.com/dmitrijs2005/dekinai/internal/shared"
)

// FileService owns the upload and deletion protocol: identifier allocation
// against the ledger, streaming into the blob store and secret checks.
type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       storage.Store
	hasher      cryptox.Hasher
	generator   shared.TextGenerator
	blacklist   []string
	maxAttempts int
	apiKeyHash  string
	logger      logging.Logger
}

// UploadResult carries what the client needs to build both URLs. Secret is
// the only copy of the plaintext deletion secret.
type UploadResult struct {
	Filename string
	Secret   string
}

// NewFileService builds the service from config. The global password, if
// any, is hashed here and the plaintext is not retained.
func NewFileService(db *sql.DB, repomanager repomanager.RepositoryManager, store storage.Store, config *sc.Config, logger logging.Logger) (*FileService, error) {
	hasher, err := cryptox.NewHasher(config.HashAlgorithm)
	if err != nil {
		return nil, err
	}

	maxAttempts := config.MaxReserveAttempts
	if maxAttempts <= 0 {
		maxAttempts = common.DefaultMaxReserveAttempts
	}

	s := &FileService{
		db:          db,
		repomanager: repomanager,
		store:       store,
		hasher:      hasher,
		generator:   shared.AlphanumericGenerator{},
		blacklist:   sc.NormalizeBlacklist(config.Blacklist),
		maxAttempts: maxAttempts,
		logger:      logger.With("module", "files"),
	}

	if config.Password != "" {
		if s.apiKeyHash, err = hasher.Hash(config.Password); err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
	}

	return s, nil
}

// PasswordRequired reports whether uploads need the X-Api-Key header.
func (s *FileService) PasswordRequired() bool {
	return s.apiKeyHash != ""
}

// Authorize checks apiKey against the global password. Without a configured
// password every key, including none, is accepted.
func (s *FileService) Authorize(ctx context.Context, apiKey string) error {
	if s.apiKeyHash == "" {
		return nil
	}
	if apiKey == "" {
		return common.ErrorUnauthorized
	}

	ok, err := s.hasher.Verify(s.apiKeyHash, apiKey)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	if !ok {
		return common.ErrorUnauthorized
	}
	return nil
}

// IsBlacklisted reports whether ext (already lowercased) is refused.
func (s *FileService) IsBlacklisted(ext string) bool {
	return lo.Contains(s.blacklist, ext)
}

// Allocate reserves a fresh public filename with extension ext and returns
// the ledger row plus the plaintext deletion secret.
//
// The ledger's unique key decides the winner between concurrent writers.
// A row whose blob name is already taken on disk is released and the loop
// moves on. Past maxAttempts reservations the result is
// common.ErrorAllocationExhausted wrapped in common.ErrorInternal.
func (s *FileService) Allocate(ctx context.Context, ext string) (*models.Upload, string, error) {
	repo := s.repomanager.Uploads(s.db)

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		secret := s.generator.RandomText(common.SecretLength)
		hash, err := s.hasher.Hash(secret)
		if err != nil {
			return nil, "", fmt.Errorf("%w: hash secret: %w", common.ErrorInternal, err)
		}

		u := &models.Upload{
			FileStem:           s.generator.RandomText(common.StemLength),
			FileExtension:      ext,
			DeletionSecretHash: hash,
		}

		ok, err := repo.Reserve(ctx, u)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %w", common.ErrorInternal, err)
		}
		if !ok {
			s.logger.Debug(ctx, "filename taken in ledger, retrying", "file", u.Filename(), "attempt", attempt)
			continue
		}

		exists, err := s.store.Exists(ctx, u.Filename())
		if err != nil {
			s.release(ctx, u)
			return nil, "", fmt.Errorf("%w: %w", common.ErrorInternal, err)
		}
		if exists {
			s.logger.Warn(ctx, "blob exists without ledger row, retrying", "file", u.Filename(), "attempt", attempt)
			s.release(ctx, u)
			continue
		}

		return u, secret, nil
	}

	return nil, "", fmt.Errorf("%w: %w after %d attempts", common.ErrorInternal, common.ErrorAllocationExhausted, s.maxAttempts)
}

// Upload stores body under a freshly allocated name derived from the
// client filename. On any failure after allocation both the partial blob
// and the ledger row are removed.
func (s *FileService) Upload(ctx context.Context, clientName string, body io.Reader) (*UploadResult, error) {
	ext := Extension(clientName)
	if !ValidExtension(ext) {
		return nil, fmt.Errorf("%w: extension %q is not allowed", common.ErrorBadRequest, ext)
	}
	if s.IsBlacklisted(ext) {
		return nil, fmt.Errorf("%w: extension %q is not allowed", common.ErrorBadRequest, ext)
	}

	u, secret, err := s.Allocate(ctx, ext)
	if err != nil {
		return nil, err
	}
	name := u.Filename()

	w, err := s.store.Create(ctx, name)
	if err != nil {
		s.release(ctx, u)
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	n, err := io.Copy(w, body)
	if err == nil {
		err = w.Commit(ctx)
	}
	if err != nil {
		cleanupCtx := context.WithoutCancel(ctx)
		if abortErr := w.Abort(cleanupCtx); abortErr != nil {
			s.logger.Warn(ctx, "failed to remove partial upload", "file", name, "error", abortErr)
		}
		s.release(ctx, u)
		return nil, fmt.Errorf("%w: write %s: %w", common.ErrorInternal, name, err)
	}

	s.logger.Info(ctx, "upload stored", "file", name, "bytes", n)

	return &UploadResult{Filename: name, Secret: secret}, nil
}

// release drops a reserved row on a context detached from the request, so
// a cancelled upload still cleans up after itself.
func (s *FileService) release(ctx context.Context, u *models.Upload) {
	cleanupCtx := context.WithoutCancel(ctx)
	if err := s.repomanager.Uploads(s.db).Delete(cleanupCtx, u.FileStem, u.FileExtension); err != nil {
		s.logger.Warn(ctx, "failed to release ledger row", "file", u.Filename(), "error", err)
	}
}

// Delete removes filename if secret matches its stored hash.
//
//   - no blob: the ledger key is dropped anyway and common.ErrorNotFound returned
//   - blob but no ledger row, or wrong secret: common.ErrorUnauthorized, nothing changes
//   - match: the row is deleted, then the blob; a failed blob removal is only logged
func (s *FileService) Delete(ctx context.Context, filename, secret string) error {
	stem, ext, err := SplitFilename(filename)
	if err != nil {
		return err
	}

	exists, err := s.store.Exists(ctx, filename)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	if !exists {
		if err := s.repomanager.Uploads(s.db).Delete(ctx, stem, ext); err != nil {
			return fmt.Errorf("%w: %w", common.ErrorInternal, err)
		}
		return common.ErrorNotFound
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Uploads(tx)

		hash, err := repo.GetSecretHash(ctx, stem, ext)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorUnauthorized
			}
			return err
		}

		ok, err := s.hasher.Verify(hash, secret)
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrorUnauthorized
		}

		return repo.Delete(ctx, stem, ext)
	})
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			return err
		}
		return fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	if err := s.store.Remove(context.WithoutCancel(ctx), filename); err != nil {
		s.logger.Warn(ctx, "ledger row deleted but blob removal failed", "file", filename, "error", err)
	}

	s.logger.Info(ctx, "upload deleted", "file", filename)

	return nil
}

// Open returns the stored blob for download.
func (s *FileService) Open(ctx context.Context, filename string) (*storage.Object, error) {
	if _, _, err := SplitFilename(filename); err != nil {
		return nil, err
	}

	obj, err := s.store.Open(ctx, filename)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	return obj, nil
}

// Ping checks the ledger connection.
func (s *FileService) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
