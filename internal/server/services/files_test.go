package services

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/dekinai/internal/common"
	"github.com/dmitrijs2005/dekinai/internal/cryptox"
	"github.com/dmitrijs2005/dekinai/internal/logging"
	sc "github.com/dmitrijs2005/dekinai/internal/server/config"
	"github.com/dmitrijs2005/dekinai/internal/server/models"
	"github.com/dmitrijs2005/dekinai/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/dekinai/internal/server/storage"
	"github.com/dmitrijs2005/dekinai/internal/shared"
)

// scriptedGenerator hands out the queued stems in order, then random ones.
// Secrets are always random and recorded.
type scriptedGenerator struct {
	mu      sync.Mutex
	stems   []string
	repeat  string
	calls   int
	secrets []string
}

func (g *scriptedGenerator) RandomText(n int) string {
	if n != common.StemLength {
		s := shared.RandomText(n)
		g.mu.Lock()
		g.secrets = append(g.secrets, s)
		g.mu.Unlock()
		return s
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.repeat != "" {
		return g.repeat
	}
	if len(g.stems) == 0 {
		return shared.RandomText(n)
	}
	s := g.stems[0]
	g.stems = g.stems[1:]
	return s
}

type fixture struct {
	svc   *FileService
	db    *sql.DB
	rm    repomanager.RepositoryManager
	dir   string
	store storage.Store
}

func newFixture(t *testing.T, mutate ...func(*sc.Config)) *fixture {
	t.Helper()
	ctx := context.Background()

	dir := t.TempDir()
	db, rm, err := repomanager.Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "ledger.sqlite"), 4, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := storage.NewLocalStore(dir)
	require.NoError(t, err)

	cfg := &sc.Config{}
	cfg.LoadDefaults()
	for _, m := range mutate {
		m(cfg)
	}

	svc, err := NewFileService(db, rm, store, cfg, logging.NewNop())
	require.NoError(t, err)
	svc.hasher = &cryptox.PBKDF2Hasher{Iterations: 1}

	return &fixture{svc: svc, db: db, rm: rm, dir: dir, store: store}
}

func (f *fixture) rowCount(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM uploads`).Scan(&n))
	return n
}

func (f *fixture) hasRow(t *testing.T, stem, ext string) bool {
	t.Helper()
	_, err := f.rm.Uploads(f.db).GetSecretHash(context.Background(), stem, ext)
	if errors.Is(err, common.ErrorNotFound) {
		return false
	}
	require.NoError(t, err)
	return true
}

func (f *fixture) fileCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	return len(entries)
}

func TestUpload_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Upload(ctx, "greeting.TXT", strings.NewReader("hello"))
	require.NoError(t, err)

	assert.Len(t, res.Secret, common.SecretLength)
	assert.True(t, strings.HasSuffix(res.Filename, ".txt"))
	assert.Len(t, strings.TrimSuffix(res.Filename, ".txt"), common.StemLength)

	b, err := os.ReadFile(filepath.Join(f.dir, res.Filename))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	obj, err := f.svc.Open(ctx, res.Filename)
	require.NoError(t, err)
	defer obj.Body.Close()
	got, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	hash, err := f.rm.Uploads(f.db).GetSecretHash(ctx, strings.TrimSuffix(res.Filename, ".txt"), "txt")
	require.NoError(t, err)
	assert.NotContains(t, hash, res.Secret, "secret must not be stored in plaintext")
}

func TestUpload_NoExtension(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Upload(context.Background(), "Makefile", strings.NewReader("all:"))
	require.NoError(t, err)
	assert.Len(t, res.Filename, common.StemLength)
	assert.True(t, f.hasRow(t, res.Filename, ""))
}

func TestUpload_BlacklistedExtensionTouchesNothing(t *testing.T) {
	f := newFixture(t, func(c *sc.Config) { c.Blacklist = []string{"PDF", ".exe"} })

	for _, name := range []string{"report.PDF", "setup.exe"} {
		_, err := f.svc.Upload(context.Background(), name, strings.NewReader("data"))
		assert.ErrorIs(t, err, common.ErrorBadRequest, name)
	}

	assert.Zero(t, f.rowCount(t))
	assert.Zero(t, f.fileCount(t))
}

func TestAllocate_DistinctStems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 200
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		u, secret, err := f.svc.Allocate(ctx, "bin")
		require.NoError(t, err)
		assert.Len(t, secret, common.SecretLength)
		seen[u.FileStem] = struct{}{}
	}

	assert.Len(t, seen, n)
	assert.Equal(t, n, f.rowCount(t))
}

func TestAllocate_SkipsReservedStemUntilReleased(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := f.rm.Uploads(f.db)

	ok, err := repo.Reserve(ctx, &models.Upload{FileStem: "AAAAAAAA", FileExtension: "txt", DeletionSecretHash: "seed"})
	require.NoError(t, err)
	require.True(t, ok)

	gen := &scriptedGenerator{stems: []string{"AAAAAAAA", "CCCCCCCC"}}
	f.svc.generator = gen

	u, _, err := f.svc.Allocate(ctx, "txt")
	require.NoError(t, err)
	assert.Equal(t, "CCCCCCCC", u.FileStem)
	assert.Equal(t, 2, gen.calls)

	// Same stem with another extension is a different key.
	gen.stems = []string{"AAAAAAAA"}
	u, _, err = f.svc.Allocate(ctx, "png")
	require.NoError(t, err)
	assert.Equal(t, "AAAAAAAA", u.FileStem)

	require.NoError(t, repo.Delete(ctx, "AAAAAAAA", "txt"))
	gen.stems = []string{"AAAAAAAA"}
	u, _, err = f.svc.Allocate(ctx, "txt")
	require.NoError(t, err)
	assert.Equal(t, "AAAAAAAA", u.FileStem)
}

func TestAllocate_BlobWithoutRowIsSkippedAndReleased(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "AAAAAAAA.txt"), []byte("stray"), 0o644))

	gen := &scriptedGenerator{stems: []string{"AAAAAAAA", "DDDDDDDD"}}
	f.svc.generator = gen

	u, secret, err := f.svc.Allocate(context.Background(), "txt")
	require.NoError(t, err)
	assert.Equal(t, "DDDDDDDD", u.FileStem)
	assert.False(t, f.hasRow(t, "AAAAAAAA", "txt"), "row taken for the stray blob must be released")
	assert.Equal(t, 1, f.rowCount(t))

	// Each attempt draws its own secret; the winner's hash matches the last one.
	require.Len(t, gen.secrets, 2)
	assert.NotEqual(t, gen.secrets[0], gen.secrets[1])
	assert.Equal(t, gen.secrets[1], secret)
	ok, err := f.svc.hasher.Verify(u.DeletionSecretHash, secret)
	require.NoError(t, err)
	assert.True(t, ok)
}

// cancelOnExists reports the first name as taken and cancels the request
// context while doing so.
type cancelOnExists struct {
	storage.Store
	cancel context.CancelFunc
	once   sync.Once
}

func (s *cancelOnExists) Exists(ctx context.Context, name string) (bool, error) {
	taken := false
	s.once.Do(func() {
		s.cancel()
		taken = true
	})
	if taken {
		return true, nil
	}
	return s.Store.Exists(ctx, name)
}

func TestAllocate_StrayBlobReleaseSurvivesCancellation(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.svc.store = &cancelOnExists{Store: f.store, cancel: cancel}
	f.svc.generator = &scriptedGenerator{stems: []string{"AAAAAAAA"}}

	_, _, err := f.svc.Allocate(ctx, "txt")
	require.Error(t, err)
	assert.False(t, f.hasRow(t, "AAAAAAAA", "txt"))
	assert.Zero(t, f.rowCount(t))
}

func TestUpload_UnsafeExtensionTouchesNothing(t *testing.T) {
	f := newFixture(t)

	for _, name := range []string{"a.b#c", "a.b?c", "a.100%", "a.b c"} {
		_, err := f.svc.Upload(context.Background(), name, strings.NewReader("data"))
		assert.ErrorIs(t, err, common.ErrorBadRequest, name)
	}

	assert.Zero(t, f.rowCount(t))
	assert.Zero(t, f.fileCount(t))
}

func TestAllocate_GivesUpAfterCeiling(t *testing.T) {
	f := newFixture(t, func(c *sc.Config) { c.MaxReserveAttempts = 5 })
	ctx := context.Background()

	ok, err := f.rm.Uploads(f.db).Reserve(ctx, &models.Upload{FileStem: "AAAAAAAA", FileExtension: "txt", DeletionSecretHash: "seed"})
	require.NoError(t, err)
	require.True(t, ok)

	gen := &scriptedGenerator{repeat: "AAAAAAAA"}
	f.svc.generator = gen

	_, _, err = f.svc.Allocate(ctx, "txt")
	assert.ErrorIs(t, err, common.ErrorAllocationExhausted)
	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.Equal(t, 5, gen.calls)
	assert.Equal(t, 1, f.rowCount(t))
}

func TestAllocate_ConcurrentCollisionHasOneWinner(t *testing.T) {
	f := newFixture(t)
	f.svc.generator = &scriptedGenerator{stems: []string{"AAAAAAAA", "AAAAAAAA", "BBBBBBBB"}}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		stems []string
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, _, err := f.svc.Allocate(context.Background(), "txt")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			stems = append(stems, u.FileStem)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []string{"AAAAAAAA", "BBBBBBBB"}, stems)
	assert.Equal(t, 2, f.rowCount(t))
}

func TestUpload_ReadFailureRollsBack(t *testing.T) {
	f := newFixture(t)

	body := io.MultiReader(strings.NewReader("partial"), iotest.ErrReader(errors.New("client gone")))
	_, err := f.svc.Upload(context.Background(), "big.iso", body)

	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.ErrorContains(t, err, "client gone")
	assert.Zero(t, f.rowCount(t))
	assert.Zero(t, f.fileCount(t))
}

func TestUpload_CancelledContextStillCleansUp(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	body := &cancelOnRead{cancel: cancel}
	_, err := f.svc.Upload(ctx, "x.bin", body)

	require.Error(t, err)
	assert.Zero(t, f.rowCount(t))
	assert.Zero(t, f.fileCount(t))
}

// cancelOnRead cancels the request context and then fails, like a client
// hanging up mid-body.
type cancelOnRead struct{ cancel context.CancelFunc }

func (r *cancelOnRead) Read([]byte) (int, error) {
	r.cancel()
	return 0, context.Canceled
}

type failingStore struct {
	storage.Store
	createErr error
	commitErr error
	removeErr error
}

func (s *failingStore) Create(ctx context.Context, name string) (storage.Writer, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	w, err := s.Store.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	return &failingWriter{Writer: w, commitErr: s.commitErr}, nil
}

func (s *failingStore) Remove(ctx context.Context, name string) error {
	if s.removeErr != nil {
		return s.removeErr
	}
	return s.Store.Remove(ctx, name)
}

type failingWriter struct {
	storage.Writer
	commitErr error
}

func (w *failingWriter) Commit(ctx context.Context) error {
	if w.commitErr != nil {
		return w.commitErr
	}
	return w.Writer.Commit(ctx)
}

func TestUpload_StoreFailuresRollBack(t *testing.T) {
	tests := []struct {
		name  string
		store func(storage.Store) storage.Store
	}{
		{"create fails", func(s storage.Store) storage.Store {
			return &failingStore{Store: s, createErr: errors.New("disk full")}
		}},
		{"commit fails", func(s storage.Store) storage.Store {
			return &failingStore{Store: s, commitErr: errors.New("disk full")}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.svc.store = tt.store(f.store)

			_, err := f.svc.Upload(context.Background(), "a.txt", strings.NewReader("hello"))
			assert.ErrorIs(t, err, common.ErrorInternal)
			assert.ErrorContains(t, err, "disk full")
			assert.Zero(t, f.rowCount(t))
			assert.Zero(t, f.fileCount(t))
		})
	}
}

func TestDelete_WithCorrectSecret(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Upload(ctx, "a.txt", strings.NewReader("hello"))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, res.Filename, res.Secret))
	assert.Zero(t, f.rowCount(t))
	assert.Zero(t, f.fileCount(t))

	assert.ErrorIs(t, f.svc.Delete(ctx, res.Filename, res.Secret), common.ErrorNotFound)
}

func TestDelete_WrongSecretLeavesStateIntact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Upload(ctx, "a.txt", strings.NewReader("hello"))
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Delete(ctx, res.Filename, "not-the-secret"), common.ErrorUnauthorized)
	assert.Equal(t, 1, f.rowCount(t))
	assert.Equal(t, 1, f.fileCount(t))

	require.NoError(t, f.svc.Delete(ctx, res.Filename, res.Secret))
}

func TestDelete_BlobWithoutRowIsUnauthorized(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "EEEEEEEE.txt"), []byte("stray"), 0o644))

	err := f.svc.Delete(context.Background(), "EEEEEEEE.txt", "anything")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	assert.Equal(t, 1, f.fileCount(t))
}

func TestDelete_RowWithoutBlobIsReconciled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.rm.Uploads(f.db).Reserve(ctx, &models.Upload{FileStem: "FFFFFFFF", FileExtension: "txt", DeletionSecretHash: "seed"})
	require.NoError(t, err)
	require.True(t, ok)

	assert.ErrorIs(t, f.svc.Delete(ctx, "FFFFFFFF.txt", "anything"), common.ErrorNotFound)
	assert.False(t, f.hasRow(t, "FFFFFFFF", "txt"))
}

func TestDelete_BlobRemovalFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Upload(ctx, "a.txt", strings.NewReader("hello"))
	require.NoError(t, err)

	f.svc.store = &failingStore{Store: f.store, removeErr: errors.New("permission denied")}

	require.NoError(t, f.svc.Delete(ctx, res.Filename, res.Secret))
	assert.Zero(t, f.rowCount(t))
	assert.Equal(t, 1, f.fileCount(t), "orphaned blob is tolerated")
}

func TestDelete_InvalidFilename(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), "..", "x"), common.ErrorBadRequest)
}

func TestOpen_Missing(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Open(context.Background(), "GGGGGGGG.txt")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = f.svc.Open(context.Background(), "../secret")
	assert.ErrorIs(t, err, common.ErrorBadRequest)
}

func TestAuthorize(t *testing.T) {
	open := newFixture(t)
	assert.False(t, open.svc.PasswordRequired())
	assert.NoError(t, open.svc.Authorize(context.Background(), ""))

	locked := newFixture(t, func(c *sc.Config) { c.Password = "hunter2" })
	assert.True(t, locked.svc.PasswordRequired())
	assert.NoError(t, locked.svc.Authorize(context.Background(), "hunter2"))
	assert.ErrorIs(t, locked.svc.Authorize(context.Background(), "hunter3"), common.ErrorUnauthorized)
	assert.ErrorIs(t, locked.svc.Authorize(context.Background(), ""), common.ErrorUnauthorized)
}

func TestNewFileService_UnknownHash(t *testing.T) {
	cfg := &sc.Config{HashAlgorithm: "md5"}
	_, err := NewFileService(nil, nil, nil, cfg, logging.NewNop())
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.svc.Ping(context.Background()))
}
