package backup

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/drivemode/internal/database"
	"github.com/dukerupert/drivemode/internal/model"
	"github.com/dukerupert/drivemode/internal/store"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	delErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.delErr != nil {
		return nil, m.delErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3Client) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}

var testConfig = Config{
	S3:         S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret", Region: "us-east-1"},
	Passphrase: "correct horse",
}

func setupManager(t *testing.T) (*Manager, *mockS3Client, *store.BackupStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(`INSERT INTO missed_calls (number, timestamp) VALUES ('5551234567', 1700000000000)`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	bs := store.NewBackupStore(db)
	m := NewManager(testConfig, db, bs, slog.Default())
	mock := newMockS3()
	m.client = mock
	return m, mock, bs
}

func TestManagerDisabled(t *testing.T) {
	m := NewManager(Config{}, nil, nil, slog.Default())
	if m.Status().State != StateDisabled {
		t.Errorf("state = %q, want %q", m.Status().State, StateDisabled)
	}
	if m.Enabled() {
		t.Error("expected disabled")
	}
	if _, err := m.RunNow(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}

	// storage without a passphrase stays disabled
	noPass := NewManager(Config{S3: testConfig.S3}, nil, nil, slog.Default())
	if noPass.Enabled() {
		t.Error("expected disabled without passphrase")
	}
}

func TestManagerEnabled(t *testing.T) {
	m := NewManager(testConfig, nil, nil, slog.Default())
	if m.Status().State != StateIdle {
		t.Errorf("state = %q, want %q", m.Status().State, StateIdle)
	}
}

func TestRunNowUploadsEncryptedSnapshot(t *testing.T) {
	m, mock, _ := setupManager(t)

	record, err := m.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run now: %v", err)
	}
	if record.Status != model.BackupStatusCompleted {
		t.Errorf("status = %q, want completed", record.Status)
	}

	sealed, ok := mock.get(record.S3Key)
	if !ok {
		t.Fatalf("object %q not uploaded", record.S3Key)
	}
	if record.SizeBytes != int64(len(sealed)) {
		t.Errorf("size = %d, want %d", record.SizeBytes, len(sealed))
	}

	plain, err := Decrypt(sealed, testConfig.Passphrase)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	path := filepath.Join(t.TempDir(), "restored.db")
	if err := os.WriteFile(path, plain, 0600); err != nil {
		t.Fatalf("write restored: %v", err)
	}
	restored, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open restored: %v", err)
	}
	defer restored.Close()

	var n int
	if err := restored.QueryRow(`SELECT COUNT(*) FROM missed_calls`).Scan(&n); err != nil {
		t.Fatalf("query restored: %v", err)
	}
	if n != 1 {
		t.Errorf("restored missed_calls = %d, want 1", n)
	}

	if st := m.Status(); st.State != StateIdle || st.LastBackup == nil {
		t.Errorf("status = %+v", st)
	}
}

func TestRunNowUploadFailure(t *testing.T) {
	m, mock, bs := setupManager(t)
	mock.putErr = errors.New("bucket unreachable")

	if _, err := m.RunNow(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	list, _ := bs.List(10)
	if len(list) != 1 || list[0].Status != model.BackupStatusFailed {
		t.Fatalf("records = %+v", list)
	}
	if list[0].ErrorMessage == "" {
		t.Error("expected error message on failed record")
	}
	if m.Status().State != StateError {
		t.Errorf("state = %q, want error", m.Status().State)
	}
}

func TestRunAsync(t *testing.T) {
	m, mock, bs := setupManager(t)

	record, err := m.RunAsync(context.Background())
	if err != nil {
		t.Fatalf("run async: %v", err)
	}
	if record.Status != model.BackupStatusPending {
		t.Errorf("initial status = %q, want pending", record.Status)
	}

	m.Stop()

	got, _ := bs.GetByID(record.ID)
	if got.Status != model.BackupStatusCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if _, ok := mock.get(record.S3Key); !ok {
		t.Error("expected uploaded object")
	}
}

func TestCleanupRemovesObjects(t *testing.T) {
	m, mock, bs := setupManager(t)
	m.cfg.RetentionDays = 1

	old, _ := bs.Create("old.db.enc", "backups/old.db.enc")
	mock.objects[old.S3Key] = []byte("x")
	if _, err := m.db.Exec(`UPDATE backups SET created_at = ? WHERE id = ?`, time.Now().UTC().AddDate(0, 0, -3), old.ID); err != nil {
		t.Fatalf("age record: %v", err)
	}
	fresh, _ := bs.Create("new.db.enc", "backups/new.db.enc")

	if err := m.Cleanup(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	if _, ok := mock.get(old.S3Key); ok {
		t.Error("old object should be deleted")
	}
	if got, _ := bs.GetByID(old.ID); got != nil {
		t.Error("old record should be deleted")
	}
	if got, _ := bs.GetByID(fresh.ID); got == nil {
		t.Error("fresh record should remain")
	}
}

func TestManagerStopSafety(t *testing.T) {
	m, _, _ := setupManager(t)
	m.cfg.Interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	cancel()
	m.Stop()
	m.Stop()
}
