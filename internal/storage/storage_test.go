package storage

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	minioUser     = "minioadmin"
	minioPassword = "minioadmin"
)

// newTestMinIO starts a MinIO container and returns its host:port endpoint
func newTestMinIO(t *testing.T) string {
	t.Helper()

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:RELEASE.2024-01-16T16-07-38Z",
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     minioUser,
				"MINIO_ROOT_PASSWORD": minioPassword,
			},
			Cmd: []string{"server", "/data"},
			WaitingFor: wait.ForHTTP("/minio/health/live").
				WithPort("9000/tcp").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start minio container: %v", err)
	}
	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	endpoint, err := container.PortEndpoint(ctx, "9000/tcp", "")
	if err != nil {
		t.Fatalf("failed to get minio endpoint: %v", err)
	}
	return endpoint
}

func TestStorage_ObjectLifecycle(t *testing.T) {
	endpoint := newTestMinIO(t)
	ctx := context.Background()

	cfg := Config{
		Endpoint:  endpoint,
		AccessKey: minioUser,
		SecretKey: minioPassword,
		Bucket:    "videos",
	}
	store, err := New(ctx, cfg)
	require.NoError(t, err)

	// A second client finds the bucket already there.
	_, err = New(ctx, cfg)
	require.NoError(t, err)

	key := VideoKey(uuid.New(), uuid.New())
	content := "not really a video"
	require.NoError(t, store.Upload(ctx, key, strings.NewReader(content), int64(len(content)), "video/mp4"))

	info, err := store.client.StatObject(ctx, cfg.Bucket, key, minio.StatObjectOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), info.Size)
	assert.Equal(t, "video/mp4", info.ContentType)

	url, err := store.PresignedURL(ctx, key, 15*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, key)

	resp, err := http.Get(url)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, content, string(body))

	require.NoError(t, store.Delete(ctx, key))

	_, err = store.client.StatObject(ctx, cfg.Bucket, key, minio.StatObjectOptions{})
	require.Error(t, err)
	assert.Equal(t, "NoSuchKey", minio.ToErrorResponse(err).Code)

	// Removing a missing object is not an error in S3 semantics.
	assert.NoError(t, store.Delete(ctx, key))
}

func TestVideoKey(t *testing.T) {
	companyID := uuid.MustParse("7b0c7c1e-5a43-4d5b-9a59-3d1bd6b7f1a2")
	videoID := uuid.MustParse("0f7e8a7c-1111-4c3b-8f4e-2d9b3c4a5e6f")

	key := VideoKey(companyID, videoID)

	assert.Equal(t, "companies/7b0c7c1e-5a43-4d5b-9a59-3d1bd6b7f1a2/videos/0f7e8a7c-1111-4c3b-8f4e-2d9b3c4a5e6f", key)
	assert.NotEqual(t, key, VideoKey(uuid.New(), videoID), "keys are namespaced per company")
}
