package minio

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/config"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/storage"
)

// Интеграционные тесты для пакета minio:
// — поднимают MinIO через testcontainers-go и создают бакет media;
// — проверяют выдачу presigned PUT, валидацию типа/размера,
//   подтверждение загрузки и ошибки на чужой/несуществующий ключ.
//
// Запуск:
//   GO_TEST_INTEGRATION=1 go test ./internal/storage/minio -v -race -count=1

const (
	rootUser     = "root"
	rootPassword = "rootpass"
	bucket       = "media"
)

func startMinio(t *testing.T) (*MediaStorage, string) {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image: "docker.io/minio/minio:latest",
		Env: map[string]string{
			"MINIO_ROOT_USER":     rootUser,
			"MINIO_ROOT_PASSWORD": rootPassword,
		},
		Cmd:          []string{"server", "/data"},
		ExposedPorts: []string{"9000/tcp"},
		WaitingFor:   wait.ForListeningPort("9000/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, _ := c.Host(ctx)
	port, _ := c.MappedPort(ctx, "9000/tcp")
	endpoint := fmt.Sprintf("http://%s:%s", host, port.Port())

	admin, err := mclient.New(host+":"+port.Port(), &mclient.Options{
		Creds: credentials.NewStaticV4(rootUser, rootPassword, ""),
	})
	require.NoError(t, err)
	require.NoError(t, admin.MakeBucket(ctx, bucket, mclient.MakeBucketOptions{Region: "us-east-1"}))

	st, err := New(ctx, s3Config(endpoint, "http://cdn.local/"), mediaConfig())
	require.NoError(t, err)

	return st, endpoint
}

func s3Config(endpoint, public string) config.S3Config {
	return config.S3Config{
		Endpoint:      endpoint,
		RootUser:      rootUser,
		RootPassword:  rootPassword,
		Bucket:        bucket,
		PresignTTL:    time.Minute,
		PublicBaseURL: public,
	}
}

func mediaConfig() config.MediaConfig {
	return config.MediaConfig{MaxSizeBytes: 1 << 20, AllowedContentTypes: []string{"image/png", "image/jpeg"}}
}

func put(t *testing.T, info *storage.UploadInfo, body []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPut, info.UploadURL, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", info.RequiredHeader["Content-Type"])
	req.ContentLength = int64(len(body))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Less(t, resp.StatusCode, 300, "PUT must succeed")
}

func TestIntegration_MediaUploadURL_And_Confirm_OK(t *testing.T) {
	st, _ := startMinio(t)

	id := uuid.New()
	ui, err := st.MediaUploadURL(context.Background(), id, "image/png", 5)
	require.NoError(t, err)
	require.Contains(t, ui.Key, "media/"+id.String()+"/")
	require.True(t, ui.Expires.After(time.Now()))
	require.Equal(t, strconv.Itoa(5), ui.RequiredHeader["Content-Length"])

	put(t, ui, bytes.Repeat([]byte{0x42}, 5))

	ref, err := st.ConfirmMediaUpload(context.Background(), id, ui.Key)
	require.NoError(t, err)
	require.Equal(t, "http://cdn.local/"+ui.Key, ref)
}

func TestIntegration_MediaUploadURL_InvalidArgs(t *testing.T) {
	st, _ := startMinio(t)

	_, err := st.MediaUploadURL(context.Background(), uuid.New(), "image/gif", 10)
	require.ErrorIs(t, err, storage.ErrInvalidArgument)

	_, err = st.MediaUploadURL(context.Background(), uuid.New(), "image/png", 0)
	require.ErrorIs(t, err, storage.ErrInvalidArgument)
}

func TestIntegration_ConfirmMediaUpload_Errors(t *testing.T) {
	st, _ := startMinio(t)

	id := uuid.New()

	_, err := st.ConfirmMediaUpload(context.Background(), id, "media/"+uuid.NewString()+"/x.png")
	require.ErrorIs(t, err, storage.ErrInvalidArgument)

	_, err = st.ConfirmMediaUpload(context.Background(), id, "media/"+id.String()+"/missing.png")
	require.ErrorIs(t, err, storage.ErrNotFoundMedia)
}

func TestIntegration_New_WithoutPublicBase_ReturnsKey(t *testing.T) {
	_, endpoint := startMinio(t)

	st, err := New(context.Background(), s3Config(endpoint, ""), mediaConfig())
	require.NoError(t, err)

	id := uuid.New()
	ui, err := st.MediaUploadURL(context.Background(), id, "image/jpeg", 1)
	require.NoError(t, err)
	put(t, ui, []byte{0x1})

	ref, err := st.ConfirmMediaUpload(context.Background(), id, ui.Key)
	require.NoError(t, err)
	require.Equal(t, ui.Key, ref)
}

func TestIntegration_New_BucketMissing(t *testing.T) {
	_, endpoint := startMinio(t)

	cfg := s3Config(endpoint, "")
	cfg.Bucket = "absent"

	_, err := New(context.Background(), cfg, mediaConfig())
	require.Error(t, err)
}
