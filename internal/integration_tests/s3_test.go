package integrationtests

import (
	"bytes"
	"context"
	"errors"
	"soil-backend/internal/core"
	"soil-backend/internal/storage"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupS3Provider(t *testing.T, ctx context.Context) *storage.S3Provider {
	endpoint := setupMinioContainer(t, ctx)

	provider, err := storage.NewS3Provider(storage.S3ClientConfig{
		Endpoint:        endpoint,
		AccessKeyID:     minioUsername,
		SecretAccessKey: minioPassword,
	})
	require.NoError(t, err)

	return provider
}

func TestS3Provider(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	provider := setupS3Provider(t, ctx)
	require.NoError(t, provider.CreateBucket(ctx, imageBucket))
	// creating an existing bucket is not an error
	require.NoError(t, provider.CreateBucket(ctx, imageBucket))

	t.Run("put get delete", func(t *testing.T) {
		require.NoError(t, provider.PutObject(ctx, imageBucket, "images/a.txt", strings.NewReader("soil")))

		data, err := provider.GetObject(ctx, imageBucket, "images/a.txt")
		require.NoError(t, err)
		assert.Equal(t, "soil", string(data))

		require.NoError(t, provider.DeleteObject(ctx, imageBucket, "images/a.txt"))

		_, err = provider.GetObject(ctx, imageBucket, "images/a.txt")
		assert.True(t, errors.Is(err, storage.ErrObjectNotFound))
	})

	t.Run("list", func(t *testing.T) {
		for _, key := range []string{"images/1.png", "images/2.png", "other/3.png"} {
			require.NoError(t, provider.PutObject(ctx, imageBucket, key, bytes.NewReader([]byte(key))))
		}

		objects, err := provider.ListObjects(ctx, imageBucket, "images/")
		require.NoError(t, err)
		require.Len(t, objects, 2)
		assert.ElementsMatch(t, []string{"images/1.png", "images/2.png"}, []string{objects[0].Name, objects[1].Name})
	})
}

func TestImageStoreS3(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	images := storage.NewImageStore(setupS3Provider(t, ctx), "s3", imageBucket)
	require.NoError(t, images.Init(ctx))

	photo := soilPhoto(t)
	ref, err := images.Save(ctx, photo)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref.String(), "s3://"+imageBucket+"/images/"))
	assert.True(t, strings.HasSuffix(ref.String(), ".png"))

	data, err := images.Load(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, photo, data)

	exists, err := images.Exists(ctx, ref)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = images.Exists(ctx, core.ImageReference("s3://"+imageBucket+"/images/missing.png"))
	require.NoError(t, err)
	assert.False(t, exists)
}
