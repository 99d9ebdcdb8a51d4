package services

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/authhub/internal/database/testutil"
	"github.com/charlesng35/authhub/internal/models"
	"github.com/charlesng35/authhub/internal/storage"
	apperrors "github.com/charlesng35/authhub/pkg/errors"
)

var testPNG = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

func newMediaFixture(t *testing.T) (*MediaService, *storage.MemoryBucket, *models.User) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	users, err := NewUserService(db)
	require.NoError(t, err)
	owner, err := users.Create(context.Background(), CreateUserInput{Fullname: "Owner", Email: "owner@example.com", Password: "secret1"})
	require.NoError(t, err)

	bucket := storage.NewMemoryBucket("authhub-media", "https://cdn.example.com")
	svc, err := NewMediaService(db, storage.NewUploader(bucket))
	require.NoError(t, err)
	return svc, bucket, owner
}

func TestNewMediaServiceRequiresDependencies(t *testing.T) {
	_, err := NewMediaService(nil, nil)
	require.Error(t, err)
}

func TestMediaCreateAndGet(t *testing.T) {
	svc, bucket, owner := newMediaFixture(t)
	ctx := context.Background()

	media, err := svc.Create(ctx, owner.ID, testPNG)
	require.NoError(t, err)
	require.Equal(t, models.MediaTypeImage, media.Type)
	require.Equal(t, owner.ID, media.UserID)
	require.Equal(t, "authhub-media/"+media.Name, media.Path)
	require.EqualValues(t, len(testPNG), media.Size)
	require.Equal(t, 1, bucket.Len())

	loaded, err := svc.GetByID(ctx, media.ID)
	require.NoError(t, err)
	require.Equal(t, media.Name, loaded.Name)
	require.Equal(t, "https://cdn.example.com/"+media.Name, svc.URL(loaded))
}

func TestMediaCreateRejectsUnsupportedContent(t *testing.T) {
	svc, bucket, owner := newMediaFixture(t)

	_, err := svc.Create(context.Background(), owner.ID, []byte("not an image"))
	require.ErrorIs(t, err, storage.ErrUnsupportedMedia)
	require.Zero(t, bucket.Len())
}

func TestMediaStream(t *testing.T) {
	svc, _, owner := newMediaFixture(t)
	ctx := context.Background()

	media, err := svc.Create(ctx, owner.ID, testPNG)
	require.NoError(t, err)

	rc, got, err := svc.Stream(ctx, media.ID)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, testPNG, data)
	require.Equal(t, media.ID, got.ID)

	_, _, err = svc.Stream(ctx, "missing")
	require.ErrorIs(t, err, ErrMediaNotFound)
}

func TestMediaDeleteOwnerOnly(t *testing.T) {
	svc, bucket, owner := newMediaFixture(t)
	ctx := context.Background()

	media, err := svc.Create(ctx, owner.ID, testPNG)
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, "someone-else", media.ID), apperrors.ErrForbidden)
	require.Equal(t, 1, bucket.Len())

	require.NoError(t, svc.Delete(ctx, owner.ID, media.ID))
	require.Zero(t, bucket.Len())

	_, err = svc.GetByID(ctx, media.ID)
	require.ErrorIs(t, err, ErrMediaNotFound)
	require.ErrorIs(t, svc.Delete(ctx, owner.ID, media.ID), ErrMediaNotFound)
}
