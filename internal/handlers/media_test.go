package handlers_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/authhub/internal/handlers/testutil"
)

var testPNG = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

type mediaPayload struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Path   string `json:"path"`
	Type   string `json:"type"`
	Size   int64  `json:"size"`
	UserID string `json:"userId"`
	URL    string `json:"url"`
}

func uploadPNG(t *testing.T, env *testutil.Env, token string) mediaPayload {
	t.Helper()

	w := env.Upload("/api/v1/media", "avatar.png", testPNG, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, "Media uploaded", resp.Message)
	var data struct {
		Media mediaPayload `json:"media"`
	}
	testutil.DecodeInto(t, resp.Data, &data)
	return data.Media
}

func TestMediaHandler_UploadAndFetch(t *testing.T) {
	env := testutil.NewEnv(t)
	userID, token := env.RegisterAndLogin("media@example.com")

	media := uploadPNG(t, env, token)
	require.Equal(t, "image", media.Type)
	require.Equal(t, userID, media.UserID)
	require.Equal(t, int64(len(testPNG)), media.Size)
	require.True(t, strings.HasPrefix(media.Name, "file-"))
	require.True(t, strings.HasSuffix(media.Name, ".png"))
	require.Equal(t, "test-bucket/"+media.Name, media.Path)
	require.Equal(t, 1, env.Bucket.Len())

	w := env.Request(http.MethodGet, "/api/v1/media/"+media.ID, nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var data struct {
		Media mediaPayload `json:"media"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &data)
	require.Equal(t, media.ID, data.Media.ID)
	require.NotEmpty(t, data.Media.URL)

	w = env.Request(http.MethodGet, "/api/v1/media/"+media.ID+"/content", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "image/png", w.Header().Get("Content-Type"))
	require.Equal(t, testPNG, w.Body.Bytes())
}

func TestMediaHandler_RejectsUnsupportedContent(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.RegisterAndLogin("text@example.com")

	w := env.Upload("/api/v1/media", "notes.txt", []byte("just some plain text"), token)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	require.Equal(t, "Only image and video files are allowed", testutil.DecodeResponse(t, w).Message)
	require.Zero(t, env.Bucket.Len())
}

func TestMediaHandler_RejectsOversizedUpload(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithUploadLimit(16))
	_, token := env.RegisterAndLogin("large@example.com")

	w := env.Upload("/api/v1/media", "avatar.png", testPNG, token)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
	require.Zero(t, env.Bucket.Len())
}

func TestMediaHandler_MissingFile(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.RegisterAndLogin("nofile@example.com")

	w := env.Request(http.MethodPost, "/api/v1/media", map[string]string{"file": "nope"}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMediaHandler_DeleteOwnerOnly(t *testing.T) {
	env := testutil.NewEnv(t)
	_, ownerToken := env.RegisterAndLogin("owner@example.com")
	_, otherToken := env.RegisterAndLogin("intruder@example.com")

	media := uploadPNG(t, env, ownerToken)

	w := env.Request(http.MethodDelete, "/api/v1/media/"+media.ID, nil, otherToken)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, 1, env.Bucket.Len())

	w = env.Request(http.MethodDelete, "/api/v1/media/"+media.ID, nil, ownerToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Zero(t, env.Bucket.Len())

	w = env.Request(http.MethodGet, "/api/v1/media/"+media.ID, nil, ownerToken)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestMediaHandler_UnknownID(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.RegisterAndLogin("unknown@example.com")

	require.Equal(t, http.StatusNotFound, env.Request(http.MethodGet, "/api/v1/media/"+uuid.NewString(), nil, token).Code)
	require.Equal(t, http.StatusNotFound, env.Request(http.MethodGet, "/api/v1/media/bad-id/content", nil, token).Code)
}
