package handlers_test

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/authhub/internal/handlers/testutil"
)

func TestUserHandler_Me(t *testing.T) {
	env := testutil.NewEnv(t)
	id, token := env.RegisterAndLogin("me@example.com")

	w := env.Request(http.MethodGet, "/api/v1/user", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, "User details", resp.Message)
	var data struct {
		User testutil.UserPayload `json:"user"`
	}
	testutil.DecodeInto(t, resp.Data, &data)
	require.Equal(t, id, data.User.ID)
	require.Equal(t, "me@example.com", data.User.Email)
	require.NotContains(t, w.Body.String(), "password")
}

func TestUserHandler_RequiresAuth(t *testing.T) {
	env := testutil.NewEnv(t)

	for _, path := range []string{"/api/v1/user", "/api/v1/user/sessions", "/api/v1/user/" + uuid.NewString()} {
		w := env.Request(http.MethodGet, path, nil, "")
		require.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestUserHandler_Update(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.RegisterAndLogin("rename@example.com")

	w := env.Request(http.MethodPut, "/api/v1/user", map[string]string{"fullname": "   "}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.Request(http.MethodPut, "/api/v1/user", map[string]string{"fullname": "Renamed User"}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, "User details updated", resp.Message)
	var data struct {
		User testutil.UserPayload `json:"user"`
	}
	testutil.DecodeInto(t, resp.Data, &data)
	require.Equal(t, "Renamed User", data.User.Fullname)
}

func TestUserHandler_GetByID(t *testing.T) {
	env := testutil.NewEnv(t)
	otherID, _ := env.RegisterAndLogin("other@example.com")
	_, token := env.RegisterAndLogin("viewer@example.com")

	w := env.Request(http.MethodGet, "/api/v1/user/"+otherID, nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.Request(http.MethodGet, "/api/v1/user/"+uuid.NewString(), nil, token)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "User details not found", testutil.DecodeResponse(t, w).Message)

	w = env.Request(http.MethodGet, "/api/v1/user/not-a-uuid", nil, token)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestUserHandler_Sessions(t *testing.T) {
	env := testutil.NewEnv(t)
	_, first := env.RegisterAndLogin("sessions@example.com")
	second := env.Login("sessions@example.com", testutil.DefaultPassword)

	w := env.Request(http.MethodPut, "/api/v1/auth/logout", nil, first)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.Request(http.MethodGet, "/api/v1/user/sessions", nil, second)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data struct {
		Sessions []struct {
			ID      string `json:"id"`
			IsValid bool   `json:"isValid"`
		} `json:"sessions"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &data)
	require.Len(t, data.Sessions, 1)
	require.True(t, data.Sessions[0].IsValid)
}
