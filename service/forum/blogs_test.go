package forum_test

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KAsare1/Lexconsult-server/cmd/models"
	"github.com/KAsare1/Lexconsult-server/db/dbtest"
	"github.com/KAsare1/Lexconsult-server/service/apitest"
	"github.com/KAsare1/Lexconsult-server/service/forum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEnv(t *testing.T) *apitest.Env {
	env := apitest.New(t)
	forum.NewBlogHandler(env.DB, env.Auth, env.Uploader).RegisterRoutes(env.Router)
	return env
}

func createBlog(t *testing.T, env *apitest.Env, admin *models.User) models.Blog {
	t.Helper()
	rec := env.Do(http.MethodPost, "/blogs", map[string]string{"title": "Tenancy basics", "content": "Know your lease."}, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var blog models.Blog
	apitest.Decode(t, rec, &blog)
	return blog
}

func TestBlogWritesRequireCapability(t *testing.T) {
	env := newEnv(t)
	user := dbtest.User(t, env.DB, "ama", models.RoleUser)

	rec := env.Do(http.MethodPost, "/blogs", map[string]string{"title": "t", "content": "c"}, user)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.Do(http.MethodPost, "/blogs", map[string]string{"title": "t", "content": "c"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBlogCommentCount(t *testing.T) {
	env := newEnv(t)
	admin := dbtest.User(t, env.DB, "root", models.RoleAdmin)
	reader := dbtest.User(t, env.DB, "kwame", models.RoleUser)
	blog := createBlog(t, env, admin)
	empty := createBlog(t, env, admin)

	for i := 0; i < 2; i++ {
		rec := env.Do(http.MethodPost, "/blog-comments", map[string]interface{}{"blogId": blog.ID, "text": "thanks"}, reader)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := env.Do(http.MethodGet, fmt.Sprintf("/blogs/%d", blog.ID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Blog
	apitest.Decode(t, rec, &got)
	assert.EqualValues(t, 2, got.CommentCount)

	rec = env.Do(http.MethodGet, "/blogs", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Blogs []models.Blog `json:"blogs"`
		Total int64         `json:"total"`
	}
	apitest.Decode(t, rec, &list)
	assert.EqualValues(t, 2, list.Total)
	counts := map[uint]int64{}
	for _, b := range list.Blogs {
		counts[b.ID] = b.CommentCount
	}
	assert.Equal(t, map[uint]int64{blog.ID: 2, empty.ID: 0}, counts)

	rec = env.Do(http.MethodGet, fmt.Sprintf("/blog-comments/blog/%d", blog.ID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var comments []models.BlogComment
	apitest.Decode(t, rec, &comments)
	assert.Len(t, comments, 2)
}

func TestCommentOwnership(t *testing.T) {
	env := newEnv(t)
	admin := dbtest.User(t, env.DB, "root", models.RoleAdmin)
	author := dbtest.User(t, env.DB, "kwame", models.RoleUser)
	other := dbtest.User(t, env.DB, "efua", models.RoleUser)
	blog := createBlog(t, env, admin)

	add := func() string {
		rec := env.Do(http.MethodPost, "/blog-comments", map[string]interface{}{"blogId": blog.ID, "text": "hello"}, author)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var c models.BlogComment
		apitest.Decode(t, rec, &c)
		return fmt.Sprintf("/blog-comments/%d", c.ID)
	}

	path := add()
	rec := env.Do(http.MethodPut, path, map[string]string{"text": "edited"}, other)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.Do(http.MethodPut, path, map[string]string{"text": "edited"}, author)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.Do(http.MethodDelete, path, nil, other)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.Do(http.MethodDelete, path, nil, author)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.Do(http.MethodDelete, add(), nil, admin)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.Do(http.MethodPost, "/blog-comments", map[string]interface{}{"blogId": 999, "text": "lost"}, author)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBlogImageLifecycle(t *testing.T) {
	env := newEnv(t)
	admin := dbtest.User(t, env.DB, "root", models.RoleAdmin)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "Contracts"))
	require.NoError(t, mw.WriteField("content", "Read before signing."))
	part, err := mw.CreateFormFile("image", "cover.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/blogs", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+env.Token(admin))
	rec := env.Serve(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var blog models.Blog
	apitest.Decode(t, rec, &blog)
	require.True(t, strings.HasPrefix(blog.ImagePath, "/uploads/blogs/"), blog.ImagePath)
	stored := filepath.Join(env.Uploader.Dir(), strings.TrimPrefix(blog.ImagePath, "/uploads/"))
	_, err = os.Stat(stored)
	require.NoError(t, err)

	rec = env.Do(http.MethodDelete, fmt.Sprintf("/blogs/%d", blog.ID), nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	_, err = os.Stat(stored)
	assert.True(t, os.IsNotExist(err))
}
