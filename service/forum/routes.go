package forum

import (
	"errors"
	"log"
	"net/http"

	"github.com/KAsare1/Lexconsult-server/cmd/utils"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type BlogHandler struct {
	utils.Responder
	db       *gorm.DB
	auth     *utils.Authenticator
	uploader *utils.Uploader
}

func NewBlogHandler(db *gorm.DB, auth *utils.Authenticator, uploader *utils.Uploader) *BlogHandler {
	return &BlogHandler{Responder: auth.Responder, db: db, auth: auth, uploader: uploader}
}

func (h *BlogHandler) RegisterRoutes(router *mux.Router) {
	// Blog routes
	blogs := router.PathPrefix("/blogs").Subrouter()
	blogs.HandleFunc("", h.GetBlogs).Methods("GET")
	blogs.HandleFunc("", h.auth.Admin(utils.ManageBlogs, h.CreateBlog)).Methods("POST")
	blogs.HandleFunc("/{id:[0-9]+}", h.GetBlog).Methods("GET")
	blogs.HandleFunc("/{id:[0-9]+}", h.auth.Admin(utils.ManageBlogs, h.UpdateBlog)).Methods("PUT")
	blogs.HandleFunc("/{id:[0-9]+}", h.auth.Admin(utils.ManageBlogs, h.DeleteBlog)).Methods("DELETE")

	// Comment routes
	comments := router.PathPrefix("/blog-comments").Subrouter()
	comments.HandleFunc("", h.auth.Required(h.AddComment)).Methods("POST")
	comments.HandleFunc("/blog/{blogId:[0-9]+}", h.GetComments).Methods("GET")
	comments.HandleFunc("/{id:[0-9]+}", h.auth.Required(h.UpdateComment)).Methods("PUT")
	comments.HandleFunc("/{id:[0-9]+}", h.auth.Required(h.DeleteComment)).Methods("DELETE")
}

// blogInput reads title and content from a multipart form or a JSON body and
// stores an optional "image" upload.
func (h *BlogHandler) blogInput(r *http.Request) (BlogInput, error) {
	var in BlogInput
	err := r.ParseMultipartForm(2 * utils.MaxImageSize)
	if errors.Is(err, http.ErrNotMultipart) {
		var body struct {
			Title   *string `json:"title"`
			Content *string `json:"content"`
		}
		if err := utils.DecodeJSON(r, &body); err != nil {
			return in, err
		}
		in.Title, in.Content = body.Title, body.Content
		return in, nil
	}
	if err != nil {
		return in, utils.Validation("invalid multipart form")
	}

	if v, ok := r.MultipartForm.Value["title"]; ok && len(v) > 0 {
		in.Title = &v[0]
	}
	if v, ok := r.MultipartForm.Value["content"]; ok && len(v) > 0 {
		in.Content = &v[0]
	}
	in.ImagePath, err = h.uploader.SaveFormImage(r, "image", "blogs")
	return in, err
}

func (h *BlogHandler) CreateBlog(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.ActorFromContext(r.Context())

	in, err := h.blogInput(r)
	if err != nil {
		h.Error(w, err)
		return
	}

	blog, err := CreateBlog(r.Context(), h.db, actor.ID, in)
	if err != nil {
		h.uploader.Cleanup(in.ImagePath)
		h.Error(w, err)
		return
	}
	log.Printf("Blog %d created by user %d", blog.ID, actor.ID)
	h.JSON(w, http.StatusCreated, blog)
}

func (h *BlogHandler) GetBlogs(w http.ResponseWriter, r *http.Request) {
	page := utils.PageFromQuery(r)
	blogs, total, err := ListBlogs(r.Context(), h.db, page)
	if err != nil {
		h.Error(w, err)
		return
	}
	h.JSON(w, http.StatusOK, page.Body("blogs", blogs, total))
}

func (h *BlogHandler) GetBlog(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathID(r, "id")
	if err != nil {
		h.Error(w, err)
		return
	}
	blog, err := GetBlog(r.Context(), h.db, id)
	if err != nil {
		h.Error(w, err)
		return
	}
	h.JSON(w, http.StatusOK, blog)
}

func (h *BlogHandler) UpdateBlog(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathID(r, "id")
	if err != nil {
		h.Error(w, err)
		return
	}
	in, err := h.blogInput(r)
	if err != nil {
		h.Error(w, err)
		return
	}

	blog, replaced, err := UpdateBlog(r.Context(), h.db, id, in)
	if err != nil {
		h.uploader.Cleanup(in.ImagePath)
		h.Error(w, err)
		return
	}
	h.uploader.Cleanup(replaced)
	h.JSON(w, http.StatusOK, blog)
}

func (h *BlogHandler) DeleteBlog(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathID(r, "id")
	if err != nil {
		h.Error(w, err)
		return
	}
	blog, err := DeleteBlog(r.Context(), h.db, id)
	if err != nil {
		h.Error(w, err)
		return
	}
	h.uploader.Cleanup(blog.ImagePath)
	h.JSON(w, http.StatusOK, map[string]string{"message": "Blog deleted successfully"})
}

func (h *BlogHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.ActorFromContext(r.Context())
	var req struct {
		BlogID uint   `json:"blogId"`
		Text   string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.Error(w, err)
		return
	}

	comment, err := AddComment(r.Context(), h.db, actor.ID, req.BlogID, req.Text)
	if err != nil {
		h.Error(w, err)
		return
	}
	h.JSON(w, http.StatusCreated, comment)
}

func (h *BlogHandler) GetComments(w http.ResponseWriter, r *http.Request) {
	blogID, err := utils.PathID(r, "blogId")
	if err != nil {
		h.Error(w, err)
		return
	}
	comments, err := Comments(r.Context(), h.db, blogID)
	if err != nil {
		h.Error(w, err)
		return
	}
	h.JSON(w, http.StatusOK, comments)
}

func (h *BlogHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.ActorFromContext(r.Context())
	id, err := utils.PathID(r, "id")
	if err != nil {
		h.Error(w, err)
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.Error(w, err)
		return
	}

	comment, err := EditComment(r.Context(), h.db, id, actor, req.Text)
	if err != nil {
		h.Error(w, err)
		return
	}
	h.JSON(w, http.StatusOK, comment)
}

func (h *BlogHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.ActorFromContext(r.Context())
	id, err := utils.PathID(r, "id")
	if err != nil {
		h.Error(w, err)
		return
	}
	if err := RemoveComment(r.Context(), h.db, id, actor); err != nil {
		h.Error(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{"message": "Comment deleted successfully"})
}
