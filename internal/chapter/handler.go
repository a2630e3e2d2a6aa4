package chapter

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"novelhub/internal/images"
	"novelhub/internal/notify"
	"novelhub/pkg/models"
)

type Handler struct {
	Repo      *Repo
	Extractor *images.Extractor
	Hub       *notify.Hub
}

func NewHandler(repo *Repo, extractor *images.Extractor, hub *notify.Hub) *Handler {
	return &Handler{Repo: repo, Extractor: extractor, Hub: hub}
}

// RegisterRoutes mounts the public read surface.
func (h *Handler) RegisterRoutes(works, chapters *gin.RouterGroup) {
	works.GET("/:id/chapters", h.listByWork)
	works.GET("/:id/chapters/:number", h.getByWorkAndNumber)
	chapters.GET("/:id", h.getByID)
}

// RegisterAuthorRoutes mounts the write surface.
func (h *Handler) RegisterAuthorRoutes(works, chapters *gin.RouterGroup) {
	works.POST("/:id/chapters", h.create)
	chapters.PUT("/:id", h.update)
	chapters.DELETE("/:id", h.remove)
}

type createReq struct {
	Number      int    `json:"number"`
	Title       string `json:"title"`
	ReleaseDate string `json:"release_date"`
	Locked      bool   `json:"locked"`
	UnlockPrice int    `json:"unlock_price"`
	Content     string `json:"content"`
	FontFamily  string `json:"fontFamily"`
	FontSize    string `json:"fontSize"`
}

func (r createReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Number, validation.Required, validation.Min(1)),
	)
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ch := models.Chapter{
		ID:          uuid.NewString(),
		WorkID:      c.Param("id"),
		Number:      req.Number,
		Title:       req.Title,
		Locked:      req.Locked,
		UnlockPrice: req.UnlockPrice,
	}
	if d, ok := ParseReleaseDate(req.ReleaseDate); ok {
		ch.ReleaseDate = d
	}

	var content *ContentInput
	if req.Content != "" {
		body, err := h.Extractor.ExtractInline(c.Request.Context(), req.Content)
		if err != nil {
			h.renderExtractErr(c, err)
			return
		}
		content = &ContentInput{Content: body, FontFamily: req.FontFamily, FontSize: req.FontSize}
	}

	if err := h.Repo.Create(c.Request.Context(), &ch, content); err != nil {
		if errors.Is(err, ErrWorkNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "work not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}

	h.Hub.Broadcast(notify.ChapterEvent{
		Type:      notify.EventChapterPublished,
		WorkID:    ch.WorkID,
		ChapterID: ch.ID,
		Number:    ch.Number,
	})

	created, err := h.Repo.GetByID(c.Request.Context(), ch.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch created failed"})
		return
	}
	c.JSON(http.StatusCreated, chapterPayload(created))
}

type updateReq struct {
	Title       *string `json:"title"`
	Number      *int    `json:"number"`
	ReleaseDate *string `json:"release_date"`
	Locked      *bool   `json:"locked"`
	UnlockPrice *int    `json:"unlock_price"`
	Content     *string `json:"content"`
	FontFamily  *string `json:"fontFamily"`
	FontSize    *string `json:"fontSize"`
}

func (h *Handler) update(c *gin.Context) {
	var req updateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if req.Content != nil && *req.Content != "" {
		body, err := h.Extractor.ExtractInline(c.Request.Context(), *req.Content)
		if err != nil {
			h.renderExtractErr(c, err)
			return
		}
		req.Content = &body
	}

	ch, err := h.Repo.Update(c.Request.Context(), c.Param("id"), Update{
		Title:       req.Title,
		Number:      req.Number,
		ReleaseDate: req.ReleaseDate,
		Locked:      req.Locked,
		UnlockPrice: req.UnlockPrice,
		Content:     req.Content,
		FontFamily:  req.FontFamily,
		FontSize:    req.FontSize,
	})
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}

	h.Hub.Broadcast(notify.ChapterEvent{
		Type:      notify.EventChapterUpdated,
		WorkID:    ch.WorkID,
		ChapterID: ch.ID,
		Number:    ch.Number,
	})

	c.JSON(http.StatusOK, chapterPayload(ch))
}

func (h *Handler) remove(c *gin.Context) {
	id := c.Param("id")
	ch, err := h.Repo.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}

	if err := h.Repo.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}

	h.Hub.Broadcast(notify.ChapterEvent{
		Type:      notify.EventChapterDeleted,
		WorkID:    ch.WorkID,
		ChapterID: ch.ID,
		Number:    ch.Number,
	})

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *Handler) listByWork(c *gin.Context) {
	items, err := h.Repo.ListByWork(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chapters": items})
}

func (h *Handler) getByID(c *gin.Context) {
	ch, err := h.Repo.GetByID(c.Request.Context(), c.Param("id"))
	h.renderChapter(c, ch, err)
}

func (h *Handler) getByWorkAndNumber(c *gin.Context) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chapter number"})
		return
	}
	ch, err := h.Repo.GetByWorkAndNumber(c.Request.Context(), c.Param("id"), number)
	h.renderChapter(c, ch, err)
}

func (h *Handler) renderChapter(c *gin.Context, ch *models.Chapter, err error) {
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	_ = h.Repo.IncrementViews(c.Request.Context(), ch.ID)
	c.JSON(http.StatusOK, chapterPayload(ch))
}

func (h *Handler) renderExtractErr(c *gin.Context, err error) {
	if errors.Is(err, images.ErrMalformedDataURL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "image extraction failed"})
}

func chapterPayload(ch *models.Chapter) gin.H {
	return gin.H{"chapter": gin.H{
		"id":            ch.ID,
		"work_id":       ch.WorkID,
		"number":        ch.Number,
		"title":         ch.Title,
		"release_date":  ch.ReleaseDate,
		"locked":        ch.Locked,
		"unlock_price":  ch.UnlockPrice,
		"views":         ch.Views,
		"content":       ch.Content,
		"contentLength": ch.ContentLength,
		"isUnlocked":    !ch.Locked,
	}}
}
