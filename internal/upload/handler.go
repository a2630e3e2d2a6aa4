// Package upload orchestrates document ingestion: validate, convert,
// externalize images, normalize, and hand back chapter-ready markup.
package upload

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"novelhub/internal/convert"
	"novelhub/internal/images"
	"novelhub/internal/markup"
	"novelhub/pkg/utils"
)

type Handler struct {
	Converter *convert.Converter
	Extractor *images.Extractor
	Formatter *markup.Formatter
	Cfg       utils.ContentConfig
	Logger    *slog.Logger
}

func NewHandler(conv *convert.Converter, ext *images.Extractor, fm *markup.Formatter, cfg utils.ContentConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Converter: conv, Extractor: ext, Formatter: fm, Cfg: cfg, Logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/document", h.document)
	rg.POST("/media", h.media)
}

// document runs the full pipeline on an uploaded file. Any stage failure
// aborts the request; no partial result is returned. The stored source
// document is removed whether processing succeeds or fails.
func (h *Handler) document(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	if file.Size > h.Cfg.MaxDocumentBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "document exceeds size limit"})
		return
	}

	format, err := convert.Detect(file.Filename)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := os.MkdirAll(h.Cfg.DocumentDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return
	}
	dst := filepath.Join(h.Cfg.DocumentDir, uuid.NewString()+strings.ToLower(filepath.Ext(file.Filename)))
	if err := c.SaveUploadedFile(file, dst); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store upload failed"})
		return
	}
	defer os.Remove(dst)

	data, err := os.ReadFile(dst)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read upload failed"})
		return
	}

	content, err := h.Converter.Convert(c.Request.Context(), data, format)
	if err != nil {
		h.Logger.Warn("document conversion failed", "file", file.Filename, "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to convert document to html"})
		return
	}

	content, err = h.Extractor.ExtractInline(c.Request.Context(), content)
	if err != nil {
		if errors.Is(err, images.ErrMalformedDataURL) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "image extraction failed"})
		return
	}

	content = h.Formatter.Format(content, markup.Options{PreserveHTML: true, AutoClean: true})

	c.JSON(http.StatusOK, gin.H{"success": true, "content": content})
}

var mediaTypes = map[string]string{
	".jpg":  "image",
	".jpeg": "image",
	".png":  "image",
	".gif":  "image",
	".webp": "image",
	".mp4":  "video",
	".webm": "video",
}

// media stores a directly uploaded image/video and returns its URL.
func (h *Handler) media(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	if file.Size > h.Cfg.MaxMediaBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "media exceeds size limit"})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	mediaType, ok := mediaTypes[ext]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported media type"})
		return
	}

	if err := os.MkdirAll(h.Cfg.MediaDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return
	}
	name := uuid.NewString() + ext
	if err := c.SaveUploadedFile(file, filepath.Join(h.Cfg.MediaDir, name)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store upload failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "url": "/media/" + name, "type": mediaType})
}
