package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/api/middleware"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/authz"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/db/models"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/services"
	"go.uber.org/zap"
)

type DocumentHandler struct {
	documents *services.DocumentService
	logger    *zap.Logger
}

func NewDocumentHandler(documents *services.DocumentService, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		logger:    logger.With(zap.String("handler", "document")),
	}
}

// LoadDocument fetches the document named by the :id parameter exactly once
// and attaches it to the context. Permission middleware and the handler both
// work against this snapshot; nothing downstream refetches.
func (h *DocumentHandler) LoadDocument() gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := h.documents.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, services.ErrDocumentNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "document not found"})
				return
			}
			h.logger.Error("document load failed", zap.Error(err), zap.String("doc_id", c.Param("id")))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		middleware.SetDocument(c, doc)
		c.Next()
	}
}

type createDocumentRequest struct {
	Title         string     `json:"title" binding:"required"`
	Version       string     `json:"version"`
	FilePath      string     `json:"file_path"`
	FileName      string     `json:"file_name"`
	FileSize      int64      `json:"file_size"`
	EffectiveDate *time.Time `json:"effective_date"`
	ReviewDate    *time.Time `json:"review_date"`
	ExpiryDate    *time.Time `json:"expiry_date"`
}

func (h *DocumentHandler) Create(c *gin.Context) {
	var req createDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	p, _ := middleware.PrincipalFromContext(c)
	doc, err := h.documents.Create(c.Request.Context(), services.CreateDocumentInput{
		Title:         req.Title,
		Version:       req.Version,
		OwnerID:       p.UserID,
		CreatedBy:     p.UserID,
		FilePath:      req.FilePath,
		FileName:      req.FileName,
		FileSize:      req.FileSize,
		EffectiveDate: req.EffectiveDate,
		ReviewDate:    req.ReviewDate,
		ExpiryDate:    req.ExpiryDate,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"document": doc})
}

func (h *DocumentHandler) List(c *gin.Context) {
	p, _ := middleware.PrincipalFromContext(c)

	docs, err := h.documents.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	visible := make([]models.Document, 0, len(docs))
	for i := range docs {
		if authz.CanView(p, &docs[i]) {
			visible = append(visible, docs[i])
		}
	}

	c.JSON(http.StatusOK, gin.H{"documents": visible})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, _ := middleware.DocumentFromContext(c)
	c.JSON(http.StatusOK, gin.H{"document": doc})
}

type updateDocumentRequest struct {
	Title         *string                `json:"title"`
	Version       *string                `json:"version"`
	Status        *models.DocumentStatus `json:"status"`
	FilePath      *string                `json:"file_path"`
	FileName      *string                `json:"file_name"`
	FileSize      *int64                 `json:"file_size"`
	EffectiveDate *time.Time             `json:"effective_date"`
	ReviewDate    *time.Time             `json:"review_date"`
	ExpiryDate    *time.Time             `json:"expiry_date"`
	Description   string                 `json:"description"`
	Reason        string                 `json:"reason"`
}

func (h *DocumentHandler) Update(c *gin.Context) {
	var req updateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	p, _ := middleware.PrincipalFromContext(c)
	doc, _ := middleware.DocumentFromContext(c)

	// Direct status writes are an administrative correction (also the only
	// way a document reaches OBSOLETE); the workflow endpoints cover
	// everything else.
	if req.Status != nil && !p.HasAny(models.RoleSuperuser, models.RoleAdmin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		return
	}
	if req.Status != nil && !validStatus(*req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document status"})
		return
	}

	updated, err := h.documents.Update(c.Request.Context(), doc, p.UserID, services.UpdateDocumentInput{
		Title:             req.Title,
		Version:           req.Version,
		Status:            req.Status,
		FilePath:          req.FilePath,
		FileName:          req.FileName,
		FileSize:          req.FileSize,
		EffectiveDate:     req.EffectiveDate,
		ReviewDate:        req.ReviewDate,
		ExpiryDate:        req.ExpiryDate,
		ChangeDescription: req.Description,
		ChangeReason:      req.Reason,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"document": updated})
}

func (h *DocumentHandler) SubmitForReview(c *gin.Context) {
	p, _ := middleware.PrincipalFromContext(c)
	doc, _ := middleware.DocumentFromContext(c)

	updated, err := h.documents.SubmitForReview(c.Request.Context(), doc, p.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"document": updated})
}

type approveRequest struct {
	Comment string `json:"comment"`
}

func (h *DocumentHandler) Approve(c *gin.Context) {
	var req approveRequest
	_ = c.ShouldBindJSON(&req) // comment is optional

	p, _ := middleware.PrincipalFromContext(c)
	doc, _ := middleware.DocumentFromContext(c)

	updated, err := h.documents.Approve(c.Request.Context(), doc, p.UserID, req.Comment)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"document": updated})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *DocumentHandler) Reject(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Reason == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a non-empty reason is required"})
		return
	}

	p, _ := middleware.PrincipalFromContext(c)
	doc, _ := middleware.DocumentFromContext(c)

	updated, err := h.documents.Reject(c.Request.Context(), doc, p.UserID, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"document": updated})
}

type requestChangesRequest struct {
	Changes string `json:"changes"`
}

func (h *DocumentHandler) RequestChanges(c *gin.Context) {
	var req requestChangesRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Changes == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a non-empty change description is required"})
		return
	}

	p, _ := middleware.PrincipalFromContext(c)
	doc, _ := middleware.DocumentFromContext(c)

	updated, err := h.documents.RequestChanges(c.Request.Context(), doc, p.UserID, req.Changes)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"document": updated})
}

type createVersionRequest struct {
	Version string `json:"version"`
}

func (h *DocumentHandler) CreateVersion(c *gin.Context) {
	var req createVersionRequest
	_ = c.ShouldBindJSON(&req) // explicit version is optional

	p, _ := middleware.PrincipalFromContext(c)
	doc, _ := middleware.DocumentFromContext(c)

	successor, err := h.documents.CreateVersion(c.Request.Context(), doc, p.UserID, req.Version)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"document": successor})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	doc, _ := middleware.DocumentFromContext(c)

	if err := h.documents.Delete(c.Request.Context(), doc.ID); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": doc.ID})
}

func (h *DocumentHandler) ListRevisions(c *gin.Context) {
	doc, _ := middleware.DocumentFromContext(c)

	revisions, err := h.documents.ListRevisions(c.Request.Context(), doc.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"revisions": revisions})
}

// writeError maps service errors onto the response taxonomy. Anything
// unexpected is logged with detail and surfaced as a generic message.
func (h *DocumentHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrDocumentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
	case errors.Is(err, services.ErrTitleRequired),
		errors.Is(err, services.ErrReasonRequired),
		errors.Is(err, services.ErrChangesRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrStatusConflict):
		// First write wins: the document left the expected status before
		// this request's turn.
		c.JSON(http.StatusForbidden, gin.H{"error": "document is not in the expected status"})
	default:
		h.logger.Error("document operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func validStatus(s models.DocumentStatus) bool {
	switch s {
	case models.StatusDraft, models.StatusReview, models.StatusApproved, models.StatusObsolete:
		return true
	}
	return false
}
