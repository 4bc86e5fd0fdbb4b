package handler

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cmcs-platform/claims-api/internal/service"
	appErrors "github.com/cmcs-platform/claims-api/pkg/errors"
	"github.com/cmcs-platform/claims-api/pkg/response"
)

// DocumentHandler wires claim attachment endpoints.
type DocumentHandler struct {
	documents *service.DocumentService
}

// NewDocumentHandler creates a new handler.
func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// Upload godoc
// @Summary Upload claim documents
// @Description Attach one or more supporting files to an own pending or coordinator-approved claim
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Claim ID"
// @Param files formData file true "Files to attach"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /claims/{id}/documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	id, err := claimIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart payload"))
		return
	}
	uploads, closers, err := uploadsFromHeaders(form.File["files"], c.PostForm("description"))
	defer closeAll(closers)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
		return
	}

	result, err := h.documents.UploadBatch(c.Request.Context(), claimsFromContext(c), id, uploads)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// uploadsFromHeaders opens every part of a multipart batch. Callers must
// close the returned readers after the batch is processed.
func uploadsFromHeaders(files []*multipart.FileHeader, description string) ([]service.DocumentUpload, []io.Closer, error) {
	uploads := make([]service.DocumentUpload, 0, len(files))
	closers := make([]io.Closer, 0, len(files))
	for _, file := range files {
		reader, err := file.Open()
		if err != nil {
			return nil, closers, err
		}
		closers = append(closers, reader)
		uploads = append(uploads, service.DocumentUpload{
			FileName:    file.Filename,
			ContentType: file.Header.Get("Content-Type"),
			Size:        file.Size,
			Description: description,
			Content:     reader,
		})
	}
	return uploads, closers, nil
}

func closeAll(closers []io.Closer) {
	for _, closer := range closers {
		_ = closer.Close()
	}
}

// List godoc
// @Summary List claim documents
// @Description List the attachments of a claim, newest first
// @Tags Documents
// @Produce json
// @Param id path int true "Claim ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /claims/{id}/documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	id, err := claimIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	docs, err := h.documents.ListByClaim(c.Request.Context(), claimsFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, docs, nil)
}

// SignedLink godoc
// @Summary Issue a signed download link
// @Description Create a time-limited token that authorises downloading one document without an Authorization header
// @Tags Documents
// @Produce json
// @Param id path int true "Claim ID"
// @Param documentId path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /claims/{id}/documents/{documentId}/link [get]
func (h *DocumentHandler) SignedLink(c *gin.Context) {
	id, err := claimIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	token, expiresAt, err := h.documents.SignedLink(c.Request.Context(), claimsFromContext(c), id, c.Param("documentId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"url":       "/files?token=" + token,
		"expiresAt": expiresAt,
	}, nil)
}

// DownloadSigned godoc
// @Summary Download via signed link
// @Description Stream a document authorised by a signed token
// @Tags Documents
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /files [get]
func (h *DocumentHandler) DownloadSigned(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	doc, file, err := h.documents.OpenSigned(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", `attachment; filename="`+doc.FileName+`"`)
	c.DataFromReader(http.StatusOK, doc.SizeBytes, contentType, file, nil)
}

// Download godoc
// @Summary Download a claim document
// @Description Stream one attachment of a claim
// @Tags Documents
// @Produce octet-stream
// @Param id path int true "Claim ID"
// @Param documentId path string true "Document ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /claims/{id}/documents/{documentId} [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	id, err := claimIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	doc, file, err := h.documents.OpenDocument(c.Request.Context(), claimsFromContext(c), id, c.Param("documentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", `attachment; filename="`+doc.FileName+`"`)
	c.DataFromReader(http.StatusOK, doc.SizeBytes, contentType, file, nil)
}
