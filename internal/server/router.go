package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/acervolabs/constancia/internal/certificates"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const eventDateLayout = "2006-01-02"

var (
	errMissingCertificateService = errors.New("certificates service dependency required")
	errMissingComposer           = errors.New("composer dependency required")
	errMissingVerifier           = errors.New("verifier dependency required")
)

// Dependencies wires the handler's collaborators.
type Dependencies struct {
	Certificates *certificates.Service
	Composer     *certificates.Composer
	Verifier     *certificates.Verifier
	Logger       *zap.Logger
}

// NewHTTPHandler builds the gin handler serving the certificate API. Required
// field validation lives here: the composer and the store receive only
// already-validated data.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Certificates == nil {
		return nil, errMissingCertificateService
	}
	if deps.Composer == nil {
		return nil, errMissingComposer
	}
	if deps.Verifier == nil {
		return nil, errMissingVerifier
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		certificates: deps.Certificates,
		composer:     deps.Composer,
		verifier:     deps.Verifier,
		logger:       logger,
	}

	router.POST("/certificates", handler.handleCreateCertificate)
	router.GET("/certificates", handler.handleListCertificates)
	router.GET("/certificates/:id", handler.handleGetCertificate)
	router.GET("/certificates/:id/document", handler.handleDownloadDocument)
	router.GET("/certificates/:id/verification", handler.handleIssueVerification)
	router.DELETE("/certificates/:id", handler.handleDeleteCertificate)
	router.GET("/verify", handler.handleVerify)

	return router, nil
}

type httpHandler struct {
	certificates *certificates.Service
	composer     *certificates.Composer
	verifier     *certificates.Verifier
	logger       *zap.Logger
}

type createCertificatePayload struct {
	ID              string `json:"id"`
	EventName       string `json:"event_name"`
	EventLocation   string `json:"event_location"`
	EventDate       string `json:"event_date"`
	ParticipantName string `json:"participant_name"`
	ParticipantRole string `json:"participant_role"`
	DurationHours   int    `json:"duration_hours"`
	EmblemBase64    string `json:"emblem"`
}

type certificatePayload struct {
	ID               string `json:"id"`
	EventName        string `json:"event_name"`
	EventLocation    string `json:"event_location"`
	EventDate        string `json:"event_date"`
	ParticipantName  string `json:"participant_name"`
	ParticipantRole  string `json:"participant_role"`
	DurationHours    int    `json:"duration_hours"`
	CreatedAtSeconds int64  `json:"created_at_s"`
	DocumentBytes    int    `json:"document_bytes"`
	DocumentPath     string `json:"document_path"`
}

func certificateResponse(record certificates.Record) certificatePayload {
	data := record.Data()
	return certificatePayload{
		ID:               record.CertificateID,
		EventName:        record.EventName,
		EventLocation:    record.EventLocation,
		EventDate:        data.EventDate.Format(eventDateLayout),
		ParticipantName:  record.ParticipantName,
		ParticipantRole:  record.ParticipantRole,
		DurationHours:    int(record.DurationHours),
		CreatedAtSeconds: record.CreatedAtSeconds,
		DocumentBytes:    len(record.DocumentPDF),
		DocumentPath:     fmt.Sprintf("/certificates/%s/document", record.CertificateID),
	}
}

func (h *httpHandler) handleCreateCertificate(c *gin.Context) {
	var request createCertificatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	data, emblem, err := parseCertificateRequest(request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if data.ID == "" {
		id, err := h.certificates.GenerateID(c.Request.Context(), time.Now().UTC())
		if err != nil {
			h.logger.Error("failed to generate certificate id", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "id_generation_failed"})
			return
		}
		data.ID = id
	}

	document, err := h.composer.Compose(data, emblem)
	if err != nil {
		h.logger.Error("failed to compose certificate", zap.Error(err), zap.String("certificate_id", data.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "render_failed"})
		return
	}

	record, err := h.certificates.Save(c.Request.Context(), data, document)
	if err != nil {
		h.logger.Error("failed to save certificate", zap.Error(err), zap.String("certificate_id", data.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save_failed"})
		return
	}

	c.JSON(http.StatusCreated, certificateResponse(record))
}

func parseCertificateRequest(request createCertificatePayload) (certificates.CertificateData, []byte, error) {
	data := certificates.CertificateData{
		ID:              strings.TrimSpace(request.ID),
		EventName:       strings.TrimSpace(request.EventName),
		EventLocation:   strings.TrimSpace(request.EventLocation),
		ParticipantName: strings.TrimSpace(request.ParticipantName),
		ParticipantRole: certificates.Role(strings.TrimSpace(request.ParticipantRole)),
		DurationHours:   request.DurationHours,
	}
	if data.EventName == "" {
		return certificates.CertificateData{}, nil, errors.New("event_name_required")
	}
	if data.EventLocation == "" {
		return certificates.CertificateData{}, nil, errors.New("event_location_required")
	}
	if data.ParticipantName == "" {
		return certificates.CertificateData{}, nil, errors.New("participant_name_required")
	}
	if data.ParticipantRole == "" {
		return certificates.CertificateData{}, nil, errors.New("participant_role_required")
	}
	if data.DurationHours < 0 {
		return certificates.CertificateData{}, nil, errors.New("duration_hours_invalid")
	}

	eventDate, err := time.ParseInLocation(eventDateLayout, strings.TrimSpace(request.EventDate), time.UTC)
	if err != nil {
		return certificates.CertificateData{}, nil, errors.New("event_date_invalid")
	}
	data.EventDate = eventDate

	var emblem []byte
	if request.EmblemBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(request.EmblemBase64)
		if err != nil {
			return certificates.CertificateData{}, nil, errors.New("emblem_invalid")
		}
		emblem = decoded
	}

	return data, emblem, nil
}

type listCertificatesPayload struct {
	Certificates []certificatePayload `json:"certificates"`
}

func (h *httpHandler) handleListCertificates(c *gin.Context) {
	records, err := h.certificates.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.logger.Error("failed to search certificates", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search_failed"})
		return
	}

	// Presentation ordering: most recently created first. The store itself
	// makes no ordering guarantee.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAtSeconds > records[j].CreatedAtSeconds
	})

	response := listCertificatesPayload{Certificates: make([]certificatePayload, 0, len(records))}
	for _, record := range records {
		response.Certificates = append(response.Certificates, certificateResponse(record))
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleGetCertificate(c *gin.Context) {
	id, err := certificates.NewCertificateID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	record, err := h.certificates.GetByID(c.Request.Context(), id.String())
	if errors.Is(err, certificates.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load certificate", zap.Error(err), zap.String("certificate_id", c.Param("id")))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed"})
		return
	}
	c.JSON(http.StatusOK, certificateResponse(record))
}

func (h *httpHandler) handleDownloadDocument(c *gin.Context) {
	id, err := certificates.NewCertificateID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	record, err := h.certificates.GetByID(c.Request.Context(), id.String())
	if errors.Is(err, certificates.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load certificate document", zap.Error(err), zap.String("certificate_id", c.Param("id")))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed"})
		return
	}

	filename := fmt.Sprintf("Certificate_%s.pdf", record.CertificateID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", record.DocumentPDF)
}

func (h *httpHandler) handleDeleteCertificate(c *gin.Context) {
	id, err := certificates.NewCertificateID(c.Param("id"))
	if err != nil {
		// Delete is idempotent; an identifier that could never be stored is
		// treated the same as a missing one.
		c.Status(http.StatusNoContent)
		return
	}
	if err := h.certificates.Delete(c.Request.Context(), id.String()); err != nil {
		h.logger.Error("failed to delete certificate", zap.Error(err), zap.String("certificate_id", c.Param("id")))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

type verificationPayload struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

func (h *httpHandler) handleIssueVerification(c *gin.Context) {
	id, err := certificates.NewCertificateID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	record, err := h.certificates.GetByID(c.Request.Context(), id.String())
	if errors.Is(err, certificates.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load certificate for verification", zap.Error(err), zap.String("certificate_id", c.Param("id")))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed"})
		return
	}

	token, expiresIn, err := h.verifier.IssueVerification(record)
	if err != nil {
		h.logger.Error("failed to issue verification token", zap.Error(err), zap.String("certificate_id", record.CertificateID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verification_issue_failed"})
		return
	}
	c.JSON(http.StatusOK, verificationPayload{Token: token, ExpiresIn: expiresIn})
}

func (h *httpHandler) handleVerify(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	certificateID, err := h.verifier.ValidateVerification(token)
	if err != nil {
		h.logger.Warn("verification token rejected", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"certificate_id": certificateID, "valid": true})
}
