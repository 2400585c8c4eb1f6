package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"

	"github.com/inboxd/inboxd/interfaces"
	"github.com/inboxd/inboxd/internal/models"
	"github.com/inboxd/inboxd/internal/repository"
)

type DraftsHandler struct {
	repos  *repository.Repositories
	engine interfaces.MailService
}

func NewDraftsHandler(repos *repository.Repositories, engine interfaces.MailService) *DraftsHandler {
	return &DraftsHandler{repos: repos, engine: engine}
}

type draftRequest struct {
	To        []string `json:"to" binding:"required"`
	Cc        []string `json:"cc"`
	Bcc       []string `json:"bcc"`
	Subject   string   `json:"subject"`
	BodyText  string   `json:"bodyText"`
	BodyHTML  string   `json:"bodyHtml"`
	InReplyTo string   `json:"inReplyTo"`
}

func (h *DraftsHandler) Create(c *gin.Context) {
	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	draft := &models.Draft{
		AccountID:    c.Param("id"),
		ToAddresses:  pq.StringArray(req.To),
		CcAddresses:  pq.StringArray(req.Cc),
		BccAddresses: pq.StringArray(req.Bcc),
		Subject:      req.Subject,
		BodyText:     req.BodyText,
		BodyHTML:     req.BodyHTML,
		InReplyTo:    req.InReplyTo,
	}
	if err := h.repos.DraftRepository.Save(c.Request.Context(), draft); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, draft)
}

func (h *DraftsHandler) List(c *gin.Context) {
	drafts, err := h.repos.DraftRepository.ListByAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"drafts": drafts})
}

func (h *DraftsHandler) Delete(c *gin.Context) {
	if err := h.repos.DraftRepository.Delete(c.Request.Context(), c.Param("draftId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("draftId")})
}

// Send relays the draft through the account's backend; on success the
// draft row is removed and the backend message id is returned.
func (h *DraftsHandler) Send(c *gin.Context) {
	messageID, err := h.engine.SendDraft(c.Request.Context(), c.Param("id"), c.Param("draftId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messageId": messageID})
}
