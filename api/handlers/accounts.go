package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/inboxd/inboxd/interfaces"
	"github.com/inboxd/inboxd/internal/enum"
	apperrors "github.com/inboxd/inboxd/internal/errors"
	"github.com/inboxd/inboxd/internal/models"
	"github.com/inboxd/inboxd/internal/repository"
)

type AccountsHandler struct {
	repos  *repository.Repositories
	engine interfaces.MailService
}

func NewAccountsHandler(repos *repository.Repositories, engine interfaces.MailService) *AccountsHandler {
	return &AccountsHandler{repos: repos, engine: engine}
}

type createAccountRequest struct {
	Email         string `json:"email" binding:"required,email"`
	Provider      string `json:"provider" binding:"required"`
	DisplayName   string `json:"displayName"`
	CredentialRef string `json:"credentialRef" binding:"required"`
	ImapServer    string `json:"imapServer"`
	ImapPort      int    `json:"imapPort"`
	ImapTLS       *bool  `json:"imapTls"`
	ImapUsername  string `json:"imapUsername"`
	SmtpServer    string `json:"smtpServer"`
	SmtpPort      int    `json:"smtpPort"`
	SyncEnabled   *bool  `json:"syncEnabled"`
}

func (h *AccountsHandler) Create(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind := enum.ProviderKind(req.Provider)
	switch kind {
	case enum.ProviderGmail, enum.ProviderIMAP, enum.ProviderGeneric:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown provider kind: " + req.Provider})
		return
	}

	if existing, err := h.repos.AccountRepository.GetByEmail(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	} else if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "account already exists for " + req.Email})
		return
	}

	account := &models.Account{
		Email:         req.Email,
		Provider:      kind,
		DisplayName:   req.DisplayName,
		CredentialRef: req.CredentialRef,
		ImapServer:    req.ImapServer,
		ImapPort:      req.ImapPort,
		ImapTLS:       req.ImapTLS == nil || *req.ImapTLS,
		ImapUsername:  req.ImapUsername,
		SmtpServer:    req.SmtpServer,
		SmtpPort:      req.SmtpPort,
		SyncEnabled:   req.SyncEnabled == nil || *req.SyncEnabled,
	}
	if err := h.repos.AccountRepository.Create(c.Request.Context(), account); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, account)
}

func (h *AccountsHandler) List(c *gin.Context) {
	accounts, err := h.repos.AccountRepository.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

func (h *AccountsHandler) Get(c *gin.Context) {
	account, err := h.repos.AccountRepository.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if account == nil {
		respondError(c, apperrors.ErrAccountNotFound)
		return
	}
	c.JSON(http.StatusOK, account)
}

// Delete removes the account and cascades to its cached messages,
// threads, labels, drafts and sync state.
func (h *AccountsHandler) Delete(c *gin.Context) {
	accountID := c.Param("id")

	_ = h.engine.Disconnect(c.Request.Context(), accountID)

	if err := h.repos.AccountRepository.Delete(c.Request.Context(), accountID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": accountID})
}

func (h *AccountsHandler) Connect(c *gin.Context) {
	accountID := c.Param("id")
	if err := h.engine.Connect(c.Request.Context(), accountID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accountId": accountID,
		"state":     h.engine.ConnectionState(accountID),
	})
}

func (h *AccountsHandler) Disconnect(c *gin.Context) {
	accountID := c.Param("id")
	if err := h.engine.Disconnect(c.Request.Context(), accountID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accountId": accountID,
		"state":     h.engine.ConnectionState(accountID),
	})
}

func (h *AccountsHandler) SyncNow(c *gin.Context) {
	result, err := h.engine.SyncNow(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *AccountsHandler) SyncStatus(c *gin.Context) {
	accountID := c.Param("id")
	state, err := h.engine.SyncState(c.Request.Context(), accountID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"syncState":       state,
		"connectionState": h.engine.ConnectionState(accountID),
	})
}
