package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/inboxd/inboxd/interfaces"
	apperrors "github.com/inboxd/inboxd/internal/errors"
	"github.com/inboxd/inboxd/internal/repository"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

type MessagesHandler struct {
	repos  *repository.Repositories
	engine interfaces.MailService
}

func NewMessagesHandler(repos *repository.Repositories, engine interfaces.MailService) *MessagesHandler {
	return &MessagesHandler{repos: repos, engine: engine}
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageLimit)))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > maxPageLimit {
		limit = defaultPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (h *MessagesHandler) List(c *gin.Context) {
	limit, offset := pagination(c)
	accountID := c.Param("id")

	messages, err := h.repos.MessageRepository.ListByAccount(c.Request.Context(), accountID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	total, err := h.repos.MessageRepository.CountByAccount(c.Request.Context(), accountID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages, "total": total})
}

func (h *MessagesHandler) Get(c *gin.Context) {
	message, err := h.repos.MessageRepository.GetByID(c.Request.Context(), c.Param("id"), c.Param("messageId"))
	if err != nil {
		respondError(c, err)
		return
	}
	if message == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	c.JSON(http.StatusOK, message)
}

func (h *MessagesHandler) ListThreads(c *gin.Context) {
	limit, offset := pagination(c)
	threads, err := h.repos.ThreadRepository.ListByAccount(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": threads})
}

func (h *MessagesHandler) GetThread(c *gin.Context) {
	accountID := c.Param("id")
	threadID := c.Param("threadId")

	thread, err := h.repos.ThreadRepository.GetByID(c.Request.Context(), accountID, threadID)
	if err != nil {
		respondError(c, err)
		return
	}
	if thread == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
		return
	}
	messages, err := h.repos.MessageRepository.ListByThread(c.Request.Context(), accountID, threadID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"thread": thread, "messages": messages})
}

func (h *MessagesHandler) ListLabels(c *gin.Context) {
	labels, err := h.repos.LabelRepository.ListByAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"labels": labels})
}

// Search queries the local cache. Pass remote=true to search the
// backend directly instead.
func (h *MessagesHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
		return
	}
	limit, offset := pagination(c)
	accountID := c.Param("id")

	if c.Query("remote") == "true" {
		messages, err := h.engine.SearchRemote(c.Request.Context(), accountID, query, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": messages, "source": "remote"})
		return
	}

	messages, err := h.repos.MessageRepository.Search(c.Request.Context(), accountID, query, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages, "source": "cache"})
}

type messageIDsRequest struct {
	MessageIDs []string `json:"messageIds" binding:"required"`
	Read       *bool    `json:"read"`
}

func (h *MessagesHandler) MarkRead(c *gin.Context) {
	var req messageIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.MessageIDs) == 0 {
		respondError(c, apperrors.New(apperrors.KindInvalidRequest, "messageIds is empty"))
		return
	}
	read := req.Read == nil || *req.Read

	if err := h.engine.MarkAsRead(c.Request.Context(), c.Param("id"), req.MessageIDs, read); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": len(req.MessageIDs), "read": read})
}

func (h *MessagesHandler) Delete(c *gin.Context) {
	var req messageIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.engine.DeleteMessages(c.Request.Context(), c.Param("id"), req.MessageIDs); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": len(req.MessageIDs)})
}

func (h *MessagesHandler) Archive(c *gin.Context) {
	var req messageIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.engine.ArchiveMessages(c.Request.Context(), c.Param("id"), req.MessageIDs); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": len(req.MessageIDs)})
}
