package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/inboxd/inboxd/services/classifier"
)

type classifyRequest struct {
	Text  string `json:"text" binding:"required"`
	Model string `json:"model" binding:"required"`
}

// Classify splits raw model output into reasoning and final answer
// using the convention of the named backend model.
func Classify(c *gin.Context) {
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, classifier.Classify(req.Text, req.Model))
}
