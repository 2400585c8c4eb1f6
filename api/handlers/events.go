package handlers

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/inboxd/inboxd/interfaces"
)

// StreamEvents pushes the account's mail event stream to the client as
// server-sent events until the client disconnects.
func StreamEvents(dispatcher interfaces.EventDispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, cancel := dispatcher.Subscribe(c.Param("id"))
		defer cancel()

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")

		clientGone := c.Request.Context().Done()
		c.Stream(func(w io.Writer) bool {
			select {
			case <-clientGone:
				return false
			case event, ok := <-events:
				if !ok {
					return false
				}
				c.SSEvent(string(event.Type), event)
				return true
			}
		})
	}
}
