package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"promptmaster/internal/models"
	"promptmaster/internal/prompt"
	"promptmaster/internal/worker"
)

const turnTimeout = 2 * time.Minute

type createSessionRequest struct {
	Mode string `json:"mode"`
}

func (h *Handler) createSession(c *gin.Context) {
	var req createSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	var mode models.Mode
	if strings.TrimSpace(req.Mode) != "" {
		parsed, err := prompt.ParseMode(req.Mode)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		mode = parsed
	}
	session, messages, err := h.assistant.CreateSession(c.Request.Context(), mode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": session, "messages": messages})
}

// getSession returns the log; ?mode= narrows it to one mode's view.
func (h *Handler) getSession(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("id")
	session, messages, err := h.assistant.GetSession(ctx, sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	if raw := c.Query("mode"); raw != "" {
		mode, err := prompt.ParseMode(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		messages, err = h.assistant.MessagesForMode(ctx, sessionID, mode)
		if err != nil {
			writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"session": session, "messages": messages})
}

func (h *Handler) deleteSession(c *gin.Context) {
	sessionID := c.Param("id")
	if err := h.assistant.DeleteSession(c.Request.Context(), sessionID); err != nil {
		writeError(c, err)
		return
	}
	h.workers.Purge(sessionID)
	c.Status(http.StatusNoContent)
}

type switchModeRequest struct {
	Mode string `json:"mode"`
}

func (h *Handler) switchMode(c *gin.Context) {
	var req switchModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	mode, err := prompt.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session, greeting, err := h.assistant.SwitchMode(c.Request.Context(), c.Param("id"), mode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session, "greeting": greeting})
}

type setStyleRequest struct {
	Style string `json:"style"`
}

func (h *Handler) setStyle(c *gin.Context) {
	var req setStyleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	style, err := prompt.ParseStyle(req.Style)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session, err := h.assistant.SetStyle(c.Request.Context(), c.Param("id"), style)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

func (h *Handler) clearHistory(c *gin.Context) {
	session, messages, err := h.assistant.ClearHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session, "messages": messages})
}

type feedbackRequest struct {
	Feedback string `json:"feedback"`
}

func (h *Handler) setFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	feedback := models.Feedback(strings.ToLower(strings.TrimSpace(req.Feedback)))
	msg, err := h.assistant.SetFeedback(c.Request.Context(), c.Param("id"), c.Param("message_id"), feedback)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

type messageRequest struct {
	Content string `json:"content"`
	Style   string `json:"style"`
}

// sendMessage runs one chat turn and streams ack, then done or error.
// Validation failures are answered before the stream opens.
func (h *Handler) sendMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}
	ctx := c.Request.Context()
	sessionID := c.Param("id")
	session, _, err := h.assistant.GetSession(ctx, sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	style := session.Style
	if strings.TrimSpace(req.Style) != "" {
		style, err = prompt.ParseStyle(req.Style)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if _, err := h.catalog.Lookup(session.Mode, style); err != nil {
			writeError(c, err)
			return
		}
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}
	turnCtx, cancel := context.WithTimeout(ctx, turnTimeout)
	defer cancel()

	streamOpen := false
	openStream := func() {
		if streamOpen {
			return
		}
		streamOpen = true
		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)
	}
	sendEvent := func(event string, payload interface{}) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	res, err := h.workers.Turn(worker.TurnRequest{
		Context:   turnCtx,
		SessionID: sessionID,
		Content:   req.Content,
		Style:     style,
		OnAccepted: func(msg *models.Message) {
			openStream()
			_ = sendEvent("ack", gin.H{"message": msg})
		},
	})
	if err != nil {
		if !streamOpen {
			// rejected before the user message was logged
			writeError(c, err)
			return
		}
		msg := err.Error()
		if errors.Is(err, worker.ErrDispatcherBusy) {
			msg = "server is busy, please retry"
		}
		_ = sendEvent("error", gin.H{"message": msg})
		return
	}
	openStream()
	payload := gin.H{
		"user_message": res.UserMessage,
		"ai_message":   res.AssistantMessage,
	}
	if res.Result.Err != nil {
		payload["fallback"] = res.Result.Kind
	}
	_ = sendEvent("done", payload)
}
