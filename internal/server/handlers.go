package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/padalahq/padala/internal/classify"
	"github.com/padalahq/padala/internal/generate"
	"github.com/padalahq/padala/internal/sms"
	"github.com/padalahq/padala/internal/tools"
)

func requestMeta(c *gin.Context) generate.Meta {
	return generate.Meta{
		UserAgent: c.Request.UserAgent(),
		RemoteIP:  c.ClientIP(),
	}
}

type generateRequest struct {
	Persona string `json:"persona"`
	Prompt  string `json:"prompt"`
}

func (s *Server) handleGenerate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Persona and prompt are required"})
		return
	}

	output, err := s.generator.Generate(c.Request.Context(), req.Persona, req.Prompt, requestMeta(c))
	if err != nil {
		writeGenerateError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":             true,
		"message":             output.Text,
		"persona":             req.Persona,
		"length":              output.Length,
		"charactersRemaining": output.CharactersRemaining,
	})
}

func writeGenerateError(c *gin.Context, err error) {
	var blocked *generate.BlockedError
	if errors.As(err, &blocked) {
		if !blocked.Audited {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Content could not be verified as safe",
				"blocked": true,
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":       "Content policy violation",
			"reason":      "Your prompt contains inappropriate content: " + blocked.Reason,
			"category":    blocked.Category,
			"blocked":     true,
			"violationId": blocked.ViolationID,
			"auditLogged": true,
		})
		return
	}

	var length *generate.LengthError
	if errors.As(err, &length) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Generated message exceeds 160 characters",
			"message": length.Text,
			"length":  length.Length,
		})
		return
	}

	if errors.Is(err, generate.ErrMissingInput) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Persona and prompt are required"})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate SMS content"})
}

type classifyRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleClassify(c *gin.Context) {
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
		return
	}

	result, err := s.classifier.Classify(c.Request.Context(), req.Message)
	if err != nil {
		if errors.Is(err, classify.ErrEmptyMessage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to classify SMS content"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        req.Message,
		"classification": result,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

type sendRequest struct {
	Message   string `json:"message"`
	Recipient string `json:"recipient"`
}

func (s *Server) handleSend(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == "" || req.Recipient == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Message and recipient are required"})
		return
	}

	receipts, err := s.sender.Send(c.Request.Context(), req.Recipient, req.Message)
	if err != nil {
		writeSendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "SMS sent successfully",
		"data":    receipts,
	})
}

func writeSendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sms.ErrMessageTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Message exceeds 160 character limit"})
	case errors.Is(err, sms.ErrInvalidRecipient):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid Philippine mobile number. Use format: +639XXXXXXXXX or 09XXXXXXXXX"})
	case errors.Is(err, sms.ErrUnconfigured):
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "SMS gateway not configured"})
	default:
		var transport *sms.TransportError
		if errors.As(err, &transport) {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": transport.Reason})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
	}
}

func (s *Server) handleToolList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": s.registry.Definitions()})
}

func (s *Server) handleToolInvoke(c *gin.Context) {
	var params map[string]interface{}
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}

	result, err := s.registry.Invoke(c.Request.Context(), c.Param("name"), params, requestMeta(c))
	if err != nil {
		writeToolError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func writeToolError(c *gin.Context, err error) {
	if errors.Is(err, tools.ErrUnknownTool) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	var invalid *tools.InvalidParamsError
	if errors.As(err, &invalid) {
		c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Error()})
		return
	}

	var blocked *generate.BlockedError
	var length *generate.LengthError
	switch {
	case errors.As(err, &blocked), errors.As(err, &length), errors.Is(err, generate.ErrMissingInput):
		writeGenerateError(c, err)
	case errors.Is(err, classify.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
	default:
		writeSendError(c, err)
	}
}
