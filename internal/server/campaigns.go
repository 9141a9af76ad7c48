package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/padalahq/padala/internal/campaign"
	"github.com/padalahq/padala/internal/generate"
)

func (s *Server) handleCampaignCreate(c *gin.Context) {
	p := s.store.Create()
	c.JSON(http.StatusCreated, gin.H{
		"campaign":       p.Snapshot(),
		"personas":       campaign.Personas,
		"campaign_types": campaign.CampaignTypes,
	})
}

func (s *Server) lookupCampaign(c *gin.Context) (*campaign.Pipeline, bool) {
	p, ok := s.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
		return nil, false
	}
	return p, true
}

func (s *Server) handleCampaignGet(c *gin.Context) {
	p, ok := s.lookupCampaign(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaign": p.Snapshot()})
}

func writeCampaignError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, campaign.ErrUnknownOption):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, campaign.ErrInvalidStep), errors.Is(err, campaign.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func (s *Server) handleCampaignPersona(c *gin.Context) {
	p, ok := s.lookupCampaign(c)
	if !ok {
		return
	}
	var req struct {
		Persona string `json:"persona"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Persona is required"})
		return
	}
	if err := p.SelectPersona(req.Persona); err != nil {
		writeCampaignError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaign": p.Snapshot()})
}

func (s *Server) handleCampaignType(c *gin.Context) {
	p, ok := s.lookupCampaign(c)
	if !ok {
		return
	}
	var req struct {
		CampaignType string `json:"campaign_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Campaign type is required"})
		return
	}
	if err := p.SelectCampaignType(req.CampaignType); err != nil {
		writeCampaignError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaign": p.Snapshot()})
}

// handleCampaignGenerate runs generation plus the initial classification. On
// failure the wizard stays at the brief step; the response carries both the
// error and the snapshot so the banner can be rendered.
func (s *Server) handleCampaignGenerate(c *gin.Context) {
	p, ok := s.lookupCampaign(c)
	if !ok {
		return
	}
	var req struct {
		Brief string `json:"brief"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Brief is required"})
		return
	}

	if err := p.Generate(c.Request.Context(), req.Brief, requestMeta(c)); err != nil {
		status := http.StatusInternalServerError
		var blocked *generate.BlockedError
		var length *generate.LengthError
		switch {
		case errors.Is(err, campaign.ErrInvalidStep), errors.Is(err, campaign.ErrBusy):
			writeCampaignError(c, err)
			return
		case errors.As(err, &blocked), errors.As(err, &length), errors.Is(err, generate.ErrMissingInput):
			status = http.StatusBadRequest
		}
		snap := p.Snapshot()
		c.JSON(status, gin.H{"error": snap.LastError, "campaign": snap})
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaign": p.Snapshot()})
}

func (s *Server) handleCampaignEdit(c *gin.Context) {
	p, ok := s.lookupCampaign(c)
	if !ok {
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
		return
	}
	if err := p.EditMessage(req.Message); err != nil {
		writeCampaignError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaign": p.Snapshot()})
}

func (s *Server) handleCampaignReset(c *gin.Context) {
	p, ok := s.lookupCampaign(c)
	if !ok {
		return
	}
	if err := p.ResetMessage(); err != nil {
		writeCampaignError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaign": p.Snapshot()})
}

func (s *Server) handleCampaignRecipient(c *gin.Context) {
	p, ok := s.lookupCampaign(c)
	if !ok {
		return
	}
	var req struct {
		Recipient string `json:"recipient"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Recipient is required"})
		return
	}
	if err := p.SetRecipient(req.Recipient); err != nil {
		writeCampaignError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaign": p.Snapshot()})
}

func (s *Server) handleCampaignBack(c *gin.Context) {
	p, ok := s.lookupCampaign(c)
	if !ok {
		return
	}
	if err := p.Back(); err != nil {
		writeCampaignError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaign": p.Snapshot()})
}

func (s *Server) handleCampaignSend(c *gin.Context) {
	p, ok := s.lookupCampaign(c)
	if !ok {
		return
	}
	receipts, err := p.Send(c.Request.Context())
	if err != nil {
		if errors.Is(err, campaign.ErrSendUnavailable) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error(), "campaign": p.Snapshot()})
			return
		}
		writeSendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "SMS sent successfully",
		"data":     receipts,
		"campaign": p.Snapshot(),
	})
}
