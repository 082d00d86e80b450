package rpc

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ledgerflow/internal/apperr"
	"ledgerflow/internal/ids"
	"ledgerflow/internal/logging"
	"ledgerflow/internal/orchestrator/domain"
	"ledgerflow/internal/orchestrator/service"
)

type Server struct {
	orchestrator *service.Orchestrator
}

func NewServer(o *service.Orchestrator) *Server {
	return &Server{orchestrator: o}
}

func (s *Server) RegisterRoutes(r gin.IRouter) {
	r.POST("/payments", s.createPayment)
	r.POST("/payments/:id/process", s.processPayment)
	r.POST("/payments/:id/cancel", s.cancelPayment)
}

func (s *Server) createPayment(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.InvalidArgumentf("malformed request body: %v", err))
		return
	}

	p, err := s.orchestrator.CreatePayment(c.Request.Context(), req.SourceAccountID, req.DestinationAccountID, req.Amount.Amount, req.Amount.Currency)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(p))
}

func (s *Server) processPayment(c *gin.Context) {
	paymentID := c.Param("id")
	if !ids.Valid(paymentID) {
		writeError(c, apperr.InvalidArgumentf("malformed payment id %q", paymentID))
		return
	}
	p, err := s.orchestrator.ProcessPayment(c.Request.Context(), paymentID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(p))
}

func (s *Server) cancelPayment(c *gin.Context) {
	paymentID := c.Param("id")
	if !ids.Valid(paymentID) {
		writeError(c, apperr.InvalidArgumentf("malformed payment id %q", paymentID))
		return
	}
	p, err := s.orchestrator.CancelPayment(c.Request.Context(), paymentID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(p))
}

func toResponse(p domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                   p.ID,
		ReferenceNumber:      p.ReferenceNumber,
		SourceAccountID:      p.SourceAccountID,
		DestinationAccountID: p.DestinationAccountID,
		Amount:               Money{Amount: p.Amount, Currency: p.Currency},
		Status:               string(p.Status),
		ReservationID:        p.ReservationID,
		TransactionID:        p.TransactionID,
		FailureReason:        p.FailureReason,
	}
}

func writeError(c *gin.Context, err error) {
	category := apperr.CategoryOf(err)
	status := apperr.StatusFor(category)
	logging.Warn("orchestrator rpc call failed", map[string]interface{}{
		"category": string(category),
		"error":    err.Error(),
		"path":     c.FullPath(),
	})
	c.JSON(status, ErrorResponse{Category: string(category), Message: err.Error()})
}
