package rpc

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ledgerflow/internal/apperr"
	"ledgerflow/internal/ids"
	"ledgerflow/internal/logging"
	"ledgerflow/internal/txrecord/engine"
)

type Server struct {
	engine *engine.Engine
}

func NewServer(e *engine.Engine) *Server {
	return &Server{engine: e}
}

func (s *Server) RegisterRoutes(r gin.IRouter) {
	r.POST("/transactions", s.createTransaction)
	r.POST("/transactions/:id/complete", s.completeTransaction)
	r.POST("/transactions/:id/fail", s.failTransaction)
}

func (s *Server) createTransaction(c *gin.Context) {
	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.InvalidArgumentf("malformed request body: %v", err))
		return
	}

	transactionID, referenceNumber, err := s.engine.CreateTransaction(
		c.Request.Context(), req.PaymentID, req.ReservationID, req.SourceID, req.DestinationID,
		req.Amount.Amount, req.Amount.Currency, req.IdempotencyKey,
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, CreateTransactionResponse{TransactionID: transactionID, ReferenceNumber: referenceNumber})
}

func (s *Server) completeTransaction(c *gin.Context) {
	transactionID := c.Param("id")
	if !ids.Valid(transactionID) {
		writeError(c, apperr.InvalidArgumentf("malformed transaction id %q", transactionID))
		return
	}
	if err := s.engine.CompleteTransaction(c.Request.Context(), transactionID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) failTransaction(c *gin.Context) {
	transactionID := c.Param("id")
	if !ids.Valid(transactionID) {
		writeError(c, apperr.InvalidArgumentf("malformed transaction id %q", transactionID))
		return
	}
	var req FailTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.InvalidArgumentf("malformed request body: %v", err))
		return
	}

	if err := s.engine.FailTransaction(c.Request.Context(), transactionID, req.Reason); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func writeError(c *gin.Context, err error) {
	category := apperr.CategoryOf(err)
	status := apperr.StatusFor(category)
	logging.Warn("txrecord rpc call failed", map[string]interface{}{
		"category": string(category),
		"error":    err.Error(),
		"path":     c.FullPath(),
	})
	c.JSON(status, ErrorResponse{Category: string(category), Message: err.Error()})
}
