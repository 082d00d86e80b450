package rpc

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ledgerflow/internal/apperr"
	"ledgerflow/internal/ids"
	"ledgerflow/internal/ledger/engine"
	"ledgerflow/internal/logging"
)

// Server adapts the Ledger engine onto gin HTTP handlers, the teacher's
// transport of choice (internal/api/handlers/*.go): bind JSON, call the
// engine, translate the result.
type Server struct {
	engine *engine.Engine
}

func NewServer(e *engine.Engine) *Server {
	return &Server{engine: e}
}

// RegisterRoutes wires the five Ledger RPC methods onto r, mirroring the
// teacher's internal/api/routes/routes.go registration style.
func (s *Server) RegisterRoutes(r gin.IRouter) {
	r.GET("/accounts/:id/balance", s.getBalance)
	r.POST("/accounts/:id/reservations", s.reserveBalance)
	r.POST("/reservations/:id/commit", s.commitReservation)
	r.POST("/reservations/:id/release", s.releaseReservation)
	r.POST("/accounts/:id/credit", s.creditBalance)
}

func (s *Server) getBalance(c *gin.Context) {
	accountID := c.Param("id")
	balance, err := s.engine.GetBalance(c.Request.Context(), accountID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, GetBalanceResponse{Available: balance.Available, Currency: balance.Currency})
}

func (s *Server) reserveBalance(c *gin.Context) {
	accountID := c.Param("id")
	var req ReserveBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.InvalidArgumentf("malformed request body: %v", err))
		return
	}

	reservationID, err := s.engine.ReserveBalance(c.Request.Context(), accountID, req.Amount.Amount, req.Amount.Currency, req.IdempotencyKey)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ReserveBalanceResponse{ReservationID: reservationID})
}

func (s *Server) commitReservation(c *gin.Context) {
	reservationID := c.Param("id")
	if !ids.Valid(reservationID) {
		writeError(c, apperr.InvalidArgumentf("malformed reservation id %q", reservationID))
		return
	}
	var req CommitReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.InvalidArgumentf("malformed request body: %v", err))
		return
	}

	if err := s.engine.CommitReservation(c.Request.Context(), reservationID, req.TransactionID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) releaseReservation(c *gin.Context) {
	reservationID := c.Param("id")
	if !ids.Valid(reservationID) {
		writeError(c, apperr.InvalidArgumentf("malformed reservation id %q", reservationID))
		return
	}
	var req ReleaseReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.InvalidArgumentf("malformed request body: %v", err))
		return
	}

	if err := s.engine.ReleaseReservation(c.Request.Context(), reservationID, req.Reason); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) creditBalance(c *gin.Context) {
	accountID := c.Param("id")
	var req CreditBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.InvalidArgumentf("malformed request body: %v", err))
		return
	}

	newBalance, err := s.engine.CreditBalance(c.Request.Context(), accountID, req.Amount.Amount, req.Amount.Currency, req.ReferenceID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, CreditBalanceResponse{NewBalance: newBalance})
}

func writeError(c *gin.Context, err error) {
	category := apperr.CategoryOf(err)
	status := apperr.StatusFor(category)
	logging.Warn("ledger rpc call failed", map[string]interface{}{
		"category": string(category),
		"error":    err.Error(),
		"path":     c.FullPath(),
	})
	c.JSON(status, ErrorResponse{Category: string(category), Message: err.Error()})
}
