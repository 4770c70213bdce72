package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"conflux/internal/chat"
	"conflux/internal/ledger"
	"conflux/internal/logger"
	"conflux/internal/replay"
	"conflux/internal/settle"
	"conflux/internal/store"
	"conflux/internal/store/cyclelog"
	"conflux/internal/wallet"

	"github.com/gin-gonic/gin"
)

// WalletService controls the wallet session lifecycle.
type WalletService interface {
	Connect(ctx context.Context) (wallet.Session, error)
	Disconnect()
	Session() wallet.Session
}

// LedgerService covers the contract operations the HTTP surface exposes.
type LedgerService interface {
	Deposit(ctx context.Context, amount uint64) (wallet.TxOutcome, error)
	RecordContributionScore(ctx context.Context, score uint64) (wallet.TxOutcome, error)
	DistributeProfit(ctx context.Context) (wallet.TxOutcome, error)
	SetModelReference(ctx context.Context, cid string) (wallet.TxOutcome, error)
	ContributionScore(ctx context.Context) (uint64, error)
	ProfitDistribution(ctx context.Context) ([]uint64, error)
	ModelReference(ctx context.Context) (string, error)
}

// TradeService starts trade cycles and reports replay progress.
type TradeService interface {
	StartCycle(ctx context.Context) (string, error)
	Snapshot() replay.Snapshot
}

// SettlementService reports the settlement state machine.
type SettlementService interface {
	State() settle.State
	LastResult() (settle.Result, bool)
}

// ModelDrive moves model artifacts to and from the drive gateway.
type ModelDrive interface {
	Upload(ctx context.Context, filename string, artifact io.Reader) (string, error)
	Download(ctx context.Context, cid string, w io.Writer) error
}

// Router binds the orchestration services to HTTP routes.
type Router struct {
	Wallet      WalletService
	Ledger      LedgerService
	Trade       TradeService
	Settlement  SettlementService
	Settlements store.SettlementStore
	Drive       ModelDrive
	ChatHub     *chat.Hub
	Responder   *chat.Responder
	ChatLog     store.ChatStore
	CycleLog    *cyclelog.Store
	Decimals    int
}

// Register mounts all API routes under group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/wallet/connect", r.handleWalletConnect)
	group.POST("/wallet/disconnect", r.handleWalletDisconnect)
	group.GET("/wallet/session", r.handleWalletSession)

	group.POST("/ledger/deposit", r.handleDeposit)
	group.POST("/ledger/score", r.handleRecordScore)
	group.GET("/ledger/score", r.handleQueryScore)
	group.POST("/ledger/distribute", r.handleDistribute)
	group.GET("/ledger/distribution", r.handleQueryDistribution)
	group.GET("/ledger/model", r.handleQueryModel)
	group.POST("/ledger/model", r.handleSetModel)

	if r.Drive != nil {
		group.POST("/model/upload", r.handleModelUpload)
		group.GET("/model/download/:cid", r.handleModelDownload)
	}

	group.POST("/trade/start", r.handleTradeStart)
	group.GET("/trade/replay", r.handleReplaySnapshot)
	if r.CycleLog != nil {
		group.GET("/trade/cycles", r.handleRecentCycles)
		group.GET("/trade/cycles/:id/logs", r.handleCycleLogs)
	}

	group.GET("/settlement/status", r.handleSettlementStatus)
	if r.Settlements != nil {
		group.GET("/settlement/history", r.handleSettlementHistory)
	}

	if r.ChatHub != nil {
		group.GET("/chat/ws", r.handleChatWS)
		group.GET("/chat/history", r.handleChatHistory)
	}
}

// --------------------- wallet -------------------------

func (r *Router) handleWalletConnect(c *gin.Context) {
	session, err := r.Wallet.Connect(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrWalletUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "wallet extension not detected"})
		case errors.Is(err, wallet.ErrAuthorizationDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "wallet authorization denied"})
		case errors.Is(err, wallet.ErrNoAccounts):
			c.JSON(http.StatusFailedDependency, gin.H{"error": "wallet exposes no accounts"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": session.Address, "chain_id": session.ChainID})
}

func (r *Router) handleWalletDisconnect(c *gin.Context) {
	r.Wallet.Disconnect()
	c.JSON(http.StatusOK, gin.H{"status": "disconnected"})
}

func (r *Router) handleWalletSession(c *gin.Context) {
	s := r.Wallet.Session()
	c.JSON(http.StatusOK, gin.H{
		"connected": s.Connected,
		"address":   s.Address,
		"chain_id":  s.ChainID,
	})
}

// --------------------- ledger -------------------------

type depositRequest struct {
	// Amount is in display units, e.g. "12.5" SCRT.
	Amount string `json:"amount" binding:"required"`
}

func (r *Router) handleDeposit(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount is required"})
		return
	}
	amount, err := ledger.ParseSmallestUnit(req.Amount, r.Decimals)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	outcome, err := r.Ledger.Deposit(c.Request.Context(), amount)
	if err != nil {
		r.ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tx_hash": outcome.Hash, "gas_used": outcome.GasUsed})
}

type scoreRequest struct {
	Score uint64 `json:"score"`
}

func (r *Router) handleRecordScore(c *gin.Context) {
	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "score is required"})
		return
	}
	outcome, err := r.Ledger.RecordContributionScore(c.Request.Context(), req.Score)
	if err != nil {
		r.ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tx_hash": outcome.Hash, "gas_used": outcome.GasUsed})
}

func (r *Router) handleDistribute(c *gin.Context) {
	outcome, err := r.Ledger.DistributeProfit(c.Request.Context())
	if err != nil {
		r.ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tx_hash": outcome.Hash, "gas_used": outcome.GasUsed})
}

func (r *Router) handleQueryScore(c *gin.Context) {
	score, err := r.Ledger.ContributionScore(c.Request.Context())
	if err != nil {
		r.ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"score": score})
}

func (r *Router) handleQueryDistribution(c *gin.Context) {
	shares, err := r.Ledger.ProfitDistribution(c.Request.Context())
	if err != nil {
		r.ledgerError(c, err)
		return
	}
	display := make([]string, len(shares))
	for i, s := range shares {
		display[i] = ledger.FromSmallestUnit(s, r.Decimals)
	}
	c.JSON(http.StatusOK, gin.H{"shares": shares, "shares_display": display})
}

func (r *Router) handleQueryModel(c *gin.Context) {
	cid, err := r.Ledger.ModelReference(c.Request.Context())
	if err != nil {
		r.ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cid": cid})
}

type modelRequest struct {
	CID string `json:"cid" binding:"required"`
}

func (r *Router) handleSetModel(c *gin.Context) {
	var req modelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cid is required"})
		return
	}
	outcome, err := r.Ledger.SetModelReference(c.Request.Context(), strings.TrimSpace(req.CID))
	if err != nil {
		r.ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tx_hash": outcome.Hash, "gas_used": outcome.GasUsed})
}

func (r *Router) ledgerError(c *gin.Context, err error) {
	var contractErr *ledger.ContractError
	var transportErr *ledger.TransportError
	switch {
	case errors.Is(err, ledger.ErrNotConnected):
		c.JSON(http.StatusConflict, gin.H{"error": "wallet not connected"})
	case errors.As(err, &contractErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "contract rejected the transaction",
			"code":    contractErr.Code,
			"tx_hash": contractErr.Hash,
			"reason":  contractErr.Reason,
		})
	case errors.As(err, &transportErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// --------------------- model artifacts -------------------------

func (r *Router) handleModelUpload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	cid, err := r.Drive.Upload(c.Request.Context(), header.Filename, file)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cid": cid})
}

func (r *Router) handleModelDownload(c *gin.Context) {
	cid := c.Param("cid")
	c.Header("Content-Type", "application/octet-stream")
	c.Header("Content-Disposition", "attachment; filename="+cid+".pth")
	if err := r.Drive.Download(c.Request.Context(), cid, c.Writer); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
}

// --------------------- trade cycles -------------------------

func (r *Router) handleTradeStart(c *gin.Context) {
	cycleID, err := r.Trade.StartCycle(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycle_id": cycleID, "status": "started"})
}

func (r *Router) handleReplaySnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, r.Trade.Snapshot())
}

func (r *Router) handleRecentCycles(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	cycles, err := r.CycleLog.RecentCycles(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycles": cycles})
}

func (r *Router) handleCycleLogs(c *gin.Context) {
	lines, err := r.CycleLog.LinesForCycle(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lines": lines})
}

// --------------------- settlement -------------------------

func (r *Router) handleSettlementStatus(c *gin.Context) {
	resp := gin.H{"state": r.Settlement.State().String()}
	if result, ok := r.Settlement.LastResult(); ok {
		resp["last_result"] = gin.H{
			"cycle_id":     result.CycleID,
			"total_profit": result.TotalProfitRecorded,
			"distribution": result.Distribution,
			"caller_share": result.CallerShare,
			"settled_at":   result.SettledAt,
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (r *Router) handleSettlementHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	recs, err := r.Settlements.ListSettlements(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settlements": recs})
}

// --------------------- chat -------------------------

func (r *Router) handleChatHistory(c *gin.Context) {
	if r.ChatLog != nil {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
		recs, err := r.ChatLog.RecentChatMessages(c.Request.Context(), limit)
		if err == nil {
			c.JSON(http.StatusOK, gin.H{"messages": recs})
			return
		}
		logger.Warnf("chat history read failed, serving in-memory backlog: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{"messages": r.ChatHub.History()})
}
