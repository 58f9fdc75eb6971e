// Package control exposes the operator HTTP surface: engine start/stop,
// parameter updates, withdrawals, liquidation and gas recharge. Every
// endpoint maps 1:1 to a scheduler, custody or executor operation.
package control

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	engineDomain "github.com/flowsniper/flowsniper/business/engine/domain"
	"github.com/flowsniper/flowsniper/internal/apperror"
	"github.com/flowsniper/flowsniper/internal/asset"
	"github.com/flowsniper/flowsniper/internal/logger"
)

// Engine is the scheduler slice the control surface drives.
type Engine interface {
	Start(mode string, params engineDomain.Params) error
	Stop() error
	Snapshot() engineDomain.Snapshot
	UpdateParams(params engineDomain.Params) engineDomain.Params
}

// FlowHistory serves recent audit records for /status.
type FlowHistory interface {
	Recent(n int) []engineDomain.FlowStep
}

// Treasury moves funds on operator request.
type Treasury interface {
	Transfer(ctx context.Context, token *asset.Asset, to common.Address, amount decimal.Decimal) (common.Hash, error)
	RechargeGas(ctx context.Context, amount decimal.Decimal) (common.Hash, error)
	EmergencyLiquidate(ctx context.Context, registry *asset.Registry) ([]common.Hash, error)
}

// Custodian is the custody slice exposed over HTTP.
type Custodian interface {
	Operator() common.Address
	Owner() (common.Address, bool)
	Pair(ctx context.Context, owner common.Address, signature []byte) error
}

// Config holds the control server settings.
type Config struct {
	ListenAddr string

	// AuthToken, when set, is required as a bearer token on every
	// request.
	AuthToken string
}

// Server is the operator control HTTP server.
type Server struct {
	cfg      Config
	engine   Engine
	history  FlowHistory
	treasury Treasury
	custody  Custodian
	registry *asset.Registry
	logger   logger.LoggerInterface

	httpServer *http.Server
}

// NewServer creates the control server.
func NewServer(cfg Config, engine Engine, history FlowHistory, treasury Treasury, custody Custodian, registry *asset.Registry, log logger.LoggerInterface) *Server {
	return &Server{
		cfg:      cfg,
		engine:   engine,
		history:  history,
		treasury: treasury,
		custody:  custody,
		registry: registry,
		logger:   log,
	}
}

// Start begins serving. Non-blocking; errors after bind are logged.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.auth(s.handleStatus))
	mux.HandleFunc("POST /start", s.auth(s.handleStart))
	mux.HandleFunc("POST /stop", s.auth(s.handleStop))
	mux.HandleFunc("POST /config", s.auth(s.handleConfig))
	mux.HandleFunc("POST /pair", s.auth(s.handlePair))
	mux.HandleFunc("POST /withdraw", s.auth(s.handleWithdraw))
	mux.HandleFunc("POST /liquidate", s.auth(s.handleLiquidate))
	mux.HandleFunc("POST /recharge", s.auth(s.handleRecharge))

	s.httpServer = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(context.Background(), "control server failed", "error", err)
		}
	}()

	s.logger.Info(context.Background(), "control server listening", "addr", s.cfg.ListenAddr)
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AuthToken != "" {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) != 1 {
				s.writeError(w, r, apperror.New(apperror.CodeUnauthorized,
					apperror.WithContext("missing or invalid auth token")))
				return
			}
		}
		next(w, r)
	}
}

type statusResponse struct {
	Engine   engineDomain.Snapshot   `json:"engine"`
	Operator string                  `json:"operator"`
	Owner    string                  `json:"owner,omitempty"`
	Recent   []engineDomain.FlowStep `json:"recent"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Engine:   s.engine.Snapshot(),
		Operator: s.custody.Operator().Hex(),
		Recent:   s.history.Recent(50),
	}
	if owner, ok := s.custody.Owner(); ok {
		resp.Owner = owner.Hex()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type startRequest struct {
	Mode   string              `json:"mode"`
	Params engineDomain.Params `json:"params"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.engine.Start(req.Mode, req.Params); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Stop(); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	var params engineDomain.Params
	if err := s.readJSON(r, &params); err != nil {
		s.writeError(w, r, err)
		return
	}

	merged := s.engine.UpdateParams(params)
	s.writeJSON(w, http.StatusOK, merged)
}

type pairRequest struct {
	Owner     string `json:"owner"`
	Signature string `json:"signature"`
}

func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	var req pairRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if !common.IsHexAddress(req.Owner) {
		s.writeError(w, r, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("owner must be a hex address")))
		return
	}

	signature, err := hex.DecodeString(strings.TrimPrefix(req.Signature, "0x"))
	if err != nil {
		s.writeError(w, r, apperror.New(apperror.CodeInvalidFormat,
			apperror.WithContext("signature must be hex")))
		return
	}

	if err := s.custody.Pair(r.Context(), common.HexToAddress(req.Owner), signature); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"owner":    req.Owner,
		"operator": s.custody.Operator().Hex(),
	})
}

type withdrawRequest struct {
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if !common.IsHexAddress(req.To) {
		s.writeError(w, r, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("to must be a hex address")))
		return
	}

	token, err := s.lookupToken(req.Token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		s.writeError(w, r, apperror.New(apperror.CodeInvalidFormat,
			apperror.WithContext("amount must be a decimal number")))
		return
	}

	hash, err := s.treasury.Transfer(r.Context(), token, common.HexToAddress(req.To), amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"tx_hash": hash.Hex()})
}

func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	hashes, err := s.treasury.EmergencyLiquidate(r.Context(), s.registry)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	hexes := make([]string, 0, len(hashes))
	for _, h := range hashes {
		hexes = append(hexes, h.Hex())
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tx_hashes": hexes})
}

type rechargeRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) handleRecharge(w http.ResponseWriter, r *http.Request) {
	var req rechargeRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		s.writeError(w, r, apperror.New(apperror.CodeInvalidFormat,
			apperror.WithContext("amount must be a decimal number")))
		return
	}

	hash, err := s.treasury.RechargeGas(r.Context(), amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"tx_hash": hash.Hex()})
}

func (s *Server) lookupToken(symbol string) (*asset.Asset, error) {
	if symbol == "" {
		return nil, apperror.New(apperror.CodeRequiredField,
			apperror.WithContext("token is required"))
	}
	for _, a := range s.registry.All() {
		if a.IsToken() && strings.EqualFold(a.Symbol(), symbol) {
			return a, nil
		}
	}
	return nil, apperror.New(apperror.CodeNotFound,
		apperror.WithContext("unknown token "+symbol))
}

func (s *Server) readJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := decoder.Decode(dst); err != nil {
		return apperror.New(apperror.CodeInvalidFormat,
			apperror.WithCause(err), apperror.WithContext("invalid request body"))
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperror.GetCode(err)

	status := http.StatusInternalServerError
	switch code {
	case apperror.CodeUnauthorized:
		status = http.StatusUnauthorized
	case apperror.CodeInvalidInput, apperror.CodeInvalidFormat, apperror.CodeRequiredField,
		apperror.CodeInvalidTradeSize, apperror.CodeEngineNotRunning:
		status = http.StatusBadRequest
	case apperror.CodeNotFound:
		status = http.StatusNotFound
	case apperror.CodeEngineAlreadyRunning:
		status = http.StatusConflict
	}

	s.logger.Warn(r.Context(), "control request failed",
		"path", r.URL.Path, "code", string(code), "error", err)

	s.writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  string(code),
	})
}
