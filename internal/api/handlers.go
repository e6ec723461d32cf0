package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/MJE43/stake-roulette-sim/internal/betting"
	"github.com/MJE43/stake-roulette-sim/internal/engine"
	"github.com/MJE43/stake-roulette-sim/internal/games"
	"github.com/MJE43/stake-roulette-sim/internal/logger"
	"github.com/MJE43/stake-roulette-sim/internal/metrics"
	"github.com/MJE43/stake-roulette-sim/internal/scripting"
	"github.com/MJE43/stake-roulette-sim/internal/simulation"
	"github.com/MJE43/stake-roulette-sim/internal/store"
)

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, r, http.StatusBadRequest,
			NewError(ErrTypeValidation, "Invalid JSON format").WithCause(err))
		return false
	}
	return true
}

// handleVerify recomputes one spin.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := ValidateVerifyRequest(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest,
			NewError(ErrTypeInvalidSeed, err.Error()))
		return
	}

	out := games.Spin(req.Seeds, req.Nonce, req.Cursor)
	class, payout := betting.Classify(out)
	s.metrics.Verified.Inc()

	hash := req.Seeds.ServerHash()
	s.log.Info("spin verified",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("server_seed_hash", logger.SeedPrefix(hash)),
		zap.Uint64("nonce", req.Nonce),
		zap.Uint64("cursor", req.Cursor),
		zap.Int("pocket", out.Pocket),
	)

	s.writeJSON(w, http.StatusOK, VerifyResponse{
		Nonce:          req.Nonce,
		Cursor:         req.Cursor,
		ServerSeedHash: hash,
		Pocket:         out.Pocket,
		Color:          out.Color,
		Parity:         out.Parity,
		Float:          out.Float,
		Outcome:        class,
		Payout:         payout,
		GameResult:     s.game.Evaluate(req.Seeds, req.Nonce, req.Cursor),
		EngineVersion:  EngineVersion,
	})
}

func (s *Server) bettingConfig(req *SimulateRequest) betting.Config {
	cfg := s.defaults
	if req.StartingBalance.Valid {
		cfg.StartingBalance = req.StartingBalance.Decimal
	}
	if req.BaseWager.Valid {
		cfg.BaseWager = req.BaseWager.Decimal
	}
	if req.LossMultiplier.Valid {
		cfg.LossMultiplier = req.LossMultiplier.Decimal
	}
	return cfg
}

// handleSimulate runs a bounded simulation inside the request.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := ValidateSimulateRequest(&req, s.maxRounds); err != nil {
		s.writeError(w, r, http.StatusBadRequest,
			NewError(ErrTypeValidation, err.Error()).WithContext("max_rounds_cap", s.maxRounds))
		return
	}
	if req.Persist && s.store == nil {
		s.writeError(w, r, http.StatusServiceUnavailable,
			NewError(ErrTypeServiceUnavailable, "session store is not configured"))
		return
	}

	cfg := simulation.Config{
		Seeds:      req.Seeds,
		StartNonce: req.StartNonce,
		MaxRounds:  req.MaxRounds,
		Betting:    s.bettingConfig(&req),
	}
	if err := cfg.Validate(); err != nil {
		s.writeError(w, r, http.StatusBadRequest,
			NewError(ErrTypeInvalidParams, err.Error()))
		return
	}

	requestID := middleware.GetReqID(r.Context())
	runLog := s.log.With(zap.String("request_id", requestID))
	opts := []simulation.Option{
		simulation.WithLogger(runLog),
		simulation.WithSink(metrics.NewSink(s.metrics)),
	}

	if req.StopRule != "" {
		rule, err := scripting.NewStopRule(req.StopRule, runLog)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest,
				NewError(ErrTypeScript, "Invalid stop rule").WithCause(err))
			return
		}
		opts = append(opts, simulation.WithStopRule(rule))
	}

	var rec *store.Recorder
	if req.Persist {
		id, err := s.store.CreateSession(r.Context(), store.NewSession(cfg, req.StopRule))
		if err != nil {
			s.writeError(w, r, http.StatusInternalServerError,
				NewError(ErrTypeInternal, "Failed to create session").WithCause(err))
			return
		}
		rec = store.NewRecorder(s.store, id, store.DefaultFlushSize)
		opts = append(opts, simulation.WithSink(rec))
	}

	start := time.Now()
	sum, runErr := simulation.New(cfg, opts...).Run(r.Context())
	elapsed := time.Since(start)
	s.metrics.ObserveSummary(sum)

	resp := SimulateResponse{
		Summary:       sum,
		WinRate:       sum.WinRate(),
		DurationMs:    elapsed.Milliseconds(),
		EngineVersion: EngineVersion,
	}

	if rec != nil {
		resp.SessionID = rec.SessionID()
		// The request context may already be done; the rows played so far
		// are still worth keeping.
		ctx := context.WithoutCancel(r.Context())
		if err := rec.Close(ctx); err != nil && runErr == nil {
			runErr = err
		}
		if err := s.store.EndSession(ctx, rec.SessionID(), sum); err != nil {
			s.log.Error("end session", zap.String("session_id", rec.SessionID()), zap.Error(err))
		}
	}

	if runErr != nil {
		eb := NewError(ErrTypeSimulationAborted, "Simulation aborted").
			WithCause(runErr).
			WithContext("reason", sum.Reason).
			WithContext("rounds", sum.Rounds).
			WithContext("last_nonce", sum.LastNonce)
		if errors.Is(runErr, scripting.ErrScriptTimeout) {
			eb.WithContext("script_timeout", true)
		}
		s.writeError(w, r, http.StatusUnprocessableEntity, eb)
		return
	}
	if sum.Reason == simulation.ReasonCancelled && errors.Is(r.Context().Err(), context.DeadlineExceeded) {
		s.writeError(w, r, http.StatusRequestTimeout,
			NewError(ErrTypeTimeout, "Simulation timed out").
				WithContext("rounds", sum.Rounds).
				WithContext("timeout_ms", s.timeout.Milliseconds()))
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// handleSeedHash returns the commitment of a server seed.
func (s *Server) handleSeedHash(w http.ResponseWriter, r *http.Request) {
	var req SeedHashRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := ValidateSeedHashRequest(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest,
			NewError(ErrTypeInvalidSeed, err.Error()))
		return
	}
	s.writeJSON(w, http.StatusOK, SeedHashResponse{
		Hash:          engine.HashServerSeed(req.ServerSeed),
		EngineVersion: EngineVersion,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		EngineVersion: EngineVersion,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Uptime:        time.Since(s.startTime).Round(time.Second).String(),
		Store:         "disabled",
	}
	if s.store != nil {
		resp.Store = "ok"
		if err := s.store.Ping(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Store = err.Error()
			s.writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, GetVersionInfo())
}

func (s *Server) requireStore(w http.ResponseWriter, r *http.Request) bool {
	if s.store == nil {
		s.writeError(w, r, http.StatusServiceUnavailable,
			NewError(ErrTypeServiceUnavailable, "session store is not configured"))
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	sessions, total, err := s.store.ListSessions(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError,
			NewError(ErrTypeInternal, "Failed to list sessions").WithCause(err))
		return
	}
	s.writeJSON(w, http.StatusOK, SessionsResponse{
		Sessions:   sessions,
		TotalCount: total,
		Limit:      limit,
		Offset:     offset,
	})
}

func (s *Server) sessionError(w http.ResponseWriter, r *http.Request, id string, err error) {
	if errors.Is(err, store.ErrSessionNotFound) {
		s.writeError(w, r, http.StatusNotFound,
			NewError(ErrTypeNotFound, "Session not found").WithContext("session_id", id))
		return
	}
	s.writeError(w, r, http.StatusInternalServerError,
		NewError(ErrTypeInternal, "Session lookup failed").WithCause(err))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	sess, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		s.sessionError(w, r, id, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleGetRounds(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetSession(r.Context(), id); err != nil {
		s.sessionError(w, r, id, err)
		return
	}
	page, err := s.store.GetRounds(r.Context(), id, queryInt(r, "page", 1), queryInt(r, "per_page", 100))
	if err != nil {
		s.sessionError(w, r, id, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteSession(r.Context(), id); err != nil {
		s.sessionError(w, r, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
