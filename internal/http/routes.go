package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	m "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"llm-eval-app/internal/db"
	"llm-eval-app/internal/eval"
	"llm-eval-app/internal/schemas"
	"llm-eval-app/internal/worker"
)

type Evaluator interface {
	Run(ctx context.Context, systemRole string, testCases []eval.TestCase) (*eval.Batch, error)
}

type Store interface {
	Ping(ctx context.Context) error
	SaveBatch(ctx context.Context, systemPrompt string, cases []eval.TestCase, batch *eval.Batch) (int64, error)
	ListExperiments(ctx context.Context) ([]db.Experiment, error)
	CreateBatchJob(ctx context.Context, id, systemPrompt string, request []byte) error
	GetBatchJob(ctx context.Context, id string) (*db.BatchJob, error)
	FailBatchJob(ctx context.Context, id, msg string) error
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Archive interface {
	GetJSON(ctx context.Context, ref string, out any) error
}

type Server struct {
	Eval     Evaluator
	Store    Store
	Queue    Enqueuer
	Archive  Archive
	APIToken string
	Logger   *zap.Logger
}

func NewServer(addr string, s *Server) *http.Server {
	return &http.Server{Addr: addr, Handler: s.Routes()}
}

func (s *Server) Routes() http.Handler {
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(m.RequestID, m.RealIP, m.Logger, m.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(RequireAPIToken(s.APIToken))
		r.Post("/evaluate", s.evaluate)
		r.Post("/experiments", s.saveExperiment)
		r.Get("/experiments", s.listExperiments)
		r.Post("/batches", s.createBatch)
		r.Get("/batches/{id}", s.getBatch)
	})

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

type errResp struct {
	Error string `json:"error"`
}

const (
	msgNoTestCases  = "No test cases provided"
	msgModelFailure = "Failed to communicate with model API"
	msgSaveFailure  = "Failed to save experiment"
	msgListFailure  = "Failed to fetch experiments"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "db error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeEvaluateRequest(w http.ResponseWriter, r *http.Request) (schemas.EvaluateRequest, bool) {
	var req schemas.EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errResp{err.Error()})
		return req, false
	}
	if len(req.TestCases) == 0 {
		writeJSON(w, http.StatusBadRequest, errResp{msgNoTestCases})
		return req, false
	}
	return req, true
}

// evaluate runs the batch synchronously. ?save=true also persists it.
func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEvaluateRequest(w, r)
	if !ok {
		return
	}
	batch, err := s.Eval.Run(r.Context(), req.SystemRole, req.TestCases)
	if err != nil {
		s.Logger.Error("evaluation failed", zap.Error(err), zap.String("request_id", m.GetReqID(r.Context())))
		writeJSON(w, http.StatusInternalServerError, errResp{msgModelFailure})
		return
	}

	out := schemas.EvaluateResponse{Batch: *batch}
	if r.URL.Query().Get("save") == "true" {
		id, err := s.Store.SaveBatch(r.Context(), req.SystemRole, req.TestCases, batch)
		if err != nil {
			s.Logger.Error("save batch failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errResp{msgSaveFailure})
			return
		}
		out.ExperimentID = &id
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) saveExperiment(w http.ResponseWriter, r *http.Request) {
	var req schemas.SaveExperimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errResp{err.Error()})
		return
	}
	if len(req.TestCases) == 0 {
		writeJSON(w, http.StatusBadRequest, errResp{msgNoTestCases})
		return
	}
	batch := &eval.Batch{ModelResponses: req.ModelResponses, ModelEvaluations: req.ModelEvaluations}
	id, err := s.Store.SaveBatch(r.Context(), req.SystemRole, req.TestCases, batch)
	if errors.Is(err, db.ErrShapeMismatch) {
		writeJSON(w, http.StatusBadRequest, errResp{err.Error()})
		return
	}
	if err != nil {
		s.Logger.Error("save experiment failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errResp{msgSaveFailure})
		return
	}
	writeJSON(w, http.StatusOK, schemas.SaveExperimentResponse{ExperimentID: id})
}

func (s *Server) listExperiments(w http.ResponseWriter, r *http.Request) {
	exps, err := s.Store.ListExperiments(r.Context())
	if err != nil {
		s.Logger.Error("list experiments failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errResp{msgListFailure})
		return
	}
	writeJSON(w, http.StatusOK, exps)
}

// createBatch queues the request for the worker and returns immediately.
func (s *Server) createBatch(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEvaluateRequest(w, r)
	if !ok {
		return
	}
	body, err := json.Marshal(req)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errResp{err.Error()})
		return
	}
	id := uuid.NewString()
	if err := s.Store.CreateBatchJob(r.Context(), id, req.SystemRole, body); err != nil {
		s.Logger.Error("create batch job failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errResp{err.Error()})
		return
	}
	if _, err := s.Queue.EnqueueContext(r.Context(), worker.NewRunEvaluationTask(id), asynq.MaxRetry(0)); err != nil {
		s.Logger.Error("enqueue batch failed", zap.String("batch_id", id), zap.Error(err))
		_ = s.Store.FailBatchJob(r.Context(), id, "enqueue: "+err.Error())
		writeJSON(w, http.StatusInternalServerError, errResp{err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, schemas.BatchCreated{BatchID: id, Status: db.StatusQueued})
}

func (s *Server) getBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeJSON(w, http.StatusNotFound, errResp{"not found"})
		return
	}
	job, err := s.Store.GetBatchJob(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errResp{"not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errResp{err.Error()})
		return
	}

	out := schemas.BatchStatus{
		BatchID:   job.ID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
		Error:     job.Error.String,
	}
	if job.FinishedAt.Valid {
		out.FinishedAt = &job.FinishedAt.Time
	}
	if job.ExperimentID.Valid {
		out.ExperimentID = &job.ExperimentID.Int64
	}
	if job.Status == db.StatusCompleted && job.ResultRef.Valid {
		var batch eval.Batch
		if err := s.Archive.GetJSON(r.Context(), job.ResultRef.String, &batch); err != nil {
			s.Logger.Error("load archived batch failed", zap.String("ref", job.ResultRef.String), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errResp{err.Error()})
			return
		}
		out.Result = &batch
	}
	writeJSON(w, http.StatusOK, out)
}
