package interfaces

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	apihttp "residential-cloud/internal/api/http"
	"residential-cloud/internal/apperr"
	"residential-cloud/internal/assembly/application"
	assembly "residential-cloud/internal/assembly/domain"
	"residential-cloud/internal/tenant"
)

// PlanGate evaluates plan features for a complex.
type PlanGate interface {
	Authorize(ctx context.Context, complexID int64, feature tenant.Feature) (tenant.Authorization, error)
}

// Handler serves the assembly API.
type Handler struct {
	service *application.Service
	gate    PlanGate
	auditor *apihttp.Auditor
	logger  *slog.Logger
}

// NewHandler constructs an assembly handler.
func NewHandler(service *application.Service, gate PlanGate, auditor *apihttp.Auditor, logger *slog.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("assembly handler: nil service")
	}
	if gate == nil {
		return nil, errors.New("assembly handler: nil plan gate")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, gate: gate, auditor: auditor, logger: logger}, nil
}

// Mount registers the assembly routes.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/assemblies", func(r chi.Router) {
		r.Post("/", h.createAssembly)
		r.Get("/{assemblyID}/quorum", h.quorum)
		r.Post("/{assemblyID}/attendance", h.registerAttendance)
		r.Post("/{assemblyID}/votings", h.createVoting)
	})
	r.Route("/votings/{votingID}", func(r chi.Router) {
		r.Get("/result", h.result)
		r.Post("/votes", h.castVote)
	})
}

type assemblyRequest struct {
	Title            string    `json:"title"`
	ScheduledAt      time.Time `json:"scheduledAt"`
	QuorumPercentage *float64  `json:"quorumPercentage,omitempty"`
}

type attendanceRequest struct {
	UnitID           string `json:"unitId"`
	AttendanceType   string `json:"attendanceType"`
	ProxyUserID      string `json:"proxyUserId"`
	ProxyDocumentURL string `json:"proxyDocumentUrl"`
}

type votingRequest struct {
	Question           string              `json:"question"`
	Type               string              `json:"type"`
	RequiredPercentage decimal.NullDecimal `json:"requiredPercentage"`
	BaseForPercentage  string              `json:"baseForPercentage"`
	Options            []assembly.Option   `json:"options"`
}

type voteRequest struct {
	UnitID   string `json:"unitId"`
	OptionID string `json:"optionId"`
}

// authorize resolves the complex and its assemblies authorization.
func (h *Handler) authorize(r *http.Request) (int64, tenant.Authorization, error) {
	complexID, err := apihttp.ComplexID(r)
	if err != nil {
		return 0, tenant.Authorization{}, err
	}
	authz, err := h.gate.Authorize(r.Context(), complexID, tenant.FeatureAssemblies)
	if err != nil {
		return 0, tenant.Authorization{}, err
	}
	return complexID, authz, nil
}

func (h *Handler) createAssembly(w http.ResponseWriter, r *http.Request) {
	complexID, authz, err := h.authorize(r)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	var req assemblyRequest
	if err := apihttp.DecodeJSON(r, &req); err != nil {
		apihttp.RespondError(w, err)
		return
	}
	created, err := h.service.CreateAssembly(r.Context(), complexID, assembly.Assembly{
		Title:            req.Title,
		ScheduledAt:      req.ScheduledAt,
		QuorumPercentage: req.QuorumPercentage,
	}, authz)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	h.auditor.Record(r, complexID, "assembly.create", "assembly", created.ID, map[string]any{
		"title":       created.Title,
		"scheduledAt": created.ScheduledAt,
	})
	apihttp.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) quorum(w http.ResponseWriter, r *http.Request) {
	complexID, authz, err := h.authorize(r)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	status, err := h.service.QuorumStatus(r.Context(), complexID, chi.URLParam(r, "assemblyID"), authz)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, status)
}

func (h *Handler) registerAttendance(w http.ResponseWriter, r *http.Request) {
	complexID, authz, err := h.authorize(r)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	var req attendanceRequest
	if err := apihttp.DecodeJSON(r, &req); err != nil {
		apihttp.RespondError(w, err)
		return
	}
	att, status, err := h.service.RegisterAttendance(r.Context(), complexID, application.AttendanceRequest{
		AssemblyID:       chi.URLParam(r, "assemblyID"),
		UnitID:           req.UnitID,
		Type:             assembly.AttendanceType(req.AttendanceType),
		ProxyUserID:      req.ProxyUserID,
		ProxyDocumentURL: req.ProxyDocumentURL,
	}, authz)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	h.auditor.Record(r, complexID, "attendance.register", "assembly", att.AssemblyID, map[string]any{
		"unitId":         att.UnitID,
		"attendanceType": att.Type,
		"proxyUserId":    att.ProxyUserID,
	})
	apihttp.WriteJSON(w, http.StatusCreated, map[string]any{
		"attendance": att,
		"quorum":     status,
	})
}

func (h *Handler) createVoting(w http.ResponseWriter, r *http.Request) {
	complexID, authz, err := h.authorize(r)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	var req votingRequest
	if err := apihttp.DecodeJSON(r, &req); err != nil {
		apihttp.RespondError(w, err)
		return
	}
	voting, err := h.service.CreateVoting(r.Context(), complexID, assembly.Voting{
		AssemblyID: chi.URLParam(r, "assemblyID"),
		Question:   req.Question,
		Rule: assembly.Rule{
			Type:               assembly.VotingType(req.Type),
			RequiredPercentage: req.RequiredPercentage,
			Base:               assembly.PercentageBase(req.BaseForPercentage),
		},
		Options: req.Options,
	}, authz)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	h.auditor.Record(r, complexID, "voting.create", "voting", voting.ID, map[string]any{
		"assemblyId": voting.AssemblyID,
		"type":       voting.Rule.Type,
	})
	apihttp.WriteJSON(w, http.StatusCreated, voting)
}

func (h *Handler) castVote(w http.ResponseWriter, r *http.Request) {
	complexID, authz, err := h.authorize(r)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	var req voteRequest
	if err := apihttp.DecodeJSON(r, &req); err != nil {
		apihttp.RespondError(w, err)
		return
	}
	if req.UnitID == "" {
		apihttp.RespondError(w, apperr.Validation("unitId", "unit id is required"))
		return
	}
	vote, err := h.service.CastVote(r.Context(), complexID, application.VoteRequest{
		VotingID: chi.URLParam(r, "votingID"),
		UnitID:   req.UnitID,
		OptionID: req.OptionID,
	}, authz)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	h.auditor.Record(r, complexID, "vote.cast", "voting", vote.VotingID, map[string]any{
		"unitId":   vote.UnitID,
		"optionId": vote.OptionID,
		"weight":   vote.CoefficientWeight.String(),
	})
	apihttp.WriteJSON(w, http.StatusCreated, vote)
}

func (h *Handler) result(w http.ResponseWriter, r *http.Request) {
	complexID, authz, err := h.authorize(r)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	result, err := h.service.VotingResult(r.Context(), complexID, chi.URLParam(r, "votingID"), authz)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, result)
}
