package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/onglesrivieres/salon360-sub003/internal/approval"
	"github.com/onglesrivieres/salon360-sub003/internal/ledger"
	"github.com/onglesrivieres/salon360-sub003/internal/models"
	"github.com/onglesrivieres/salon360-sub003/internal/quorum"
	"github.com/onglesrivieres/salon360-sub003/internal/store"
)

// Store is everything the HTTP layer needs from persistence.
type Store interface {
	store.RequestStore
	store.ViolationStore
	store.CashStore
	store.ActorStore
}

type Handler struct {
	store     Store
	jwtSecret []byte
}

type Options struct {
	JWTSecret string
}

func NewHandler(store Store, options Options) *Handler {
	return &Handler{
		store:     store,
		jwtSecret: []byte(options.JWTSecret),
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.HandleFunc("/api/auth/me", h.handleMe)
	mux.HandleFunc("/api/requests", h.handleRequests)
	mux.HandleFunc("/api/requests/pending-count", h.handlePendingCount)
	mux.HandleFunc("/api/requests/", h.handleRequestActions)
	mux.HandleFunc("/api/tickets/", h.handleTicketActions)
	mux.HandleFunc("/api/violations", h.handleViolations)
	mux.HandleFunc("/api/violations/", h.handleViolationActions)
	mux.HandleFunc("/api/cash-transactions", h.handleCashTransactions)
	mux.HandleFunc("/api/cash-transactions/", h.handleCashTransactionActions)
	mux.HandleFunc("/api/cash-ledger/", h.handleCashLedger)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type submitRequestPayload struct {
	Kind          string                `json:"kind"`
	StoreID       string                `json:"store_id"`
	SubjectID     string                `json:"subject_id"`
	Justification string                `json:"justification"`
	Proposed      models.ProposedChange `json:"proposed"`
}

func (h *Handler) handleRequests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleSubmitRequest(w, r)
	case http.MethodGet:
		h.handleListRequests(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var payload submitRequestPayload
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	payload.Kind = strings.TrimSpace(payload.Kind)
	payload.StoreID = strings.TrimSpace(payload.StoreID)
	payload.SubjectID = strings.TrimSpace(payload.SubjectID)
	payload.Justification = strings.TrimSpace(payload.Justification)

	now := time.Now().UTC()
	input := store.CreateRequestInput{
		Kind:          payload.Kind,
		StoreID:       payload.StoreID,
		SubjectID:     payload.SubjectID,
		RequesterID:   actor.EmployeeID,
		Justification: payload.Justification,
		Proposed:      payload.Proposed,
		Deadline:      approval.Deadline(payload.Kind, now),
		CreatedAt:     now,
	}
	if err := approval.CheckSubmit(input); err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	request, err := h.store.CreateRequest(r.Context(), input)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireActor(w, r); !ok {
		return
	}

	filter := store.RequestFilter{
		StoreID: strings.TrimSpace(r.URL.Query().Get("store_id")),
		Status:  strings.TrimSpace(r.URL.Query().Get("status")),
		Kind:    strings.TrimSpace(r.URL.Query().Get("kind")),
	}
	if limitRaw := strings.TrimSpace(r.URL.Query().Get("limit")); limitRaw != "" {
		parsed, err := strconv.Atoi(limitRaw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		filter.Limit = parsed
	}

	requests, err := h.store.ListRequests(r.Context(), filter)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if requests == nil {
		requests = []models.ChangeRequest{}
	}
	writeJSON(w, http.StatusOK, requests)
}

func (h *Handler) handlePendingCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireActor(w, r); !ok {
		return
	}

	storeID := strings.TrimSpace(r.URL.Query().Get("store_id"))
	if storeID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "store_id is required")
		return
	}

	counts, err := h.store.CountPendingRequests(r.Context(), storeID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	total := 0
	for _, count := range counts {
		total += count
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":   total,
		"by_kind": counts,
	})
}

type decisionPayload struct {
	Outcome string `json:"outcome"`
	Comment string `json:"comment"`
}

func (h *Handler) handleRequestActions(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/requests/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	if len(parts) == 1 && r.Method == http.MethodGet {
		h.handleGetRequest(w, r, parts[0])
		return
	}
	if len(parts) == 2 && parts[1] == "decision" && r.Method == http.MethodPost {
		h.handleDecideRequest(w, r, parts[0])
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request, requestID string) {
	if _, ok := requireActor(w, r); !ok {
		return
	}
	request, err := h.store.GetRequest(r.Context(), requestID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func (h *Handler) handleDecideRequest(w http.ResponseWriter, r *http.Request, requestID string) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var payload decisionPayload
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	payload.Outcome = strings.TrimSpace(payload.Outcome)
	payload.Comment = strings.TrimSpace(payload.Comment)

	request, err := h.store.GetRequest(r.Context(), requestID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if err := approval.CheckDecide(request, actor, payload.Outcome, payload.Comment); err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	decided, err := h.store.DecideRequest(r.Context(), store.DecideRequestInput{
		RequestID:  requestID,
		ReviewerID: actor.EmployeeID,
		Outcome:    payload.Outcome,
		Comment:    payload.Comment,
		DecidedAt:  time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, decided)
}

func (h *Handler) handleTicketActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/tickets/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[1] != "mark-reviewed" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if !actor.HasAnyRole(models.RoleOwner, models.RoleAdmin) {
		writeError(w, http.StatusForbidden, "access_denied", "role may not clear admin review flags")
		return
	}

	ticket, err := h.store.MarkTicketReviewed(r.Context(), parts[0], actor.EmployeeID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

type reportPayload struct {
	StoreID            string `json:"store_id"`
	ReportedEmployeeID string `json:"reported_employee_id"`
	Description        string `json:"description"`
	IncidentDate       string `json:"incident_date"`
}

func (h *Handler) handleViolations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleReportViolation(w, r)
	case http.MethodGet:
		h.handleListViolations(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleReportViolation(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var payload reportPayload
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	payload.StoreID = strings.TrimSpace(payload.StoreID)
	payload.ReportedEmployeeID = strings.TrimSpace(payload.ReportedEmployeeID)
	payload.Description = strings.TrimSpace(payload.Description)
	payload.IncidentDate = strings.TrimSpace(payload.IncidentDate)

	if payload.StoreID == "" || payload.ReportedEmployeeID == "" || payload.Description == "" || payload.IncidentDate == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "store_id, reported_employee_id, description, and incident_date are required")
		return
	}
	if payload.ReportedEmployeeID == actor.EmployeeID {
		writeError(w, http.StatusBadRequest, "invalid_request", "an employee may not report themselves")
		return
	}

	onShift, err := h.store.ListOnShiftTechnicians(r.Context(), payload.StoreID, payload.IncidentDate)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	rule, err := h.store.GetQuorumRule(r.Context(), payload.StoreID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	now := time.Now().UTC()
	eligible := quorum.EligibleVoters(onShift, payload.ReportedEmployeeID, actor.EmployeeID)
	report, err := h.store.CreateReport(r.Context(), store.CreateReportInput{
		StoreID:            payload.StoreID,
		ReportedEmployeeID: payload.ReportedEmployeeID,
		ReporterEmployeeID: actor.EmployeeID,
		Description:        payload.Description,
		IncidentDate:       payload.IncidentDate,
		EligibleVoterIDs:   eligible,
		Threshold:          quorum.Threshold(len(eligible), rule),
		ExpiresAt:          now.Add(quorum.VotingWindow),
		CreatedAt:          now,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, quorum.Redact(report, actor))
}

func (h *Handler) handleListViolations(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	filter := store.ReportFilter{
		StoreID: strings.TrimSpace(r.URL.Query().Get("store_id")),
		Status:  strings.TrimSpace(r.URL.Query().Get("status")),
	}
	if limitRaw := strings.TrimSpace(r.URL.Query().Get("limit")); limitRaw != "" {
		parsed, err := strconv.Atoi(limitRaw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		filter.Limit = parsed
	}

	reports, err := h.store.ListReports(r.Context(), filter)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	redacted := make([]models.ViolationReport, 0, len(reports))
	for _, report := range reports {
		redacted = append(redacted, quorum.Redact(report, actor))
	}
	writeJSON(w, http.StatusOK, redacted)
}

func (h *Handler) handleViolationActions(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/violations/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	if len(parts) == 1 && r.Method == http.MethodGet {
		h.handleGetViolation(w, r, parts[0])
		return
	}
	if len(parts) != 2 || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch parts[1] {
	case "vote":
		h.handleVote(w, r, parts[0])
	case "request-info":
		h.handleRequestInfo(w, r, parts[0])
	case "submit-info":
		h.handleSubmitInfo(w, r, parts[0])
	case "decision":
		h.handleDecideViolation(w, r, parts[0])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGetViolation(w http.ResponseWriter, r *http.Request, reportID string) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	report, err := h.store.GetReport(r.Context(), reportID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, quorum.Redact(report, actor))
}

type votePayload struct {
	Confirms bool   `json:"confirms"`
	Note     string `json:"note"`
}

func (h *Handler) handleVote(w http.ResponseWriter, r *http.Request, reportID string) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var payload votePayload
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	report, err := h.store.GetReport(r.Context(), reportID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if err := quorum.CheckVote(report, actor.EmployeeID); err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	updated, err := h.store.CastVote(r.Context(), store.CastVoteInput{
		ReportID: reportID,
		VoterID:  actor.EmployeeID,
		Confirms: payload.Confirms,
		Note:     strings.TrimSpace(payload.Note),
		VotedAt:  time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, quorum.Redact(updated, actor))
}

type infoRequestPayload struct {
	Message string `json:"message"`
}

func (h *Handler) handleRequestInfo(w http.ResponseWriter, r *http.Request, reportID string) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if !actor.HasAnyRole(models.RoleOwner, models.RoleAdmin, models.RoleManager) {
		writeError(w, http.StatusForbidden, "access_denied", "role may not request additional information")
		return
	}

	var payload infoRequestPayload
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	payload.Message = strings.TrimSpace(payload.Message)
	if payload.Message == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}

	report, err := h.store.RequestInfo(r.Context(), reportID, actor.EmployeeID, payload.Message, time.Now().UTC())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, quorum.Redact(report, actor))
}

type infoSubmitPayload struct {
	Info string `json:"info"`
}

func (h *Handler) handleSubmitInfo(w http.ResponseWriter, r *http.Request, reportID string) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var payload infoSubmitPayload
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	payload.Info = strings.TrimSpace(payload.Info)
	if payload.Info == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "info is required")
		return
	}

	report, err := h.store.SubmitInfo(r.Context(), reportID, actor.EmployeeID, payload.Info, time.Now().UTC())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, quorum.Redact(report, actor))
}

type violationDecisionPayload struct {
	Decision      string `json:"decision"`
	Action        string `json:"action"`
	ActionDetails string `json:"action_details"`
	Notes         string `json:"notes"`
}

func (h *Handler) handleDecideViolation(w http.ResponseWriter, r *http.Request, reportID string) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var payload violationDecisionPayload
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	payload.Decision = strings.TrimSpace(payload.Decision)
	payload.Action = strings.TrimSpace(payload.Action)
	payload.Notes = strings.TrimSpace(payload.Notes)
	if payload.Action == "" {
		payload.Action = models.ActionNone
	}

	report, err := h.store.GetReport(r.Context(), reportID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if err := quorum.CheckDecision(report, actor, payload.Decision, payload.Action, payload.Notes); err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	decided, err := h.store.DecideReport(r.Context(), store.DecideReportInput{
		ReportID:      reportID,
		ReviewerID:    actor.EmployeeID,
		Decision:      payload.Decision,
		Action:        payload.Action,
		ActionDetails: strings.TrimSpace(payload.ActionDetails),
		Notes:         payload.Notes,
		DecidedAt:     time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, quorum.Redact(decided, actor))
}

type cashTransactionPayload struct {
	StoreID     string  `json:"store_id"`
	Date        string  `json:"date"`
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
}

func (h *Handler) handleCashTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var payload cashTransactionPayload
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	payload.StoreID = strings.TrimSpace(payload.StoreID)
	payload.Date = strings.TrimSpace(payload.Date)
	payload.Type = strings.TrimSpace(payload.Type)
	payload.Description = strings.TrimSpace(payload.Description)
	payload.Category = strings.TrimSpace(payload.Category)

	if payload.StoreID == "" || payload.Date == "" || payload.Description == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "store_id, date, and description are required")
		return
	}
	if payload.Type != models.CashIn && payload.Type != models.CashOut {
		writeError(w, http.StatusBadRequest, "invalid_request", "type must be cash_in or cash_out")
		return
	}
	if payload.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "amount must be positive")
		return
	}

	now := time.Now().UTC()
	txn, err := h.store.CreateCashTransaction(r.Context(), store.CreateCashTransactionInput{
		StoreID:     payload.StoreID,
		Date:        payload.Date,
		Type:        payload.Type,
		Amount:      payload.Amount,
		Description: payload.Description,
		Category:    payload.Category,
		CreatedBy:   actor.EmployeeID,
		CreatedAt:   now,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	// Every new transaction enters the review queue as its own request.
	request, err := h.store.CreateRequest(r.Context(), store.CreateRequestInput{
		Kind:        models.KindCashTransactionApproval,
		StoreID:     payload.StoreID,
		SubjectID:   txn.TransactionID,
		RequesterID: actor.EmployeeID,
		Proposed: models.ProposedChange{
			Cash: &models.CashApprovalValue{TransactionID: txn.TransactionID},
		},
		CreatedAt: now,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transaction": txn,
		"request_id":  request.RequestID,
	})
}

type cashEditPayload struct {
	NewAmount      float64 `json:"new_amount"`
	NewDescription string  `json:"new_description"`
	NewCategory    string  `json:"new_category"`
	Reason         string  `json:"reason"`
}

func (h *Handler) handleCashTransactionActions(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/cash-transactions/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	if len(parts) == 1 && r.Method == http.MethodGet {
		h.handleGetCashTransaction(w, r, parts[0])
		return
	}
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch {
	case parts[1] == "edit" && r.Method == http.MethodPost:
		h.handleEditCashTransaction(w, r, parts[0])
	case parts[1] == "history" && r.Method == http.MethodGet:
		h.handleCashHistory(w, r, parts[0])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGetCashTransaction(w http.ResponseWriter, r *http.Request, transactionID string) {
	if _, ok := requireActor(w, r); !ok {
		return
	}
	txn, err := h.store.GetCashTransaction(r.Context(), transactionID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

func (h *Handler) handleEditCashTransaction(w http.ResponseWriter, r *http.Request, transactionID string) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var payload cashEditPayload
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	payload.NewDescription = strings.TrimSpace(payload.NewDescription)
	payload.NewCategory = strings.TrimSpace(payload.NewCategory)
	payload.Reason = strings.TrimSpace(payload.Reason)

	if payload.NewAmount <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "new_amount must be positive")
		return
	}
	if payload.NewDescription == "" || payload.Reason == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "new_description and reason are required")
		return
	}

	current, err := h.store.GetCashTransaction(r.Context(), transactionID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if current.CreatedBy != actor.EmployeeID && !actor.HasAnyRole(models.RoleOwner, models.RoleAdmin, models.RoleManager) {
		writeError(w, http.StatusForbidden, "access_denied", "only the creator or management may edit this transaction")
		return
	}

	updated, err := h.store.EditCashTransaction(r.Context(), store.EditCashTransactionInput{
		TransactionID:  transactionID,
		EditorID:       actor.EmployeeID,
		NewAmount:      payload.NewAmount,
		NewDescription: payload.NewDescription,
		NewCategory:    payload.NewCategory,
		Reason:         payload.Reason,
		EditedAt:       time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleCashHistory(w http.ResponseWriter, r *http.Request, transactionID string) {
	if _, ok := requireActor(w, r); !ok {
		return
	}
	edits, err := h.store.ListEditHistory(r.Context(), transactionID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if edits == nil {
		edits = []models.CashEdit{}
	}
	writeJSON(w, http.StatusOK, edits)
}

type denominationPayload struct {
	Denominations models.DenominationCounts `json:"denominations"`
	Notes         string                    `json:"notes"`
}

func (h *Handler) handleCashLedger(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/cash-ledger/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		h.handleGetLedgerDay(w, r, parts[0], parts[1])
	case len(parts) == 3 && parts[2] == "summary" && r.Method == http.MethodGet:
		h.handleLedgerSummary(w, r, parts[0], parts[1])
	case len(parts) == 3 && parts[2] == "opening" && r.Method == http.MethodPost:
		h.handleRecordCount(w, r, parts[0], parts[1], true)
	case len(parts) == 3 && parts[2] == "closing" && r.Method == http.MethodPost:
		h.handleRecordCount(w, r, parts[0], parts[1], false)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGetLedgerDay(w http.ResponseWriter, r *http.Request, storeID, date string) {
	if _, ok := requireActor(w, r); !ok {
		return
	}

	day, found, err := h.store.GetLedgerDay(r.Context(), storeID, date)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if !found {
		day = models.CashLedgerDay{StoreID: storeID, Date: date}
	}

	previous, err := h.store.GetPreviousClosing(r.Context(), storeID, date)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"day":               day,
		"suggested_opening": ledger.SuggestOpening(day, previous),
	})
}

func (h *Handler) handleLedgerSummary(w http.ResponseWriter, r *http.Request, storeID, date string) {
	if _, ok := requireActor(w, r); !ok {
		return
	}

	day, _, err := h.store.GetLedgerDay(r.Context(), storeID, date)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	totals, err := h.store.LedgerTotals(r.Context(), storeID, date)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, ledger.Summary(day, totals))
}

func (h *Handler) handleRecordCount(w http.ResponseWriter, r *http.Request, storeID, date string, opening bool) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var payload denominationPayload
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	if negativeCount(payload.Denominations) {
		writeError(w, http.StatusBadRequest, "invalid_request", "denomination counts must not be negative")
		return
	}

	input := store.RecordCountInput{
		StoreID:       storeID,
		Date:          date,
		Denominations: payload.Denominations,
		Notes:         strings.TrimSpace(payload.Notes),
		ActorID:       actor.EmployeeID,
		At:            time.Now().UTC(),
	}
	var day models.CashLedgerDay
	var err error
	if opening {
		day, err = h.store.RecordOpening(r.Context(), input)
	} else {
		day, err = h.store.RecordClosing(r.Context(), input)
	}
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

func negativeCount(d models.DenominationCounts) bool {
	counts := []int{d.Bill100, d.Bill50, d.Bill20, d.Bill10, d.Bill5, d.Bill2, d.Bill1, d.Coin25, d.Coin10, d.Coin5}
	for _, count := range counts {
		if count < 0 {
			return true
		}
	}
	return false
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrValidation):
		return http.StatusBadRequest, "invalid_request", err.Error()
	case errors.Is(err, store.ErrForbidden):
		return http.StatusForbidden, "access_denied", err.Error()
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found", "resource not found"
	case errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict, "invalid_state", err.Error()
	case errors.Is(err, store.ErrDuplicateRequest):
		return http.StatusConflict, "duplicate_request", err.Error()
	case errors.Is(err, store.ErrAlreadyVoted):
		return http.StatusConflict, "already_voted", "employee already responded to this report"
	case errors.Is(err, store.ErrNotEligible):
		return http.StatusForbidden, "not_eligible", "employee is not in the voter set for this report"
	case errors.Is(err, store.ErrBadCredentials):
		return http.StatusUnauthorized, "bad_credentials", "invalid employee id or PIN"
	case errors.Is(err, store.ErrSessionNotFound):
		return http.StatusUnauthorized, "unauthorized", "invalid session"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
