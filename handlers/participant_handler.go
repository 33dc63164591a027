package handlers

import (
	"net/http"

	"github.com/MathiasNeri/Projet-Dev-FilRouge/middleware"
	"github.com/MathiasNeri/Projet-Dev-FilRouge/models"
	"github.com/MathiasNeri/Projet-Dev-FilRouge/services"
)

type ParticipantHandler struct {
	participantService services.ParticipantService
}

func NewParticipantHandler(ps services.ParticipantService) *ParticipantHandler {
	return &ParticipantHandler{participantService: ps}
}

// RequestJoinHandler godoc
// @Summary Подать заявку на участие в турнире
// @Tags participants
// @Produce json
// @Param tournamentID path int true "ID турнира"
// @Success 201 {object} map[string]interface{}
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/request_join [post]
func (h *ParticipantHandler) RequestJoinHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to join tournament")
		return
	}
	tournamentID, err := readIDParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	participant, err := h.participantService.RequestJoin(r.Context(), tournamentID, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"participant": participant}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DirectAddHandler godoc
// @Summary Добавить участника напрямую (создатель турнира)
// @Tags participants
// @Accept json
// @Produce json
// @Param tournamentID path int true "ID турнира"
// @Param input body services.DirectAddInput true "Email пользователя или имя гостя"
// @Success 201 {object} map[string]interface{}
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/add_participant [post]
func (h *ParticipantHandler) DirectAddHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	tournamentID, err := readIDParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.DirectAddInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	participant, err := h.participantService.DirectAdd(r.Context(), tournamentID, currentUserID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"participant": participant}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type handleRequestInput struct {
	ParticipantID int                   `json:"participant_id"`
	Action        services.DecideAction `json:"action"`
}

// HandleRequestHandler godoc
// @Summary Принять или отклонить заявку (создатель турнира)
// @Tags participants
// @Accept json
// @Produce json
// @Param tournamentID path int true "ID турнира"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/handle_request [post]
func (h *ParticipantHandler) HandleRequestHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	tournamentID, err := readIDParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input handleRequestInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	participant, err := h.participantService.Decide(r.Context(), tournamentID, currentUserID, input.ParticipantID, input.Action)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"participant": participant}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// LeaveHandler godoc
// @Summary Покинуть турнир
// @Tags participants
// @Param tournamentID path int true "ID турнира"
// @Success 204
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/leave [post]
func (h *ParticipantHandler) LeaveHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	tournamentID, err := readIDParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.participantService.Leave(r.Context(), tournamentID, currentUserID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type kickInput struct {
	ParticipantID int `json:"participant_id"`
}

// KickHandler godoc
// @Summary Исключить участника (создатель турнира)
// @Tags participants
// @Accept json
// @Param tournamentID path int true "ID турнира"
// @Success 204
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/kick [post]
func (h *ParticipantHandler) KickHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	tournamentID, err := readIDParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input kickInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.participantService.Kick(r.Context(), tournamentID, currentUserID, input.ParticipantID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListHandler godoc
// @Summary Список участников турнира
// @Tags participants
// @Produce json
// @Param tournamentID path int true "ID турнира"
// @Param status query string false "Фильтр по статусу"
// @Success 200 {object} map[string]interface{}
// @Router /tournaments/{tournamentID}/participants [get]
func (h *ParticipantHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := readIDParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var statusFilter *models.ParticipantStatus
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := models.ParticipantStatus(statusStr)
		statusFilter = &status
	}

	participants, err := h.participantService.ListByTournament(r.Context(), tournamentID, statusFilter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"participants": participants}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
