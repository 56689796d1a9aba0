// internal/handler/slot_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	appErrors "github.com/luizvincenzi/criadores-slots/internal/errors"
	"github.com/luizvincenzi/criadores-slots/internal/model"
	"github.com/luizvincenzi/criadores-slots/internal/repository"
	"github.com/luizvincenzi/criadores-slots/internal/service"
)

// SlotHandler holds the dependencies for the campaign-creator HTTP
// endpoints.
type SlotHandler struct {
	Allocator *service.AllocationService
	Views     *service.SlotViewBuilder
	Audit     repository.AuditRepositoryInterface
	Provider  repository.Provider
	Logger    *zap.Logger
}

type atomicResult struct {
	Success             bool             `json:"success"`
	SlotIndex           *int             `json:"slotIndex,omitempty"`
	SlotIncreased       bool             `json:"slotIncreased,omitempty"`
	ContractedSlotCount int              `json:"contractedSlotCount,omitempty"`
	Slots               []model.SlotView `json:"slots,omitempty"`
	Error               string           `json:"error,omitempty"`
}

// AddCreator handles POST /campaign-creators/add.
func (h *SlotHandler) AddCreator(w http.ResponseWriter, r *http.Request) {
	var body struct {
		BusinessName      string `json:"businessName"`
		Month             string `json:"month"`
		CreatorID         string `json:"creatorID"`
		AllowSlotIncrease bool   `json:"allowSlotIncrease"`
		UserEmail         string `json:"userEmail"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "invalid request body",
		})
		return
	}

	key := model.CampaignKey{BusinessName: body.BusinessName, Month: body.Month}
	result, err := h.Allocator.AddCreator(r.Context(), key, body.CreatorID, body.AllowSlotIncrease, body.UserEmail)
	if err != nil {
		h.logFailure("add creator", key, err)
		writeJSON(w, statusFor(err), map[string]any{
			"success": false,
			"data": map[string]any{
				"atomicResult": atomicResult{Success: false, Error: publicMessage(err)},
			},
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"atomicResult": atomicResult{
				Success:             true,
				SlotIndex:           &result.SlotIndex,
				SlotIncreased:       result.SlotIncreased,
				ContractedSlotCount: result.ContractedSlotCount,
				Slots:               result.Slots,
			},
		},
	})
}

// DeleteLine handles DELETE /campaign-creators/delete-line.
func (h *SlotHandler) DeleteLine(w http.ResponseWriter, r *http.Request) {
	var body struct {
		BusinessName string `json:"businessName"`
		Month        string `json:"month"`
		CreatorID    string `json:"creatorID"`
		UserEmail    string `json:"userEmail"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "invalid request body",
		})
		return
	}

	key := model.CampaignKey{BusinessName: body.BusinessName, Month: body.Month}
	result, err := h.Allocator.RemoveCreator(r.Context(), key, body.CreatorID, body.UserEmail)
	if err != nil {
		h.logFailure("remove creator", key, err)
		writeJSON(w, statusFor(err), map[string]any{
			"success": false,
			"error":   publicMessage(err),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "creator removed, slot " + strconv.Itoa(result.SlotIndex) + " is now empty",
		"slots":   result.Slots,
	})
}

// SwapCreators handles POST /campaign-creators/swap.
func (h *SlotHandler) SwapCreators(w http.ResponseWriter, r *http.Request) {
	var body struct {
		BusinessName string `json:"businessName"`
		Month        string `json:"month"`
		OldCreatorID string `json:"oldCreatorID"`
		NewCreatorID string `json:"newCreatorID"`
		UserEmail    string `json:"userEmail"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "invalid request body",
		})
		return
	}

	key := model.CampaignKey{BusinessName: body.BusinessName, Month: body.Month}
	result, err := h.Allocator.SwapCreator(r.Context(), key, body.OldCreatorID, body.NewCreatorID, body.UserEmail)
	if err != nil {
		h.logFailure("swap creator", key, err)
		writeJSON(w, statusFor(err), map[string]any{
			"success": false,
			"error":   publicMessage(err),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"slots":   result.Slots,
	})
}

// GetCreatorSlots handles GET /creator-slots?businessName=&mes=.
func (h *SlotHandler) GetCreatorSlots(w http.ResponseWriter, r *http.Request) {
	key := model.CampaignKey{
		BusinessName: r.URL.Query().Get("businessName"),
		Month:        r.URL.Query().Get("mes"),
	}
	if key.BusinessName == "" || key.Month == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "businessName and mes are required",
		})
		return
	}

	view, err := h.Views.BuildSlotView(r.Context(), key)
	if err != nil {
		h.logFailure("build slot view", key, err)
		writeJSON(w, statusFor(err), map[string]any{
			"success": false,
			"error":   publicMessage(err),
		})
		return
	}

	available, err := h.Views.AvailableCreators(r.Context(), key)
	if err != nil {
		h.logFailure("list available creators", key, err)
		writeJSON(w, statusFor(err), map[string]any{
			"success": false,
			"error":   publicMessage(err),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"slots":             view.Slots,
		"availableCreators": available,
		"campaignId":        view.CampaignID,
		"validation":        view.Validation,
	})
}

// ListAudit handles GET /campaign-creators/audit.
func (h *SlotHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	filter := model.AuditFilter{
		EntityType: r.URL.Query().Get("entityType"),
		EntityID:   r.URL.Query().Get("entityId"),
		Action:     r.URL.Query().Get("action"),
		Limit:      limit,
		Offset:     offset,
	}

	ctx := h.Provider.Readonly(r.Context())
	entries, err := h.Audit.Query(ctx, filter)
	if err != nil {
		h.Logger.Error("query audit log", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "something went wrong",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"entries": entries,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	var validation *appErrors.ErrValidation
	var notFound *appErrors.ErrCampaignNotFound

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case appErrors.IsPrecondition(err):
		return http.StatusConflict
	case appErrors.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage keeps internal store errors out of responses;
// precondition and validation messages go through as-is because they
// are the user-facing explanation.
func publicMessage(err error) string {
	var validation *appErrors.ErrValidation
	if appErrors.IsPrecondition(err) || errors.As(err, &validation) {
		return err.Error()
	}
	if appErrors.IsTransient(err) {
		return "temporary storage error, please retry"
	}
	return "something went wrong"
}

func (h *SlotHandler) logFailure(op string, key model.CampaignKey, err error) {
	if appErrors.IsPrecondition(err) {
		h.Logger.Info(op+" rejected",
			zap.String("campaign", key.String()),
			zap.String("reason", err.Error()))
		return
	}
	h.Logger.Error(op+" failed",
		zap.String("campaign", key.String()),
		zap.Error(err))
}
