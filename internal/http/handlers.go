package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/backuppapnj/simbara-new-sub003/internal/domain"
	"github.com/backuppapnj/simbara-new-sub003/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

type Handler struct {
	svc      *service.Service
	validate *validator.Validate
	log      logrus.FieldLogger
}

func NewHandler(svc *service.Service, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{svc: svc, validate: validator.New(validator.WithRequiredStructEnabled()), log: log}
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// Ready reports whether the database answers.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.svc.Health(ctx); err != nil {
		h.log.WithError(err).Warn("readiness check failed")
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, offset, err := parsePaging(query.Get("limit"), query.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	lowStock, err := parseOptionalBool(query.Get("low_stock"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "low_stock must be true or false")
		return
	}
	kind := domain.ItemKind(strings.TrimSpace(query.Get("kind")))
	if kind != "" && !kind.Valid() {
		writeError(w, http.StatusBadRequest, "kind must be atk or office")
		return
	}

	items, err := h.svc.ListItems(r.Context(), domain.ItemListFilter{
		Search:   strings.TrimSpace(query.Get("search")),
		Kind:     kind,
		LowStock: lowStock,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	item, err := h.svc.GetItem(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type createItemRequest struct {
	Code            string          `json:"code" validate:"required,max=64"`
	Name            string          `json:"name" validate:"required,max=255"`
	Kind            string          `json:"kind" validate:"required,oneof=atk office"`
	Unit            string          `json:"unit" validate:"required,max=32"`
	Category        string          `json:"category" validate:"max=128"`
	Description     *string         `json:"description"`
	MinStock        int             `json:"min_stock" validate:"gte=0"`
	MaxStock        int             `json:"max_stock" validate:"gte=0"`
	OpeningQuantity int             `json:"opening_quantity" validate:"gte=0"`
	OpeningPrice    decimal.Decimal `json:"opening_price"`
}

func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if !h.bind(w, r, &req) {
		return
	}
	item, err := h.svc.CreateItem(r.Context(), actorFrom(r.Context()), domain.ItemCreateInput{
		Code:            req.Code,
		Name:            req.Name,
		Kind:            domain.ItemKind(req.Kind),
		Unit:            req.Unit,
		Category:        req.Category,
		Description:     req.Description,
		MinStock:        req.MinStock,
		MaxStock:        req.MaxStock,
		OpeningQuantity: req.OpeningQuantity,
		OpeningPrice:    req.OpeningPrice,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

type patchItemRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=255"`
	Unit        *string `json:"unit" validate:"omitempty,max=32"`
	Category    *string `json:"category" validate:"omitempty,max=128"`
	Description *string `json:"description"`
	MinStock    *int    `json:"min_stock" validate:"omitempty,gte=0"`
	MaxStock    *int    `json:"max_stock" validate:"omitempty,gte=0"`
}

func (h *Handler) PatchItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req patchItemRequest
	if !h.bind(w, r, &req) {
		return
	}
	item, err := h.svc.UpdateItem(r.Context(), actorFrom(r.Context()), id, domain.ItemPatchInput{
		Name:        req.Name,
		Unit:        req.Unit,
		Category:    req.Category,
		Description: req.Description,
		MinStock:    req.MinStock,
		MaxStock:    req.MaxStock,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteItem(r.Context(), actorFrom(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) VerifyItemLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	check, err := h.svc.VerifyItemLedger(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

func (h *Handler) ImportItemsExcel(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	kind := domain.ItemKind(strings.TrimSpace(r.FormValue("kind")))
	if kind != "" && !kind.Valid() {
		writeError(w, http.StatusBadRequest, "kind must be atk or office")
		return
	}

	result, err := h.svc.ImportItemsExcel(r.Context(), actorFrom(r.Context()), file, kind)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"file_name": header.Filename,
		"created":   result.Created,
		"updated":   result.Updated,
	})
}

func (h *Handler) InventorySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.InventorySummary(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.LowStock(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": rows, "count": len(rows)})
}

func (h *Handler) ListMutations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, offset, err := parsePaging(query.Get("limit"), query.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	itemID, err := parseOptionalInt64(query.Get("item_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	refID, err := parseOptionalInt64(query.Get("reference_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, err := parseOptionalTime(query.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from value")
		return
	}
	to, err := parseOptionalTime(query.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to value")
		return
	}

	mutations, err := h.svc.ListMutations(r.Context(), actorFrom(r.Context()), domain.MutationListFilter{
		ItemID:        itemID,
		ReferenceKind: domain.ReferenceKind(strings.TrimSpace(query.Get("reference_kind"))),
		ReferenceID:   refID,
		From:          from,
		To:            to,
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": mutations, "count": len(mutations)})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case domain.IsState(err), domain.IsConcurrency(err):
		return http.StatusConflict
	case domain.IsPermission(err):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

// bind decodes a JSON body into out and runs its validate tags.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := decodeJSON(r, out); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	if err := h.validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Namespace()] = fe.Tag()
			}
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "fields": fields})
			return false
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return id, true
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

// decodeOptionalJSON accepts an empty body as the zero value.
func decodeOptionalJSON(r *http.Request, out any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return decodeJSON(r, out)
}

func parsePaging(rawLimit, rawOffset string) (int, int, error) {
	limit, err := parseOptionalInt(rawLimit, 200)
	if err != nil {
		return 0, 0, err
	}
	offset, err := parseOptionalInt(rawOffset, 0)
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func parseOptionalInt(raw string, defaultValue int) (int, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %s", raw)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("value cannot be negative")
	}
	return parsed, nil
}

func parseOptionalBool(raw string) (bool, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return false, nil
	}
	return strconv.ParseBool(value)
}

func parseOptionalTime(raw string) (*time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, dateLayout} {
		if parsed, err := time.Parse(layout, value); err == nil {
			utc := parsed.UTC()
			return &utc, nil
		}
	}
	return nil, fmt.Errorf("invalid time")
}

func parseDate(raw string) (time.Time, error) {
	parsed, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD")
	}
	return parsed, nil
}

func parseOptionalInt64(raw string) (*int64, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed <= 0 {
		return nil, fmt.Errorf("invalid id value: %s", raw)
	}
	return &parsed, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id")
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
