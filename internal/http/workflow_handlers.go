package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/backuppapnj/simbara-new-sub003/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, offset, err := parsePaging(query.Get("limit"), query.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status := domain.PurchaseStatus(strings.TrimSpace(query.Get("status")))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown purchase status")
		return
	}
	purchases, err := h.svc.ListPurchases(r.Context(), actorFrom(r.Context()), domain.PurchaseListFilter{
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": purchases, "count": len(purchases)})
}

func (h *Handler) GetPurchase(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.GetPurchase(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type purchaseLineRequest struct {
	ItemID    int64           `json:"item_id" validate:"required,gt=0"`
	Quantity  int             `json:"quantity" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type createPurchaseRequest struct {
	SupplierName string                `json:"supplier_name" validate:"required,max=255"`
	PurchaseDate string                `json:"purchase_date" validate:"required,datetime=2006-01-02"`
	Note         *string               `json:"note"`
	Lines        []purchaseLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req createPurchaseRequest
	if !h.bind(w, r, &req) {
		return
	}
	date, err := parseDate(req.PurchaseDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	lines := make([]domain.PurchaseLineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, domain.PurchaseLineInput{
			ItemID:    line.ItemID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	p, err := h.svc.CreatePurchase(r.Context(), actorFrom(r.Context()), domain.PurchaseCreateInput{
		SupplierName: req.SupplierName,
		PurchaseDate: date,
		Note:         req.Note,
		Lines:        lines,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

type receivePurchaseRequest struct {
	Lines []struct {
		LineID   int64 `json:"line_id" validate:"required,gt=0"`
		Quantity int   `json:"quantity" validate:"gte=0"`
	} `json:"lines" validate:"dive"`
}

// ReceivePurchase accepts an empty body, meaning every line arrived in full.
func (h *Handler) ReceivePurchase(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req receivePurchaseRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	received := make([]domain.ReceivedQuantity, 0, len(req.Lines))
	for _, line := range req.Lines {
		received = append(received, domain.ReceivedQuantity{LineID: line.LineID, Quantity: line.Quantity})
	}
	p, err := h.svc.ReceivePurchase(r.Context(), actorFrom(r.Context()), id, received)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) CompletePurchase(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.CompletePurchase(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) DeletePurchase(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeletePurchase(r.Context(), actorFrom(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, offset, err := parsePaging(query.Get("limit"), query.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status := domain.RequestStatus(strings.TrimSpace(query.Get("status")))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown request status")
		return
	}
	variant := domain.RequestVariant(strings.TrimSpace(query.Get("variant")))
	if variant != "" && !variant.Valid() {
		writeError(w, http.StatusBadRequest, "variant must be direct or multilevel")
		return
	}
	requesterID, err := parseOptionalInt64(query.Get("requester_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	requests, err := h.svc.ListRequests(r.Context(), actorFrom(r.Context()), domain.RequestListFilter{
		Status:      status,
		Variant:     variant,
		RequesterID: requesterID,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": requests, "count": len(requests)})
}

func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	req, err := h.svc.GetRequest(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type requestLineRequest struct {
	ItemID   int64  `json:"item_id" validate:"required,gt=0"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
	Note     string `json:"note" validate:"max=255"`
}

type createRequestRequest struct {
	Variant    string               `json:"variant" validate:"required,oneof=direct multilevel"`
	Department string               `json:"department" validate:"required,max=128"`
	Purpose    *string              `json:"purpose"`
	Lines      []requestLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var req createRequestRequest
	if !h.bind(w, r, &req) {
		return
	}
	lines := make([]domain.RequestLineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, domain.RequestLineInput{ItemID: line.ItemID, Quantity: line.Quantity, Note: line.Note})
	}
	created, err := h.svc.CreateRequest(r.Context(), actorFrom(r.Context()), domain.RequestCreateInput{
		Variant:    domain.RequestVariant(req.Variant),
		Department: req.Department,
		Purpose:    req.Purpose,
		Lines:      lines,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) ApproveDirect(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	req, err := h.svc.ApproveDirect(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type lineQuantitiesRequest struct {
	Lines []struct {
		LineID   int64 `json:"line_id" validate:"required,gt=0"`
		Quantity int   `json:"quantity" validate:"gte=0"`
	} `json:"lines" validate:"dive"`
}

func (req lineQuantitiesRequest) quantities() []domain.LineQuantity {
	out := make([]domain.LineQuantity, 0, len(req.Lines))
	for _, line := range req.Lines {
		out = append(out, domain.LineQuantity{LineID: line.LineID, Quantity: line.Quantity})
	}
	return out
}

func (h *Handler) bindLineQuantities(w http.ResponseWriter, r *http.Request) ([]domain.LineQuantity, bool) {
	var req lineQuantitiesRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return req.quantities(), true
}

func (h *Handler) ApproveLevel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	raw, err := strconv.Atoi(chi.URLParam(r, "level"))
	level := domain.ApprovalLevel(raw)
	if err != nil || !level.Valid() {
		writeError(w, http.StatusBadRequest, "level must be 1, 2 or 3")
		return
	}
	adjust, ok := h.bindLineQuantities(w, r)
	if !ok {
		return
	}
	req, err := h.svc.ApproveLevel(r.Context(), actorFrom(r.Context()), id, level, adjust)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) Distribute(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	given, ok := h.bindLineQuantities(w, r)
	if !ok {
		return
	}
	req, err := h.svc.Distribute(r.Context(), actorFrom(r.Context()), id, given)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) ConfirmReceive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	req, err := h.svc.ConfirmReceive(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type rejectRequestRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var body rejectRequestRequest
	if !h.bind(w, r, &body) {
		return
	}
	req, err := h.svc.RejectRequest(r.Context(), actorFrom(r.Context()), id, body.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteRequest(r.Context(), actorFrom(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListOpnames(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, offset, err := parsePaging(query.Get("limit"), query.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status := domain.OpnameStatus(strings.TrimSpace(query.Get("status")))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown opname status")
		return
	}
	opnames, err := h.svc.ListOpnames(r.Context(), actorFrom(r.Context()), domain.OpnameListFilter{
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": opnames, "count": len(opnames)})
}

func (h *Handler) GetOpname(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	o, err := h.svc.GetOpname(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type opnameCountRequest struct {
	ItemID           int64    `json:"item_id" validate:"required,gt=0"`
	PhysicalQuantity int      `json:"physical_quantity" validate:"gte=0"`
	Note             *string  `json:"note"`
	Photos           []string `json:"photos" validate:"dive,url"`
}

func countInputs(counts []opnameCountRequest) []domain.OpnameCountInput {
	out := make([]domain.OpnameCountInput, 0, len(counts))
	for _, c := range counts {
		out = append(out, domain.OpnameCountInput{
			ItemID:           c.ItemID,
			PhysicalQuantity: c.PhysicalQuantity,
			Note:             c.Note,
			Photos:           c.Photos,
		})
	}
	return out
}

type createOpnameRequest struct {
	CountDate string               `json:"count_date" validate:"required,datetime=2006-01-02"`
	Period    string               `json:"period" validate:"required,max=64"`
	Note      *string              `json:"note"`
	Lines     []opnameCountRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) CreateOpname(w http.ResponseWriter, r *http.Request) {
	var req createOpnameRequest
	if !h.bind(w, r, &req) {
		return
	}
	date, err := parseDate(req.CountDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	o, err := h.svc.CreateOpname(r.Context(), actorFrom(r.Context()), domain.OpnameCreateInput{
		CountDate: date,
		Period:    req.Period,
		Note:      req.Note,
		Lines:     countInputs(req.Lines),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

type updateCountsRequest struct {
	Lines []opnameCountRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) UpdateCounts(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req updateCountsRequest
	if !h.bind(w, r, &req) {
		return
	}
	o, err := h.svc.UpdateCounts(r.Context(), actorFrom(r.Context()), id, countInputs(req.Lines))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) SubmitOpname(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	o, err := h.svc.SubmitOpname(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) ReopenOpname(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	o, err := h.svc.ReopenOpname(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) ApproveOpname(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	o, err := h.svc.ApproveOpname(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) DeleteOpname(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteOpname(r.Context(), actorFrom(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportOpnameExcel takes a filled count sheet plus count_date and period
// form fields and opens a draft opname.
func (h *Handler) ImportOpnameExcel(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	date, err := parseDate(r.FormValue("count_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "count_date: "+err.Error())
		return
	}
	var note *string
	if raw := strings.TrimSpace(r.FormValue("note")); raw != "" {
		note = &raw
	}

	o, err := h.svc.ImportOpnameExcel(r.Context(), actorFrom(r.Context()), file, date, r.FormValue("period"), note)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) ExportCountSheet(w http.ResponseWriter, r *http.Request) {
	kind := domain.ItemKind(strings.TrimSpace(r.URL.Query().Get("kind")))
	// Render fully before writing headers so errors can still be reported.
	var buf bytes.Buffer
	if err := h.svc.ExportCountSheet(r.Context(), actorFrom(r.Context()), kind, &buf); err != nil {
		h.fail(w, r, err)
		return
	}
	name := fmt.Sprintf("stock-opname-%s.xlsx", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, offset, err := parsePaging(query.Get("limit"), query.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	assets, err := h.svc.ListAssets(r.Context(), domain.AssetListFilter{
		Search:    query.Get("search"),
		Condition: domain.AssetCondition(strings.TrimSpace(query.Get("condition"))),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": assets, "count": len(assets)})
}

func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	asset, err := h.svc.GetAsset(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

type createAssetRequest struct {
	Code             string          `json:"code" validate:"required,max=64"`
	NUP              int             `json:"nup" validate:"required,gt=0"`
	Name             string          `json:"name" validate:"required,max=255"`
	Brand            *string         `json:"brand"`
	AcquisitionDate  *string         `json:"acquisition_date" validate:"omitempty,datetime=2006-01-02"`
	AcquisitionValue decimal.Decimal `json:"acquisition_value"`
	Condition        string          `json:"condition" validate:"omitempty,oneof=good lightly_damaged heavily_damaged"`
	Location         *string         `json:"location"`
	Holder           *string         `json:"holder"`
	Note             *string         `json:"note"`
}

func (h *Handler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	var req createAssetRequest
	if !h.bind(w, r, &req) {
		return
	}
	var acquired *time.Time
	if req.AcquisitionDate != nil {
		date, err := parseDate(*req.AcquisitionDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		acquired = &date
	}
	asset, err := h.svc.CreateAsset(r.Context(), actorFrom(r.Context()), domain.AssetCreateInput{
		Code:             req.Code,
		NUP:              req.NUP,
		Name:             req.Name,
		Brand:            req.Brand,
		AcquisitionDate:  acquired,
		AcquisitionValue: req.AcquisitionValue,
		Condition:        domain.AssetCondition(req.Condition),
		Location:         req.Location,
		Holder:           req.Holder,
		Note:             req.Note,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

type patchAssetRequest struct {
	Name      *string `json:"name" validate:"omitempty,max=255"`
	Brand     *string `json:"brand"`
	Condition *string `json:"condition" validate:"omitempty,oneof=good lightly_damaged heavily_damaged"`
	Location  *string `json:"location"`
	Holder    *string `json:"holder"`
	Note      *string `json:"note"`
}

func (h *Handler) PatchAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req patchAssetRequest
	if !h.bind(w, r, &req) {
		return
	}
	var condition *domain.AssetCondition
	if req.Condition != nil {
		c := domain.AssetCondition(*req.Condition)
		condition = &c
	}
	asset, err := h.svc.PatchAsset(r.Context(), actorFrom(r.Context()), id, domain.AssetPatchInput{
		Name:      req.Name,
		Brand:     req.Brand,
		Condition: condition,
		Location:  req.Location,
		Holder:    req.Holder,
		Note:      req.Note,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (h *Handler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteAsset(r.Context(), actorFrom(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
