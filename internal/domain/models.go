package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ItemKind string

const (
	ItemKindATK    ItemKind = "atk"
	ItemKindOffice ItemKind = "office"
)

func (k ItemKind) Valid() bool {
	return k == ItemKindATK || k == ItemKindOffice
}

type Item struct {
	ID          int64           `json:"id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Kind        ItemKind        `json:"kind"`
	Unit        string          `json:"unit"`
	Category    string          `json:"category"`
	Description *string         `json:"description,omitempty"`
	Quantity    int             `json:"quantity"`
	MinStock    int             `json:"min_stock"`
	MaxStock    int             `json:"max_stock"`
	LastPrice   decimal.Decimal `json:"last_price"`
	AvgPrice    decimal.Decimal `json:"avg_price"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ReorderPoint is MinStock, or fallback when no minimum is set.
func (i Item) ReorderPoint(fallback int) int {
	if i.MinStock > 0 {
		return i.MinStock
	}
	return fallback
}

type ItemCreateInput struct {
	Code            string
	Name            string
	Kind            ItemKind
	Unit            string
	Category        string
	Description     *string
	MinStock        int
	MaxStock        int
	OpeningQuantity int
	OpeningPrice    decimal.Decimal
}

// ItemPatchInput has no quantity or price fields: those only move
// through the ledger and purchase completion.
type ItemPatchInput struct {
	Name        *string
	Unit        *string
	Category    *string
	Description *string
	MinStock    *int
	MaxStock    *int
}

// ItemListFilter.Threshold is the reorder point used for items whose
// MinStock is zero when LowStock is set.
type ItemListFilter struct {
	Search    string
	Kind      ItemKind
	LowStock  bool
	Threshold int
	Limit     int
	Offset    int
}

type MutationKind string

const (
	MutationIn         MutationKind = "in"
	MutationOut        MutationKind = "out"
	MutationAdjustment MutationKind = "adjustment"
)

type ReferenceKind string

const (
	ReferenceOpening  ReferenceKind = "opening"
	ReferencePurchase ReferenceKind = "purchase"
	ReferenceRequest  ReferenceKind = "request"
	ReferenceOpname   ReferenceKind = "opname"
)

type StockMutation struct {
	ID            int64         `json:"id"`
	ItemID        int64         `json:"item_id"`
	Kind          MutationKind  `json:"kind"`
	Quantity      int           `json:"quantity"`
	BalanceBefore int           `json:"balance_before"`
	BalanceAfter  int           `json:"balance_after"`
	ReferenceKind ReferenceKind `json:"reference_kind"`
	ReferenceID   int64         `json:"reference_id"`
	Note          string        `json:"note"`
	CreatedBy     int64         `json:"created_by"`
	CreatedAt     time.Time     `json:"created_at"`
}

type MutationListFilter struct {
	ItemID        *int64
	ReferenceKind ReferenceKind
	ReferenceID   *int64
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
}

type Purchase struct {
	ID           int64           `json:"id"`
	Number       string          `json:"number"`
	SupplierName string          `json:"supplier_name"`
	PurchaseDate time.Time       `json:"purchase_date"`
	TotalValue   decimal.Decimal `json:"total_value"`
	Status       PurchaseStatus  `json:"status"`
	Note         *string         `json:"note,omitempty"`
	CreatedBy    int64           `json:"created_by"`
	ReceivedAt   *time.Time      `json:"received_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Lines        []PurchaseLine  `json:"lines,omitempty"`
}

type PurchaseLine struct {
	ID               int64           `json:"id"`
	PurchaseID       int64           `json:"purchase_id"`
	ItemID           int64           `json:"item_id"`
	Quantity         int             `json:"quantity"`
	ReceivedQuantity *int            `json:"received_quantity,omitempty"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	Subtotal         decimal.Decimal `json:"subtotal"`
}

type PurchaseLineInput struct {
	ItemID    int64
	Quantity  int
	UnitPrice decimal.Decimal
}

type PurchaseCreateInput struct {
	SupplierName string
	PurchaseDate time.Time
	Note         *string
	Lines        []PurchaseLineInput
}

type ReceivedQuantity struct {
	LineID   int64
	Quantity int
}

type PurchaseListFilter struct {
	Status PurchaseStatus
	Limit  int
	Offset int
}

type RequestVariant string

const (
	RequestDirect     RequestVariant = "direct"
	RequestMultiLevel RequestVariant = "multilevel"
)

func (v RequestVariant) Valid() bool {
	return v == RequestDirect || v == RequestMultiLevel
}

// ItemKind is the registry vertical a request variant draws from.
func (v RequestVariant) ItemKind() ItemKind {
	if v == RequestDirect {
		return ItemKindOffice
	}
	return ItemKindATK
}

type Request struct {
	ID              int64          `json:"id"`
	Number          string         `json:"number"`
	Variant         RequestVariant `json:"variant"`
	RequesterID     int64          `json:"requester_id"`
	Department      string         `json:"department"`
	Purpose         *string        `json:"purpose,omitempty"`
	Status          RequestStatus  `json:"status"`
	Level1By        *int64         `json:"level1_by,omitempty"`
	Level1At        *time.Time     `json:"level1_at,omitempty"`
	Level2By        *int64         `json:"level2_by,omitempty"`
	Level2At        *time.Time     `json:"level2_at,omitempty"`
	Level3By        *int64         `json:"level3_by,omitempty"`
	Level3At        *time.Time     `json:"level3_at,omitempty"`
	ApprovedBy      *int64         `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time     `json:"approved_at,omitempty"`
	DistributedBy   *int64         `json:"distributed_by,omitempty"`
	DistributedAt   *time.Time     `json:"distributed_at,omitempty"`
	ReceivedAt      *time.Time     `json:"received_at,omitempty"`
	RejectedBy      *int64         `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time     `json:"rejected_at,omitempty"`
	RejectionReason *string        `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	Lines           []RequestLine  `json:"lines,omitempty"`
}

type RequestLine struct {
	ID                int64  `json:"id"`
	RequestID         int64  `json:"request_id"`
	ItemID            int64  `json:"item_id"`
	RequestedQuantity int    `json:"requested_quantity"`
	ApprovedQuantity  *int   `json:"approved_quantity,omitempty"`
	GivenQuantity     *int   `json:"given_quantity,omitempty"`
	Note              string `json:"note,omitempty"`
}

type RequestLineInput struct {
	ItemID   int64
	Quantity int
	Note     string
}

type RequestCreateInput struct {
	Variant    RequestVariant
	Department string
	Purpose    *string
	Lines      []RequestLineInput
}

// LineQuantity pairs a request line with a caller-supplied quantity, used for
// approval adjustments and distribution.
type LineQuantity struct {
	LineID   int64
	Quantity int
}

type RequestListFilter struct {
	Status      RequestStatus
	Variant     RequestVariant
	RequesterID *int64
	Limit       int
	Offset      int
}

type StockOpname struct {
	ID          int64             `json:"id"`
	Number      string            `json:"number"`
	CountDate   time.Time         `json:"count_date"`
	Period      string            `json:"period"`
	Status      OpnameStatus      `json:"status"`
	Note        *string           `json:"note,omitempty"`
	CreatedBy   int64             `json:"created_by"`
	SubmittedAt *time.Time        `json:"submitted_at,omitempty"`
	ApprovedBy  *int64            `json:"approved_by,omitempty"`
	ApprovedAt  *time.Time        `json:"approved_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Lines       []StockOpnameLine `json:"lines,omitempty"`
}

type StockOpnameLine struct {
	ID               int64    `json:"id"`
	OpnameID         int64    `json:"opname_id"`
	ItemID           int64    `json:"item_id"`
	SystemQuantity   int      `json:"system_quantity"`
	PhysicalQuantity int      `json:"physical_quantity"`
	Note             *string  `json:"note,omitempty"`
	Photos           []string `json:"photos,omitempty"`
}

// Variance is always derived from the snapshot and the count.
func (l StockOpnameLine) Variance() int {
	return l.PhysicalQuantity - l.SystemQuantity
}

type OpnameCountInput struct {
	ItemID           int64
	PhysicalQuantity int
	Note             *string
	Photos           []string
}

type OpnameCreateInput struct {
	CountDate time.Time
	Period    string
	Note      *string
	Lines     []OpnameCountInput
}

type OpnameCountRow struct {
	ItemCode         string  `json:"item_code"`
	PhysicalQuantity int     `json:"physical_quantity"`
	Note             *string `json:"note,omitempty"`
}

type OpnameListFilter struct {
	Status OpnameStatus
	Limit  int
	Offset int
}

type InventorySummary struct {
	TotalItems     int             `json:"total_items"`
	TotalQuantity  int             `json:"total_quantity"`
	InventoryValue decimal.Decimal `json:"inventory_value"`
}

type LowStockRow struct {
	ItemID   int64    `json:"item_id"`
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	Kind     ItemKind `json:"kind"`
	Unit     string   `json:"unit"`
	Quantity int      `json:"quantity"`
	MinStock int      `json:"min_stock"`
	MaxStock int      `json:"max_stock"`
	Needed   int      `json:"needed"`
}

type ItemImportRow struct {
	Code            string          `json:"code"`
	Name            string          `json:"name"`
	Kind            ItemKind        `json:"kind"`
	Unit            string          `json:"unit"`
	Category        string          `json:"category"`
	MinStock        int             `json:"min_stock"`
	MaxStock        int             `json:"max_stock"`
	OpeningQuantity int             `json:"opening_quantity"`
	Price           decimal.Decimal `json:"price"`
}

type ItemImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

type LedgerCheck struct {
	ItemID          int64  `json:"item_id"`
	Entries         int    `json:"entries"`
	RegistryBalance int    `json:"registry_balance"`
	LedgerBalance   int    `json:"ledger_balance"`
	Consistent      bool   `json:"consistent"`
	BrokenEntryID   *int64 `json:"broken_entry_id,omitempty"`
	Problem         string `json:"problem,omitempty"`
}

type AssetCondition string

const (
	AssetGood           AssetCondition = "good"
	AssetLightlyDamaged AssetCondition = "lightly_damaged"
	AssetHeavilyDamaged AssetCondition = "heavily_damaged"
)

func (c AssetCondition) Valid() bool {
	switch c {
	case AssetGood, AssetLightlyDamaged, AssetHeavilyDamaged:
		return true
	}
	return false
}

type Asset struct {
	ID               int64           `json:"id"`
	Code             string          `json:"code"`
	NUP              int             `json:"nup"`
	Name             string          `json:"name"`
	Brand            *string         `json:"brand,omitempty"`
	AcquisitionDate  *time.Time      `json:"acquisition_date,omitempty"`
	AcquisitionValue decimal.Decimal `json:"acquisition_value"`
	Condition        AssetCondition  `json:"condition"`
	Location         *string         `json:"location,omitempty"`
	Holder           *string         `json:"holder,omitempty"`
	Note             *string         `json:"note,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type AssetCreateInput struct {
	Code             string
	NUP              int
	Name             string
	Brand            *string
	AcquisitionDate  *time.Time
	AcquisitionValue decimal.Decimal
	Condition        AssetCondition
	Location         *string
	Holder           *string
	Note             *string
}

type AssetPatchInput struct {
	Name      *string
	Brand     *string
	Condition *AssetCondition
	Location  *string
	Holder    *string
	Note      *string
}

type AssetListFilter struct {
	Search    string
	Condition AssetCondition
	Limit     int
	Offset    int
}
