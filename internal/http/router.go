package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

func NewRouter(handler *Handler, log *logrus.Logger, jwtSecret string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(Timeout)
	r.Use(CORS)

	r.Get("/healthz", handler.Health)
	r.Get("/readyz", handler.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Authenticate(jwtSecret))

		r.Get("/items", handler.ListItems)
		r.Post("/items", handler.CreateItem)
		r.Post("/items/import-excel", handler.ImportItemsExcel)
		r.Get("/items/{id}", handler.GetItem)
		r.Patch("/items/{id}", handler.PatchItem)
		r.Delete("/items/{id}", handler.DeleteItem)
		r.Get("/items/{id}/ledger/verify", handler.VerifyItemLedger)

		r.Get("/inventory/summary", handler.InventorySummary)
		r.Get("/inventory/low-stock", handler.LowStock)
		r.Get("/mutations", handler.ListMutations)

		r.Get("/purchases", handler.ListPurchases)
		r.Post("/purchases", handler.CreatePurchase)
		r.Get("/purchases/{id}", handler.GetPurchase)
		r.Delete("/purchases/{id}", handler.DeletePurchase)
		r.Post("/purchases/{id}/receive", handler.ReceivePurchase)
		r.Post("/purchases/{id}/complete", handler.CompletePurchase)

		r.Get("/requests", handler.ListRequests)
		r.Post("/requests", handler.CreateRequest)
		r.Get("/requests/{id}", handler.GetRequest)
		r.Delete("/requests/{id}", handler.DeleteRequest)
		r.Post("/requests/{id}/approve", handler.ApproveDirect)
		r.Post("/requests/{id}/approve/{level}", handler.ApproveLevel)
		r.Post("/requests/{id}/distribute", handler.Distribute)
		r.Post("/requests/{id}/confirm-receive", handler.ConfirmReceive)
		r.Post("/requests/{id}/reject", handler.RejectRequest)

		r.Get("/opnames", handler.ListOpnames)
		r.Post("/opnames", handler.CreateOpname)
		r.Post("/opnames/import-excel", handler.ImportOpnameExcel)
		r.Get("/opnames/count-sheet", handler.ExportCountSheet)
		r.Get("/opnames/{id}", handler.GetOpname)
		r.Delete("/opnames/{id}", handler.DeleteOpname)
		r.Put("/opnames/{id}/counts", handler.UpdateCounts)
		r.Post("/opnames/{id}/submit", handler.SubmitOpname)
		r.Post("/opnames/{id}/reopen", handler.ReopenOpname)
		r.Post("/opnames/{id}/approve", handler.ApproveOpname)

		r.Get("/assets", handler.ListAssets)
		r.Post("/assets", handler.CreateAsset)
		r.Get("/assets/{id}", handler.GetAsset)
		r.Patch("/assets/{id}", handler.PatchAsset)
		r.Delete("/assets/{id}", handler.DeleteAsset)
	})

	return r
}
