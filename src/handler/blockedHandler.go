package handler

import (
	"context"
	"net/http"

	"portfolioexecutor/src/auth"
	"portfolioexecutor/src/model"
	"portfolioexecutor/src/registry"
	"portfolioexecutor/src/repository"

	logger "github.com/sirupsen/logrus"
)

type blockedLister interface {
	Active(ctx context.Context) ([]model.BlockedAsset, error)
}

// ListBlockedHandler returns the symbols currently excluded from trading.
func ListBlockedHandler(reg blockedLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if op, ok := auth.GetOperatorFromContext(r.Context()); !ok || op == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		assets, err := reg.Active(r.Context())
		if err != nil {
			logger.WithError(err).Error("failed to list blocked assets")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if assets == nil {
			assets = []model.BlockedAsset{}
		}

		writeJSON(w, assets)
	}
}

// DefaultListBlockedHandler wires the handler to the database-backed registry.
func DefaultListBlockedHandler() http.HandlerFunc {
	return ListBlockedHandler(registry.New(repository.NewBlockedAssetRepository()))
}
