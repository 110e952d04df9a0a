package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"portfolioexecutor/src/auth"
	"portfolioexecutor/src/model"
	"portfolioexecutor/src/repository"

	logger "github.com/sirupsen/logrus"
)

const maxPageSize = 500

type orderSearcher interface {
	Search(ctx context.Context, options repository.OrderRecordSearch) ([]model.OrderRecord, error)
}

// SearchOrdersHandler returns a handler that lists order audit records.
// Supports pagination and filters (symbol, runId, from, to).
func SearchOrdersHandler(repo orderSearcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op, ok := auth.GetOperatorFromContext(r.Context())
		if !ok || op == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		query := r.URL.Query()

		var from, to *time.Time
		if fromParam := query.Get("from"); fromParam != "" {
			parsed, err := time.Parse(time.RFC3339, fromParam)
			if err != nil {
				http.Error(w, "invalid from", http.StatusBadRequest)
				return
			}
			from = &parsed
		}

		if toParam := query.Get("to"); toParam != "" {
			parsed, err := time.Parse(time.RFC3339, toParam)
			if err != nil {
				http.Error(w, "invalid to", http.StatusBadRequest)
				return
			}
			to = &parsed
		}

		if from != nil && to != nil && to.Before(*from) {
			http.Error(w, "to must not be before from", http.StatusBadRequest)
			return
		}

		page := 1
		if pageParam := query.Get("page"); pageParam != "" {
			parsedPage, err := strconv.Atoi(pageParam)
			if err != nil || parsedPage <= 0 {
				http.Error(w, "invalid page", http.StatusBadRequest)
				return
			}
			page = parsedPage
		}

		pageSize := 20
		if sizeParam := query.Get("pageSize"); sizeParam != "" {
			parsedSize, err := strconv.Atoi(sizeParam)
			if err != nil || parsedSize <= 0 || parsedSize > maxPageSize {
				http.Error(w, "invalid pageSize", http.StatusBadRequest)
				return
			}
			pageSize = parsedSize
		}

		offset := (page - 1) * pageSize

		records, err := repo.Search(r.Context(), repository.OrderRecordSearch{
			Symbol: query.Get("symbol"),
			RunID:  query.Get("runId"),
			From:   from,
			To:     to,
			Limit:  pageSize,
			Offset: offset,
		})
		if err != nil {
			logger.WithError(err).WithField("operator", op.Name).Error("failed to search order records")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, records)
	}
}

// DefaultSearchOrdersHandler wires the handler to the production repository implementation.
func DefaultSearchOrdersHandler() http.HandlerFunc {
	return SearchOrdersHandler(repository.NewOrderRecordRepository())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("failed to encode response")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
