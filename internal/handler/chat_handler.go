/*
Package handler provides the HTTP handlers and routing setup for the Chat Relay Server.

This file contains the message history handler, a read-back of the persistence
sink scoped to the authenticated caller's own records.
*/
package handler

import (
	"net/http"
	"strconv"

	"chatrelay/internal/pkg/auth/jwt"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/resp"
)

const (
	// DefaultHistoryLimit is the record count returned when none is requested.
	DefaultHistoryLimit = 50

	// MaxHistoryLimit caps the record count a single request may ask for.
	MaxHistoryLimit = 200
)

// HandleChatHistory returns the caller's most recent message records, newest first.
func HandleChatHistory(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		limit := DefaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			limit = min(parsed, MaxHistoryLimit)
		}

		records, err := deps.Messages.ListByUser(r.Context(), payload.ID, limit)
		if err != nil {
			logx.Error(err, "Failed to list message records", "user_id", payload.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"messages": records,
		})
	}
}
