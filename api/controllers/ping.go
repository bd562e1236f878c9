package controllers

import (
	"net/http"

	"github.com/tabletalk-ai/tabletalk-backend/api/middleware"
	"github.com/tabletalk-ai/tabletalk-backend/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

func PrivatePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "private", "status": "ok"}
		if userID := middleware.UserIDFromContext(r.Context()); userID != "" {
			payload["user_id"] = userID
		}
		if email := middleware.EmailFromContext(r.Context()); email != "" {
			payload["email"] = email
		}
		responses.WriteSuccess(w, payload)
	}
}
