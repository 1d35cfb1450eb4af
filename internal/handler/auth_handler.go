/*
Package handler provides the HTTP handlers and routing setup for the Chat Relay Server.

This file contains the guest session handler, the small piece of authentication
glue the WebSocket admission depends on. It issues a signed identity token for
a display name; there is no credential storage behind it.
*/
package handler

import (
	"net/http"
	"strings"

	"chatrelay/internal/pkg/auth/jwt"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/randx"
	"chatrelay/internal/pkg/req"
	"chatrelay/internal/pkg/resp"
)

// MaxNicknameLength caps the accepted display name length.
const MaxNicknameLength = 32

// guestSessionRequest is the expected request body for HandleGuestSession.
type guestSessionRequest struct {
	Nickname string `json:"nickname"`
}

// guestSessionResponse is the payload returned for a newly issued guest identity.
type guestSessionResponse struct {
	Token    string `json:"token"`
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
}

// HandleGuestSession issues a guest identity token. An omitted or empty
// display name gets a generated one.
func HandleGuestSession(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body guestSessionRequest
		if bindErr := req.BindJSON(r, &body); bindErr != nil {
			resp.RespondError(w, r, bindErr)
			return
		}

		nickname := strings.TrimSpace(body.Nickname)
		if len(nickname) > MaxNicknameLength {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidNickname))
			return
		}

		if nickname == "" {
			generated, err := randx.UserNickname()
			if err != nil {
				logx.Error(err, "Failed to generate nickname for guest session")
				resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
				return
			}
			nickname = generated
		}

		guestID, err := randx.GuestID()
		if err != nil {
			logx.Error(err, "Failed to generate guest ID")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		payload := &jwt.Payload{
			ID:       guestID,
			Nickname: nickname,
		}

		token, err := jwt.GenerateToken(payload, deps.Config.JWTSecret, jwt.IdentityExpiration)
		if err != nil {
			logx.Error(err, "Failed to sign guest identity token")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, guestSessionResponse{
			Token:    token,
			ID:       guestID,
			Nickname: nickname,
		})
	}
}
