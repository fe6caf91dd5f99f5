package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/duochat/duochat/internal/platform/errors"
	"github.com/duochat/duochat/internal/services/chat/identity"
	"github.com/duochat/duochat/internal/services/chat/roomkey"
	"github.com/duochat/duochat/internal/services/chat/storage"
)

type sendMessageRequest struct {
	RecipientID int64  `json:"recipient_id"`
	Content     string `json:"content"`
}

type sendMessageResponse struct {
	Room string `json:"room"`
	wireMessage
}

type listMessagesResponse struct {
	Room     string        `json:"room"`
	Messages []wireMessage `json:"messages"`
}

type httpErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleSendMessageHTTP appends a message to the sender's room with the
// recipient, creating the room on first contact. Live connections are
// not notified; the message surfaces through history on the next open.
func handleSendMessageHTTP(w http.ResponseWriter, r *http.Request, provider identity.Provider, resolver *roomResolver, messages storage.MessageStore) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		httpError(w, http.StatusMethodNotAllowed, apperrors.CodeBadRequest, "method not allowed")
		return
	}

	sender, ok := requireActiveIdentity(w, r, provider)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, apperrors.CodeBadRequest, "invalid request body")
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		httpError(w, http.StatusBadRequest, apperrors.CodeBadRequest, "content is required")
		return
	}
	if utf8.RuneCountInString(content) > maxMessageRunes {
		httpError(w, http.StatusBadRequest, apperrors.CodeBadRequest, "content must be at most 2000 characters")
		return
	}
	if req.RecipientID <= 0 || req.RecipientID == sender.UserID {
		httpError(w, http.StatusBadRequest, apperrors.CodeBadRequest, "recipient_id must name another user")
		return
	}

	resolved, err := resolver.resolve(r.Context(), roomkey.Canonical(sender.UserID, req.RecipientID))
	if err != nil {
		httpFailure(w, err)
		return
	}

	sctx, cancel := storageCtx(r.Context())
	msg, err := messages.AppendMessage(sctx, resolved.room.ID, sender.UserID, content)
	cancel()
	if err != nil {
		log.Printf("chat: http append failed room=%d user=%d: %v", resolved.room.ID, sender.UserID, err)
		httpError(w, http.StatusInternalServerError, apperrors.CodeStorageFailure, "message could not be stored")
		return
	}

	writeJSON(w, http.StatusCreated, sendMessageResponse{
		Room:        resolved.room.Key(),
		wireMessage: renderStoredMessage(resolved, msg),
	})
}

// handleListMessagesHTTP returns the full history of one room. Only the
// two members of the pair may read it.
func handleListMessagesHTTP(w http.ResponseWriter, r *http.Request, provider identity.Provider, resolver *roomResolver, messages storage.MessageStore) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		httpError(w, http.StatusMethodNotAllowed, apperrors.CodeBadRequest, "method not allowed")
		return
	}

	requester, ok := requireActiveIdentity(w, r, provider)
	if !ok {
		return
	}

	roomName := strings.TrimSpace(r.URL.Query().Get("room_name"))
	if roomName == "" {
		httpError(w, http.StatusBadRequest, apperrors.CodeBadRequest, "room_name is required")
		return
	}

	resolved, err := resolver.resolve(r.Context(), roomName)
	if err != nil {
		httpFailure(w, err)
		return
	}
	if _, member := resolved.members[requester.UserID]; !member {
		httpError(w, http.StatusUnauthorized, apperrors.CodeUnauthorized, "requester is not a member of the room")
		return
	}

	sctx, cancel := storageCtx(r.Context())
	history, err := messages.RoomHistory(sctx, resolved.room.ID)
	cancel()
	if err != nil {
		log.Printf("chat: http history load failed room=%d: %v", resolved.room.ID, err)
		httpError(w, http.StatusInternalServerError, apperrors.CodeStorageFailure, "history load failed")
		return
	}

	rendered := make([]wireMessage, 0, len(history))
	for _, msg := range history {
		rendered = append(rendered, renderStoredMessage(resolved, msg))
	}
	writeJSON(w, http.StatusOK, listMessagesResponse{
		Room:     resolved.room.Key(),
		Messages: rendered,
	})
}

func requireActiveIdentity(w http.ResponseWriter, r *http.Request, provider identity.Provider) (identity.Identity, bool) {
	token := accessTokenFromRequest(r)
	if token == "" {
		httpError(w, http.StatusUnauthorized, apperrors.CodeUnauthorized, "authentication required")
		return identity.Identity{}, false
	}
	resolved, err := provider.ResolveToken(r.Context(), token)
	if err != nil {
		httpFailure(w, err)
		return identity.Identity{}, false
	}
	if !resolved.Active {
		httpError(w, http.StatusUnauthorized, apperrors.CodeUnauthorized, "user is not authenticated")
		return identity.Identity{}, false
	}
	return resolved, true
}

func renderStoredMessage(resolved resolvedRoom, msg storage.Message) wireMessage {
	username := identity.Anonymous.Username
	if member, ok := resolved.members[msg.AuthorID]; ok {
		username = member.Username
	}
	return wireMessage{
		ID:        msg.ID,
		Username:  username,
		Message:   msg.Content,
		Timestamp: msg.CreatedAt.UTC().Format(time.RFC3339),
		Read:      msg.Read,
	}
}

func httpFailure(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	message := err.Error()
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	httpError(w, httpStatusForCode(code), code, message)
}

func httpStatusForCode(code apperrors.Code) int {
	switch code {
	case apperrors.CodeBadRequest:
		return http.StatusBadRequest
	case apperrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.CodeUnknownUser:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func httpError(w http.ResponseWriter, status int, code apperrors.Code, message string) {
	writeJSON(w, status, httpErrorResponse{Code: string(code), Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("chat: write json response: %v", err)
	}
}
