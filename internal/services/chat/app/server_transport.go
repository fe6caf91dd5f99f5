package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/websocket"

	apperrors "github.com/duochat/duochat/internal/platform/errors"
	"github.com/duochat/duochat/internal/services/chat/identity"
	"github.com/duochat/duochat/internal/services/chat/storage"
)

const (
	wsPathPrefix    = "/ws/chat/"
	tokenCookieName = "dc_token"
	tokenQueryParam = "token"

	maxMessageRunes        = 2000
	maxDecodeErrorsPerConn = 3
)

// clientFrame is the flat envelope clients send over the socket.
type clientFrame struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	MessageID int64  `json:"message_id"`
}

// wireMessage is a persisted message rendered for the wire.
type wireMessage struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Read      bool   `json:"read"`
}

type messageFrame struct {
	Type string `json:"type"`
	wireMessage
}

type historyFrame struct {
	Type     string        `json:"type"`
	Messages []wireMessage `json:"messages"`
}

type typingFrame struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

type readFrame struct {
	Type      string `json:"type"`
	MessageID int64  `json:"message_id"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type wsIdentityContextKey struct{}

// NewHandler creates the chat routes: health, the websocket endpoint,
// and the REST message endpoints.
func NewHandler(store storage.Store, provider identity.Provider) http.Handler {
	hub := newRoomHub()
	resolver := newRoomResolver(provider, store)

	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		handleWSConn(conn, hub, resolver, store)
	})

	mux.HandleFunc(wsPathPrefix, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		// A connection is accepted even when its credential cannot be
		// resolved; it carries the anonymous sentinel and later
		// authorization checks reject what the sentinel may not do.
		resolved := resolveRequestIdentity(r, provider)
		ctx := context.WithValue(r.Context(), wsIdentityContextKey{}, resolved)
		wsHandler.ServeHTTP(w, r.WithContext(ctx))
	})

	mux.HandleFunc("/chat/message", func(w http.ResponseWriter, r *http.Request) {
		handleSendMessageHTTP(w, r, provider, resolver, store)
	})
	mux.HandleFunc("/chat/messages", func(w http.ResponseWriter, r *http.Request) {
		handleListMessagesHTTP(w, r, provider, resolver, store)
	})

	return mux
}

func resolveRequestIdentity(r *http.Request, provider identity.Provider) identity.Identity {
	token := accessTokenFromRequest(r)
	if token == "" {
		return identity.Anonymous
	}
	resolved, err := provider.ResolveToken(r.Context(), token)
	if err != nil {
		log.Printf("chat: token resolution failed for remote=%s path=%q: %v", r.RemoteAddr, r.URL.Path, err)
		return identity.Anonymous
	}
	return resolved
}

func accessTokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	cookie, err := r.Cookie(tokenCookieName)
	if err == nil {
		if token := strings.TrimSpace(cookie.Value); token != "" {
			return token
		}
	}
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			if token = strings.TrimSpace(token); token != "" {
				return token
			}
		}
	}
	return strings.TrimSpace(r.URL.Query().Get(tokenQueryParam))
}

func handleWSConn(conn *websocket.Conn, hub *roomHub, resolver *roomResolver, messages storage.MessageStore) {
	ctx := context.Background()
	who := identity.Anonymous
	roomKey := ""
	if request := conn.Request(); request != nil {
		ctx = request.Context()
		if resolved, ok := request.Context().Value(wsIdentityContextKey{}).(identity.Identity); ok {
			who = resolved
		}
		roomKey = strings.TrimPrefix(request.URL.Path, wsPathPrefix)
	}

	session := newWSSession(who, newWSPeer(json.NewEncoder(conn)))
	defer func() {
		hub.leave(session.close(), session.peer)
		_ = conn.Close()
	}()

	if !bindSession(ctx, session, hub, resolver, messages, roomKey) {
		return
	}

	decoder := json.NewDecoder(conn)
	decodeErrors := 0
	for {
		var frame clientFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return
			}
			decodeErrors++
			_ = writeWSError(session.peer, apperrors.CodeBadRequest, "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		switch frame.Type {
		case "message":
			handleMessageFrame(ctx, session, messages, frame)
		case "typing", "stop_typing":
			handleTypingFrame(session, frame)
		case "mark_as_read":
			handleMarkAsReadFrame(ctx, session, messages, frame)
		default:
			_ = writeWSError(session.peer, apperrors.CodeBadRequest, "unsupported frame type")
		}
	}
}

// bindSession resolves the room, subscribes the connection, replays
// history, and only then clears the unread markers left by the other
// participant. A failure leaves the session unbound and reports to this
// connection alone.
func bindSession(ctx context.Context, session *wsSession, hub *roomHub, resolver *roomResolver, messages storage.MessageStore, roomKey string) bool {
	resolved, err := resolver.resolve(ctx, roomKey)
	if err != nil {
		_ = writeWSFailure(session.peer, err)
		return false
	}

	room := hub.join(resolved.room.Key(), session.peer)
	if err := session.bind(resolved.room.ID, room, resolved.usernames()); err != nil {
		hub.leave(room, session.peer)
		_ = writeWSError(session.peer, apperrors.CodeBadRequest, err.Error())
		return false
	}

	sctx, cancel := storageCtx(ctx)
	history, err := messages.RoomHistory(sctx, resolved.room.ID)
	cancel()
	if err != nil {
		log.Printf("chat: history load failed room=%d: %v", resolved.room.ID, err)
		_ = writeWSError(session.peer, apperrors.CodeStorageFailure, "history load failed")
		return false
	}

	rendered := make([]wireMessage, 0, len(history))
	for _, msg := range history {
		rendered = append(rendered, renderMessage(session, msg))
	}
	_ = session.peer.write(historyFrame{Type: "previous_messages", Messages: rendered})

	// History above still shows the pre-open read state; only now do the
	// partner's messages flip to read. Failures here leave markers stale
	// until the next open, never break the connection.
	sctx, cancel = storageCtx(ctx)
	if err := messages.MarkRoomRead(sctx, resolved.room.ID, session.identity.UserID); err != nil {
		log.Printf("chat: mark room read failed room=%d user=%d: %v", resolved.room.ID, session.identity.UserID, err)
	}
	cancel()
	return true
}

func handleMessageFrame(ctx context.Context, session *wsSession, messages storage.MessageStore, frame clientFrame) {
	roomID, room, ok := session.boundRoom()
	if !ok {
		_ = writeWSError(session.peer, apperrors.CodeBadRequest, "session is not bound to a room")
		return
	}
	if !session.identity.Active {
		_ = writeWSError(session.peer, apperrors.CodeUnauthorized, "user is not authenticated")
		return
	}

	content := strings.TrimSpace(frame.Message)
	if content == "" {
		_ = writeWSError(session.peer, apperrors.CodeBadRequest, "message is required")
		return
	}
	if utf8.RuneCountInString(content) > maxMessageRunes {
		_ = writeWSError(session.peer, apperrors.CodeBadRequest, "message must be at most 2000 characters")
		return
	}

	sctx, cancel := storageCtx(ctx)
	msg, err := messages.AppendMessage(sctx, roomID, session.identity.UserID, content)
	cancel()
	if err != nil {
		log.Printf("chat: append failed room=%d user=%d: %v", roomID, session.identity.UserID, err)
		_ = writeWSError(session.peer, apperrors.CodeStorageFailure, "message could not be stored")
		return
	}

	// Durable first, then fan out. A crash between the two loses the
	// broadcast but never the message.
	room.publish(messageFrame{Type: "message", wireMessage: renderMessage(session, msg)})
}

func handleTypingFrame(session *wsSession, frame clientFrame) {
	_, room, ok := session.boundRoom()
	if !ok {
		_ = writeWSError(session.peer, apperrors.CodeBadRequest, "session is not bound to a room")
		return
	}
	// Typing indicators are transient signals. They pass through the
	// broadcast group without touching the store.
	room.publish(typingFrame{Type: frame.Type, Username: session.identity.Username})
}

func handleMarkAsReadFrame(ctx context.Context, session *wsSession, messages storage.MessageStore, frame clientFrame) {
	_, room, ok := session.boundRoom()
	if !ok {
		_ = writeWSError(session.peer, apperrors.CodeBadRequest, "session is not bound to a room")
		return
	}
	if frame.MessageID <= 0 {
		_ = writeWSError(session.peer, apperrors.CodeBadRequest, "message_id is required")
		return
	}

	sctx, cancel := storageCtx(ctx)
	if err := messages.MarkMessageRead(sctx, frame.MessageID); err != nil {
		log.Printf("chat: mark message read failed message=%d: %v", frame.MessageID, err)
	}
	cancel()

	room.publish(readFrame{Type: "mark_as_read", MessageID: frame.MessageID})
}

func renderMessage(session *wsSession, msg storage.Message) wireMessage {
	return wireMessage{
		ID:        msg.ID,
		Username:  session.usernameFor(msg.AuthorID),
		Message:   msg.Content,
		Timestamp: msg.CreatedAt.UTC().Format(time.RFC3339),
		Read:      msg.Read,
	}
}

func writeWSError(peer *wsPeer, code apperrors.Code, message string) error {
	return peer.write(errorFrame{Type: "error", Code: string(code), Message: message})
}

func writeWSFailure(peer *wsPeer, err error) error {
	code := apperrors.CodeOf(err)
	if code == apperrors.CodeUnknown {
		code = apperrors.CodeStorageFailure
	}
	message := err.Error()
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	return writeWSError(peer, code, message)
}
