package web

import (
	"ChatImageStudio/internal/app/dispatcher"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
)

// wsChatRequest — одна реплика пользователя в веб-сокете.
type wsChatRequest struct {
	Message string `json:"message"`
}

// wsChatResponse — ответ на одну реплику: либо reply, либо warning/error.
type wsChatResponse struct {
	Reply   string `json:"reply,omitempty"`
	Warning string `json:"warning,omitempty"`
	Error   string `json:"error,omitempty"`
}

// handleChatWS — тот же чат поверх веб-сокета: каждый кадр — один блокирующий ход диалога.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	id := ""
	if c, err := r.Cookie(sessionCookie); err == nil {
		id = c.Value
	}
	sess, created := s.sessions.GetOrCreate(id)
	hdr := http.Header{}
	if created {
		hdr.Add("Set-Cookie", sessionCookieFor(sess.ID).String())
	}

	conn, err := s.upgrader.Upgrade(w, r, hdr)
	if err != nil {
		s.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		var req wsChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				s.logger.Warnw("websocket read failed", "session", sess.ID, "error", err)
			}
			return
		}

		sess.Lock()
		reply, cerr := s.dispatcher.Chat(r.Context(), sess.Transcript, req.Message)
		sess.Unlock()

		resp := wsChatResponse{Reply: reply}
		if cerr != nil {
			if dispatcher.IsWarning(cerr) {
				resp.Warning = dispatcher.UserMessage(cerr)
			} else {
				resp.Error = dispatcher.UserMessage(cerr)
			}
		}
		if err := conn.WriteJSON(resp); err != nil {
			s.logger.Warnw("websocket write failed", "session", sess.ID, "error", err)
			return
		}
	}
}
