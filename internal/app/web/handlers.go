package web

import (
	"ChatImageStudio/internal/ai"
	"ChatImageStudio/internal/app/dispatcher"
	"ChatImageStudio/internal/service/image"
	"ChatImageStudio/internal/service/session"
	"ChatImageStudio/internal/service/transcript"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

const (
	tabChat  = "chat"
	tabImage = "image"

	defaultCount = 1
	defaultSize  = "512x512"
)

type pageData struct {
	ConfigError string

	Tab        string
	ChatModel  string
	ImageModel string
	Error      string
	Warning    string

	// Чат
	Messages []transcript.Message

	// Изображения
	Prompt           string
	SupportsOptions  bool
	SupportsDownload bool
	Counts           []int
	Count            int
	Sizes            []string
	Size             string
	Result           *dispatcher.ImageResult
}

func (s *Server) basePage(tab string) pageData {
	counts := make([]int, 0, dispatcher.MaxImageCount)
	for n := dispatcher.MinImageCount; n <= dispatcher.MaxImageCount; n++ {
		counts = append(counts, n)
	}
	return pageData{
		Tab:              tab,
		ChatModel:        s.cfg.ChatModel,
		ImageModel:       s.cfg.ImageModel,
		SupportsOptions:  s.dispatcher.SupportsOptions(),
		SupportsDownload: s.dispatcher.SupportsDownload(),
		Counts:           counts,
		Count:            defaultCount,
		Sizes:            dispatcher.ImageSizes,
		Size:             defaultSize,
	}
}

// statusFor выбирает HTTP-статус по классу ошибки.
func statusFor(err error) int {
	var perr *dispatcher.ProviderError
	switch {
	case err == nil:
		return http.StatusOK
	case dispatcher.IsWarning(err):
		return http.StatusUnprocessableEntity
	case errors.As(err, &perr), errors.Is(err, dispatcher.ErrNoImages):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleChatPage(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	sess.Lock()
	data := s.basePage(tabChat)
	data.Messages = sess.Transcript.All()
	sess.Unlock()
	s.render(w, http.StatusOK, data)
}

func (s *Server) handleChatSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	sess := s.session(w, r)
	sess.Lock()
	_, err := s.dispatcher.Chat(r.Context(), sess.Transcript, r.PostFormValue("message"))
	data := s.basePage(tabChat)
	data.Messages = sess.Transcript.All()
	sess.Unlock()

	if err != nil {
		if dispatcher.IsWarning(err) {
			data.Warning = dispatcher.UserMessage(err)
		} else {
			data.Error = dispatcher.UserMessage(err)
		}
	}
	s.render(w, statusFor(err), data)
}

func (s *Server) handleChatReset(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	sess.Lock()
	sess.ResetTranscript()
	sess.Unlock()
	http.Redirect(w, r, "/chat", http.StatusSeeOther)
}

func (s *Server) handleImagePage(w http.ResponseWriter, r *http.Request) {
	s.session(w, r)
	s.render(w, http.StatusOK, s.basePage(tabImage))
}

func (s *Server) handleImageSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	data := s.basePage(tabImage)
	data.Prompt = r.PostFormValue("prompt")

	opts := ai.ImageOptions{Count: defaultCount, Size: defaultSize}
	if v := strings.TrimSpace(r.PostFormValue("count")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			n = 0 // отклонится валидацией
		}
		opts.Count = n
	}
	if v := strings.TrimSpace(r.PostFormValue("size")); v != "" {
		opts.Size = v
	}
	data.Count, data.Size = opts.Count, opts.Size

	sess := s.session(w, r)
	sess.Lock()
	res, err := s.dispatcher.GenerateImages(r.Context(), dispatcher.ImageRequest{Prompt: data.Prompt, Options: opts})
	if err == nil && s.dispatcher.SupportsDownload() {
		sess.Images = fetchedImages(res)
	}
	sess.Unlock()

	switch {
	case err == nil:
		data.Result = &res
	case dispatcher.IsWarning(err):
		data.Warning = dispatcher.UserMessage(err)
	default:
		data.Error = dispatcher.UserMessage(err)
	}
	s.render(w, statusFor(err), data)
}

func fetchedImages(res dispatcher.ImageResult) []image.Fetched {
	out := make([]image.Fetched, 0, len(res.Images))
	for _, img := range res.Images {
		if img.Fetched != nil {
			out = append(out, *img.Fetched)
		}
	}
	return out
}

// handleImageDownload отдаёт скачанные байты без изменений под именем generated_image_<n>.png.
func (s *Server) handleImageDownload(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n < 1 {
		http.NotFound(w, r)
		return
	}
	name := image.Filename(n - 1)

	var found *image.Fetched
	if c, cerr := r.Cookie(sessionCookie); cerr == nil {
		if sess, ok := s.sessions.Get(c.Value); ok {
			found = findImage(sess, name)
		}
	}
	if found == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", found.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", found.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(found.Data)))
	_, _ = w.Write(found.Data)
}

func findImage(sess *session.Session, name string) *image.Fetched {
	sess.Lock()
	defer sess.Unlock()
	for i := range sess.Images {
		if sess.Images[i].Filename == name {
			img := sess.Images[i]
			return &img
		}
	}
	return nil
}
