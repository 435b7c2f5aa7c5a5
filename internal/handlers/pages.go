package handlers

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/Billy-Davies-2/nba-predictor-ui/internal/form"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/logger"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/models"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/pubsub"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/teams"
)

// SessionCookie holds the id of the browser's form session
const SessionCookie = "nba_predictor_session"

// PageHandlers serves the server-rendered form and result pages
type PageHandlers struct {
	registry  *form.Registry
	tmpl      *template.Template
	publisher pubsub.Publisher
	secure    bool
	now       func() time.Time
}

// NewPageHandlers creates the page handlers. secure marks the session cookie
// HTTPS-only.
func NewPageHandlers(registry *form.Registry, tmpl *template.Template, publisher pubsub.Publisher, secure bool) *PageHandlers {
	return &PageHandlers{
		registry:  registry,
		tmpl:      tmpl,
		publisher: publisher,
		secure:    secure,
		now:       time.Now,
	}
}

type pageData struct {
	Phase        string
	Teams        []models.Team
	Input        form.Input
	Errors       form.ValidationErrors
	View         *form.View
	ErrorMessage string
}

// Index renders the session's form, progress, result or error page
func (h *PageHandlers) Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	c := h.session(w, r)
	h.render(w, http.StatusOK, h.pageFor(c.State(), nil, nil))
}

// Submit handles the form post
func (h *PageHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	in := form.Input{
		Date: r.PostFormValue("date"),
		Home: r.PostFormValue("home_team"),
		Away: r.PostFormValue("away_team"),
	}

	c := h.session(w, r)
	st, err := c.Submit(r.Context(), in)

	var verrs form.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		h.render(w, http.StatusUnprocessableEntity, h.pageFor(st, &in, verrs))
		return
	case errors.Is(err, form.ErrSubmissionInFlight), errors.Is(err, form.ErrResetRequired):
		logger.Debug("Submission refused", "phase", st.Phase, "reason", err)
	case err != nil:
		logger.Error("Unexpected submit error", "error", err)
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Reset returns the session's form to its initial state
func (h *PageHandlers) Reset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	c := h.session(w, r)
	prev := c.State().Phase
	c.Reset()

	if h.publisher != nil {
		h.publisher.Publish(pubsub.Event{
			Type:    pubsub.EventPredictionReset,
			Payload: map[string]interface{}{"from": string(prev)},
		})
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *PageHandlers) session(w http.ResponseWriter, r *http.Request) *form.Controller {
	var id string
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		id = cookie.Value
	}

	c, newID := h.registry.Get(id)
	if newID != id {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    newID,
			Path:     "/",
			HttpOnly: true,
			Secure:   h.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return c
}

// pageFor builds template data for a state. in and verrs override the form
// contents after a rejected post.
func (h *PageHandlers) pageFor(st form.State, in *form.Input, verrs form.ValidationErrors) pageData {
	data := pageData{
		Phase:  string(st.Phase),
		Teams:  teams.List(),
		Input:  form.Input{Date: h.now().UTC().Format(models.DateLayout)},
		Errors: verrs,
	}

	if st.Request != nil {
		data.Input = form.Input{
			Date: st.Request.DateString(),
			Home: st.Request.HomeCode,
			Away: st.Request.AwayCode,
		}
	}

	switch st.Phase {
	case form.PhaseSucceeded:
		if st.Result != nil {
			v := form.NewView(*st.Request, *st.Result)
			data.View = &v
		}
	case form.PhaseFailed:
		data.ErrorMessage = st.ErrorMessage
	}

	if in != nil {
		data.Input = *in
	}
	return data
}

func (h *PageHandlers) render(w http.ResponseWriter, status int, data pageData) {
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		logger.Error("Failed to render page", "error", err, "phase", data.Phase)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
