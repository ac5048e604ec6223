package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/diagnosis/fitkeeda-web/pkg/events"
	"github.com/diagnosis/fitkeeda-web/pkg/logger"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/api"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/guard"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/session"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/wizard"
)

type option struct {
	Value string
	Label string
}

type fieldView struct {
	wizard.Field
	Value   string
	List    []string
	Options []option
	Problem string
}

type summaryRow struct {
	Label string
	Value string
}

type wizardView struct {
	Title       string
	Action      string
	Step        int
	StepCount   int
	StepTitle   string
	Fields      []fieldView
	Summary     []summaryRow
	IsFirst     bool
	IsLast      bool
	Submitting  bool
	SubmitLabel string
}

// flow binds a wizard form to its HTTP surface.
type flow struct {
	form        *wizard.Form
	role        *guard.Role
	path        string
	submitLabel string

	// prefill seeds the initial values, typically from the identity hint.
	prefill func(r *http.Request) map[string]string
	// options supplies select choices that come from the backend.
	options func(r *http.Request) (map[string][]option, error)
	// summary replaces the default review rows on the last step.
	summary func(r *http.Request, v wizard.Values) []summaryRow
	// advanced runs after the wizard moves past step from.
	advanced func(r *http.Request, from int, v wizard.Values)
	// submit performs the backend call and returns where to go next.
	submit func(r *http.Request, v wizard.Values) (string, error)
}

func wizardKey(f *wizard.Form) string { return "wizard:" + f.Name }

func (h *Handler) loadWizard(r *http.Request, f *flow) *wizard.Wizard {
	ctx := r.Context()
	var prefill map[string]string
	if f.prefill != nil {
		prefill = f.prefill(r)
	}
	sid, ok := session.IDFrom(ctx)
	if !ok {
		return wizard.New(f.form, prefill)
	}
	raw, err := h.store.Get(ctx, sid, wizardKey(f.form))
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			logger.WarnContext(ctx, "Failed to load form state", "form", f.form.Name, "error", err)
		}
		return wizard.New(f.form, prefill)
	}
	var st wizard.State
	if err := json.Unmarshal(raw, &st); err != nil {
		logger.WarnContext(ctx, "Discarding unreadable form state", "form", f.form.Name, "error", err)
		return wizard.New(f.form, prefill)
	}
	return wizard.Restore(f.form, prefill, st)
}

func (h *Handler) saveWizard(ctx context.Context, w *wizard.Wizard) {
	sid, ok := session.IDFrom(ctx)
	if !ok {
		return
	}
	raw, err := json.Marshal(w.State())
	if err != nil {
		logger.ErrorContext(ctx, "Failed to encode form state", "error", err)
		return
	}
	if err := h.store.Set(ctx, sid, wizardKey(w.Form()), raw); err != nil {
		logger.WarnContext(ctx, "Failed to save form state", "form", w.Form().Name, "error", err)
	}
}

func (h *Handler) dropWizard(ctx context.Context, f *wizard.Form) {
	if sid, ok := session.IDFrom(ctx); ok {
		_ = h.store.Delete(ctx, sid, wizardKey(f))
	}
}

// serveFlow handles GET (show the current step) and POST (apply one action).
func (h *Handler) serveFlow(f *flow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wz := h.loadWizard(r, f)
		if r.Method != http.MethodPost {
			h.renderWizard(w, r, f, wz, http.StatusOK, nil, "")
			return
		}
		if err := r.ParseForm(); err != nil {
			h.renderWizard(w, r, f, wz, http.StatusBadRequest, nil, "Invalid form submission.")
			return
		}

		ctx := r.Context()
		for _, fld := range wz.Current().Fields {
			if fld.Kind == wizard.KindList {
				continue
			}
			if vals, ok := r.PostForm[fld.Name]; ok && len(vals) > 0 {
				wz.UpdateField(fld.Name, vals[0])
			}
		}

		switch {
		case r.PostForm.Has("remove"):
			name, idx, _ := strings.Cut(r.PostForm.Get("remove"), ":")
			if i, err := strconv.Atoi(idx); err == nil {
				wz.RemoveListItem(name, i)
			}
		case r.PostForm.Has("add"):
			name := r.PostForm.Get("add")
			wz.AddListItem(name, r.PostForm.Get("item:"+name))
		default:
			switch r.PostForm.Get("action") {
			case "back":
				wz.Retreat()
			case "next":
				from := wz.Step()
				if !wz.Advance() {
					h.saveWizard(ctx, wz)
					h.renderWizard(w, r, f, wz, http.StatusUnprocessableEntity, wz.Problems(), "")
					return
				}
				if f.advanced != nil {
					f.advanced(r, from, wz.State().Values)
				}
			case "submit":
				h.submitFlow(w, r, f, wz)
				return
			}
		}

		h.saveWizard(ctx, wz)
		h.renderWizard(w, r, f, wz, http.StatusOK, nil, "")
	}
}

func (h *Handler) submitFlow(w http.ResponseWriter, r *http.Request, f *flow, wz *wizard.Wizard) {
	ctx := r.Context()
	h.saveWizard(ctx, wz)

	role := ""
	if f.role != nil {
		role = f.role.Name
	}

	// The wizard itself only lives for this request; the session lock keeps
	// a second tab or a double click from submitting the same form twice.
	release := func() {}
	if sid, ok := session.IDFrom(ctx); ok {
		rel, acquired, err := h.store.Acquire(ctx, sid, "submit:"+f.form.Name, h.submitLock)
		if err != nil {
			logger.WarnContext(ctx, "Submit lock unavailable, continuing unlocked", "form", f.form.Name, "error", err)
		} else if !acquired {
			h.renderWizard(w, r, f, wz, http.StatusConflict, nil, wizard.ErrSubmitInFlight.Error())
			return
		} else {
			release = rel
		}
	}
	defer release()

	var next string
	// Creates inside one attempt share idempotency keys until it succeeds.
	attemptCtx := api.WithIdempotencyKey(ctx, wz.Attempt())
	err := wz.Submit(attemptCtx, func(ctx context.Context, v wizard.Values) error {
		var err error
		next, err = f.submit(r.WithContext(ctx), v)
		return err
	})

	var incomplete *wizard.IncompleteError
	switch {
	case err == nil:
		h.dropWizard(ctx, f.form)
		logger.InfoContext(ctx, "Form submitted", "form", f.form.Name)
		h.publish(ctx, events.FormSubmitted, events.FormEvent{Form: f.form.Name, Role: role, At: h.now().UTC()})
		http.Redirect(w, r, next, http.StatusSeeOther)
	case errors.As(err, &incomplete):
		h.saveWizard(ctx, wz)
		h.renderWizard(w, r, f, wz, http.StatusUnprocessableEntity, incomplete.Fields, "")
	case errors.Is(err, wizard.ErrSubmitInFlight):
		h.renderWizard(w, r, f, wz, http.StatusConflict, nil, err.Error())
	default:
		if errors.Is(err, context.Canceled) {
			return
		}
		if f.role != nil && api.IsUnauthorized(err) {
			h.fail(w, r, f.role, err)
			return
		}
		logger.ErrorContext(ctx, "Form submission failed", "form", f.form.Name, "error", err)
		h.publish(ctx, events.FormSubmitFailed, events.FormEvent{Form: f.form.Name, Role: role, Error: err.Error(), At: h.now().UTC()})
		h.renderWizard(w, r, f, wz, statusFor(err), nil, api.UserMessage(err)+" Your answers are saved; you can submit again.")
	}
}

func (h *Handler) renderWizard(w http.ResponseWriter, r *http.Request, f *flow, wz *wizard.Wizard, status int, problems map[string]string, errMsg string) {
	ctx := r.Context()
	var dynamic map[string][]option
	if f.options != nil {
		var err error
		if dynamic, err = f.options(r); err != nil {
			h.fail(w, r, f.role, err)
			return
		}
	}

	st := wz.State()
	step := f.form.Steps[st.Step]
	v := wizardView{
		Title:       f.form.Title,
		Action:      f.path,
		Step:        st.Step,
		StepCount:   wz.StepCount(),
		StepTitle:   step.Title,
		IsFirst:     st.Step == 0,
		IsLast:      st.Step == wz.StepCount()-1,
		Submitting:  wz.Submitting(),
		SubmitLabel: f.submitLabel,
	}
	if v.SubmitLabel == "" {
		v.SubmitLabel = "Submit"
	}
	for _, fld := range step.Fields {
		fv := fieldView{
			Field:   fld,
			Value:   st.Values.Get(fld.Name),
			List:    st.Values.List(fld.Name),
			Problem: problems[fld.Name],
		}
		if opts, ok := dynamic[fld.Name]; ok {
			fv.Options = opts
		} else {
			for _, o := range fld.Options {
				fv.Options = append(fv.Options, option{Value: o, Label: o})
			}
		}
		v.Fields = append(v.Fields, fv)
	}
	if v.IsLast && len(step.Fields) == 0 {
		if f.summary != nil {
			v.Summary = f.summary(r, st.Values)
		} else {
			v.Summary = defaultSummary(f.form, st.Values)
		}
	}

	p := h.page(r, f.role, f.form.Title, v)
	p.Error = errMsg
	if errMsg == "" && len(problems) > 0 {
		p.Error = "Please fix the highlighted fields."
	}
	logger.DebugContext(ctx, "Rendering form step", "form", f.form.Name, "step", st.Step)
	h.render(w, r, status, "wizard", p)
}

func defaultSummary(form *wizard.Form, v wizard.Values) []summaryRow {
	var rows []summaryRow
	for _, s := range form.Steps {
		for _, f := range s.Fields {
			if f.Kind == wizard.KindPassword {
				continue
			}
			value := v.Get(f.Name)
			if f.Kind == wizard.KindList {
				value = strings.Join(v.List(f.Name), ", ")
			}
			if value == "" {
				value = "-"
			}
			rows = append(rows, summaryRow{Label: f.Label, Value: value})
		}
	}
	return rows
}
