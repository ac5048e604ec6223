// Package wizard drives multi-step data entry that ends in one submission.
//
// Steps are zero-based. A Wizard is safe for concurrent use; its State can
// be serialized between HTTP requests and restored with Restore.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var ErrSubmitInFlight = errors.New("a submission is already in progress")

type FieldKind string

const (
	KindText     FieldKind = "text"
	KindTextarea FieldKind = "textarea"
	KindPassword FieldKind = "password"
	KindSelect   FieldKind = "select"
	KindList     FieldKind = "list"
)

// Field is one input. Rules is a validator tag string; EqualTo names a
// sibling field whose value this one must repeat.
type Field struct {
	Name     string
	Label    string
	Kind     FieldKind
	Rules    string
	EqualTo  string
	Options  []string
	Default  string
	Hint     string
	Readonly bool
}

type Step struct {
	Title  string
	Fields []Field
}

// Form is the static definition of a flow.
type Form struct {
	Name  string
	Title string
	Steps []Step
}

func (f *Form) field(name string) (Field, bool) {
	for _, s := range f.Steps {
		for _, fld := range s.Fields {
			if fld.Name == name {
				return fld, true
			}
		}
	}
	return Field{}, false
}

// Values holds scalar fields and list fields separately.
type Values struct {
	Fields map[string]string   `json:"fields"`
	Lists  map[string][]string `json:"lists,omitempty"`
}

func (v Values) Get(name string) string { return v.Fields[name] }

func (v Values) List(name string) []string { return v.Lists[name] }

func (v Values) clone() Values {
	out := Values{Fields: maps.Clone(v.Fields), Lists: make(map[string][]string, len(v.Lists))}
	if out.Fields == nil {
		out.Fields = map[string]string{}
	}
	for k, l := range v.Lists {
		out.Lists[k] = slices.Clone(l)
	}
	return out
}

// State is the serializable part of a Wizard. Attempt names the pending
// submission: it survives failed submits and changes only after a success,
// so a retry of the same answers can be recognised downstream.
type State struct {
	Step    int    `json:"step"`
	Values  Values `json:"values"`
	Attempt string `json:"attempt,omitempty"`
}

// SubmitError wraps a failed submission. Entered data is kept.
type SubmitError struct {
	Form string
	Err  error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit %s: %v", e.Form, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// IncompleteError is returned by Submit when some step still fails its
// rules. The wizard is moved to that step.
type IncompleteError struct {
	Step   int
	Fields map[string]string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("step %d is incomplete", e.Step+1)
}

type SubmitFunc func(ctx context.Context, v Values) error

type Wizard struct {
	form    *Form
	initial Values

	mu         sync.Mutex
	state      State
	submitting bool
}

// New starts form at step 0 with field defaults, overlaid by prefill.
func New(form *Form, prefill map[string]string) *Wizard {
	initial := Values{Fields: map[string]string{}, Lists: map[string][]string{}}
	for _, s := range form.Steps {
		for _, f := range s.Fields {
			if f.Kind == KindList {
				continue
			}
			initial.Fields[f.Name] = f.Default
		}
	}
	for k, v := range prefill {
		initial.Fields[k] = v
	}
	return &Wizard{
		form:    form,
		initial: initial,
		state:   State{Values: initial.clone(), Attempt: uuid.NewString()},
	}
}

// Restore resumes a wizard from a saved state. The step is clamped.
func Restore(form *Form, prefill map[string]string, st State) *Wizard {
	w := New(form, prefill)
	w.state.Step = min(max(st.Step, 0), len(form.Steps)-1)
	if st.Attempt != "" {
		w.state.Attempt = st.Attempt
	}
	for k, v := range st.Values.Fields {
		w.state.Values.Fields[k] = v
	}
	for k, l := range st.Values.Lists {
		w.state.Values.Lists[k] = slices.Clone(l)
	}
	return w
}

func (w *Wizard) Form() *Form { return w.form }

func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return State{Step: w.state.Step, Values: w.state.Values.clone(), Attempt: w.state.Attempt}
}

// Attempt returns the id of the pending submission.
func (w *Wizard) Attempt() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Attempt
}

func (w *Wizard) Step() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Step
}

func (w *Wizard) StepCount() int { return len(w.form.Steps) }

func (w *Wizard) Current() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.form.Steps[w.state.Step]
}

func (w *Wizard) IsLast() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Step == len(w.form.Steps)-1
}

func (w *Wizard) Submitting() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.submitting
}

// Problems returns the failing fields of the current step.
func (w *Wizard) Problems() map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stepProblems(w.state.Step)
}

func (w *Wizard) CanAdvance() bool {
	return len(w.Problems()) == 0 && !w.IsLast()
}

func (w *Wizard) stepProblems(step int) map[string]string {
	problems := map[string]string{}
	for _, f := range w.form.Steps[step].Fields {
		if msg := checkField(f, w.state.Values); msg != "" {
			problems[f.Name] = msg
		}
	}
	return problems
}

// Advance moves forward when the current step passes its rules. It
// reports whether the step changed.
func (w *Wizard) Advance() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.Step >= len(w.form.Steps)-1 {
		return false
	}
	if len(w.stepProblems(w.state.Step)) > 0 {
		return false
	}
	w.state.Step++
	return true
}

// Retreat moves back one step, keeping every value.
func (w *Wizard) Retreat() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.Step == 0 {
		return false
	}
	w.state.Step--
	return true
}

// UpdateField sets a scalar field. Unknown and read-only fields are ignored.
func (w *Wizard) UpdateField(name, value string) {
	f, ok := w.form.field(name)
	if !ok || f.Kind == KindList || f.Readonly {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.Values.Fields[name] = value
}

// AddListItem appends a trimmed item. Blank items are rejected.
func (w *Wizard) AddListItem(name, item string) bool {
	item = strings.TrimSpace(item)
	if item == "" {
		return false
	}
	if f, ok := w.form.field(name); !ok || f.Kind != KindList {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.Values.Lists[name] = append(w.state.Values.Lists[name], item)
	return true
}

// RemoveListItem removes the item at index i. Out of range is a no-op.
func (w *Wizard) RemoveListItem(name string, i int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	list := w.state.Values.Lists[name]
	if i < 0 || i >= len(list) {
		return false
	}
	w.state.Values.Lists[name] = slices.Delete(slices.Clone(list), i, i+1)
	return true
}

// Submit checks every step, then calls fn exactly once. While fn runs any
// other Submit returns ErrSubmitInFlight. On success the wizard resets to
// its initial state; on failure all values are kept and a *SubmitError is
// returned. The attempt id is rotated only on success.
func (w *Wizard) Submit(ctx context.Context, fn SubmitFunc) error {
	w.mu.Lock()
	if w.submitting {
		w.mu.Unlock()
		return ErrSubmitInFlight
	}
	for step := range w.form.Steps {
		if problems := w.stepProblems(step); len(problems) > 0 {
			w.state.Step = step
			w.mu.Unlock()
			return &IncompleteError{Step: step, Fields: problems}
		}
	}
	w.submitting = true
	values := w.state.Values.clone()
	w.mu.Unlock()

	err := fn(ctx, values)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	if err != nil {
		return &SubmitError{Form: w.form.Name, Err: err}
	}
	w.state = State{Values: w.initial.clone(), Attempt: uuid.NewString()}
	return nil
}
