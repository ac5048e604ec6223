package handlers

import (
	"net/http"

	"github.com/diagnosis/fitkeeda-web/pkg/logger"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/api"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/wizard"
)

func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "home", h.page(r, nil, "", nil))
}

func (h *Handler) Thanks(w http.ResponseWriter, r *http.Request) {
	v := doneView{
		Heading: "Thank you",
		Message: "We have your details and the FitKeeda team will reach out shortly.",
		Next:    link{Href: "/", Label: "Back to home"},
	}
	h.render(w, r, http.StatusOK, "done", h.page(r, nil, "Thank you", v))
}

func (h *Handler) coachEnquiryFlow() *flow {
	return &flow{
		form:        wizard.CoachEnquiry,
		path:        "/enquiry/coach",
		submitLabel: "Send enquiry",
		submit: func(r *http.Request, v wizard.Values) (string, error) {
			ctx := r.Context()
			e := api.Enquiry{
				Type:              api.EnquiryCoach,
				Name:              v.Get("name"),
				Phone:             v.Get("phone"),
				Email:             v.Get("email"),
				Location:          v.Get("location"),
				SportsSpecialized: v.List("sportsSpecialized"),
			}
			if _, err := h.api.CreateEnquiry(ctx, e); err != nil {
				return "", err
			}
			if err := h.notifier.CoachEnquiryReceived(ctx, e.Email, e.Name, e.SportsSpecialized); err != nil {
				logger.WarnContext(ctx, "Failed to send enquiry acknowledgement", "error", err)
			}
			return "/enquiry/thanks", nil
		},
	}
}

func (h *Handler) societyEnquiryFlow() *flow {
	return &flow{
		form:        wizard.SocietyEnquiry,
		path:        "/enquiry/society",
		submitLabel: "Send enquiry",
		submit: func(r *http.Request, v wizard.Values) (string, error) {
			e := api.Enquiry{
				Type:        api.EnquirySociety,
				SocietyName: v.Get("societyName"),
				Name:        v.Get("name"),
				Phone:       v.Get("phone"),
				Location:    v.Get("location"),
				Amenities:   v.List("amenities"),
			}
			if _, err := h.api.CreateEnquiry(r.Context(), e); err != nil {
				return "", err
			}
			return "/enquiry/thanks", nil
		},
	}
}
