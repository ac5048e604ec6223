package wizard

const phoneRules = "required,numeric,len=10"

var Sports = []string{"Yoga", "Zumba", "Badminton", "Football", "Cricket", "Tennis", "Swimming", "Skating", "Karate", "Table Tennis"}

var (
	AddCoach = &Form{
		Name:  "add-coach",
		Title: "Add coach",
		Steps: []Step{
			{Title: "Coach details", Fields: []Field{
				{Name: "name", Label: "Full name", Kind: KindText, Rules: "notblank"},
				{Name: "email", Label: "Email", Kind: KindText, Rules: "required,email"},
				{Name: "phone", Label: "Phone", Kind: KindText, Rules: phoneRules},
				{Name: "location", Label: "Location", Kind: KindText, Rules: "notblank"},
			}},
			{Title: "Sports", Fields: []Field{
				{Name: "sports", Label: "Sports coached", Kind: KindList, Rules: "min=1", Options: Sports},
			}},
			{Title: "Login credentials", Fields: []Field{
				{Name: "password", Label: "Password", Kind: KindPassword, Rules: "required,min=6"},
				{Name: "confirmPassword", Label: "Confirm password", Kind: KindPassword, Rules: "required", EqualTo: "password"},
			}},
		},
	}

	AddSociety = &Form{
		Name:  "add-society",
		Title: "Add society",
		Steps: []Step{
			{Title: "Society details", Fields: []Field{
				{Name: "name", Label: "Society name", Kind: KindText, Rules: "notblank"},
				{Name: "area", Label: "Area", Kind: KindText, Rules: "notblank"},
			}},
			{Title: "Amenities", Fields: []Field{
				{Name: "amenities", Label: "Amenities", Kind: KindList, Hint: "Clubhouse, pool, open lawn..."},
			}},
		},
	}

	CreateSession = &Form{
		Name:  "create-session",
		Title: "Create session",
		Steps: []Step{
			{Title: "Session", Fields: []Field{
				{Name: "apartment", Label: "Society", Kind: KindSelect, Rules: "notblank"},
				{Name: "sport", Label: "Sport", Kind: KindSelect, Rules: "notblank", Options: Sports},
				{Name: "slot", Label: "Slot", Kind: KindText, Rules: "required,slot", Hint: "06:30 AM"},
				{Name: "plan", Label: "Plan", Kind: KindSelect, Options: []string{"Monthly", "Quarterly", "Half-yearly"}, Default: "Monthly"},
				{Name: "price", Label: "Price (INR)", Kind: KindText, Rules: "required,numeric"},
				{Name: "months", Label: "Months", Kind: KindText, Rules: "required,numeric", Default: "1"},
			}},
		},
	}

	SendNotice = &Form{
		Name:  "send-notice",
		Title: "Send notice",
		Steps: []Step{
			{Title: "Notice", Fields: []Field{
				{Name: "societyName", Label: "Society (blank for all)", Kind: KindSelect},
				{Name: "subject", Label: "Subject", Kind: KindText, Rules: "notblank,max=120"},
				{Name: "message", Label: "Message (Markdown)", Kind: KindTextarea, Rules: "notblank,max=4000"},
			}},
		},
	}

	BookSession = &Form{
		Name:  "book-session",
		Title: "Book a session",
		Steps: []Step{
			{Title: "Your details", Fields: []Field{
				{Name: "name", Label: "Full name", Kind: KindText, Rules: "notblank"},
				{Name: "number", Label: "Phone", Kind: KindText, Rules: phoneRules},
				{Name: "apartment", Label: "Society", Kind: KindText, Rules: "notblank", Readonly: true},
			}},
			{Title: "Choose a session", Fields: []Field{
				{Name: "sessionId", Label: "Session", Kind: KindSelect, Rules: "notblank"},
			}},
			{Title: "Confirm and pay"},
		},
	}

	ResidentEnquiry = &Form{
		Name:  "resident-enquiry",
		Title: "Contact us",
		Steps: []Step{
			{Title: "Your details", Fields: []Field{
				{Name: "name", Label: "Full name", Kind: KindText, Rules: "notblank"},
				{Name: "phone", Label: "Phone", Kind: KindText, Rules: phoneRules},
			}},
			{Title: "Message", Fields: []Field{
				{Name: "subject", Label: "Subject", Kind: KindText, Rules: "max=120"},
				{Name: "message", Label: "Message", Kind: KindTextarea, Rules: "notblank,max=2000"},
			}},
		},
	}

	CoachEnquiry = &Form{
		Name:  "coach-enquiry",
		Title: "Coach with us",
		Steps: []Step{
			{Title: "About you", Fields: []Field{
				{Name: "name", Label: "Full name", Kind: KindText, Rules: "notblank"},
				{Name: "phone", Label: "Phone", Kind: KindText, Rules: phoneRules},
				{Name: "email", Label: "Email", Kind: KindText, Rules: "omitempty,email"},
				{Name: "location", Label: "City / area", Kind: KindText},
			}},
			{Title: "Sports", Fields: []Field{
				{Name: "sportsSpecialized", Label: "Sports you coach", Kind: KindList, Rules: "min=1", Options: Sports},
			}},
			{Title: "Review"},
		},
	}

	SocietyEnquiry = &Form{
		Name:  "society-enquiry",
		Title: "Bring FitKeeda to your society",
		Steps: []Step{
			{Title: "Basics", Fields: []Field{
				{Name: "societyName", Label: "Society name", Kind: KindText, Rules: "notblank"},
				{Name: "name", Label: "Your name", Kind: KindText},
				{Name: "phone", Label: "Phone", Kind: KindText, Rules: phoneRules},
			}},
			{Title: "Location and amenities", Fields: []Field{
				{Name: "location", Label: "Location", Kind: KindText},
				{Name: "amenities", Label: "Amenities", Kind: KindList},
			}},
			{Title: "Review"},
		},
	}
)

var registry = map[string]*Form{}

func init() {
	for _, f := range []*Form{AddCoach, AddSociety, CreateSession, SendNotice, BookSession, ResidentEnquiry, CoachEnquiry, SocietyEnquiry} {
		registry[f.Name] = f
	}
}

// Lookup returns the form registered under name.
func Lookup(name string) (*Form, bool) {
	f, ok := registry[name]
	return f, ok
}
