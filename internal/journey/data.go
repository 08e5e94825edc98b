package journey

import "github.com/kookoo-caribbean/kookoo/internal/services"

// PassengerDetails collects the passenger-intent form.
type PassengerDetails struct {
	Timeline       string
	Travelers      string
	TravelReasons  []string
	SpecificEvents []string
	Preferences    []string
}

// CargoDetails collects the cargo-intent form.
type CargoDetails struct {
	CargoTypes          []string
	Weight              string
	Timeline            string
	SpecificNeeds       []string
	SpecialRequirements []string
}

// PartnerDetails collects the partner panel.
type PartnerDetails struct {
	OrganizationType string
	Interests        []string
}

// Data is the journey accumulator: everything a visitor has entered across
// screens before the final submit. It is carried by value; Merge returns a
// new copy, keeping transitions testable in isolation.
type Data struct {
	Email       string
	WhatsApp    string
	UserType    string
	Origin      string
	Destination string
	Passenger   PassengerDetails
	Cargo       CargoDetails
	Partner     PartnerDetails
}

// Update is a partial journey update; nil fields leave the current value
// untouched.
type Update struct {
	Email       *string
	WhatsApp    *string
	UserType    *string
	Origin      *string
	Destination *string
	Passenger   *PassengerDetails
	Cargo       *CargoDetails
	Partner     *PartnerDetails
}

// Merge folds a partial update into the journey data, non-destructively.
func Merge(d Data, u Update) Data {
	if u.Email != nil {
		d.Email = *u.Email
	}
	if u.WhatsApp != nil {
		d.WhatsApp = *u.WhatsApp
	}
	if u.UserType != nil {
		d.UserType = *u.UserType
	}
	if u.Origin != nil {
		d.Origin = *u.Origin
	}
	if u.Destination != nil {
		d.Destination = *u.Destination
	}
	if u.Passenger != nil {
		d.Passenger = *u.Passenger
	}
	if u.Cargo != nil {
		d.Cargo = *u.Cargo
	}
	if u.Partner != nil {
		d.Partner = *u.Partner
	}
	return d
}

func (d Data) RouteSet() bool { return d.Origin != "" && d.Destination != "" }
func (d Data) EmailSet() bool { return d.Email != "" }

// BuildSubmission packages the accumulated journey into the wire payload the
// submission endpoint expects: one respondent object plus one response entry
// per answered question, keyed by stable question codes.
func (d Data) BuildSubmission() *services.SubmitRequest {
	req := &services.SubmitRequest{
		Respondent: services.RespondentPayload{
			Email:       d.Email,
			WhatsApp:    d.WhatsApp,
			UserType:    d.UserType,
			Origin:      d.Origin,
			Destination: d.Destination,
		},
		Responses: []services.AnswerPayload{},
	}

	addText := func(code, value string) {
		if value == "" {
			return
		}
		v := value
		req.Responses = append(req.Responses, services.AnswerPayload{QuestionCode: code, AnswerText: &v})
	}
	addOption := func(code, option string) {
		if option == "" {
			return
		}
		req.Responses = append(req.Responses, services.AnswerPayload{QuestionCode: code, OptionCode: option})
	}
	addList := func(code string, values []string) {
		if len(values) == 0 {
			return
		}
		req.Responses = append(req.Responses, services.AnswerPayload{QuestionCode: code, AnswerJSON: values})
	}

	addText("cta.email", d.Email)
	addText("cta.whatsapp", d.WhatsApp)
	addText("route.origin", d.Origin)
	addText("route.destination", d.Destination)

	switch d.UserType {
	case services.UserTypePassenger:
		addOption("passenger.timeline", d.Passenger.Timeline)
		addText("passenger.travelers", d.Passenger.Travelers)
		addList("passenger.reasons", d.Passenger.TravelReasons)
		addList("passenger.events", d.Passenger.SpecificEvents)
	case services.UserTypeCargo:
		addList("cargo.types", d.Cargo.CargoTypes)
		addOption("cargo.weight", d.Cargo.Weight)
		addOption("cargo.timeline", d.Cargo.Timeline)
		addList("cargo.needs", d.Cargo.SpecificNeeds)
	case services.UserTypePartner:
		addOption("partner.org_type", d.Partner.OrganizationType)
		addList("partner.interests", d.Partner.Interests)
	}
	return req
}
