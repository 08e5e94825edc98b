package journey

import (
	"testing"

	"github.com/kookoo-caribbean/kookoo/internal/services"
)

func TestInitialState(t *testing.T) {
	s := Initial()
	if s.Current != ScreenCampaign {
		t.Fatalf("entry screen = %q, want campaign", s.Current)
	}
	if s.CampaignCompleted {
		t.Fatal("campaign should start incomplete")
	}
}

func TestNavigateFollowsEdges(t *testing.T) {
	cases := []struct {
		from Screen
		dir  Direction
		want Screen
	}{
		{ScreenCampaign, Left, ScreenHero},
		{ScreenHero, Down, ScreenNarrative},
		{ScreenHero, Right, ScreenPassenger},
		{ScreenHero, Left, ScreenCargo},
		{ScreenNarrative, Down, ScreenCommunity},
		{ScreenCommunity, Down, ScreenCTA},
		{ScreenCTA, Up, ScreenCommunity},
		{ScreenPartners, Down, ScreenCommunity},
	}
	for _, tc := range cases {
		s := State{Current: tc.from}
		next := Navigate(s, tc.dir)
		if next.Current != tc.want {
			t.Fatalf("%s + %s = %s, want %s", tc.from, tc.dir, next.Current, tc.want)
		}
		if next.SlideDirection != tc.dir {
			t.Fatalf("slide direction = %s, want %s", next.SlideDirection, tc.dir)
		}
	}
}

func TestNavigateIgnoresUndefinedEdges(t *testing.T) {
	s := State{Current: ScreenNarrative, SlideDirection: Down}
	next := Navigate(s, Left)
	if next != s {
		t.Fatalf("undefined edge changed state: %+v", next)
	}
}

func TestNavigateBlocksReturnToCompletedCampaign(t *testing.T) {
	s := State{Current: ScreenHero, CampaignCompleted: true}
	next := Navigate(s, Up)
	if next.Current != ScreenHero {
		t.Fatalf("returned to campaign after completion: %s", next.Current)
	}
	// Without completion the edge still works.
	s.CampaignCompleted = false
	if got := Navigate(s, Up).Current; got != ScreenCampaign {
		t.Fatalf("up from hero = %s, want campaign", got)
	}
}

func TestCompleteCampaignRoutesByRole(t *testing.T) {
	cases := map[string]Screen{
		services.UserTypePassenger: ScreenPassenger,
		services.UserTypeCargo:     ScreenCargo,
		services.UserTypePartner:   ScreenPartners,
	}
	for role, want := range cases {
		s := CompleteCampaign(Initial(), role)
		if s.Current != want {
			t.Fatalf("%s routed to %s, want %s", role, s.Current, want)
		}
		if !s.CampaignCompleted {
			t.Fatalf("%s: campaign not marked completed", role)
		}
	}
}

func TestMergeIsNonDestructive(t *testing.T) {
	d := Data{Email: "a@b.com", Origin: "TT"}
	origin := "BB"
	merged := Merge(d, Update{Origin: &origin})
	if merged.Origin != "BB" {
		t.Fatalf("origin = %q, want BB", merged.Origin)
	}
	if merged.Email != "a@b.com" {
		t.Fatalf("email lost in merge: %q", merged.Email)
	}
	if d.Origin != "TT" {
		t.Fatalf("merge mutated input: %q", d.Origin)
	}
}

func TestBuildSubmissionCargoJourney(t *testing.T) {
	d := Data{
		Email:       "ship@b.com",
		UserType:    services.UserTypeCargo,
		Origin:      "TT",
		Destination: "VC",
		Cargo: CargoDetails{
			CargoTypes: []string{"produce", "building"},
			Weight:     "50_500kg",
			Timeline:   "regular",
		},
	}
	req := d.BuildSubmission()
	if req.Respondent.Email != "ship@b.com" || req.Respondent.UserType != services.UserTypeCargo {
		t.Fatalf("respondent payload wrong: %+v", req.Respondent)
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("built payload invalid: %v", err)
	}
	codes := map[string]services.AnswerPayload{}
	for _, a := range req.Responses {
		codes[a.QuestionCode] = a
	}
	for _, want := range []string{"cta.email", "route.origin", "route.destination", "cargo.types", "cargo.weight", "cargo.timeline"} {
		if _, ok := codes[want]; !ok {
			t.Fatalf("missing response for %s; got %v", want, req.Responses)
		}
	}
	if codes["cargo.weight"].OptionCode != "50_500kg" {
		t.Fatalf("cargo.weight option = %q", codes["cargo.weight"].OptionCode)
	}
	if _, ok := codes["passenger.timeline"]; ok {
		t.Fatal("passenger answers leaked into cargo journey")
	}
}

func TestBuildSubmissionSkipsEmptyFields(t *testing.T) {
	req := Data{Email: "a@b.com"}.BuildSubmission()
	if len(req.Responses) != 1 {
		t.Fatalf("responses = %d, want only cta.email", len(req.Responses))
	}
}
