// Package journey models the client side of the lead funnel: the
// swipe-navigated screen graph and the in-memory accumulation of a
// visitor's choices before final submission. Everything is value-semantic;
// callers hold the state and feed it through pure transition functions.
package journey

// Screen identifies one full-screen panel of the landing experience.
type Screen string

const (
	ScreenCampaign  Screen = "campaign"
	ScreenHero      Screen = "hero"
	ScreenNarrative Screen = "narrative"
	ScreenPassenger Screen = "passenger"
	ScreenCargo     Screen = "cargo"
	ScreenCommunity Screen = "community"
	ScreenPartners  Screen = "partners"
	ScreenCTA       Screen = "cta"
)

// Direction is one of the four swipe/click inputs.
type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

// screenMap is the directed edge table: absent entries mean the input is
// ignored on that screen. The graph has no terminal state.
var screenMap = map[Screen]map[Direction]Screen{
	ScreenCampaign: {
		Left:  ScreenHero,
		Right: ScreenHero,
	},
	ScreenHero: {
		Up:    ScreenCampaign,
		Down:  ScreenNarrative,
		Left:  ScreenCargo,
		Right: ScreenPassenger,
	},
	ScreenNarrative: {
		Up:   ScreenHero,
		Down: ScreenCommunity,
	},
	ScreenPassenger: {
		Left: ScreenHero,
		Down: ScreenCommunity,
	},
	ScreenCargo: {
		Right: ScreenHero,
		Down:  ScreenCommunity,
	},
	ScreenCommunity: {
		Up:   ScreenHero,
		Down: ScreenCTA,
	},
	ScreenPartners: {
		Down: ScreenCommunity,
	},
	ScreenCTA: {
		Up: ScreenCommunity,
	},
}

// State is the navigation position. The zero value is not meaningful; use
// Initial.
type State struct {
	Current           Screen
	SlideDirection    Direction
	CampaignCompleted bool
}

// Initial returns the entry state: the campaign screen.
func Initial() State {
	return State{Current: ScreenCampaign, SlideDirection: Down}
}

// Navigate applies a directional input and returns the next state. Inputs
// with no edge are ignored and the state returned unchanged. Once the
// campaign form has been completed, swiping back up to it from the hero
// screen is also ignored.
func Navigate(s State, d Direction) State {
	if d == Up && s.Current == ScreenHero && s.CampaignCompleted {
		return s
	}
	next, ok := screenMap[s.Current][d]
	if !ok {
		return s
	}
	s.Current = next
	s.SlideDirection = d
	return s
}

// CompleteCampaign marks the campaign form done and jumps to the screen
// matching the chosen role: passengers and shippers get their intent form,
// partners get the partner panel.
func CompleteCampaign(s State, userType string) State {
	s.CampaignCompleted = true
	s.SlideDirection = Right
	switch userType {
	case "partner":
		s.Current = ScreenPartners
	case "cargo":
		s.Current = ScreenCargo
	default:
		s.Current = ScreenPassenger
	}
	return s
}

// GoTo jumps directly to a screen (deep links, post-submit confirmation).
func GoTo(s State, screen Screen) State {
	if _, ok := screenMap[screen]; !ok {
		return s
	}
	s.Current = screen
	s.SlideDirection = Right
	return s
}
