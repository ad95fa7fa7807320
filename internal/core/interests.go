package core

// DefaultInterest is selected when nothing else was saved.
const DefaultInterest = "Default chat"

// AvailableInterests is the catalogue offered to the user.
var AvailableInterests = []string{
	"Sports",
	"Music",
	"Movies",
	"Tech",
	"Travel",
	"Religion",
	"Astronomy",
	"Philosophy",
	"Politics",
	"Universe",
	"Paranormal",
	"Love",
	"Friends",
	"Science",
	DefaultInterest,
}

// Disclaimer is shown before the user agrees to chat.
const Disclaimer = "Please be cautious when chatting with strangers online."
