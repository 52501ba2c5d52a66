package features

// PromptVersion tags every extraction with the prompt revision that produced
// it, so aggregated vectors can be traced back and re-extracted after prompt
// changes.
const PromptVersion = "v2"

// Guidance is the per-feature scoring guidance embedded in the extraction
// prompt. 1.0 is the strongest positive reading of the feature, 0.0 the
// strongest negative; for scales like noise_level, 1.0 means "very loud".
var Guidance = map[Name]string{
	Romantic:              "candlelit, intimate, date-spot mentions",
	Cozy:                  "warm, snug, homey atmosphere",
	Casual:                "relaxed dress and vibe, walk-in friendly",
	NoiseLevel:            "1.0 very loud, 0.0 library quiet",
	EnergyLevel:           "1.0 buzzing and lively, 0.0 subdued",
	Crowdedness:           "1.0 packed, 0.0 empty",
	GoodForDates:          "explicitly recommended for dates",
	GoodForGroups:         "large tables, handles parties well",
	FamilyFriendly:        "kids welcome, high chairs, kids menu",
	BusinessAppropriate:   "suitable for client meetings or work lunches",
	CelebrationWorthy:     "birthdays, anniversaries, special occasions",
	FastService:           "quick seating and food delivery",
	AttentiveService:      "staff described as attentive or caring",
	Authentic:             "cuisine described as authentic or traditional",
	CreativeMenu:          "inventive or unusual dishes",
	ComfortFood:           "hearty, familiar, satisfying food",
	HealthyOptions:        "salads, light fare, dietary accommodations",
	PortionsLarge:         "generous portions, leftovers mentioned",
	VeganFriendly:         "vegan or vegetarian options praised",
	PhotogenicFood:        "beautiful plating, instagrammable dishes",
	DecorQuality:          "interior design praised",
	PhotoFriendlyLighting: "bright or flattering lighting",
	NiceViews:             "views, scenery, people watching",
	Trendy:                "hip, stylish, of-the-moment",
	OutdoorSeating:        "patio, terrace, sidewalk tables",
	EasyParking:           "parking described as easy or available",
	ReservationsNeeded:    "1.0 book well ahead, 0.0 walk right in",
	LateNight:             "open or lively late",
	Formality:             "1.0 formal fine dining, 0.0 fully casual",
	GoodValue:             "worth the price, generous for the money",
	SplurgeWorthy:         "expensive but worth it",
	Popularity:            "busy, well known, much talked about",
}
