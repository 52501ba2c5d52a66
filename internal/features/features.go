// Package features defines the closed set of experiential restaurant features
// shared by extraction, aggregation, query parsing, and scoring.
package features

// Name identifies one experiential feature. The canonical form is snake_case;
// it is also the database column name on restaurant_features.
type Name string

// The full feature set. Adding a name here requires a matching entry in
// camelByName and a restaurant_features column.
const (
	Romantic              Name = "romantic"
	Cozy                  Name = "cozy"
	Casual                Name = "casual"
	NoiseLevel            Name = "noise_level"
	EnergyLevel           Name = "energy_level"
	Crowdedness           Name = "crowdedness"
	GoodForDates          Name = "good_for_dates"
	GoodForGroups         Name = "good_for_groups"
	FamilyFriendly        Name = "family_friendly"
	BusinessAppropriate   Name = "business_appropriate"
	CelebrationWorthy     Name = "celebration_worthy"
	FastService           Name = "fast_service"
	AttentiveService      Name = "attentive_service"
	Authentic             Name = "authentic"
	CreativeMenu          Name = "creative_menu"
	ComfortFood           Name = "comfort_food"
	HealthyOptions        Name = "healthy_options"
	PortionsLarge         Name = "portions_large"
	VeganFriendly         Name = "vegan_friendly"
	PhotogenicFood        Name = "photogenic_food"
	DecorQuality          Name = "decor_quality"
	PhotoFriendlyLighting Name = "photo_friendly_lighting"
	NiceViews             Name = "nice_views"
	Trendy                Name = "trendy"
	OutdoorSeating        Name = "outdoor_seating"
	EasyParking           Name = "easy_parking"
	ReservationsNeeded    Name = "reservations_needed"
	LateNight             Name = "late_night"
	Formality             Name = "formality"
	GoodValue             Name = "good_value"
	SplurgeWorthy         Name = "splurge_worthy"
	Popularity            Name = "popularity"
)

// All lists every feature in stable declaration order. Iteration order matters
// for SQL column lists and for deterministic aggregation output.
var All = []Name{
	Romantic, Cozy, Casual, NoiseLevel, EnergyLevel, Crowdedness,
	GoodForDates, GoodForGroups, FamilyFriendly, BusinessAppropriate,
	CelebrationWorthy, FastService, AttentiveService, Authentic,
	CreativeMenu, ComfortFood, HealthyOptions, PortionsLarge,
	VeganFriendly, PhotogenicFood, DecorQuality, PhotoFriendlyLighting,
	NiceViews, Trendy, OutdoorSeating, EasyParking, ReservationsNeeded,
	LateNight, Formality, GoodValue, SplurgeWorthy, Popularity,
}

// camelByName is the static snake_case -> camelCase map. A lookup table rather
// than string manipulation so a typo fails fast in tests instead of silently
// producing a new key.
var camelByName = map[Name]string{
	Romantic:              "romantic",
	Cozy:                  "cozy",
	Casual:                "casual",
	NoiseLevel:            "noiseLevel",
	EnergyLevel:           "energyLevel",
	Crowdedness:           "crowdedness",
	GoodForDates:          "goodForDates",
	GoodForGroups:         "goodForGroups",
	FamilyFriendly:        "familyFriendly",
	BusinessAppropriate:   "businessAppropriate",
	CelebrationWorthy:     "celebrationWorthy",
	FastService:           "fastService",
	AttentiveService:      "attentiveService",
	Authentic:             "authentic",
	CreativeMenu:          "creativeMenu",
	ComfortFood:           "comfortFood",
	HealthyOptions:        "healthyOptions",
	PortionsLarge:         "portionsLarge",
	VeganFriendly:         "veganFriendly",
	PhotogenicFood:        "photogenicFood",
	DecorQuality:          "decorQuality",
	PhotoFriendlyLighting: "photoFriendlyLighting",
	NiceViews:             "niceViews",
	Trendy:                "trendy",
	OutdoorSeating:        "outdoorSeating",
	EasyParking:           "easyParking",
	ReservationsNeeded:    "reservationsNeeded",
	LateNight:             "lateNight",
	Formality:             "formality",
	GoodValue:             "goodValue",
	SplurgeWorthy:         "splurgeWorthy",
	Popularity:            "popularity",
}

var nameByCamel = func() map[string]Name {
	m := make(map[string]Name, len(camelByName))
	for name, camel := range camelByName {
		m[camel] = name
	}

	return m
}()

// IsValid reports whether s is a known feature name in canonical form.
func IsValid(s string) bool {
	_, ok := camelByName[Name(s)]

	return ok
}

// Camel returns the camelCase presentation form of n, or "" when n is unknown.
func Camel(n Name) string {
	return camelByName[n]
}

// FromCamel resolves a camelCase key back to its canonical Name.
func FromCamel(s string) (Name, bool) {
	n, ok := nameByCamel[s]

	return n, ok
}

// Column returns the restaurant_features column for n (the canonical form).
func Column(n Name) string {
	return string(n)
}
