package places

// LatLng is a coordinate pair as returned by the Places API.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Geometry wraps a place's location.
type Geometry struct {
	Location LatLng `json:"location"`
}

// Photo is one photo reference on a place.
type Photo struct {
	PhotoReference string `json:"photo_reference"`
	Height         int    `json:"height"`
	Width          int    `json:"width"`
}

// AddressComponent is one structured address part.
type AddressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

// Review is one user review attached to place details.
type Review struct {
	AuthorName              string `json:"author_name"`
	Rating                  int    `json:"rating"`
	Text                    string `json:"text"`
	Time                    int64  `json:"time"`
	RelativeTimeDescription string `json:"relative_time_description"`
}

// SearchResult is one hit from nearby search.
type SearchResult struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	FormattedAddress string   `json:"formatted_address"`
	Vicinity         string   `json:"vicinity"`
	Geometry         Geometry `json:"geometry"`
	Rating           *float64 `json:"rating,omitempty"`
	UserRatingsTotal *int     `json:"user_ratings_total,omitempty"`
	PriceLevel       *int     `json:"price_level,omitempty"`
	Types            []string `json:"types,omitempty"`
	Photos           []Photo  `json:"photos,omitempty"`
}

// PlaceDetails is the full detail record, including up to five reviews.
type PlaceDetails struct {
	PlaceID              string             `json:"place_id"`
	Name                 string             `json:"name"`
	FormattedAddress     string             `json:"formatted_address"`
	FormattedPhoneNumber string             `json:"formatted_phone_number"`
	Website              string             `json:"website"`
	Geometry             Geometry           `json:"geometry"`
	Rating               *float64           `json:"rating,omitempty"`
	UserRatingsTotal     *int               `json:"user_ratings_total,omitempty"`
	PriceLevel           *int               `json:"price_level,omitempty"`
	Types                []string           `json:"types,omitempty"`
	AddressComponents    []AddressComponent `json:"address_components,omitempty"`
	Photos               []Photo            `json:"photos,omitempty"`
	Reviews              []Review           `json:"reviews,omitempty"`
}

// AddressParts is the subset of address components the restaurant record
// keeps.
type AddressParts struct {
	City    string
	State   string
	ZipCode string
}

// ExtractAddressParts pulls city, state, and zip out of the structured
// address components.
func ExtractAddressParts(components []AddressComponent) AddressParts {
	var parts AddressParts

	for _, component := range components {
		for _, t := range component.Types {
			switch t {
			case "locality":
				parts.City = component.LongName
			case "administrative_area_level_1":
				parts.State = component.ShortName
			case "postal_code":
				parts.ZipCode = component.LongName
			}
		}
	}

	return parts
}

// cuisineByPlaceType maps Places API types onto display cuisine tags.
var cuisineByPlaceType = map[string]string{
	"italian_restaurant":       "Italian",
	"chinese_restaurant":       "Chinese",
	"japanese_restaurant":      "Japanese",
	"mexican_restaurant":       "Mexican",
	"indian_restaurant":        "Indian",
	"thai_restaurant":          "Thai",
	"french_restaurant":        "French",
	"korean_restaurant":        "Korean",
	"vietnamese_restaurant":    "Vietnamese",
	"spanish_restaurant":       "Spanish",
	"mediterranean_restaurant": "Mediterranean",
	"american_restaurant":      "American",
	"bar":                      "Bar",
	"cafe":                     "Cafe",
	"bakery":                   "Bakery",
	"pizza_restaurant":         "Pizza",
	"seafood_restaurant":       "Seafood",
	"steak_house":              "Steakhouse",
	"barbecue_restaurant":      "BBQ",
	"fast_food_restaurant":     "Fast Food",
}

// MapCuisineTags converts place types into cuisine tags, falling back to
// generic tags when no specific cuisine type is present. Order follows the
// input types, deduplicated.
func MapCuisineTags(types []string) []string {
	var tags []string

	seen := map[string]struct{}{}
	add := func(tag string) {
		if _, ok := seen[tag]; !ok {
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
	}

	for _, t := range types {
		if mapped, ok := cuisineByPlaceType[t]; ok {
			add(mapped)
		}
	}

	if len(tags) > 0 {
		return tags
	}

	for _, t := range types {
		switch t {
		case "meal_takeaway":
			add("Takeout")
		case "meal_delivery":
			add("Delivery")
		case "restaurant":
			add("Restaurant")
		}
	}

	return tags
}
