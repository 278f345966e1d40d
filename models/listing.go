package models

// SiteURL is the public krisha.kz origin used for detail links.
const SiteURL = "https://krisha.kz"

// Ad is one search-results card as reported by the site.
type Ad struct {
	ID      string  `json:"id"`
	Address string  `json:"address"`
	Area    float64 `json:"area"`
	Price   int     `json:"price"`
}

// URL returns the canonical detail page of the ad.
func (a Ad) URL() string {
	return SiteURL + "/a/show/" + a.ID
}

// Flat is an Ad with the facts parsed out of its card title.
// Floor and BuildingHeight are nil when the title omits them.
type Flat struct {
	Ad
	Rooms          int  `json:"rooms"`
	Floor          *int `json:"floor,omitempty"`
	BuildingHeight *int `json:"building_height,omitempty"`
}
