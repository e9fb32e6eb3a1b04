package model

// Location is the geographic information resolved for an address.
type Location struct {
	Addr        string  `json:"addr"`
	Country     string  `json:"country"`
	CountryCode string  `json:"country_code"`
	Region      string  `json:"region"`
	City        string  `json:"city"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timezone    string  `json:"timezone"`
}

// Locator resolves an address to a location. Implementations cache their
// results; lookups happen only when rendering an address, never on the
// packet ingestion path.
type Locator interface {
	Lookup(addr string) (*Location, error)
}
