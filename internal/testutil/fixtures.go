package testutil

// Place is a named coordinate used to seed locations.
type Place struct {
	Name      string
	Latitude  float64
	Longitude float64
}

// Well-known places with stable coordinates.
var (
	Alexanderplatz       = Place{Name: "Alexanderplatz", Latitude: 52.521918, Longitude: 13.413215}
	BrandenburgGate      = Place{Name: "Brandenburg Gate", Latitude: 52.516275, Longitude: 13.377704}
	GreenwichObservatory = Place{Name: "Royal Observatory", Latitude: 51.476852, Longitude: -0.000500}
	CentralPark          = Place{Name: "Central Park", Latitude: 40.785091, Longitude: -73.968285}
)

// Offset returns the point moved north by meters. One degree of latitude is
// roughly 111,195 m on the Haversine sphere.
func (p Place) Offset(meters float64) (lat, lon float64) {
	return p.Latitude + meters/111195.0, p.Longitude
}
