package domain

import "fmt"

type LocationCoords struct {
	Latitude  float64
	Longitude float64
}

func (l LocationCoords) String() string {
	return fmt.Sprintf("%.5f,%.5f", l.Latitude, l.Longitude)
}
