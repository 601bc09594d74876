package pickups

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMeters(t *testing.T) {
	soho := Coordinates{Lat: 51.5136, Lng: -0.1365}
	assert.Zero(t, DistanceMeters(soho, soho))

	// One degree of latitude on a 6371 km sphere.
	north := Coordinates{Lat: 1, Lng: 0}
	assert.InDelta(t, 111194.93, DistanceMeters(Coordinates{}, north), 0.5)

	vauxhall := Coordinates{Lat: 51.4861, Lng: -0.1230}
	d := DistanceMeters(soho, vauxhall)
	assert.InDelta(t, 3205, d, 25)
	assert.InDelta(t, d, DistanceMeters(vauxhall, soho), 1e-9)
}

func TestWithinRadiusBoundaryIsInclusive(t *testing.T) {
	origin := Coordinates{}
	target := Coordinates{Lat: 0.0004}
	exact := DistanceMeters(origin, target)

	assert.True(t, WithinRadius(origin, target, exact))
	assert.False(t, WithinRadius(origin, target, math.Nextafter(exact, 0)))
	assert.True(t, WithinRadius(origin, target, 50))
}

func TestCoordinatesValid(t *testing.T) {
	assert.True(t, Coordinates{Lat: 90, Lng: -180}.Valid())
	assert.False(t, Coordinates{Lat: 91}.Valid())
	assert.False(t, Coordinates{Lng: 180.5}.Valid())
	assert.False(t, Coordinates{Lat: math.NaN()}.Valid())
}
