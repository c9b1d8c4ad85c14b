package geo

import (
	"fmt"
	"math"

	"inforojo/internal/domain"
)

// MaxTilesPerRequest bounds how many tiles a bbox may expand to.
const MaxTilesPerRequest = 256

// TileID returns the slippy-map tile "z/x/y" containing the point.
func TileID(lat, lng float64, zoom int) string {
	x, y := tileXY(lat, lng, zoom)
	return formatTile(zoom, x, y)
}

func tileXY(lat, lng float64, zoom int) (int, int) {
	n := math.Exp2(float64(zoom))
	latRad := lat * math.Pi / 180.0

	x := int(math.Floor((lng + 180.0) / 360.0 * n))
	y := int(math.Floor((1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n))

	maxTile := int(n) - 1
	return clamp(x, 0, maxTile), clamp(y, 0, maxTile)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func formatTile(zoom, x, y int) string {
	return fmt.Sprintf("%d/%d/%d", zoom, x, y)
}

// TileBounds returns the geographic box covered by a tile.
func TileBounds(zoom, x, y int) domain.BoundingBox {
	n := math.Exp2(float64(zoom))
	toLat := func(ty int) float64 {
		return math.Atan(math.Sinh(math.Pi*(1-2*float64(ty)/n))) * 180.0 / math.Pi
	}
	return domain.BoundingBox{
		MinLat: toLat(y + 1),
		MaxLat: toLat(y),
		MinLng: float64(x)/n*360.0 - 180.0,
		MaxLng: float64(x+1)/n*360.0 - 180.0,
	}
}

// ParseTileID splits "z/x/y" into its parts.
func ParseTileID(tileID string) (zoom, x, y int, ok bool) {
	n, err := fmt.Sscanf(tileID, "%d/%d/%d", &zoom, &x, &y)
	if err != nil || n != 3 {
		return 0, 0, 0, false
	}
	return zoom, x, y, true
}

// AdjacentTiles returns the tile and its neighbours that exist at zoom.
func AdjacentTiles(zoom, x, y int) []string {
	maxTile := int(math.Exp2(float64(zoom))) - 1
	tiles := make([]string, 0, 9)

	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			nx, ny := x+dx, y+dy
			if nx < 0 || nx > maxTile || ny < 0 || ny > maxTile {
				continue
			}
			tiles = append(tiles, formatTile(zoom, nx, ny))
		}
	}
	return tiles
}

// TilesInBBox lists tiles intersecting bb, or nil when the box would expand
// past MaxTilesPerRequest.
func TilesInBBox(bb domain.BoundingBox, zoom int) []string {
	x1, y1 := tileXY(bb.MaxLat, bb.MinLng, zoom)
	x2, y2 := tileXY(bb.MinLat, bb.MaxLng, zoom)
	if x2 < x1 || y2 < y1 {
		return nil
	}
	if (x2-x1+1)*(y2-y1+1) > MaxTilesPerRequest {
		return nil
	}

	tiles := make([]string, 0, (x2-x1+1)*(y2-y1+1))
	for x := x1; x <= x2; x++ {
		for y := y1; y <= y2; y++ {
			tiles = append(tiles, formatTile(zoom, x, y))
		}
	}
	return tiles
}
