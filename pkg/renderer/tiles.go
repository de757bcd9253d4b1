package renderer

import (
	"image"
	"math/rand"
)

// DefaultTileSize is the edge length of a square tile in pixels
const DefaultTileSize = 512

// Tile represents a rectangular region of the image to be rendered
type Tile struct {
	ID     int             // Row-major index in the grid
	Bounds image.Rectangle // Pixel bounds (x0,y0,x1,y1)
}

// Tiles partitions the image into a row-major grid. Tiles on the right and
// bottom edges are clipped, so every pixel is covered exactly once.
func Tiles(width, height, tileSize int) []Tile {
	if width <= 0 || height <= 0 {
		return nil
	}
	if tileSize <= 0 {
		tileSize = DefaultTileSize
	}

	tilesX := (width + tileSize - 1) / tileSize // Ceiling division
	tilesY := (height + tileSize - 1) / tileSize

	tiles := make([]Tile, 0, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			x0 := tx * tileSize
			y0 := ty * tileSize
			x1 := min(x0+tileSize, width) // Don't exceed image bounds
			y1 := min(y0+tileSize, height)
			tiles = append(tiles, Tile{ID: len(tiles), Bounds: image.Rect(x0, y0, x1, y1)})
		}
	}
	return tiles
}

// ShuffledTiles returns a permutation of [0, n) for submitting tiles in a
// scattered order. The same seed gives the same order.
func ShuffledTiles(n int, seed int64) []int {
	return rand.New(rand.NewSource(seed)).Perm(n)
}
