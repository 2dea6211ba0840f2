// pkg/render/engo/assets.go
package engo

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/EngoEngine/engo/common"

	"github.com/opd-ai/go-arcadeflight/pkg/entity"
)

// classSpriteSizes sets the sprite edge in pixels per airframe family
var classSpriteSizes = map[entity.VehicleClass]int{
	entity.Trainer:     14,
	entity.Interceptor: 16,
	entity.Fighter:     16,
	entity.Gunship:     20,
	entity.Freighter:   24,
}

// AssetManager builds and hands out the procedural sprites
type AssetManager struct {
	vehicleSprites map[entity.VehicleClass]common.Drawable

	backgroundTexture common.Drawable
}

// NewAssetManager creates a new asset manager
func NewAssetManager() *AssetManager {
	return &AssetManager{
		vehicleSprites: make(map[entity.VehicleClass]common.Drawable),
	}
}

// LoadAssets creates every texture. It needs a live GL context.
func (am *AssetManager) LoadAssets() error {
	for _, class := range entity.Classes() {
		size := classSpriteSizes[class]
		am.vehicleSprites[class] = am.createSprite(size, size, VehiclePattern(class, size))
	}
	am.backgroundTexture = am.createSprite(64, 64, GridPattern(64, 16))
	return nil
}

// Loaded reports whether LoadAssets has run
func (am *AssetManager) Loaded() bool {
	return len(am.vehicleSprites) > 0
}

// VehiclePattern returns the size x size silhouette for class, nose up.
// Wider classes get a broader wing; freighters get a blunt nose.
func VehiclePattern(class entity.VehicleClass, size int) [][]int {
	pattern := make([][]int, size)
	mid := float64(size-1) / 2

	wing := 0.5
	nose := 0
	switch class {
	case entity.Interceptor:
		wing = 0.35
	case entity.Gunship:
		wing = 0.6
	case entity.Freighter:
		wing = 0.7
		nose = size / 4
	}

	for y := range pattern {
		pattern[y] = make([]int, size)
		// half-width grows from the nose toward the tail
		row := y
		if row < nose {
			row = nose
		}
		half := float64(row) * wing
		for x := range pattern[y] {
			if d := float64(x) - mid; d >= -half-0.5 && d <= half+0.5 {
				pattern[y][x] = 1
			}
		}
	}
	return pattern
}

// GridPattern returns a size x size tile with grid lines every step pixels
func GridPattern(size, step int) [][]int {
	pattern := make([][]int, size)
	for y := range pattern {
		pattern[y] = make([]int, size)
		for x := range pattern[y] {
			if x%step == 0 || y%step == 0 {
				pattern[y][x] = 1
			}
		}
	}
	return pattern
}

// ClassForProfile maps a profile ID to its airframe family. Derived IDs
// carry their base ID before the first '+'.
func ClassForProfile(profileID string) entity.VehicleClass {
	base, _, _ := strings.Cut(profileID, "+")
	class, _ := entity.ClassFromString(base)
	return class
}

// createSprite creates a sprite from a 2D pattern
func (am *AssetManager) createSprite(width, height int, pattern [][]int) common.Drawable {
	img := am.createBaseImage(width, height)
	am.drawPatternOnImage(img, pattern, width, height)
	return am.convertToEngoTexture(img)
}

// createBaseImage creates a transparent RGBA image with the specified dimensions.
func (am *AssetManager) createBaseImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.RGBA{0, 0, 0, 0}}, image.Point{}, draw.Src)
	return img
}

// drawPatternOnImage draws a 2D pixel pattern onto the provided RGBA image.
// Pixels are white so the render component color tints them.
func (am *AssetManager) drawPatternOnImage(img *image.RGBA, pattern [][]int, width, height int) {
	for y, row := range pattern {
		if y >= height {
			break
		}
		for x, pixel := range row {
			if x >= width {
				break
			}
			if pixel == 1 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			}
		}
	}
}

func (am *AssetManager) convertToEngoTexture(img *image.RGBA) common.Drawable {
	bounds := img.Bounds()
	nrgba := image.NewNRGBA(bounds)
	draw.Draw(nrgba, bounds, img, bounds.Min, draw.Src)
	return common.NewTextureSingle(common.NewImageObject(nrgba))
}

// GetVehicleSprite returns the sprite for a class, falling back to the
// trainer sprite
func (am *AssetManager) GetVehicleSprite(class entity.VehicleClass) common.Drawable {
	if sprite, exists := am.vehicleSprites[class]; exists {
		return sprite
	}
	return am.vehicleSprites[entity.Trainer]
}

// GetBackgroundTexture returns the background texture
func (am *AssetManager) GetBackgroundTexture() common.Drawable {
	return am.backgroundTexture
}
