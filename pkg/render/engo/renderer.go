// pkg/render/engo/renderer.go
package engo

import (
	"image/color"

	"github.com/EngoEngine/ecs"
	"github.com/EngoEngine/engo"
	"github.com/EngoEngine/engo/common"

	"github.com/opd-ai/go-arcadeflight/pkg/engine"
	"github.com/opd-ai/go-arcadeflight/pkg/entity"
)

// SpriteSink receives sprite entities. *common.RenderSystem satisfies it.
type SpriteSink interface {
	Add(basic *ecs.BasicEntity, render *common.RenderComponent, space *common.SpaceComponent)
	Remove(basic ecs.BasicEntity)
}

type vehicleSprite struct {
	basic  ecs.BasicEntity
	render common.RenderComponent
	space  common.SpaceComponent
}

// EngoRenderer mirrors the simulation's vehicles as top-down sprites
type EngoRenderer struct {
	sink   SpriteSink
	assets *AssetManager

	sprites map[entity.ID]*vehicleSprite

	selected entity.ID

	classColors   map[entity.VehicleClass]color.Color
	stalledColor  color.Color
	selectedColor color.Color
}

// NewEngoRenderer creates a renderer drawing into sink
func NewEngoRenderer(sink SpriteSink, assets *AssetManager) *EngoRenderer {
	return &EngoRenderer{
		sink:    sink,
		assets:  assets,
		sprites: make(map[entity.ID]*vehicleSprite),
		classColors: map[entity.VehicleClass]color.Color{
			entity.Trainer:     color.RGBA{200, 200, 200, 255},
			entity.Interceptor: color.RGBA{0, 200, 255, 255},
			entity.Fighter:     color.RGBA{0, 255, 0, 255},
			entity.Gunship:     color.RGBA{255, 160, 0, 255},
			entity.Freighter:   color.RGBA{160, 120, 255, 255},
		},
		stalledColor:  color.RGBA{255, 0, 0, 255},
		selectedColor: color.RGBA{255, 255, 0, 255},
	}
}

// Select highlights the vehicle with the given ID
func (r *EngoRenderer) Select(id entity.ID) {
	r.selected = id
}

// Sync creates, moves and removes sprites so they match states
func (r *EngoRenderer) Sync(states []engine.VehicleState) {
	seen := make(map[entity.ID]struct{}, len(states))
	for _, state := range states {
		seen[state.ID] = struct{}{}

		sprite, ok := r.sprites[state.ID]
		if !ok {
			sprite = r.createSprite(state)
			r.sprites[state.ID] = sprite
			r.sink.Add(&sprite.basic, &sprite.render, &sprite.space)
		}
		r.updateSprite(sprite, state)
	}

	for id, sprite := range r.sprites {
		if _, ok := seen[id]; !ok {
			r.sink.Remove(sprite.basic)
			delete(r.sprites, id)
		}
	}
}

func (r *EngoRenderer) createSprite(state engine.VehicleState) *vehicleSprite {
	class := ClassForProfile(state.ProfileID)
	size := float32(classSpriteSizes[class])

	sprite := &vehicleSprite{
		basic: ecs.NewBasic(),
		space: common.SpaceComponent{Width: size, Height: size},
	}
	if r.assets != nil {
		sprite.render.Drawable = r.assets.GetVehicleSprite(class)
	}
	return sprite
}

// updateSprite centres the sprite on the vehicle and points its nose along
// the heading. Rotation is clockwise degrees, matching yaw on the map.
func (r *EngoRenderer) updateSprite(sprite *vehicleSprite, state engine.VehicleState) {
	center := TopDown(state.Position)
	sprite.space.Position = engo.Point{
		X: center.X - sprite.space.Width/2,
		Y: center.Y - sprite.space.Height/2,
	}
	sprite.space.Rotation = float32(state.Yaw)
	sprite.render.Color = r.colorFor(state)
}

func (r *EngoRenderer) colorFor(state engine.VehicleState) color.Color {
	switch {
	case state.Stalled:
		return r.stalledColor
	case state.ID == r.selected:
		return r.selectedColor
	}
	if c, ok := r.classColors[ClassForProfile(state.ProfileID)]; ok {
		return c
	}
	return color.White
}

// SpriteCount returns the number of live sprites
func (r *EngoRenderer) SpriteCount() int {
	return len(r.sprites)
}

// spaceOf returns the space component of a vehicle's sprite
func (r *EngoRenderer) spaceOf(id entity.ID) (common.SpaceComponent, bool) {
	sprite, ok := r.sprites[id]
	if !ok {
		return common.SpaceComponent{}, false
	}
	return sprite.space, true
}

// Clear removes every sprite
func (r *EngoRenderer) Clear() {
	for id, sprite := range r.sprites {
		r.sink.Remove(sprite.basic)
		delete(r.sprites, id)
	}
}
