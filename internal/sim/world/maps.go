package world

import (
	"sort"

	"envoy.ai/internal/sim/model"
)

func (w *World) onMap(p model.Pos) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < w.width && p.Y < w.height
}

func (w *World) revealAround(pl *Player, center model.Pos) {
	r := w.cfg.CityRadius
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			p := model.Pos{X: center.X + dx, Y: center.Y + dy}
			if w.onMap(p) {
				pl.known[p] = true
			}
		}
	}
}

// MapKnows reports whether p has seen tile pos.
func (w *World) MapKnows(p model.PlayerID, pos model.Pos) bool {
	pl := w.player(p)
	return pl != nil && pl.known[pos]
}

// GiveMap copies every tile the giver knows to the receiver.
func (w *World) GiveMap(from, to model.PlayerID) {
	src, dst := w.player(from), w.player(to)
	if src == nil || dst == nil {
		return
	}
	for pos := range src.known {
		dst.known[pos] = true
	}
}

// GiveSeaMap copies only the ocean tiles the giver knows.
func (w *World) GiveSeaMap(from, to model.PlayerID) {
	src, dst := w.player(from), w.player(to)
	if src == nil || dst == nil {
		return
	}
	for pos := range src.known {
		if w.ocean[pos] {
			dst.known[pos] = true
		}
	}
}

// GiveCityMap reveals the area around a city to p.
func (w *World) GiveCityMap(id model.CityID, p model.PlayerID) {
	c, ok := w.cities[id]
	pl := w.player(p)
	if !ok || pl == nil {
		return
	}
	w.revealAround(pl, c.Pos)
}

func (w *World) City(id model.CityID) (model.City, bool) {
	c, ok := w.cities[id]
	if !ok {
		return model.City{}, false
	}
	return *c, true
}

// CitiesOf returns p's cities ordered by id.
func (w *World) CitiesOf(p model.PlayerID) []model.City {
	var out []model.City
	for _, c := range w.cities {
		if c.Owner == p {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TransferCity hands a city to a new owner. A capital loses its palace and
// the new owner learns the surrounding tiles.
func (w *World) TransferCity(id model.CityID, to model.PlayerID) {
	c, ok := w.cities[id]
	pl := w.player(to)
	if !ok || pl == nil {
		return
	}
	c.Owner = to
	c.Capital = false
	w.revealAround(pl, c.Pos)
}

// DestroyCity removes a city from the map.
func (w *World) DestroyCity(id model.CityID) bool {
	if _, ok := w.cities[id]; !ok {
		return false
	}
	delete(w.cities, id)
	return true
}
