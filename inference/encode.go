// Package inference provides the learned value estimator: a fixed-width
// feature encoding of trader states and an ONNX Runtime session that maps
// the encoding to a scalar desirability in [-1, 1].
package inference

import (
	"sort"
	"sync"

	"github.com/marchfell/caravan/game"
)

const (
	numericFeatures = 5
	biomeFeatures   = 5
	// InventorySlots is the fixed categorical width for inventory items.
	// States with more distinct items contribute their largest slots;
	// states with fewer are zero-padded.
	InventorySlots = 8

	// InputSize is the model's flat input width.
	InputSize = numericFeatures + biomeFeatures + InventorySlots

	goldScale = 1000.0
	dayScale  = 100.0
	slotScale = 10.0
)

var floatPool = sync.Pool{
	New: func() any {
		b := make([]float32, InputSize)
		return &b
	},
}

// GetFeatureBuffer returns a pooled feature buffer.
func GetFeatureBuffer() *[]float32 {
	return floatPool.Get().(*[]float32)
}

// PutFeatureBuffer returns a buffer to the pool.
func PutFeatureBuffer(b *[]float32) {
	floatPool.Put(b)
}

// Encode writes the state's feature vector into a pooled float32 slice.
// Layout:
//
//	0..4   normalized numerics: gold, cart health, load factor, day,
//	       visited fraction
//	5..9   one-hot biome of the current settlement
//	10..   inventory slot quantities, sorted by item id, zero-padded
//
// Caller must return the slice with PutFeatureBuffer.
func Encode(s *game.TraderState) *[]float32 {
	dataPtr := GetFeatureBuffer()
	data := *dataPtr
	clear(data)

	data[0] = float32(s.Gold / goldScale)
	data[1] = float32(s.CartHealth / 100.0)
	if s.Capacity > 0 {
		data[2] = float32(s.Load()) / float32(s.Capacity)
	}
	data[3] = float32(s.Day) / dayScale
	if s.World != nil && len(s.World.Settlements) > 0 {
		data[4] = float32(len(s.Visited)) / float32(len(s.World.Settlements))
	}

	var biome game.Biome
	if here := s.World.Settlement(s.Location); here != nil {
		biome = here.Biome
	}
	switch biome {
	case game.BiomeForest:
		data[numericFeatures+0] = 1
	case game.BiomeMountains:
		data[numericFeatures+1] = 1
	case game.BiomePlains:
		data[numericFeatures+2] = 1
	case game.BiomeCoastal:
		data[numericFeatures+3] = 1
	case game.BiomeUnderground:
		data[numericFeatures+4] = 1
	}

	items := make([]string, 0, len(s.Inventory))
	for id := range s.Inventory {
		items = append(items, id)
	}
	sort.Strings(items)
	if len(items) > InventorySlots {
		items = items[:InventorySlots]
	}
	for i, id := range items {
		data[numericFeatures+biomeFeatures+i] = float32(s.Inventory[id]) / slotScale
	}

	return dataPtr
}
