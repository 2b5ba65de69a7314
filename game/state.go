// Package game defines the core state types for trader decision making.
//
// These types represent the minimal state needed for rules evaluation and
// value inference. The state is designed to be efficiently clonable for
// MCTS tree exploration: the trader-owned fields are deep copied, while the
// World snapshot is shared read-only across clones.
package game

// Biome classifies a settlement's surrounding terrain.
// It feeds the one-hot location encoding used by the value estimator.
type Biome string

const (
	BiomeForest      Biome = "forest"
	BiomeMountains   Biome = "mountains"
	BiomePlains      Biome = "plains"
	BiomeCoastal     Biome = "coastal"
	BiomeUnderground Biome = "underground"
)

// Connection is a traversable route between two settlements.
type Connection struct {
	DestinationID   string   `json:"destination_id"`
	DestinationName string   `json:"destination_name"`
	Distance        int      `json:"distance"`
	Path            []string `json:"path,omitempty"`
}

// Market holds the buy/sell price book of a settlement.
// Sells maps item id to the price the settlement charges; Buys maps item id
// to the price the settlement pays.
type Market struct {
	Sells map[string]float64 `json:"sells,omitempty"`
	Buys  map[string]float64 `json:"buys,omitempty"`
}

type Settlement struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Biome       Biome        `json:"biome"`
	Connections []Connection `json:"connections,omitempty"`
	Market      Market       `json:"market"`
}

// World is the read-only world snapshot a decision is made against.
// It is never mutated by state transitions and is shared by every clone of
// a TraderState, including the per-worker copies made by the coordinator.
type World struct {
	ID          string       `json:"id"`
	Settlements []Settlement `json:"settlements"`
}

// Settlement returns the settlement with the given id, or nil.
func (w *World) Settlement(id string) *Settlement {
	if w == nil {
		return nil
	}
	for i := range w.Settlements {
		if w.Settlements[i].ID == id {
			return &w.Settlements[i]
		}
	}
	return nil
}

// TraderState is the complete state needed for rules + inference.
//
// Transitions never mutate a TraderState in place: rules.Apply clones the
// state and returns the clone. Inventory quantities are item counts keyed
// by item id.
type TraderState struct {
	TraderID   string         `json:"trader_id"`
	Location   string         `json:"location"`
	Gold       float64        `json:"gold"`
	CartHealth float64        `json:"cart_health"`
	Capacity   int            `json:"capacity"`
	Inventory  map[string]int `json:"inventory,omitempty"`
	Visited    []string       `json:"visited,omitempty"`
	Day        int            `json:"day"`
	World      *World         `json:"world"`
}

// Clone performs a deep copy of the trader-owned state.
// The World pointer is shared: the snapshot is immutable by contract.
func (s *TraderState) Clone() *TraderState {
	if s == nil {
		return nil
	}

	out := &TraderState{
		TraderID:   s.TraderID,
		Location:   s.Location,
		Gold:       s.Gold,
		CartHealth: s.CartHealth,
		Capacity:   s.Capacity,
		Day:        s.Day,
		World:      s.World,
	}

	if len(s.Inventory) > 0 {
		out.Inventory = make(map[string]int, len(s.Inventory))
		for k, v := range s.Inventory {
			out.Inventory[k] = v
		}
	}

	if len(s.Visited) > 0 {
		out.Visited = make([]string, len(s.Visited))
		copy(out.Visited, s.Visited)
	}

	return out
}

// Load is the total number of items in the cart.
func (s *TraderState) Load() int {
	total := 0
	for _, n := range s.Inventory {
		total += n
	}
	return total
}

// HasVisited reports whether the trader has already been to the settlement.
func (s *TraderState) HasVisited(settlementID string) bool {
	for _, id := range s.Visited {
		if id == settlementID {
			return true
		}
	}
	return false
}

// Equal reports value equality of two trader states.
// World snapshots compare by id: two states over the same snapshot are
// interchangeable for decision purposes.
func (s *TraderState) Equal(o *TraderState) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.TraderID != o.TraderID ||
		s.Location != o.Location ||
		s.Gold != o.Gold ||
		s.CartHealth != o.CartHealth ||
		s.Capacity != o.Capacity ||
		s.Day != o.Day {
		return false
	}
	if len(s.Inventory) != len(o.Inventory) {
		return false
	}
	for k, v := range s.Inventory {
		if o.Inventory[k] != v {
			return false
		}
	}
	if len(s.Visited) != len(o.Visited) {
		return false
	}
	for i := range s.Visited {
		if s.Visited[i] != o.Visited[i] {
			return false
		}
	}
	sw, ow := "", ""
	if s.World != nil {
		sw = s.World.ID
	}
	if o.World != nil {
		ow = o.World.ID
	}
	return sw == ow
}
