// Package rules binds the engine's capability interface to the trader
// domain: action enumeration, state transition, terminal detection and
// reward.
package rules

import (
	"fmt"
	"sort"

	"github.com/marchfell/caravan/engine"
	"github.com/marchfell/caravan/game"
)

const (
	// Cart wear per move: a base cost plus a per-distance component.
	cartWearBase        = 3.0
	cartWearPerDistance = 1.0

	// Resting repairs the cart and costs lodging.
	restRepair = 10.0
	restCost   = 5.0

	maxCartHealth = 100.0

	// A trader with no wares and less than this much gold is destitute.
	destituteGold = 10.0

	// Unsold inventory counts toward reward at a discount.
	inventoryDiscount = 0.8
	// Items the local market has no price for still carry some value.
	fallbackItemValue = 10.0
)

// TraderDomain implements engine.Domain, engine.StateValidator and
// engine.StateCodec for trader states.
type TraderDomain struct{}

var _ engine.Domain = TraderDomain{}
var _ engine.StateValidator = TraderDomain{}
var _ engine.StateCodec = TraderDomain{}

func (TraderDomain) ValidateState(s engine.State) error {
	ts, err := traderState(s)
	if err != nil {
		return err
	}
	if ts.TraderID == "" {
		return fmt.Errorf("trader state missing trader id")
	}
	if ts.World == nil {
		return fmt.Errorf("trader state missing world snapshot")
	}
	if ts.Location == "" {
		return fmt.Errorf("trader state missing location")
	}
	return nil
}

// LegalActions enumerates moves to connected settlements, affordable buys,
// sells the local market pays for, and rest.
func (TraderDomain) LegalActions(s engine.State) ([]engine.Action, error) {
	ts, err := traderState(s)
	if err != nil {
		return nil, err
	}
	if ts.CartHealth <= 0 {
		return nil, nil
	}

	here := ts.World.Settlement(ts.Location)
	if here == nil {
		return nil, nil
	}

	var actions []engine.Action

	for _, conn := range here.Connections {
		if conn.DestinationID == ts.Location {
			continue
		}
		actions = append(actions, game.TraderAction{
			Kind:            game.ActionMove,
			DestinationID:   conn.DestinationID,
			DestinationName: conn.DestinationName,
			Path:            conn.Path,
		})
	}

	// Sorted iteration keeps action order, and therefore searches under a
	// fixed seed, deterministic.
	if ts.Load() < ts.Capacity {
		for _, itemID := range sortedKeys(here.Market.Sells) {
			price := here.Market.Sells[itemID]
			if ts.Gold >= price {
				actions = append(actions, game.TraderAction{
					Kind:   game.ActionBuy,
					ItemID: itemID,
					Price:  price,
				})
			}
		}
	}

	for _, itemID := range sortedItemIDs(ts.Inventory) {
		if ts.Inventory[itemID] <= 0 {
			continue
		}
		if price, ok := here.Market.Buys[itemID]; ok {
			actions = append(actions, game.TraderAction{
				Kind:   game.ActionSell,
				ItemID: itemID,
				Price:  price,
			})
		}
	}

	actions = append(actions, game.TraderAction{Kind: game.ActionRest})
	return actions, nil
}

// Apply is pure: it clones the state, advances the day and applies the
// action's effect to the clone.
func (TraderDomain) Apply(s engine.State, a engine.Action) (engine.State, error) {
	ts, err := traderState(s)
	if err != nil {
		return nil, err
	}
	act, ok := a.(game.TraderAction)
	if !ok {
		return nil, fmt.Errorf("unexpected action type %T", a)
	}

	next := ts.Clone()
	next.Day++

	switch act.Kind {
	case game.ActionMove:
		dest := next.World.Settlement(act.DestinationID)
		if dest == nil {
			return nil, fmt.Errorf("unknown destination %q", act.DestinationID)
		}
		distance := moveDistance(next.World.Settlement(next.Location), act.DestinationID)
		next.Location = act.DestinationID
		next.CartHealth -= cartWearBase + cartWearPerDistance*float64(distance)
		if !next.HasVisited(act.DestinationID) {
			next.Visited = append(next.Visited, act.DestinationID)
		}

	case game.ActionBuy:
		if next.Gold < act.Price {
			return nil, fmt.Errorf("cannot afford %s at %.0f", act.ItemID, act.Price)
		}
		next.Gold -= act.Price
		if next.Inventory == nil {
			next.Inventory = make(map[string]int)
		}
		next.Inventory[act.ItemID]++

	case game.ActionSell:
		if next.Inventory[act.ItemID] <= 0 {
			return nil, fmt.Errorf("no %s to sell", act.ItemID)
		}
		next.Inventory[act.ItemID]--
		if next.Inventory[act.ItemID] == 0 {
			delete(next.Inventory, act.ItemID)
		}
		next.Gold += act.Price

	case game.ActionRest:
		next.Gold -= restCost
		next.CartHealth += restRepair
		if next.CartHealth > maxCartHealth {
			next.CartHealth = maxCartHealth
		}

	default:
		return nil, fmt.Errorf("unknown action kind %q", act.Kind)
	}

	return next, nil
}

// IsTerminal reports a broken cart or a destitute trader.
func (TraderDomain) IsTerminal(s engine.State) bool {
	ts, ok := s.(*game.TraderState)
	if !ok || ts == nil {
		return true
	}
	if ts.CartHealth <= 0 {
		return true
	}
	return ts.Load() == 0 && ts.Gold < destituteGold
}

// Reward scores a state: gold plus discounted inventory value, minus a
// penalty for cart damage. Inventory is valued at the local market's buy
// prices where it has one.
func (TraderDomain) Reward(s engine.State) (float64, error) {
	ts, err := traderState(s)
	if err != nil {
		return 0, err
	}

	reward := ts.Gold

	var buys map[string]float64
	if here := ts.World.Settlement(ts.Location); here != nil {
		buys = here.Market.Buys
	}
	for _, itemID := range sortedItemIDs(ts.Inventory) {
		value := fallbackItemValue
		if price, ok := buys[itemID]; ok {
			value = price
		}
		reward += float64(ts.Inventory[itemID]) * value * inventoryDiscount
	}

	reward -= (maxCartHealth - ts.CartHealth) * 0.5
	return reward, nil
}

func (TraderDomain) EncodeState(s engine.State) ([]byte, error) {
	ts, err := traderState(s)
	if err != nil {
		return nil, err
	}
	return game.EncodeState(ts)
}

func (TraderDomain) DecodeState(buf []byte) (engine.State, error) {
	return game.DecodeState(buf)
}

func traderState(s engine.State) (*game.TraderState, error) {
	ts, ok := s.(*game.TraderState)
	if !ok || ts == nil {
		return nil, fmt.Errorf("expected *game.TraderState, got %T", s)
	}
	return ts, nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedItemIDs(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func moveDistance(from *game.Settlement, destinationID string) int {
	if from == nil {
		return 1
	}
	for _, conn := range from.Connections {
		if conn.DestinationID == destinationID {
			return conn.Distance
		}
	}
	return 1
}
