package game

import "fmt"

// ActionKind enumerates the discrete choices a trader can make.
type ActionKind string

const (
	ActionMove ActionKind = "move"
	ActionBuy  ActionKind = "buy"
	ActionSell ActionKind = "sell"
	ActionRest ActionKind = "rest"
)

// TraderAction is an immutable candidate move.
//
// Key uniquely identifies one class of move per decision cycle; the
// coordinator aggregates worker results by it, so two structurally
// different actions must never collide on the same key.
type TraderAction struct {
	Kind            ActionKind `json:"kind"`
	DestinationID   string     `json:"destination_id,omitempty"`
	DestinationName string     `json:"destination_name,omitempty"`
	ItemID          string     `json:"item_id,omitempty"`
	Price           float64    `json:"price,omitempty"`
	Path            []string   `json:"path,omitempty"`
}

// Key returns the aggregation key for this action.
func (a TraderAction) Key() string {
	switch a.Kind {
	case ActionMove:
		return "move:" + a.DestinationID
	case ActionBuy:
		return "buy:" + a.ItemID
	case ActionSell:
		return "sell:" + a.ItemID
	default:
		return string(a.Kind)
	}
}

func (a TraderAction) String() string {
	switch a.Kind {
	case ActionMove:
		return fmt.Sprintf("move to %s", a.DestinationName)
	case ActionBuy:
		return fmt.Sprintf("buy %s for %.0f", a.ItemID, a.Price)
	case ActionSell:
		return fmt.Sprintf("sell %s for %.0f", a.ItemID, a.Price)
	case ActionRest:
		return "rest"
	default:
		return string(a.Kind)
	}
}
