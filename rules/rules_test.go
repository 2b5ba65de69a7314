package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marchfell/caravan/engine"
	"github.com/marchfell/caravan/game"
)

func testWorld() *game.World {
	return &game.World{
		ID: "w1",
		Settlements: []game.Settlement{
			{
				ID:    "oakvale",
				Name:  "Oakvale",
				Biome: game.BiomeForest,
				Connections: []game.Connection{
					{DestinationID: "stonegate", DestinationName: "Stonegate", Distance: 3},
				},
				Market: game.Market{
					Sells: map[string]float64{"timber": 4, "furs": 12},
					Buys:  map[string]float64{"iron": 20},
				},
			},
			{
				ID:    "stonegate",
				Name:  "Stonegate",
				Biome: game.BiomeMountains,
				Connections: []game.Connection{
					{DestinationID: "oakvale", DestinationName: "Oakvale", Distance: 3},
				},
				Market: game.Market{
					Sells: map[string]float64{"iron": 15},
					Buys:  map[string]float64{"timber": 7, "furs": 18},
				},
			},
		},
	}
}

func testState() *game.TraderState {
	return &game.TraderState{
		TraderID:   "trader-1",
		Location:   "oakvale",
		Gold:       100,
		CartHealth: 80,
		Capacity:   10,
		Inventory:  map[string]int{"iron": 1},
		Visited:    []string{"oakvale"},
		Day:        1,
		World:      testWorld(),
	}
}

func actionKeys(t *testing.T, actions []engine.Action) []string {
	t.Helper()
	keys := make([]string, len(actions))
	for i, a := range actions {
		keys[i] = a.Key()
	}
	return keys
}

func TestLegalActions(t *testing.T) {
	d := TraderDomain{}
	actions, err := d.LegalActions(testState())
	require.NoError(t, err)

	// Moves first, then buys in sorted item order, then sells, then rest.
	assert.Equal(t, []string{
		"move:stonegate",
		"buy:furs",
		"buy:timber",
		"sell:iron",
		"rest",
	}, actionKeys(t, actions))
}

func TestLegalActionsDeterministicOrder(t *testing.T) {
	d := TraderDomain{}
	s := testState()
	first, err := d.LegalActions(s)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := d.LegalActions(s)
		require.NoError(t, err)
		assert.Equal(t, actionKeys(t, first), actionKeys(t, again))
	}
}

func TestLegalActionsBudgetAndCapacity(t *testing.T) {
	d := TraderDomain{}

	s := testState()
	s.Gold = 5 // only timber at 4 is affordable
	actions, err := d.LegalActions(s)
	require.NoError(t, err)
	assert.Contains(t, actionKeys(t, actions), "buy:timber")
	assert.NotContains(t, actionKeys(t, actions), "buy:furs")

	s = testState()
	s.Capacity = 1 // cart already full with one iron
	actions, err = d.LegalActions(s)
	require.NoError(t, err)
	keys := actionKeys(t, actions)
	assert.NotContains(t, keys, "buy:timber")
	assert.NotContains(t, keys, "buy:furs")
	assert.Contains(t, keys, "sell:iron")
}

func TestLegalActionsBrokenCart(t *testing.T) {
	d := TraderDomain{}
	s := testState()
	s.CartHealth = 0
	actions, err := d.LegalActions(s)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestLegalActionsUnknownLocation(t *testing.T) {
	d := TraderDomain{}
	s := testState()
	s.Location = "lost"
	actions, err := d.LegalActions(s)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestApplyMove(t *testing.T) {
	d := TraderDomain{}
	s := testState()

	next, err := d.Apply(s, game.TraderAction{Kind: game.ActionMove, DestinationID: "stonegate"})
	require.NoError(t, err)
	ns := next.(*game.TraderState)

	assert.Equal(t, "stonegate", ns.Location)
	assert.Equal(t, 80.0-(3+3), ns.CartHealth) // base wear 3 + distance 3
	assert.True(t, ns.HasVisited("stonegate"))
	assert.Equal(t, 2, ns.Day)

	// Apply never mutates its input.
	assert.Equal(t, "oakvale", s.Location)
	assert.Equal(t, 80.0, s.CartHealth)
	assert.Equal(t, 1, s.Day)
}

func TestApplyBuySell(t *testing.T) {
	d := TraderDomain{}
	s := testState()

	bought, err := d.Apply(s, game.TraderAction{Kind: game.ActionBuy, ItemID: "timber", Price: 4})
	require.NoError(t, err)
	bs := bought.(*game.TraderState)
	assert.Equal(t, 96.0, bs.Gold)
	assert.Equal(t, 1, bs.Inventory["timber"])

	sold, err := d.Apply(bs, game.TraderAction{Kind: game.ActionSell, ItemID: "iron", Price: 20})
	require.NoError(t, err)
	ss := sold.(*game.TraderState)
	assert.Equal(t, 116.0, ss.Gold)
	assert.NotContains(t, ss.Inventory, "iron")
	assert.Equal(t, 1, ss.Inventory["timber"])
}

func TestApplyRest(t *testing.T) {
	d := TraderDomain{}
	s := testState()

	rested, err := d.Apply(s, game.TraderAction{Kind: game.ActionRest})
	require.NoError(t, err)
	rs := rested.(*game.TraderState)
	assert.Equal(t, 90.0, rs.CartHealth)
	assert.Equal(t, 95.0, rs.Gold)

	rs.CartHealth = 96
	capped, err := d.Apply(rs, game.TraderAction{Kind: game.ActionRest})
	require.NoError(t, err)
	assert.Equal(t, 100.0, capped.(*game.TraderState).CartHealth)
}

func TestApplyRejectsInvalidActions(t *testing.T) {
	d := TraderDomain{}
	s := testState()

	_, err := d.Apply(s, game.TraderAction{Kind: game.ActionMove, DestinationID: "nowhere"})
	assert.Error(t, err)

	_, err = d.Apply(s, game.TraderAction{Kind: game.ActionBuy, ItemID: "furs", Price: 9999})
	assert.Error(t, err)

	_, err = d.Apply(s, game.TraderAction{Kind: game.ActionSell, ItemID: "timber", Price: 7})
	assert.Error(t, err)

	_, err = d.Apply(s, game.TraderAction{Kind: "dance"})
	assert.Error(t, err)

	_, err = d.Apply("not a state", game.TraderAction{Kind: game.ActionRest})
	assert.Error(t, err)
}

func TestIsTerminal(t *testing.T) {
	d := TraderDomain{}

	s := testState()
	assert.False(t, d.IsTerminal(s))

	broken := testState()
	broken.CartHealth = 0
	assert.True(t, d.IsTerminal(broken))

	destitute := testState()
	destitute.Inventory = nil
	destitute.Gold = 9
	assert.True(t, d.IsTerminal(destitute))

	// Wares on the cart keep a poor trader in the game.
	poorButStocked := testState()
	poorButStocked.Gold = 0
	assert.False(t, d.IsTerminal(poorButStocked))

	assert.True(t, d.IsTerminal(nil))
	assert.True(t, d.IsTerminal("garbage"))
}

func TestReward(t *testing.T) {
	d := TraderDomain{}
	s := testState()

	// gold 100 + iron valued at local buy price 20 * 0.8 discount,
	// minus (100-80) * 0.5 cart damage penalty.
	reward, err := d.Reward(s)
	require.NoError(t, err)
	assert.InDelta(t, 100+20*0.8-10, reward, 1e-9)

	// Items the local market does not buy fall back to a flat value.
	s.Inventory = map[string]int{"relic": 2}
	reward, err = d.Reward(s)
	require.NoError(t, err)
	assert.InDelta(t, 100+2*10*0.8-10, reward, 1e-9)
}

func TestValidateState(t *testing.T) {
	d := TraderDomain{}
	require.NoError(t, d.ValidateState(testState()))

	noID := testState()
	noID.TraderID = ""
	assert.Error(t, d.ValidateState(noID))

	noWorld := testState()
	noWorld.World = nil
	assert.Error(t, d.ValidateState(noWorld))

	noLocation := testState()
	noLocation.Location = ""
	assert.Error(t, d.ValidateState(noLocation))

	assert.Error(t, d.ValidateState(42))
}

func TestCodecRoundTrip(t *testing.T) {
	d := TraderDomain{}
	s := testState()

	buf, err := d.EncodeState(s)
	require.NoError(t, err)
	decoded, err := d.DecodeState(buf)
	require.NoError(t, err)
	assert.True(t, s.Equal(decoded.(*game.TraderState)))
}

func TestFullSearchOverTraderDomain(t *testing.T) {
	// An end-to-end search over a tiny world: iron bought cheap in the
	// mountains sells high in the forest, so the search should not pick
	// an immediately wasteful action like selling at a loss.
	eng, err := engine.New(TraderDomain{}, nil, engine.Config{
		ExplorationWeight:    1.0,
		Workers:              2,
		SimulationsPerWorker: 200,
		Seed:                 5,
	})
	require.NoError(t, err)

	dec, err := eng.ParallelSearch(context.Background(), testState())
	require.NoError(t, err)
	require.False(t, dec.NoAction())
	assert.Equal(t, 400, dec.Stats.SimulationsEvaluated)
	assert.NotEmpty(t, dec.Stats.ActionStats)
}
