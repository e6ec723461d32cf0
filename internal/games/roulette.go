package games

import (
	"fmt"
	"math"

	"github.com/MJE43/stake-roulette-sim/internal/engine"
)

// PocketCount is the number of pockets on a single-zero wheel.
const PocketCount = 37

// Color of a pocket.
type Color string

const (
	Red   Color = "red"
	Black Color = "black"
	Green Color = "green"
)

// Parity of a pocket. Zero has none.
type Parity string

const (
	Odd      Parity = "odd"
	Even     Parity = "even"
	NoParity Parity = "none"
)

// Pocket is one entry of the wheel table.
type Pocket struct {
	Number int    `json:"number"`
	Color  Color  `json:"color"`
	Parity Parity `json:"parity"`
}

// wheel is the European single-zero layout indexed by pocket number.
var wheel = [PocketCount]Pocket{
	{0, Green, NoParity},
	{1, Red, Odd},
	{2, Black, Even},
	{3, Red, Odd},
	{4, Black, Even},
	{5, Red, Odd},
	{6, Black, Even},
	{7, Red, Odd},
	{8, Black, Even},
	{9, Red, Odd},
	{10, Black, Even},
	{11, Black, Odd},
	{12, Red, Even},
	{13, Black, Odd},
	{14, Red, Even},
	{15, Black, Odd},
	{16, Red, Even},
	{17, Black, Odd},
	{18, Red, Even},
	{19, Red, Odd},
	{20, Black, Even},
	{21, Red, Odd},
	{22, Black, Even},
	{23, Red, Odd},
	{24, Black, Even},
	{25, Red, Odd},
	{26, Black, Even},
	{27, Red, Odd},
	{28, Black, Even},
	{29, Black, Odd},
	{30, Red, Even},
	{31, Black, Odd},
	{32, Red, Even},
	{33, Black, Odd},
	{34, Red, Even},
	{35, Black, Odd},
	{36, Red, Even},
}

// Wheel returns a copy of the wheel table.
func Wheel() [PocketCount]Pocket {
	return wheel
}

// PocketAt looks up a pocket by number. Out of range numbers panic.
func PocketAt(n int) Pocket {
	return wheel[n]
}

// SpinOutcome is the resolved result of one spin.
type SpinOutcome struct {
	Pocket int     `json:"pocket"`
	Color  Color   `json:"color"`
	Parity Parity  `json:"parity"`
	Float  float64 `json:"float"`
}

// PocketFromFloat maps a float in [0, 1) onto a pocket number.
func PocketFromFloat(f float64) int {
	pocket := int(math.Floor(f * PocketCount))
	if pocket < 0 {
		return 0
	}
	if pocket > PocketCount-1 {
		return PocketCount - 1
	}
	return pocket
}

// Spin resolves the pocket for a seed pair and nonce, reading four bytes
// of the keyed stream from cursor.
func Spin(seeds Seeds, nonce, cursor uint64) SpinOutcome {
	bg := engine.NewByteGenerator(seeds.Server, seeds.Client, nonce, cursor)
	return outcomeFromFloat(bg.NextFloat())
}

func outcomeFromFloat(f float64) SpinOutcome {
	p := wheel[PocketFromFloat(f)]
	return SpinOutcome{
		Pocket: p.Number,
		Color:  p.Color,
		Parity: p.Parity,
		Float:  f,
	}
}

// RouletteGame implements European Roulette (0-36)
type RouletteGame struct{}

// Spec returns metadata about the Roulette game
func (g *RouletteGame) Spec() GameSpec {
	return GameSpec{
		ID:          "roulette",
		Name:        "Roulette",
		MetricLabel: "pocket",
	}
}

// FloatCount returns the number of floats required
func (g *RouletteGame) FloatCount() int {
	return 1
}

// Evaluate determines which pocket the ball lands in (0-36)
func (g *RouletteGame) Evaluate(seeds Seeds, nonce, cursor uint64) GameResult {
	result, _ := g.EvaluateWithFloats(engine.Floats(seeds.Server, seeds.Client, nonce, cursor, 1))
	return result
}

// EvaluateWithFloats determines which pocket the ball lands in using pre-computed floats
func (g *RouletteGame) EvaluateWithFloats(floats []float64) (GameResult, error) {
	if len(floats) < 1 {
		return GameResult{}, fmt.Errorf("roulette requires at least 1 float, got %d", len(floats))
	}

	out := outcomeFromFloat(floats[0])
	details := map[string]any{
		"raw_float": out.Float,
		"pocket":    out.Pocket,
		"color":     string(out.Color),
		"parity":    string(out.Parity),
		"low":       out.Pocket >= 1 && out.Pocket <= 18,
		"high":      out.Pocket >= 19,
		"dozen":     dozen(out.Pocket),
		"column":    column(out.Pocket),
	}

	return GameResult{
		Metric:      float64(out.Pocket),
		MetricLabel: "pocket",
		Details:     details,
	}, nil
}

// dozen is 1..3, or 0 for the zero pocket.
func dozen(pocket int) int {
	if pocket == 0 {
		return 0
	}
	return (pocket-1)/12 + 1
}

func column(pocket int) int {
	if pocket == 0 {
		return 0
	}
	return (pocket-1)%3 + 1
}
