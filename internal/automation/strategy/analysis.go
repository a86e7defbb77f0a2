package strategy

import "math"

type Trend string

const (
	TrendBullish         Trend = "bullish"
	TrendSlightlyBullish Trend = "slightly_bullish"
	TrendNeutral         Trend = "neutral"
	TrendSlightlyBearish Trend = "slightly_bearish"
	TrendBearish         Trend = "bearish"
)

type Level string

const (
	LevelHigh   Level = "high"
	LevelNormal Level = "normal"
	LevelLow    Level = "low"
)

type Risk string

const (
	RiskHigh       Risk = "high"
	RiskMediumHigh Risk = "medium-high"
	RiskMedium     Risk = "medium"
	RiskLow        Risk = "low"
)

// Analysis classifies the market of one token from its 24h price change and volume.
type Analysis struct {
	PriceChange    float64 `json:"price_change"`
	Volume         float64 `json:"volume"`
	Trend          Trend   `json:"trend"`
	Volatility     Level   `json:"volatility"`
	VolumeStrength Level   `json:"volume_strength"`
	RiskLevel      Risk    `json:"risk_level"`
}

func Analyze(priceChange, volume float64) Analysis {
	a := Analysis{
		PriceChange: priceChange,
		Volume:      volume,
	}

	switch {
	case priceChange > 5:
		a.Trend = TrendBullish
	case priceChange > 2:
		a.Trend = TrendSlightlyBullish
	case priceChange < -5:
		a.Trend = TrendBearish
	case priceChange < -2:
		a.Trend = TrendSlightlyBearish
	default:
		a.Trend = TrendNeutral
	}

	switch abs := math.Abs(priceChange); {
	case abs > 10:
		a.Volatility = LevelHigh
	case abs < 2:
		a.Volatility = LevelLow
	default:
		a.Volatility = LevelNormal
	}

	switch {
	case volume > 10_000_000:
		a.VolumeStrength = LevelHigh
	case volume < 1_000_000:
		a.VolumeStrength = LevelLow
	default:
		a.VolumeStrength = LevelNormal
	}

	switch {
	case a.Volatility == LevelHigh:
		a.RiskLevel = RiskHigh
	case a.Trend == TrendBearish && a.Volatility == LevelNormal:
		a.RiskLevel = RiskMediumHigh
	case a.Trend == TrendBullish && a.Volatility == LevelLow:
		a.RiskLevel = RiskLow
	default:
		a.RiskLevel = RiskMedium
	}
	return a
}

// Indicator returns the named classification as a string; ok is false for unknown names.
func (a Analysis) Indicator(name string) (string, bool) {
	switch name {
	case "trend":
		return string(a.Trend), true
	case "volatility":
		return string(a.Volatility), true
	case "volume", "volume_strength":
		return string(a.VolumeStrength), true
	case "risk", "risk_level":
		return string(a.RiskLevel), true
	}
	return "", false
}
