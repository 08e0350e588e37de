package ensemble

import (
	"fmt"
	"time"

	"daybot/internal/types"
)

// Strategy is a long-only voter in the confluence gate. at is already in the
// trading session's location.
type Strategy interface {
	Name() string
	Regimes() []Regime
	Analyze(snap types.MarketSnapshot, at time.Time) Signal
}

// Default returns the nine built-in voters in registration order.
func Default() []Strategy {
	return []Strategy{
		momentum{},
		scalping{},
		vwapPullback{},
		breakout{},
		meanReversion{},
		rsiReversal{},
		maCrossoverTrend{},
		institutionalFlow{},
		stopHuntProtection{},
	}
}

func clock(h, m int) int { return h*60 + m }

func minuteOfDay(t time.Time) int { return clock(t.Hour(), t.Minute()) }

type momentum struct{}

func (momentum) Name() string      { return "Momentum" }
func (momentum) Regimes() []Regime { return []Regime{RegimeTrending, RegimeVolatile} }

func (s momentum) Analyze(snap types.MarketSnapshot, _ time.Time) Signal {
	ltp := snap.LastPrice
	if snap.VWAP > 0 && ltp > snap.VWAP && snap.VolumeRatio > 1.2 {
		sig := buy(s.Name(), ltp, ltp*0.98, ltp*1.04, 85, "Momentum Positive (Price > VWAP)", "High Vol", "Price > VWAP")
		return applyRiskFilter(sig, ltp)
	}
	why := "Price < VWAP"
	if snap.VolumeRatio <= 1.2 {
		why = "Vol Low"
	}
	return wait(s.Name(), "Momentum Weak", why)
}

type scalping struct{}

func (scalping) Name() string      { return "Scalping" }
func (scalping) Regimes() []Regime { return allRegimes }

func (s scalping) Analyze(snap types.MarketSnapshot, _ time.Time) Signal {
	ltp := snap.LastPrice
	if snap.EMA9 > 0 && snap.EMA21 > 0 && snap.EMA9 > snap.EMA21 {
		sig := buy(s.Name(), ltp, ltp*0.995, ltp*1.01, 90, "Scalp Buy (EMA9 > EMA21)", "Trend Up", "Fast EMA Leading")
		return applyRiskFilter(sig, ltp)
	}
	return wait(s.Name(), "No Cross")
}

type vwapPullback struct{}

func (vwapPullback) Name() string      { return "VWAPPullback" }
func (vwapPullback) Regimes() []Regime { return []Regime{RegimeTrending} }

func (s vwapPullback) Analyze(snap types.MarketSnapshot, _ time.Time) Signal {
	ltp := snap.LastPrice
	if snap.VWAP <= 0 {
		return wait(s.Name(), "VWAP unavailable")
	}
	if dist := (ltp - snap.VWAP) / snap.VWAP; dist > 0 && dist < 0.005 {
		sig := buy(s.Name(), ltp, snap.VWAP*0.99, ltp*1.03, 80, "VWAP Support Bounce", "Near VWAP", "Uptrend")
		return applyRiskFilter(sig, ltp)
	}
	return wait(s.Name(), "Too far from VWAP")
}

type breakout struct{}

func (breakout) Name() string      { return "Breakout" }
func (breakout) Regimes() []Regime { return []Regime{RegimeTrending, RegimeVolatile} }

func (s breakout) Analyze(snap types.MarketSnapshot, _ time.Time) Signal {
	ltp := snap.LastPrice
	res := snap.ResistanceLevel
	if res > 0 && ltp > res {
		sig := buy(s.Name(), ltp, res*0.98, ltp*1.05, 75, "Range Breakout", "Above Res", "Vol Exp")
		return applyRiskFilter(sig, ltp)
	}
	return wait(s.Name(), "Below Res")
}

type meanReversion struct{}

func (meanReversion) Name() string      { return "MeanReversion" }
func (meanReversion) Regimes() []Regime { return []Regime{RegimeRanging} }

func (s meanReversion) Analyze(snap types.MarketSnapshot, _ time.Time) Signal {
	ltp := snap.LastPrice
	if snap.BBLower > 0 && ltp < snap.BBLower {
		sig := buy(s.Name(), ltp, ltp*0.98, ltp*1.03, 70, "Oversold BB Reversion", "Price < LowBB")
		return applyRiskFilter(sig, ltp)
	}
	return wait(s.Name(), "Inside Bands")
}

type rsiReversal struct{}

func (rsiReversal) Name() string      { return "RSIReversal" }
func (rsiReversal) Regimes() []Regime { return []Regime{RegimeRanging, RegimeVolatile} }

func (s rsiReversal) Analyze(snap types.MarketSnapshot, _ time.Time) Signal {
	ltp := snap.LastPrice
	if snap.RSI14 > 0 && snap.RSI14 < 35 {
		sig := buy(s.Name(), ltp, ltp*0.98, ltp*1.04, 65, "RSI Oversold Bounce", "RSI < 35")
		return applyRiskFilter(sig, ltp)
	}
	return wait(s.Name(), "RSI Neutral")
}

type maCrossoverTrend struct{}

func (maCrossoverTrend) Name() string      { return "MACrossoverTrend" }
func (maCrossoverTrend) Regimes() []Regime { return []Regime{RegimeTrending} }

func (s maCrossoverTrend) Analyze(snap types.MarketSnapshot, _ time.Time) Signal {
	ltp := snap.LastPrice
	if snap.EMA9 > 0 && snap.EMA21 > 0 && snap.EMA9 > snap.EMA21 {
		sig := buy(s.Name(), ltp, ltp*0.96, ltp*1.10, 88, "Trend Following", "Golden Cross")
		return applyRiskFilter(sig, ltp)
	}
	return wait(s.Name(), "No Trend")
}

// institutionalFlow looks for accumulation inside the late-morning and
// post-lunch windows.
type institutionalFlow struct{}

func (institutionalFlow) Name() string      { return "InstitutionalFlow" }
func (institutionalFlow) Regimes() []Regime { return []Regime{RegimeTrending, RegimeVolatile} }

func institutionalWindow(at time.Time) (string, bool) {
	m := minuteOfDay(at)
	switch {
	case m >= clock(10, 30) && m <= clock(11, 30):
		return "Late Morning Accumulation", true
	case m >= clock(13, 30) && m <= clock(14, 30):
		return "Post-Lunch Continuation", true
	}
	return "", false
}

func (s institutionalFlow) Analyze(snap types.MarketSnapshot, at time.Time) Signal {
	ltp := snap.LastPrice
	window, inWindow := institutionalWindow(at)
	aboveVWAP := snap.VWAP > 0 && ltp > snap.VWAP
	surge := snap.VolumeRatio > 1.5
	stacked := snap.EMA9 > 0 && snap.EMA21 > 0 && ltp > snap.EMA9 && snap.EMA9 > snap.EMA21

	if inWindow && aboveVWAP && surge && stacked {
		sig := buy(s.Name(), ltp, ltp*0.965, ltp*1.08, 90,
			fmt.Sprintf("Institutional Accumulation Detected (%s)", window),
			fmt.Sprintf("Vol: %.1fx avg", snap.VolumeRatio), "Price > VWAP", "EMA Stack Aligned", window)
		sig.RiskNotes = []string{"Wider stop (3.5%) for stop-hunt protection", "Target: 8% (trending move)"}
		return applyRiskFilter(sig, ltp)
	}

	var reasons []string
	if !inWindow {
		reasons = append(reasons, "Outside institutional window")
	}
	if !aboveVWAP {
		reasons = append(reasons, "Price < VWAP")
	}
	if !surge {
		reasons = append(reasons, fmt.Sprintf("Low volume (%.1fx)", snap.VolumeRatio))
	}
	if !stacked {
		reasons = append(reasons, "EMA misalignment")
	}
	return wait(s.Name(), "Waiting for institutional confirmation", reasons...)
}

// stopHuntProtection only buys confirmed opening-range breakouts outside the
// opening half hour and the late-day window.
type stopHuntProtection struct{}

func (stopHuntProtection) Name() string      { return "StopHuntProtection" }
func (stopHuntProtection) Regimes() []Regime { return []Regime{RegimeTrending, RegimeVolatile} }

func (s stopHuntProtection) Analyze(snap types.MarketSnapshot, at time.Time) Signal {
	m := minuteOfDay(at)
	if m < clock(9, 30) {
		return wait(s.Name(), "Avoiding manipulation zone (9:15-9:30 AM)", "First 30 min - high stop-hunt risk")
	}
	if m >= clock(14, 30) {
		return wait(s.Name(), "Avoiding late-day trap (after 2:30 PM)", "End-of-day manipulation risk")
	}

	ltp := snap.LastPrice
	res := snap.OpeningRangeHigh
	confirmed := res > 0 && ltp > res*1.002
	sustained := snap.VolumeRatio > 1.8
	aboveVWAP := snap.VWAP > 0 && ltp > snap.VWAP

	if confirmed && sustained && aboveVWAP {
		sig := buy(s.Name(), ltp, ltp*0.96, ltp*1.06, 85, "Breakout Confirmed with Protection",
			fmt.Sprintf("Breakout: %.1f%% above resistance", (ltp/res-1)*100),
			fmt.Sprintf("Vol: %.1fx (sustained)", snap.VolumeRatio),
			"Safe time window")
		sig.RiskNotes = []string{"Wide stop (4%) prevents stop-hunt", "Breakout confirmation reduces false signal risk"}
		return applyRiskFilter(sig, ltp)
	}

	var reasons []string
	if !confirmed {
		reasons = append(reasons, fmt.Sprintf("Waiting for breakout confirmation (need %.2f)", res*1.002))
	}
	if !sustained {
		reasons = append(reasons, fmt.Sprintf("Volume not sustained (%.1fx < 1.8x)", snap.VolumeRatio))
	}
	if !aboveVWAP {
		reasons = append(reasons, "Price below VWAP")
	}
	return wait(s.Name(), "Waiting for confirmed breakout", reasons...)
}
