package paper

import "daybot/internal/types"

const (
	ExitStopLoss = "stop_loss"
	ExitTarget   = "target"
)

// StopHit reports whether price breaches the position's stop: at or below it
// for a long, at or above it for a short.
func StopHit(pos types.Position, price float64) bool {
	if pos.StopLoss <= 0 || price <= 0 {
		return false
	}
	switch {
	case pos.Long():
		return price <= pos.StopLoss
	case pos.Short():
		return price >= pos.StopLoss
	}
	return false
}

// TargetHit reports whether price reached the position's target.
func TargetHit(pos types.Position, price float64) bool {
	if pos.Target <= 0 || price <= 0 {
		return false
	}
	switch {
	case pos.Long():
		return price >= pos.Target
	case pos.Short():
		return price <= pos.Target
	}
	return false
}

// exitReason returns the first trigger hit, stop before target.
func exitReason(pos types.Position, price float64) (string, bool) {
	if StopHit(pos, price) {
		return ExitStopLoss, true
	}
	if TargetHit(pos, price) {
		return ExitTarget, true
	}
	return "", false
}
