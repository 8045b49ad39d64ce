// Package production computes credit and points per day for a work unit.
//
// Every function here is pure and total: missing or zero inputs (common for
// history rows recorded before project metadata was captured) yield zero
// output rather than an error.
package production

import (
	"math"
	"time"

	"github.com/hfmnet/wuhistory/internal/workunit"
)

const secondsPerDay = 86400

// Input holds the per-row values the calculator needs.
type Input struct {
	FrameTime     time.Duration
	Frames        int
	BaseCredit    float64
	KFactor       float64
	PreferredDays float64
	MaximumDays   float64
	Downloaded    time.Time
	Completed     time.Time
}

// Output is the computed credit and points per day.
type Output struct {
	Credit float64
	PPD    float64
}

// Calculate evaluates the production formula selected by mode.
//
//   - BonusNone: credit is the base credit, PPD uses download-to-completion time.
//   - BonusDownloadTime: the bonus multiplier and PPD use download-to-completion time.
//   - BonusFrameTime: the bonus multiplier and PPD use frame time × frames.
func Calculate(in Input, mode workunit.BonusMode) Output {
	if in.BaseCredit <= 0 {
		return Output{}
	}

	var unitTime time.Duration
	switch mode {
	case workunit.BonusFrameTime:
		unitTime = in.FrameTime * time.Duration(in.Frames)
	default:
		unitTime = Elapsed(in.Downloaded, in.Completed)
	}

	credit := in.BaseCredit
	if mode == workunit.BonusDownloadTime || mode == workunit.BonusFrameTime {
		credit = in.BaseCredit * BonusMultiplier(in.KFactor, in.PreferredDays, in.MaximumDays, unitTime)
	}

	return Output{
		Credit: round3(credit),
		PPD:    round3(PPD(credit, unitTime)),
	}
}

// Elapsed returns completed - downloaded, or zero when either is unset or the
// difference is not positive.
func Elapsed(downloaded, completed time.Time) time.Duration {
	if downloaded.IsZero() || completed.IsZero() {
		return 0
	}
	d := completed.Sub(downloaded)
	if d <= 0 {
		return 0
	}
	return d
}

// PPD scales credit earned over unitTime to one day. Zero when unitTime is
// not positive.
func PPD(credit float64, unitTime time.Duration) float64 {
	if unitTime <= 0 || credit <= 0 {
		return 0
	}
	return credit * (secondsPerDay / unitTime.Seconds())
}

// BonusMultiplier returns the quick-return bonus factor for a unit that took
// unitTime. Units returned within the preferred deadline earn
// sqrt(maximumDays·kFactor / days), never less than 1. Anything else, or any
// non-positive input, earns 1.
func BonusMultiplier(kFactor, preferredDays, maximumDays float64, unitTime time.Duration) float64 {
	if kFactor <= 0 || preferredDays <= 0 || maximumDays <= 0 || unitTime <= 0 {
		return 1
	}
	days := unitTime.Hours() / 24
	if days > preferredDays {
		return 1
	}
	return math.Max(1, math.Sqrt(maximumDays*kFactor/days))
}

// round3 rounds half away from zero at three decimals.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
