package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/hfmnet/wuhistory/internal/production"
	"github.com/hfmnet/wuhistory/internal/schema"
	"github.com/hfmnet/wuhistory/internal/workunit"
)

// SQL function arguments are declared as any: the driver then passes the
// stored value as-is (int64, float64, string, []byte or nil) instead of
// rejecting columns whose storage class differs from the Go parameter type.

// toSlotType implements ToSlotType(Core).
func toSlotType(core any) string {
	return string(production.SlotTypeFromCore(asString(core)))
}

// getProduction implements GetProduction(FrameTime, Frames, Credit, KFactor,
// PreferredDays, MaximumDays, DownloadDateTime, CompletionDateTime, mode,
// option). option selects PPD (0) or credit (1). Malformed inputs yield 0.
func getProduction(frameTime, frames, credit, kFactor, preferredDays, maximumDays, downloaded, completed, mode, option any) float64 {
	in := production.Input{
		FrameTime:     time.Duration(asInt64(frameTime)) * time.Second,
		Frames:        int(asInt64(frames)),
		BaseCredit:    asFloat(credit),
		KFactor:       asFloat(kFactor),
		PreferredDays: asFloat(preferredDays),
		MaximumDays:   asFloat(maximumDays),
	}
	in.Downloaded, _ = asTime(downloaded)
	in.Completed, _ = asTime(completed)

	out := production.Calculate(in, workunit.BonusMode(asInt64(mode)))
	if asInt64(option) == schema.ProductionCredit {
		return out.Credit
	}
	return out.PPD
}

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

func asInt64(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case float64:
		return int64(x)
	case string, []byte:
		n, err := strconv.ParseFloat(strings.TrimSpace(asString(x)), 64)
		if err != nil {
			return 0
		}
		return int64(n)
	default:
		return 0
	}
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	case string, []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(asString(x)), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// asTime converts a stored DATETIME value. Text is parsed with the driver's
// timestamp layouts, integers are Unix seconds.
func asTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return x.UTC(), nil
	case int64:
		return time.Unix(x, 0).UTC(), nil
	case float64:
		return time.Unix(int64(x), 0).UTC(), nil
	case string, []byte:
		return parseTimestamp(asString(x))
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "Z")
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range sqlite3.SQLiteTimestampFormats {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// timestamp scans a DATETIME column whether the driver delivers it as
// time.Time or as raw text.
type timestamp struct {
	time.Time
}

func (t *timestamp) Scan(src any) error {
	v, err := asTime(src)
	if err != nil {
		return err
	}
	t.Time = v
	return nil
}
