package trips

import (
	"sort"
	"strings"

	"github.com/LoadBay/HandoverDesk/internal/ingest"
)

type VehicleType string

const (
	VehicleFourWheel  VehicleType = "4W"
	VehicleThreeWheel VehicleType = "3W"
	VehicleTwoWheel   VehicleType = "2W"
	VehicleUnknown    VehicleType = "unknown"
)

// vehicleRank fixes the listing precedence relied on by downstream
// export/copy actions: 4-wheel first, unknown last.
var vehicleRank = map[VehicleType]int{
	VehicleFourWheel:  0,
	VehicleThreeWheel: 1,
	VehicleTwoWheel:   2,
	VehicleUnknown:    3,
}

// RosterEntry is the authoritative vehicle-type source for a courier.
type RosterEntry struct {
	Name        string
	VehicleType VehicleType
}

type CourierSummary struct {
	Name        string      `json:"name"`
	VehicleType VehicleType `json:"vehicleType"`
	InRoster    bool        `json:"inRoster"`
	Trips       int         `json:"trips"`
	Total       int         `json:"total"`
	Successful  int         `json:"successful"`
	Failed      int         `json:"failed"`
	SuccessRate float64     `json:"successRate"`
}

type DaySummary struct {
	Date        string              `json:"date"`
	Trips       int                 `json:"trips"`
	Total       int                 `json:"total"`
	Successful  int                 `json:"successful"`
	Failed      int                 `json:"failed"`
	SuccessRate float64             `json:"successRate"`
	ByVehicle   map[VehicleType]int `json:"byVehicle"`
}

type Summary struct {
	Couriers        []CourierSummary `json:"couriers"`
	Days            []DaySummary     `json:"days"`
	MissingCouriers []string         `json:"missingCouriers"`
}

// BuildSummary rolls parsed trip records up per courier and per day.
// Pure: same input, same output, nothing persisted.
func BuildSummary(records []ingest.TripRecord, roster []RosterEntry) Summary {
	byName := make(map[string]RosterEntry, len(roster))
	for _, r := range roster {
		byName[strings.ToLower(strings.TrimSpace(r.Name))] = r
	}

	couriers := map[string]*CourierSummary{}
	days := map[string]*DaySummary{}
	missing := map[string]struct{}{}

	for _, rec := range records {
		name := strings.TrimSpace(rec.Courier)
		if name == "" {
			continue
		}

		entry, inRoster := byName[strings.ToLower(name)]
		vt := classifyVehicle(name, entry, inRoster)
		if !inRoster {
			missing[name] = struct{}{}
		}

		key := strings.ToLower(name)
		cs, ok := couriers[key]
		if !ok {
			cs = &CourierSummary{Name: name, VehicleType: vt, InRoster: inRoster}
			couriers[key] = cs
		}
		cs.Trips++
		cs.Total += rec.Total
		cs.Successful += rec.Successful
		cs.Failed += rec.Failed

		if rec.Date != nil {
			dk := rec.Date.Format("2006-01-02")
			ds, ok := days[dk]
			if !ok {
				ds = &DaySummary{Date: dk, ByVehicle: map[VehicleType]int{}}
				days[dk] = ds
			}
			ds.Trips++
			ds.Total += rec.Total
			ds.Successful += rec.Successful
			ds.Failed += rec.Failed
			ds.ByVehicle[vt] += rec.Total
		}
	}

	out := Summary{
		Couriers:        make([]CourierSummary, 0, len(couriers)),
		Days:            make([]DaySummary, 0, len(days)),
		MissingCouriers: make([]string, 0, len(missing)),
	}
	for _, cs := range couriers {
		cs.SuccessRate = successRate(cs.Successful, cs.Failed)
		out.Couriers = append(out.Couriers, *cs)
	}
	for _, ds := range days {
		ds.SuccessRate = successRate(ds.Successful, ds.Failed)
		out.Days = append(out.Days, *ds)
	}
	for name := range missing {
		out.MissingCouriers = append(out.MissingCouriers, name)
	}

	sort.Slice(out.Couriers, func(i, j int) bool {
		a, b := out.Couriers[i], out.Couriers[j]
		if vehicleRank[a.VehicleType] != vehicleRank[b.VehicleType] {
			return vehicleRank[a.VehicleType] < vehicleRank[b.VehicleType]
		}
		return a.Name < b.Name
	})
	sort.Slice(out.Days, func(i, j int) bool { return out.Days[i].Date < out.Days[j].Date })
	sort.Strings(out.MissingCouriers)

	return out
}

// classifyVehicle prefers the roster; the keyword fallback is a
// best-effort guess and nothing more.
func classifyVehicle(name string, entry RosterEntry, inRoster bool) VehicleType {
	if inRoster {
		if entry.VehicleType == "" {
			return VehicleUnknown
		}
		return entry.VehicleType
	}
	low := strings.ToLower(name)
	switch {
	case containsAny(low, "van", "truck", "car"):
		return VehicleFourWheel
	case containsAny(low, "bike", "motor", "scooter"):
		return VehicleTwoWheel
	default:
		return VehicleTwoWheel
	}
}

// successRate guards the zero denominator: no outcomes means 0, never NaN.
func successRate(successful, failed int) float64 {
	if successful+failed == 0 {
		return 0
	}
	return float64(successful) / float64(successful+failed)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
