package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// PlanDetails is the purchase descriptor carried as a JSON string in
// order notes under "planDetails": {"plan": ..., "expiry": <days>, "form": ...}.
type PlanDetails struct {
	Plan       string
	ExpiryDays int
	Form       string
}

// PremiumDefaults fill the gaps of a partially specified PlanDetails.
type PremiumDefaults struct {
	PlanTitle  string
	Form       string
	ExpiryDays int
}

// ParsePlanDetails extracts notes.planDetails. It never fails loudly: an
// absent, empty or undecodable value reports ok=false. expiry may be a JSON
// number or a numeric string.
func ParsePlanDetails(notes map[string]any) (PlanDetails, bool) {
	raw, present := notes["planDetails"]
	if !present || raw == nil {
		return PlanDetails{}, false
	}

	var fields map[string]any
	switch v := raw.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return PlanDetails{}, false
		}
		if err := json.Unmarshal([]byte(v), &fields); err != nil || fields == nil {
			return PlanDetails{}, false
		}
	case map[string]any:
		fields = v
	default:
		return PlanDetails{}, false
	}

	d := PlanDetails{}
	if s, ok := fields["plan"].(string); ok {
		d.Plan = strings.TrimSpace(s)
	}
	if s, ok := fields["form"].(string); ok {
		d.Form = strings.TrimSpace(s)
	}
	d.ExpiryDays = expiryDays(fields["expiry"])
	return d, true
}

func expiryDays(v any) int {
	switch n := v.(type) {
	case float64:
		if n > 0 && n < math.MaxInt32 {
			return int(n)
		}
	case int:
		if n > 0 {
			return n
		}
	case int64:
		if n > 0 && n < math.MaxInt32 {
			return int(n)
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil && f > 0 && f < math.MaxInt32 {
			return int(f)
		}
	}
	return 0
}

// Snapshot freezes the plan terms at purchase time.
func (d PlanDetails) Snapshot(now time.Time, def PremiumDefaults) PremiumPlan {
	title := d.Plan
	if title == "" {
		title = def.PlanTitle
	}
	form := d.Form
	if form == "" {
		form = def.Form
	}
	days := d.ExpiryDays
	if days <= 0 {
		days = def.ExpiryDays
	}
	return PremiumPlan{
		PlanTitle:     title,
		PurchasedDate: now,
		ExpiryDate:    now.Add(time.Duration(days) * 24 * time.Hour),
		Form:          form,
	}
}
