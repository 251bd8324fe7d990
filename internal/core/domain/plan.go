package domain

// Interval is the billing period of a Plan.
type Interval string

const (
	IntervalYear  Interval = "year"
	IntervalMonth Interval = "month"
)

// Plan is a subscription offer an admin can assign at P.IVA approval.
type Plan struct {
	ID       string   `json:"id" bson:"id"`
	Name     string   `json:"name" bson:"name"`
	Price    float64  `json:"price" bson:"price"`
	Interval Interval `json:"interval" bson:"interval"`
}

var plans = []Plan{
	{ID: "piva-forfettari-annual", Name: "P.IVA Forfettari - Annuale", Price: 368.90, Interval: IntervalYear},
	{ID: "piva-forfettari-monthly", Name: "P.IVA Forfettari - Mensile", Price: 35.00, Interval: IntervalMonth},
}

// Plans returns a copy of the plan catalog.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// PlanByID looks up a plan in the catalog.
func PlanByID(id string) (Plan, bool) {
	for _, p := range plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}
