package tender

import "github.com/Additional-Code/buildmart/internal/entity"

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Filter is a conjunctive predicate over tenders. Empty fields match everything.
type Filter struct {
	Statuses  []entity.TenderStatus
	ClientIDs []string
	Category  string
	Location  string
	MinBudget *float64
	MaxBudget *float64
	Limit     int
	Offset    int
}

// Page returns the normalised limit and offset.
func (f Filter) Page() (int, int) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Match evaluates the filter in memory with the same semantics as the SQL query.
func (f Filter) Match(t *entity.Tender) bool {
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, t.Status) {
		return false
	}
	if len(f.ClientIDs) > 0 && !containsString(f.ClientIDs, t.ClientID) {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.Location != "" && t.Location != f.Location {
		return false
	}
	if f.MaxBudget != nil && t.BudgetMin != nil && *t.BudgetMin > *f.MaxBudget {
		return false
	}
	if f.MinBudget != nil && t.BudgetMax != nil && *t.BudgetMax < *f.MinBudget {
		return false
	}
	return true
}

func containsStatus(list []entity.TenderStatus, s entity.TenderStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
