package usecase

import "github.com/pricewatch/crawler/internal/domain"

// ResultSet is the working per-store result table of one session.
// Only declared stores can hold a result and each store holds at most one;
// a merge replaces the previous result for that store. Not safe for
// concurrent use.
type ResultSet struct {
	order   []string
	results map[string]domain.StoreResult
}

// NewResultSet declares stores and creates a pending slot for each of them
func NewResultSet(stores []domain.StoreDescriptor) *ResultSet {
	rs := &ResultSet{results: make(map[string]domain.StoreResult, len(stores))}
	for _, store := range stores {
		if store.Name == "" {
			continue
		}
		if _, dup := rs.results[store.Name]; dup {
			continue
		}
		rs.order = append(rs.order, store.Name)
		rs.results[store.Name] = domain.PendingResult(store.Name)
	}
	return rs
}

// Merge replaces the result for r.StoreName. Results for undeclared
// stores are rejected.
func (rs *ResultSet) Merge(r domain.StoreResult) bool {
	if _, ok := rs.results[r.StoreName]; !ok {
		return false
	}
	rs.results[r.StoreName] = r
	return true
}

// Get returns the current result for a store
func (rs *ResultSet) Get(storeName string) (domain.StoreResult, bool) {
	r, ok := rs.results[storeName]
	return r, ok
}

// List returns the results in store declaration order
func (rs *ResultSet) List() []domain.StoreResult {
	out := make([]domain.StoreResult, 0, len(rs.order))
	for _, name := range rs.order {
		out = append(out, rs.results[name])
	}
	return out
}

// Len returns the number of declared stores
func (rs *ResultSet) Len() int {
	return len(rs.order)
}

// Pending counts stores that have no terminal result yet
func (rs *ResultSet) Pending() int {
	n := 0
	for _, r := range rs.results {
		if r.Status() == domain.ResultPending {
			n++
		}
	}
	return n
}
