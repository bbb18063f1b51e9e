package db

// Matches reports whether doc satisfies the condition. A field that cannot be
// resolved never matches, whatever the operator.
func (q Query) Matches(doc Document) bool {
	val, err := Resolve(q.Field, doc)
	if err != nil {
		return false
	}

	switch q.Operator {
	case OpEq:
		return equal(val, q.Value)
	case OpNe:
		return !equal(val, q.Value)
	case OpGt:
		return greaterThan(val, q.Value)
	case OpGte:
		return greaterThanOrEqual(val, q.Value)
	case OpLt:
		return lessThan(val, q.Value)
	case OpLte:
		return lessThanOrEqual(val, q.Value)
	default:
		return false
	}
}

// matchesFilters checks if a document matches all filter conditions.
// Every condition is evaluated even after one has failed.
func matchesFilters(doc Document, filters []Query) bool {
	passed := true
	for _, filter := range filters {
		if !filter.Matches(doc) {
			passed = false
		}
	}
	return passed
}
