package schema

import "strings"

// Order is a hand-maintained parent-before-child table order. Tables it names come
// first, in its order; every other table follows, sorted by foreign-key dependencies.
type Order []string

// DefaultOrder covers the tables of the document-signing schema.
var DefaultOrder = Order{
	"users",
	"owners",
	"documents",
	"document_signers",
	"signatures",
	"pdf_templates",
	"pdf_config",
	"theme_config",
	"visual_config",
	"activity_logs",
}

// Apply returns tables in creation order. The input slice is not modified.
func (o Order) Apply(tables []*Table) []*Table {
	byName := make(map[string]*Table, len(tables))
	for _, t := range tables {
		byName[strings.ToLower(t.Name)] = t
	}

	sorted := make([]*Table, 0, len(tables))
	placed := make(map[string]bool)
	for _, name := range o {
		key := strings.ToLower(name)
		if t, ok := byName[key]; ok && !placed[key] {
			sorted = append(sorted, t)
			placed[key] = true
		}
	}

	var rest []*Table
	for _, t := range tables {
		if !placed[strings.ToLower(t.Name)] {
			rest = append(rest, t)
		}
	}
	return append(sorted, sortTables(rest, placed)...)
}

// ApplyNames orders bare table names using deps for the tables outside the fixed list.
func (o Order) ApplyNames(names []string, deps map[string][]string) []string {
	tables := make([]*Table, len(names))
	for i, n := range names {
		tables[i] = &Table{Name: n, Dependencies: deps[n]}
	}
	ordered := o.Apply(tables)
	out := make([]string, len(ordered))
	for i, t := range ordered {
		out[i] = t.Name
	}
	return out
}

// Reverse returns names in reverse order, for drops and truncates.
func Reverse(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[len(names)-1-i] = n
	}
	return out
}

// sortTables sorts tables by dependency order, breaking cycles with a scoring
// system. Names in done, and dependencies on tables outside the input, count as
// already satisfied.
func sortTables(tables []*Table, done map[string]bool) []*Table {
	known := make(map[string]*Table, len(tables))
	for _, t := range tables {
		known[strings.ToLower(t.Name)] = t
	}
	processed := make(map[string]bool)
	satisfied := func(dep string) bool {
		key := strings.ToLower(dep)
		if _, ok := known[key]; !ok {
			return true
		}
		return processed[key] || done[key]
	}

	var sorted []*Table
	for len(sorted) < len(tables) {
		added := false

		// Pass 1: Add tables whose dependencies are fully satisfied
		for _, t := range tables {
			if processed[strings.ToLower(t.Name)] {
				continue
			}

			allDepsProcessed := true
			for _, depName := range t.Dependencies {
				if !satisfied(depName) {
					allDepsProcessed = false
					break
				}
			}

			if allDepsProcessed {
				sorted = append(sorted, t)
				processed[strings.ToLower(t.Name)] = true
				added = true
			}
		}

		// Pass 2: If no table added, we have a cycle. Break it using heuristic score.
		if !added {
			var bestTable *Table
			bestScore := -999999

			for _, t := range tables {
				if processed[strings.ToLower(t.Name)] {
					continue
				}

				// Penalty: unprocessed FKs. Bonus: taking part in a two-table cycle.
				score := 0
				for _, dep := range t.Dependencies {
					if !satisfied(dep) {
						score -= 100
					}
				}

				isCircular := false
				for _, depName := range t.Dependencies {
					if satisfied(depName) {
						continue
					}
					cand := known[strings.ToLower(depName)]
					for _, candDep := range cand.Dependencies {
						if strings.EqualFold(candDep, t.Name) {
							isCircular = true
							break
						}
					}
					if isCircular {
						break
					}
				}
				if isCircular {
					score += 500
				}

				// Tie-breaker: Name (Deterministic)
				if score > bestScore || (score == bestScore && (bestTable == nil || t.Name > bestTable.Name)) {
					bestScore = score
					bestTable = t
				}
			}

			if bestTable == nil {
				break
			}
			sorted = append(sorted, bestTable)
			processed[strings.ToLower(bestTable.Name)] = true
		}
	}

	return sorted
}
