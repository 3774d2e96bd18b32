package stats

import (
	"github.com/JonMunkholm/procure/internal/frame"
)

// DashboardSummary holds the key figures of the category dashboard.
type DashboardSummary struct {
	Total                 int      `json:"total"`
	DistinctCategories    int      `json:"distinct_categories"`
	DistinctSubcategories int      `json:"distinct_subcategories"`
	ByCategory            []Count  `json:"by_category"`
	BySubcategory         []Count  `json:"by_subcategory"`
	Categories            []string `json:"categories"`
	Subcategories         []string `json:"subcategories"`
}

// Dashboard filters the category view rows to the selected categories and
// subcategories (empty selects all) and summarizes what is left. The option
// lists always cover the unfiltered rows.
func Dashboard(f *frame.Frame, categories, subcategories []string) DashboardSummary {
	cats, subs := toSet(categories), toSet(subcategories)
	filtered := f.Filter(func(i int) bool {
		if len(cats) > 0 && !cats[frame.AsString(f.Value(ColCategory, i))] {
			return false
		}
		if len(subs) > 0 && !subs[frame.AsString(f.Value(ColSubcategory, i))] {
			return false
		}
		return true
	})

	return DashboardSummary{
		Total:                 filtered.Len(),
		DistinctCategories:    len(Distinct(filtered, ColCategory)),
		DistinctSubcategories: len(Distinct(filtered, ColSubcategory)),
		ByCategory:            ValueCounts(filtered, ColCategory),
		BySubcategory:         ValueCounts(filtered, ColSubcategory),
		Categories:            Distinct(f, ColCategory),
		Subcategories:         Distinct(f, ColSubcategory),
	}
}

// Report is the statistics page for filtered purchase orders.
type Report struct {
	Filter         Filter    `json:"filter"`
	Options        Options   `json:"options"`
	Rows           int       `json:"rows"`
	Summary        []Summary `json:"summary"`
	ByStatus       []Count   `json:"by_status"`
	ByPurchaseType []Count   `json:"by_purchase_type"`
	ByMonth        []Count   `json:"by_month"`
}

// Build applies flt to the purchase orders and computes the report.
func Build(f *frame.Frame, flt Filter) Report {
	filtered := flt.Apply(f)
	return Report{
		Filter:         flt,
		Options:        FilterOptions(f),
		Rows:           filtered.Len(),
		Summary:        Describe(filtered),
		ByStatus:       ValueCounts(filtered, ColStatus),
		ByPurchaseType: ValueCounts(filtered, ColPurchaseType),
		ByMonth:        MonthlyCounts(filtered, ColCreationDate),
	}
}

// Analysis is the demand view over the analysis rows.
type Analysis struct {
	Rows     int      `json:"rows"`
	Demand   []Point  `json:"demand"`
	Atypical Atypical `json:"atypical"`
}

// Analyze computes the demand series and flags atypical totals.
func Analyze(f *frame.Frame, q float64) (Analysis, error) {
	_, atypical, err := FlagAtypical(f, ColTotalPrice, q)
	if err != nil {
		return Analysis{}, err
	}
	return Analysis{Rows: f.Len(), Demand: DemandSeries(f), Atypical: atypical}, nil
}
