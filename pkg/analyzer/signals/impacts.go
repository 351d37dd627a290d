package signals

import "github.com/panbanda/tsqlgraph/pkg/collate"

const (
	catDynamicSQL = "dynamic_sql"
	catCursor     = "cursor"
	catTempTable  = "temp_table"
	catIdentity   = "identity"
)

type impactRule struct {
	id       string
	category string
	severity string
	title    string
	details  string
}

var impactRules = []impactRule{
	{
		id:       "IMP_DYN_SQL",
		category: catDynamicSQL,
		severity: "high",
		title:    "Dynamic SQL execution",
		details:  "Statements built at runtime cannot be mapped statically and need manual rewrite.",
	},
	{
		id:       "IMP_CURSOR",
		category: catCursor,
		severity: "high",
		title:    "Cursor-based processing",
		details:  "Row-by-row cursor loops should become set-based queries or application iteration.",
	},
	{
		id:       "IMP_TEMP_TABLE",
		category: catTempTable,
		severity: "medium",
		title:    "Temporary tables",
		details:  "Session-scoped temporary tables need an equivalent staging strategy on the target platform.",
	},
	{
		id:       "IMP_IDENTITY",
		category: catIdentity,
		severity: "medium",
		title:    "Identity value retrieval",
		details:  "Generated key retrieval must be replaced with the target platform's key return mechanism.",
	},
}

func (c *collector) migrationImpacts(all *collate.Report) MigrationImpacts {
	var r collate.Report
	mi := MigrationImpacts{Items: make([]ImpactItem, 0, len(impactRules))}
	for _, rule := range impactRules {
		sigs, ok := c.impacts[rule.category]
		if !ok {
			continue
		}
		mi.Items = append(mi.Items, ImpactItem{
			ID:       rule.id,
			Category: rule.category,
			Severity: rule.severity,
			Title:    rule.title,
			Signals:  capped(&r, rule.id+".signals", sigs, collate.Identity, c.opts.MaxListItems),
			Details:  rule.details,
		})
	}
	mi.Items = collate.Apply(mi.Items, collate.Spec[ImpactItem]{
		Key: func(it ImpactItem) string { return it.ID },
	}).Items
	mi.HasImpact = len(mi.Items) > 0
	appendEntries(all, "migration_impacts.", &r)
	return mi
}
