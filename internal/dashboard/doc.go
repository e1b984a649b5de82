// Package dashboard builds the five dashboard views (overview, creation,
// modification, services, executive) from a loaded table and a label
// selection. Each view is a pure computation; the result carries cards,
// renderer-agnostic chart configs, tables, insights and warnings.
//
// Views never fail on missing data. An empty table or an empty category
// subset yields a payload with warnings and no charts.
package dashboard
