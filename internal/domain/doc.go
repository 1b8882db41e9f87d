// Package domain models Montreal construction and transformation permits.
//
// # Data Source
//
// Permit applications come from the "Permis de construction et de
// transformation" dataset on the Montreal open data portal
// (https://donnees.montreal.ca/dataset/permis-construction), served row by
// row through the portal's CKAN datastore API. One row is one permit
// application; the dataset reaches back to 1990 and grows as boroughs file
// new applications and issue permits.
//
// # Dataset Conventions
//
// Dates (date_debut, date_emission):
//
//	ISO-8601 date or date-time strings, e.g. "2024-01-10T00:00:00". The
//	time-of-day portion is a formatting artifact: the values are civil
//	dates, so durations count literal date components and the normalized
//	form keeps only the YYYY-MM-DD prefix of the raw string. date_emission
//	is absent until the permit is issued; such permits are pending, not
//	invalid. A small number of rows carry an issue date before the
//	application date (data-entry corrections); their duration is unusable
//	and becomes null, though the permit still counts as issued.
//
// Borough names (arrondissement):
//
//	Free-text spellings that drifted over three decades: em-dashes versus
//	hyphens ("Côte-des-Neiges—Notre-Dame-de-Grâce"), dropped articles
//	("Sud-Ouest" for "Le Sud-Ouest"), and unaccented vintages
//	("Montreal-Nord", "Saint-Leonard"). NormalizeBorough folds these onto
//	the portal's current canonical names via DefaultBoroughAliases while
//	passing unknown names through unchanged.
//
// Coordinates (latitude, longitude):
//
//	Numeric 0 and the empty string are placeholders for permits that were
//	never geolocated; both are treated as absent. Some vintages carry
//	coordinates as strings, which are parsed. See [RawRecord.Coord] for
//	the exact policy.
//
// Missing values:
//
//	The datastore omits keys, returns JSON null, or returns empty strings
//	interchangeably depending on export vintage. Normalization never
//	rejects a row for a missing or malformed field: the affected output
//	field becomes null and everything salvageable is kept.
package domain
