// Package domain models observations from the MITECO reservoir bulletin.
//
// # Data Source
//
// Observations come from the "Boletín Hidrológico" historical reservoir
// database published by the Spanish Ministry for the Ecological Transition
// (MITECO) at https://www.miteco.gob.es/. The published artifact is a ZIP
// containing a Microsoft Access database; the upstream adapter extracts it
// and dumps the observation table ("T_Datos Embalses 1988-2026") to CSV
// with the mdb-export tool.
//
// # Table Conventions
//
// Columns (after header normalization):
//
//	AMBITO_NOMBRE   hydrological basin district, e.g. "EBRO"
//	EMBALSE_NOMBRE  reservoir name, e.g. "MEQUINENZA"
//	FECHA           observation date, day before month ("13/02/2024")
//	AGUA_TOTAL      total capacity in cubic hectometres
//	AGUA_ACTUAL     stored volume in cubic hectometres
//
// Numeric fields may use a decimal comma ("1234,56"). Rows missing any of
// the five columns after coercion are dropped before reaching the engine.
//
// # Statistics
//
// For each reservoir the engine anchors every window on the reference date,
// the most recent observation in that reservoir's series:
//
//	m1s/m2s/m1m  mean stored volume over the trailing 7/14/30 days
//	ma1          mean over the same calendar month one year earlier
//	h3a..h20a    mean over the reference month across the last 3/5/10/20 years
//	ht           mean over the reference month across the full history
//
// Year offsets use true calendar arithmetic (Feb 29 clamps to Feb 28 on
// non-leap years) rather than fixed 365-day spans. A window with no
// observations yields an absent value, never zero. All means are rounded
// half-up to two decimals. See [Compute].
package domain
