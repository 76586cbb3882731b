// Package domain models atmospheric sounding data and the jobs that acquire it.
//
// # Data Source
//
// Soundings originate from the University of Wyoming upper-air archive. One
// request returns the vertical profile for a single station at a single hour
// as an HTML page: an <h3> heading with the station label and a <pre> block
// with a fixed-layout whitespace table. The table header starts with the
// pressure column token "PRES"; data lines follow until the first blank line.
//
//	PRES   HGHT   TEMP   DWPT   RELH   MIXR   DRCT   SKNT   THTA   THTE   THTV
//	 hPa     m      C      C      %    g/kg    deg   knot     K      K      K
//	1000.0    110   12.0    8.0   76.0   5.60    230      5  285.0  301.0  286.0
//
// A 404 from the archive means "no sounding for that slot" and is not an
// error; bulk jobs simply skip the timestamp.
//
// # Derived Absolute Humidity
//
// When both RELH (%) and TEMP (C) columns are present, an ABSH column in
// g/m3 is appended per row using the Magnus-form approximation
//
//	absh = 6.112 * e^(17.67*T/(T+243.5)) * RH * 2.1674 / (273.15 + T)
//
// Rows where either operand is missing, or where the arithmetic degenerates
// (T = -273.15 or T = -243.5), carry a null ABSH cell instead of aborting
// the parse.
//
// # Precipitable Water Vapor
//
// PWV integrates ABSH over height (HGHT, m) with the trapezoidal rule above
// a caller-supplied minimum height, then divides by 1000 to report in mm.
// Fewer than two usable samples yields no result rather than zero; height
// steps that do not strictly increase are skipped.
//
// # Keys and Lifecycles
//
// A sounding is owned by exactly one station and keyed by (station, hour);
// re-fetching the same slot replaces the stored content. Backfill and export
// jobs are created pending, handed to a worker by id through the job queue,
// and move monotonically to done or failed. The worker owns every state
// transition; the persisted record is the single source of truth.
package domain
