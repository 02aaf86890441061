// Package domain models one city's daily weather history as scraped from a
// Chinese weather-history site, and the monthly rollups derived from it.
//
// # Data Source
//
// Rows come from the monthly history tables published at
// https://www.tianqihoubao.com/lishi/<city>/month/<YYYYMM>.html. An external
// scraper flattens each table row into four text columns and writes them to a
// UTF-8 CSV (optionally BOM-prefixed). Nothing in those columns is typed.
//
// # Site Conventions
//
// Date column:
//
//	"2022年01月05日"  →  2022-01-05
//	The 年/月/日 markers are rewritten to "-" before parsing. Canonical
//	"2022-01-05" and unpadded "2022-1-5" are also accepted.
//
// Temperature column:
//
//	"<high>℃/<low>℃"  →  e.g. "3℃/-6℃"
//	Day high first, night low second. Every part must carry the unit marker
//	(℃ or °C). The full-width slash "／" is accepted as a separator. The site
//	does not guarantee high >= low; see [NormalizeOptions].
//
// Wind column:
//
//	Direction text with an embedded force token, e.g. "南风3-4级" or
//	"无持续风向≤3级". The token is a digit or digit range followed by 级.
//	Only the first token is used. Rows with no token keep an absent level.
//
// Sky column:
//
//	"<day>/<night>"  →  e.g. "晴/多云". A day whose halves are identical
//	("晴/晴") contributes a single label. A bare label ("阴") is one label.
//	Every distinct "/"-separated part is kept, so "晴/多云/阴" yields three.
//
// # Monthly Rollups
//
// Observations are grouped by [MonthKey]. Temperature means are rounded to
// two decimals only when the aggregate is produced. Wind levels and sky
// labels are counted as days: a "晴/多云" day counts once under 晴 and once
// under 多云, so sky totals for a month can exceed its calendar length.
//
// # Failure Model
//
// Field parsers return [ParseError] values instead of sentinels such as NaN.
// A row whose date, temperature pair, or sky set fails to parse is dropped
// whole; it never reaches an aggregate with zero or null fields. Numbers
// that parse but are not finite ("NaN℃", "Inf℃") are malformed too.
//
// # Duplicate Dates
//
// The site occasionally repeats a day across adjacent month pages. Rows are
// not compared by content: the first row for a calendar date is kept and
// every later row with the same date is dropped with reason duplicate_date,
// so each date contributes at most one day to its month.
package domain
