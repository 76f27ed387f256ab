package timezone

import (
	"strings"
	"time"
)

var zones = map[string]*time.Location{
	"WIB":  time.FixedZone("WIB", 7*60*60),  // Western Indonesia
	"WITA": time.FixedZone("WITA", 8*60*60), // Central Indonesia
	"WIT":  time.FixedZone("WIT", 9*60*60),  // Eastern Indonesia
	"MYT":  time.FixedZone("MYT", 8*60*60),  // Malaysia
	"SGT":  time.FixedZone("SGT", 8*60*60),  // Singapore
	"ICT":  time.FixedZone("ICT", 7*60*60),  // Thailand, Vietnam
	"PHT":  time.FixedZone("PHT", 8*60*60),  // Philippines
	"JST":  time.FixedZone("JST", 9*60*60),  // Japan
	"UTC":  time.UTC,
}

var airportZones = map[string]string{
	"CGK": "WIB", "HLP": "WIB", "SUB": "WIB", "JOG": "WIB", "KNO": "WIB", "BTH": "WIB",
	"DPS": "WITA", "LOP": "WITA", "UPG": "WITA", "BPN": "WITA", "MDC": "WITA",
	"DJJ": "WIT", "AMQ": "WIT", "SOQ": "WIT",

	"KUL": "MYT", "SZB": "MYT", "PEN": "MYT", "BKI": "MYT", "KCH": "MYT", "LGK": "MYT", "JHB": "MYT",
	"SIN": "SGT",
	"BKK": "ICT", "DMK": "ICT", "HKT": "ICT", "CNX": "ICT", "SGN": "ICT", "HAN": "ICT", "DAD": "ICT",
	"MNL": "PHT", "CEB": "PHT",
	"NRT": "JST", "HND": "JST", "KIX": "JST",
}

// ZoneName returns the zone abbreviation for an airport, UTC when unknown.
func ZoneName(airport string) string {
	if z, ok := airportZones[strings.ToUpper(airport)]; ok {
		return z
	}
	return "UTC"
}

// LocationByAirport returns the fixed-offset location of an airport.
func LocationByAirport(airport string) *time.Location {
	return zones[ZoneName(airport)]
}

// LocationByName resolves a zone abbreviation, "UTC+N" offset or IANA name.
func LocationByName(name string) *time.Location {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if loc, ok := zones[upper]; ok {
		return loc
	}
	switch upper {
	case "UTC+7":
		return zones["ICT"]
	case "UTC+8":
		return zones["MYT"]
	case "UTC+9":
		return zones["JST"]
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.UTC
}

// ParseTimeWithOffset parses a provider timestamp. Timestamps carrying an
// offset are taken as-is; naive timestamps are interpreted in tzName, which
// may be an airport code or a zone name. Naive input without tzName is UTC.
func ParseTimeWithOffset(timeStr string, tzName string) (time.Time, error) {
	offsetFormats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05-0700",
		"2006-01-02T15:04-07:00",
	}
	for _, format := range offsetFormats {
		if t, err := time.Parse(format, timeStr); err == nil {
			return t, nil
		}
	}

	loc := time.UTC
	if tzName != "" {
		if len(tzName) == 3 && airportZones[strings.ToUpper(tzName)] != "" {
			loc = LocationByAirport(tzName)
		} else {
			loc = LocationByName(tzName)
		}
	}
	naiveFormats := []string{
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04",
	}
	for _, format := range naiveFormats {
		if t, err := time.ParseInLocation(format, timeStr, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, &time.ParseError{
		Value:   timeStr,
		Message: "unable to parse time string",
	}
}

// AtAirport combines a calendar date and HH:MM wall clock at an airport.
func AtAirport(date, clock, airport string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", date+" "+clock, LocationByAirport(airport))
}
