package positions

import "strings"

var labels = map[string]string{
	"AerWonPerc":     "Aerial Duels Won %",
	"TklWon":         "Tackles Won",
	"Clr":            "Clearances",
	"BlkSh":          "Blocked Shots",
	"Int":            "Interceptions",
	"PasMedCmp":      "Medium Passes",
	"PasMedCmpPerc":  "Medium Pass %",
	"Goals":          "Goals",
	"SoT":            "Shots on Target",
	"SoTPerc":        "Shots on Target %",
	"ScaSh":          "Shot-Creating Actions",
	"TouAttPen":      "Penalty Area Touches",
	"Assists":        "Assists",
	"Sca":            "Shot-Creating Actions",
	"Recov":          "Ball Recoveries",
	"PasTotCmp":      "Total Passes",
	"PasTotCmpPerc":  "Pass Completion %",
	"PasProg":        "Progressive Passes",
	"TklMid3rd":      "Mid-Third Tackles",
	"CarProg":        "Progressive Carries",
	"SavePerc":       "Save %",
	"Err":            "Errors",
	"SweeperActions": "Sweeper Actions",
	"Pas3rd":         "Passes into Final Third",
}

// Label returns the human-readable name for a feature key.
// Unknown keys fall back to the key itself.
func Label(key string) string {
	if l, ok := labels[key]; ok {
		return l
	}
	return key
}

// Labels returns display labels for an ordered list of keys.
func Labels(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = Label(k)
	}
	return out
}

// aliases maps every spelling seen from older page variants and from the
// backend serializers onto the canonical key. Lookups are done on the
// lower-cased key.
var aliases = map[string]string{
	"aerwon%":              "AerWonPerc",
	"aerwon_percentage":    "AerWonPerc",
	"aerwonperc":           "AerWonPerc",
	"tklwon":               "TklWon",
	"clr":                  "Clr",
	"blksh":                "BlkSh",
	"int":                  "Int",
	"pasmedcmp":            "PasMedCmp",
	"pasmedcmp%":           "PasMedCmpPerc",
	"pasmedcmp_percentage": "PasMedCmpPerc",
	"pasmedcmpperc":        "PasMedCmpPerc",
	"goals":                "Goals",
	"sot":                  "SoT",
	"sot%":                 "SoTPerc",
	"sot_percentage":       "SoTPerc",
	"sotperc":              "SoTPerc",
	"scash":                "ScaSh",
	"touattpen":            "TouAttPen",
	"assists":              "Assists",
	"sca":                  "Sca",
	"recov":                "Recov",
	"recovery":             "Recov",
	"pastotcmp":            "PasTotCmp",
	"pastotcmp%":           "PasTotCmpPerc",
	"pastotcmp_percentage": "PasTotCmpPerc",
	"pastotcmpperc":        "PasTotCmpPerc",
	"pasprog":              "PasProg",
	"tklmid3rd":            "TklMid3rd",
	"carprog":              "CarProg",
	"err":                  "Err",
	"save %":               "SavePerc",
	"save%":                "SavePerc",
	"save_percentage":      "SavePerc",
	"saveperc":             "SavePerc",
	"sweeper actions":      "SweeperActions",
	"sweeper_actions":      "SweeperActions",
	"sweeperactions":       "SweeperActions",
	"pas3rd":               "Pas3rd",
}

// Canonical returns the canonical spelling of a statistic key and whether
// the key is a known statistic. Unknown keys are returned unchanged.
func Canonical(key string) (string, bool) {
	if _, ok := labels[key]; ok {
		return key, true
	}
	if c, ok := aliases[strings.ToLower(strings.TrimSpace(key))]; ok {
		return c, true
	}
	return key, false
}

// CanonicalizeRecord returns a copy of rec with aliased statistic keys
// renamed to their canonical form. A canonical key already present in rec
// wins over any alias of it; non-statistic keys pass through untouched.
func CanonicalizeRecord(rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		c, known := Canonical(k)
		if !known || c == k {
			out[k] = v
			continue
		}
		if _, exists := rec[c]; exists {
			continue
		}
		out[c] = v
	}
	return out
}
