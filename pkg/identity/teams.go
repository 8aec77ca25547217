package identity

import "strings"

// teamVocabulary maps both sources' spellings onto one shared code per club.
// The points feed uses short codes, the stats feed uses long names; both are
// listed here. Lookups are case-insensitive. Unknown strings are an error,
// never a guess.
var teamVocabulary = map[string]string{
	// Arsenal
	"ars": "ARS", "arsenal": "ARS",
	// Aston Villa
	"avl": "AVL", "aston villa": "AVL", "villa": "AVL",
	// Bournemouth
	"bou": "BOU", "bournemouth": "BOU", "afc bournemouth": "BOU",
	// Brentford
	"bre": "BRE", "brentford": "BRE",
	// Brighton
	"bha": "BHA", "brighton": "BHA", "brighton and hove albion": "BHA", "brighton & hove albion": "BHA",
	// Burnley
	"bur": "BUR", "burnley": "BUR",
	// Chelsea
	"che": "CHE", "chelsea": "CHE",
	// Crystal Palace
	"cry": "CRY", "crystal palace": "CRY", "palace": "CRY",
	// Everton
	"eve": "EVE", "everton": "EVE",
	// Fulham
	"ful": "FUL", "fulham": "FUL",
	// Leeds
	"lee": "LEE", "leeds": "LEE", "leeds united": "LEE",
	// Liverpool
	"liv": "LIV", "liverpool": "LIV",
	// Manchester City
	"mci": "MCI", "man city": "MCI", "manchester city": "MCI",
	// Manchester United
	"mun": "MUN", "man utd": "MUN", "man united": "MUN", "manchester united": "MUN",
	// Newcastle
	"new": "NEW", "newcastle": "NEW", "newcastle united": "NEW",
	// Nottingham Forest
	"nfo": "NFO", "nott'm forest": "NFO", "nottingham forest": "NFO", "forest": "NFO",
	// Sunderland
	"sun": "SUN", "sunderland": "SUN",
	// Tottenham
	"tot": "TOT", "spurs": "TOT", "tottenham": "TOT", "tottenham hotspur": "TOT",
	// West Ham
	"whu": "WHU", "west ham": "WHU", "west ham united": "WHU",
	// Wolves
	"wol": "WOL", "wolves": "WOL", "wolverhampton": "WOL", "wolverhampton wanderers": "WOL",
}

// TeamKey resolves a raw team string to the shared team code
func TeamKey(teamRef string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(FoldASCII(teamRef)))
	code, ok := teamVocabulary[key]
	return code, ok
}

// TeamCodes lists the known codes, for validation and graph seeding
func TeamCodes() []string {
	seen := map[string]bool{}
	var codes []string
	for _, code := range teamVocabulary {
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	return codes
}
