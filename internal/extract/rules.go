package extract

import "regexp"

// priceRule matches a price expression in free text. Rules are evaluated in
// order; the first capture wins. The locale flag controls separator
// disambiguation when the captured number is ambiguous.
type priceRule struct {
	name    string
	pattern *regexp.Regexp
}

// numberPattern matches a price figure with optional thousand/decimal
// separators, e.g. 300000, 1,200.50, 1.200,50.
const numberPattern = `([0-9][0-9.,]*[0-9]|[0-9])`

// priceRules lists currency-symbol and currency-code patterns in priority
// order. Symbol-prefixed amounts are preferred over bare code-suffixed ones.
var priceRules = []priceRule{
	{"euro symbol", regexp.MustCompile(`€\s*` + numberPattern)},
	{"pound symbol", regexp.MustCompile(`£\s*` + numberPattern)},
	{"dollar symbol", regexp.MustCompile(`\$\s*` + numberPattern)},
	{"eur prefix", regexp.MustCompile(`(?i)\bEUR\s*` + numberPattern)},
	{"eur suffix", regexp.MustCompile(`(?i)` + numberPattern + `\s*(?:EUR|euros?)\b`)},
}

// Bounded room-count patterns over loose bedroom/bathroom spellings.
var (
	bedroomPattern  = regexp.MustCompile(`(?i)\b([0-9]{1,2})\s*-?\s*(?:bedrooms?|beds?|br)\b`)
	bathroomPattern = regexp.MustCompile(`(?i)\b([0-9]{1,2})\s*-?\s*(?:bathrooms?|baths?|ba)\b`)
)

// Room-count bounds; values outside these are regex noise, not listings.
const (
	maxBedrooms  = 20
	maxBathrooms = 10
)

// gazetteer is the fixed set of known localities, checked against free text
// first and the URL path second.
var gazetteer = []string{
	"Sliema",
	"St Julian's",
	"Valletta",
	"Gzira",
	"Msida",
	"Mosta",
	"Mellieha",
	"Bugibba",
	"Qawra",
	"St Paul's Bay",
	"Swieqi",
	"Birkirkara",
	"Attard",
	"Mdina",
	"Rabat",
	"Marsaskala",
	"Marsaxlokk",
	"Zabbar",
	"Naxxar",
	"Zebbug",
	"Victoria",
	"Xlendi",
	"Marsalforn",
}
