package normalize

// descriptiveTerms are marketing and packaging words that vendors sprinkle
// over product names but that never distinguish one product from another.
// Multi-word terms are matched against consecutive tokens, longest first.
var descriptiveTerms = []string{
	"brand new",
	"new item",
	"new for",
	"best seller",
	"hot item",
	"limited edition",
	"special edition",
	"free shipping",
	"while supplies last",
	"case of",
	"pack of",
	"new",
	"assorted",
	"assortment",
	"asst",
	"exclusive",
	"edition",
	"limited",
	"special",
	"sale",
	"clearance",
	"display",
	"case",
	"pack",
	"pk",
	"pcs",
	"piece",
	"pieces",
	"each",
	"ea",
	"item",
	"product",
	"firework",
	"fireworks",
}

var stopWords = map[string]bool{
	"a":    true,
	"an":   true,
	"and":  true,
	"the":  true,
	"of":   true,
	"for":  true,
	"with": true,
	"in":   true,
	"on":   true,
	"at":   true,
	"by":   true,
	"to":   true,
	"from": true,
	"or":   true,
	"is":   true,
}
