package normalize

// StateWords are cooking, preservation and preparation qualifiers. The
// tokenizer tracks them apart from core tokens so matching can down-weight
// them instead of losing them.
var StateWords = []string{
	// cooking state
	"raw", "cooked", "uncooked",
	// cooking method
	"baked", "boiled", "braised", "broiled", "fried", "grilled", "roasted",
	"toasted", "steamed", "stewed", "sauteed", "poached", "simmered",
	"microwaved", "scrambled", "blanched",
	// preservation
	"fresh", "frozen", "canned", "dried", "dehydrated", "cured", "pickled",
	"fermented", "smoked",
	// processing
	"whole", "ground", "sliced", "diced", "chopped", "minced", "shredded",
	"grated", "crushed", "mashed", "pureed", "cubed", "peeled", "seeded",
	"melted", "softened", "julienned", "drained", "undrained",
	"prepared", "unprepared",
}

// FormWords name a processed product form. The canonicalizer strips them
// from descriptions ("Pineapple juice" -> pineapple); the tokenizer keeps
// them as core tokens because "olive oil" and "olives" are different foods.
var FormWords = []string{
	"paste", "powder", "powdered", "flour", "juice", "oil", "broth", "stock",
}

// Stopwords carry no identity and are dropped from token sequences.
var Stopwords = []string{
	"a", "an", "and", "the", "of", "with", "without", "or", "in", "for",
	"to", "from", "by", "made", "added", "all", "types", "type",
}

// PrepPhrases are boilerplate preparation phrases removed as a unit.
var PrepPhrases = []string{
	"prepared from recipe",
	"prepared-from-recipe",
	"ready to serve",
	"ready-to-serve",
	"ready to eat",
	"ready-to-eat",
	"unprepared",
	"shelf-stable",
	"shelf stable",
	"as purchased",
}
