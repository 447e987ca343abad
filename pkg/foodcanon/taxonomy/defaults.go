package taxonomy

// Default returns a taxonomy over the reference catalog's food groups.
func Default() *Taxonomy {
	t := New()
	for _, g := range defaultGroups {
		t.AddCategory(g.name, g.keywords)
	}
	return t
}

var defaultGroups = []struct {
	name     string
	keywords []string
}{
	{"Dairy and Egg Products", []string{"milk", "cheese", "butter", "cream", "yogurt", "egg", "buttermilk", "parmesan", "mozzarella", "cheddar", "ricotta"}},
	{"Spices and Herbs", []string{"pepper", "salt", "cinnamon", "cumin", "paprika", "oregano", "basil", "thyme", "rosemary", "nutmeg", "ginger", "parsley", "cilantro", "vanilla", "clove", "turmeric", "sage", "dill"}},
	{"Fats and Oils", []string{"oil", "shortening", "margarine", "lard"}},
	{"Poultry Products", []string{"chicken", "turkey", "duck"}},
	{"Pork Products", []string{"pork", "bacon", "ham", "sausage"}},
	{"Beef Products", []string{"beef", "steak", "brisket"}},
	{"Finfish and Shellfish Products", []string{"salmon", "tuna", "shrimp", "cod", "crab", "fish", "anchovy", "tilapia"}},
	{"Fruits and Fruit Juices", []string{"apple", "banana", "lemon", "lime", "orange", "strawberry", "blueberry", "raisin", "pineapple", "peach", "cherry", "grape", "mango", "cranberry"}},
	{"Vegetables and Vegetable Products", []string{"onion", "garlic", "tomato", "carrot", "celery", "potato", "spinach", "broccoli", "cabbage", "lettuce", "mushroom", "zucchini", "corn", "pea", "scallion", "shallot", "jalapeno", "cucumber"}},
	{"Legumes and Legume Products", []string{"bean", "lentil", "chickpea", "tofu", "peanut", "soy"}},
	{"Nut and Seed Products", []string{"almond", "walnut", "pecan", "cashew", "sesame", "coconut", "pistachio", "hazelnut"}},
	{"Cereal Grains and Pasta", []string{"flour", "rice", "oat", "pasta", "spaghetti", "noodle", "cornmeal", "barley", "quinoa", "wheat"}},
	{"Baked Products", []string{"bread", "tortilla", "cracker", "bun", "roll", "crust", "breadcrumb"}},
	{"Sweets", []string{"sugar", "honey", "syrup", "chocolate", "molasses", "candy", "jam"}},
	{"Beverages", []string{"water", "coffee", "tea", "wine", "beer", "juice", "soda"}},
	{"Soups, Sauces, and Gravies", []string{"broth", "stock", "soup", "sauce", "gravy", "ketchup", "mayonnaise", "salsa"}},
}
