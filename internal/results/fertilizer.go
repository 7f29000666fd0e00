package results

// Nutrient is one element share of a fertilizer
type Nutrient struct {
	Element string `json:"element"` // N, P or K
	Percent int    `json:"percent"`
}

// Fertilizer describes a recommended fertilizer
type Fertilizer struct {
	Name        string     `json:"name"`
	Nutrients   []Nutrient `json:"nutrients"`
	Description string     `json:"description"`
}

var fertilizers = map[string]Fertilizer{
	"DAP": {
		Nutrients:   []Nutrient{{"N", 18}, {"P", 46}},
		Description: "Ideal for promoting root development and flowering in plants. Best used during early growth stages.",
	},
	"Urea": {
		Nutrients:   []Nutrient{{"N", 46}},
		Description: "Excellent for promoting vegetative growth and green foliage in plants. Perfect for leafy crops.",
	},
	"TSP": {
		Nutrients:   []Nutrient{{"P", 46}},
		Description: "Best for root development and flowering. Ideal for phosphorus-deficient soils.",
	},
	"Superphosphate": {
		Description: "Good for root development and early plant growth. Suitable for most soil types.",
	},
	"Potassium sulfate": {
		Nutrients:   []Nutrient{{"K", 50}},
		Description: "Excellent for fruit development and disease resistance. Best for fruiting plants.",
	},
	"Potassium chloride": {
		Nutrients:   []Nutrient{{"K", 60}},
		Description: "Good for overall plant health and stress resistance. Ideal for potassium-deficient soils.",
	},
	"28-28": {
		Nutrients:   []Nutrient{{"N", 28}, {"P", 28}},
		Description: "Good for general plant growth and development. Suitable for most crops.",
	},
	"20-20": {
		Nutrients:   []Nutrient{{"N", 20}, {"P", 20}, {"K", 20}},
		Description: "Ideal for general plant maintenance. Perfect for balanced nutrient requirements.",
	},
	"17-17-17": {
		Nutrients:   []Nutrient{{"N", 17}, {"P", 17}, {"K", 17}},
		Description: "Good for general plant growth. Suitable for most garden plants.",
	},
	"15-15-15": {
		Nutrients:   []Nutrient{{"N", 15}, {"P", 15}, {"K", 15}},
		Description: "Suitable for general plant growth. Good for balanced nutrition.",
	},
	"14-35-14": {
		Nutrients:   []Nutrient{{"N", 14}, {"P", 35}, {"K", 14}},
		Description: "Good for flowering and fruiting. Ideal for phosphorus-demanding crops.",
	},
	"14-14-14": {
		Nutrients:   []Nutrient{{"N", 14}, {"P", 14}, {"K", 14}},
		Description: "Suitable for general plant growth. Good for balanced nutrition.",
	},
	"10-26-26": {
		Nutrients:   []Nutrient{{"N", 10}, {"P", 26}, {"K", 26}},
		Description: "Good for fruiting and flowering. Ideal for fruit-bearing plants.",
	},
	"10-10-10": {
		Nutrients:   []Nutrient{{"N", 10}, {"P", 10}, {"K", 10}},
		Description: "Suitable for general plant maintenance. Good for balanced nutrition.",
	},
}

// FertilizerAdvice looks up the description for a recommended fertilizer.
// Unknown names are returned with no nutrients and an empty description.
func FertilizerAdvice(name string) (Fertilizer, bool) {
	f, ok := fertilizers[name]
	f.Name = name
	return f, ok
}
