package seed

type place struct {
	city    string
	country string
}

var usCities = []string{
	"New York", "Los Angeles", "Chicago", "Houston", "Phoenix",
	"Philadelphia", "San Antonio", "San Diego", "Dallas", "San Jose",
	"Austin", "Jacksonville", "Fort Worth", "Columbus", "Charlotte",
	"San Francisco", "Indianapolis", "Seattle", "Denver", "Boston",
	"Portland", "Nashville", "Atlanta", "Miami", "Las Vegas",
}

var euCities = []place{
	{"London", "United Kingdom"}, {"Berlin", "Germany"}, {"Paris", "France"},
	{"Madrid", "Spain"}, {"Rome", "Italy"}, {"Amsterdam", "Netherlands"},
	{"Vienna", "Austria"}, {"Brussels", "Belgium"}, {"Stockholm", "Sweden"},
	{"Copenhagen", "Denmark"}, {"Oslo", "Norway"}, {"Helsinki", "Finland"},
	{"Warsaw", "Poland"}, {"Prague", "Czech Republic"}, {"Lisbon", "Portugal"},
	{"Dublin", "Ireland"}, {"Athens", "Greece"}, {"Budapest", "Hungary"},
	{"Zurich", "Switzerland"}, {"Munich", "Germany"},
}

var otherCities = []place{
	{"Istanbul", "Türkiye"}, {"Tokyo", "Japan"}, {"Sydney", "Australia"},
	{"Toronto", "Canada"}, {"Singapore", "Singapore"}, {"Dubai", "United Arab Emirates"},
	{"Mumbai", "India"}, {"São Paulo", "Brazil"}, {"Mexico City", "Mexico"},
	{"Seoul", "South Korea"},
}

var firstNames = []string{
	"Alex", "Maria", "James", "Elif", "Noah", "Sofia", "Liam", "Emma", "Mateo", "Yuki",
	"Lucas", "Ava", "Omar", "Mia", "Ethan", "Zeynep", "Leo", "Chloe", "Arjun", "Nora",
}

var lastNames = []string{
	"Smith", "Garcia", "Müller", "Rossi", "Kaya", "Tanaka", "Dubois", "Nowak", "Silva", "Kim",
	"Johnson", "Novak", "Jensen", "Costa", "Brown", "Patel", "Larsen", "Moreau", "Lopez", "Yilmaz",
}

func allLocations() []string {
	out := make([]string, 0, len(usCities)+len(euCities)+len(otherCities))
	for _, c := range usCities {
		out = append(out, c+", United States")
	}
	for _, c := range euCities {
		out = append(out, c.city+", "+c.country)
	}
	for _, c := range otherCities {
		out = append(out, c.city+", "+c.country)
	}
	return out
}
