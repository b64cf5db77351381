package normalizer

// Category labels.
const (
	CategoryEntertainment = "Entertainment"
	CategoryGroceries     = "Groceries"
	CategoryDining        = "Dining"
	CategoryHealthBeauty  = "Health & Beauty"
	CategoryShopping      = "Shopping"
	CategoryTravel        = "Travel"
	CategoryTelecom       = "Telecom"
	CategorySoftware      = "Software"
	CategoryFitness       = "Sports & Fitness"
	CategoryFinance       = "Finance"
	CategoryOther         = "Other"
)

type keywordEntry struct {
	label    string
	keywords []string
}

// categoryTable is searched in order; the first category with a keyword in
// the description wins.
var categoryTable = []keywordEntry{
	{CategoryEntertainment, []string{
		"netflix", "spotify", "hulu", "disney", "hbo", "youtube", "prime video",
		"twitch", "playstation", "xbox", "nintendo", "steam games", "steampowered",
		"cinema", "theatre", "theater", "crunchyroll", "audible",
	}},
	{CategoryGroceries, []string{
		"supermarket", "grocery", "groceries", "whole foods", "trader joe",
		"safeway", "kroger", "wellcome", "parknshop", "park n shop", "aldi",
		"lidl", "market place",
	}},
	{CategoryDining, []string{
		"restaurant", "cafe", "coffee", "starbucks", "mcdonald", "burger",
		"pizza", "doordash", "uber eats", "deliveroo", "foodpanda", "grubhub",
		"kitchen", "bistro", "bakery",
	}},
	{CategoryHealthBeauty, []string{
		"pharmacy", "watsons", "mannings", "cvs", "walgreens", "clinic",
		"dental", "salon", "sephora", "beauty", "medical",
	}},
	{CategoryShopping, []string{
		"amazon", "amzn", "ebay", "target", "walmart", "ikea", "uniqlo",
		"taobao", "shop", "store", "mall",
	}},
	{CategoryTravel, []string{
		"airline", "airways", "cathay", "hotel", "airbnb", "booking.com",
		"expedia", "uber", "lyft", "taxi", "mtr", "octopus",
	}},
	{CategoryTelecom, []string{
		"verizon", "at&t", "t-mobile", "comcast", "csl", "smartone", "hkbn",
		"china mobile", "pccw", "telecom", "mobile",
	}},
	{CategorySoftware, []string{
		"adobe", "microsoft", "github", "dropbox", "google", "apple.com",
		"icloud", "notion", "slack", "zoom.us", "openai", "chatgpt", "figma",
		"canva", "atlassian", "1password",
	}},
	{CategoryFitness, []string{
		"gym", "fitness", "peloton", "yoga", "classpass", "strava", "sports",
	}},
	{CategoryFinance, []string{
		"bank", "insurance", "interest", "loan", "paypal", "venmo", "investment",
	}},
}

// hintTable maps a statement's own category column onto labels.
var hintTable = []keywordEntry{
	{CategoryGroceries, []string{"supermarket", "grocer"}},
	{CategoryDining, []string{"restaurant", "fast food", "dining"}},
	{CategoryTravel, []string{"hotel", "airline", "travel", "transport"}},
	{CategoryHealthBeauty, []string{"pharmac", "health", "beauty"}},
	{CategoryTelecom, []string{"telecom", "utilities"}},
	{CategoryEntertainment, []string{"entertainment", "streaming"}},
	{CategoryShopping, []string{"department store", "retail", "shopping"}},
}

// merchantAliases map description keywords to display names. Longer or more
// specific keywords come before the general ones they contain.
var merchantAliases = []keywordEntry{
	{"Amazon Prime", []string{"amazon prime", "amzn prime", "prime video"}},
	{"Netflix", []string{"netflix"}},
	{"Spotify", []string{"spotify"}},
	{"Disney+", []string{"disney plus", "disneyplus", "disney+"}},
	{"YouTube Premium", []string{"youtube premium", "youtubepremium"}},
	{"YouTube", []string{"youtube"}},
	{"Hulu", []string{"hulu"}},
	{"HBO Max", []string{"hbo max", "hbomax"}},
	{"Apple", []string{"apple.com", "itunes"}},
	{"iCloud", []string{"icloud"}},
	{"Adobe", []string{"adobe"}},
	{"Microsoft", []string{"microsoft", "msft"}},
	{"Dropbox", []string{"dropbox"}},
	{"GitHub", []string{"github"}},
	{"Google", []string{"google"}},
	{"OpenAI", []string{"openai", "chatgpt"}},
	{"Notion", []string{"notion"}},
	{"Audible", []string{"audible"}},
	{"Amazon", []string{"amazon", "amzn"}},
	{"Uber Eats", []string{"uber eats", "ubereats"}},
	{"Uber", []string{"uber"}},
	{"Starbucks", []string{"starbucks"}},
	{"Peloton", []string{"peloton"}},
}

func keywordsOf(entries []keywordEntry) [][]string {
	out := make([][]string, len(entries))
	for i, e := range entries {
		out[i] = e.keywords
	}
	return out
}
