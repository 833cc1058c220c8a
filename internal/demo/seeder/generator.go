package seeder

import (
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

// ExpenseDraft is the body of one POST /v1/expenses call.
type ExpenseDraft struct {
	UserID      int64           `json:"-"`
	CategoryID  int64           `json:"category_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	ExpenseDate string          `json:"expense_date"`
	Description string          `json:"description"`
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type amountRange struct {
	minMinor int64
	maxMinor int64
}

var categoryAmounts = map[string]amountRange{
	"Travel":          {minMinor: 350, maxMinor: 25000},
	"Meals":           {minMinor: 450, maxMinor: 8000},
	"Accommodation":   {minMinor: 6500, maxMinor: 32000},
	"Office Supplies": {minMinor: 199, maxMinor: 12000},
	"Training":        {minMinor: 5000, maxMinor: 90000},
}

var categoryDescriptions = map[string][]string{
	"Travel":          {"Taxi to client site", "Train to head office", "Airport parking", "Mileage for site visit"},
	"Meals":           {"Team lunch", "Client dinner", "Working breakfast", "Coffee with candidate"},
	"Accommodation":   {"Hotel, one night", "Hotel, two nights", "Conference hotel"},
	"Office Supplies": {"Printer toner", "Notebooks and pens", "USB-C adapter", "Monitor stand"},
	"Training":        {"Online course licence", "Certification exam", "Conference ticket"},
}

type Generator struct {
	rnd      *rand.Rand
	users    []int64
	currency string
	now      func() time.Time
}

func NewGenerator(seed int64, users []int64, currency string) *Generator {
	return &Generator{
		rnd:      rand.New(rand.NewSource(seed)),
		users:    append([]int64(nil), users...),
		currency: currency,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (g *Generator) NextExpense(categories []Category) ExpenseDraft {
	category := categories[g.rnd.Intn(len(categories))]
	bounds, ok := categoryAmounts[category.Name]
	if !ok {
		bounds = amountRange{minMinor: 100, maxMinor: 10000}
	}
	minor := bounds.minMinor + g.rnd.Int63n(bounds.maxMinor-bounds.minMinor+1)

	descriptions, ok := categoryDescriptions[category.Name]
	if !ok {
		descriptions = []string{category.Name + " expense"}
	}

	return ExpenseDraft{
		UserID:      g.users[g.rnd.Intn(len(g.users))],
		CategoryID:  category.ID,
		Amount:      decimal.New(minor, -2),
		Currency:    g.currency,
		ExpenseDate: g.now().AddDate(0, 0, -g.rnd.Intn(30)).Format("2006-01-02"),
		Description: pickOne(g.rnd, descriptions),
	}
}

// Roll reports true with the given percent chance.
func (g *Generator) Roll(percent int) bool {
	return g.rnd.Intn(100) < percent
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
