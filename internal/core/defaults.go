package core

// DefaultCategories is the starter set offered to a new account during
// onboarding. Limits are in cents.
func DefaultCategories() []Category {
	return []Category{
		{Name: "Food", Type: ExpenseCategory, Icon: "🍔", DefaultLimit: Money{Cents: 5000000}},
		{Name: "Transport", Type: ExpenseCategory, Icon: "🚌", DefaultLimit: Money{Cents: 2000000}},
		{Name: "Rent", Type: ExpenseCategory, Icon: "🏠", DefaultLimit: Money{Cents: 10000000}},
		{Name: "Utilities", Type: ExpenseCategory, Icon: "💡", DefaultLimit: Money{Cents: 1500000}},
		{Name: "Entertainment", Type: ExpenseCategory, Icon: "🎬", DefaultLimit: Money{Cents: 1000000}},
		{Name: "Salary", Type: IncomeCategory, Icon: "💼"},
		{Name: "Savings", Type: InvestmentCategory, Icon: "🏦"},
	}
}
