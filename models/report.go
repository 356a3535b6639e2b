package models

// CategoryAmount is a summed value for one category.
type CategoryAmount struct {
	Category Category `json:"category"`
	Value    float64  `json:"value"`
}

// MonthBucket holds income and expense sums for one calendar month.
type MonthBucket struct {
	Year    int     `json:"year"`
	Month   int     `json:"month"`
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
}

// MonthSummary is income, expense and balance for one period.
type MonthSummary struct {
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Balance float64 `json:"balance"`
}

// MonthComparison compares the current month to the previous one.
type MonthComparison struct {
	Current  MonthSummary `json:"current"`
	Previous MonthSummary `json:"previous"`
	Diff     MonthSummary `json:"diff"`
	Percent  MonthSummary `json:"percent"`
}

// CategoryTotal is the net of income and expense in one category.
type CategoryTotal struct {
	Category Category `json:"category"`
	Income   float64  `json:"income"`
	Expense  float64  `json:"expense"`
	Total    float64  `json:"total"`
}

// ExpenseOutlier is an expense annotated against the average expense.
type ExpenseOutlier struct {
	Transaction         Transaction `json:"transaction"`
	IsHigh              bool        `json:"isHigh"`
	PercentageOfAverage int         `json:"percentageOfAverage"`
}
