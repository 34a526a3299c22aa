package domain

// Overview is the aggregated dashboard view for one user: every account
// with its current balance, the most recent transactions across all
// accounts, and the most recent split expenses.
type Overview struct {
	Accounts           []Account
	RecentTransactions []AccountTransaction
	RecentExpenses     []ExpenseWithShares
}
