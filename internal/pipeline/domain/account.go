package domain

// AccountStatus is the lifecycle status of an account.
type AccountStatus string

const (
	AccountProspect AccountStatus = "prospect"
	AccountActive   AccountStatus = "active"
	AccountCustomer AccountStatus = "customer"
	AccountInactive AccountStatus = "inactive"
	AccountChurned  AccountStatus = "churned"
)

var knownAccountStatuses = map[AccountStatus]struct{}{
	AccountProspect: {},
	AccountActive:   {},
	AccountCustomer: {},
	AccountInactive: {},
	AccountChurned:  {},
}

// IsKnownAccountStatus reports whether s is a valid account status.
func IsKnownAccountStatus(s string) bool {
	_, ok := knownAccountStatuses[AccountStatus(s)]
	return ok
}
