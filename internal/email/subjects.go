package email

const (
	subjectDealWonFmt    = "Deal won: %s"
	subjectDealClosedFmt = "Deal %s: %s"
)
