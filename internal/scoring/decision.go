package scoring

// Decision is the credit outcome for one application.
type Decision string

const (
	Accept Decision = "ACCEPT"
	Reject Decision = "REJECT"
)

// Decide applies the threshold policy. Ties reject.
func Decide(probability, threshold float64) Decision {
	if probability >= threshold {
		return Reject
	}
	return Accept
}
