package events

const (
	SubjectWeightsUpdated = "family.weights.updated"

	StreamName   = "KINDRED_EVENTS"
	StreamMaxAge = "720h" // 30 days
)

func SubjectRecommendationServed(kidID string) string {
	return "family.recommendation." + kidID + ".served"
}

func SubjectRecommendationDegraded(kidID string) string {
	return "family.recommendation." + kidID + ".degraded"
}

func SubjectFeedbackRecorded(kidID string) string {
	return "family.feedback." + kidID + ".recorded"
}
