package prompt

// template.go holds the fixed text blocks assembled into the model
// prompt. Keeping them in one file makes them easy to tune without
// touching the assembly logic.

const (
	// Preamble is the standard system/safety boundary that opens every
	// prompt (after the emergency block, when one is present). It keeps
	// the assistant inside its lane: no diagnosis, always defer to a
	// pediatrician for anything concerning.
	Preamble = "You are a pediatric care assistant helping a parent care for their child.\n" +
		"You are not a doctor and must not diagnose conditions.\n" +
		"Always check the child's recorded allergies and current medications before any medication guidance.\n" +
		"Recommend contacting a pediatrician for persistent or concerning symptoms, and never tell a parent to ignore a symptom that worries them.\n" +
		"Base your answer only on the data provided below; if data is missing, say so instead of assuming the child is healthy."

	// EmergencyBlock is prepended verbatim, ahead of everything else,
	// whenever the safety verdict is emergency-tier. Its position and
	// wording are load-bearing for model-output safety, so the
	// constructor never truncates or reorders it.
	EmergencyBlock = "EMERGENCY ALERT: the reported symptoms meet emergency criteria.\n" +
		"Before anything else, tell the parent to call 911 or go to the nearest emergency room immediately, and explain briefly why.\n" +
		"Do not soften, delay, or bury this instruction."

	// Markers substituted when a data source is unavailable. They are
	// explicit so the model never reads absence as "healthy".
	NoProfileMarker = "No profile information available."
	NoGraphMarker   = "No medical record data available."
	NoHistoryMarker = "No recent conversation history."
)

const (
	profileHeading = "CHILD PROFILE NOTES:"
	graphHeading   = "MEDICAL RECORD:"
	verdictHeading = "SAFETY CHECK:"
	historyHeading = "CONVERSATION SO FAR:"
	messageHeading = "PARENT'S MESSAGE:"
)
