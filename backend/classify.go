package backend

// Classify reports why current differs from previous. Only one reason is
// reported even when several fields changed; the checks run in a fixed order:
// first check, title, latest article guid, latest article date. ok is false
// when nothing that matters changed.
func Classify(previous *Observation, current Observation) (kind UpdateKind, ok bool) {
	switch {
	case previous == nil:
		return FirstCheck, true
	case previous.Title != current.Title:
		return Title, true
	case !sameString(previous.LastArticleGUID, current.LastArticleGUID):
		return NewArticle, true
	case !sameString(previous.LastArticlePubDate, current.LastArticlePubDate):
		return LastArticle, true
	default:
		return 0, false
	}
}

// sameString compares optional strings exactly. Absent and present are
// different even when the present value is empty.
func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
