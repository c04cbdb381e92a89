package workflow

// Route is the outcome of the editor decision router.
type Route string

const (
	RouteRetry   Route = "writer_agent"
	RoutePublish Route = "publish"
	RouteFail    Route = "fail"
)

// MaxRevisions bounds the write/evaluate loop. revision_count is bumped on
// every evaluation, so at most MaxRevisions write passes happen.
const MaxRevisions = 3

// RouterFunc picks the next route from the state.
type RouterFunc func(s State) Route

// RouteEditorDecision runs after the editor node. A missing decision is
// treated as needs_improvement. Reject never retries.
func RouteEditorDecision(s State) Route {
	decision := s.PublishingDecision
	if decision == "" {
		decision = DecisionNeedsImprovement
	}
	switch {
	case decision == DecisionAccept:
		return RoutePublish
	case decision == DecisionNeedsImprovement && s.RevisionCount < MaxRevisions:
		return RouteRetry
	default:
		return RouteFail
	}
}
