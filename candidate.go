package pagewalk

import (
	"context"
	"fmt"
	"net/url"
)

// ActionKind identifies a navigation technique.
type ActionKind string

// Navigation action kinds.
const (
	ActionClick  ActionKind = "click"
	ActionGoTo   ActionKind = "goto"
	ActionScroll ActionKind = "scroll"
	ActionFetch  ActionKind = "fetch"
)

// NavigationAction is one way of reaching the next page.
// Click uses Locator; GoTo and Fetch use URL; Scroll uses neither.
type NavigationAction struct {
	Kind    ActionKind
	Locator string
	URL     string
}

// Click returns an action that clicks the element at locator.
func Click(locator string) NavigationAction {
	return NavigationAction{Kind: ActionClick, Locator: locator}
}

// GoToURL returns an action that navigates the page to rawURL.
func GoToURL(rawURL string) NavigationAction {
	return NavigationAction{Kind: ActionGoTo, URL: rawURL}
}

// ScrollToBottom returns an action that scrolls to the end of the page.
func ScrollToBottom() NavigationAction {
	return NavigationAction{Kind: ActionScroll}
}

// Fetch returns an action that requests rawURL out-of-band and records the
// response as a captured payload.
func Fetch(rawURL string) NavigationAction {
	return NavigationAction{Kind: ActionFetch, URL: rawURL}
}

// Validate returns an error if the action is missing its target.
func (a NavigationAction) Validate() error {
	switch a.Kind {
	case ActionClick:
		if a.Locator == "" {
			return Errorf(EINVALID, "click action requires a locator")
		}
	case ActionGoTo, ActionFetch:
		if a.URL == "" {
			return Errorf(EINVALID, "%s action requires a URL", a.Kind)
		}
		u, err := url.Parse(a.URL)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
			return Errorf(EINVALID, "malformed target URL %q", a.URL)
		}
	case ActionScroll:
	default:
		return Errorf(EINVALID, "unknown action kind %q", a.Kind)
	}
	return nil
}

func (a NavigationAction) String() string {
	switch a.Kind {
	case ActionClick:
		return fmt.Sprintf("click(%s)", a.Locator)
	case ActionGoTo, ActionFetch:
		return fmt.Sprintf("%s(%s)", a.Kind, a.URL)
	}
	return string(a.Kind)
}

// NavigationExecutor carries out navigation actions on the active page.
type NavigationExecutor interface {
	// Execute performs the action. It returns false when a click target can
	// no longer be resolved; GoTo returns true once navigation was requested,
	// and the caller waits for readiness separately.
	Execute(ctx context.Context, action NavigationAction) (bool, error)
}

// DomainLimiter paces navigations per domain.
type DomainLimiter interface {
	// Wait blocks until a request to domain is allowed or ctx is done.
	Wait(ctx context.Context, domain string) error
}

// StrategyName identifies a pagination detection technique.
type StrategyName string

// Strategy names.
const (
	StrategyQueryString    StrategyName = "queryString"
	StrategyPathBased      StrategyName = "pathBased"
	StrategyNextButton     StrategyName = "nextButton"
	StrategyLoadMore       StrategyName = "loadMore"
	StrategyArrow          StrategyName = "arrow"
	StrategyInfiniteScroll StrategyName = "infiniteScroll"
	StrategyAPICursor      StrategyName = "apiCursor"
)

// Candidate is a proposed next-page action with a strategy-local confidence.
type Candidate struct {
	Strategy   StrategyName
	Confidence float64
	Action     NavigationAction

	// Optional hints. NextURL is the absolute address the action leads to,
	// when known.
	NextURL    string
	NextCursor string
	NextToken  string
}

// Strategy proposes a next-page candidate for a page. Detect is a pure
// function of the PageContext and returns nil when nothing was found.
type Strategy interface {
	Name() StrategyName
	Detect(pc PageContext) *Candidate
}

// Ranker picks the next-page candidate for a page under a method.
// It returns nil when no applicable strategy produced a candidate.
type Ranker interface {
	Rank(pc PageContext, method Method) *Candidate
}

// Method is the pagination method requested by the user.
type Method string

// Supported methods. MethodAuto tries every strategy in precedence order.
const (
	MethodAuto           Method = "auto"
	MethodNextButton     Method = "nextButton"
	MethodLoadMore       Method = "loadMore"
	MethodInfiniteScroll Method = "infiniteScroll"
	MethodURLPattern     Method = "urlPattern"
	MethodAPI            Method = "api"
)

// Methods lists every supported method.
func Methods() []Method {
	return []Method{MethodAuto, MethodNextButton, MethodLoadMore, MethodInfiniteScroll, MethodURLPattern, MethodAPI}
}

// Validate returns an error if m is not a supported method.
func (m Method) Validate() error {
	for _, known := range Methods() {
		if m == known {
			return nil
		}
	}
	return Errorf(EINVALID, "unknown pagination method %q", m)
}
