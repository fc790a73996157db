// Package popups keeps the storefront's marketing and consent overlays out of the way of tests.
//
// It does this in three layers: requests for known popup resources are blocked, cookies that tell
// the site a popup was already shown are set before the first navigation, and anything that still
// appears is dismissed, both by a script running inside every document and by sweeps from the
// test side. Suppression is best effort; a popup that can't be dismissed is logged, not fatal.
package popups

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/launchdarkly/storefront-e2e/browser"
	"github.com/launchdarkly/storefront-e2e/framework"
	"github.com/launchdarkly/storefront-e2e/sitedef"
)

// Rule identifies one kind of popup by the control that dismisses it.
type Rule struct {
	Name     string
	Selector string
}

type Policy struct {
	// BlockedPatterns are URL glob patterns whose requests are aborted.
	BlockedPatterns []string
	Cookies         []browser.Cookie
	Rules           []Rule

	// CheckTimeout bounds the visibility check for each rule during a sweep.
	CheckTimeout time.Duration
}

// DefaultPolicy returns the popup policy for the storefront.
func DefaultPolicy(site sitedef.Site) Policy {
	cookie := func(name string) browser.Cookie {
		return browser.Cookie{Name: name, Value: "true", Domain: site.Domain, Path: "/"}
	}
	return Policy{
		BlockedPatterns: []string{"**/*popup*", "**/nl/**", "**/ftp/popup/**"},
		Cookies: []browser.Cookie{
			cookie("CookieConsent"),
			cookie("newsletterPopupShown"),
			cookie("appDownloadPopupShown"),
		},
		Rules: []Rule{
			{Name: "cookie consent", Selector: site.ConsentAcceptSelector},
			{Name: "app download", Selector: ".app-mobile-download-close"},
			{Name: "newsletter", Selector: ".closeWindow"},
			{Name: "popup dialog", Selector: ".popup-dialog button.closeWindow"},
		},
		CheckTimeout: site.Timeouts.PopupCheck(),
	}
}

// Selectors returns the selectors of all rules, in order.
func (p Policy) Selectors() []string {
	return lo.Map(p.Rules, func(r Rule, _ int) string { return r.Selector })
}

const observerScript = `window.addEventListener('DOMContentLoaded', () => {
  const selectors = %s;
  const isVisible = (el) => el instanceof HTMLElement &&
    el.getClientRects().length > 0 &&
    getComputedStyle(el).visibility !== 'hidden';
  const dismiss = () => {
    for (const selector of selectors) {
      const el = Array.from(document.querySelectorAll(selector)).find(isVisible);
      if (el) {
        el.click();
      }
    }
  };
  new MutationObserver((mutations) => {
    if (mutations.some((m) => m.type === 'childList')) {
      dismiss();
    }
  }).observe(document.body, { childList: true, subtree: true });
});`

// InitScript returns the script that is installed in every document of a wrapped page. It watches
// the document for inserted nodes and clicks the first visible control of each rule. Hidden
// controls are left alone.
func (p Policy) InitScript() string {
	selectors, _ := json.Marshal(p.Selectors()) // a []string always marshals
	return fmt.Sprintf(observerScript, selectors)
}

// Outcome is the result of checking one rule during a sweep.
type Outcome int

const (
	Absent Outcome = iota
	Dismissed
	CheckFailed
)

func (o Outcome) String() string {
	switch o {
	case Absent:
		return "absent"
	case Dismissed:
		return "dismissed"
	case CheckFailed:
		return "check failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

type RuleResult struct {
	Rule    Rule
	Outcome Outcome
	Err     error
}

// Report describes what a sweep found, one entry per rule.
type Report []RuleResult

// Dismissed returns the names of the rules whose popups were dismissed.
func (r Report) Dismissed() []string {
	return lo.FilterMap(r, func(rr RuleResult, _ int) (string, bool) {
		return rr.Rule.Name, rr.Outcome == Dismissed
	})
}

// Failures returns the results of rules that could not be checked or dismissed.
func (r Report) Failures() []RuleResult {
	return lo.Filter(r, func(rr RuleResult, _ int) bool { return rr.Outcome == CheckFailed })
}

// Page is a browser.Page with popup suppression installed.
type Page struct {
	browser.Page
	policy Policy
	logger framework.Logger

	lock     sync.Mutex
	sweeps   sync.WaitGroup
	detached bool
}

// Wrap installs the policy on a page that has not navigated yet: it blocks popup resources, seeds
// the popup cookies in the page's context, adds the dismissal script, and sweeps for popups after
// every page load.
func Wrap(page browser.Page, policy Policy, logger framework.Logger) (*Page, error) {
	if logger == nil {
		logger = framework.NullLogger()
	}
	p := &Page{Page: page, policy: policy, logger: logger}
	for _, pattern := range policy.BlockedPatterns {
		pattern := pattern
		err := page.Route(pattern, func(r browser.Route) {
			if err := r.Abort(); err != nil {
				logger.Printf("Could not block %s (matched %s): %s", r.URL(), pattern, err)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("could not block popup resources matching %s: %w", pattern, err)
		}
	}
	if len(policy.Cookies) != 0 {
		if err := page.Context().AddCookies(policy.Cookies); err != nil {
			return nil, fmt.Errorf("could not set popup cookies: %w", err)
		}
	}
	if err := page.AddInitScript(policy.InitScript()); err != nil {
		return nil, fmt.Errorf("could not install popup observer: %w", err)
	}
	page.OnLoad(p.sweepAfterLoad)
	return p, nil
}

func (p *Page) sweepAfterLoad() {
	p.lock.Lock()
	if p.detached {
		p.lock.Unlock()
		return
	}
	p.sweeps.Add(1)
	p.lock.Unlock()
	defer p.sweeps.Done()

	if failures := p.DismissPopups().Failures(); len(failures) > 0 {
		p.logger.Printf("Popup sweep after page load had %d failed checks", len(failures))
	}
}

// Detach stops sweeping after page loads and waits for any sweep that is still running. The
// underlying page stays open. Call it before the page's owner finishes, so that no sweep logs
// into a test that has already ended.
func (p *Page) Detach() {
	p.lock.Lock()
	p.detached = true
	p.lock.Unlock()
	p.sweeps.Wait()
}

func (p *Page) Policy() Policy {
	return p.policy
}

// DismissPopups checks each rule in order and clicks the control of any popup that is visible.
// It never fails; problems are reported in the Report and logged.
func (p *Page) DismissPopups() Report {
	report := make(Report, 0, len(p.policy.Rules))
	for _, rule := range p.policy.Rules {
		result := p.dismiss(rule)
		if result.Err != nil {
			p.logger.Printf("Popup %q (%s): %s: %s", rule.Name, rule.Selector, result.Outcome, result.Err)
		} else {
			p.logger.Printf("Popup %q (%s): %s", rule.Name, rule.Selector, result.Outcome)
		}
		report = append(report, result)
	}
	return report
}

func (p *Page) dismiss(rule Rule) RuleResult {
	loc := p.Locator(rule.Selector)
	visible, err := loc.IsVisible(p.policy.CheckTimeout)
	if err != nil {
		return RuleResult{Rule: rule, Outcome: CheckFailed, Err: err}
	}
	if !visible {
		return RuleResult{Rule: rule, Outcome: Absent}
	}
	if err := loc.Click(p.policy.CheckTimeout); err != nil {
		return RuleResult{Rule: rule, Outcome: CheckFailed, Err: fmt.Errorf("visible but could not be clicked: %w", err)}
	}
	return RuleResult{Rule: rule, Outcome: Dismissed}
}
