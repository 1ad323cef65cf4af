package browser

import (
	"encoding/json"
	"fmt"
)

const bodyTextScript = `(document.body ? document.body.innerText : "").slice(0, %d)`

const scriptSourcesScript = `Array.from(document.scripts).map(s => s.src).filter(Boolean)`

// storageScript lists an area as [{key, value}]; a SecurityError surfaces as an evaluation error
const storageScript = `(() => {
  const area = window[%s];
  const out = [];
  for (let i = 0; i < area.length; i++) {
    const key = area.key(i);
    out.push({key: key, value: String(area.getItem(key))});
  }
  return out;
})()`

// clickTextScript clicks the innermost visible element under base whose text contains the needle
const clickTextScript = `((base, needle) => {
  needle = needle.toLowerCase();
  const visible = el => el.getClientRects().length > 0;
  const text = el => (el.innerText || el.textContent || "").toLowerCase();
  let nodes;
  try { nodes = Array.from(document.querySelectorAll(base || "*")); } catch (e) { return false; }
  const hits = nodes.filter(el => visible(el) && text(el).includes(needle));
  const innermost = hits.filter(el => !hits.some(o => o !== el && el.contains(o)));
  const target = innermost[0] || hits[0];
  if (!target) return false;
  (target.closest("button, a, [role=button], input") || target).click();
  return true;
})(%s, %s)`

// clickButtonScript clicks the first visible button-role element matching the accessible name
const clickButtonScript = `((name, exact) => {
  const selector = 'button, [role="button"], input[type="button"], input[type="submit"], a[role="button"]';
  const norm = s => (s || "").replace(/\s+/g, " ").trim();
  const escaped = name.replace(/[.*+?^${}()|[\]\\]/g, "\\$&");
  const pattern = new RegExp(escaped, "i");
  for (const el of document.querySelectorAll(selector)) {
    if (el.disabled || el.getClientRects().length === 0) continue;
    const label = norm(el.getAttribute("aria-label") || el.innerText || el.value || el.textContent);
    if (exact ? label === norm(name) : pattern.test(label)) {
      el.click();
      return true;
    }
  }
  return false;
})(%s, %t)`

func quoteJS(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func bodyTextExpression(maxChars int) string {
	return fmt.Sprintf(bodyTextScript, maxChars)
}

func storageExpression(area string) string {
	return fmt.Sprintf(storageScript, quoteJS(area))
}

func clickTextExpression(baseSelector, text string) string {
	return fmt.Sprintf(clickTextScript, quoteJS(baseSelector), quoteJS(text))
}

func clickButtonExpression(name string, exact bool) string {
	return fmt.Sprintf(clickButtonScript, quoteJS(name), exact)
}
