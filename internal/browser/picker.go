package browser

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-rod/rod"
)

// pickScript installs a highlight overlay that follows the pointer and
// resolves to a CSS path once an element is clicked. The path uses the
// element id when present; otherwise a tag.class:nth-of-type chain from the
// element up to, but excluding, body. The overlay and both listeners are
// torn down on click so the session leaves no state behind.
const pickScript = `() => new Promise((resolve) => {
	const overlay = document.createElement("div");
	overlay.style.position = "fixed";
	overlay.style.pointerEvents = "none";
	overlay.style.border = "2px solid red";
	overlay.style.zIndex = 9999999;
	document.body.appendChild(overlay);

	let lastElem = null;

	function updateOverlay(el) {
		if (!el) {
			overlay.style.width = "0px";
			overlay.style.height = "0px";
			return;
		}
		const rect = el.getBoundingClientRect();
		overlay.style.top = rect.top + "px";
		overlay.style.left = rect.left + "px";
		overlay.style.width = rect.width + "px";
		overlay.style.height = rect.height + "px";
	}

	function cssPath(el) {
		if (el.id) return "#" + el.id;
		if (el === document.body) return "body";

		const path = [];
		while (el && el.nodeType === 1 && el !== document.body) {
			let selector = el.nodeName.toLowerCase();
			if (el.className && typeof el.className === "string") {
				const classes = el.className.trim().split(/\s+/).join(".");
				if (classes) selector += "." + classes;
			}

			const siblings = Array.from(el.parentNode.children).filter(
				(sib) => sib.nodeName === el.nodeName
			);
			if (siblings.length > 1) {
				selector += ":nth-of-type(" + (siblings.indexOf(el) + 1) + ")";
			}

			path.unshift(selector);
			el = el.parentNode;
		}
		return path.join(" > ");
	}

	function onMouseMove(e) {
		if (lastElem !== e.target) {
			lastElem = e.target;
			updateOverlay(lastElem);
		}
	}

	function onClick(e) {
		e.preventDefault();
		e.stopPropagation();
		const selector = cssPath(e.target);

		document.removeEventListener("mousemove", onMouseMove);
		document.removeEventListener("click", onClick, true);
		overlay.remove();

		resolve(selector);
	}

	document.addEventListener("mousemove", onMouseMove);
	document.addEventListener("click", onClick, true);

	alert("Click the price element you want to track.");
})`

// PickElement runs the in-page pick and returns the chosen selector. The
// interaction is bounded by timeout; a closed page or an expired deadline
// yields ErrPickCancelled.
func (t *rodPage) PickElement(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := t.page.Context(ctx).Timeout(timeout).Evaluate(rod.Eval(pickScript).ByPromise())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", ErrPickCancelled
		}
		return "", err
	}

	selector := strings.TrimSpace(res.Value.Str())
	if selector == "" {
		return "", ErrPickCancelled
	}
	return selector, nil
}
