// internal/browser/interactor/scripts.go
package interactor

import (
	"fmt"
	"time"
)

// locateInteractiveJS defines locate(node), shared by the click scripts. It
// walks from the node up through its ancestors, then through its descendants,
// for the nearest interactive element, and falls back to the node itself.
const locateInteractiveJS = `
	const isClickable = (el) => {
		if (!el || el.nodeType !== 1) return false;
		const tag = el.tagName;
		if (tag === 'A' && el.hasAttribute('href')) return true;
		if (tag === 'BUTTON' || tag === 'SUMMARY' || tag === 'SELECT' || tag === 'OPTION') return true;
		if (tag === 'INPUT') {
			const t = (el.getAttribute('type') || 'text').toLowerCase();
			return ['button', 'submit', 'reset', 'checkbox', 'radio', 'image', 'file'].includes(t);
		}
		const role = (el.getAttribute('role') || '').toLowerCase();
		if (['button', 'link', 'checkbox', 'radio', 'tab', 'menuitem', 'option', 'switch'].includes(role)) return true;
		if (el.hasAttribute('onclick')) return true;
		if (el.hasAttribute('tabindex') && el.tabIndex >= 0) return true;
		try {
			if (window.getComputedStyle(el).cursor === 'pointer') return true;
		} catch (e) {}
		return false;
	};
	const locate = (node) => {
		const start = node && node.nodeType === 1 ? node : (node && node.parentElement);
		if (!start) return { el: null, via: 'none' };
		for (let el = start; el && el !== document.body && el !== document.documentElement; el = el.parentElement) {
			if (isClickable(el)) return { el, via: el === start ? 'self' : 'ancestor' };
		}
		const candidates = start.querySelectorAll('a[href], button, input, select, summary, [role], [onclick], [tabindex]');
		for (const el of candidates) {
			if (isClickable(el)) return { el, via: 'descendant' };
		}
		return { el: start, via: 'fallback' };
	};
`

// clickJS locates the click target and scrolls it to the viewport center. With
// trusted=true and a visible box it only reports geometry so the caller can
// send protocol-level input; otherwise it synthesizes the pointer sequence in
// the page.
const clickJS = `function(trusted) {` + locateInteractiveJS + `
	const { el, via } = locate(this);
	if (!el) return { clicked: false, via: 'none' };
	el.scrollIntoView({ block: 'center', inline: 'center', behavior: 'instant' });
	const r = el.getBoundingClientRect();
	const x = r.left + r.width / 2;
	const y = r.top + r.height / 2;
	const res = { clicked: false, via, tag: el.tagName, x, y, width: r.width, height: r.height };
	if (trusted && r.width > 0 && r.height > 0) return res;

	const opts = { bubbles: true, cancelable: true, composed: true, view: window, clientX: x, clientY: y, button: 0 };
	if (typeof el.focus === 'function') el.focus({ preventScroll: true });
	try { el.dispatchEvent(new PointerEvent('pointerdown', opts)); } catch (e) {}
	el.dispatchEvent(new MouseEvent('mousedown', opts));
	try { el.dispatchEvent(new PointerEvent('pointerup', opts)); } catch (e) {}
	el.dispatchEvent(new MouseEvent('mouseup', opts));
	el.dispatchEvent(new MouseEvent('click', opts));
	res.clicked = true;
	return res;
}`

// fillInputJS finds the text-entry surface for the node (itself, its label's
// control, a descendant, or its enclosing label's control), sets the value
// through the prototype setter and replays the key and change events.
const fillInputJS = `function(text) {
	const start = this.nodeType === 1 ? this : this.parentElement;
	if (!start) return { status: 'no_surface' };
	const textTypes = ['text', 'email', 'search', 'password', 'tel', 'url', 'number'];
	const isTextEntry = (el) => {
		if (!el || el.nodeType !== 1) return false;
		if (el.tagName === 'INPUT') return textTypes.includes((el.getAttribute('type') || 'text').toLowerCase());
		return el.tagName === 'TEXTAREA' || el.isContentEditable;
	};
	let el = null;
	if (isTextEntry(start)) {
		el = start;
	} else if (start.tagName === 'LABEL' && isTextEntry(start.control)) {
		el = start.control;
	} else {
		el = start.querySelector('input:not([type]), input[type=text], input[type=email], input[type=search], input[type=password], input[type=tel], input[type=url], input[type=number], textarea, [contenteditable=""], [contenteditable="true"]');
	}
	if (!el && start.closest) {
		const label = start.closest('label');
		if (label && isTextEntry(label.control)) el = label.control;
	}
	if (!el) return { status: 'no_surface' };
	if (el.disabled || el.readOnly || el.getAttribute('aria-disabled') === 'true') {
		return { status: 'readonly', tag: el.tagName };
	}

	el.scrollIntoView({ block: 'center', inline: 'center', behavior: 'instant' });
	el.focus();
	if (el.tagName !== 'INPUT' && el.tagName !== 'TEXTAREA') {
		el.textContent = text;
	} else {
		const proto = el.tagName === 'TEXTAREA' ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
		const desc = Object.getOwnPropertyDescriptor(proto, 'value');
		if (desc && desc.set) desc.set.call(el, text); else el.value = text;
	}
	const key = text.length ? text[text.length - 1] : '';
	const keyOpts = { bubbles: true, cancelable: true, key };
	el.dispatchEvent(new KeyboardEvent('keydown', keyOpts));
	el.dispatchEvent(new KeyboardEvent('keypress', keyOpts));
	el.dispatchEvent(new InputEvent('input', { bubbles: true, inputType: 'insertText', data: text }));
	el.dispatchEvent(new KeyboardEvent('keyup', keyOpts));
	el.dispatchEvent(new Event('change', { bubbles: true }));
	return { status: 'ok', tag: el.tagName };
}`

// submitJS submits the node's form with the first strategy that applies and
// reports it.
const submitJS = `function() {
	const start = this.nodeType === 1 ? this : this.parentElement;
	if (!start) return { strategy: 'noForm' };
	const form = start.form || start.closest('form') || start.querySelector('form');
	if (!form) return { strategy: 'noForm' };
	if (typeof form.requestSubmit === 'function') {
		try {
			form.requestSubmit();
			return { strategy: 'requestSubmit' };
		} catch (e) {}
	}
	const button = form.querySelector('button[type=submit], input[type=submit], button:not([type])');
	if (button) {
		button.click();
		return { strategy: 'buttonClick' };
	}
	const keyOpts = { bubbles: true, cancelable: true, key: 'Enter', code: 'Enter', keyCode: 13, which: 13 };
	const unhandled = start.dispatchEvent(new KeyboardEvent('keydown', keyOpts));
	start.dispatchEvent(new KeyboardEvent('keyup', keyOpts));
	if (!unhandled) return { strategy: 'enterKey' };
	form.submit();
	return { strategy: 'submitDirect' };
}`

// historyBackJS resolves to 'noHistory' without navigating when there is no
// prior entry, to 'popstate' when the back navigation is observed, and to
// 'historyBack' when the timeout wins.
func historyBackJS(timeout time.Duration) string {
	return fmt.Sprintf(`new Promise((resolve) => {
	if (window.history.length <= 1) {
		resolve('noHistory');
		return;
	}
	let done = false;
	const finish = (v) => {
		if (done) return;
		done = true;
		window.removeEventListener('popstate', onPop);
		resolve(v);
	};
	const onPop = () => finish('popstate');
	window.addEventListener('popstate', onPop);
	setTimeout(() => finish('historyBack'), %d);
	window.history.back();
})`, timeout.Milliseconds())
}
