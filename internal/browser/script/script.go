// Package script holds the in-page JavaScript shared by every browser driver.
// Each script is a function expression taking a single JSON argument.
package script

import (
	"encoding/json"
	"fmt"
)

// Registry is the window property holding the elements of the last snapshot.
const Registry = "__browserAgentDOM"

// Call renders fn applied to arg as a standalone expression, for drivers
// whose evaluate call takes no separate argument.
func Call(fn string, arg any) (string, error) {
	if arg == nil {
		return fmt.Sprintf("(%s)()", fn), nil
	}

	raw, err := json.Marshal(arg)
	if err != nil {
		return "", fmt.Errorf("marshal script argument: %w", err)
	}

	return fmt.Sprintf("(%s)(%s)", fn, raw), nil
}

// ElementPath is a JS expression evaluating to the registered element id.
func ElementPath(id int) string {
	return fmt.Sprintf("window.%s.elements[%d]", Registry, id)
}

// RefArg is the argument of Resolve and Attached.
type RefArg struct {
	Generation string `json:"generation"`
	ID         int    `json:"id"`
}

// ScrollArg is the argument of Scroll. Amount <= 0 means one viewport height.
type ScrollArg struct {
	Direction string `json:"direction"`
	Amount    int    `json:"amount"`
}

// Snapshot walks the document from body and returns a JSON string describing
// every element with its computed style, rect and direct text. Elements are
// registered on window so later calls can find them by ref. Open shadow roots
// and same-origin iframe documents are entered one level deep; iframe rects
// are shifted into top-level viewport coordinates.
func Snapshot() string {
	return `(opts) => {
		const maxDepth = opts.maxDepth > 0 ? opts.maxDepth : 256;
		const maxNodes = opts.maxNodes > 0 ? opts.maxNodes : 20000;
		const registry = { generation: opts.generation, elements: [] };
		window.` + Registry + ` = registry;
		let truncated = false;

		const directText = (el) => {
			let text = '';
			for (const child of el.childNodes) {
				if (child.nodeType === 3) {
					text += child.textContent + ' ';
				}
			}
			return text.trim().slice(0, 1000);
		};

		const describe = (el, offsetX, offsetY) => {
			const view = el.ownerDocument.defaultView || window;
			const style = view.getComputedStyle(el);
			const rect = el.getBoundingClientRect();
			const attributes = {};
			for (const attr of el.attributes) {
				attributes[attr.name] = attr.value;
			}

			const ref = registry.elements.length;
			registry.elements.push(el);

			return {
				nodeType: 1,
				ref: ref,
				tagName: el.tagName.toLowerCase(),
				attributes: attributes,
				style: {
					display: style.display,
					visibility: style.visibility,
					opacity: style.opacity,
					cursor: style.cursor,
				},
				rect: {
					x: rect.left + offsetX,
					y: rect.top + offsetY,
					width: rect.width,
					height: rect.height,
				},
				text: directText(el),
				children: [],
			};
		};

		const childrenOf = (item) => {
			const kids = [];
			for (const child of item.el.children) {
				kids.push({ el: child, offsetX: item.offsetX, offsetY: item.offsetY, inFrame: item.inFrame, inShadow: item.inShadow });
			}

			if (!item.inShadow && item.el.shadowRoot) {
				for (const child of item.el.shadowRoot.children) {
					kids.push({ el: child, offsetX: item.offsetX, offsetY: item.offsetY, inFrame: item.inFrame, inShadow: true });
				}
			}

			if (!item.inFrame && item.el.tagName === 'IFRAME') {
				try {
					const body = item.el.contentDocument && item.el.contentDocument.body;
					if (body) {
						const r = item.el.getBoundingClientRect();
						kids.push({
							el: body,
							offsetX: item.offsetX + r.left + item.el.clientLeft,
							offsetY: item.offsetY + r.top + item.el.clientTop,
							inFrame: true,
							inShadow: item.inShadow,
						});
					}
				} catch (e) {
					// cross-origin frame
				}
			}

			return kids;
		};

		const viewport = {
			width: window.innerWidth,
			height: window.innerHeight,
			scrollX: window.scrollX,
			scrollY: window.scrollY,
		};

		const rootEl = document.body || document.documentElement;
		let root = null;

		if (rootEl) {
			root = describe(rootEl, 0, 0);
			const stack = [{ el: rootEl, node: root, depth: 0, offsetX: 0, offsetY: 0, inFrame: false, inShadow: false }];

			while (stack.length > 0) {
				const item = stack.pop();
				if (item.depth >= maxDepth) {
					continue;
				}

				for (const kid of childrenOf(item)) {
					if (registry.elements.length >= maxNodes) {
						truncated = true;
						break;
					}

					let node;
					try {
						node = describe(kid.el, kid.offsetX, kid.offsetY);
					} catch (e) {
						continue;
					}

					item.node.children.push(node);
					stack.push(Object.assign({}, kid, { node: node, depth: item.depth + 1 }));
				}
			}
		}

		return JSON.stringify({
			generation: opts.generation,
			url: location.href,
			title: document.title,
			viewport: viewport,
			truncated: truncated,
			root: root,
		});
	}`
}

// Resolve returns the registered element for a ref, or null when the
// registry was replaced or the element left the document.
func Resolve() string {
	return `(ref) => {
		const registry = window.` + Registry + `;
		if (!registry || registry.generation !== ref.generation) {
			return null;
		}
		const el = registry.elements[ref.id];
		if (!el || !el.isConnected) {
			return null;
		}
		return el;
	}`
}

// Attached reports whether a ref still resolves to a connected element.
func Attached() string {
	return `(ref) => {
		const registry = window.` + Registry + `;
		if (!registry || registry.generation !== ref.generation) {
			return false;
		}
		const el = registry.elements[ref.id];
		return !!el && el.isConnected;
	}`
}

// Scroll moves the window and returns the new vertical offset.
func Scroll() string {
	return `(opts) => {
		const amount = opts.amount > 0 ? opts.amount : window.innerHeight;
		const scroller = document.scrollingElement || document.documentElement;
		switch (opts.direction) {
			case 'up':
				window.scrollBy(0, -amount);
				break;
			case 'down':
				window.scrollBy(0, amount);
				break;
			case 'top':
				window.scrollTo(0, 0);
				break;
			case 'bottom':
				window.scrollTo(0, scroller.scrollHeight);
				break;
			default:
				throw new Error('unknown scroll direction: ' + opts.direction);
		}
		return window.scrollY;
	}`
}

// ClickElement clicks an element from script. Used when a pointer click
// cannot be delivered.
func ClickElement() string {
	return `(el) => {
		el.scrollIntoView({ behavior: 'instant', block: 'center' });
		el.click();
		return true;
	}`
}
