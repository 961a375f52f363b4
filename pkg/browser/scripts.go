package browser

// The following dialog scrolls an inner div, not the dialog itself. The
// scroller is the tallest descendant with overflow-y auto or scroll.
const findScrollerJS = `
	const dialog = document.querySelector("div[role='dialog']");
	if (!dialog) return { ok: false, error: "dialog not open" };
	const scrollers = Array.from(dialog.querySelectorAll("div")).filter((div) => {
		const style = window.getComputedStyle(div);
		const scrollable = style.overflowY === "auto" || style.overflowY === "scroll";
		return scrollable && div.scrollHeight > div.clientHeight;
	});
	scrollers.sort((a, b) => b.scrollHeight - a.scrollHeight);
	const scroller = scrollers[0];
	const count = () => new Set(
		Array.from(dialog.querySelectorAll("a[role='link']")).map((a) => a.getAttribute("href"))
	).size;
`

// scrollByJS scrolls the dialog by step pixels and returns the number of
// distinct links rendered. A list short enough to need no scroller still
// reports its count.
const scrollByJS = `(step) => {` + findScrollerJS + `
	if (scroller) scroller.scrollTop += step;
	return { ok: true, count: count(), scrolled: !!scroller };
}`

const scrollToTopJS = `() => {` + findScrollerJS + `
	if (scroller) scroller.scrollTop = 0;
	return { ok: true, count: count() };
}`

const scrollToEndJS = `() => {` + findScrollerJS + `
	if (scroller) scroller.scrollTop = scroller.scrollHeight;
	return { ok: true, count: count() };
}`

// linkHrefsJS returns the absolute href of every link in the dialog in
// document order.
const linkHrefsJS = `() => Array.from(
	document.querySelectorAll("div[role='dialog'] a[role='link']")
).map((a) => a.href)`
