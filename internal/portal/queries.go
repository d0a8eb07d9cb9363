package portal

import "fmt"

// Page URLs.
const (
	LoginURL     = "https://www.rjmart.cn/Login"
	OrderListURL = "https://www.rjmart.cn/PM/orderList"
)

// Named element queries. All site coupling lives in this file; the rest of
// the package talks in terms of these names.
const (
	queryUsernameInput = `input[name="username"]`
	queryPasswordInput = `input[type="password"]`
	queryLoginSubmit   = `button[type="submit"]`
	querySearchButton  = `button.zen_btn.zen_btn-primary`
)

// Export job names as they appear in the portal's export drop menu.
const (
	ExportOrderDetail = "导出订单明细"
	ExportGoodsDetail = "导出商品明细"
)

// jsSetDateInput writes a date into the picker input and fires the change
// and input events the picker listens for. Yields false when the input is
// missing.
func jsSetDateInput(which, date string) string {
	return fmt.Sprintf(`
(function() {
	const input = document.querySelector('input.ZenDatePicker-input-%s');
	if (!input) {
		return false;
	}
	input.value = %q;
	input.dispatchEvent(new Event('change', { bubbles: true }));
	input.dispatchEvent(new Event('input', { bubbles: true }));
	return true;
})()
`, which, date)
}

// jsReadDateInputs reads back both picker inputs, or null if either is
// missing.
const jsReadDateInputs = `
(function() {
	const start = document.querySelector('input.ZenDatePicker-input-start');
	const end = document.querySelector('input.ZenDatePicker-input-end');
	if (!start || !end) {
		return null;
	}
	return [start.value, end.value];
})()
`

// jsHoverExportMenu opens the export drop menu by hovering its trigger.
const jsHoverExportMenu = `
(function() {
	const trigger = document.querySelector('div.operateArea div.ZenDropMenu-trigger');
	if (!trigger) {
		return false;
	}
	trigger.dispatchEvent(new MouseEvent('mouseover', { bubbles: true }));
	trigger.dispatchEvent(new MouseEvent('mouseenter', { bubbles: true }));
	return true;
})()
`

// jsClickMenuItem clicks the drop-menu entry with the given visible text.
func jsClickMenuItem(text string) string {
	return fmt.Sprintf(`
(function() {
	const items = document.querySelectorAll('span.ZenSelect-item-text');
	for (const item of items) {
		if (item.textContent.trim() === %q) {
			item.click();
			return true;
		}
	}
	return false;
})()
`, text)
}

// jsClickListExport clicks the standalone "export list" button.
const jsClickListExport = `
(function() {
	const spans = document.querySelectorAll('div.operateArea button[type="button"] span');
	for (const s of spans) {
		if (s.textContent.trim() === '导出列表') {
			s.closest('button').click();
			return true;
		}
	}
	return false;
})()
`

// jsCloseExportDialog dismisses the confirmation dialog shown after an
// export is queued.
const jsCloseExportDialog = `
(function() {
	const btn = document.querySelector('span.closeBtn');
	if (!btn) {
		return false;
	}
	btn.click();
	return true;
})()
`
