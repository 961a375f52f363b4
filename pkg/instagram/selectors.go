package instagram

// CSS selectors for the pieces of the web UI the tracker touches.
const (
	SelectorUsernameInput = "input[name='username']"
	SelectorPasswordInput = "input[name='password']"
	SelectorLoginSubmit   = "button[type='submit']"

	// prompt shown after login; matched by class first, then by label
	SelectorNotNowButton = "button._a9--._ap36._a9_1"
	SelectorButtons      = "button, div[role='button']"
	NotNowLabelPattern   = "/^\\s*not now\\s*$/i"

	SelectorFollowingLink = "a[href*='/following']"
	SelectorDialog        = "div[role='dialog']"
	SelectorDialogLinks   = "div[role='dialog'] a[role='link']"
)
