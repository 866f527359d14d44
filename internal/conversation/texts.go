package conversation

const menuText = `What would you like to do?

1. My coupons
2. Search by company
3. Add a coupon
4. Update coupon usage
5. Delete a coupon
6. Describe a coupon in free text (AI)
7. Disconnect

Reply with a number. You can always type "cancel" to come back here.`

const (
	msgAskToken          = "Please send the verification code from the site to connect this chat."
	msgTokenAccepted     = "Connected! This chat is now linked to your account."
	msgTokenNotFound     = "That code doesn't match anything. Check it on the site and try again."
	msgTokenExpired      = "That code has expired. Generate a fresh one on the site."
	msgTokenUsed         = "That code was already used. Generate a fresh one on the site."
	msgTokenBlocked      = "Too many failed attempts. Wait a bit before trying again."
	msgSessionExpired    = "Your session expired. Grab a fresh verification code from the site to reconnect."
	msgGenericFailure    = "Something went wrong on our side. Nothing was changed, please try again."
	msgCancelled         = "Okay, cancelled."
	msgDisconnected      = "Disconnected. Send a new verification code whenever you want to reconnect."
	msgNoCoupons         = "You don't have any active coupons."
	msgPickNumber        = "Please reply with one of the listed numbers."
	msgAIUnavailable     = "Free-text analysis isn't available right now. You can add the coupon manually with option 3."
	msgAIFailed          = "I couldn't analyze that text. Let's go back to the menu, you can try again or add the coupon manually."
	msgAITooShort        = "That's a bit short, give me at least %d characters to work with."
	msgAITooLong         = "That's too long, keep it under %d characters."
	msgAINothingFound    = "I couldn't find coupon details in that. Try describing the company, code and value."
	msgSaved             = "Saved!"
	msgDeleted           = "Deleted. The coupon and its usage history are gone."
	msgUsageCancelled    = "No changes made."
	msgUnknownMenuChoice = "I didn't get that. " // prefixes the menu
	msgCompanyUnknown    = "I don't know that company yet. Send the name again to confirm it's new, or try a different spelling."
)

const (
	promptCompany     = "Which company is the coupon for?"
	promptNewCompany  = "Got it, what's the company name?"
	promptCode        = "What's the coupon code?"
	promptCost        = "How much did the coupon cost you? (0 if it was free)"
	promptValue       = "What's the coupon worth?"
	promptExpiration  = "When does it expire? Use DD/MM/YYYY, or write 'none' if it never expires."
	promptDescription = "Any description? Write 'none' to skip."
	promptSource      = "Where is the coupon from? Write 'none' to skip."
	promptAskCard     = "Does the coupon work like a credit card (has CVV and expiry)? (yes/no)"
	promptCVV         = "What's the CVV? (3-4 digits, or 'none')"
	promptCardExp     = "What's the card expiry? Use MM/YY, or 'none'."
	promptAskOneTime  = "Is it a one-time coupon? (yes/no)"
	promptPurpose     = "What's the coupon for? Write 'none' to skip."
	promptConfirm     = "Save it? (yes/no)"
	promptEditField   = "Which field do you want to change? (company, code, cost, value, expiration, description, source, cvv, card expiry, one-time, purpose)"
	promptAIText      = "Describe the coupon in your own words and I'll pull out the details."
	promptUsageType   = "How was it used?\n1. Fully used\n2. Partially used"
	promptUsageAmount = "How much was used?"
)

const (
	msgAmountNotNumber = "that doesn't look like a number, try again"
	msgAmountNegative  = "the amount can't be negative"
	msgAmountTooLarge  = "that amount is above the allowed maximum"
	msgValueZero       = "the value must be greater than zero"
	msgAmountZeroUsage = "the used amount must be greater than zero"
	msgDateFormat      = "that doesn't look like a date, use DD/MM/YYYY or 'none'"
	msgDateMonthRange  = "the month must be between 1 and 12, use DD/MM/YYYY"
	msgDateDayInvalid  = "that day doesn't exist in that month, check the date"
	msgCVVFormat       = "the CVV should be 3 or 4 digits"
	msgCardExpFormat   = "card expiry should look like MM/YY"
	msgYesNo           = "please answer yes or no"
	msgNoDiscount      = "the value must be higher than the cost, otherwise it's not a deal. Let's fix the cost first"
	msgFieldUnknown    = "I don't recognize that field, try one from the list"
	msgCompanyEmpty    = "the company name can't be empty"
	msgCodeEmpty       = "the code can't be empty"
)
