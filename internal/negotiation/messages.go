package negotiation

import "fmt"

// Chat notices appended by negotiation transitions. The client renders these
// verbatim, so the wording is part of the contract.

func openingNotice(title string) string {
	return fmt.Sprintf("התחיל צ'אט לגבי: %s. אנא תאמו את המחיר לפני שתוכלו לראות פרטי קשר.", title)
}

func offerNotice(price float64) string {
	return fmt.Sprintf("מציע מחיר: ₪%s", FormatPrice(price))
}

func agreeNotice(price float64) string {
	return fmt.Sprintf("מסכים למחיר של ₪%s. מבקש לראות פרטי קשר.", FormatPrice(price))
}

func pendingAgreeNotice(price float64) string {
	return fmt.Sprintf("מסכים למחיר של ₪%s. ממתין לאישור הצד השני.", FormatPrice(price))
}

func revealNotice(price float64) string {
	return fmt.Sprintf("המחיר סוכם על ₪%s. פרטי הקשר נחשפו.", FormatPrice(price))
}

func completionNotice() string {
	return "המשלוח הושלם בהצלחה! 🎉"
}

func ratingNotice(score int, comment string) string {
	return fmt.Sprintf("דירוג: %d כוכבים - %s", score, comment)
}
