package messaging

import "strings"

// The frontend maps these class names to its theme. Order matters: the
// color a user gets is a pure function of their id.
var avatarPalette = [...]string{
	"dark-teal", "dark-cyan", "golden-orange",
	"rusty-spice", "oxidized-iron", "brown-red",
}

// AvatarColor derives a stable color class from the user id. Never stored.
func AvatarColor(userID int) string {
	return "bg-" + avatarPalette[userID%len(avatarPalette)]
}

// Initials builds the two-letter avatar label: first letters of first and
// last name, falling back to the first two letters of the username when
// either name part is missing.
func Initials(firstName, lastName, username string) string {
	if firstName != "" && lastName != "" {
		return strings.ToUpper(firstRune(firstName) + firstRune(lastName))
	}
	r := []rune(username)
	if len(r) > 2 {
		r = r[:2]
	}
	return strings.ToUpper(string(r))
}

func firstRune(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}
