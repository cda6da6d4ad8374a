package platform

// Label builds the display label stored on a link, e.g. "Amazon • B0CNCL35CH".
func Label(p Platform, productID string) string {
	name := capitalize(string(p))
	if productID != "" {
		return name + " • " + productID
	}
	return name
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
