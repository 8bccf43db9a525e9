package utils

// TruncateString keeps the first and last borderSizeToKeep characters of a
// string, eliding the middle. Used to log references to secrets (database
// URLs, API keys) without disclosing them.
func TruncateString(str string, borderSizeToKeep int) string {
	if len(str) <= 2*borderSizeToKeep {
		return str
	}
	return str[:borderSizeToKeep] + "..." + str[len(str)-borderSizeToKeep:]
}
