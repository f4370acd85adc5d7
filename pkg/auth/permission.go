package auth

// Evaluate reports whether user holds permission. It never panics: a nil user
// holds nothing.
func Evaluate(user *User, permission string) bool {
	if user == nil {
		return false
	}
	return user.Permissions.Has(permission)
}

// EvaluateAny reports whether user holds at least one of permissions.
func EvaluateAny(user *User, permissions ...string) bool {
	for _, p := range permissions {
		if Evaluate(user, p) {
			return true
		}
	}
	return false
}

// EvaluateAll reports whether user holds every one of permissions. An empty
// list is satisfied only by an authenticated user.
func EvaluateAll(user *User, permissions ...string) bool {
	if user == nil {
		return false
	}
	for _, p := range permissions {
		if !Evaluate(user, p) {
			return false
		}
	}
	return true
}
