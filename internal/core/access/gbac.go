package access

// InAllowedGroup は actor が allowed のいずれかに所属するかを返します。
// allowed が空なら常に許可します。スーパーユーザーも所属が必要です。
func InAllowedGroup(actor *Actor, allowed GroupSet) bool {
	if allowed.Empty() {
		return true
	}
	if actor == nil {
		return false
	}
	for _, g := range actor.Groups {
		if allowed.Has(g) {
			return true
		}
	}
	return false
}
