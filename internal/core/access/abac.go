package access

// Resource は保護対象のオブジェクトです。実装は EmployeeResource / PresenceResource / ReportResource に限られます。
type Resource interface {
	isResource()
}

// EmployeeResource はアカウントが直接所有する社員です。
type EmployeeResource struct {
	ID      string
	OwnerID string
}

// PresenceResource は社員を通じて所有される出勤記録です。
type PresenceResource struct {
	ID       string
	Employee EmployeeResource
}

// ReportResource は社員を通じて所有されるレポートです。
type ReportResource struct {
	ID       string
	Employee EmployeeResource
}

func (EmployeeResource) isResource() {}
func (PresenceResource) isResource() {}
func (ReportResource) isResource()   {}

// OwnsObject は actor が res を所有するかを返します。管理者は常に true、未知の型は false です。
func OwnsObject(actor *Actor, res Resource) bool {
	if actor == nil || res == nil {
		return false
	}
	if actor.IsAdmin() {
		return true
	}
	switch r := res.(type) {
	case EmployeeResource:
		return ownedBy(r.OwnerID, actor)
	case *EmployeeResource:
		return r != nil && ownedBy(r.OwnerID, actor)
	case PresenceResource:
		return ownedBy(r.Employee.OwnerID, actor)
	case *PresenceResource:
		return r != nil && ownedBy(r.Employee.OwnerID, actor)
	case ReportResource:
		return ownedBy(r.Employee.OwnerID, actor)
	case *ReportResource:
		return r != nil && ownedBy(r.Employee.OwnerID, actor)
	default:
		return false
	}
}

func ownedBy(ownerID string, actor *Actor) bool {
	return ownerID != "" && ownerID == actor.ID
}
