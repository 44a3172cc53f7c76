package access

import "fmt"

// Action はエンドポイントが行う操作です。
type Action string

const (
	ActionList     Action = "list"
	ActionCreate   Action = "create"
	ActionRetrieve Action = "retrieve"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
)

// Endpoint は保護対象リソースのアクセス宣言です。
type Endpoint struct {
	Name string
	// Required はアクション単位の必要権限です (いずれか一つ)。空なら誰でも通過します。
	Required PermissionSet
	// ActionRequired は特定アクションの Required を上書きします。
	ActionRequired map[Action]PermissionSet
	// ViewAll は全件参照を許す権限です。空の場合は Required を使います。
	ViewAll PermissionSet
	// Delegate は上位ロールが他人のレコードを操作する際に追加で必要な権限です。
	Delegate PermissionSet
	// AdminOnly は管理者のみに許可するアクションです。
	AdminOnly []Action
	AllowedGroups GroupSet
	// ABAC はオブジェクト単位の所有者チェックを有効にします。
	ABAC bool
}

func (e Endpoint) required(action Action) PermissionSet {
	if set, ok := e.ActionRequired[action]; ok {
		return set
	}
	return e.Required
}

func (e Endpoint) viewAll() PermissionSet {
	if e.ViewAll.Empty() {
		return e.Required
	}
	return e.ViewAll
}

func (e Endpoint) adminOnly(action Action) bool {
	for _, a := range e.AdminOnly {
		if a == action {
			return true
		}
	}
	return false
}

// Scope は FilterScope が返す検索条件です。リポジトリが述語として適用します。
type Scope struct {
	Unrestricted bool
	// OwnerID は直接または社員経由でこのアカウントが所有する行に絞り込みます。
	OwnerID string
}

// All は絞り込みなしの Scope です。
func All() Scope {
	return Scope{Unrestricted: true}
}

// OwnedBy は ownerID の所有行に絞り込む Scope です。
func OwnedBy(ownerID string) Scope {
	return Scope{OwnerID: ownerID}
}

// Restricts は絞り込みが必要かを返します。
func (s Scope) Restricts() bool {
	return !s.Unrestricted
}

// Policy は RBAC / GBAC / ABAC を組み合わせた認可の入口です。可変状態は持ちません。
type Policy struct {
	rbac RBAC
}

// NewPolicy は Policy を生成します。
func NewPolicy(rules *RoleRules) *Policy {
	return &Policy{rbac: NewRBAC(rules)}
}

func (p *Policy) HasPermission(actor *Actor, required PermissionSet) bool {
	return p.rbac.HasPermission(actor, required)
}

// FilterScope は一覧検索の Scope を返します。全件参照権限を持つ場合とスーパーユーザーは絞り込みません。
func (p *Policy) FilterScope(actor *Actor, ep Endpoint) Scope {
	if actor == nil {
		return OwnedBy("")
	}
	if actor.Superuser || p.rbac.HasPermission(actor, ep.viewAll()) {
		return All()
	}
	return OwnedBy(actor.ID)
}

// AuthorizeList は行を読む前に一覧・参照の可否を判定します。
func (p *Policy) AuthorizeList(actor *Actor, ep Endpoint) Decision {
	return p.gate(actor, ep, ActionList)
}

// ActsForOthers は actor が他人のレコードを操作できるかを返します。
func (p *Policy) ActsForOthers(actor *Actor, ep Endpoint) bool {
	if actor == nil {
		return false
	}
	if actor.Superuser {
		return true
	}
	if !actor.Role.Elevated() {
		return false
	}
	return ep.Delegate.Empty() || p.rbac.HasPermission(actor, ep.Delegate)
}

// AuthorizeCreate は作成可否を判定し、保存すべきリソースを返します。
// 代理権限がない場合、空の所有者は本人で補完し、他人の指定は拒否します。
func (p *Policy) AuthorizeCreate(actor *Actor, ep Endpoint, target Resource) (Resource, Decision) {
	if d := p.gate(actor, ep, ActionCreate); !d.Allowed() {
		return nil, d
	}
	delegated := p.ActsForOthers(actor, ep)

	switch t := target.(type) {
	case EmployeeResource:
		if t.OwnerID == "" {
			t.OwnerID = actor.ID
		}
		if t.OwnerID != actor.ID && !delegated {
			return nil, Refuse(Deny(CodeOnBehalf, "cannot act on behalf of another identity"))
		}
		return t, Allow()
	case PresenceResource:
		emp, d := p.bindEmployee(actor, t.Employee, delegated)
		if !d.Allowed() {
			return nil, d
		}
		t.Employee = emp
		return t, Allow()
	case ReportResource:
		emp, d := p.bindEmployee(actor, t.Employee, delegated)
		if !d.Allowed() {
			return nil, d
		}
		t.Employee = emp
		return t, Allow()
	default:
		return nil, Refuse(Deny(CodePermissionRequired, "unsupported resource"))
	}
}

// BindEmployee は action の可否を判定したうえで、操作対象の社員を決定します。
// emp.ID が空なら本人の社員を返します。
func (p *Policy) BindEmployee(actor *Actor, ep Endpoint, action Action, emp EmployeeResource) (EmployeeResource, Decision) {
	if d := p.gate(actor, ep, action); !d.Allowed() {
		return emp, d
	}
	return p.bindEmployee(actor, emp, p.ActsForOthers(actor, ep))
}

func (p *Policy) bindEmployee(actor *Actor, emp EmployeeResource, delegated bool) (EmployeeResource, Decision) {
	if emp.ID == "" {
		if !actor.HasLinkedEmployee() {
			return emp, Refuse(Deny(CodeNoLinkedEmployee, "account is not linked to an employee"))
		}
		return EmployeeResource{ID: actor.EmployeeID, OwnerID: actor.ID}, Allow()
	}
	if delegated {
		return emp, Allow()
	}
	if !actor.HasLinkedEmployee() {
		return emp, Refuse(Deny(CodeNoLinkedEmployee, "account is not linked to an employee"))
	}
	if emp.ID != actor.EmployeeID {
		return emp, Refuse(Deny(CodeOnBehalf, "cannot act on behalf of another identity"))
	}
	emp.OwnerID = actor.ID
	return emp, Allow()
}

// AuthorizeObjectAccess は特定リソースへの操作可否を判定します。権限チェックは所有者チェックより先に行います。
// 所有者チェックは上位ロールとスーパーユーザーには適用しません。
func (p *Policy) AuthorizeObjectAccess(actor *Actor, ep Endpoint, res Resource, action Action) Decision {
	if d := p.gate(actor, ep, action); !d.Allowed() {
		return d
	}
	if ep.adminOnly(action) && !actor.IsAdmin() {
		return Refuse(DenyObject(CodeAdminOnly, fmt.Sprintf("only an administrator may %s this object", action)))
	}
	if ep.ABAC && !OwnsObject(actor, res) && !actor.IsElevated() {
		return Refuse(DenyObject(CodeNotOwner, "object belongs to another identity"))
	}
	return Allow()
}

func (p *Policy) gate(actor *Actor, ep Endpoint, action Action) Decision {
	if actor == nil {
		return Refuse(Deny(CodePermissionRequired, "permission required"))
	}
	required := ep.required(action)
	if !p.rbac.HasPermission(actor, required) {
		return Refuse(Deny(CodePermissionRequired, fmt.Sprintf("permission required: %s", required)))
	}
	if !InAllowedGroup(actor, ep.AllowedGroups) {
		return Refuse(Deny(CodeGroupRequired, fmt.Sprintf("membership required in one of: %s", ep.AllowedGroups)))
	}
	return Allow()
}
